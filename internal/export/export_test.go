package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gudangmitra/gudang/internal/model"
)

func readRows(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestRequestsWorkbook(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	due := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	requests := []model.Request{
		{
			ID:             "req-1",
			ProjectName:    "Site A",
			RequesterID:    4,
			RequesterName:  "Dewi",
			RequesterEmail: "dewi@example.com",
			Reason:         "scaffolding",
			Priority:       model.PriorityHigh,
			Status:         model.RequestOutOfStock,
			DueDate:        &due,
			CreatedAt:      created,
			UpdatedAt:      created,
			Items: []model.RequestItem{
				{ItemID: 1, Name: "Hammer", Quantity: 2},
				{ItemID: 2, Name: "Nails", Quantity: 100},
			},
		},
		{ID: "req-2", RequesterID: 9, Priority: model.PriorityLow, Status: model.RequestPending, CreatedAt: created, UpdatedAt: created},
	}

	var buf bytes.Buffer
	require.NoError(t, RequestsWorkbook(&buf, requests))

	rows := readRows(t, buf.Bytes(), RequestsSheet)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"No.", "Request ID", "Item Name", "Quantity", "Priority", "Status", "Requester", "Email", "Project", "Reason", "Due Date", "Created", "Updated"}, rows[0])
	assert.Equal(t, []string{"1", "req-1", "Hammer", "2", "High", "Out of stock", "Dewi", "dewi@example.com", "Site A", "scaffolding", "2025-03-15", "2025-03-01", "2025-03-01"}, rows[1])
	assert.Equal(t, "Nails", rows[2][2])
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "User 9", rows[3][6])
	assert.Equal(t, "", rows[3][3])
}

func TestInventoryTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InventoryTemplate(&buf))

	rows := readRows(t, buf.Bytes(), TemplateSheet)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"name", "description", "category", "quantity", "minQuantity", "price", "location"}, rows[0])
	assert.Equal(t, "Laptop Dell XPS 13", rows[1][0])
}
