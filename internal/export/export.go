// Package export renders spreadsheets: the requests report and the blank
// inventory import template.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/gudangmitra/gudang/internal/model"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	RequestsSheet = "Requests"
	TemplateSheet = "Inventory Template"
)

type column struct {
	title string
	width float64
}

var requestColumns = []column{
	{"No.", 5},
	{"Request ID", 38},
	{"Item Name", 25},
	{"Quantity", 10},
	{"Priority", 10},
	{"Status", 14},
	{"Requester", 20},
	{"Email", 25},
	{"Project", 20},
	{"Reason", 40},
	{"Due Date", 15},
	{"Created", 15},
	{"Updated", 15},
}

var templateColumns = []column{
	{"name", 20},
	{"description", 40},
	{"category", 15},
	{"quantity", 10},
	{"minQuantity", 12},
	{"price", 12},
	{"location", 15},
}

// RequestsWorkbook writes one row per request line. A request without
// lines still gets a row so it shows up in the report.
func RequestsWorkbook(w io.Writer, requests []model.Request) error {
	var rows [][]any
	for _, req := range requests {
		lines := req.Items
		if len(lines) == 0 {
			lines = []model.RequestItem{{}}
		}
		for _, line := range lines {
			requester := req.RequesterName
			if requester == "" {
				requester = fmt.Sprintf("User %d", req.RequesterID)
			}
			var qty any
			if line.ItemID != 0 {
				qty = line.Quantity
			}
			rows = append(rows, []any{
				len(rows) + 1,
				req.ID,
				line.Name,
				qty,
				label(req.Priority),
				label(req.Status),
				requester,
				req.RequesterEmail,
				req.ProjectName,
				req.Reason,
				date(req.DueDate),
				date(&req.CreatedAt),
				date(&req.UpdatedAt),
			})
		}
	}
	return writeSheet(w, RequestsSheet, requestColumns, rows)
}

// InventoryTemplate writes the item import template with one example row.
func InventoryTemplate(w io.Writer) error {
	rows := [][]any{
		{"Laptop Dell XPS 13", "High-performance laptop with 16GB RAM and 512GB SSD", "electronics", 10, 2, "15000000", "Main Storage"},
	}
	return writeSheet(w, TemplateSheet, templateColumns, rows)
}

func writeSheet(w io.Writer, sheet string, cols []column, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c.title
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, c.width); err != nil {
			return fmt.Errorf("setting column width: %w", err)
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// label turns "out_of_stock" into "Out of stock".
func label(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

func date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
