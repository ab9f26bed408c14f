package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/gudangmitra/gudang/internal/model"
)

var seq atomic.Int64

func seedUser(t *testing.T, database *sql.DB, role string) *model.User {
	t.Helper()
	n := seq.Add(1)
	u, err := CreateUser(context.Background(), database, fmt.Sprintf("User %d", n), fmt.Sprintf("user%d@example.com", n), "hash", role)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func seedItem(t *testing.T, database *sql.DB, name string, quantity, minQuantity int) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), database, model.Item{
		Name:        name,
		Category:    "tools",
		Quantity:    quantity,
		MinQuantity: minQuantity,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return item
}

func ref(id int64) model.ItemRef {
	return model.ItemRef(fmt.Sprint(id))
}

func seedRequest(t *testing.T, database *sql.DB, requesterID int64, lines ...model.LineDraft) *model.Request {
	t.Helper()
	req, err := CreateRequest(context.Background(), database, model.RequestDraft{
		ProjectName: "Site build",
		RequesterID: requesterID,
		Items:       lines,
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	return req
}
