package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a stock-keeping unit. Status is always derived from Quantity and
// MinQuantity; see DeriveStatus.
type Item struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category,omitempty"`
	Quantity      int             `json:"quantity"`
	MinQuantity   int             `json:"minQuantity"`
	Status        string          `json:"status"`
	Price         decimal.Decimal `json:"price"`
	Location      string          `json:"location,omitempty"`
	IsActive      bool            `json:"isActive"`
	ImageMime     string          `json:"image_mime,omitempty"`
	LastRestocked *time.Time      `json:"lastRestocked,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Stock statuses.
const (
	StockIn  = "in-stock"
	StockLow = "low-stock"
	StockOut = "out-of-stock"
)

// DeriveStatus classifies stock on hand against the minimum threshold.
func DeriveStatus(quantity, minQuantity int) string {
	switch {
	case quantity <= 0:
		return StockOut
	case quantity <= minQuantity:
		return StockLow
	default:
		return StockIn
	}
}

// ValidStockStatus reports whether s is one of the stock statuses.
func ValidStockStatus(s string) bool {
	return s == StockIn || s == StockLow || s == StockOut
}

// ItemFilter narrows ListItems.
type ItemFilter struct {
	Category        string
	Status          string
	Search          string
	IncludeInactive bool
}

// ItemPatch is a partial item update. Nil fields keep their stored values.
type ItemPatch struct {
	Name        *string          `json:"name" validate:"omitempty,min=1"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Quantity    *int             `json:"quantity" validate:"omitempty,gte=0"`
	MinQuantity *int             `json:"minQuantity" validate:"omitempty,gte=0"`
	Price       *decimal.Decimal `json:"price"`
	Location    *string          `json:"location"`
	IsActive    *bool            `json:"isActive"`
}

// Apply copies the set fields onto item.
func (p ItemPatch) Apply(item *Item) {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.MinQuantity != nil {
		item.MinQuantity = *p.MinQuantity
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	if p.Location != nil {
		item.Location = *p.Location
	}
	if p.IsActive != nil {
		item.IsActive = *p.IsActive
	}
}
