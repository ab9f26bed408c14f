package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Request is a user's ask for one or more items.
type Request struct {
	ID             string        `json:"id"`
	ProjectName    string        `json:"project_name"`
	RequesterID    int64         `json:"requester_id"`
	RequesterName  string        `json:"requester_name,omitempty"`
	RequesterEmail string        `json:"requester_email,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	Priority       string        `json:"priority"`
	DueDate        *time.Time    `json:"due_date,omitempty"`
	Status         string        `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Items          []RequestItem `json:"items"`
}

// RequestItem is one line of a request, annotated with the referenced item.
type RequestItem struct {
	RequestID   string `json:"request_id"`
	ItemID      int64  `json:"item_id"`
	Quantity    int    `json:"quantity"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Request statuses.
const (
	RequestPending    = "pending"
	RequestApproved   = "approved"
	RequestDenied     = "denied"
	RequestFulfilled  = "fulfilled"
	RequestOutOfStock = "out_of_stock"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidRequestStatus reports whether s is a request status token.
func ValidRequestStatus(s string) bool {
	switch s {
	case RequestPending, RequestApproved, RequestDenied, RequestFulfilled, RequestOutOfStock:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// transitions lists the permitted status changes. Anything absent is refused,
// including approving a request twice.
var transitions = map[string][]string{
	RequestPending:  {RequestApproved, RequestDenied, RequestFulfilled, RequestOutOfStock},
	RequestApproved: {RequestFulfilled},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ItemRef is an item id as submitted by a client. Both JSON numbers and
// numeric strings are accepted; Int64 does the coercion.
type ItemRef string

// UnmarshalJSON accepts a number or a string.
func (r *ItemRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ItemRef(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	*r = ItemRef(data)
	return nil
}

// Int64 coerces the reference to an integer item id.
func (r ItemRef) Int64() (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(string(r)), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("item_id %q is not a valid id", string(r))
	}
	return id, nil
}

// LineDraft is one requested line before validation.
type LineDraft struct {
	ItemID   ItemRef `json:"item_id"`
	Quantity int     `json:"quantity"`
}

// RequestDraft is the input to request creation.
type RequestDraft struct {
	ProjectName string
	RequesterID int64
	Reason      string
	Priority    string
	DueDate     *time.Time
	Items       []LineDraft
}

// RequestFilter narrows ListRequests. Zero values match everything.
type RequestFilter struct {
	RequesterID int64
	Status      string
}

// StockAdjustment records one item decrement made by an approval.
type StockAdjustment struct {
	ItemID    int64  `json:"item_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Before    int    `json:"before"`
	After     int    `json:"after"`
	Status    string `json:"status"`
	Shortfall int    `json:"shortfall,omitempty"`
}

// StatusChange is the outcome of a committed status transition.
type StatusChange struct {
	Request     *Request          `json:"request"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Adjustments []StockAdjustment `json:"adjustments,omitempty"`
}

// Shortfalls returns the adjustments that asked for more than was on hand.
func (c *StatusChange) Shortfalls() []StockAdjustment {
	var out []StockAdjustment
	for _, a := range c.Adjustments {
		if a.Shortfall > 0 {
			out = append(out, a)
		}
	}
	return out
}
