package model

import "time"

// Notification is a message for one user, usually about one request.
type Notification struct {
	ID               string    `json:"id"`
	UserID           int64     `json:"user_id"`
	Type             string    `json:"type"`
	Message          string    `json:"message"`
	RelatedRequestID string    `json:"related_request_id,omitempty"`
	IsRead           bool      `json:"is_read"`
	CreatedAt        time.Time `json:"created_at"`
}

// Notification types.
const (
	NotifyRequestSubmitted = "request_submitted"
	NotifyRequestApproved  = "request_approved"
	NotifyRequestRejected  = "request_rejected"
	NotifyRequestFulfilled = "request_fulfilled"
	NotifySystem           = "system"
)
