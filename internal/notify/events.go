package notify

// RequestSubmittedEvent is sent after a request is stored.
type RequestSubmittedEvent struct {
	RequestID   string
	ProjectName string
	RequesterID int64
}

// RequestStatusChangedEvent is sent after a status transition commits.
type RequestStatusChangedEvent struct {
	RequestID   string
	ProjectName string
	RequesterID int64
	From        string
	To          string
}
