package model

import "time"

// ErrorKind names a failure class rendered in the "error" field of responses.
type ErrorKind string

// Error kinds.
const (
	KindUnauthorized    ErrorKind = "Unauthorized"
	KindBadRequest      ErrorKind = "BadRequest"
	KindValidationError ErrorKind = "ValidationError"
	KindNotFound        ErrorKind = "NotFound"
	KindInternalError   ErrorKind = "InternalError"
)

// InternalErrorMessage is the only message clients see for unexpected faults.
const InternalErrorMessage = "Something went wrong!"

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Error   ErrorKind `json:"error"`
	Message string    `json:"message"`
	Fields  []string  `json:"fields,omitempty"`
}

// ListPage is the response of the product listing endpoint.
// Total counts the filtered collection before pagination.
type ListPage struct {
	Page  int       `json:"page"`
	Total int       `json:"total"`
	Data  []Product `json:"data"`
}

// CategoryStats maps a category to the number of products in it.
type CategoryStats map[string]int

// EventType identifies a catalog mutation.
type EventType string

// Catalog event types.
const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// ProductEvent is pushed to change-feed subscribers after a mutation.
type ProductEvent struct {
	Type      EventType `json:"type"`
	Product   Product   `json:"product"`
	Timestamp time.Time `json:"timestamp"`
}

// NewProductEvent creates an event stamped with the current time.
func NewProductEvent(t EventType, p Product) ProductEvent {
	return ProductEvent{
		Type:      t,
		Product:   p,
		Timestamp: time.Now().UTC(),
	}
}
