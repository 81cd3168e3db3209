package common

import (
	"github.com/veridian-dash/veridian/lib/dash"
	"github.com/veridian-dash/veridian/lib/db"
)

// --------------------------------------------------------------------------
// Response envelope
// --------------------------------------------------------------------------

// Response wraps every API response. Data is omitted on errors, Error on success.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok creates a successful response
func Ok[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

// Fail creates an error response
func Fail(msg string) Response[any] {
	return Response[any]{Success: false, Error: msg}
}

// --------------------------------------------------------------------------
// Request bodies
// --------------------------------------------------------------------------

type CreateUserRequest struct {
	Name *string `json:"name"`
}

type CreateChatRequest struct {
	Title *string `json:"title"`
}

type SendMessageRequest struct {
	UserID *string `json:"userId"`
	Text   *string `json:"text"`
}

// DeleteManyRequest holds the ids to delete. Entries that are not non-empty strings are
// dropped by the server.
type DeleteManyRequest struct {
	IDs []any `json:"ids"`
}

// --------------------------------------------------------------------------
// Response bodies
// --------------------------------------------------------------------------

type Page[T any] struct {
	Items []T     `json:"items"`
	Next  *string `json:"next"`
}

type PlatformMetricsResult struct {
	Platform dash.Platform        `json:"platform"`
	Metrics  dash.PlatformMetrics `json:"metrics"`
}

type SaveAlertsResult struct {
	Success bool `json:"success"`
}

type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type DeleteManyResult struct {
	DeletedCount int      `json:"deletedCount"`
	IDs          []string `json:"ids"`
}

type HealthResult struct {
	Status string          `json:"status"`
	Store  db.DatabaseInfo `json:"store"`
}
