package stores

import (
	"context"
	"time"
)

// OperationStatus represents the status of a journaled CLI operation
type OperationStatus string

const (
	OperationStatusRunning  OperationStatus = "running"
	OperationStatusFinished OperationStatus = "finished"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Operation is one journaled CLI command run against a project
type Operation struct {
	ID           string          `json:"id"`
	Command      string          `json:"command"`
	ProjectRoot  string          `json:"project_root"`
	Status       OperationStatus `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	Operator     string          `json:"operator"`
	Result       string          `json:"result"` // outcome state
	ErrorMessage *string         `json:"error_message,omitempty"`
	Telemetry    string          `json:"telemetry"` // JSON blob of the outcome telemetry projection
}

// Duration returns how long the operation ran, zero while it is running.
func (o *Operation) Duration() time.Duration {
	if o.FinishedAt == nil {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// OperationEvent is an append-only event recorded during an operation
type OperationEvent struct {
	ID          int64      `json:"id"`
	OperationID string     `json:"operation_id"`
	Type        string     `json:"type"`
	Phase       string     `json:"phase"`
	Component   string     `json:"component"`
	Level       EventLevel `json:"level"`
	Message     string     `json:"message"`
	Details     *string    `json:"details,omitempty"` // JSON blob
	Timestamp   time.Time  `json:"timestamp"`
}

// Store defines the interface for the operation journal
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Operation records
	CreateOperation(ctx context.Context, op *Operation) error
	FinishOperation(ctx context.Context, op *Operation) error
	GetOperation(ctx context.Context, id string) (*Operation, error)
	ListOperations(ctx context.Context, projectRoot *string, limit, offset int) ([]*Operation, error)
	DeleteOperationsBefore(ctx context.Context, before time.Time) (int64, error)

	// Event records
	AppendEvent(ctx context.Context, event *OperationEvent) error
	GetEvents(ctx context.Context, operationID string, level *EventLevel, limit, offset int) ([]*OperationEvent, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
