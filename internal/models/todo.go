package models

import "time"

// Status is the lifecycle status of a todo item. The string values are the
// wire format.
type Status string

const (
	StatusNotDone Status = "not done"
	StatusDone    Status = "done"
	StatusPastDue Status = "past due"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNotDone, StatusDone, StatusPastDue:
		return true
	default:
		return false
	}
}

// Todo represents a todo item as stored. Version is bumped by the store on
// every write and is what conditional puts compare against.
type Todo struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	DueAt       time.Time  `json:"due_at"`
	DoneAt      *time.Time `json:"done_at,omitempty"`
	Version     int64      `json:"version"`
}

// Command actions carried on the queue.
const (
	ActionCreate            = "create"
	ActionUpdateDescription = "update_description"
	ActionUpdateStatus      = "update_status"
)

// TodoCommand is the message payload for Kafka.
type TodoCommand struct {
	Action      string     `json:"action"`
	ID          int64      `json:"id,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	RequestID   string     `json:"request_id,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
}
