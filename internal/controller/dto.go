package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"todo-lifecycle/internal/models"
)

// localLayout is accepted for due times sent without a zone; they are read as UTC.
const localLayout = "2006-01-02T15:04:05"

// DueTime accepts RFC3339 or a zone-less local timestamp.
type DueTime struct {
	time.Time
}

func (d *DueTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("due_datetime must be a string: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		d.Time = t.UTC()
		return nil
	}
	t, err := time.ParseInLocation(localLayout, raw, time.UTC)
	if err != nil {
		return fmt.Errorf("due_datetime %q: want RFC3339 or %s", raw, localLayout)
	}
	d.Time = t
	return nil
}

type createTodoRequest struct {
	Description string   `json:"description" binding:"required"`
	DueDatetime *DueTime `json:"due_datetime" binding:"required"`
}

type updateDescriptionRequest struct {
	Description string `json:"description" binding:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type commandRequest struct {
	Action      string   `json:"action" binding:"required"`
	ID          int64    `json:"id"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	DueDatetime *DueTime `json:"due_datetime"`
}

type todoResponse struct {
	ID               int64      `json:"id"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	CreationDatetime time.Time  `json:"creation_datetime"`
	DueDatetime      time.Time  `json:"due_datetime"`
	DoneDatetime     *time.Time `json:"done_datetime"`
}

func toResponse(t models.Todo) todoResponse {
	return todoResponse{
		ID:               t.ID,
		Description:      t.Description,
		Status:           string(t.Status),
		CreationDatetime: t.CreatedAt,
		DueDatetime:      t.DueAt,
		DoneDatetime:     t.DoneAt,
	}
}

func toResponses(todos []models.Todo) []todoResponse {
	out := make([]todoResponse, 0, len(todos))
	for _, t := range todos {
		out = append(out, toResponse(t))
	}
	return out
}
