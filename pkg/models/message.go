package models

import (
	"strings"
	"time"
)

type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// RawRecord is an inbound message as published on the input queue.
// Optional fields stay nil when absent so they round-trip as JSON null.
type RawRecord struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	UserID    *string `json:"user_id,omitempty"`
	Text      *string `json:"text,omitempty"`
	Timestamp *string `json:"timestamp,omitempty"`
}

// Action normalizes Type; unrecognized values are returned lowercased as-is.
func (r RawRecord) Action() Action {
	return Action(strings.ToLower(strings.TrimSpace(r.Type)))
}

func (r RawRecord) HasText() bool {
	return r.Text != nil && *r.Text != ""
}

// ProcessedRecord is either a *DeleteRecord or an *UpdateRecord.
type ProcessedRecord interface {
	RecordAction() Action
	RecordID() string
}

type DeleteRecord struct {
	Action Action `json:"action"`
	ID     string `json:"id"`
}

func NewDeleteRecord(id string) *DeleteRecord {
	return &DeleteRecord{Action: ActionDelete, ID: id}
}

func (r *DeleteRecord) RecordAction() Action { return ActionDelete }
func (r *DeleteRecord) RecordID() string     { return r.ID }

type UpdateRecord struct {
	Action         Action    `json:"action"`
	ID             string    `json:"id"`
	UserID         *string   `json:"user_id"`
	OriginalText   string    `json:"original_text"`
	Timestamp      *string   `json:"timestamp"`
	ProcessingTime float64   `json:"processing_time"`
	ToxicityScore  int       `json:"toxicity_score"`
	IsToxic        bool      `json:"is_toxic"`
	ProcessedAt    time.Time `json:"processed_at"`
}

func (r *UpdateRecord) RecordAction() Action { return ActionUpdate }
func (r *UpdateRecord) RecordID() string     { return r.ID }
