package models

import (
	"time"
)

// SyncError records one event that failed during a sync pass.
type SyncError struct {
	EventIdentifier string `json:"event_identifier"`
	Message         string `json:"message"`
}

// SyncResult aggregates the outcome of one sync invocation. It is
// returned to the caller and never persisted; CompletedAt lets the
// caller decide when the next automatic sync is due.
type SyncResult struct {
	SyncedCount  int         `json:"synced_count"`
	SkippedCount int         `json:"skipped_count"`
	ErrorCount   int         `json:"error_count"`
	Errors       []SyncError `json:"errors,omitempty"`
	CompletedAt  time.Time   `json:"completed_at"`
}

// RecordError appends a per-event failure and bumps the counter.
func (r *SyncResult) RecordError(identifier, message string) {
	r.ErrorCount++
	r.Errors = append(r.Errors, SyncError{EventIdentifier: identifier, Message: message})
}
