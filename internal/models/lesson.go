package models

import (
	"time"
)

// LessonStatus constants
const (
	LessonStatusScheduled = "scheduled"
	LessonStatusCompleted = "completed"
	LessonStatusCancelled = "cancelled"
)

// Metadata keys every sync-created lesson must carry. The dedup gate
// compares MetaSource and MetaExternalID by exact string equality, so
// changing these keys is a breaking change.
const (
	MetaSource           = "source"
	MetaExternalID       = "externalId"
	MetaSyncedAt         = "syncedAt"
	MetaStudentNameHint  = "studentNameHint"
	MetaStudentEmailHint = "studentEmailHint"
)

// LessonRecord is a stored lesson. Sync only ever creates these; it
// never updates or deletes an existing record.
type LessonRecord struct {
	ID         string            `json:"id"`
	StudentID  *string           `json:"student_id,omitempty"`
	LessonDate time.Time         `json:"lesson_date"`
	Location   string            `json:"location"`
	Status     string            `json:"status"`
	Source     string            `json:"source"`
	ExternalID string            `json:"external_id"`
	Metadata   map[string]string `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// DedupKey returns the (source, externalId) pair for this record.
// Promoted columns win; records written before the columns existed
// fall back to the metadata map. Both empty means the record cannot
// match anything.
func (l *LessonRecord) DedupKey() (source, externalID string) {
	if l.Source != "" || l.ExternalID != "" {
		return l.Source, l.ExternalID
	}
	if l.Metadata == nil {
		return "", ""
	}
	return l.Metadata[MetaSource], l.Metadata[MetaExternalID]
}

// Student is a row in the coach's student directory.
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Identity is the result of best-effort student resolution for one
// event. StudentID is nil when no directory entry matched; DisplayName
// is always present.
type Identity struct {
	StudentID   *string `json:"student_id,omitempty"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email,omitempty"`
}
