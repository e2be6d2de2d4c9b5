package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"lesson-sync/internal/models"
)

// Adapter is the PostgreSQL lesson store.
type Adapter struct {
	db     *sql.DB
	config *Config
}

// NewAdapter opens the database, verifies connectivity and runs the
// schema migration.
func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}

	db, err := sql.Open("pgx", config.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
	}

	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health() error {
	return a.db.Ping()
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS students (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS lessons (
			id TEXT PRIMARY KEY,
			student_id TEXT REFERENCES students (id) ON DELETE SET NULL,
			lesson_date TIMESTAMPTZ NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'scheduled',
			source TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT '',
			metadata JSONB DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,

		// (source, external_id) is the dedup identity for sync-created
		// lessons; the partial unique index makes concurrent syncs safe
		// at the store even when two instances race past the gate.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_lessons_source_external_id
			ON lessons (source, external_id)
			WHERE source <> '' AND external_id <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_lesson_date ON lessons (lesson_date)`,
		`CREATE INDEX IF NOT EXISTS idx_lessons_student_id ON lessons (student_id)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// CreateLesson inserts one lesson record.
func (a *Adapter) CreateLesson(ctx context.Context, lesson *models.LessonRecord) error {
	metadataJSON, err := json.Marshal(lesson.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal lesson metadata: %w", err)
	}

	query := `INSERT INTO lessons (id, student_id, lesson_date, location, status, source, external_id, metadata)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = a.db.ExecContext(ctx, query, lesson.ID, lesson.StudentID, lesson.LessonDate,
		lesson.Location, lesson.Status, lesson.Source, lesson.ExternalID, metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to create lesson: %w", err)
	}

	return nil
}

// LessonsAt returns lessons whose lesson_date exactly equals at.
func (a *Adapter) LessonsAt(ctx context.Context, at time.Time) ([]*models.LessonRecord, error) {
	query := `SELECT id, student_id, lesson_date, location, status, source, external_id, metadata, created_at
			  FROM lessons WHERE lesson_date = $1`

	rows, err := a.db.QueryContext(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons at %v: %w", at, err)
	}
	defer rows.Close()

	return scanLessons(rows)
}

// Lessons returns lessons with lesson_date in [from, to).
func (a *Adapter) Lessons(ctx context.Context, from, to time.Time) ([]*models.LessonRecord, error) {
	query := `SELECT id, student_id, lesson_date, location, status, source, external_id, metadata, created_at
			  FROM lessons WHERE lesson_date >= $1 AND lesson_date < $2 ORDER BY lesson_date ASC`

	rows, err := a.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	return scanLessons(rows)
}

func scanLessons(rows *sql.Rows) ([]*models.LessonRecord, error) {
	var lessons []*models.LessonRecord
	for rows.Next() {
		lesson := &models.LessonRecord{}
		var metadataJSON []byte
		err := rows.Scan(&lesson.ID, &lesson.StudentID, &lesson.LessonDate, &lesson.Location,
			&lesson.Status, &lesson.Source, &lesson.ExternalID, &metadataJSON, &lesson.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}

		// A metadata blob that does not parse leaves Metadata nil; the
		// dedup gate then relies on the promoted columns alone and the
		// record can never falsely match.
		if len(metadataJSON) > 0 {
			var metadata map[string]string
			if err := json.Unmarshal(metadataJSON, &metadata); err == nil {
				lesson.Metadata = metadata
			}
		}

		lessons = append(lessons, lesson)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lessons: %w", err)
	}

	return lessons, nil
}

// CreateStudent inserts a student directory row.
func (a *Adapter) CreateStudent(ctx context.Context, student *models.Student) error {
	query := `INSERT INTO students (id, name, email) VALUES ($1, $2, $3)`

	_, err := a.db.ExecContext(ctx, query, student.ID, student.Name, strings.ToLower(student.Email))
	if err != nil {
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// StudentDirectory returns the lowercased-email-to-id mapping.
func (a *Adapter) StudentDirectory(ctx context.Context) (map[string]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, email FROM students`)
	if err != nil {
		return nil, fmt.Errorf("failed to query student directory: %w", err)
	}
	defer rows.Close()

	directory := make(map[string]string)
	for rows.Next() {
		var id, email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		directory[strings.ToLower(email)] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}

	return directory, nil
}
