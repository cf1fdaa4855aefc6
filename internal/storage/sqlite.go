package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/justincastilla/elastic-newsroom-sub000/internal/domain"
)

// SQLiteStore implements StoryStore using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite story store instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better performance
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// NewInMemorySQLiteStore creates an in-memory SQLite store (for testing)
func NewInMemorySQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStore(":memory:")
}

// migrate runs database migrations
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(initialMigration); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

const initialMigration = `
CREATE TABLE IF NOT EXISTS assignments (
    story_id TEXT PRIMARY KEY,
    topic TEXT NOT NULL,
    angle TEXT,
    target_length INTEGER DEFAULT 0,
    priority TEXT NOT NULL DEFAULT 'normal',
    status TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS drafts (
    story_id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    word_count INTEGER NOT NULL,
    status TEXT NOT NULL,
    revisions_applied INTEGER DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    FOREIGN KEY (story_id) REFERENCES assignments(story_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS research_records (
    id TEXT PRIMARY KEY,
    story_id TEXT NOT NULL UNIQUE,
    entries TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    FOREIGN KEY (story_id) REFERENCES assignments(story_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS archive_records (
    id TEXT PRIMARY KEY,
    story_id TEXT NOT NULL UNIQUE,
    refs TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    FOREIGN KEY (story_id) REFERENCES assignments(story_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments(status);
CREATE INDEX IF NOT EXISTS idx_assignments_created_at ON assignments(created_at DESC);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutAssignment inserts or overwrites the assignment for its story ID
func (s *SQLiteStore) PutAssignment(ctx context.Context, a *domain.StoryAssignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (story_id, topic, angle, target_length, priority, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(story_id) DO UPDATE SET
			topic = excluded.topic,
			angle = excluded.angle,
			target_length = excluded.target_length,
			priority = excluded.priority,
			status = excluded.status
	`,
		a.StoryID,
		a.Topic,
		a.Angle,
		a.TargetLength,
		string(a.Priority),
		string(a.Status),
		a.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

// GetAssignment returns the assignment for a story, or ErrNotFound
func (s *SQLiteStore) GetAssignment(ctx context.Context, storyID string) (*domain.StoryAssignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT story_id, topic, angle, target_length, priority, status, created_at
		FROM assignments WHERE story_id = ?
	`, storyID)
	return scanAssignment(row)
}

// ListAssignments returns all known assignments ordered by creation time
func (s *SQLiteStore) ListAssignments(ctx context.Context) ([]*domain.StoryAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT story_id, topic, angle, target_length, priority, status, created_at
		FROM assignments ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.StoryAssignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetStatus updates the status of an existing assignment
func (s *SQLiteStore) SetStatus(ctx context.Context, storyID string, status domain.StoryStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET status = ? WHERE story_id = ?`,
		string(status), storyID,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompareAndSwapStatus transitions status only when it currently equals from.
// The conditional UPDATE gives atomicity without an explicit transaction.
func (s *SQLiteStore) CompareAndSwapStatus(ctx context.Context, storyID string, from, to domain.StoryStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET status = ? WHERE story_id = ? AND status = ?`,
		string(to), storyID, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to swap status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 1 {
		return true, nil
	}

	// Distinguish a lost race from an unknown story
	if _, err := s.GetAssignment(ctx, storyID); err != nil {
		return false, err
	}
	return false, nil
}

// PutDraft stores the draft for its story ID
func (s *SQLiteStore) PutDraft(ctx context.Context, d *domain.Draft) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (story_id, content, word_count, status, revisions_applied, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(story_id) DO UPDATE SET
			content = excluded.content,
			word_count = excluded.word_count,
			status = excluded.status,
			revisions_applied = excluded.revisions_applied,
			updated_at = excluded.updated_at
	`,
		d.StoryID,
		d.Content,
		d.WordCount,
		string(d.Status),
		d.RevisionsApplied,
		d.CreatedAt.Format(time.RFC3339Nano),
		d.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert draft: %w", err)
	}
	return nil
}

// GetDraft returns the draft for a story, or ErrNotFound
func (s *SQLiteStore) GetDraft(ctx context.Context, storyID string) (*domain.Draft, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT story_id, content, word_count, status, revisions_applied, created_at, updated_at
		FROM drafts WHERE story_id = ?
	`, storyID)

	var d domain.Draft
	var status, createdAt, updatedAt string
	err := row.Scan(&d.StoryID, &d.Content, &d.WordCount, &status, &d.RevisionsApplied, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan draft: %w", err)
	}
	d.Status = domain.DraftStatus(status)
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &d, nil
}

// UpdateDraft replaces an existing draft
func (s *SQLiteStore) UpdateDraft(ctx context.Context, d *domain.Draft) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE drafts SET content = ?, word_count = ?, status = ?, revisions_applied = ?, updated_at = ?
		WHERE story_id = ?
	`,
		d.Content,
		d.WordCount,
		string(d.Status),
		d.RevisionsApplied,
		d.UpdatedAt.Format(time.RFC3339Nano),
		d.StoryID,
	)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PutResearch stores the research record once; a second write fails
func (s *SQLiteStore) PutResearch(ctx context.Context, r *domain.ResearchRecord) error {
	entries, err := json.Marshal(r.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode research entries: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO research_records (id, story_id, entries, completed_at) VALUES (?, ?, ?, ?)
	`,
		uuid.New().String(),
		r.StoryID,
		string(entries),
		r.CompletedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyRecorded
		}
		return fmt.Errorf("failed to insert research record: %w", err)
	}
	return nil
}

// GetResearch returns the research record for a story, or ErrNotFound
func (s *SQLiteStore) GetResearch(ctx context.Context, storyID string) (*domain.ResearchRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT story_id, entries, completed_at FROM research_records WHERE story_id = ?`, storyID)

	var r domain.ResearchRecord
	var entries, completedAt string
	err := row.Scan(&r.StoryID, &entries, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan research record: %w", err)
	}
	if err := json.Unmarshal([]byte(entries), &r.Entries); err != nil {
		return nil, fmt.Errorf("failed to decode research entries: %w", err)
	}
	r.CompletedAt, _ = time.Parse(time.RFC3339Nano, completedAt)
	return &r, nil
}

// PutArchive stores the archive record once; a second write fails
func (s *SQLiteStore) PutArchive(ctx context.Context, r *domain.ArchiveRecord) error {
	refs, err := json.Marshal(r.References)
	if err != nil {
		return fmt.Errorf("failed to encode archive references: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO archive_records (id, story_id, refs, completed_at) VALUES (?, ?, ?, ?)
	`,
		uuid.New().String(),
		r.StoryID,
		string(refs),
		r.CompletedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyRecorded
		}
		return fmt.Errorf("failed to insert archive record: %w", err)
	}
	return nil
}

// GetArchive returns the archive record for a story, or ErrNotFound
func (s *SQLiteStore) GetArchive(ctx context.Context, storyID string) (*domain.ArchiveRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT story_id, refs, completed_at FROM archive_records WHERE story_id = ?`, storyID)

	var r domain.ArchiveRecord
	var refs, completedAt string
	err := row.Scan(&r.StoryID, &refs, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan archive record: %w", err)
	}
	if err := json.Unmarshal([]byte(refs), &r.References); err != nil {
		return nil, fmt.Errorf("failed to decode archive references: %w", err)
	}
	r.CompletedAt, _ = time.Parse(time.RFC3339Nano, completedAt)
	return &r, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAssignment(row scanner) (*domain.StoryAssignment, error) {
	var a domain.StoryAssignment
	var priority, status, createdAt string
	err := row.Scan(&a.StoryID, &a.Topic, &a.Angle, &a.TargetLength, &priority, &status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}
	a.Priority = domain.Priority(priority)
	a.Status = domain.StoryStatus(status)
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &a, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
// The full prefix is matched so NOT NULL and CHECK violations stay ordinary
// errors.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
