// Package archive persists terminal tasks to a local SQLite database.
//
// The shared key-value store holds live task records; once a task reaches
// COMPLETED or FAILED it stops changing and moves here. The archive is a
// per-worker durable history for inspection and replay, not a coordination
// surface.
package archive

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vinayprograms/taskwire/task"
)

// Common errors.
var (
	ErrNotFound    = errors.New("archived task not found")
	ErrNotTerminal = errors.New("task is not in a terminal state")
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id            TEXT PRIMARY KEY,
	goal          TEXT NOT NULL,
	status        TEXT NOT NULL,
	attempt_count INTEGER NOT NULL,
	record        TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	archived_at   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_archived_at ON tasks(archived_at);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
`

// Store is a SQLite-backed archive of terminal tasks.
type Store struct {
	db *sql.DB
}

// Open creates or opens an archive database at the given path.
// Use ":memory:" for an ephemeral archive.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}

	if err := ensureVersion(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func ensureVersion(db *sql.DB) error {
	var version int
	err := db.QueryRow(`SELECT version FROM schema_info LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		_, err := db.Exec(`INSERT INTO schema_info (version) VALUES (?)`, schemaVersion)
		return err
	}
	if err != nil {
		return fmt.Errorf("read archive schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("archive schema version %d, want %d", version, schemaVersion)
	}
	return nil
}

// Archive stores a terminal task. Archiving the same task again replaces
// the previous row, so duplicate terminal events stay idempotent.
func (s *Store) Archive(t *task.Task) error {
	if !t.Status.IsTerminal() {
		return ErrNotTerminal
	}

	record, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", t.ID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO tasks (id, goal, status, attempt_count, record, created_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			attempt_count = excluded.attempt_count,
			record = excluded.record,
			archived_at = excluded.archived_at`,
		t.ID, t.Goal, t.Status.String(), t.AttemptCount, string(record),
		t.CreatedAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("archive task %s: %w", t.ID, err)
	}
	return nil
}

// Get retrieves an archived task by ID.
// Returns ErrNotFound if the task was never archived.
func (s *Store) Get(id string) (*task.Task, error) {
	var record string
	err := s.db.QueryRow(`SELECT record FROM tasks WHERE id = ?`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read archived task %s: %w", id, err)
	}

	var t task.Task
	if err := json.Unmarshal([]byte(record), &t); err != nil {
		return nil, fmt.Errorf("decode archived task %s: %w", id, err)
	}
	return &t, nil
}

// Recent returns the n most recently archived tasks, newest first.
func (s *Store) Recent(n int) ([]*task.Task, error) {
	rows, err := s.db.Query(
		`SELECT record FROM tasks ORDER BY archived_at DESC, id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list archived tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var t task.Task
		if err := json.Unmarshal([]byte(record), &t); err != nil {
			return nil, fmt.Errorf("decode archived task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// Count returns the number of archived tasks with the given status.
// An empty status counts all archived tasks.
func (s *Store) Count(status task.Status) (int, error) {
	var n int
	var err error
	if status == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE status = ?`, status.String()).Scan(&n)
	}
	return n, err
}

// Close closes the archive database.
func (s *Store) Close() error {
	return s.db.Close()
}
