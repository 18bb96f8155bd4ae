// Package storage persists captured leads and unanswered questions in a
// local SQLite database so the maintainer can review them after the push
// notification has scrolled by.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding leads and unanswered questions.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database in dataDir and applies pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "twinchat.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" under concurrent turns.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// --- Leads ---

func (s *Store) SaveLead(l Lead) error {
	_, err := s.db.Exec(`
		INSERT INTO leads (id, email, name, notes, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.Email, l.Name, l.Notes, l.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetLead(id string) (Lead, error) {
	var l Lead
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, email, name, notes, created_at FROM leads WHERE id = ?`, id,
	).Scan(&l.ID, &l.Email, &l.Name, &l.Notes, &createdAt)
	if err == sql.ErrNoRows {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Lead{}, fmt.Errorf("parsing created_at: %w", err)
	}
	l.CreatedAt = t
	return l, nil
}

func (s *Store) ListLeads(limit, offset int) ([]Lead, error) {
	rows, err := s.db.Query(`
		SELECT id, email, name, notes, created_at
		FROM leads ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Lead
	for rows.Next() {
		var l Lead
		var createdAt string
		if err := rows.Scan(&l.ID, &l.Email, &l.Name, &l.Notes, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		l.CreatedAt = t
		results = append(results, l)
	}
	return results, rows.Err()
}

func (s *Store) DeleteLead(id string) error {
	res, err := s.db.Exec("DELETE FROM leads WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Unanswered questions ---

func (s *Store) SaveQuestion(q Question) error {
	_, err := s.db.Exec(`
		INSERT INTO questions (id, question, created_at) VALUES (?, ?, ?)`,
		q.ID, q.Question, q.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListQuestions(limit, offset int) ([]Question, error) {
	rows, err := s.db.Query(`
		SELECT id, question, created_at
		FROM questions ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Question
	for rows.Next() {
		var q Question
		var createdAt string
		if err := rows.Scan(&q.ID, &q.Question, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		q.CreatedAt = t
		results = append(results, q)
	}
	return results, rows.Err()
}

func (s *Store) DeleteQuestion(id string) error {
	res, err := s.db.Exec("DELETE FROM questions WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
