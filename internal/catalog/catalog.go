// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog persists acquisition history in a local SQLite database:
// every completed artifact and every search issued, so past runs can be
// inspected without re-hitting any provider.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/library-engine/pkg/types"
)

const dbFile = "catalog.db"

// Store manages the catalog SQLite database.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// NewStore opens or creates the catalog database at catalogDir/catalog.db,
// creating the schema when missing.
func NewStore(cfg types.CatalogConfig, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.CatalogDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	dbPath := filepath.Join(cfg.CatalogDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS artifacts (
			local_path TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			title TEXT NOT NULL,
			authors TEXT,
			year INTEGER,
			format TEXT,
			size_bytes INTEGER,
			language TEXT,
			publisher TEXT,
			source_locations TEXT,
			sidecar_path TEXT,
			acquired_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_provider ON artifacts(provider)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_title ON artifacts(title)`,
		`CREATE TABLE IF NOT EXISTS searches (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			provider TEXT NOT NULL,
			query TEXT NOT NULL,
			hits INTEGER NOT NULL,
			searched_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordArtifact upserts a completed acquisition, keyed by its local path.
// Re-acquiring the same file overwrites the previous row.
func (s *Store) RecordArtifact(ctx context.Context, artifact types.AcquiredArtifact) error {
	authorsJSON, _ := json.Marshal(artifact.Record.Authors)
	locationsJSON, _ := json.Marshal(artifact.Record.SourceLocations)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (local_path, provider, title, authors, year, format,
			size_bytes, language, publisher, source_locations, sidecar_path, acquired_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(local_path) DO UPDATE SET
			provider=excluded.provider, title=excluded.title, authors=excluded.authors,
			year=excluded.year, format=excluded.format, size_bytes=excluded.size_bytes,
			language=excluded.language, publisher=excluded.publisher,
			source_locations=excluded.source_locations, sidecar_path=excluded.sidecar_path,
			acquired_at=excluded.acquired_at`,
		artifact.LocalPath, string(artifact.Record.Provider), artifact.Record.Title,
		string(authorsJSON), artifact.Record.Year, artifact.Record.Format,
		artifact.Record.SizeBytes, artifact.Record.Language, artifact.Record.Publisher,
		string(locationsJSON), artifact.SidecarPath,
		artifact.AcquiredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns recorded acquisitions, newest first.
func (s *Store) ListArtifacts(ctx context.Context) ([]types.AcquiredArtifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT local_path, provider, title, authors, year, format, size_bytes,
			language, publisher, source_locations, sidecar_path, acquired_at
		 FROM artifacts ORDER BY acquired_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()
	return s.scanArtifacts(rows)
}

// FindArtifacts returns acquisitions whose title contains the given
// substring, newest first.
func (s *Store) FindArtifacts(ctx context.Context, titleSubstring string) ([]types.AcquiredArtifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT local_path, provider, title, authors, year, format, size_bytes,
			language, publisher, source_locations, sidecar_path, acquired_at
		 FROM artifacts WHERE title LIKE ? ORDER BY acquired_at DESC`,
		"%"+titleSubstring+"%")
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()
	return s.scanArtifacts(rows)
}

func (s *Store) scanArtifacts(rows *sql.Rows) ([]types.AcquiredArtifact, error) {
	var artifacts []types.AcquiredArtifact
	for rows.Next() {
		var (
			a                                 types.AcquiredArtifact
			provider                          string
			authorsJSON, locationsJSON, ackAt string
		)
		if err := rows.Scan(&a.LocalPath, &provider, &a.Record.Title, &authorsJSON,
			&a.Record.Year, &a.Record.Format, &a.Record.SizeBytes,
			&a.Record.Language, &a.Record.Publisher, &locationsJSON,
			&a.SidecarPath, &ackAt); err != nil {
			return nil, fmt.Errorf("scanning artifact row: %w", err)
		}
		a.Record.Provider = types.ProviderID(provider)
		// A corrupt column loses that field, not the artifact.
		if err := json.Unmarshal([]byte(authorsJSON), &a.Record.Authors); err != nil {
			s.log.Warn("corrupt authors column",
				zap.String("path", a.LocalPath), zap.Error(err))
		}
		if err := json.Unmarshal([]byte(locationsJSON), &a.Record.SourceLocations); err != nil {
			s.log.Warn("corrupt source_locations column",
				zap.String("path", a.LocalPath), zap.Error(err))
		}
		if t, err := time.Parse(time.RFC3339Nano, ackAt); err == nil {
			a.AcquiredAt = t
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// SearchEvent is one recorded search.
type SearchEvent struct {
	Provider   types.ProviderID
	Query      string
	Hits       int
	SearchedAt time.Time
}

// RecordSearch appends one provider search to the history.
func (s *Store) RecordSearch(ctx context.Context, provider types.ProviderID, query string, hits int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO searches (provider, query, hits, searched_at) VALUES (?, ?, ?, ?)`,
		string(provider), query, hits, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording search: %w", err)
	}
	return nil
}

// SearchHistory returns the most recent searches, newest first. A limit <= 0
// means all.
func (s *Store) SearchHistory(ctx context.Context, limit int) ([]SearchEvent, error) {
	q := `SELECT provider, query, hits, searched_at FROM searches ORDER BY rowid DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying search history: %w", err)
	}
	defer rows.Close()

	var events []SearchEvent
	for rows.Next() {
		var (
			e        SearchEvent
			provider string
			at       string
		)
		if err := rows.Scan(&provider, &e.Query, &e.Hits, &at); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		e.Provider = types.ProviderID(provider)
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			e.SearchedAt = t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
