// Package eventlog persists the engine's observability trail in a
// SQLite journal.
//
// The journal sits outside the engine's transactional boundary on
// purpose: events land as execution proceeds, including for
// invocations that later roll back, so an off-chain monitor can
// reconstruct the balance-injection trail of a failed leg.
package eventlog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - initial schema
const currentSchemaVersion = 1

// Store is a SQLite-backed event journal. It implements
// tollgate.EventSink.
type Store struct {
	db *sql.DB
}

var _ tollgate.EventSink = (*Store)(nil)

// Open creates or opens the journal at path. The database runs in WAL
// mode with a single writer connection, a 5-second busy timeout, and
// foreign keys on; schema and migrations apply idempotently.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("eventlog: path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: connect %s: %w", path, err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent emits.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("eventlog: %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("eventlog: apply schema: %w", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("eventlog: read schema version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("eventlog: journal schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("eventlog: set schema version: %w", err)
		}
	}
	return nil
}

// Emit implements tollgate.EventSink.
func (s *Store) Emit(ctx context.Context, ev types.Event) error {
	attrs, err := json.Marshal(ev.Attributes)
	if err != nil {
		return fmt.Errorf("eventlog: encode attributes: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO events (kind, attributes) VALUES (?, ?)",
		ev.Kind, string(attrs),
	); err != nil {
		return fmt.Errorf("eventlog: insert event: %w", err)
	}
	return nil
}

// Record is one journaled event with its append sequence number.
type Record struct {
	Seq   uint64
	Event types.Event
}

// Filter narrows a Trail read. The zero value reads everything.
type Filter struct {
	// Kinds restricts to the given event kinds. Empty means all.
	Kinds []string
	// AfterSeq skips records at or below the given sequence number.
	AfterSeq uint64
	// Limit caps the number of records returned. Zero means no cap.
	Limit int
}

// Trail reads journaled events in append order.
func (s *Store) Trail(ctx context.Context, f Filter) ([]Record, error) {
	query := "SELECT seq, kind, attributes FROM events WHERE seq > ?"
	args := []any{f.AfterSeq}
	if len(f.Kinds) > 0 {
		query += " AND kind IN (?" + strings.Repeat(", ?", len(f.Kinds)-1) + ")"
		for _, k := range f.Kinds {
			args = append(args, k)
		}
	}
	query += " ORDER BY seq"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventlog: query trail: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var attrs string
		if err := rows.Scan(&rec.Seq, &rec.Event.Kind, &attrs); err != nil {
			return nil, fmt.Errorf("eventlog: scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &rec.Event.Attributes); err != nil {
			return nil, fmt.Errorf("eventlog: decode attributes of event %d: %w", rec.Seq, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: read trail: %w", err)
	}
	return records, nil
}

// Close closes the journal.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
