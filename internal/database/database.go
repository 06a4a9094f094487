package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jordanhubbard/convreview/pkg/config"
)

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"
)

// timeLayout is fixed width so TEXT timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Database stores analyses, learnings and the read side of leads.
type Database struct {
	db      *sql.DB
	dialect string
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open picks the dialect named in cfg.
func Open(cfg config.DatabaseConfig) (*Database, error) {
	switch cfg.Type {
	case dialectPostgres:
		return NewPostgres(cfg.DSN)
	case dialectSQLite, "":
		return New(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

// New creates an embedded SQLite database at dbPath.
func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; transactions would otherwise deadlock against the pool.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	d := &Database{db: db, dialect: dialectSQLite}
	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return d, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// DB returns the underlying handle.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Ping checks the connection; used by the health endpoint.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// q adapts ? placeholders to the active dialect.
func (d *Database) q(query string) string {
	if d.dialect == dialectPostgres {
		return rebind(query)
	}
	return query
}

// The schema is portable between SQLite and PostgreSQL: timestamps and JSON
// columns are TEXT, booleans are INTEGER.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		conversation_text TEXT NOT NULL DEFAULT '',
		last_message_at TEXT,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		lead_id TEXT NOT NULL,
		quality_score INTEGER NOT NULL,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		issues_json TEXT NOT NULL DEFAULT '[]',
		overall_assessment TEXT NOT NULL DEFAULT '',
		key_takeaways_json TEXT NOT NULL DEFAULT '[]',
		conversation_snapshot TEXT NOT NULL DEFAULT '',
		message_count INTEGER NOT NULL DEFAULT 0,
		user_feedback TEXT,
		agreed_with_sophie INTEGER,
		learnings_created_json TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		reviewed_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_lead ON analyses(lead_id)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status)`,
	`CREATE TABLE IF NOT EXISTS learnings (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		title TEXT NOT NULL,
		user_guidance TEXT NOT NULL DEFAULT '',
		do_this TEXT NOT NULL DEFAULT '',
		dont_do_this TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL,
		confidence_score DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		times_applied INTEGER NOT NULL DEFAULT 0,
		times_correct INTEGER NOT NULL DEFAULT 0,
		times_incorrect INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		is_active INTEGER NOT NULL DEFAULT 1,
		source TEXT NOT NULL,
		original_issue TEXT NOT NULL DEFAULT '',
		dialogue_transcript_json TEXT NOT NULL DEFAULT '[]',
		conversation_examples_json TEXT NOT NULL DEFAULT '[]',
		last_updated TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_learnings_category ON learnings(category)`,
	`CREATE INDEX IF NOT EXISTS idx_learnings_active ON learnings(is_active)`,
}

func (d *Database) initSchema() error {
	for _, stmt := range schema {
		if _, err := d.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
