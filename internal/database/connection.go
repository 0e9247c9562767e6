package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/scibot/internal/config"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("database: not found")

// DB wraps the sqlx connection pool together with the dialect it speaks.
type DB struct {
	*sqlx.DB
	dialect dialect
}

// Open connects to the configured database and creates the schema if needed.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	switch cfg.Type {
	case config.DriverPostgres:
		conn, err := sqlx.Connect("postgres", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return initialize(conn, postgresDialect)
	case config.DriverSQLite, "":
		path := cfg.SQLitePath
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		conn, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
		if err != nil {
			return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
		}
		// SQLite doesn't support multiple writers
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		return initialize(conn, sqliteDialect)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

// OpenMemory opens a private in-memory SQLite database, used by tests.
func OpenMemory() (*DB, error) {
	conn, err := sqlx.Connect("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory sqlite: %w", err)
	}
	// Every new connection would get its own empty database.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	return initialize(conn, sqliteDialect)
}

func initialize(conn *sqlx.DB, d dialect) (*DB, error) {
	db := &DB{DB: conn, dialect: d}
	if err := db.initializeSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// dialect holds the column types that differ between SQLite and PostgreSQL.
// go-sqlite3 only parses time values from columns declared TIMESTAMP/DATETIME/DATE.
type dialect struct {
	name      string
	autoID    string
	uuid      string
	timestamp string
}

var (
	sqliteDialect = dialect{
		name:      config.DriverSQLite,
		autoID:    "INTEGER PRIMARY KEY AUTOINCREMENT",
		uuid:      "TEXT",
		timestamp: "TIMESTAMP",
	}
	postgresDialect = dialect{
		name:      config.DriverPostgres,
		autoID:    "BIGSERIAL PRIMARY KEY",
		uuid:      "UUID",
		timestamp: "TIMESTAMPTZ",
	}
)

func (d dialect) render(ddl string) string {
	return strings.NewReplacer(
		"{{AUTO_ID}}", d.autoID,
		"{{UUID}}", d.uuid,
		"{{TIMESTAMP}}", d.timestamp,
	).Replace(ddl)
}

var schema = []struct {
	name string
	ddl  string
}{
	{"learners", `
		CREATE TABLE IF NOT EXISTS learners (
			id {{UUID}} PRIMARY KEY,
			telegram_id BIGINT UNIQUE,
			username TEXT NOT NULL DEFAULT '',
			lambda_coef DOUBLE PRECISION,
			notification_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			notification_hour INTEGER NOT NULL DEFAULT 9,
			reviews_per_day INTEGER NOT NULL DEFAULT 10,
			created_at {{TIMESTAMP}} NOT NULL,
			updated_at {{TIMESTAMP}} NOT NULL
		)`},
	{"concepts", `
		CREATE TABLE IF NOT EXISTS concepts (
			id {{AUTO_ID}},
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at {{TIMESTAMP}} NOT NULL
		)`},
	{"user_knowledge", `
		CREATE TABLE IF NOT EXISTS user_knowledge (
			learner_id {{UUID}} NOT NULL REFERENCES learners(id),
			concept_id BIGINT NOT NULL REFERENCES concepts(id),
			retention DOUBLE PRECISION NOT NULL,
			last_reviewed {{TIMESTAMP}},
			next_review {{TIMESTAMP}} NOT NULL,
			PRIMARY KEY (learner_id, concept_id)
		)`},
	{"idx_user_knowledge_learner_review", `
		CREATE INDEX IF NOT EXISTS idx_user_knowledge_learner_review
			ON user_knowledge (learner_id, next_review)`},
	{"idx_user_knowledge_retention", `
		CREATE INDEX IF NOT EXISTS idx_user_knowledge_retention
			ON user_knowledge (retention)`},
	{"retention_logs", `
		CREATE TABLE IF NOT EXISTS retention_logs (
			id {{AUTO_ID}},
			learner_id {{UUID}} NOT NULL REFERENCES learners(id),
			concept_id BIGINT NOT NULL REFERENCES concepts(id),
			quality DOUBLE PRECISION NOT NULL,
			old_lambda DOUBLE PRECISION NOT NULL,
			new_lambda DOUBLE PRECISION NOT NULL,
			retention_before DOUBLE PRECISION NOT NULL,
			retention_after DOUBLE PRECISION NOT NULL,
			interval_days INTEGER NOT NULL,
			timestamp {{TIMESTAMP}} NOT NULL,
			UNIQUE (learner_id, concept_id, timestamp)
		)`},
	{"idx_retention_log_concept", `
		CREATE INDEX IF NOT EXISTS idx_retention_log_concept
			ON retention_logs (concept_id)`},
}

// initializeSchema creates necessary tables if they don't exist
func (db *DB) initializeSchema() error {
	for _, stmt := range schema {
		if _, err := db.Exec(db.dialect.render(stmt.ddl)); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}
