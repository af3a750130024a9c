// Package database provides SQLite connection management for the
// {paper,live}_* relational table families (spec.md section 3/6).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Profile tunes the PRAGMAs and connection pool for a database's access
// pattern, matching the teacher's ledger/cache/standard split.
type Profile string

const (
	// ProfileLedger: maximum durability, for order/fill/plan/ledger/pnl tables.
	ProfileLedger Profile = "ledger"
	// ProfileCache: maximum speed, for ephemeral/derived tables (none in this
	// core today, kept for symmetry with the teacher's profile set).
	ProfileCache Profile = "cache"
	// ProfileStandard: balanced default.
	ProfileStandard Profile = "standard"
)

// Config describes one SQLite database to open.
type Config struct {
	Path    string
	Profile Profile
	Name    string
}

// DB wraps a *sql.DB with profile-aware PRAGMA tuning.
type DB struct {
	conn    *sql.DB
	path    string
	profile Profile
	name    string
}

// Open opens (creating if necessary) a SQLite database with the PRAGMAs
// appropriate to its profile.
func Open(cfg Config) (*DB, error) {
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve database path %s: %w", cfg.Name, err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory for %s: %w", cfg.Name, err)
		}
		cfg.Path = absPath
	}
	if cfg.Profile == "" {
		cfg.Profile = ProfileStandard
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg.Path, cfg.Profile))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Name, err)
	}
	configureConnectionPool(conn, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database %s: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: cfg.Path, profile: cfg.Profile, name: cfg.Name}, nil
}

func buildConnectionString(path string, profile Profile) string {
	connStr := path + "?_pragma=journal_mode(WAL)"

	switch profile {
	case ProfileLedger:
		connStr += "&_pragma=synchronous(FULL)"
		connStr += "&_pragma=auto_vacuum(NONE)"
	case ProfileCache:
		connStr += "&_pragma=synchronous(OFF)"
		connStr += "&_pragma=auto_vacuum(FULL)"
		connStr += "&_pragma=temp_store(MEMORY)"
	case ProfileStandard:
		connStr += "&_pragma=synchronous(NORMAL)"
		connStr += "&_pragma=auto_vacuum(INCREMENTAL)"
		connStr += "&_pragma=temp_store(MEMORY)"
	}

	connStr += "&_pragma=foreign_keys(1)"
	connStr += "&_pragma=wal_autocheckpoint(1000)"
	connStr += "&_pragma=cache_size(-64000)"

	return connStr
}

func configureConnectionPool(conn *sql.DB, profile Profile) {
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(24 * time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	if profile == ProfileCache {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(2)
	}
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// Conn returns the underlying *sql.DB for repositories.
func (db *DB) Conn() *sql.DB { return db.conn }

// Name returns the friendly database name used for logging/schema lookup.
func (db *DB) Name() string { return db.name }

// Migrate executes the embedded schema for this database's name. Unknown
// names are a no-op (mirrors the teacher: tables may already exist).
func (db *DB) Migrate() error {
	schema, ok := Schemas[db.name]
	if !ok {
		return nil
	}
	_, err := db.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate database %s: %w", db.name, err)
	}
	return nil
}
