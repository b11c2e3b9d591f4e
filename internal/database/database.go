package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps sql.DB for the storefront.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// NewDB opens the database at path and creates missing tables.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode, busy timeout
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path is the file the database lives in.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		// Serialized carts keyed by session
		`CREATE TABLE IF NOT EXISTS carts (
			session_id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		// Journal of confirmed reservations
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id TEXT UNIQUE NOT NULL,
			email TEXT NOT NULL,
			pickup TEXT NOT NULL,
			items TEXT NOT NULL,
			item_count INTEGER NOT NULL DEFAULT 0,
			comments TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_created ON reservations(created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// LoadCart returns the stored cart payload of a session.
func (db *DB) LoadCart(ctx context.Context, sessionID string) ([]byte, error) {
	var data string
	err := db.QueryRowContext(ctx,
		"SELECT data FROM carts WHERE session_id = ?",
		sessionID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

// SaveCart replaces the stored cart payload of a session.
func (db *DB) SaveCart(ctx context.Context, sessionID string, data []byte) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO carts (session_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		sessionID, string(data), time.Now(),
	)
	return err
}

// DeleteCart removes the stored cart of a session.
func (db *DB) DeleteCart(ctx context.Context, sessionID string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM carts WHERE session_id = ?", sessionID)
	return err
}

// PurgeCarts deletes carts not touched since before.
func (db *DB) PurgeCarts(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM carts WHERE updated_at < ?", before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
