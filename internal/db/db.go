// Package db provides database connection management, schema migrations and
// the entity repositories for Parla Core.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/parlavoice/core/internal/capture"
)

// DB wraps the sql.DB with Parla-specific configuration.
type DB struct {
	*sql.DB
}

// Each Open registers a fresh driver name: database/sql forbids
// re-registering a name, and every store carries its own ConnectHook.
var driverSeq atomic.Uint64

// Open opens the on-device SQLite database with:
// - WAL mode for concurrent reads alongside the single writer
// - foreign key constraints enabled
// - a busy timeout so short lock contention does not surface as errors
//
// When interceptor is non-nil it is attached to every new driver
// connection, so the mutation-capture hook sees all writes. In builds
// without pre-update hook support the attachment is a warn-once no-op.
func Open(dataDir string, interceptor *capture.Interceptor) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "parla.db")
	return open(dbPath, interceptor)
}

// OpenPath opens the database at an explicit file path (or ":memory:").
func OpenPath(dbPath string, interceptor *capture.Interceptor) (*DB, error) {
	return open(dbPath, interceptor)
}

func open(dbPath string, interceptor *capture.Interceptor) (*DB, error) {
	driverName := fmt.Sprintf("sqlite3_parla_%d", driverSeq.Add(1))
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if interceptor == nil {
				return nil
			}
			return interceptor.Attach(conn)
		},
	})

	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
