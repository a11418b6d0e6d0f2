package capture

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/parlavoice/core/internal/logging"
)

// ColumnCache maps table names to their ordered column names so that change
// events can carry real labels instead of positional ones. The pre-update
// hook boundary exposes no column metadata, and querying the engine from
// inside the hook is off-limits, so the cache is introspected out-of-band:
// warmed after migrations and refreshed asynchronously on a miss. Until a
// miss resolves, events fall back to positional col_<i> labels.
type ColumnCache struct {
	db  *sql.DB
	log *logging.Logger

	mu      sync.RWMutex
	names   map[string][]string
	pending map[string]struct{}

	refreshing atomic.Bool
}

// NewColumnCache creates an empty cache backed by the given handle.
// Introspection queries go through the normal pool, never from inside
// the hook itself.
func NewColumnCache(db *sql.DB) *ColumnCache {
	return &ColumnCache{
		db:      db,
		log:     logging.Scoped("columns"),
		names:   make(map[string][]string),
		pending: make(map[string]struct{}),
	}
}

// Bind attaches the introspection handle after the fact. The cache is
// created before the database opens (the interceptor needs it first), so
// the handle arrives once migrations have run.
func (c *ColumnCache) Bind(db *sql.DB) {
	c.mu.Lock()
	c.db = db
	c.mu.Unlock()
}

func (c *ColumnCache) handle() *sql.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Warm introspects every user table up front. Call it once after migrations.
func (c *ColumnCache) Warm() error {
	db := c.handle()
	if db == nil {
		return nil
	}
	rows, err := db.Query(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, table := range tables {
		if err := c.introspect(table); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the cached column names for a table, or nil when unknown.
// Only the main database is introspected; attached schemas keep positional
// labels. A miss schedules an asynchronous refresh and returns immediately,
// because this is called from inside the write-path hook.
func (c *ColumnCache) Names(dbName, table string) []string {
	if dbName != "" && dbName != "main" {
		return nil
	}

	c.mu.RLock()
	names, ok := c.names[table]
	c.mu.RUnlock()
	if ok {
		return names
	}

	c.mu.Lock()
	c.pending[table] = struct{}{}
	c.mu.Unlock()

	c.kickRefresh()
	return nil
}

// kickRefresh starts a background refresh unless one is already running.
func (c *ColumnCache) kickRefresh() {
	if c.handle() == nil {
		return
	}
	if !c.refreshing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.refreshing.Store(false)
		c.drainPending()
	}()
}

func (c *ColumnCache) drainPending() {
	for {
		c.mu.Lock()
		var table string
		for t := range c.pending {
			table = t
			break
		}
		if table == "" {
			c.mu.Unlock()
			return
		}
		delete(c.pending, table)
		c.mu.Unlock()

		if err := c.introspect(table); err != nil {
			c.log.Warn("column introspection failed", map[string]interface{}{
				"table": table, "error": err.Error(),
			})
		}
	}
}

// introspect loads a table's ordered column names.
func (c *ColumnCache) introspect(table string) error {
	db := c.handle()
	if db == nil {
		return nil
	}
	rows, err := db.Query("SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return fmt.Errorf("failed to introspect %s: %w", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(names) == 0 {
		// Unknown table, nothing to record.
		return nil
	}

	c.mu.Lock()
	c.names[table] = names
	c.mu.Unlock()
	return nil
}
