//go:build !sqlite_preupdate_hook

package capture

import (
	"sync"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// HookAvailable reports whether the driver was built with pre-update hook
// support (-tags sqlite_preupdate_hook).
const HookAvailable = false

var stubWarnOnce sync.Once

// Attach is a no-op in builds without pre-update hook support. The rest of
// the pipeline still runs; it just never receives engine-level events.
func (i *Interceptor) Attach(conn *sqlite3.SQLiteConn) error {
	stubWarnOnce.Do(func() {
		i.log.Warn("sqlite driver built without pre-update hook support, change capture disabled " +
			"(rebuild with -tags sqlite_preupdate_hook)")
	})
	return nil
}
