// Package main provides the FFI bridge for the mobile shells.
// Build as shared library: libparlacore.so (Android) / ParlaCore.framework (iOS),
// with -tags sqlite_preupdate_hook so change capture is active.
//
// Ownership contract: every *C.char returned by an export is allocated on
// the C heap and must be released by the caller through FreeString. All
// payloads are null-terminated UTF-8 JSON.
package main

/*
#cgo CFLAGS: -Wall -Wextra
#include <stdlib.h>

typedef void (*parla_change_callback)(const char*);

static void invoke_change_callback(parla_change_callback cb, const char* payload) {
	cb(payload);
}
*/
import "C"
import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/parlavoice/core/internal/capture"
	"github.com/parlavoice/core/internal/config"
	"github.com/parlavoice/core/internal/db"
	"github.com/parlavoice/core/internal/history"
	"github.com/parlavoice/core/internal/logging"
	"github.com/parlavoice/core/internal/models"
	"github.com/parlavoice/core/internal/monitor"
	parlasync "github.com/parlavoice/core/internal/sync"
)

// core holds the bridge's long-lived state behind one mutex. The change
// callback lives outside because registration must work before InitDatabase.
type core struct {
	database   *db.DB
	repo       *db.Repository
	ledger     *history.Ledger
	dispatcher *capture.Dispatcher
	queue      *capture.Queue
	mon        *monitor.Monitor
	transport  *parlasync.DataTransport
}

var (
	mu  sync.Mutex
	app *core

	lastErr string
	lastMu  sync.RWMutex

	// pendingCallback buffers a registration made before InitDatabase.
	callbackMu      sync.Mutex
	pendingCallback C.parla_change_callback
)

func setLastError(err string) {
	lastMu.Lock()
	defer lastMu.Unlock()
	lastErr = err
}

func fail(format string, args ...interface{}) {
	setLastError(fmt.Sprintf(format, args...))
}

// cCallback wraps the registered C function pointer as a dispatcher
// callback. The payload copy is owned by this side and freed after the
// call returns; hosts must copy what they keep.
func cCallback(cb C.parla_change_callback) capture.Callback {
	return func(payload []byte) {
		cs := C.CString(string(payload))
		C.invoke_change_callback(cb, cs)
		C.free(unsafe.Pointer(cs))
	}
}

//export RegisterChangeCallback
// RegisterChangeCallback installs the host's change notification function.
// Callable at any time, including before InitDatabase; the last
// registration wins. Passing NULL uninstalls the callback.
func RegisterChangeCallback(cb C.parla_change_callback) {
	callbackMu.Lock()
	pendingCallback = cb
	callbackMu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	if app != nil {
		if cb == nil {
			app.dispatcher.SetCallback(nil)
		} else {
			app.dispatcher.SetCallback(cCallback(cb))
		}
	}
}

//export InitDatabase
// InitDatabase opens the database under dataDir, applies migrations and
// starts the capture pipeline and the reconciler. Returns 1 on success,
// 0 on failure (see GetLastError). Repeated calls are no-ops.
func InitDatabase(dataDir *C.char) C.int {
	mu.Lock()
	defer mu.Unlock()
	if app != nil {
		return 1
	}

	cfg := config.Default()
	logging.Init(os.Stdout, logging.ParseLevel(cfg.LogLevel))
	dir := C.GoString(dataDir)

	queue := capture.NewQueue(cfg.Capture.QueueCapacity)
	cols := capture.NewColumnCache(nil)
	interceptor := capture.NewInterceptor(queue, cols)

	database, err := db.Open(dir, interceptor)
	if err != nil {
		fail("failed to open database: %v", err)
		return 0
	}

	if err := db.NewMigrator(database.DB).Up(); err != nil {
		fail("failed to apply migrations: %v", err)
		database.Close()
		return 0
	}

	cols.Bind(database.DB)
	if err := cols.Warm(); err != nil {
		// Capture degrades to positional labels; not fatal.
		logging.Warn("failed to warm column cache", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cache, err := db.NewContactCache(db.DefaultContactCacheSize)
	if err != nil {
		fail("failed to create contact cache: %v", err)
		database.Close()
		return 0
	}

	ledger := history.NewLedger(database.DB)
	repo := db.NewRepository(database.DB, ledger, cache)
	transport := parlasync.NewDataTransport(parlasync.NoopSender{}, cfg.Transport.MaxRetries)

	dispatcher := capture.NewDispatcher(queue)
	callbackMu.Lock()
	if pendingCallback != nil {
		dispatcher.SetCallback(cCallback(pendingCallback))
	}
	callbackMu.Unlock()
	dispatcher.Start()

	mon := monitor.New(ledger, cfg.Monitor.PollInterval, cfg.Monitor.Batch)
	mon.RegisterHandler(models.EntityContact, parlasync.NewContactHandler(repo, transport, ledger, cache))
	mon.RegisterHandler(models.EntityMessage, parlasync.NewMessageHandler(repo, transport, ledger))
	mon.Start()

	app = &core{
		database:   database,
		repo:       repo,
		ledger:     ledger,
		dispatcher: dispatcher,
		queue:      queue,
		mon:        mon,
		transport:  transport,
	}
	return 1
}

//export DBReady
// DBReady reports whether InitDatabase has completed successfully.
func DBReady() C.int {
	mu.Lock()
	defer mu.Unlock()
	if app != nil {
		return 1
	}
	return 0
}

//export Shutdown
// Shutdown stops the pipeline and the reconciler, then closes the
// database. Safe to call more than once.
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	if app == nil {
		return
	}
	app.mon.Stop()
	app.dispatcher.Stop()
	app.repo.Close()
	app.database.Close()
	app = nil
}

// withCore runs fn against the initialized core, recording an error when
// the bridge is not ready.
func withCore(fn func(c *core) error) bool {
	mu.Lock()
	defer mu.Unlock()
	if app == nil {
		setLastError("database not initialized")
		return false
	}
	if err := fn(app); err != nil {
		setLastError(err.Error())
		return false
	}
	return true
}

func author(a *C.char) string {
	s := C.GoString(a)
	if s == "" {
		return models.AuthorLocal
	}
	return s
}

// =====================================================
// Contact Operations
// =====================================================

//export ContactUpsert
// ContactUpsert inserts or updates a contact from a JSON document and
// returns the contact id. author selects the ledger partition ("local"
// when empty).
func ContactUpsert(payload, authorName *C.char) *C.char {
	var id string
	ok := withCore(func(c *core) error {
		var err error
		id, err = c.repo.UpsertContactJSON(C.GoString(payload), author(authorName))
		return err
	})
	if !ok {
		return nil
	}
	return C.CString(id)
}

//export ContactGet
// ContactGet returns one contact as JSON, or NULL when missing.
func ContactGet(id *C.char) *C.char {
	var doc string
	ok := withCore(func(c *core) error {
		var err error
		doc, err = c.repo.GetContactJSON(C.GoString(id))
		return err
	})
	if !ok {
		return nil
	}
	return C.CString(doc)
}

//export ContactList
// ContactList returns all contacts as a JSON array.
func ContactList() *C.char {
	var doc string
	ok := withCore(func(c *core) error {
		var err error
		doc, err = c.repo.ListContactsJSON()
		return err
	})
	if !ok {
		return nil
	}
	return C.CString(doc)
}

//export ContactDelete
// ContactDelete removes a contact. Returns 1 on success.
func ContactDelete(id, authorName *C.char) C.int {
	ok := withCore(func(c *core) error {
		return c.repo.DeleteContactJSON(C.GoString(id), author(authorName))
	})
	if !ok {
		return 0
	}
	return 1
}

// =====================================================
// Message Operations
// =====================================================

//export MessageAdd
// MessageAdd inserts a message from a JSON document and returns the
// message id.
func MessageAdd(payload, authorName *C.char) *C.char {
	var id string
	ok := withCore(func(c *core) error {
		var err error
		id, err = c.repo.AddMessageJSON(C.GoString(payload), author(authorName))
		return err
	})
	if !ok {
		return nil
	}
	return C.CString(id)
}

//export MessageGet
// MessageGet returns one message as JSON, or NULL when missing.
func MessageGet(id *C.char) *C.char {
	var doc string
	ok := withCore(func(c *core) error {
		var err error
		doc, err = c.repo.GetMessageJSON(C.GoString(id))
		return err
	})
	if !ok {
		return nil
	}
	return C.CString(doc)
}

// =====================================================
// Status / SeenAt Operations
// =====================================================

//export StatusUpsert
// StatusUpsert stores a contact presence document. Returns 1 on success.
func StatusUpsert(payload, authorName *C.char) C.int {
	ok := withCore(func(c *core) error {
		return c.repo.UpsertContactStatusJSON(C.GoString(payload), author(authorName))
	})
	if !ok {
		return 0
	}
	return 1
}

//export SeenAtUpsert
// SeenAtUpsert stores a seen-at marker document. Returns 1 on success.
func SeenAtUpsert(payload, authorName *C.char) C.int {
	ok := withCore(func(c *core) error {
		return c.repo.UpsertSeenAtJSON(C.GoString(payload), author(authorName))
	})
	if !ok {
		return 0
	}
	return 1
}

// =====================================================
// History / Network Operations
// =====================================================

//export HistoryDump
// HistoryDump returns the full history ledger as a JSON array.
func HistoryDump() *C.char {
	var doc string
	ok := withCore(func(c *core) error {
		records, err := c.ledger.All()
		if err != nil {
			return err
		}
		if records == nil {
			records = []models.HistoryRecord{}
		}
		data, err := json.Marshal(records)
		if err != nil {
			return err
		}
		doc = string(data)
		return nil
	})
	if !ok {
		return nil
	}
	return C.CString(doc)
}

//export SetNetworkAvailable
// SetNetworkAvailable feeds the host platform's reachability signal to the
// sync transport.
func SetNetworkAvailable(available C.int) {
	withCore(func(c *core) error {
		c.transport.SetNetworkAvailable(available != 0)
		return nil
	})
}

// =====================================================
// Memory Management Helpers
// =====================================================

//export GetLastError
// GetLastError returns the last error message.
// Returns a C string that must be freed by the caller.
func GetLastError() *C.char {
	lastMu.RLock()
	defer lastMu.RUnlock()
	return C.CString(lastErr)
}

//export FreeString
// FreeString frees a string allocated by this library.
func FreeString(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

func main() {
	// Main entry point for shared library builds; never executed when
	// loaded as a library.
}
