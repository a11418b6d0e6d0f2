package capture

import (
	"sync"
	"time"

	"github.com/parlavoice/core/internal/logging"
	"github.com/parlavoice/core/internal/telemetry"
)

// Callback receives one serialized change event. The payload is UTF-8 JSON
// in the host wire format. Callbacks are invoked strictly one at a time in
// dequeue order; a slow callback delays subsequent notifications but never
// a database write.
type Callback func(payload []byte)

// Dispatcher drains the event queue on a dedicated goroutine, serializes
// each event and invokes the registered callback. It owns the callback
// state: registration may happen at any time, before or after Start, and
// the last registration wins.
type Dispatcher struct {
	queue *Queue
	log   *logging.Logger

	mu sync.RWMutex
	cb Callback

	stopCh    chan struct{}
	done      chan struct{}
	started   bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher creates a dispatcher for the given queue. The queue's
// receive side belongs to this dispatcher alone.
func NewDispatcher(queue *Queue) *Dispatcher {
	return &Dispatcher{
		queue:  queue,
		log:    logging.Scoped("dispatcher"),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// SetCallback installs the notification callback. nil uninstalls it, in
// which case events are discarded silently (expected during startup before
// the host registers its handler).
func (d *Dispatcher) SetCallback(cb Callback) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
}

// callback snapshots the current callback under the read lock.
func (d *Dispatcher) callback() Callback {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cb
}

// Start launches the dispatch loop. Subsequent calls are no-ops.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.mu.Lock()
		d.started = true
		d.mu.Unlock()
		go d.run()
	})
}

// Stop shuts the pipeline down: the queue rejects new sends, buffered
// events are drained through the callback, the loop goroutine exits and
// the callback is released. Safe to call more than once, and before Start.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.queue.Close()
		close(d.stopCh)
	})
	d.mu.RLock()
	started := d.started
	d.mu.RUnlock()
	if started {
		<-d.done
	}
	d.SetCallback(nil)
}

// run is the dispatch loop. Dequeueing is its only suspension point.
func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case ev := <-d.queue.Events():
			d.deliver(ev)
		case <-d.stopCh:
			d.drain()
			return
		}
	}
}

// drain delivers whatever is still buffered after Stop, without waiting
// for more.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue.Events():
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver serializes one event and hands it to the callback. Serialization
// failures drop the event with a log line; they are never disguised as an
// empty payload. Callback panics are contained here so the loop survives.
func (d *Dispatcher) deliver(ev Event) {
	start := time.Now()

	payload, err := ev.Marshal()
	if err != nil {
		d.log.Error("failed to serialize change event", err, map[string]interface{}{
			"table": ev.Table, "operation": string(ev.Operation),
		})
		return
	}

	cb := d.callback()
	if cb == nil {
		return
	}

	d.invoke(cb, payload, ev)
	telemetry.DispatchDuration.Observe(time.Since(start).Seconds())
}

func (d *Dispatcher) invoke(cb Callback, payload []byte, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.CallbackPanics.Inc()
			d.log.Error("notification callback panicked", nil, map[string]interface{}{
				"panic": r, "table": ev.Table, "operation": string(ev.Operation),
			})
		}
	}()
	cb(payload)
}
