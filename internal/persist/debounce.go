package persist

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce is the write-behind window. Writes within the window
// coalesce into one write of the latest value.
const DefaultDebounce = 500 * time.Millisecond

// debounceState is the per-key write state machine:
// idle → pending(timer) → writing → idle. Making the states explicit
// gives cancellation and flush-on-exit defined meanings.
type debounceState int

const (
	stateIdle debounceState = iota
	statePending
	stateWriting
)

// Debouncer coalesces rapid writes to one persistence key. Write errors
// are logged and swallowed: losing the write-behind cache must never
// block the in-memory transition that triggered it.
type Debouncer struct {
	store *Store
	key   string
	delay time.Duration
	log   *slog.Logger

	mu     sync.Mutex
	state  debounceState
	timer  *time.Timer
	latest any
	dirty  bool
}

// NewDebouncer creates a debouncer for one key. delay <= 0 selects
// DefaultDebounce.
func NewDebouncer(store *Store, key string, delay time.Duration, log *slog.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{store: store, key: key, delay: delay, log: log}
}

// Write schedules v to be persisted. Successive calls within the window
// replace the pending value; only the latest is written.
func (d *Debouncer) Write(v any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.latest = v
	d.dirty = true

	switch d.state {
	case stateIdle:
		d.state = statePending
		d.timer = time.AfterFunc(d.delay, d.fire)
	case statePending:
		d.timer.Reset(d.delay)
	case stateWriting:
		// The in-flight write carries a stale value; the dirty flag
		// makes fire schedule another pass when it finishes.
	}
}

// fire runs on the timer goroutine: move pending → writing, write the
// latest value, then return to idle (or re-arm if a write landed while
// we were busy).
func (d *Debouncer) fire() {
	d.mu.Lock()
	if !d.dirty {
		d.state = stateIdle
		d.mu.Unlock()
		return
	}
	v := d.latest
	d.dirty = false
	d.state = stateWriting
	d.mu.Unlock()

	if err := d.store.Put(d.key, v); err != nil {
		d.log.Warn("debounced write failed", "key", d.key, "error", err)
	}

	d.mu.Lock()
	if d.dirty {
		d.state = statePending
		d.timer = time.AfterFunc(d.delay, d.fire)
	} else {
		d.state = stateIdle
	}
	d.mu.Unlock()
}

// Flush writes any pending value through immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.state == statePending && d.timer != nil {
		d.timer.Stop()
	}
	if !d.dirty {
		if d.state == statePending {
			d.state = stateIdle
		}
		d.mu.Unlock()
		return
	}
	v := d.latest
	d.dirty = false
	d.state = stateWriting
	d.mu.Unlock()

	if err := d.store.Put(d.key, v); err != nil {
		d.log.Warn("flush write failed", "key", d.key, "error", err)
	}

	d.mu.Lock()
	d.state = stateIdle
	d.mu.Unlock()
}

// Close flushes pending writes and stops the timer. The debouncer must
// not be used afterwards.
func (d *Debouncer) Close() {
	d.Flush()
}
