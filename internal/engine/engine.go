// Package engine drives one or more aggregation tables from a single event
// stream. The engine owns the thread registry and the flush clock: flushes
// are driven by event timestamps crossing each table's next flush boundary,
// never by wall time, so replayed captures behave like live ones.
//
// Tables are single-threaded by contract, so every table operation runs on
// the engine goroutine. External callers (the HTTP API) mutate tables
// through Do, which marshals the call onto that goroutine.
package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/evtop/evtop/internal/event"
	"github.com/evtop/evtop/internal/table"
)

// Entry is one registered table plus its last published sample.
type Entry struct {
	ID    string
	Name  string
	Table *table.Table

	mu           sync.RWMutex
	lastSample   []table.RenderedRow
	lastSampleTS uint64
}

func (e *Entry) publish(sample []table.RenderedRow, ts uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSample = sample
	e.lastSampleTS = ts
}

// LastSample returns the most recently published rendered sample and its
// flush timestamp. Safe to call from any goroutine.
func (e *Entry) LastSample() ([]table.RenderedRow, uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSample, e.lastSampleTS
}

// Engine multiplexes one event stream over the registered tables.
type Engine struct {
	log     zerolog.Logger
	threads *event.ThreadTable

	tables []*Entry
	byID   map[string]*Entry

	events  chan event.Event
	control chan func()

	eventsSeen uint64
}

func New(logger zerolog.Logger, queueSize int) *Engine {
	if queueSize <= 0 {
		queueSize = 1024
	}

	return &Engine{
		log:     logger.With().Str("component", "engine").Logger(),
		threads: event.NewThreadTable(),
		byID:    make(map[string]*Entry),
		events:  make(chan event.Event, queueSize),
		control: make(chan func()),
	}
}

// Threads returns the engine's thread registry, for wiring into tables.
func (e *Engine) Threads() *event.ThreadTable {
	return e.threads
}

// Register adds a configured table under a display name and returns its
// registry entry. Registration happens during startup, before Run.
func (e *Engine) Register(name string, tbl *table.Table) *Entry {
	entry := &Entry{ID: uuid.NewString(), Name: name, Table: tbl}
	e.tables = append(e.tables, entry)
	e.byID[entry.ID] = entry

	e.log.Info().
		Str("table_id", entry.ID).
		Str("name", name).
		Str("mode", tbl.Mode().String()).
		Uint64("refresh_ns", tbl.RefreshInterval()).
		Msg("Registered table")

	return entry
}

// Tables lists the registered tables.
func (e *Engine) Tables() []*Entry {
	return e.tables
}

// Lookup finds a table by registry id.
func (e *Engine) Lookup(id string) (*Entry, bool) {
	entry, ok := e.byID[id]
	return entry, ok
}

// Submit enqueues an event for processing. It blocks when the queue is
// full, applying backpressure to the source.
func (e *Engine) Submit(evt event.Event) {
	e.events <- evt
}

// Do runs fn on the engine goroutine and waits for it to finish. Use it
// for any table mutation that does not come from the event stream.
func (e *Engine) Do(fn func()) {
	done := make(chan struct{})
	e.control <- func() {
		defer close(done)
		fn()
	}
	<-done
}

// Run consumes the event and control queues until the context is
// cancelled. All table operations happen on this goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info().Int("tables", len(e.tables)).Msg("Engine running")

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Uint64("events", e.eventsSeen).Msg("Engine stopped")
			return ctx.Err()
		case fn := <-e.control:
			fn()
		case evt := <-e.events:
			e.HandleEvent(evt)
		}
	}
}

// HandleEvent runs one event through every table, flushing tables whose
// boundary the event's timestamp has crossed. It may be called directly
// instead of Submit/Run when the caller owns the loop.
func (e *Engine) HandleEvent(evt event.Event) {
	e.eventsSeen++
	e.threads.Observe(evt)

	for _, entry := range e.tables {
		tbl := entry.Table

		if evt.Ts() > tbl.NextFlushTime() {
			prevBoundary := tbl.PrevFlushTime()
			tbl.Flush(evt)

			// The very first tick only arms the flush clock.
			if boundary := tbl.PrevFlushTime(); boundary != 0 {
				delta := tbl.RefreshInterval()
				if prevBoundary != 0 {
					delta = boundary - prevBoundary
				}
				sample := tbl.GetSample(delta)
				entry.publish(tbl.RenderSample(sample, delta), boundary)
			}
		}

		tbl.ProcessEvent(evt)
	}
}

// EventsSeen returns the number of events processed so far.
func (e *Engine) EventsSeen() uint64 {
	return e.eventsSeen
}
