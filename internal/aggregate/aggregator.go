// Package aggregate merges per-document field sets into one record per
// person and hands complete records to the workflow exporter.
//
// # Lifetime
//
// A record is created by the first contribution for a PersonKey, updated by
// every later one, and dropped from memory once it has been exported. The
// persistence gateway holds the durable copy, so a cold cache (for example
// after a restart) is refilled from it.
//
// # Export Once
//
// Contributions for one key are serialised with a per-key lock. The exporter
// runs only on the transition from incomplete to complete. A failed export
// leaves the record pending export until RetryExport is called; nothing
// retries automatically. So does an exporter returning ErrExportDisabled, so
// records completed while export is switched off can be sent later.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ironsheep/doc-intake-mcp/internal/correlate"
	"github.com/ironsheep/doc-intake-mcp/internal/document"
	"github.com/ironsheep/doc-intake-mcp/internal/metrics"
	"github.com/ironsheep/doc-intake-mcp/internal/store"
)

var (
	// ErrPersistence wraps gateway failures. The in-memory record is left
	// untouched when it is returned.
	ErrPersistence = errors.New("record persistence failed")

	// ErrExport wraps exporter failures.
	ErrExport = errors.New("workflow export failed")

	// ErrExportDisabled is returned by an exporter that forwards nothing. The
	// record stays pending export and no failure is counted.
	ErrExportDisabled = errors.New("workflow export disabled")

	// ErrNoRecord is returned when a key has never been contributed to.
	ErrNoRecord = errors.New("no record for person")

	// ErrNotComplete is returned by RetryExport for incomplete records.
	ErrNotComplete = errors.New("record is not complete")

	// ErrAlreadyExported is returned by RetryExport for exported records.
	ErrAlreadyExported = errors.New("record already exported")
)

//go:generate mockgen -source=aggregator.go -destination=mocks/mocks.go -package=mocks Exporter

// Exporter forwards a complete record to the workflow board.
type Exporter interface {
	Export(ctx context.Context, rec Record) error
}

// Status is the aggregation status after a contribution.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
)

// Outcome describes the result of a contribution or export attempt.
type Outcome struct {
	Status Status
	Record Record

	// Exported is true when this call exported the record. It is false with
	// a nil ExportErr when export is disabled.
	Exported bool

	// ExportErr is set when this call attempted an export that failed. The
	// contribution itself still succeeded.
	ExportErr error
}

// Aggregator owns the in-memory records.
type Aggregator struct {
	gateway  store.Gateway
	exporter Exporter
	logger   *slog.Logger
	metrics  *metrics.Metrics

	locks *keyLock

	mu      sync.Mutex
	records map[correlate.PersonKey]*Record
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// New creates an Aggregator.
func New(gateway store.Gateway, exporter Exporter, opts ...Option) *Aggregator {
	a := &Aggregator{
		gateway:  gateway,
		exporter: exporter,
		logger:   slog.Default(),
		locks:    newKeyLock(),
		records:  make(map[correlate.PersonKey]*Record),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Contribute merges fs into the record for key.
//
// The field set is persisted before the record; if either write fails the
// contribution is rejected with ErrPersistence and memory is unchanged.
// The first contribution that completes the record triggers one export.
func (a *Aggregator) Contribute(ctx context.Context, key correlate.PersonKey, fs document.FieldSet) (Outcome, error) {
	if !fs.Kind().Valid() {
		return Outcome{}, fmt.Errorf("contribute %q: invalid kind %q", key, fs.Kind())
	}

	unlock := a.locks.Lock(string(key))
	defer unlock()

	current, err := a.load(ctx, key)
	switch {
	case errors.Is(err, ErrNoRecord):
		current = newRecord(key)
	case err != nil:
		return Outcome{}, err
	}

	docKey := store.DocumentKey(string(key), string(fs.Kind()))
	if err := a.gateway.Put(ctx, store.CollectionDocuments, docKey, fs.Map()); err != nil {
		return Outcome{}, fmt.Errorf("%w: document %s: %w", ErrPersistence, docKey, err)
	}

	next := current.Clone()
	next.merge(fs.Map())
	next.Kinds[fs.Kind()] = true

	if err := a.persist(ctx, next); err != nil {
		return Outcome{}, err
	}

	justCompleted := !current.Complete() && next.Complete()
	if !justCompleted {
		a.keep(&next)
		return Outcome{Status: statusOf(next), Record: next.Clone()}, nil
	}

	a.metrics.IncrementRecordsCompleted()
	a.logger.Info("record complete", "person_key", key)
	return a.export(ctx, &next), nil
}

// RetryExport re-attempts the export of a record left pending by a failed
// export.
func (a *Aggregator) RetryExport(ctx context.Context, key correlate.PersonKey) (Outcome, error) {
	unlock := a.locks.Lock(string(key))
	defer unlock()

	rec, err := a.load(ctx, key)
	if err != nil {
		return Outcome{}, err
	}
	if rec.Exported {
		return Outcome{Status: statusOf(*rec), Record: rec.Clone()}, ErrAlreadyExported
	}
	if !rec.Complete() {
		return Outcome{Status: statusOf(*rec), Record: rec.Clone()}, ErrNotComplete
	}

	next := rec.Clone()
	out := a.export(ctx, &next)
	if out.ExportErr == nil && !out.Exported {
		return out, fmt.Errorf("%w: %s left pending export", ErrExportDisabled, key)
	}
	return out, out.ExportErr
}

// AttachContact merges contact details into the record for key, creating
// the record when none exists yet.
func (a *Aggregator) AttachContact(ctx context.Context, key correlate.PersonKey, contact document.Contact) (Record, error) {
	unlock := a.locks.Lock(string(key))
	defer unlock()

	current, err := a.load(ctx, key)
	switch {
	case errors.Is(err, ErrNoRecord):
		current = newRecord(key)
	case err != nil:
		return Record{}, err
	}

	next := current.Clone()
	next.merge(contact.Fields())
	if err := a.persist(ctx, next); err != nil {
		return Record{}, err
	}
	a.keep(&next)
	return next.Clone(), nil
}

// Record returns a copy of the record for key.
func (a *Aggregator) Record(ctx context.Context, key correlate.PersonKey) (Record, error) {
	unlock := a.locks.Lock(string(key))
	defer unlock()

	rec, err := a.load(ctx, key)
	if err != nil {
		return Record{}, err
	}
	return rec.Clone(), nil
}

// cached reports whether key is held in memory.
func (a *Aggregator) cached(key correlate.PersonKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.records[key]
	return ok
}

// export calls the exporter and records the result. The caller holds the
// key lock.
func (a *Aggregator) export(ctx context.Context, rec *Record) Outcome {
	out := Outcome{Status: StatusComplete}

	err := a.exporter.Export(ctx, rec.Clone())
	if errors.Is(err, ErrExportDisabled) {
		a.logger.Info("export disabled; record left pending export", "person_key", rec.Key)
		a.remember(rec)
		out.Record = rec.Clone()
		return out
	}
	if err != nil {
		a.metrics.ObserveExport(false)
		a.logger.Error("export failed; record left pending export", "person_key", rec.Key, "err", err)
		a.remember(rec)
		out.Record = rec.Clone()
		out.ExportErr = fmt.Errorf("%w: %w", ErrExport, err)
		return out
	}
	a.metrics.ObserveExport(true)

	rec.Exported = true
	out.Exported = true
	out.Record = rec.Clone()

	if err := a.persist(ctx, *rec); err != nil {
		// Keep the flag in memory so this process does not export again.
		a.logger.Error("exported but could not persist export flag", "person_key", rec.Key, "err", err)
		a.remember(rec)
		return out
	}

	a.forget(rec.Key)
	a.logger.Info("record exported", "person_key", rec.Key)
	return out
}

// load returns the record from memory or the gateway. The caller holds the
// key lock.
func (a *Aggregator) load(ctx context.Context, key correlate.PersonKey) (*Record, error) {
	a.mu.Lock()
	rec, ok := a.records[key]
	a.mu.Unlock()
	if ok {
		return rec, nil
	}

	stored, err := a.gateway.Get(ctx, store.CollectionRecords, string(key))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoRecord, key)
		}
		return nil, fmt.Errorf("%w: load %s: %w", ErrPersistence, key, err)
	}
	return decodeRecord(key, stored), nil
}

func (a *Aggregator) persist(ctx context.Context, rec Record) error {
	if err := a.gateway.Put(ctx, store.CollectionRecords, string(rec.Key), rec.encode()); err != nil {
		return fmt.Errorf("%w: record %s: %w", ErrPersistence, rec.Key, err)
	}
	return nil
}

// keep caches rec unless it has been exported; exported records live only
// in the gateway.
func (a *Aggregator) keep(rec *Record) {
	if rec.Exported {
		a.forget(rec.Key)
		return
	}
	a.remember(rec)
}

func (a *Aggregator) remember(rec *Record) {
	a.mu.Lock()
	a.records[rec.Key] = rec
	a.mu.Unlock()
}

func (a *Aggregator) forget(key correlate.PersonKey) {
	a.mu.Lock()
	delete(a.records, key)
	a.mu.Unlock()
}

func statusOf(r Record) Status {
	if r.Complete() {
		return StatusComplete
	}
	return StatusPending
}
