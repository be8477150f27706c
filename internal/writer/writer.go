package writer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bidflow/auction-client/internal/router"
)

var errNoDatabase = errors.New("no database configured")

// Writer consumes events from one router buffer and writes them to one table.
type Writer struct {
	cfg    WriterConfig
	table  table
	logger *slog.Logger

	// Input from the message router
	input *router.GrowableBuffer[router.Event]

	db DB

	// Batching
	batch       []router.Event
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle. ctx stops the loops; writeCtx bounds inserts and outlives
	// ctx until the final flush is done.
	ctx         context.Context
	cancel      context.CancelFunc
	writeCtx    context.Context
	writeCancel context.CancelFunc
	wg          sync.WaitGroup

	metrics WriterMetrics
}

// NewBidWriter creates a writer for the bid_events table.
func NewBidWriter(cfg WriterConfig, input *router.GrowableBuffer[router.Event], db DB, logger *slog.Logger) *Writer {
	return newWriter(bidTable, cfg, input, db, logger)
}

// NewParticipantWriter creates a writer for the participant_counts table.
func NewParticipantWriter(cfg WriterConfig, input *router.GrowableBuffer[router.Event], db DB, logger *slog.Logger) *Writer {
	return newWriter(participantTable, cfg, input, db, logger)
}

// NewResultWriter creates a writer for the auction_results table.
func NewResultWriter(cfg WriterConfig, input *router.GrowableBuffer[router.Event], db DB, logger *slog.Logger) *Writer {
	return newWriter(resultTable, cfg, input, db, logger)
}

func newWriter(t table, cfg WriterConfig, input *router.GrowableBuffer[router.Event], db DB, logger *slog.Logger) *Writer {
	def := DefaultWriterConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg:    cfg,
		table:  t,
		input:  input,
		db:     db,
		logger: logger.With("component", "writer", "table", t.name),
		batch:  make([]router.Event, 0, cfg.BatchSize),
	}
}

// Table returns the name of the table this writer inserts into.
func (w *Writer) Table() string {
	return w.table.name
}

// Start begins consuming events and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.writeCtx, w.writeCancel = context.WithCancel(context.WithoutCancel(ctx))
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the writer. Events still buffered are written in a final
// flush bounded by ctx.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("writer stop timed out")
		if w.writeCancel != nil {
			w.writeCancel()
		}
		return ctx.Err()
	}

	for _, ev := range w.input.DrainTo(0) {
		w.add(ev)
	}
	w.flush(ctx)
	if w.writeCancel != nil {
		w.writeCancel()
	}

	w.logger.Info("writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop blocks on the input buffer until the writer stops or the
// buffer is closed.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		ev, err := w.input.Receive(w.ctx)
		if err != nil {
			return
		}
		if w.add(ev) {
			w.flush(w.writeCtx)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.writeCtx)
		}
	}
}

// add appends ev to the batch and reports whether the batch is full.
func (w *Writer) add(ev router.Event) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()

	if ev.Kind != w.table.kind {
		w.metrics.Skipped++
		return false
	}
	w.batch = append(w.batch, ev)
	return len(w.batch) >= w.cfg.BatchSize
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]router.Event, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert sends one pgx.Batch and counts rows skipped by ON CONFLICT.
func (w *Writer) batchInsert(ctx context.Context, events []router.Event) (conflicts int, err error) {
	if w.db == nil {
		return 0, errNoDatabase
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		w.table.queue(batch, ev)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
