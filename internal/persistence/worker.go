package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"WyvernExchange/internal/event"
	"WyvernExchange/internal/observability"

	"github.com/rs/zerolog"
)

// PersistenceWorker appends committed envelopes to the Postgres event log.
// The channel feeding it blocks when full, so a stalled database slows
// publishing instead of losing events.
//
// The worker tracks the chain head it has written. Envelopes at or below
// the head are skipped, which makes redelivery after a restart harmless.
// A break in sequence or prev-hash linkage is logged and counted, and the
// envelope is still written.
type PersistenceWorker struct {
	db        *sql.DB
	writer    *EventLogWriter
	input     <-chan event.Envelope
	batchSize int
	linger    time.Duration
	logger    zerolog.Logger
	metrics   *observability.Metrics

	head event.ChainTip
}

func NewPersistenceWorker(
	db *sql.DB,
	input <-chan event.Envelope,
	batchSize int,
	linger time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *PersistenceWorker {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &PersistenceWorker{
		db:        db,
		writer:    NewEventLogWriter(db),
		input:     input,
		batchSize: batchSize,
		linger:    linger,
		logger:    logger.With().Str("component", "persistence").Logger(),
		metrics:   metrics,
		head:      event.GenesisTip(),
	}
}

// Resume loads the persisted chain head so Run continues from it.
func (pw *PersistenceWorker) Resume(ctx context.Context) (event.ChainTip, error) {
	seq, hash, err := pw.writer.LastPersisted(ctx)
	if err != nil {
		return event.ChainTip{}, err
	}
	if seq == 0 {
		pw.head = event.GenesisTip()
		return pw.head, nil
	}
	if len(hash) != 32 {
		return event.ChainTip{}, fmt.Errorf("event log head %d: state hash is %d bytes", seq, len(hash))
	}
	pw.head = event.ChainTip{Sequence: seq}
	copy(pw.head.Hash[:], hash)
	pw.setLastSequence(seq)
	return pw.head, nil
}

// Head returns the last envelope accepted into a batch.
func (pw *PersistenceWorker) Head() event.ChainTip {
	return pw.head
}

type pendingBatch struct {
	events   []EventRow
	journals []JournalRow
}

func (b *pendingBatch) add(env *event.Envelope) {
	row, journals := RowsFromEnvelope(env)
	b.events = append(b.events, row)
	b.journals = append(b.journals, journals...)
}

func (b *pendingBatch) empty() bool { return len(b.events) == 0 }

func (b *pendingBatch) clear() {
	b.events = b.events[:0]
	b.journals = b.journals[:0]
}

func (b *pendingBatch) lastSequence() int64 {
	return b.events[len(b.events)-1].Sequence
}

// Run collects envelopes into batches, flushing when a batch reaches
// batchSize or the linger timer fires. It returns when ctx is cancelled or
// the input channel is closed, after a final flush.
func (pw *PersistenceWorker) Run(ctx context.Context) error {
	batch := &pendingBatch{
		events:   make([]EventRow, 0, pw.batchSize),
		journals: make([]JournalRow, 0, pw.batchSize*4),
	}

	timer := time.NewTimer(pw.linger)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			pw.finalFlush(batch)
			return ctx.Err()

		case env, ok := <-pw.input:
			if !ok {
				pw.finalFlush(batch)
				return nil
			}
			if !pw.accept(&env) {
				continue
			}
			batch.add(&env)
			if len(batch.events) >= pw.batchSize {
				pw.flushWithRetry(ctx, batch, "size")
				timer.Reset(pw.linger)
			}

		case <-timer.C:
			if !batch.empty() {
				pw.flushWithRetry(ctx, batch, "linger")
			}
			timer.Reset(pw.linger)
		}
	}
}

// accept decides whether env belongs in the log and advances the head.
func (pw *PersistenceWorker) accept(env *event.Envelope) bool {
	// Command rejections carry no sequence.
	if env.Sequence == 0 {
		return false
	}
	if env.Sequence <= pw.head.Sequence {
		pw.countError("duplicate")
		pw.logger.Debug().Int64("sequence", env.Sequence).Int64("head", pw.head.Sequence).Msg("skipping persisted event")
		return false
	}
	if env.Sequence != pw.head.Sequence+1 || env.PrevHash != pw.head.Hash {
		pw.countError("chain_gap")
		pw.logger.Error().
			Int64("sequence", env.Sequence).
			Int64("expected", pw.head.Sequence+1).
			Bool("prev_hash_match", env.PrevHash == pw.head.Hash).
			Msg("event chain discontinuity")
	}
	pw.head = event.ChainTip{Sequence: env.Sequence, Hash: env.StateHash}
	return true
}

func (pw *PersistenceWorker) finalFlush(batch *pendingBatch) {
	if batch.empty() {
		return
	}
	if err := pw.flush(context.Background(), batch); err != nil {
		pw.logger.Error().Err(err).Int("events", len(batch.events)).Msg("final flush failed")
		return
	}
	batch.clear()
}

// flushWithRetry backs off exponentially until the write lands. Once ctx
// is cancelled it makes a single last attempt on a fresh context.
func (pw *PersistenceWorker) flushWithRetry(ctx context.Context, batch *pendingBatch, trigger string) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			pw.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Str("trigger", trigger).
				Int64("last_sequence", batch.lastSequence()).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if err := pw.flush(context.Background(), batch); err != nil {
					pw.logger.Error().Err(err).Int("events", len(batch.events)).Msg("flush abandoned on shutdown")
				}
				batch.clear()
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
		}

		if err := pw.flush(ctx, batch); err == nil {
			if attempt > 0 {
				pw.logger.Info().Int("retries", attempt).Msg("persistence flush recovered")
			}
			batch.clear()
			return
		}
		pw.countError("retry")
	}
}

func (pw *PersistenceWorker) flush(ctx context.Context, batch *pendingBatch) error {
	start := time.Now()

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		pw.countError("tx_begin")
		return err
	}
	defer tx.Rollback()

	if err := pw.writer.WriteEventBatch(ctx, tx, batch.events); err != nil {
		pw.countError("write_events")
		return err
	}
	if err := pw.writer.WriteJournalBatch(ctx, tx, batch.journals); err != nil {
		pw.countError("write_journals")
		return err
	}
	if err := tx.Commit(); err != nil {
		pw.countError("tx_commit")
		return err
	}

	last := batch.lastSequence()
	took := time.Since(start)
	pw.logger.Debug().
		Int("events", len(batch.events)).
		Int("journals", len(batch.journals)).
		Int64("last_sequence", last).
		Dur("took", took).
		Msg("batch persisted")

	if pw.metrics != nil {
		pw.metrics.PersistBatchDur.Observe(took.Seconds())
		pw.metrics.PersistBatchSize.Observe(float64(len(batch.events)))
		pw.metrics.PersistEventsWritten.Add(float64(len(batch.events)))
		pw.metrics.PersistJournalsWritten.Add(float64(len(batch.journals)))
	}
	pw.setLastSequence(last)
	return nil
}

func (pw *PersistenceWorker) setLastSequence(seq int64) {
	if pw.metrics != nil {
		pw.metrics.PersistLastSequence.Set(float64(seq))
	}
}

func (pw *PersistenceWorker) countError(kind string) {
	if pw.metrics != nil {
		pw.metrics.PersistErrors.WithLabelValues(kind).Inc()
	}
}

// Writer returns the underlying writer.
func (pw *PersistenceWorker) Writer() *EventLogWriter {
	return pw.writer
}
