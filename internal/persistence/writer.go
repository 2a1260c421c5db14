package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"WyvernExchange/internal/event"
	"WyvernExchange/internal/order"
)

// EventLogWriter writes events and journals to Postgres using multi-row
// INSERTs inside the caller's transaction. Writes are idempotent on the
// primary keys, so a retried batch is harmless.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in event_log.events
type EventRow struct {
	Sequence  int64
	EventID   string
	EventType string
	OrderHash []byte // nil for configuration events
	Payload   []byte // JSON-encoded event payload
	StateHash []byte
	PrevHash  []byte
	Timestamp time.Time
}

// JournalRow represents a row in event_log.journal
type JournalRow struct {
	JournalID     string
	BatchID       string
	EventRef      string
	Sequence      int64
	JournalType   string
	Currency      []byte
	DebitAccount  []byte
	CreditAccount []byte
	Amount        string // decimal, NUMERIC(78,0)
	Timestamp     time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// RowsFromEnvelope flattens env into its event row and journal rows. The
// journals take the envelope's sequence.
func RowsFromEnvelope(env *event.Envelope) (EventRow, []JournalRow) {
	row := EventRow{
		Sequence:  env.Sequence,
		EventID:   env.EventID.String(),
		EventType: env.EventType.String(),
		Payload:   env.Payload,
		StateHash: env.StateHash[:],
		PrevHash:  env.PrevHash[:],
		Timestamp: env.Timestamp,
	}
	if env.OrderHash != nil {
		row.OrderHash = env.OrderHash.Bytes()
	}

	journals := make([]JournalRow, 0, len(env.Journals))
	for i := range env.Journals {
		j := &env.Journals[i]
		journals = append(journals, JournalRow{
			JournalID:     j.JournalID.String(),
			BatchID:       j.BatchID.String(),
			EventRef:      j.EventRef,
			Sequence:      env.Sequence,
			JournalType:   j.JournalType.String(),
			Currency:      j.Currency.Bytes(),
			DebitAccount:  j.DebitAccount.Bytes(),
			CreditAccount: j.CreditAccount.Bytes(),
			Amount:        order.FormatBalance(&j.Amount),
			Timestamp:     time.Unix(j.Timestamp, 0).UTC(),
		})
	}
	return row, journals
}

// WriteEventBatch writes a batch of events to event_log.events using multi-row INSERT.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_id, event_type, order_hash, payload, state_hash, prev_hash, timestamp)
		VALUES `

	const cols = 8
	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*cols)

	for i, e := range events {
		values = append(values, placeholders(i*cols, cols))
		args = append(args,
			e.Sequence, e.EventID, e.EventType, nullBytes(e.OrderHash),
			string(e.Payload), e.StateHash, e.PrevHash, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteJournalBatch writes a batch of journal entries to event_log.journal.
func (w *EventLogWriter) WriteJournalBatch(ctx context.Context, tx *sql.Tx, journals []JournalRow) error {
	if len(journals) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.journal
		(journal_id, batch_id, event_ref, sequence, journal_type, currency, debit_account, credit_account, amount, timestamp)
		VALUES `

	const cols = 10
	values := make([]string, 0, len(journals))
	args := make([]interface{}, 0, len(journals)*cols)

	for i, j := range journals {
		values = append(values, placeholders(i*cols, cols))
		args = append(args,
			j.JournalID, j.BatchID, j.EventRef, j.Sequence, j.JournalType,
			j.Currency, j.DebitAccount, j.CreditAccount, j.Amount, j.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (journal_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LastPersisted returns the highest stored sequence and its chain hash.
// An empty log returns sequence 0 and a nil hash.
func (w *EventLogWriter) LastPersisted(ctx context.Context) (int64, []byte, error) {
	var seq int64
	var hash []byte
	err := w.db.QueryRowContext(ctx,
		`SELECT sequence, state_hash FROM event_log.events ORDER BY sequence DESC LIMIT 1`,
	).Scan(&seq, &hash)
	if err == sql.ErrNoRows {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("query last persisted event: %w", err)
	}
	return seq, hash, nil
}

// placeholders renders "($n+1, ..., $n+cols)".
func placeholders(base, cols int) string {
	var b strings.Builder
	b.WriteByte('(')
	for c := 1; c <= cols; c++ {
		if c > 1 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", base+c)
	}
	b.WriteByte(')')
	return b.String()
}

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
