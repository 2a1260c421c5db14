package persistence_test

import (
	"WyvernExchange/internal/event"
	"WyvernExchange/internal/ledger"
	"WyvernExchange/internal/observability"
	"WyvernExchange/internal/order"
	"WyvernExchange/internal/persistence"
	"WyvernExchange/internal/testutil"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func sampleEnvelopes(t *testing.T) []event.Envelope {
	t.Helper()
	var currency, buyer, seller order.AccountID
	currency[0], buyer[0], seller[0] = 0x70, 0x01, 0x02

	hash := common.HexToHash("0xabcdef")
	ts := time.Unix(1_700_000_000, 0).UTC()

	cancelled, err := event.NewEnvelope(&event.OrderCancelled{Hash: hash}, ts)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	deposited, err := event.NewEnvelope(&event.Deposited{Currency: currency, Account: buyer, Amount: "500"}, ts)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}

	batch := ledger.NewBatch("match:1", ts.Unix())
	batch.Journals = append(batch.Journals, ledger.Journal{
		JournalID:     uuid.New(),
		BatchID:       batch.BatchID,
		EventRef:      batch.EventRef,
		Currency:      currency,
		DebitAccount:  seller,
		CreditAccount: buyer,
		Amount:        order.NewBalance(500),
		JournalType:   ledger.JournalTypePrice,
		Timestamp:     ts.Unix(),
	})
	deposited.Journals = batch.Journals

	envs := []event.Envelope{cancelled, deposited}
	event.Stamp(event.GenesisTip(), envs)
	return envs
}

// ============================================================================
// Test: RowsFromEnvelope
// ============================================================================

func TestRowsFromEnvelope(t *testing.T) {
	envs := sampleEnvelopes(t)

	row, journals := persistence.RowsFromEnvelope(&envs[0])
	if row.Sequence != 1 || row.EventType != "OrderCancelled" {
		t.Errorf("got %d/%s, want 1/OrderCancelled", row.Sequence, row.EventType)
	}
	if !bytes.Equal(row.OrderHash, common.HexToHash("0xabcdef").Bytes()) {
		t.Error("order hash not carried")
	}
	if len(journals) != 0 {
		t.Errorf("got %d journals, want 0", len(journals))
	}

	row, journals = persistence.RowsFromEnvelope(&envs[1])
	if row.OrderHash != nil {
		t.Error("deposit has no order hash")
	}
	if !bytes.Equal(row.PrevHash, envs[0].StateHash[:]) {
		t.Error("prev hash must link to the previous event")
	}
	if len(journals) != 1 {
		t.Fatalf("got %d journals, want 1", len(journals))
	}
	j := journals[0]
	if j.Sequence != 2 || j.Amount != "500" || j.JournalType != "price" || j.EventRef != "match:1" {
		t.Errorf("got %+v", j)
	}
}

// ============================================================================
// Test: ChannelSink
// ============================================================================

func TestChannelSink_DeliversInOrder(t *testing.T) {
	ch := make(chan event.Envelope, 4)
	sink := persistence.NewChannelSink(ch, nil)

	envs := sampleEnvelopes(t)
	if err := sink.Publish(context.Background(), envs); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	for i := range envs {
		got := <-ch
		if got.Sequence != envs[i].Sequence {
			t.Errorf("got sequence %d, want %d", got.Sequence, envs[i].Sequence)
		}
	}
}

func TestChannelSink_BackpressureHonoursContext(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	ch := make(chan event.Envelope, 1)
	sink := persistence.NewChannelSink(ch, m)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sink.Publish(ctx, sampleEnvelopes(t))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want DeadlineExceeded", err)
	}
	if got := promtest.ToFloat64(m.PersistBackpressure); got != 1 {
		t.Errorf("backpressure: got %v, want 1", got)
	}
}

// ============================================================================
// Test: PersistenceWorker (integration)
// ============================================================================

func TestPersistenceWorker_WritesLog(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ch := make(chan event.Envelope, 8)
	worker := persistence.NewPersistenceWorker(db, ch, 10, 10*time.Millisecond, zerolog.Nop(), nil)

	envs := sampleEnvelopes(t)
	for _, env := range envs {
		ch <- env
	}
	// Rejections are never sequenced and must be skipped.
	ch <- event.Envelope{EventType: event.EventTypeCommandRejected}
	close(ch)

	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	seq, hash, err := worker.Writer().LastPersisted(context.Background())
	if err != nil {
		t.Fatalf("LastPersisted: %v", err)
	}
	if seq != 2 || !bytes.Equal(hash, envs[1].StateHash[:]) {
		t.Errorf("got sequence %d, want 2", seq)
	}

	var journals int
	if err := db.QueryRow(`SELECT COUNT(*) FROM event_log.journal`).Scan(&journals); err != nil {
		t.Fatalf("count journals: %v", err)
	}
	if journals != 1 {
		t.Errorf("got %d journals, want 1", journals)
	}
}

func TestPersistenceWorker_ResumeSkipsPersisted(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	envs := sampleEnvelopes(t)
	m := observability.NewMetrics(prometheus.NewRegistry())

	first := make(chan event.Envelope, 1)
	first <- envs[0]
	close(first)
	w1 := persistence.NewPersistenceWorker(db, first, 10, 10*time.Millisecond, zerolog.Nop(), m)
	if err := w1.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Restarted worker sees the whole stream again.
	second := make(chan event.Envelope, 2)
	second <- envs[0]
	second <- envs[1]
	close(second)
	w2 := persistence.NewPersistenceWorker(db, second, 10, 10*time.Millisecond, zerolog.Nop(), m)
	head, err := w2.Resume(context.Background())
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if head.Sequence != 1 || head.Hash != envs[0].StateHash {
		t.Fatalf("got head %d, want 1", head.Sequence)
	}
	if err := w2.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var events int
	if err := db.QueryRow(`SELECT COUNT(*) FROM event_log.events`).Scan(&events); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 2 {
		t.Errorf("got %d events, want 2", events)
	}
	if got := promtest.ToFloat64(m.PersistErrors.WithLabelValues("duplicate")); got != 1 {
		t.Errorf("duplicates: got %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.PersistErrors.WithLabelValues("chain_gap")); got != 0 {
		t.Errorf("chain gaps: got %v, want 0", got)
	}
	if got := w2.Head().Sequence; got != 2 {
		t.Errorf("got head %d, want 2", got)
	}
}

func TestMigrator_Status(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	status, err := persistence.NewMigrator(db, testutil.MigrationsDir(t), zerolog.Nop()).Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status) != 2 {
		t.Fatalf("got %d migrations, want 2", len(status))
	}
	for _, s := range status {
		if !s.Applied {
			t.Errorf("migration %s not applied", s.File)
		}
		if s.Drifted {
			t.Errorf("migration %s reported drift", s.File)
		}
	}
}
