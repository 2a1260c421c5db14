package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"WyvernExchange/internal/event"
	"WyvernExchange/internal/order"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nats-io/nats.go/jetstream"
)

// Outbound events go to wyvern.events.{EventType}.
const (
	EventStream        = "WYVERN_EVENTS"
	EventSubjectPrefix = "wyvern.events."
)

// WireEnvelope is the JSON form of an envelope published to downstream
// consumers.
type WireEnvelope struct {
	Sequence  int64           `json:"sequence"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	OrderHash string          `json:"order_hash,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Journals  []WireJournal   `json:"journals,omitempty"`
	StateHash hexutil.Bytes   `json:"state_hash"`
	PrevHash  hexutil.Bytes   `json:"prev_hash"`
}

type WireJournal struct {
	JournalID     string          `json:"journal_id"`
	BatchID       string          `json:"batch_id"`
	EventRef      string          `json:"event_ref"`
	JournalType   string          `json:"journal_type"`
	Currency      order.AccountID `json:"currency"`
	DebitAccount  order.AccountID `json:"debit_account"`
	CreditAccount order.AccountID `json:"credit_account"`
	Amount        string          `json:"amount"`
}

// ToWire converts env for publishing.
func ToWire(env *event.Envelope) WireEnvelope {
	w := WireEnvelope{
		Sequence:  env.Sequence,
		EventID:   env.EventID.String(),
		EventType: env.EventType.String(),
		Timestamp: env.Timestamp,
		Payload:   env.Payload,
		StateHash: env.StateHash[:],
		PrevHash:  env.PrevHash[:],
	}
	if env.OrderHash != nil {
		w.OrderHash = env.OrderHash.Hex()
	}
	for i := range env.Journals {
		j := &env.Journals[i]
		w.Journals = append(w.Journals, WireJournal{
			JournalID:     j.JournalID.String(),
			BatchID:       j.BatchID.String(),
			EventRef:      j.EventRef,
			JournalType:   j.JournalType.String(),
			Currency:      j.Currency,
			DebitAccount:  j.DebitAccount,
			CreditAccount: j.CreditAccount,
			Amount:        order.FormatBalance(&j.Amount),
		})
	}
	return w
}

// EventSubject returns the subject env is published on.
func EventSubject(env *event.Envelope) string {
	return EventSubjectPrefix + env.EventType.String()
}

// JetStreamSink publishes envelopes to JetStream. The event id doubles as the
// message id, so a republished envelope is deduplicated by the stream.
type JetStreamSink struct {
	js jetstream.JetStream
}

func NewJetStreamSink(js jetstream.JetStream) *JetStreamSink {
	return &JetStreamSink{js: js}
}

func (s *JetStreamSink) Publish(ctx context.Context, envs []event.Envelope) error {
	var errs []error
	for i := range envs {
		data, err := json.Marshal(ToWire(&envs[i]))
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal event %d: %w", envs[i].Sequence, err))
			continue
		}
		if _, err := s.js.Publish(ctx, EventSubject(&envs[i]), data,
			jetstream.WithMsgID(envs[i].EventID.String()),
		); err != nil {
			errs = append(errs, fmt.Errorf("publish event %d: %w", envs[i].Sequence, err))
		}
	}
	return errors.Join(errs...)
}
