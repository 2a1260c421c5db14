package event

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Sink receives committed envelopes in sequence order.
type Sink interface {
	Publish(ctx context.Context, envs []Envelope) error
}

// MultiSink fans envelopes out to every sink. All sinks are attempted; the
// errors are joined.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, envs []Envelope) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, envs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySink keeps everything it receives. Used by tests.
type MemorySink struct {
	mu   sync.Mutex
	envs []Envelope
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Publish(_ context.Context, envs []Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envs = append(m.envs, envs...)
	return nil
}

// Envelopes returns a copy of what was received.
func (m *MemorySink) Envelopes() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Envelope, len(m.envs))
	copy(out, m.envs)
	return out
}

// OfType returns the received envelopes of type t.
func (m *MemorySink) OfType(t EventType) []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Envelope
	for _, e := range m.envs {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envs = nil
}

// LogSink writes one structured log line per envelope.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Publish(_ context.Context, envs []Envelope) error {
	for _, e := range envs {
		ev := l.logger.Info().
			Int64("sequence", e.Sequence).
			Str("event_type", e.EventType.String()).
			Hex("state_hash", e.StateHash[:]).
			Int("journals", len(e.Journals)).
			RawJSON("payload", e.Payload)
		if e.OrderHash != nil {
			ev = ev.Str("order_hash", e.OrderHash.Hex())
		}
		ev.Msg("event")
	}
	return nil
}
