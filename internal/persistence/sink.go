package persistence

import (
	"context"

	"WyvernExchange/internal/event"
	"WyvernExchange/internal/observability"
)

// ChannelSink hands committed envelopes to a PersistenceWorker. Publish
// blocks while the channel is full.
type ChannelSink struct {
	ch      chan<- event.Envelope
	metrics *observability.Metrics
}

func NewChannelSink(ch chan<- event.Envelope, metrics *observability.Metrics) *ChannelSink {
	return &ChannelSink{ch: ch, metrics: metrics}
}

func (s *ChannelSink) Publish(ctx context.Context, envs []event.Envelope) error {
	for i := range envs {
		select {
		case s.ch <- envs[i]:
			continue
		default:
		}

		if s.metrics != nil {
			s.metrics.PersistBackpressure.Inc()
		}
		select {
		case s.ch <- envs[i]:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
