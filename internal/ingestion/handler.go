package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"WyvernExchange/internal/event"
	"WyvernExchange/internal/exchange"
	"WyvernExchange/internal/observability"
	"WyvernExchange/internal/signature"

	"github.com/rs/zerolog"
)

// Outcome of handling one command.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeRejected
	OutcomeRetry
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeRejected:
		return "rejected"
	default:
		return "retry"
	}
}

// Handler authenticates and applies commands. Business rejections,
// authentication failures and malformed payloads are acknowledged and
// published as CommandRejected; anything else is left for redelivery.
type Handler struct {
	x       *exchange.Exchange
	auth    *Authenticator
	rejects event.Sink
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewHandler(x *exchange.Exchange, rejects event.Sink, logger zerolog.Logger, metrics *observability.Metrics) *Handler {
	if rejects == nil {
		rejects = event.MultiSink{}
	}
	return &Handler{
		x:       x,
		auth:    NewAuthenticator(signature.NewEd25519Verifier(), time.Now),
		rejects: rejects,
		logger:  logger.With().Str("component", "command_handler").Logger(),
		metrics: metrics,
	}
}

// WithAuthenticator replaces the default authenticator.
func (h *Handler) WithAuthenticator(a *Authenticator) *Handler {
	h.auth = a
	return h
}

// Handle verifies, parses and applies one signed command.
func (h *Handler) Handle(ctx context.Context, name string, data []byte) Outcome {
	if h.metrics != nil {
		h.metrics.CommandsReceived.WithLabelValues(name).Inc()
	}

	signed, err := h.auth.Open(name, data)
	if err != nil {
		return h.settle(ctx, name, err)
	}
	cmd, err := ParseCommand(name, signed.Payload)
	if err != nil {
		return h.settle(ctx, name, err)
	}
	if cmd.Caller() != signed.Caller {
		return h.settle(ctx, name, fmt.Errorf("%w: payload %s, signer %s",
			ErrCallerMismatch, cmd.Caller().Short(), signed.Caller.Short()))
	}
	if err := h.auth.Claim(signed); err != nil {
		return h.settle(ctx, name, err)
	}

	outcome := h.settle(ctx, name, cmd.Apply(ctx, h.x))
	if outcome == OutcomeRetry {
		h.auth.Release(signed)
	}
	return outcome
}

func (h *Handler) settle(ctx context.Context, name string, err error) Outcome {
	_, authFailure := authCode(err)
	switch {
	case err == nil:
		return OutcomeApplied
	case authFailure, errors.Is(err, ErrMalformedCommand), exchange.IsRejection(err):
		h.reject(ctx, name, err)
		return OutcomeRejected
	default:
		h.logger.Error().Err(err).Str("command", name).Msg("command failed, will retry")
		if h.metrics != nil {
			h.metrics.CommandsNaked.WithLabelValues(name).Inc()
		}
		return OutcomeRetry
	}
}

func (h *Handler) reject(ctx context.Context, name string, err error) {
	code := exchange.Code(err)
	if c, ok := authCode(err); ok {
		code = c
	} else if errors.Is(err, ErrMalformedCommand) {
		code = "MalformedCommand"
	}
	h.logger.Info().Err(err).Str("command", name).Str("code", code).Msg("command rejected")

	env, envErr := event.NewEnvelope(&event.CommandRejected{
		Command: name,
		Code:    code,
		Reason:  err.Error(),
	}, time.Now().UTC())
	if envErr != nil {
		h.logger.Error().Err(envErr).Msg("build rejection event")
		return
	}
	if pubErr := h.rejects.Publish(ctx, []event.Envelope{env}); pubErr != nil {
		h.logger.Warn().Err(pubErr).Str("command", name).Msg("rejection publish failed")
	}
}

// Run drains rawChan until ctx is cancelled or the channel closes, acking or
// nacking each message by outcome.
func (h *Handler) Run(ctx context.Context, rawChan <-chan RawCommand) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-rawChan:
			if !ok {
				return nil
			}
			outcome := h.Handle(ctx, raw.Command, raw.Data)
			if h.metrics != nil {
				h.metrics.IngestToApply.WithLabelValues(raw.Command).Observe(time.Since(raw.Timestamp).Seconds())
			}
			if outcome == OutcomeRetry {
				h.logger.Warn().Str("command", raw.Command).Uint64("deliveries", raw.Deliveries).Msg("command will be redelivered")
				if raw.NakFunc != nil {
					raw.NakFunc()
				}
				continue
			}
			if raw.AckFunc != nil {
				raw.AckFunc()
			}
		}
	}
}
