package exchange

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"WyvernExchange/internal/event"
	"WyvernExchange/internal/ledger"
	"WyvernExchange/internal/observability"
	"WyvernExchange/internal/order"
	"WyvernExchange/internal/signature"
	"WyvernExchange/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Clock supplies the current time. It is read once per operation.
type Clock interface {
	Now() order.Moment
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() order.Moment

func (f ClockFunc) Now() order.Moment { return f() }

// SystemClock reads the wall clock in unix seconds.
var SystemClock Clock = ClockFunc(func() order.Moment {
	return order.Moment(time.Now().Unix())
})

type Options struct {
	// ContractSelf is this instance's id: the value orders must carry in
	// Exchange, the wildcard for taker/fee_recipient/payment_token, and the
	// native escrow account.
	ContractSelf order.AccountID

	Verifier signature.Verifier
	Clock    Clock
	Sink     event.Sink
	Logger   zerolog.Logger
	Metrics  *observability.Metrics

	// RegistryCacheSize bounds the finalized-hash LRU. Zero disables it.
	RegistryCacheSize int
}

// Exchange is the settlement core. Every mutating operation runs under one
// mutex inside one store transaction; events reach the sink only after the
// transaction commits.
type Exchange struct {
	store    store.Store
	self     order.AccountID
	verifier signature.Verifier
	clock    Clock
	sink     event.Sink
	logger   zerolog.Logger
	metrics  *observability.Metrics

	mu        sync.Mutex
	finalized *FinalizedCache
}

func New(s store.Store, opts Options) *Exchange {
	if opts.Verifier == nil {
		opts.Verifier = signature.NewEd25519Verifier()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Sink == nil {
		opts.Sink = event.MultiSink{}
	}
	return &Exchange{
		store:     s,
		self:      opts.ContractSelf,
		verifier:  opts.Verifier,
		clock:     opts.Clock,
		sink:      opts.Sink,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		finalized: NewFinalizedCache(opts.RegistryCacheSize, opts.Metrics),
	}
}

// ContractSelf returns the instance id.
func (x *Exchange) ContractSelf() order.AccountID {
	return x.self
}

// opContext carries one operation's transaction and everything it buffers
// until commit.
type opContext struct {
	tx  store.Tx
	now order.Moment
	cfg Config

	events    []event.Event
	batch     *ledger.Batch
	finalized []common.Hash
}

func (c *opContext) emit(e event.Event) {
	c.events = append(c.events, e)
}

func (x *Exchange) begin(ctx context.Context) (*opContext, error) {
	tx, err := x.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	cfg, err := loadConfig(tx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	return &opContext{tx: tx, now: x.clock.Now(), cfg: cfg}, nil
}

// view runs a read-only fn. Nothing it writes is kept.
func (x *Exchange) view(ctx context.Context, fn func(c *opContext) error) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	c, err := x.begin(ctx)
	if err != nil {
		return err
	}
	defer c.tx.Rollback()
	return fn(c)
}

// run executes fn as one all-or-nothing operation.
func (x *Exchange) run(ctx context.Context, op string, fn func(c *opContext) error) error {
	start := time.Now()

	x.mu.Lock()
	defer x.mu.Unlock()

	c, err := x.begin(ctx)
	if err != nil {
		return err
	}
	defer c.tx.Rollback()

	if err := fn(c); err != nil {
		x.reject(op, err)
		return err
	}

	envs, tip, err := x.seal(c)
	if err != nil {
		return fmt.Errorf("%s: seal events: %w", op, err)
	}
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	for _, h := range c.finalized {
		x.finalized.Add(h)
	}
	x.recordApplied(op, c, tip, time.Since(start))

	if err := x.sink.Publish(ctx, envs); err != nil {
		x.logger.Warn().Err(err).Str("op", op).Int64("sequence", tip.Sequence).Msg("event publish failed")
		if x.metrics != nil {
			x.metrics.PublishFailures.WithLabelValues("exchange").Inc()
		}
	}
	return nil
}

// seal turns buffered events into chained envelopes and writes the new tip
// into the transaction.
func (x *Exchange) seal(c *opContext) ([]event.Envelope, event.ChainTip, error) {
	tip, err := loadChainTip(c.tx)
	if err != nil || len(c.events) == 0 {
		return nil, tip, err
	}

	ts := time.Unix(int64(c.now), 0).UTC()
	envs := make([]event.Envelope, 0, len(c.events))
	for _, e := range c.events {
		env, err := event.NewEnvelope(e, ts)
		if err != nil {
			return nil, tip, err
		}
		envs = append(envs, env)
	}
	if c.batch != nil && len(c.batch.Journals) > 0 {
		envs[len(envs)-1].Journals = c.batch.Journals
	}

	tip = event.Stamp(tip, envs)
	if err := saveChainTip(c.tx, tip); err != nil {
		return nil, tip, err
	}
	return envs, tip, nil
}

func (x *Exchange) reject(op string, err error) {
	code := Code(err)
	lvl := x.logger.Info()
	if !IsRejection(err) {
		lvl = x.logger.Error()
	}
	lvl.Err(err).Str("op", op).Str("code", code).Msg("operation rejected")
	if x.metrics != nil {
		x.metrics.OpsRejected.WithLabelValues(op, code).Inc()
	}
}

func (x *Exchange) recordApplied(op string, c *opContext, tip event.ChainTip, dur time.Duration) {
	x.logger.Debug().Str("op", op).Int64("sequence", tip.Sequence).Int("events", len(c.events)).Msg("operation committed")
	if x.metrics == nil {
		return
	}
	x.metrics.OpsApplied.WithLabelValues(op).Inc()
	x.metrics.OpDuration.WithLabelValues(op).Observe(dur.Seconds())
	x.metrics.Sequence.Set(float64(tip.Sequence))
	if c.batch != nil {
		for i := range c.batch.Journals {
			j := &c.batch.Journals[i]
			x.metrics.Journals.WithLabelValues(j.JournalType.String()).Inc()
			switch j.JournalType {
			case ledger.JournalTypeMakerRelayerFee, ledger.JournalTypeTakerRelayerFee,
				ledger.JournalTypeMakerProtocolFee, ledger.JournalTypeTakerProtocolFee:
				x.metrics.FeesCollected.WithLabelValues(j.JournalType.String()).Add(balanceFloat(&j.Amount))
			}
		}
	}
}

// balanceFloat approximates b for metrics.
func balanceFloat(b *order.Balance) float64 {
	f, _ := new(big.Float).SetInt(b.ToBig()).Float64()
	return f
}

// lookupFinalized checks the LRU, then the store.
func (x *Exchange) lookupFinalized(c *opContext, hash common.Hash) (bool, error) {
	if x.finalized.Contains(hash) {
		return true, nil
	}
	done, err := isCancelledOrFinalized(c.tx, hash)
	if err != nil {
		return false, err
	}
	if done {
		x.finalized.record("store")
		c.finalized = append(c.finalized, hash)
	}
	return done, nil
}
