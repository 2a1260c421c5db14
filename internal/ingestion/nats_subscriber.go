package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	CommandStream        = "WYVERN_COMMANDS"
	CommandSubjectPrefix = "wyvern.commands."

	streamMaxAge    = 72 * time.Hour
	eventDedupe     = 2 * time.Minute
	defaultAckWait  = 30 * time.Second
	defaultAttempts = 5
)

// RawCommand is one undecoded command message. Ack settles it; Nak asks
// JetStream to deliver it again.
type RawCommand struct {
	Command    string
	Subject    string
	Data       []byte
	Timestamp  time.Time
	Deliveries uint64
	AckFunc    func()
	NakFunc    func()
}

// SubjectConfig binds a command subject to a durable consumer.
type SubjectConfig struct {
	Subject      string
	Command      string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns one durable consumer per exchange command.
func DefaultSubjects() []SubjectConfig {
	commands := []string{CommandApprove, CommandCancel, CommandMatch, CommandMatchEx, CommandConfig, CommandDeposit}
	out := make([]SubjectConfig, len(commands))
	for i, c := range commands {
		out[i] = SubjectConfig{
			Subject:      CommandSubjectPrefix + c,
			Command:      c,
			ConsumerName: "wyvern-" + c,
			StreamName:   CommandStream,
		}
	}
	return out
}

// NATSSubscriber feeds JetStream command messages into a channel read by
// the Handler. A message that cannot be handed off before ctx ends is
// nacked so another instance can take it.
type NATSSubscriber struct {
	js         jetstream.JetStream
	out        chan<- RawCommand
	ackWait    time.Duration
	maxDeliver int
	running    []jetstream.ConsumeContext
	logger     zerolog.Logger
}

func NewNATSSubscriber(js jetstream.JetStream, out chan<- RawCommand, logger zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{
		js:         js,
		out:        out,
		ackWait:    defaultAckWait,
		maxDeliver: defaultAttempts,
		logger:     logger.With().Str("component", "nats_subscriber").Logger(),
	}
}

// Subscribe starts a consumer for each subject.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, sc := range subjects {
		if err := ns.consume(ctx, sc); err != nil {
			ns.Stop()
			return err
		}
	}
	return nil
}

func (ns *NATSSubscriber) consume(ctx context.Context, sc SubjectConfig) error {
	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, sc.StreamName, jetstream.ConsumerConfig{
		Durable:       sc.ConsumerName,
		FilterSubject: sc.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ns.ackWait,
		MaxDeliver:    ns.maxDeliver,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", sc.ConsumerName, err)
	}

	log := ns.logger.With().Str("consumer", sc.ConsumerName).Logger()
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawCommand{
			Command:   sc.Command,
			Subject:   msg.Subject(),
			Data:      msg.Data(),
			Timestamp: time.Now(),
			AckFunc:   func() { ackOrLog(log, msg.Ack()) },
			NakFunc:   func() { ackOrLog(log, msg.Nak()) },
		}
		if md, err := msg.Metadata(); err == nil {
			raw.Deliveries = md.NumDelivered
			if md.NumDelivered >= uint64(ns.maxDeliver) {
				log.Warn().Uint64("deliveries", md.NumDelivered).Msg("final delivery attempt")
			}
		}

		select {
		case ns.out <- raw:
		case <-ctx.Done():
			ackOrLog(log, msg.Nak())
		}
	}, jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		log.Warn().Err(err).Msg("consume error")
	}))
	if err != nil {
		return fmt.Errorf("consume %s: %w", sc.ConsumerName, err)
	}

	ns.running = append(ns.running, cc)
	log.Info().Str("subject", sc.Subject).Msg("subscribed")
	return nil
}

func ackOrLog(log zerolog.Logger, err error) {
	if err != nil {
		log.Warn().Err(err).Msg("ack failed")
	}
}

// Stop halts every running consumer.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.running {
		cc.Stop()
	}
	ns.running = nil
	ns.logger.Info().Msg("command consumers stopped")
}

// streamConfigs describes the command stream and the event stream. The
// event stream dedupes on Nats-Msg-Id, which JetStreamSink sets from the
// event ID.
func streamConfigs() []jetstream.StreamConfig {
	return []jetstream.StreamConfig{
		{
			Name:      CommandStream,
			Subjects:  []string{CommandSubjectPrefix + ">"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    streamMaxAge,
			Replicas:  1,
		},
		{
			Name:       EventStream,
			Subjects:   []string{EventSubjectPrefix + ">"},
			Storage:    jetstream.FileStorage,
			Retention:  jetstream.LimitsPolicy,
			MaxAge:     streamMaxAge,
			Replicas:   1,
			Duplicates: eventDedupe,
		},
	}
}

// EnsureStreams creates or updates the command and event streams.
func EnsureStreams(ctx context.Context, js jetstream.JetStream, logger zerolog.Logger) error {
	for _, cfg := range streamConfigs() {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		logger.Info().Str("stream", cfg.Name).Strs("subjects", cfg.Subjects).Msg("stream ready")
	}
	return nil
}

// ConnectNATS dials url with unlimited reconnects and opens JetStream.
func ConnectNATS(url string, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name("wyvernd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}
