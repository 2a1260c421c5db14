package main

import (
	"WyvernExchange/internal/event"
	"WyvernExchange/internal/exchange"
	"WyvernExchange/internal/ingestion"
	"WyvernExchange/internal/observability"
	"WyvernExchange/internal/order"
	"WyvernExchange/internal/persistence"
	"WyvernExchange/internal/store"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds all application configuration, loaded from the environment.
type Config struct {
	// Store backend: memory, pebble or postgres.
	Store     string
	PebbleDir string

	// Postgres backs the postgres store and the event log. Empty disables
	// the event log.
	PostgresURL   string
	MigrationsDir string

	NATSURL      string
	KafkaBrokers []string
	KafkaTopic   string
	MetricsAddr  string

	// Persistence worker
	PersistChanSize     int
	PersistBatchSize    int
	PersistFlushTimeout time.Duration

	CommandChanSize   int
	RegistryCacheSize int

	ContractSelf            string
	Owner                   string
	ProtocolFeeRecipient    string
	MinimumMakerProtocolFee string
	MinimumTakerProtocolFee string
}

func DefaultConfig() Config {
	return Config{
		Store:                   envOrDefault("WYVERN_STORE", "pebble"),
		PebbleDir:               envOrDefault("WYVERN_PEBBLE_DIR", "data/wyvern"),
		PostgresURL:             os.Getenv("WYVERN_POSTGRES_DSN"),
		MigrationsDir:           envOrDefault("WYVERN_MIGRATIONS_DIR", "migrations"),
		NATSURL:                 envOrDefault("WYVERN_NATS_URL", "nats://localhost:4222"),
		KafkaBrokers:            splitList(os.Getenv("WYVERN_KAFKA_BROKERS")),
		KafkaTopic:              envOrDefault("WYVERN_KAFKA_TOPIC", "wyvern.events"),
		MetricsAddr:             envOrDefault("WYVERN_METRICS_ADDR", ":9091"),
		PersistChanSize:         envIntOrDefault("WYVERN_PERSIST_CHAN_SIZE", 1024),
		PersistBatchSize:        envIntOrDefault("WYVERN_PERSIST_BATCH_SIZE", 50),
		PersistFlushTimeout:     10 * time.Millisecond,
		CommandChanSize:         envIntOrDefault("WYVERN_COMMAND_CHAN_SIZE", 4096),
		RegistryCacheSize:       envIntOrDefault("WYVERN_REGISTRY_CACHE_SIZE", 100_000),
		ContractSelf:            os.Getenv("WYVERN_CONTRACT_SELF"),
		Owner:                   os.Getenv("WYVERN_OWNER"),
		ProtocolFeeRecipient:    os.Getenv("WYVERN_PROTOCOL_FEE_RECIPIENT"),
		MinimumMakerProtocolFee: envOrDefault("WYVERN_MIN_MAKER_PROTOCOL_FEE", "0"),
		MinimumTakerProtocolFee: envOrDefault("WYVERN_MIN_TAKER_PROTOCOL_FEE", "0"),
	}
}

// Bootstrap parses the protocol configuration seeded into a fresh store.
func (c *Config) Bootstrap() (exchange.Config, error) {
	var cfg exchange.Config
	var err error
	if c.Owner != "" {
		if cfg.Owner, err = order.ParseAccountID(c.Owner); err != nil {
			return cfg, fmt.Errorf("WYVERN_OWNER: %w", err)
		}
	}
	if c.ProtocolFeeRecipient != "" {
		if cfg.ProtocolFeeRecipient, err = order.ParseAccountID(c.ProtocolFeeRecipient); err != nil {
			return cfg, fmt.Errorf("WYVERN_PROTOCOL_FEE_RECIPIENT: %w", err)
		}
	} else {
		// Protocol fees go to the owner unless configured otherwise.
		cfg.ProtocolFeeRecipient = cfg.Owner
	}
	if cfg.MinimumMakerProtocolFee, err = order.ParseBalance(c.MinimumMakerProtocolFee); err != nil {
		return cfg, fmt.Errorf("WYVERN_MIN_MAKER_PROTOCOL_FEE: %w", err)
	}
	if cfg.MinimumTakerProtocolFee, err = order.ParseBalance(c.MinimumTakerProtocolFee); err != nil {
		return cfg, fmt.Errorf("WYVERN_MIN_TAKER_PROTOCOL_FEE: %w", err)
	}
	return cfg, nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("INFO: wyvernd starting...")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: .env not loaded: %v", err)
	}
	cfg := DefaultConfig()

	if cfg.ContractSelf == "" {
		log.Fatal("FATAL: WYVERN_CONTRACT_SELF is required")
	}
	self, err := order.ParseAccountID(cfg.ContractSelf)
	if err != nil {
		log.Fatalf("FATAL: WYVERN_CONTRACT_SELF: %v", err)
	}
	bootstrap, err := cfg.Bootstrap()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	logger := observability.NewLogger("wyvernd")

	// --- Context with graceful shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	var db *sql.DB
	if cfg.PostgresURL != "" {
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Fatalf("FATAL: postgres open: %v", err)
		}
		defer db.Close()

		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("FATAL: postgres ping: %v", err)
		}
		log.Println("INFO: Postgres connected")

		migrator := persistence.NewMigrator(db, cfg.MigrationsDir, logger)
		if err := migrator.Up(ctx); err != nil {
			log.Fatalf("FATAL: run migrations: %v", err)
		}
		log.Println("INFO: migrations applied")
	}

	// --- Store ---
	kv, err := openStore(&cfg, db)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer kv.Close()
	log.Printf("INFO: %s store opened", cfg.Store)

	// --- Observability ---
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	healthChecker := observability.NewHealthChecker()

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL, logger)
	if err != nil {
		log.Fatalf("FATAL: nats connect: %v", err)
	}
	defer nc.Close()
	log.Println("INFO: NATS connected")

	if err := ingestion.EnsureStreams(ctx, js, logger); err != nil {
		log.Fatalf("FATAL: ensure NATS streams: %v", err)
	}

	healthChecker.AddCheck("nats", func(context.Context) error {
		if !nc.IsConnected() {
			return errors.New("nats disconnected")
		}
		return nil
	})
	if db != nil {
		healthChecker.AddCheck("postgres", db.PingContext)
	}

	// --- Sinks ---
	sinks := event.MultiSink{
		event.NewLogSink(observability.NewLogger("events")),
		ingestion.NewJetStreamSink(js),
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := ingestion.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Printf("INFO: Kafka publishing to %s on %v", cfg.KafkaTopic, cfg.KafkaBrokers)
	}

	errChan := make(chan error, 4)

	var persistChan chan event.Envelope
	var persistDone chan struct{}
	if db != nil {
		persistChan = make(chan event.Envelope, cfg.PersistChanSize)
		persistDone = make(chan struct{})
		worker := persistence.NewPersistenceWorker(db, persistChan, cfg.PersistBatchSize, cfg.PersistFlushTimeout, logger, metrics)

		head, err := worker.Resume(ctx)
		if err != nil {
			log.Fatalf("FATAL: read event log head: %v", err)
		}
		log.Printf("INFO: event log persisted through sequence %d", head.Sequence)

		sinks = append(sinks, persistence.NewChannelSink(persistChan, metrics))
		// The worker outlives ctx so it can drain persistChan on shutdown.
		go func() {
			defer close(persistDone)
			if err := worker.Run(context.Background()); err != nil {
				errChan <- fmt.Errorf("persistence worker: %w", err)
			}
		}()
	}

	// --- Exchange ---
	x := exchange.New(kv, exchange.Options{
		ContractSelf:      self,
		Sink:              sinks,
		Logger:            observability.NewLogger("exchange"),
		Metrics:           metrics,
		RegistryCacheSize: cfg.RegistryCacheSize,
	})
	seeded, err := x.Bootstrap(ctx, bootstrap)
	if err != nil {
		log.Fatalf("FATAL: bootstrap configuration: %v", err)
	}
	if seeded {
		log.Println("INFO: protocol configuration bootstrapped")
	}

	// --- Command ingestion ---
	rawChan := make(chan ingestion.RawCommand, cfg.CommandChanSize)
	subscriber := ingestion.NewNATSSubscriber(js, rawChan, logger)
	if err := subscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		log.Fatalf("FATAL: nats subscribe: %v", err)
	}
	handler := ingestion.NewHandler(x, sinks, logger, metrics)
	handlerDone := make(chan struct{})
	go func() {
		defer close(handlerDone)
		if err := handler.Run(ctx, rawChan); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- fmt.Errorf("command handler: %w", err)
		}
	}()

	// --- Metrics and health ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthChecker.LivenessHandler)
	mux.HandleFunc("/readyz", healthChecker.ReadinessHandler)
	httpServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("INFO: metrics and health listening on %s", cfg.MetricsAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	healthChecker.SetReady(true)
	log.Printf("INFO: wyvernd ready (self=%s, store=%s)", self.Short(), cfg.Store)

	// --- Wait for shutdown signal ---
	select {
	case sig := <-sigChan:
		log.Printf("INFO: received signal %s, shutting down...", sig)
	case err := <-errChan:
		log.Printf("ERROR: %v, shutting down...", err)
	}

	// --- Graceful shutdown ---
	healthChecker.SetReady(false)
	subscriber.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	// The handler is the only producer on persistChan.
	<-handlerDone
	if persistChan != nil {
		close(persistChan)
		select {
		case <-persistDone:
			log.Println("INFO: event log flushed")
		case <-shutdownCtx.Done():
			log.Println("WARN: event log flush timed out")
		}
	}

	log.Println("INFO: wyvernd shutdown complete")
}

func openStore(cfg *Config, db *sql.DB) (store.Store, error) {
	switch cfg.Store {
	case "memory":
		return store.NewMemoryStore(), nil
	case "pebble":
		s, err := store.OpenPebble(cfg.PebbleDir)
		if err != nil {
			return nil, fmt.Errorf("open pebble at %s: %w", cfg.PebbleDir, err)
		}
		return s, nil
	case "postgres":
		if db == nil {
			return nil, errors.New("WYVERN_STORE=postgres requires WYVERN_POSTGRES_DSN")
		}
		return store.NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("unknown WYVERN_STORE %q", cfg.Store)
	}
}

// --- Helpers ---

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var i int
	if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
		return defaultVal
	}
	return i
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
