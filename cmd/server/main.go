package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/vault-ledger/internal/config"
	"github.com/atmx/vault-ledger/internal/feed"
	"github.com/atmx/vault-ledger/internal/ingest"
	"github.com/atmx/vault-ledger/internal/ledger"
	"github.com/atmx/vault-ledger/internal/oracle"
	"github.com/atmx/vault-ledger/internal/spot"
	"github.com/atmx/vault-ledger/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("VAULTLEDGER_CONFIG"))
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := run(cfg); err != nil {
		slog.Error("vault-ledger exited with error", "err", err)
		os.Exit(1)
	}
	fmt.Println("vault-ledger stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// --- Redis ---
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis.url: %w", err)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
	}

	// --- Initialize store ---
	var backend store.Backend
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		cleanup = append(cleanup, pool.Close)

		pg := store.NewPostgresBackend(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		backend = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if rdb != nil {
			backend = store.NewCachedBackend(pg, rdb, cfg.Redis.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.Redis.CacheTTL)
		}
	} else {
		slog.Warn("database.url not set, using in-memory store (data will not persist)")
		backend = store.NewMemoryBackend()
	}

	// --- Spot values and prices ---
	var (
		spotReader spot.Reader
		prices     oracle.Oracle
	)
	if rdb != nil {
		spotReader = spot.NewRedisReader(rdb)
		prices = oracle.NewRedisOracle(rdb)
	} else {
		quotes, err := cfg.StaticQuotes()
		if err != nil {
			return err
		}
		spotReader = spot.NewStatic()
		prices = oracle.NewStatic(quotes)
		slog.Warn("redis.url not set, events must embed spot values", "static_prices", len(quotes))
	}

	// --- Ledger and feed ---
	hub := feed.NewHub(256)
	proc := ledger.NewProcessor(store.New(backend), spotReader, prices, hub)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:     newRouter(hub),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(gctx) })

	g.Go(func() error {
		slog.Info("vault-ledger listening", "port", cfg.HTTP.Port, "fee_reference", cfg.Ledger.FeeReferenceToken)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if len(cfg.Kafka.Brokers) > 0 {
		reader := ingest.NewReader(cfg.Kafka)
		cleanup = append(cleanup, func() { reader.Close() })
		consumer := ingest.NewConsumer(reader, proc, ingest.Options{
			HaltOnConflict: cfg.Ingest.HaltOnConflict,
			RetryBackoff:   cfg.Ingest.RetryBackoff,
		})
		g.Go(func() error { return consumer.Run(gctx) })
		slog.Info("consuming vault events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID)
	} else {
		slog.Warn("kafka.brokers not set, ingest disabled")
	}

	// Graceful shutdown.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down vault-ledger...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
