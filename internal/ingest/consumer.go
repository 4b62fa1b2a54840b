// Package ingest feeds vault events from Kafka into the ledger, committing
// each offset only after the event is applied or deliberately skipped.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/atmx/vault-ledger/internal/config"
	"github.com/atmx/vault-ledger/internal/event"
	"github.com/atmx/vault-ledger/internal/ledger"
	"github.com/atmx/vault-ledger/internal/metrics"
	"github.com/atmx/vault-ledger/internal/spot"
)

// ErrHalted is returned by Run when a conflicting redelivery stops the
// consumer. The offending offset is left uncommitted.
var ErrHalted = errors.New("ingest: halted on conflicting duplicate")

// Applier applies decoded events. Satisfied by *ledger.Processor.
type Applier interface {
	Apply(ctx context.Context, ev event.Event) (ledger.Result, error)
	ApplyWithSpot(ctx context.Context, ev event.Event, sp spot.Spot) (ledger.Result, error)
}

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Options struct {
	HaltOnConflict bool
	RetryBackoff   time.Duration
}

// Consumer reads one partition stream in order and applies each message.
type Consumer struct {
	reader Reader
	proc   Applier
	opts   Options
}

// NewReader creates a consumer-group reader with explicit commits.
func NewReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: kafka.FirstOffset,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Error(fmt.Sprintf(msg, args...), "component", "kafka")
		}),
	})
}

func NewConsumer(r Reader, proc Applier, opts Options) *Consumer {
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	return &Consumer{reader: r, proc: proc, opts: opts}
}

// Run consumes until ctx is done or a message halts the consumer.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("consumer started", "halt_on_conflict", c.opts.HaltOnConflict)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ingest: fetch: %w", err)
		}

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ingest: commit %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}
	}
}

// process handles msg, retrying failures that may resolve on their own
// (spot reads, store outages) until ctx is done.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	for attempt := 1; ; attempt++ {
		err := c.Handle(ctx, msg)
		if err == nil || errors.Is(err, ErrHalted) {
			return err
		}
		metrics.IngestMessages.WithLabelValues("retry").Inc()
		slog.Warn("event not applied, retrying",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"err", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.RetryBackoff):
		}
	}
}

// Handle applies one message. A nil error means its offset may be
// committed: the event was applied, was a duplicate, or can never apply.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	dec, err := event.Decode(msg.Value)
	if err != nil {
		metrics.IngestMessages.WithLabelValues("malformed").Inc()
		slog.Error("skipping malformed message", "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}

	var res ledger.Result
	if dec.Spot != nil {
		res, err = c.proc.ApplyWithSpot(ctx, dec.Event, *dec.Spot)
	} else {
		res, err = c.proc.Apply(ctx, dec.Event)
	}

	switch {
	case err == nil:
		outcome := "applied"
		if res.Duplicate {
			outcome = "duplicate"
		}
		metrics.IngestMessages.WithLabelValues(outcome).Inc()
		return nil

	case errors.Is(err, ledger.ErrConflictingDuplicate):
		metrics.IngestMessages.WithLabelValues("conflict").Inc()
		slog.Error("conflicting duplicate", "offset", msg.Offset, "halt", c.opts.HaltOnConflict, "err", err)
		if c.opts.HaltOnConflict {
			return fmt.Errorf("%w: %w", ErrHalted, err)
		}
		return nil

	case ledger.IsArithmetic(err), errors.Is(err, ledger.ErrUnsupportedEvent):
		metrics.IngestMessages.WithLabelValues("rejected").Inc()
		slog.Error("event rejected", "offset", msg.Offset, "err", err)
		return nil

	default:
		return err
	}
}
