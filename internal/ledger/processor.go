// Package ledger applies vault protocol events to the position, vault,
// strategy-report and fee ledgers.
//
// Every event is applied inside one store transaction: either all of its
// snapshots commit or none do. Redelivered events are detected by their
// event key and answered from the stored result.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/atmx/vault-ledger/internal/amount"
	"github.com/atmx/vault-ledger/internal/event"
	"github.com/atmx/vault-ledger/internal/ident"
	"github.com/atmx/vault-ledger/internal/metrics"
	"github.com/atmx/vault-ledger/internal/model"
	"github.com/atmx/vault-ledger/internal/oracle"
	"github.com/atmx/vault-ledger/internal/spot"
	"github.com/atmx/vault-ledger/internal/store"
)

// Publisher receives the result of every committed event.
type Publisher interface {
	Publish(Result)
}

// Result describes what applying one event produced.
type Result struct {
	Event     ident.EventKey `json:"event"`
	Kind      event.Kind     `json:"kind"`
	Duplicate bool           `json:"duplicate"`
	Skipped   string         `json:"skipped,omitempty"` // why no ledger changed

	Positions    []model.PositionSnapshot `json:"positions,omitempty"`
	Vault        *model.VaultSnapshot     `json:"vault,omitempty"`
	Report       *model.StrategyReport    `json:"report,omitempty"`
	ReportResult *model.ReportResult      `json:"report_result,omitempty"`
	Transfer     *model.Transfer          `json:"transfer,omitempty"`

	Warnings []model.Warning `json:"warnings,omitempty"`
}

// Processor applies events one at a time. Uses a mutex to serialize
// events (single-instance); ordering across instances is the feed's job.
type Processor struct {
	store  *store.Store
	spot   spot.Reader
	oracle oracle.Oracle
	pub    Publisher // optional
	mu     sync.Mutex
}

// NewProcessor creates a processor. Pass nil for pub if committed results
// need not be broadcast.
func NewProcessor(st *store.Store, sr spot.Reader, or oracle.Oracle, pub Publisher) *Processor {
	return &Processor{
		store:  st,
		spot:   sr,
		oracle: or,
		pub:    pub,
	}
}

// Apply applies ev using spot values from the processor's reader.
func (p *Processor) Apply(ctx context.Context, ev event.Event) (Result, error) {
	return p.apply(ctx, ev, nil)
}

// ApplyWithSpot applies ev using the given spot values instead of reading
// them, for producers that embed them in the event.
func (p *Processor) ApplyWithSpot(ctx context.Context, ev event.Event, sp spot.Spot) (Result, error) {
	return p.apply(ctx, ev, &sp)
}

func (p *Processor) apply(ctx context.Context, ev event.Event, pinned *spot.Spot) (Result, error) {
	start := time.Now()
	meta := event.MetaOf(ev)
	kind := ev.Kind()

	// Serialize event application.
	p.mu.Lock()
	defer p.mu.Unlock()

	payload, err := json.Marshal(ev)
	if err != nil {
		return Result{}, fmt.Errorf("ledger: encode %s %s: %w", kind, meta.Event, err)
	}
	sum := sha256.Sum256(payload)
	digest := hex.EncodeToString(sum[:])

	tx := p.store.Begin()

	// --- Redelivery check ---
	prior, seen, err := tx.Event(ctx, meta.Event)
	if err != nil {
		return Result{}, err
	}
	if seen {
		if prior.Kind != string(kind) || prior.Digest != digest {
			metrics.EventsTotal.WithLabelValues(string(kind), "conflict").Inc()
			slog.Error("conflicting redelivery", "kind", kind, "event", meta.Event.String())
			return Result{}, conflict("event", meta.Event)
		}
		res, err := replay(ctx, tx, prior)
		if err != nil {
			return Result{}, err
		}
		metrics.EventsTotal.WithLabelValues(string(kind), "duplicate").Inc()
		slog.Debug("duplicate event ignored", "kind", kind, "event", meta.Event.String())
		return res, nil
	}

	// --- Spot values ---
	var sp spot.Spot
	if needsSpot(kind) {
		if pinned != nil {
			sp = pinned.Normalize()
		} else if sp, err = p.spot.Read(ctx, meta.Vault, meta.Block); err != nil {
			metrics.EventsTotal.WithLabelValues(string(kind), "spot_error").Inc()
			return Result{}, fmt.Errorf("ledger: read spot for %s at block %d: %w", meta.Vault, meta.Block, err)
		}
		if err := sp.Validate(); err != nil {
			metrics.EventsTotal.WithLabelValues(string(kind), "arithmetic").Inc()
			return Result{}, err
		}
	}

	o := &op{
		ctx:    ctx,
		tx:     tx,
		meta:   meta,
		spot:   sp,
		oracle: p.oracle,
		res:    Result{Event: meta.Event, Kind: kind},
		rec:    model.EventRecord{Event: meta.Event, Kind: string(kind), Digest: digest, Payload: payload},
	}

	// --- Dispatch ---
	if err := o.dispatch(ev); err != nil {
		outcome := "error"
		if IsArithmetic(err) {
			outcome = "arithmetic"
		}
		metrics.EventsTotal.WithLabelValues(string(kind), outcome).Inc()
		return Result{}, fmt.Errorf("ledger: apply %s %s: %w", kind, meta.Event, err)
	}

	o.rec.Skipped = o.res.Skipped
	o.rec.Warnings = o.res.Warnings
	if err := tx.PutEvent(&o.rec); err != nil {
		return Result{}, err
	}

	// --- Commit ---
	if err := p.store.Commit(ctx, tx); err != nil {
		metrics.EventsTotal.WithLabelValues(string(kind), "error").Inc()
		return Result{}, fmt.Errorf("ledger: commit %s %s: %w", kind, meta.Event, err)
	}

	outcome := "applied"
	if o.res.Skipped != "" {
		outcome = "skipped"
	}
	metrics.EventsTotal.WithLabelValues(string(kind), outcome).Inc()
	metrics.EventLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	for _, w := range o.res.Warnings {
		metrics.DataQualityWarnings.WithLabelValues(w.Reason).Inc()
		slog.Warn("data quality", "kind", kind, "event", meta.Event.String(), "reason", w.Reason, "detail", w.Message)
	}
	if t := o.res.Transfer; t != nil && t.IsProtocolFee {
		metrics.FeeTransfers.WithLabelValues(string(t.Category)).Inc()
	}

	slog.Info("event applied",
		"kind", kind,
		"event", meta.Event.String(),
		"vault", meta.Vault.String(),
		"block", meta.Block,
		"positions", len(o.res.Positions),
		"vault_snapshot", o.res.Vault != nil,
		"skipped", o.res.Skipped,
	)

	if p.pub != nil {
		p.pub.Publish(o.res)
	}
	return o.res, nil
}

func needsSpot(k event.Kind) bool {
	switch k {
	case event.KindDeposit, event.KindWithdraw, event.KindTransfer, event.KindStrategyReported:
		return true
	}
	return false
}

// replay rebuilds the result of an already applied event from the
// entities it recorded.
func replay(ctx context.Context, tx *store.Tx, rec *model.EventRecord) (Result, error) {
	res := Result{
		Event:     rec.Event,
		Kind:      event.Kind(rec.Kind),
		Duplicate: true,
		Skipped:   rec.Skipped,
		Warnings:  rec.Warnings,
	}
	for _, key := range rec.Positions {
		snap, ok, err := tx.PositionSnapshot(ctx, key)
		if err != nil {
			return Result{}, err
		}
		if ok {
			res.Positions = append(res.Positions, *snap)
		}
	}
	if rec.Vault != nil {
		snap, _, err := tx.VaultSnapshot(ctx, *rec.Vault)
		if err != nil {
			return Result{}, err
		}
		res.Vault = snap
	}
	if rec.Report != nil {
		rep, _, err := tx.StrategyReport(ctx, *rec.Report)
		if err != nil {
			return Result{}, err
		}
		res.Report = rep
		rr, _, err := tx.ReportResult(ctx, *rec.Report)
		if err != nil {
			return Result{}, err
		}
		res.ReportResult = rr
	}
	if res.Kind == event.KindTransfer {
		t, _, err := tx.Transfer(ctx, rec.Event)
		if err != nil {
			return Result{}, err
		}
		res.Transfer = t
	}
	return res, nil
}

// op is the state of one event being applied.
type op struct {
	ctx    context.Context
	tx     *store.Tx
	meta   event.Meta
	spot   spot.Spot
	oracle oracle.Oracle
	res    Result
	rec    model.EventRecord
}

func (o *op) warn(w model.Warning) {
	o.res.Warnings = append(o.res.Warnings, w)
}

func (o *op) dispatch(ev event.Event) error {
	switch e := ev.(type) {
	case event.Deposit:
		return o.deposit(e)
	case event.Withdraw:
		return o.withdraw(e)
	case event.Transfer:
		return o.transfer(e)
	case event.StrategyReported:
		return o.strategyReported(e)
	case event.FeeUpdated:
		return o.feeUpdated(e)
	case event.VaultRegistered:
		return o.vaultRegistered(e)
	case event.StrategyAdded:
		return o.strategyAdded(e)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedEvent, ev)
	}
}

// mark values a share balance at the event's spot price.
func (o *op) mark(shares sdkmath.Int) (sdkmath.Int, error) {
	return amount.MarkToMarket(shares, o.spot.PricePerShare, o.spot.Decimals)
}

// ensureAccount creates the account on first reference.
func (o *op) ensureAccount(id ident.Address) error {
	_, ok, err := o.tx.Account(o.ctx, id)
	if err != nil || ok {
		return err
	}
	return o.tx.PutAccount(&model.Account{ID: id, FirstSeen: o.meta.Event})
}
