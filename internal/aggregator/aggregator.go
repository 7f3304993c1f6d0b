// Package aggregator polls the settlement engine, maintains the market
// catalogue, and derives the display projections (phase, odds, countdowns)
// from raw snapshots.
package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shadowtrade/shadowbot/internal/domain"
)

// ChannelSnapshots is the signal bus channel snapshot events are published on.
const ChannelSnapshots = "shadowtrade:snapshots"

// SnapshotEvent is the bus payload emitted after each successful refresh.
type SnapshotEvent struct {
	Market    string       `json:"market"`
	Phase     domain.Phase `json:"phase"`
	YesPct    int          `json:"yes_pct"`
	YesVotes  uint32       `json:"yes_votes"`
	NoVotes   uint32       `json:"no_votes"`
	Resolved  bool         `json:"resolved"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// Aggregator owns one polling goroutine per configured market. Pollers are
// independent: a market whose read hangs delays only itself.
type Aggregator struct {
	reader      domain.SettlementReader
	cache       domain.SnapshotCache
	bus         domain.SignalBus
	categories  []domain.Category
	addresses   []string
	participant string
	interval    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an Aggregator. participant may be empty, in which case position
// reads are skipped and snapshots carry no position.
func New(
	reader domain.SettlementReader,
	cache domain.SnapshotCache,
	bus domain.SignalBus,
	categories []domain.Category,
	addresses []string,
	participant string,
	interval time.Duration,
	logger *slog.Logger,
) *Aggregator {
	return &Aggregator{
		reader:      reader,
		cache:       cache,
		bus:         bus,
		categories:  categories,
		addresses:   addresses,
		participant: participant,
		interval:    interval,
		logger:      logger.With("component", "aggregator"),
		now:         time.Now,
	}
}

// Categories returns the configured catalogue structure.
func (a *Aggregator) Categories() []domain.Category {
	return a.categories
}

// Run starts one poller per market and blocks until ctx is cancelled or a
// poller fails fatally. Read errors are logged and retried on the next tick,
// never fatal.
func (a *Aggregator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, addr := range a.addresses {
		g.Go(func() error {
			return a.pollLoop(ctx, addr)
		})
	}
	a.logger.Info("pollers started", "markets", len(a.addresses), "interval", a.interval)
	return g.Wait()
}

func (a *Aggregator) pollLoop(ctx context.Context, address string) error {
	// First refresh immediately so the cache warms before the first tick.
	if _, err := a.Refresh(ctx, address); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("initial refresh failed", "market", address, "error", err)
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.Refresh(ctx, address); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("refresh failed", "market", address, "error", err)
			}
		}
	}
}

// Refresh performs the three point-in-time reads for one market, caches the
// snapshot, and publishes a snapshot event. The reads are not atomic with
// respect to each other; the snapshot records when they were taken.
func (a *Aggregator) Refresh(ctx context.Context, address string) (domain.Snapshot, error) {
	market, err := a.reader.MarketInfo(ctx, address)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("aggregator: refresh %s: %w", address, err)
	}
	pool, err := a.reader.PoolInfo(ctx, address)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("aggregator: refresh %s: %w", address, err)
	}

	snap := domain.Snapshot{
		Market:    market,
		Pool:      pool,
		FetchedAt: a.now().UTC(),
	}

	if a.participant != "" {
		pos, err := a.reader.UserInfo(ctx, address, a.participant)
		if err != nil {
			// A position read failure degrades the snapshot, it does not
			// discard the market data.
			a.logger.Warn("position read failed", "market", address, "error", err)
		} else {
			snap.Position = &pos
		}
	}

	if err := a.cache.SetSnapshot(ctx, address, snap); err != nil {
		a.logger.Warn("cache write failed", "market", address, "error", err)
	}
	a.publish(ctx, snap)

	return snap, nil
}

func (a *Aggregator) publish(ctx context.Context, snap domain.Snapshot) {
	ev := SnapshotEvent{
		Market:    snap.Market.Address,
		Phase:     domain.ResolvePhase(a.now().Unix(), snap.Market.CommitDeadline, snap.Market.RevealDeadline, snap.Market.Resolved),
		YesPct:    YesProbability(snap.Pool),
		YesVotes:  snap.Pool.YesVotes,
		NoVotes:   snap.Pool.NoVotes,
		Resolved:  snap.Market.Resolved,
		FetchedAt: snap.FetchedAt,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		a.logger.Error("marshal snapshot event", "error", err)
		return
	}
	if err := a.bus.Publish(ctx, ChannelSnapshots, payload); err != nil {
		a.logger.Warn("publish snapshot event failed", "market", ev.Market, "error", err)
	}
}

// Snapshot returns the cached snapshot for one market, refreshing through the
// settlement engine on a cache miss.
func (a *Aggregator) Snapshot(ctx context.Context, address string) (domain.Snapshot, error) {
	snap, err := a.cache.GetSnapshot(ctx, address)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		a.logger.Warn("cache read failed", "market", address, "error", err)
	}
	return a.Refresh(ctx, address)
}

// Entries joins every catalogue row with its latest snapshot and derives the
// display projections at the current wall clock. Rows whose snapshot cannot
// be loaded appear in Pending phase with zeroed data rather than vanishing.
func (a *Aggregator) Entries(ctx context.Context) []domain.CatalogueEntry {
	now := a.now().Unix()
	var out []domain.CatalogueEntry
	for _, cat := range a.categories {
		for _, row := range cat.Rows {
			entry := domain.CatalogueEntry{
				Category: cat.Slug,
				Tag:      cat.Tag,
				Row:      row,
			}
			snap, err := a.Snapshot(ctx, row.Address)
			if err != nil {
				a.logger.Warn("catalogue row unavailable", "market", row.Address, "error", err)
				entry.Phase = domain.PhasePending
				entry.YesPct = 50
				entry.TimeLeft = "Ended"
				out = append(out, entry)
				continue
			}
			entry.Snapshot = snap
			entry.Phase = domain.ResolvePhase(now, snap.Market.CommitDeadline, snap.Market.RevealDeadline, snap.Market.Resolved)
			entry.YesPct = YesProbability(snap.Pool)
			entry.TimeLeft = domain.TimeLeft(domain.ActiveDeadline(entry.Phase, snap.Market.CommitDeadline, snap.Market.RevealDeadline), now)
			out = append(out, entry)
		}
	}
	return out
}

// Entry returns the catalogue entry for one market address, or
// domain.ErrNotFound when no configured row matches.
func (a *Aggregator) Entry(ctx context.Context, address string) (domain.CatalogueEntry, error) {
	for _, cat := range a.categories {
		for _, row := range cat.Rows {
			if row.Address != address {
				continue
			}
			snap, err := a.Snapshot(ctx, address)
			if err != nil {
				return domain.CatalogueEntry{}, err
			}
			now := a.now().Unix()
			phase := domain.ResolvePhase(now, snap.Market.CommitDeadline, snap.Market.RevealDeadline, snap.Market.Resolved)
			return domain.CatalogueEntry{
				Category: cat.Slug,
				Tag:      cat.Tag,
				Row:      row,
				Snapshot: snap,
				Phase:    phase,
				YesPct:   YesProbability(snap.Pool),
				TimeLeft: domain.TimeLeft(domain.ActiveDeadline(phase, snap.Market.CommitDeadline, snap.Market.RevealDeadline), now),
			}, nil
		}
	}
	return domain.CatalogueEntry{}, fmt.Errorf("aggregator: market %s not in catalogue: %w", address, domain.ErrNotFound)
}
