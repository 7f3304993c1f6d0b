package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shadowtrade/shadowbot/internal/aggregator"
	s3blob "github.com/shadowtrade/shadowbot/internal/blob/s3"
	"github.com/shadowtrade/shadowbot/internal/commentary"
	"github.com/shadowtrade/shadowbot/internal/notify"
	"github.com/shadowtrade/shadowbot/internal/orchestrator"
	"github.com/shadowtrade/shadowbot/internal/platform/coingecko"
	"github.com/shadowtrade/shadowbot/internal/server"
	"github.com/shadowtrade/shadowbot/internal/server/handler"
	"github.com/shadowtrade/shadowbot/internal/server/ws"
)

// WatchMode runs the snapshot pollers alone: per-market refresh loops feeding
// the cache and the signal bus. No vault, no write surface, no HTTP.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	agg := a.buildAggregator(deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return agg.Run(ctx)
	})
	g.Go(func() error {
		return a.watchResolved(ctx, deps)
	})
	return g.Wait()
}

// ServeMode runs the pollers plus the read-only HTTP surface: catalogue,
// account and commentary endpoints and the WebSocket feed. Action routes are
// not registered because no vault is wired.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	agg := a.buildAggregator(deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return agg.Run(ctx)
	})
	g.Go(func() error {
		return a.watchResolved(ctx, deps)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, agg, nil)
	}

	return g.Wait()
}

// FullMode runs everything: pollers, the orchestrated write surface, the
// HTTP server with action routes, and the cold-storage archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	agg := a.buildAggregator(deps)
	orch := orchestrator.New(
		deps.SecretVault,
		deps.Submitter,
		agg,
		deps.SnapshotCache,
		deps.AuditStore,
		deps.SignalBus,
		deps.Notifier,
		a.cfg.Participant,
		a.cfg.Settlement.StakeToken,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return agg.Run(ctx)
	})
	g.Go(func() error {
		return a.watchResolved(ctx, deps)
	})

	if deps.BlobWriter != nil {
		retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
		arch := s3blob.NewArchiver(
			deps.BlobWriter,
			deps.BlobReader,
			deps.AuditStore,
			agg,
			a.marketAddresses(),
			retention,
			a.cfg.Archive.Interval.Duration,
			a.logger,
		)
		g.Go(func() error {
			return arch.Run(ctx)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, agg, orch)
	}

	return g.Wait()
}

// buildAggregator assembles the catalogue from config and wires the pollers.
func (a *App) buildAggregator(deps *Dependencies) *aggregator.Aggregator {
	categories, addresses := aggregator.BuildCatalogue(a.cfg.Categories)
	return aggregator.New(
		deps.Reader,
		deps.SnapshotCache,
		deps.SignalBus,
		categories,
		addresses,
		a.cfg.Participant,
		a.cfg.Poll.Interval.Duration,
		a.logger,
	)
}

func (a *App) marketAddresses() []string {
	_, addresses := aggregator.BuildCatalogue(a.cfg.Categories)
	return addresses
}

// buildCommentary assembles the market-note generator, or returns nil when
// the feature is disabled.
func (a *App) buildCommentary() *commentary.Generator {
	if !a.cfg.Commentary.Enabled {
		return nil
	}
	feed := coingecko.New(a.cfg.Commentary.PriceFeedURL)
	var completer commentary.Completer
	if a.cfg.Commentary.AnthropicAPIKey != "" {
		completer = commentary.NewAnthropicClient(a.cfg.Commentary.AnthropicAPIKey, a.cfg.Commentary.Model)
	}
	return commentary.NewGenerator(feed, completer, a.logger)
}

// watchResolved subscribes to the snapshot feed and pushes a one-time
// notification when a market flips to resolved.
func (a *App) watchResolved(ctx context.Context, deps *Dependencies) error {
	ch, err := deps.SignalBus.Subscribe(ctx, aggregator.ChannelSnapshots)
	if err != nil {
		return fmt.Errorf("app: subscribe snapshots: %w", err)
	}

	notified := map[string]bool{}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return nil
			}
			var ev aggregator.SnapshotEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				a.logger.Warn("malformed snapshot event", "error", err)
				continue
			}
			if !ev.Resolved || notified[ev.Market] {
				continue
			}
			notified[ev.Market] = true
			title := "ShadowTrade market resolved"
			msg := fmt.Sprintf("market: %s\nyes: %d%%", ev.Market, ev.YesPct)
			if err := deps.Notifier.Notify(ctx, notify.EventMarketResolved, title, msg); err != nil {
				a.logger.Warn("resolved notification failed", "market", ev.Market, "error", err)
			}
		}
	}
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// errgroup. orch may be nil; action and account routes are then skipped.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	agg *aggregator.Aggregator,
	orch *orchestrator.Orchestrator,
) {
	_, addresses := aggregator.BuildCatalogue(a.cfg.Categories)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		Markets:   len(addresses),
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Catalogue: handler.NewCatalogueHandler(agg, a.logger),
		Deploy:    handler.NewDeployHandler(a.logger),
	}
	if orch != nil {
		handlers.Actions = handler.NewActionHandler(orch, a.logger)
	}
	if a.cfg.Participant != "" {
		handlers.Account = handler.NewAccountHandler(
			deps.Reader, a.cfg.Participant, a.cfg.Settlement.StakeToken, a.logger,
		)
	}
	if gen := a.buildCommentary(); gen != nil {
		live := func() int {
			n := 0
			for _, e := range agg.Entries(ctx) {
				if !e.Snapshot.Market.Resolved {
					n++
				}
			}
			return n
		}
		handlers.Commentary = handler.NewCommentaryHandler(gen, live, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
