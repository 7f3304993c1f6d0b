package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/shadowtrade/shadowbot/internal/blob/s3"
	"github.com/shadowtrade/shadowbot/internal/cache/redis"
	"github.com/shadowtrade/shadowbot/internal/config"
	"github.com/shadowtrade/shadowbot/internal/domain"
	"github.com/shadowtrade/shadowbot/internal/notify"
	"github.com/shadowtrade/shadowbot/internal/platform/settlement"
	"github.com/shadowtrade/shadowbot/internal/store/postgres"
	"github.com/shadowtrade/shadowbot/internal/vault"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Vault-backed stores (nil outside full mode)
	SecretVault domain.SecretVault
	AuditStore  domain.AuditStore

	// Caches
	SnapshotCache domain.SnapshotCache
	RateLimiter   domain.RateLimiter
	SignalBus     domain.SignalBus

	// Settlement gateways (Submitter is nil outside full mode)
	Reader    domain.SettlementReader
	Submitter domain.BatchSubmitter

	// Blob storage (nil unless the archive is enabled in full mode)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	// Notifications
	Notifier *notify.Notifier
}

// needsVault reports whether the mode requires the Postgres-backed secret
// vault and audit store. Watch and serve deployments are read-only and never
// touch a secret.
func needsVault(mode string) bool {
	return mode == "full"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them with a cleanup function to call on
// shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL vault (only when the write surface is in play) ---
	if needsVault(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Vault.DSN,
			Host:     cfg.Vault.Host,
			Port:     cfg.Vault.Port,
			Database: cfg.Vault.Database,
			User:     cfg.Vault.User,
			Password: cfg.Vault.Password,
			SSLMode:  cfg.Vault.SSLMode,
			MaxConns: cfg.Vault.PoolMaxConns,
			MinConns: cfg.Vault.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Vault.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		box, err := vault.NewBox(cfg.Vault.Passphrase)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: vault cipher: %w", err)
		}

		deps.SecretVault = postgres.NewSecretStore(pgClient, box)
		deps.AuditStore = postgres.NewAuditStore(pgClient)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	// Cached snapshots stay useful for a couple of poll rounds; after that
	// a miss forces a fresh read.
	cacheTTL := 2 * cfg.Poll.Interval.Duration
	deps.SnapshotCache = redis.NewSnapshotCache(redisClient, cacheTTL)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Settlement gateways ---
	timeout := cfg.Settlement.RequestTimeout.Duration
	deps.Reader = settlement.NewReaderClient(cfg.Settlement.RPCURL, timeout)
	if needsVault(mode) {
		deps.Submitter = settlement.NewRelayerClient(cfg.Settlement.RelayerURL, timeout)
	}

	// --- S3 cold storage ---
	if mode == "full" && cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
