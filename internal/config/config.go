// Package config defines the top-level configuration for the shadowtrade
// client daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SHADOW_* environment variables.
type Config struct {
	Settlement SettlementConfig `toml:"settlement"`
	Vault      VaultConfig      `toml:"vault"`
	Redis      RedisConfig      `toml:"redis"`
	Poll       PollConfig       `toml:"poll"`
	Server     ServerConfig     `toml:"server"`
	Commentary CommentaryConfig `toml:"commentary"`
	Archive    ArchiveConfig    `toml:"archive"`
	Notify     NotifyConfig     `toml:"notify"`
	Categories []CategoryConfig `toml:"category"`

	// Participant is the wallet address this client acts for. Optional in
	// watch mode; required for any mode that commits, reveals, or claims.
	Participant string `toml:"participant"`
	Mode        string `toml:"mode"`
	LogLevel    string `toml:"log_level"`
}

// SettlementConfig holds the settlement engine endpoints and chain parameters.
type SettlementConfig struct {
	// RPCURL is the read gateway for the settlement engine's query surface.
	RPCURL string `toml:"rpc_url"`
	// RelayerURL is the wallet relayer endpoint through which ordered write
	// batches are submitted.
	RelayerURL string `toml:"relayer_url"`
	// StakeToken is the address of the stake-asset ledger (sBTC).
	StakeToken     string   `toml:"stake_token"`
	RequestTimeout duration `toml:"request_timeout"`
}

// VaultConfig holds PostgreSQL connection parameters for the secret vault and
// the passphrase used to encrypt secrets at rest.
type VaultConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	// Passphrase encrypts secret salts at rest. A lost passphrase makes
	// every unrevealed stake unrecoverable, same as losing the secrets.
	Passphrase string `toml:"passphrase"`
}

// RedisConfig holds Redis connection parameters for the snapshot cache and
// signal bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PollConfig holds the aggregator's polling cadence.
type PollConfig struct {
	// Interval is how often each market's snapshot is refreshed. Pollers run
	// independently per market; one stalled read never delays the others.
	Interval duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// CommentaryConfig holds the market-commentary service parameters.
type CommentaryConfig struct {
	Enabled         bool   `toml:"enabled"`
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	Model           string `toml:"model"`
	PriceFeedURL    string `toml:"price_feed_url"`
}

// ArchiveConfig holds S3 cold-storage parameters for resolved-market history
// and the action audit log.
type ArchiveConfig struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	RetentionDays  int      `toml:"retention_days"`
	Interval       duration `toml:"interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// CategoryConfig declares one named cluster of markets. A yes/no market is a
// one-row category; a price ladder lists several rows in display order.
type CategoryConfig struct {
	Slug  string      `toml:"slug"`
	Title string      `toml:"title"`
	Tag   string      `toml:"tag"`
	Rows  []RowConfig `toml:"rows"`
}

// RowConfig is one deployed market inside a category.
type RowConfig struct {
	Address string `toml:"address"`
	Label   string `toml:"label"`
	Target  string `toml:"target"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "15s", "1m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "15s" or "5m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Settlement: SettlementConfig{
			RPCURL:         "https://starknet-sepolia.public.blastapi.io/rpc/v0_7",
			RelayerURL:     "http://localhost:8547",
			StakeToken:     "0x0493a5019b3ca8cb56fd0802851e7f33d9c32260a9a9bf761030b0855040b2ed",
			RequestTimeout: duration{30 * time.Second},
		},
		Vault: VaultConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "shadowtrade",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Poll: PollConfig{
			Interval: duration{15 * time.Second},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Commentary: CommentaryConfig{
			Enabled:      true,
			Model:        "claude-sonnet-4-20250514",
			PriceFeedURL: "https://api.coingecko.com/api/v3",
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "shadowtrade-archive",
			UseSSL:         false,
			ForcePathStyle: true,
			RetentionDays:  90,
			Interval:       duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"commit_submitted", "reveal_submitted", "claim_submitted", "action_failed", "market_resolved"},
		},
		Categories: []CategoryConfig{
			{
				Slug:  "btc-ladder",
				Title: "BTC price targets",
				Tag:   "btc",
				Rows: []RowConfig{
					{Address: "0x02048548a359413c764dace52c44cab112f49c0ac78761e9f6e5c91a2027803d", Label: "BTC > $100k", Target: "$100,000"},
				},
			},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"watch": true, // poll and aggregate only, no write surface
	"serve": true, // watch + HTTP/WS API
	"full":  true, // serve + action orchestration
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, serve, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Participant identity is required once the write surface is in play.
	if mode == "full" && c.Participant == "" {
		errs = append(errs, "participant address is required for mode full")
	}

	// Settlement endpoints
	if c.Settlement.RPCURL == "" {
		errs = append(errs, "settlement: rpc_url must not be empty")
	}
	if mode == "full" && c.Settlement.RelayerURL == "" {
		errs = append(errs, "settlement: relayer_url is required for mode full")
	}
	if c.Settlement.StakeToken == "" {
		errs = append(errs, "settlement: stake_token must not be empty")
	}
	if c.Settlement.RequestTimeout.Duration <= 0 {
		errs = append(errs, "settlement: request_timeout must be positive")
	}

	// Vault
	if strings.TrimSpace(c.Vault.DSN) == "" {
		if c.Vault.Host == "" {
			errs = append(errs, "vault: host must not be empty (or set vault.dsn)")
		}
		if c.Vault.Port <= 0 || c.Vault.Port > 65535 {
			errs = append(errs, fmt.Sprintf("vault: port must be 1-65535, got %d", c.Vault.Port))
		}
		if c.Vault.Database == "" {
			errs = append(errs, "vault: database must not be empty")
		}
	}
	if c.Vault.PoolMaxConns < 1 {
		errs = append(errs, "vault: pool_max_conns must be >= 1")
	}
	if c.Vault.PoolMinConns < 0 {
		errs = append(errs, "vault: pool_min_conns must be >= 0")
	}
	if c.Vault.PoolMinConns > c.Vault.PoolMaxConns {
		errs = append(errs, "vault: pool_min_conns must not exceed pool_max_conns")
	}
	if mode == "full" && c.Vault.Passphrase == "" {
		errs = append(errs, "vault: passphrase is required for mode full")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Poll
	if c.Poll.Interval.Duration < time.Second {
		errs = append(errs, "poll: interval must be >= 1s")
	}

	// Categories
	if len(c.Categories) == 0 {
		errs = append(errs, "at least one [[category]] must be configured")
	}
	seen := map[string]bool{}
	for i, cat := range c.Categories {
		if cat.Slug == "" {
			errs = append(errs, fmt.Sprintf("category[%d]: slug must not be empty", i))
		}
		if seen[cat.Slug] {
			errs = append(errs, fmt.Sprintf("category[%d]: duplicate slug %q", i, cat.Slug))
		}
		seen[cat.Slug] = true
		if len(cat.Rows) == 0 {
			errs = append(errs, fmt.Sprintf("category %q: at least one row is required", cat.Slug))
		}
		for j, row := range cat.Rows {
			if !strings.HasPrefix(row.Address, "0x") {
				errs = append(errs, fmt.Sprintf("category %q row[%d]: address must be a 0x-prefixed contract address", cat.Slug, j))
			}
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Commentary
	if c.Commentary.Enabled && c.Commentary.PriceFeedURL == "" {
		errs = append(errs, "commentary: price_feed_url must not be empty when enabled")
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.Endpoint == "" {
			errs = append(errs, "archive: endpoint must not be empty when enabled")
		}
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty when enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
