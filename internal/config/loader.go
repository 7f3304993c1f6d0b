package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SHADOW_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SHADOW_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Settlement ──
	setStr(&cfg.Settlement.RPCURL, "SHADOW_SETTLEMENT_RPC_URL")
	setStr(&cfg.Settlement.RelayerURL, "SHADOW_SETTLEMENT_RELAYER_URL")
	setStr(&cfg.Settlement.StakeToken, "SHADOW_SETTLEMENT_STAKE_TOKEN")
	setDuration(&cfg.Settlement.RequestTimeout, "SHADOW_SETTLEMENT_REQUEST_TIMEOUT")

	// ── Vault ──
	setStr(&cfg.Vault.DSN, "SHADOW_VAULT_DSN")
	setStr(&cfg.Vault.Host, "SHADOW_VAULT_HOST")
	setInt(&cfg.Vault.Port, "SHADOW_VAULT_PORT")
	setStr(&cfg.Vault.Database, "SHADOW_VAULT_DATABASE")
	setStr(&cfg.Vault.User, "SHADOW_VAULT_USER")
	setStr(&cfg.Vault.Password, "SHADOW_VAULT_PASSWORD")
	setStr(&cfg.Vault.SSLMode, "SHADOW_VAULT_SSLMODE")
	setInt(&cfg.Vault.PoolMaxConns, "SHADOW_VAULT_POOL_MAX_CONNS")
	setInt(&cfg.Vault.PoolMinConns, "SHADOW_VAULT_POOL_MIN_CONNS")
	setBool(&cfg.Vault.RunMigrations, "SHADOW_VAULT_RUN_MIGRATIONS")
	setStr(&cfg.Vault.Passphrase, "SHADOW_VAULT_PASSPHRASE")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SHADOW_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SHADOW_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SHADOW_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SHADOW_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SHADOW_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SHADOW_REDIS_TLS_ENABLED")

	// ── Poll ──
	setDuration(&cfg.Poll.Interval, "SHADOW_POLL_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SHADOW_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SHADOW_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SHADOW_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SHADOW_SERVER_API_KEY")

	// ── Commentary ──
	setBool(&cfg.Commentary.Enabled, "SHADOW_COMMENTARY_ENABLED")
	setStr(&cfg.Commentary.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setStr(&cfg.Commentary.AnthropicAPIKey, "SHADOW_COMMENTARY_ANTHROPIC_API_KEY")
	setStr(&cfg.Commentary.Model, "SHADOW_COMMENTARY_MODEL")
	setStr(&cfg.Commentary.PriceFeedURL, "SHADOW_COMMENTARY_PRICE_FEED_URL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SHADOW_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "SHADOW_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "SHADOW_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "SHADOW_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "SHADOW_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "SHADOW_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "SHADOW_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "SHADOW_ARCHIVE_FORCE_PATH_STYLE")
	setInt(&cfg.Archive.RetentionDays, "SHADOW_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "SHADOW_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SHADOW_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SHADOW_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SHADOW_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SHADOW_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Participant, "SHADOW_PARTICIPANT")
	setStr(&cfg.Mode, "SHADOW_MODE")
	setStr(&cfg.LogLevel, "SHADOW_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
