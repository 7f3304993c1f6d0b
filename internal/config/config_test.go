package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validWatchConfig() Config {
	cfg := Defaults()
	cfg.Mode = "watch"
	return cfg
}

func TestValidateWatchDefaults(t *testing.T) {
	cfg := validWatchConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("watch-mode defaults should validate, got: %v", err)
	}
}

func TestValidateFullModeRequirements(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "full"
	// Defaults carry no identity or passphrase; full mode must demand them.
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full mode without participant/passphrase should not validate")
	}
	for _, want := range []string{"participant", "passphrase"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}

	cfg.Participant = "0x0123"
	cfg.Vault.Passphrase = "correct horse"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("full mode with identity and passphrase should validate, got: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validWatchConfig()
	cfg.Mode = "turbo"
	cfg.Settlement.RPCURL = ""
	cfg.Redis.Addr = ""
	cfg.Poll.Interval = duration{500 * time.Millisecond}
	cfg.Categories = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"unknown mode", "rpc_url", "redis: addr", "poll: interval", "category"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidateCategoryRows(t *testing.T) {
	cfg := validWatchConfig()
	cfg.Categories = []CategoryConfig{
		{Slug: "a", Title: "A", Rows: []RowConfig{{Address: "not-an-address"}}},
		{Slug: "a", Title: "dup", Rows: []RowConfig{{Address: "0x1"}}},
		{Slug: "empty", Title: "no rows"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"0x-prefixed", "duplicate slug", "at least one row"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "serve"
participant = "0x0abc"

[poll]
interval = "45s"

[[category]]
slug = "eth"
title = "ETH targets"
tag = "eth"

[[category.rows]]
address = "0x0def"
label = "ETH > $5k"
target = "$5,000"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "serve" {
		t.Errorf("mode = %q, want serve", cfg.Mode)
	}
	if cfg.Poll.Interval.Duration != 45*time.Second {
		t.Errorf("poll interval = %v, want 45s", cfg.Poll.Interval.Duration)
	}
	// Untouched sections keep their defaults.
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q, want default", cfg.Redis.Addr)
	}
	if len(cfg.Categories) != 1 || cfg.Categories[0].Slug != "eth" {
		t.Errorf("categories = %+v, want the file's eth category", cfg.Categories)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("mode = \"watch\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SHADOW_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("SHADOW_VAULT_PASSPHRASE", "from-env")
	t.Setenv("SHADOW_POLL_INTERVAL", "2m")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("redis addr = %q, want env override", cfg.Redis.Addr)
	}
	if cfg.Vault.Passphrase != "from-env" {
		t.Errorf("passphrase = %q, want env override", cfg.Vault.Passphrase)
	}
	if cfg.Poll.Interval.Duration != 2*time.Minute {
		t.Errorf("poll interval = %v, want 2m", cfg.Poll.Interval.Duration)
	}
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Vault.Password = "hunter2"
	cfg.Vault.Passphrase = "open sesame"
	cfg.Redis.Password = "redispw"
	cfg.Server.APIKey = "key123"
	cfg.Commentary.AnthropicAPIKey = "sk-ant"
	cfg.Archive.AccessKey = "AKIA"
	cfg.Archive.SecretKey = "secret"
	cfg.Notify.TelegramToken = "tok"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	red := RedactedConfig(&cfg)

	for name, got := range map[string]string{
		"vault password":    red.Vault.Password,
		"vault passphrase":  red.Vault.Passphrase,
		"redis password":    red.Redis.Password,
		"server api key":    red.Server.APIKey,
		"anthropic api key": red.Commentary.AnthropicAPIKey,
		"archive access":    red.Archive.AccessKey,
		"archive secret":    red.Archive.SecretKey,
		"telegram token":    red.Notify.TelegramToken,
		"discord webhook":   red.Notify.DiscordWebhookURL,
	} {
		if got != "***" {
			t.Errorf("%s not redacted: %q", name, got)
		}
	}

	// Original untouched.
	if cfg.Vault.Password != "hunter2" {
		t.Errorf("redaction mutated the original config")
	}
	// Non-secret fields survive.
	if red.Redis.Addr != cfg.Redis.Addr || red.Mode != cfg.Mode {
		t.Errorf("non-secret fields should be copied verbatim")
	}
}
