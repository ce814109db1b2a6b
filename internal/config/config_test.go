package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("TRIGGERBOT_DATA_DIR", "")
	t.Setenv("TRIGGERBOT_DB_PATH", "")
	t.Setenv("TRIGGERBOT_TRIGGER_PREFIX", "")
	t.Setenv("TRIGGERBOT_DISCORD_COMMAND_GUILD_IDS", "")
	t.Setenv("TRIGGERBOT_SESSION_SECRET", "")
	t.Setenv("TRIGGERBOT_CAPTURE_SECRET", "")
	t.Setenv("TRIGGERBOT_WEB_ENABLED", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != filepath.Join("./data", "triggerbot", "commands.sqlite") {
		t.Fatalf("unexpected db path %q", cfg.DBPath)
	}
	if cfg.TriggerPrefix != "!" {
		t.Fatalf("unexpected prefix %q", cfg.TriggerPrefix)
	}
	if cfg.MaxReplyChars != 2000 {
		t.Fatalf("unexpected reply limit %d", cfg.MaxReplyChars)
	}
	if cfg.HandlerConcurrency != 16 {
		t.Fatalf("unexpected handler concurrency %d", cfg.HandlerConcurrency)
	}
	if !cfg.CommandSyncEnabled {
		t.Fatal("expected command sync enabled by default")
	}
	if cfg.WebEnabled {
		t.Fatal("expected web dashboard disabled by default")
	}
	if len(cfg.DiscordCommandGuildIDs) != 0 {
		t.Fatalf("expected no command guilds, got %v", cfg.DiscordCommandGuildIDs)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TRIGGERBOT_DATA_DIR", "/srv/bot")
	t.Setenv("TRIGGERBOT_DB_PATH", "")
	t.Setenv("TRIGGERBOT_TRIGGER_PREFIX", "?")
	t.Setenv("TRIGGERBOT_MAX_REPLY_CHARS", "500")
	t.Setenv("TRIGGERBOT_DISCORD_COMMAND_GUILD_IDS", "111, 222,,333")
	t.Setenv("TRIGGERBOT_SESSION_SECRET", "session-secret")
	t.Setenv("TRIGGERBOT_CAPTURE_SECRET", "")
	t.Setenv("TRIGGERBOT_WEB_ENABLED", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.DBPath != filepath.Join("/srv/bot", "triggerbot", "commands.sqlite") {
		t.Fatalf("db path should derive from data dir, got %q", cfg.DBPath)
	}
	if cfg.TriggerPrefix != "?" || cfg.MaxReplyChars != 500 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if strings.Join(cfg.DiscordCommandGuildIDs, "|") != "111|222|333" {
		t.Fatalf("unexpected guild ids %v", cfg.DiscordCommandGuildIDs)
	}
	if cfg.CaptureSecret != "session-secret" {
		t.Fatalf("capture secret should fall back to session secret, got %q", cfg.CaptureSecret)
	}
}

func TestFromEnvWebRequiresOAuth(t *testing.T) {
	t.Setenv("TRIGGERBOT_WEB_ENABLED", "true")
	t.Setenv("TRIGGERBOT_DISCORD_CLIENT_ID", "client")
	t.Setenv("TRIGGERBOT_DISCORD_CLIENT_SECRET", "")
	t.Setenv("TRIGGERBOT_DISCORD_REDIRECT_URI", "http://localhost:8080/oauth/callback")
	t.Setenv("TRIGGERBOT_SESSION_SECRET", "")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("expected error for incomplete web config")
	}
	if !strings.Contains(err.Error(), "TRIGGERBOT_DISCORD_CLIENT_SECRET") || !strings.Contains(err.Error(), "TRIGGERBOT_SESSION_SECRET") {
		t.Fatalf("error should name missing variables: %v", err)
	}
}

func TestFromEnvRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("TRIGGERBOT_MAX_REPLY_CHARS", "lots")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected parse error")
	}
}
