package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"TRIGGERBOT_ENV" envDefault:"development"`
	HTTPAddr    string `env:"TRIGGERBOT_HTTP_ADDR" envDefault:":8080"`
	DataDir     string `env:"TRIGGERBOT_DATA_DIR" envDefault:"./data"`
	DBPath      string `env:"TRIGGERBOT_DB_PATH"`

	TriggerPrefix      string `env:"TRIGGERBOT_TRIGGER_PREFIX" envDefault:"!"`
	MaxReplyChars      int    `env:"TRIGGERBOT_MAX_REPLY_CHARS" envDefault:"2000"`
	HandlerConcurrency int    `env:"TRIGGERBOT_HANDLER_CONCURRENCY" envDefault:"16"`

	CommandSyncEnabled    bool   `env:"TRIGGERBOT_COMMAND_SYNC_ENABLED" envDefault:"true"`
	CommandResyncSchedule string `env:"TRIGGERBOT_COMMAND_RESYNC_SCHEDULE"`

	DiscordToken           string   `env:"TRIGGERBOT_DISCORD_TOKEN"`
	DiscordAPIBase         string   `env:"TRIGGERBOT_DISCORD_API_BASE" envDefault:"https://discord.com/api/v10"`
	DiscordGatewayURL      string   `env:"TRIGGERBOT_DISCORD_GATEWAY_URL" envDefault:"wss://gateway.discord.gg/?v=10&encoding=json"`
	DiscordApplicationID   string   `env:"TRIGGERBOT_DISCORD_APPLICATION_ID"`
	DiscordCommandGuildIDs []string `env:"TRIGGERBOT_DISCORD_COMMAND_GUILD_IDS" envSeparator:","`
	DiscordClientID        string   `env:"TRIGGERBOT_DISCORD_CLIENT_ID"`
	DiscordClientSecret    string   `env:"TRIGGERBOT_DISCORD_CLIENT_SECRET"`
	DiscordRedirectURI     string   `env:"TRIGGERBOT_DISCORD_REDIRECT_URI"`

	OAuthAuthURL  string `env:"TRIGGERBOT_OAUTH_AUTH_URL" envDefault:"https://discord.com/oauth2/authorize"`
	OAuthTokenURL string `env:"TRIGGERBOT_OAUTH_TOKEN_URL" envDefault:"https://discord.com/api/oauth2/token"`

	SessionSecret string `env:"TRIGGERBOT_SESSION_SECRET"`
	CaptureSecret string `env:"TRIGGERBOT_CAPTURE_SECRET"`
	WebEnabled    bool   `env:"TRIGGERBOT_WEB_ENABLED" envDefault:"false"`
	CookieSecure  bool   `env:"TRIGGERBOT_COOKIE_SECURE" envDefault:"false"`
}

func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	c.DBPath = strings.TrimSpace(c.DBPath)
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "triggerbot", "commands.sqlite")
	}
	c.TriggerPrefix = strings.TrimSpace(c.TriggerPrefix)
	if c.TriggerPrefix == "" {
		c.TriggerPrefix = "!"
	}
	if c.MaxReplyChars <= 0 {
		c.MaxReplyChars = 2000
	}
	if c.HandlerConcurrency <= 0 {
		c.HandlerConcurrency = 16
	}
	c.CommandResyncSchedule = strings.TrimSpace(c.CommandResyncSchedule)
	c.DiscordToken = strings.TrimSpace(c.DiscordToken)
	c.DiscordApplicationID = strings.TrimSpace(c.DiscordApplicationID)
	guildIDs := make([]string, 0, len(c.DiscordCommandGuildIDs))
	for _, guildID := range c.DiscordCommandGuildIDs {
		if value := strings.TrimSpace(guildID); value != "" {
			guildIDs = append(guildIDs, value)
		}
	}
	c.DiscordCommandGuildIDs = guildIDs
	if strings.TrimSpace(c.CaptureSecret) == "" {
		c.CaptureSecret = c.SessionSecret
	}
}

func (c Config) validate() error {
	if !c.WebEnabled {
		return nil
	}
	missing := []string{}
	if strings.TrimSpace(c.DiscordClientID) == "" {
		missing = append(missing, "TRIGGERBOT_DISCORD_CLIENT_ID")
	}
	if strings.TrimSpace(c.DiscordClientSecret) == "" {
		missing = append(missing, "TRIGGERBOT_DISCORD_CLIENT_SECRET")
	}
	if strings.TrimSpace(c.DiscordRedirectURI) == "" {
		missing = append(missing, "TRIGGERBOT_DISCORD_REDIRECT_URI")
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		missing = append(missing, "TRIGGERBOT_SESSION_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("web dashboard enabled but %s not set", strings.Join(missing, ", "))
	}
	return nil
}
