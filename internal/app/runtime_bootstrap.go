package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/dwizi/triggerbot/internal/capture"
	"github.com/dwizi/triggerbot/internal/commandsync"
	"github.com/dwizi/triggerbot/internal/config"
	"github.com/dwizi/triggerbot/internal/connectors"
	"github.com/dwizi/triggerbot/internal/connectors/discord"
	"github.com/dwizi/triggerbot/internal/gateway"
	"github.com/dwizi/triggerbot/internal/heartbeat"
	"github.com/dwizi/triggerbot/internal/httpapi"
	"github.com/dwizi/triggerbot/internal/scheduler"
	"github.com/dwizi/triggerbot/internal/session"
	"github.com/dwizi/triggerbot/internal/store"
)

const heartbeatStaleAfter = 2 * time.Minute

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		sqlStore.Close()
		return nil, err
	}

	heartbeatRegistry := heartbeat.NewRegistry()
	heartbeatRegistry.Starting(apiComponent, "initializing")

	commandGateway := gateway.New(sqlStore, gateway.Config{
		TriggerPrefix: cfg.TriggerPrefix,
		MaxReplyChars: cfg.MaxReplyChars,
	})

	connectorList := []connectors.Connector{}
	var syncManager *commandsync.Manager
	if strings.TrimSpace(cfg.DiscordToken) != "" {
		connector := discord.New(
			cfg.DiscordToken,
			cfg.DiscordAPIBase,
			cfg.DiscordGatewayURL,
			commandGateway,
			logger.With("connector", "discord"),
			discord.WithCommandSync(cfg.CommandSyncEnabled),
			discord.WithCommandGuildIDs(cfg.DiscordCommandGuildIDs),
			discord.WithApplicationID(cfg.DiscordApplicationID),
			discord.WithHandlerConcurrency(cfg.HandlerConcurrency),
		)
		syncManager = commandsync.New(connector, logger)
		connector.SetCommandSync(syncManager)
		connector.SetCaptureFlow(capture.NewFlow(
			sqlStore,
			connector,
			[]byte(cfg.CaptureSecret),
			cfg.TriggerPrefix,
			logger.With("component", "capture"),
		))
		connectorList = append(connectorList, connector)
	} else {
		heartbeatRegistry.Disabled("connector:discord", "token missing")
	}
	for _, connector := range connectorList {
		if reporting, ok := connector.(heartbeatAware); ok {
			reporting.SetHeartbeatReporter(heartbeatRegistry)
		}
	}

	var resync *scheduler.Service
	if syncManager != nil && cfg.CommandSyncEnabled {
		resync, err = scheduler.New(
			syncManager,
			resyncGuildSource(syncManager, cfg.DiscordCommandGuildIDs),
			cfg.CommandResyncSchedule,
			logger.With("component", "resync"),
		)
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
		resync.SetHeartbeatReporter(heartbeatRegistry)
	}

	deps := httpapi.Dependencies{
		Config:              cfg,
		Store:               sqlStore,
		Logger:              logger.With("component", "api"),
		Heartbeat:           heartbeatRegistry,
		HeartbeatStaleAfter: heartbeatStaleAfter,
	}
	if syncManager != nil {
		deps.Sync = syncManager
	}
	if cfg.WebEnabled {
		sealer, err := session.NewSealer(cfg.SessionSecret, session.DefaultTTL)
		if err != nil {
			sqlStore.Close()
			return nil, err
		}
		deps.Sessions = sealer
		deps.OAuth = newOAuthConfig(cfg)
		deps.Guilds = httpapi.NewDiscordDirectory(cfg.DiscordAPIBase, nil)
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		store:      sqlStore,
		httpServer: httpServer,
		connectors: connectorList,
		sync:       syncManager,
		resync:     resync,
		heartbeat:  heartbeatRegistry,
	}, nil
}

func newOAuthConfig(cfg config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     strings.TrimSpace(cfg.DiscordClientID),
		ClientSecret: strings.TrimSpace(cfg.DiscordClientSecret),
		RedirectURL:  strings.TrimSpace(cfg.DiscordRedirectURI),
		Scopes:       []string{"identify", "guilds"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.OAuthAuthURL,
			TokenURL:  cfg.OAuthTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

type guildLister interface {
	Guilds() []string
}

// resyncGuildSource merges the guilds seen on the gateway with those pinned
// in configuration.
func resyncGuildSource(seen guildLister, configured []string) scheduler.GuildSource {
	return func() []string {
		merged := make([]string, 0, len(configured))
		index := map[string]struct{}{}
		add := func(guildID string) {
			guildID = strings.TrimSpace(guildID)
			if _, err := strconv.ParseInt(guildID, 10, 64); err != nil {
				return
			}
			if _, exists := index[guildID]; exists {
				return
			}
			index[guildID] = struct{}{}
			merged = append(merged, guildID)
		}
		for _, guildID := range configured {
			add(guildID)
		}
		for _, guildID := range seen.Guilds() {
			add(guildID)
		}
		return merged
	}
}
