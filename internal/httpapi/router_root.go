package httpapi

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/dwizi/triggerbot/internal/commandsync"
	"github.com/dwizi/triggerbot/internal/config"
	"github.com/dwizi/triggerbot/internal/heartbeat"
	"github.com/dwizi/triggerbot/internal/session"
	"github.com/dwizi/triggerbot/internal/store"
)

type CommandStore interface {
	Ping(ctx context.Context) error
	ListCommands(ctx context.Context, guildID int64) ([]store.Command, error)
	SearchCommands(ctx context.Context, guildID int64, substring string) ([]store.Command, error)
	AddCommand(ctx context.Context, guildID int64, name, response string) error
	UpdateCommand(ctx context.Context, guildID int64, name, response string) error
	RemoveCommands(ctx context.Context, guildID int64, names []string) (int, error)
	ListGuildIDs(ctx context.Context) ([]int64, error)
}

// GuildDirectory answers who the holder of an OAuth access token is and which
// guilds they belong to.
type GuildDirectory interface {
	CurrentUser(ctx context.Context, accessToken string) (DiscordUser, error)
	UserGuilds(ctx context.Context, accessToken string) ([]DiscordGuild, error)
}

type SyncStatusProvider interface {
	Statuses() []commandsync.Status
}

type Dependencies struct {
	Config   config.Config
	Store    CommandStore
	Sessions *session.Sealer
	OAuth    *oauth2.Config
	Guilds   GuildDirectory
	Sync     SyncStatusProvider
	Logger   *slog.Logger

	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
}

type router struct {
	deps  Dependencies
	pages map[string]*template.Template
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.handleHealth)
	mux.HandleFunc("GET /readyz", rt.handleReady)
	mux.HandleFunc("GET /api/v1/info", rt.handleInfo)
	mux.HandleFunc("GET /api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("GET /api/v1/sync", rt.handleSyncStatus)

	if deps.Sessions == nil || deps.OAuth == nil || deps.Guilds == nil {
		return mux
	}
	rt.pages = mustParsePages()
	mux.HandleFunc("GET /{$}", rt.handleHome)
	mux.HandleFunc("GET /login", rt.handleLogin)
	mux.HandleFunc("GET /oauth/callback", rt.handleOAuthCallback)
	mux.HandleFunc("GET /logout", rt.handleLogout)
	mux.HandleFunc("GET /dashboard", rt.handleDashboard)
	mux.HandleFunc("GET /guilds/{guild_id}/commands", rt.handleCommandsPage)
	mux.HandleFunc("POST /guilds/{guild_id}/commands/add", rt.handleAddCommand)
	mux.HandleFunc("POST /guilds/{guild_id}/commands/update", rt.handleUpdateCommand)
	mux.HandleFunc("POST /guilds/{guild_id}/commands/bulk-delete", rt.handleBulkDelete)
	return mux
}
