package discord

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/triggerbot/internal/capture"
	"github.com/dwizi/triggerbot/internal/commandsync"
	"github.com/dwizi/triggerbot/internal/gateway"
	"github.com/dwizi/triggerbot/internal/heartbeat"
)

const (
	userAgent = "triggerbot/0.1"

	defaultAPIBase            = "https://discord.com/api/v10"
	defaultGatewayURL         = "wss://gateway.discord.gg/?v=10&encoding=json"
	defaultHandlerConcurrency = 16

	discordIntentGuilds          = 1 << 0
	discordIntentGuildMessages   = 1 << 9
	discordIntentMessageContents = 1 << 15

	heartbeatComponent = "connector:discord"
)

type CommandGateway interface {
	HandleMessage(ctx context.Context, input gateway.MessageInput) (gateway.MessageOutput, error)
	HandleCommand(ctx context.Context, input gateway.CommandInput) (gateway.MessageOutput, error)
}

type CaptureFlow interface {
	Begin(ref capture.MessageRef) (capture.Form, error)
	Complete(ctx context.Context, scope capture.Scope, customID, name string) (capture.Outcome, error)
}

type CommandSync interface {
	Reconcile(ctx context.Context, guildID string) commandsync.Result
	ReconcileAll(ctx context.Context, guildIDs []string) []commandsync.Result
}

type Connector struct {
	token              string
	apiBase            string
	gatewayURL         string
	commandSync        bool
	commandGuildIDs    []string
	handlerConcurrency int
	gateway            CommandGateway
	capture            CaptureFlow
	sync               CommandSync
	httpClient         *http.Client
	logger             *slog.Logger
	reporter           heartbeat.Reporter

	mu            sync.Mutex
	applicationID string
}

type Option func(*Connector)

func WithCommandSync(enabled bool) Option {
	return func(connector *Connector) {
		connector.commandSync = enabled
	}
}

// WithCommandGuildIDs lists guilds reconciled at start, before the gateway
// reports the guilds it knows about.
func WithCommandGuildIDs(guildIDs []string) Option {
	return func(connector *Connector) {
		clean := make([]string, 0, len(guildIDs))
		seen := map[string]struct{}{}
		for _, guildID := range guildIDs {
			value := strings.TrimSpace(guildID)
			if value == "" {
				continue
			}
			if _, exists := seen[value]; exists {
				continue
			}
			seen[value] = struct{}{}
			clean = append(clean, value)
		}
		connector.commandGuildIDs = clean
	}
}

func WithApplicationID(applicationID string) Option {
	return func(connector *Connector) {
		connector.applicationID = strings.TrimSpace(applicationID)
	}
}

func WithHandlerConcurrency(limit int) Option {
	return func(connector *Connector) {
		if limit > 0 {
			connector.handlerConcurrency = limit
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(connector *Connector) {
		if client != nil {
			connector.httpClient = client
		}
	}
}

func New(token, apiBase, gatewayURL string, commandGateway CommandGateway, logger *slog.Logger, opts ...Option) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = defaultAPIBase
	}
	if strings.TrimSpace(gatewayURL) == "" {
		gatewayURL = defaultGatewayURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	connector := &Connector{
		token:              strings.TrimSpace(token),
		apiBase:            strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		gatewayURL:         strings.TrimSpace(gatewayURL),
		commandSync:        true,
		handlerConcurrency: defaultHandlerConcurrency,
		gateway:            commandGateway,
		httpClient:         &http.Client{Timeout: 12 * time.Second},
		logger:             logger,
		reporter:           nopReporter{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(connector)
		}
	}
	return connector
}

func (c *Connector) Name() string {
	return "discord"
}

// SetCaptureFlow enables the "Add as command" message action.
func (c *Connector) SetCaptureFlow(flow CaptureFlow) {
	c.capture = flow
}

// SetCommandSync attaches the manager that reconciles guild commands on
// gateway lifecycle events.
func (c *Connector) SetCommandSync(manager CommandSync) {
	c.sync = manager
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	if reporter != nil {
		c.reporter = reporter
	}
}

func (c *Connector) currentApplicationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applicationID
}

func (c *Connector) setApplicationID(applicationID string) {
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.applicationID == "" {
		c.applicationID = applicationID
	}
}
