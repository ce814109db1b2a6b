// Package commandsync keeps each guild's registered application commands equal
// to the compiled-in schema.
package commandsync

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dwizi/triggerbot/internal/gateway"
)

const defaultReconcileTimeout = 30 * time.Second

var errMissingGuild = errors.New("guild id is required")

// Registrar replaces the full command set of one guild with commands.
type Registrar interface {
	ReplaceGuildCommands(ctx context.Context, guildID string, commands []gateway.SlashCommand) error
}

type Result struct {
	GuildID  string
	Commands int
	Err      error
}

type Status struct {
	GuildID     string    `json:"guild_id"`
	Commands    int       `json:"commands"`
	LastAttempt time.Time `json:"last_attempt"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

type Manager struct {
	registrar Registrar
	logger    *slog.Logger
	schema    func() []gateway.SlashCommand
	timeout   time.Duration
	flights   singleflight.Group

	mu     sync.Mutex
	status map[string]Status
	now    func() time.Time
}

func New(registrar Registrar, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registrar: registrar,
		logger:    logger.With("component", "commandsync"),
		schema:    gateway.SlashCommands,
		timeout:   defaultReconcileTimeout,
		status:    map[string]Status{},
		now:       time.Now,
	}
}

// Reconcile replaces the guild's commands with the schema. Calls for a guild
// that already has a replace in flight share its outcome; the flight runs
// detached from any single caller's cancellation.
func (m *Manager) Reconcile(ctx context.Context, guildID string) Result {
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return Result{Err: errMissingGuild}
	}
	resultCh := m.flights.DoChan(guildID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		commands := m.schema()
		err := m.registrar.ReplaceGuildCommands(flightCtx, guildID, commands)
		m.record(guildID, len(commands), err)
		return len(commands), err
	})
	select {
	case <-ctx.Done():
		return Result{GuildID: guildID, Err: ctx.Err()}
	case flight := <-resultCh:
		count, _ := flight.Val.(int)
		return Result{GuildID: guildID, Commands: count, Err: flight.Err}
	}
}

// ReconcileAll reconciles every guild in parallel. A failing guild is logged
// and does not stop the others.
func (m *Manager) ReconcileAll(ctx context.Context, guildIDs []string) []Result {
	unique := dedupe(guildIDs)
	results := make([]Result, len(unique))
	group := errgroup.Group{}
	group.SetLimit(8)
	for index, guildID := range unique {
		group.Go(func() error {
			result := m.Reconcile(ctx, guildID)
			if result.Err != nil {
				m.logger.Warn("guild command sync failed", "guild_id", guildID, "error", result.Err)
			} else {
				m.logger.Info("guild commands synced", "guild_id", guildID, "commands", result.Commands)
			}
			results[index] = result
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// Guilds returns every guild the manager has attempted.
func (m *Manager) Guilds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	guildIDs := make([]string, 0, len(m.status))
	for guildID := range m.status {
		guildIDs = append(guildIDs, guildID)
	}
	sort.Strings(guildIDs)
	return guildIDs
}

func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	statuses := make([]Status, 0, len(m.status))
	for _, status := range m.status {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].GuildID < statuses[j].GuildID })
	return statuses
}

func (m *Manager) record(guildID string, commands int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := m.status[guildID]
	status.GuildID = guildID
	status.LastAttempt = m.now().UTC()
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.Commands = commands
		status.LastSuccess = status.LastAttempt
		status.LastError = ""
	}
	m.status[guildID] = status
}

func dedupe(guildIDs []string) []string {
	seen := map[string]struct{}{}
	unique := make([]string, 0, len(guildIDs))
	for _, guildID := range guildIDs {
		guildID = strings.TrimSpace(guildID)
		if guildID == "" {
			continue
		}
		if _, exists := seen[guildID]; exists {
			continue
		}
		seen[guildID] = struct{}{}
		unique = append(unique, guildID)
	}
	return unique
}
