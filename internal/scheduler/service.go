// Package scheduler re-runs guild command reconciliation on a cron schedule,
// so guilds whose registration failed on a lifecycle event converge without
// waiting for the next reconnect.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/triggerbot/internal/commandsync"
	"github.com/dwizi/triggerbot/internal/heartbeat"
)

const heartbeatComponent = "resync"

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Reconciler interface {
	ReconcileAll(ctx context.Context, guildIDs []string) []commandsync.Result
}

// GuildSource lists the guilds to reconcile on each run.
type GuildSource func() []string

type Service struct {
	reconciler Reconciler
	guilds     GuildSource
	schedule   cron.Schedule
	expr       string
	logger     *slog.Logger
	reporter   heartbeat.Reporter
}

// New parses expr as a five-field cron expression or descriptor such as
// "@every 6h". An empty expr yields a service that stays idle.
func New(reconciler Reconciler, guilds GuildSource, expr string, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	service := &Service{
		reconciler: reconciler,
		guilds:     guilds,
		expr:       strings.Join(strings.Fields(expr), " "),
		logger:     logger,
	}
	if service.expr == "" {
		return service, nil
	}
	schedule, err := scheduleParser.Parse(service.expr)
	if err != nil {
		return nil, fmt.Errorf("parse resync schedule %q: %w", service.expr, err)
	}
	service.schedule = schedule
	return service, nil
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

func (s *Service) Start(ctx context.Context) error {
	if s.schedule == nil || s.reconciler == nil || s.guilds == nil {
		if s.reporter != nil {
			s.reporter.Disabled(heartbeatComponent, "no schedule configured")
		}
		<-ctx.Done()
		return nil
	}
	if s.reporter != nil {
		s.reporter.Starting(heartbeatComponent, "started")
	}
	s.logger.Info("resync scheduler started", "schedule", s.expr)
	failed := 0
	for {
		now := time.Now()
		next := s.schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))
		// A failed run stays degraded until the next run succeeds.
		if failed == 0 && s.reporter != nil {
			s.reporter.Waiting(heartbeatComponent, "next run "+next.UTC().Format(time.RFC3339))
		}
		select {
		case <-ctx.Done():
			timer.Stop()
			if s.reporter != nil {
				s.reporter.Stopped(heartbeatComponent, "stopped")
			}
			s.logger.Info("resync scheduler stopped")
			return nil
		case <-timer.C:
		}
		failed = s.RunOnce(ctx)
		if failed > 0 && s.reporter != nil {
			s.reporter.Degrade(heartbeatComponent, "resync had failures", fmt.Errorf("%d guild(s) failed to reconcile", failed))
		}
	}
}

// RunOnce reconciles every guild from the source and returns how many failed.
func (s *Service) RunOnce(ctx context.Context) int {
	guildIDs := s.guilds()
	if len(guildIDs) == 0 {
		return 0
	}
	failed := 0
	for _, result := range s.reconciler.ReconcileAll(ctx, guildIDs) {
		if result.Err != nil {
			failed++
		}
	}
	s.logger.Info("resync completed", "guild_count", len(guildIDs), "failed", failed)
	return failed
}
