package app

import (
	"log/slog"
	"net/http"

	"github.com/dwizi/triggerbot/internal/commandsync"
	"github.com/dwizi/triggerbot/internal/config"
	"github.com/dwizi/triggerbot/internal/connectors"
	"github.com/dwizi/triggerbot/internal/heartbeat"
	"github.com/dwizi/triggerbot/internal/scheduler"
	"github.com/dwizi/triggerbot/internal/store"
)

type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *store.Store
	httpServer *http.Server
	connectors []connectors.Connector
	sync       *commandsync.Manager
	resync     *scheduler.Service
	heartbeat  *heartbeat.Registry
}

type heartbeatAware interface {
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}
