package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	apiComponent     = "api"
	apiProbeInterval = 20 * time.Second
)

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("triggerbot runtime starting", "addr", r.cfg.HTTPAddr, "db_path", r.cfg.DBPath, "web_enabled", r.cfg.WebEnabled)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, conn := range r.connectors {
		connector := conn
		group.Go(func() error {
			return connector.Start(groupCtx)
		})
	}
	if r.resync != nil {
		group.Go(func() error {
			return r.resync.Start(groupCtx)
		})
	}
	group.Go(func() error {
		return r.serveAPI(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

// serveAPI runs the HTTP server and beats for it while the store answers
// pings. A failing ping degrades the component without stopping the server.
func (r *Runtime) serveAPI(ctx context.Context) error {
	r.heartbeat.Beat(apiComponent, "listening on "+r.cfg.HTTPAddr)
	probeCtx, stopProbe := context.WithCancel(ctx)
	probeDone := make(chan struct{})
	go func() {
		defer close(probeDone)
		r.probeStore(probeCtx)
	}()

	err := r.httpServer.ListenAndServe()
	stopProbe()
	<-probeDone
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if err != nil {
		r.heartbeat.Degrade(apiComponent, "server failed", err)
		return err
	}
	r.heartbeat.Stopped(apiComponent, "stopped")
	return nil
}

func (r *Runtime) probeStore(ctx context.Context) {
	ticker := time.NewTicker(apiProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := r.store.Ping(pingCtx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			r.logger.Error("store ping failed", "error", err)
			r.heartbeat.Degrade(apiComponent, "store unreachable", err)
			continue
		}
		r.heartbeat.Beat(apiComponent, "store reachable")
	}
}
