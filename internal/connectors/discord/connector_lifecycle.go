package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const stableSessionAfter = time.Minute

// Gateway opcodes used by the connector.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
)

var (
	errReconnectRequested = errors.New("gateway requested reconnect")
	errInvalidSession     = errors.New("gateway invalid session")
	errMalformedFrame     = errors.New("malformed gateway frame")
)

func (c *Connector) Start(ctx context.Context) error {
	if reason := c.disabledReason(); reason != "" {
		c.reporter.Disabled(heartbeatComponent, reason)
		c.logger.Info("connector disabled", "reason", reason)
		<-ctx.Done()
		return nil
	}

	c.reporter.Starting(heartbeatComponent, "connecting to gateway")
	c.logger.Info("connector started", "mode", "gateway")
	if c.commandSync && c.sync != nil && len(c.commandGuildIDs) > 0 {
		c.sync.ReconcileAll(ctx, c.commandGuildIDs)
	}

	reconnect := newReconnectBackoff()
	for ctx.Err() == nil {
		startedAt := time.Now()
		err := c.runSession(ctx)
		if ctx.Err() != nil {
			break
		}
		if time.Since(startedAt) > stableSessionAfter {
			reconnect.Reset()
		}
		wait := reconnect.NextBackOff()
		c.reporter.Degrade(heartbeatComponent, "gateway session ended", err)
		c.logger.Error("discord session ended, reconnecting", "error", err, "retry_in", wait.String())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	c.reporter.Stopped(heartbeatComponent, "stopped")
	c.logger.Info("connector stopped")
	return nil
}

func (c *Connector) disabledReason() string {
	switch {
	case c.token == "":
		return "token missing"
	case c.gateway == nil:
		return "dependencies missing"
	default:
		return ""
	}
}

func newReconnectBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0
	return bo
}

// gatewaySession serializes writes on one websocket connection and tracks
// the last dispatch sequence number for heartbeats.
type gatewaySession struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	sequence atomic.Int64
}

type gatewayFrame struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

func (s *gatewaySession) send(op int, data any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(gatewayFrame{Op: op, D: data})
}

func (s *gatewaySession) heartbeat() error {
	if err := s.send(opHeartbeat, s.sequence.Load()); err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	return nil
}

// next reads one frame. A frame that does not decode is reported with
// errMalformedFrame and the connection stays usable.
func (s *gatewaySession) next() (gatewayEnvelope, error) {
	var envelope gatewayEnvelope
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return envelope, err
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return envelope, fmt.Errorf("%w: %v", errMalformedFrame, err)
	}
	return envelope, nil
}

// awaitHello skips frames until HELLO and returns the heartbeat interval it
// announces.
func (s *gatewaySession) awaitHello() (time.Duration, error) {
	for {
		envelope, err := s.next()
		if err != nil {
			return 0, fmt.Errorf("read hello: %w", err)
		}
		if envelope.Op != opHello {
			continue
		}
		var hello discordHello
		if err := json.Unmarshal(envelope.D, &hello); err != nil {
			return 0, fmt.Errorf("decode hello body: %w", err)
		}
		return time.Duration(hello.HeartbeatIntervalMS) * time.Millisecond, nil
	}
}

func (c *Connector) identify(session *gatewaySession) error {
	err := session.send(opIdentify, map[string]any{
		"token":   c.token,
		"intents": discordIntentGuilds | discordIntentGuildMessages | discordIntentMessageContents,
		"properties": map[string]string{
			"os":      "linux",
			"browser": "triggerbot",
			"device":  "triggerbot",
		},
	})
	if err != nil {
		return fmt.Errorf("send identify: %w", err)
	}
	return nil
}

// runSession holds one gateway connection until it fails or ctx ends. The
// returned error says why the session ended.
func (c *Connector) runSession(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("dial discord gateway: %w", err)
	}
	defer conn.Close()

	sessionCtx, cancelSession := context.WithCancel(ctx)
	defer cancelSession()
	context.AfterFunc(sessionCtx, func() {
		conn.Close()
	})

	session := &gatewaySession{conn: conn}
	interval, err := session.awaitHello()
	if err != nil {
		return err
	}
	if err := c.identify(session); err != nil {
		return err
	}
	go c.heartbeatLoop(sessionCtx, session, interval)

	handlers := errgroup.Group{}
	handlers.SetLimit(c.handlerConcurrency)
	defer func() {
		_ = handlers.Wait()
	}()

	for {
		envelope, err := session.next()
		if errors.Is(err, errMalformedFrame) {
			c.logger.Error("decode gateway envelope failed", "error", err)
			continue
		}
		if err != nil {
			return fmt.Errorf("read gateway message: %w", err)
		}
		if envelope.S != nil {
			session.sequence.Store(*envelope.S)
		}

		switch envelope.Op {
		case opDispatch:
			c.dispatchEvent(sessionCtx, &handlers, envelope)
		case opHeartbeat:
			if err := session.heartbeat(); err != nil {
				return err
			}
		case opReconnect:
			return errReconnectRequested
		case opInvalidSession:
			return errInvalidSession
		}
	}
}

// dispatchEvent hands one dispatch payload to the bounded handler pool. Each
// event runs to completion independently and failures are logged.
func (c *Connector) dispatchEvent(ctx context.Context, handlers *errgroup.Group, envelope gatewayEnvelope) {
	switch envelope.T {
	case "READY":
		var ready discordReady
		if err := json.Unmarshal(envelope.D, &ready); err != nil {
			c.logger.Error("decode ready failed", "error", err)
			return
		}
		c.setApplicationID(ready.Application.ID)
		c.reporter.Beat(heartbeatComponent, "gateway session ready")
		guildIDs := make([]string, 0, len(ready.Guilds))
		for _, guild := range ready.Guilds {
			guildIDs = append(guildIDs, guild.ID)
		}
		c.logger.Info("gateway ready", "guild_count", len(guildIDs))
		if c.commandSync && c.sync != nil && len(guildIDs) > 0 {
			handlers.Go(func() error {
				c.sync.ReconcileAll(ctx, guildIDs)
				return nil
			})
		}
	case "GUILD_CREATE":
		var guild discordGuild
		if err := json.Unmarshal(envelope.D, &guild); err != nil {
			c.logger.Error("decode guild create failed", "error", err)
			return
		}
		if !c.commandSync || c.sync == nil || guild.ID == "" {
			return
		}
		handlers.Go(func() error {
			if result := c.sync.Reconcile(ctx, guild.ID); result.Err != nil {
				c.logger.Warn("guild command sync failed", "guild_id", guild.ID, "error", result.Err)
			}
			return nil
		})
	case "MESSAGE_CREATE":
		var message discordMessageCreate
		if err := json.Unmarshal(envelope.D, &message); err != nil {
			c.logger.Error("decode message create failed", "error", err)
			return
		}
		handlers.Go(func() error {
			if err := c.handleMessageCreate(ctx, message); err != nil {
				c.logger.Error("handle discord message failed", "error", err, "channel_id", message.ChannelID, "message_id", message.ID)
			}
			return nil
		})
	case "INTERACTION_CREATE":
		var interaction discordInteractionCreate
		if err := json.Unmarshal(envelope.D, &interaction); err != nil {
			c.logger.Error("decode interaction create failed", "error", err)
			return
		}
		handlers.Go(func() error {
			if err := c.handleInteractionCreate(ctx, interaction); err != nil {
				c.logger.Error("handle discord interaction failed", "error", err, "guild_id", interaction.GuildID, "command", interaction.Data.Name)
			}
			return nil
		})
	}
}

func (c *Connector) heartbeatLoop(ctx context.Context, session *gatewaySession, interval time.Duration) {
	if interval < time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := session.heartbeat(); err != nil {
			c.logger.Error("heartbeat failed", "error", err)
			return
		}
		c.reporter.Beat(heartbeatComponent, "gateway heartbeat sent")
	}
}

type nopReporter struct{}

func (nopReporter) Starting(string, string) {}
func (nopReporter) Beat(string, string) {}
func (nopReporter) Waiting(string, string) {}
func (nopReporter) Degrade(string, string, error) {}
func (nopReporter) Disabled(string, string) {}
func (nopReporter) Stopped(string, string) {}
