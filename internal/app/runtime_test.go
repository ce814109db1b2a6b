package app

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dwizi/triggerbot/internal/config"
	"github.com/dwizi/triggerbot/internal/heartbeat"
)

type fakeGuildLister []string

func (f fakeGuildLister) Guilds() []string {
	return f
}

func TestResyncGuildSourceMergesConfiguredAndSeen(t *testing.T) {
	source := resyncGuildSource(fakeGuildLister{"20", "10", "not-a-guild"}, []string{"10", " 30 ", ""})
	got := strings.Join(source(), ",")
	if got != "10,30,20" {
		t.Fatalf("unexpected guilds %q", got)
	}
}

func TestNewOAuthConfigRequestsIdentifyAndGuilds(t *testing.T) {
	oauthConfig := newOAuthConfig(config.Config{
		DiscordClientID:    " client ",
		DiscordRedirectURI: "http://localhost:8080/oauth/callback",
		OAuthAuthURL:       "https://discord.com/oauth2/authorize",
		OAuthTokenURL:      "https://discord.com/api/oauth2/token",
	})
	if oauthConfig.ClientID != "client" {
		t.Fatalf("client id should be trimmed, got %q", oauthConfig.ClientID)
	}
	if strings.Join(oauthConfig.Scopes, " ") != "identify guilds" {
		t.Fatalf("unexpected scopes %v", oauthConfig.Scopes)
	}
	if !strings.Contains(oauthConfig.AuthCodeURL("state-1"), "state=state-1") {
		t.Fatal("auth url should carry state")
	}
}

func TestRuntimeServesHealthAndStopsOnCancel(t *testing.T) {
	addr := freeAddr(t)
	cfg := config.Config{
		Environment:   "test",
		HTTPAddr:      addr,
		DBPath:        filepath.Join(t.TempDir(), "bot", "commands.sqlite"),
		TriggerPrefix: "!",
	}
	runtime, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer runtime.Close()
	if len(runtime.connectors) != 0 || runtime.sync != nil {
		t.Fatal("no connector should start without a token")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runtime.Run(ctx) }()

	var res *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res, err = http.Get("http://" + addr + "/readyz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("runtime did not serve: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected ready, got %d", res.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}

	snapshot := runtime.heartbeat.Snapshot(0)
	states := map[string]string{}
	for _, component := range snapshot.Components {
		states[component.Name] = component.State
	}
	if states["connector:discord"] != heartbeat.StateDisabled {
		t.Fatalf("expected disabled connector, got %v", states)
	}
	if states["api"] != heartbeat.StateStopped {
		t.Fatalf("expected stopped api, got %v", states)
	}
}

func TestNewRejectsBadResyncSchedule(t *testing.T) {
	cfg := config.Config{
		DBPath:                filepath.Join(t.TempDir(), "commands.sqlite"),
		DiscordToken:          "token",
		CommandSyncEnabled:    true,
		CommandResyncSchedule: "whenever",
	}
	if _, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()
	return addr
}
