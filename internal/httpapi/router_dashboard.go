package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dwizi/triggerbot/internal/boterr"
	"github.com/dwizi/triggerbot/internal/store"
)

func (r *router) handleHome(w http.ResponseWriter, req *http.Request) {
	if _, err := r.accessToken(req); err == nil {
		http.Redirect(w, req, "/dashboard", http.StatusSeeOther)
		return
	}
	r.ensureCSRF(w, req)
	r.render(w, "home", pageData{Title: "triggerbot"})
}

func (r *router) handleDashboard(w http.ResponseWriter, req *http.Request) {
	token, err := r.accessToken(req)
	if err != nil {
		http.Redirect(w, req, "/", http.StatusSeeOther)
		return
	}
	guilds, err := r.deps.Guilds.UserGuilds(req.Context(), token)
	if err != nil {
		r.guildLookupFailed(w, req, err)
		return
	}
	stored, err := r.deps.Store.ListGuildIDs(req.Context())
	if err != nil {
		r.storageFailed(w, "list guilds", 0, err)
		return
	}
	withCommands := make(map[int64]struct{}, len(stored))
	for _, guildID := range stored {
		withCommands[guildID] = struct{}{}
	}
	visible := make([]DiscordGuild, 0, len(guilds))
	for _, guild := range guilds {
		guildID, err := strconv.ParseInt(guild.ID, 10, 64)
		if err != nil {
			continue
		}
		if _, ok := withCommands[guildID]; ok {
			visible = append(visible, guild)
		}
	}
	r.ensureCSRF(w, req)
	r.render(w, "dashboard", dashboardPage{
		pageData: pageData{Title: "Dashboard - triggerbot", Username: usernameFrom(req)},
		Guilds:   visible,
	})
}

func (r *router) handleCommandsPage(w http.ResponseWriter, req *http.Request) {
	guildID, guild, ok := r.authorizeGuild(w, req)
	if !ok {
		return
	}
	query := strings.TrimSpace(req.URL.Query().Get("q"))
	var (
		commands []store.Command
		err      error
	)
	if query == "" {
		commands, err = r.deps.Store.ListCommands(req.Context(), guildID)
	} else {
		commands, err = r.deps.Store.SearchCommands(req.Context(), guildID, query)
	}
	if err != nil {
		r.storageFailed(w, "list commands", guildID, err)
		return
	}
	rows := make([]commandRow, 0, len(commands))
	for _, command := range commands {
		rows = append(rows, commandRow{Name: command.Name, Response: command.Response})
	}
	prefix := r.deps.Config.TriggerPrefix
	if prefix == "" {
		prefix = "!"
	}
	guildName := guild.Name
	if strings.TrimSpace(guildName) == "" {
		guildName = guild.ID
	}
	r.render(w, "commands", commandsPage{
		pageData:      pageData{Title: "Commands - triggerbot", Username: usernameFrom(req)},
		GuildID:       guildID,
		GuildName:     guildName,
		Query:         query,
		Prefix:        prefix,
		CSRF:          r.ensureCSRF(w, req),
		MaxNameLength: store.MaxCommandNameLength,
		Commands:      rows,
	})
}

func (r *router) handleAddCommand(w http.ResponseWriter, req *http.Request) {
	if !r.requireCSRF(w, req) {
		return
	}
	guildID, _, ok := r.authorizeGuild(w, req)
	if !ok {
		return
	}
	name := strings.TrimSpace(req.PostFormValue("name"))
	response := req.PostFormValue("response")
	if strings.TrimSpace(response) == "" {
		http.Error(w, "response is required", http.StatusBadRequest)
		return
	}
	err := r.deps.Store.AddCommand(req.Context(), guildID, name, response)
	switch {
	case errors.Is(err, store.ErrCommandExists):
		http.Error(w, fmt.Sprintf("command %q already exists", name), http.StatusConflict)
		return
	case errors.Is(err, store.ErrInvalidCommand):
		http.Error(w, fmt.Sprintf("command names must be 1 to %d characters", store.MaxCommandNameLength), http.StatusBadRequest)
		return
	case err != nil:
		r.storageFailed(w, "add command", guildID, err)
		return
	}
	r.deps.Logger.Info("command added", "guild_id", guildID, "command", name, "source", "dashboard")
	redirectToCommands(w, req, guildID)
}

func (r *router) handleUpdateCommand(w http.ResponseWriter, req *http.Request) {
	if !r.requireCSRF(w, req) {
		return
	}
	guildID, _, ok := r.authorizeGuild(w, req)
	if !ok {
		return
	}
	name := strings.TrimSpace(req.PostFormValue("name"))
	err := r.deps.Store.UpdateCommand(req.Context(), guildID, name, req.PostFormValue("response"))
	switch {
	case errors.Is(err, store.ErrCommandNotFound):
		http.Error(w, fmt.Sprintf("command %q does not exist", name), http.StatusNotFound)
		return
	case errors.Is(err, store.ErrInvalidCommand):
		http.Error(w, "invalid command name", http.StatusBadRequest)
		return
	case err != nil:
		r.storageFailed(w, "update command", guildID, err)
		return
	}
	r.deps.Logger.Info("command updated", "guild_id", guildID, "command", name, "source", "dashboard")
	redirectToCommands(w, req, guildID)
}

func (r *router) handleBulkDelete(w http.ResponseWriter, req *http.Request) {
	if !r.requireCSRF(w, req) {
		return
	}
	guildID, _, ok := r.authorizeGuild(w, req)
	if !ok {
		return
	}
	names := make([]string, 0, len(req.PostForm["names"]))
	for _, name := range req.PostForm["names"] {
		if value := strings.TrimSpace(name); value != "" {
			names = append(names, value)
		}
	}
	if len(names) > 0 {
		removed, err := r.deps.Store.RemoveCommands(req.Context(), guildID, names)
		if err != nil {
			r.storageFailed(w, "remove commands", guildID, err)
			return
		}
		r.deps.Logger.Info("commands removed", "guild_id", guildID, "requested", len(names), "removed", removed, "source", "dashboard")
	}
	redirectToCommands(w, req, guildID)
}

// requireCSRF rejects a state-changing request whose form token does not
// match the browser's CSRF cookie.
func (r *router) requireCSRF(w http.ResponseWriter, req *http.Request) bool {
	if err := req.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return false
	}
	if err := r.checkCSRF(req); err != nil {
		http.Error(w, "invalid csrf", http.StatusForbidden)
		return false
	}
	return true
}

// authorizeGuild confirms the session's user belongs to the guild in the
// path. It writes the rejection itself and reports false when the request
// must stop.
func (r *router) authorizeGuild(w http.ResponseWriter, req *http.Request) (int64, DiscordGuild, bool) {
	guildID, err := strconv.ParseInt(req.PathValue("guild_id"), 10, 64)
	if err != nil || guildID <= 0 {
		http.NotFound(w, req)
		return 0, DiscordGuild{}, false
	}
	token, err := r.accessToken(req)
	if err != nil {
		http.Redirect(w, req, "/", http.StatusSeeOther)
		return 0, DiscordGuild{}, false
	}
	guild, err := guildMembership(req.Context(), r.deps.Guilds, token, guildID)
	switch {
	case errors.Is(err, boterr.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
		return 0, DiscordGuild{}, false
	case err != nil:
		r.guildLookupFailed(w, req, err)
		return 0, DiscordGuild{}, false
	}
	return guildID, guild, true
}

// guildMembership returns the user's entry for guildID, or boterr.ErrForbidden
// when the user is not a member.
func guildMembership(ctx context.Context, directory GuildDirectory, token string, guildID int64) (DiscordGuild, error) {
	guilds, err := directory.UserGuilds(ctx, token)
	if err != nil {
		return DiscordGuild{}, err
	}
	want := strconv.FormatInt(guildID, 10)
	for _, guild := range guilds {
		if strings.TrimSpace(guild.ID) == want {
			return guild, nil
		}
	}
	return DiscordGuild{}, fmt.Errorf("%w %d", boterr.ErrForbidden, guildID)
}

func (r *router) guildLookupFailed(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, boterr.ErrUnauthorized) {
		r.clearCookie(w, sessionCookie)
		r.clearCookie(w, usernameCookie)
		http.Redirect(w, req, "/", http.StatusSeeOther)
		return
	}
	r.deps.Logger.Error("fetch user guilds failed", "error", err)
	http.Error(w, "failed to fetch guilds", http.StatusBadGateway)
}

func (r *router) storageFailed(w http.ResponseWriter, operation string, guildID int64, err error) {
	r.deps.Logger.Error("dashboard storage failed", "operation", operation, "guild_id", guildID, "error", err)
	http.Error(w, "operation failed", http.StatusInternalServerError)
}

func redirectToCommands(w http.ResponseWriter, req *http.Request, guildID int64) {
	http.Redirect(w, req, fmt.Sprintf("/guilds/%d/commands", guildID), http.StatusSeeOther)
}
