package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/dwizi/triggerbot/internal/boterr"
)

type DiscordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

// DisplayName prefers the user's global name over the account name.
func (u DiscordUser) DisplayName() string {
	if name := strings.TrimSpace(u.GlobalName); name != "" {
		return name
	}
	return u.Username
}

type DiscordGuild struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner bool   `json:"owner"`
}

// DiscordDirectory calls the Discord user endpoints with the caller's OAuth
// access token.
type DiscordDirectory struct {
	apiBase    string
	httpClient *http.Client
}

func NewDiscordDirectory(apiBase string, httpClient *http.Client) *DiscordDirectory {
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		apiBase = "https://discord.com/api/v10"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 12 * time.Second}
	}
	return &DiscordDirectory{apiBase: apiBase, httpClient: httpClient}
}

func (d *DiscordDirectory) CurrentUser(ctx context.Context, accessToken string) (DiscordUser, error) {
	var user DiscordUser
	if err := d.get(ctx, accessToken, "/users/@me", &user); err != nil {
		return DiscordUser{}, err
	}
	return user, nil
}

func (d *DiscordDirectory) UserGuilds(ctx context.Context, accessToken string) ([]DiscordGuild, error) {
	var guilds []DiscordGuild
	if err := d.get(ctx, accessToken, "/users/@me/guilds", &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}

func (d *DiscordDirectory) get(ctx context.Context, accessToken, path string, out any) error {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return boterr.ErrUnauthorized
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "triggerbot/0.1")
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: discord %s: %v", boterr.ErrTransport, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: discord %s rejected token", boterr.ErrUnauthorized, path)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fmt.Errorf("%w: discord %s status %d: %s", boterr.ErrTransport, path, res.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode discord %s: %v", boterr.ErrTransport, path, err)
	}
	return nil
}
