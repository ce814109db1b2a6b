package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/triggerbot/internal/boterr"
)

const (
	csrfCookie     = "csrf"
	stateCookie    = "oauth_state"
	sessionCookie  = "session"
	usernameCookie = "username"

	oauthStateTTL = 10 * time.Minute
)

func (r *router) handleLogin(w http.ResponseWriter, req *http.Request) {
	state := uuid.NewString()
	r.setCookie(w, stateCookie, state, oauthStateTTL, true)
	http.Redirect(w, req, r.deps.OAuth.AuthCodeURL(state), http.StatusSeeOther)
}

func (r *router) handleOAuthCallback(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	if oauthErr := strings.TrimSpace(query.Get("error")); oauthErr != "" {
		http.Error(w, "oauth error: "+oauthErr, http.StatusBadRequest)
		return
	}
	code := strings.TrimSpace(query.Get("code"))
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}
	state := strings.TrimSpace(query.Get("state"))
	if state == "" {
		http.Error(w, "missing state", http.StatusBadRequest)
		return
	}
	cookie, err := req.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		http.Error(w, "missing oauth_state cookie", http.StatusBadRequest)
		return
	}
	if !tokensEqual(cookie.Value, state) {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	r.clearCookie(w, stateCookie)

	token, err := r.deps.OAuth.Exchange(req.Context(), code)
	if err != nil {
		r.deps.Logger.Error("oauth token exchange failed", "error", err)
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}
	user, err := r.deps.Guilds.CurrentUser(req.Context(), token.AccessToken)
	if err != nil {
		r.deps.Logger.Error("fetch discord user failed", "error", err)
		http.Error(w, "get user failed", http.StatusBadGateway)
		return
	}
	sealed, err := r.deps.Sessions.Seal(token.AccessToken)
	if err != nil {
		r.deps.Logger.Error("seal session failed", "error", err)
		http.Error(w, "operation failed", http.StatusInternalServerError)
		return
	}
	r.setCookie(w, sessionCookie, sealed, r.deps.Sessions.TTL(), true)
	// Display only; never trusted for authorization.
	r.setCookie(w, usernameCookie, url.QueryEscape(user.DisplayName()), r.deps.Sessions.TTL(), false)
	r.ensureCSRF(w, req)
	r.deps.Logger.Info("dashboard login", "user_id", user.ID)
	http.Redirect(w, req, "/dashboard", http.StatusSeeOther)
}

func (r *router) handleLogout(w http.ResponseWriter, req *http.Request) {
	r.clearCookie(w, sessionCookie)
	r.clearCookie(w, usernameCookie)
	http.Redirect(w, req, "/", http.StatusSeeOther)
}

// accessToken opens the session cookie. A missing, forged, or expired
// session reports boterr.ErrUnauthorized.
func (r *router) accessToken(req *http.Request) (string, error) {
	cookie, err := req.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return "", boterr.ErrUnauthorized
	}
	token, err := r.deps.Sessions.Open(cookie.Value)
	if err != nil {
		return "", errors.Join(boterr.ErrUnauthorized, err)
	}
	return token, nil
}

func usernameFrom(req *http.Request) string {
	cookie, err := req.Cookie(usernameCookie)
	if err != nil {
		return ""
	}
	name, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return name
}

// ensureCSRF returns the browser's CSRF token, issuing one when absent.
func (r *router) ensureCSRF(w http.ResponseWriter, req *http.Request) string {
	if cookie, err := req.Cookie(csrfCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	token := uuid.NewString()
	r.setCookie(w, csrfCookie, token, 0, true)
	return token
}

func (r *router) checkCSRF(req *http.Request) error {
	cookie, err := req.Cookie(csrfCookie)
	if err != nil || cookie.Value == "" {
		return boterr.ErrCSRFMismatch
	}
	if !tokensEqual(cookie.Value, req.PostFormValue("csrf")) {
		return boterr.ErrCSRFMismatch
	}
	return nil
}

func tokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (r *router) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration, httpOnly bool) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   r.deps.Config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl > 0 {
		cookie.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, cookie)
}

func (r *router) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   r.deps.Config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
