package handlers

import (
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/models"
)

const (
	accessCookie  = "accessToken"
	refreshCookie = "refreshToken"
)

// CookiePolicy controls the attributes of the session cookies.
type CookiePolicy struct {
	// Secure is disabled only for plain-HTTP local development.
	Secure bool
}

func (p CookiePolicy) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (p CookiePolicy) setSession(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, p.cookie(accessCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, p.cookie(refreshCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

func (p CookiePolicy) clearSession(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie} {
		c := p.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}
