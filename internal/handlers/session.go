// internal/handlers/session.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jqwei/undercover/internal/auth"
)

// EnsureSession returns the caller's ephemeral session id, minting a fresh
// one (and setting its cookie) when no valid token is presented. The id is
// the connection identifier used everywhere in the core; a reconnecting
// browser keeps its id, a fresh client gets a fresh one. Must run before
// the websocket upgrade so the cookie can still be written.
func EnsureSession(w http.ResponseWriter, r *http.Request) (string, error) {
	cookieHeader := r.Header.Get("Cookie")
	if strings.Contains(cookieHeader, "session_token=") {
		token := extractCookieToken(cookieHeader, "session_token")
		if sub, err := auth.AuthenticateJWT(token); err == nil {
			if _, err := uuid.Parse(sub); err == nil {
				return sub, nil
			}
		}
		// Invalid or expired token: fall through and mint a new session.
	}

	id := uuid.New().String()
	token, err := auth.CreateJWT(id)
	if err != nil {
		return "", fmt.Errorf("failed to create session token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return id, nil
}

// extractCookieToken extracts a named cookie value from the "Cookie" header,
// or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}
