package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/Decentr-net/agora/internal/api"
	"github.com/Decentr-net/agora/internal/auth"
	"github.com/Decentr-net/agora/internal/entities"
)

// LoginPath is where unauthenticated users are sent.
const LoginPath = "/login"

type ctxKey int

const (
	userCtxKey ctxKey = iota
	tokenCtxKey
)

// gate lets only authenticated users through.
// Any failure of authentication is treated as absence of user.
func (s server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			unauthorized(w, r)
			return
		}

		u, err := s.a.Authenticate(r.Context(), token)
		if err != nil {
			l := api.GetLogger(r.Context()).WithError(err)
			if errors.Is(err, auth.ErrUnauthorized) {
				l.Debug("request is not authorized")
			} else {
				l.Warn("failed to authenticate request")
			}

			unauthorized(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userCtxKey, u)
		ctx = context.WithValue(ctx, tokenCtxKey, token)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}

	// browsers can't set headers on websocket handshake
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get("token")
	}

	return ""
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Location", LoginPath)

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}

	api.WriteError(w, http.StatusUnauthorized, "unauthorized")
}

func getUser(ctx context.Context) *entities.User {
	u, _ := ctx.Value(userCtxKey).(*entities.User)
	return u
}

func getToken(ctx context.Context) string {
	t, _ := ctx.Value(tokenCtxKey).(string)
	return t
}
