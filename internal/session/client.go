package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	ClientCookieName = "fd_client"
	clientCookieAge  = 400 * 24 * time.Hour
)

// ClientID returns the browser's client ID, issuing a new cookie when the
// request carries none or an unparseable one.
func ClientID(w http.ResponseWriter, r *http.Request, secure bool) string {
	if c, err := r.Cookie(ClientCookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     ClientCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(clientCookieAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by NewContext, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
