package client

import (
	"context"
	"net/http"
)

// SessionCookieName is the cookie the backend keeps its session in.
const SessionCookieName = "session_token"

// Credentials is attached to every outgoing request: the bearer token and
// the backend session cookie, whichever are set.
type Credentials struct {
	Token         string
	SessionCookie string
}

// apply sets the Authorization header, and the session cookie unless
// jarCookie already carries one.
func (c Credentials) apply(req *http.Request, jarCookie bool) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.SessionCookie != "" && !jarCookie {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: c.SessionCookie})
	}
}

// CredentialsSource hands out the credentials current at call time.
type CredentialsSource interface {
	Credentials() Credentials
}

type staticCredentials Credentials

func (s staticCredentials) Credentials() Credentials {
	return Credentials(s)
}

// StaticCredentials always returns the same token.
func StaticCredentials(token string) CredentialsSource {
	return staticCredentials{Token: token}
}

type requestIDKey struct{}

// WithRequestID makes outgoing calls made with ctx reuse id as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
