// internal/auth/auth.go
//
// Optional player identity.
// A valid HS256 token (Authorization: Bearer, the auth cookie, or a ?token=
// query parameter for websocket upgrades) attaches the player id to the
// request context. Guests are never rejected; identity only feeds stats and
// the leaderboard.

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultCookie is the auth cookie name used when none is configured.
const DefaultCookie = "gamedle_token"

// ctxPlayerKey is the context key type for the player id.
type ctxPlayerKey struct{}

// PlayerID returns the authenticated player id, or "" for guests.
func PlayerID(ctx context.Context) string {
	id, _ := ctx.Value(ctxPlayerKey{}).(string)
	return id
}

// WithPlayerID returns ctx carrying id.
func WithPlayerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxPlayerKey{}, id)
}

// Optional decorates requests with the player id if a valid JWT is present.
// It never 401s. An empty secret disables token parsing.
func Optional(secret, cookie string) func(http.Handler) http.Handler {
	if cookie == "" {
		cookie = DefaultCookie
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" {
				if tok := bearerOrCookie(r, cookie); tok != "" {
					if id, err := ParseToken(secret, tok); err == nil {
						r = r.WithContext(WithPlayerID(r.Context(), id))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func bearerOrCookie(r *http.Request, cookie string) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
		return c.Value
	}
	// browsers cannot set headers on websocket upgrades
	return r.URL.Query().Get("token")
}

// SignToken issues an HS256 token for playerID valid for ttl.
func SignToken(secret, playerID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   playerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	ss, err := t.SignedString([]byte(secret))
	return ss, exp, err
}

// ParseToken validates tok and returns its subject.
func ParseToken(secret, tok string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !t.Valid || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
