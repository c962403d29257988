package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt"
)

// Identity is issued externally; this surface only verifies tokens. The
// opaque identity string travels in the JWT subject claim.

const subClaim = "sub"

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func Identity(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey).(string)
	return identity, ok
}

// authenticate verifies the bearer token and returns the identity it
// carries. It is the authenticate(token) -> identity capability: any
// failure is an authorization failure.
func (s *ChatApp) authenticate(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	identity, ok := claims[subClaim].(string)
	if !ok || identity == "" {
		return "", fmt.Errorf("missing subject claim")
	}

	return identity, nil
}

// bearerToken pulls the credential out of the request: the Authorization
// header for API calls, the token query parameter for websocket handshakes
// where custom headers are awkward for browser clients.
func bearerToken(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", fmt.Errorf("malformed authorization header")
		}
		return parts[1], nil
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	return "", fmt.Errorf("no credential presented")
}
