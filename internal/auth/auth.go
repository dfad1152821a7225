// Package auth implements optional bearer-token authentication for
// mutating endpoints.
package auth

import (
	"net/http"
	"strings"

	gateErrors "github.com/agentgate-oss/agentgate/internal/errors"
)

// Gate checks requests against a configured bearer token. An empty
// token disables authentication entirely.
type Gate struct {
	token string
}

// NewGate builds a gate for the given token.
func NewGate(token string) *Gate {
	return &Gate{token: token}
}

// Enabled reports whether authentication is active.
func (g *Gate) Enabled() bool {
	return g.token != ""
}

// Check validates the request's Authorization header. It returns an
// UNAUTHORIZED GateError on failure and nil when auth is disabled or
// the token matches.
func (g *Gate) Check(r *http.Request) error {
	if g.token == "" {
		return nil
	}

	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return gateErrors.New(gateErrors.CodeUnauthorized, "Missing or invalid Authorization header")
	}

	supplied := strings.TrimPrefix(header, "Bearer ")
	if supplied != g.token {
		return gateErrors.New(gateErrors.CodeUnauthorized, "Invalid bearer token")
	}
	return nil
}
