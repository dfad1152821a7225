package auth

import (
	"net/http/httptest"
	"testing"

	gateErrors "github.com/agentgate-oss/agentgate/internal/errors"
)

func TestGate_DisabledWithoutToken(t *testing.T) {
	g := NewGate("")
	if g.Enabled() {
		t.Error("empty token should disable auth")
	}

	r := httptest.NewRequest("POST", "/invoke", nil)
	if err := g.Check(r); err != nil {
		t.Errorf("disabled gate should accept everything, got %v", err)
	}
}

func TestGate_ValidToken(t *testing.T) {
	g := NewGate("secret")

	r := httptest.NewRequest("POST", "/invoke", nil)
	r.Header.Set("Authorization", "Bearer secret")
	if err := g.Check(r); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
}

func TestGate_MissingHeader(t *testing.T) {
	g := NewGate("secret")

	r := httptest.NewRequest("POST", "/invoke", nil)
	err := g.Check(r)
	if gateErrors.AsCode(err) != gateErrors.CodeUnauthorized {
		t.Errorf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestGate_WrongScheme(t *testing.T) {
	g := NewGate("secret")

	r := httptest.NewRequest("POST", "/invoke", nil)
	r.Header.Set("Authorization", "Basic c2VjcmV0")
	if gateErrors.AsCode(g.Check(r)) != gateErrors.CodeUnauthorized {
		t.Error("non-bearer scheme should be rejected")
	}
}

func TestGate_WrongToken(t *testing.T) {
	g := NewGate("secret")

	r := httptest.NewRequest("POST", "/invoke", nil)
	r.Header.Set("Authorization", "Bearer other")
	if gateErrors.AsCode(g.Check(r)) != gateErrors.CodeUnauthorized {
		t.Error("wrong token should be rejected")
	}
}
