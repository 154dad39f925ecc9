package services

import (
	"strings"
	"testing"
	"time"

	"github.com/markdave123-py/silverrag/internal/core"
	"github.com/markdave123-py/silverrag/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	token, err := svc.Issue(&models.User{Username: "alice", UUID: "u-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected a compact JWT, got %q", token)
	}

	username, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if username != "alice" {
		t.Fatalf("expected alice, got %s", username)
	}
}

func TestTokenExpired(t *testing.T) {
	svc := NewTokenService("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issued }
	token, err := svc.Issue(&models.User{Username: "alice"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = time.Now
	_, err = svc.Verify(token)
	if !core.IsKind(err, core.KindUnauthorized) || core.MessageOf(err) != "Token has expired" {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret", time.Hour).Issue(&models.User{Username: "alice"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenService("other", time.Hour).Verify(token); !core.IsKind(err, core.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := NewTokenService("secret", time.Hour).Verify("not-a-token"); !core.IsKind(err, core.KindUnauthorized) {
		t.Fatalf("expected unauthorized for garbage, got %v", err)
	}
}
