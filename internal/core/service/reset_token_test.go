package service

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

func TestResetTokens_RoundTrip(t *testing.T) {
	clk := clockwork.NewFakeClock()
	tokens := NewResetTokens("secret", 0, clk)

	token, err := tokens.Issue(&domain.Identity{ID: "u1", PasswordHash: "hash"}, PurposePasswordReset)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	claim, err := tokens.Parse(token, PurposePasswordReset)
	if err != nil || claim.IdentityID != "u1" {
		t.Fatalf("expected u1, got %+v (%v)", claim, err)
	}
	if claim.PasswordStamp != PasswordStamp("hash") || claim.PasswordStamp == PasswordStamp("") {
		t.Fatalf("unexpected stamp %q", claim.PasswordStamp)
	}
}

func TestResetTokens_Expired(t *testing.T) {
	clk := clockwork.NewFakeClock()
	tokens := NewResetTokens("secret", time.Hour, clk)

	token, _ := tokens.Issue(&domain.Identity{ID: "u1"}, PurposePasswordReset)
	clk.Advance(time.Hour + time.Minute)

	if _, err := tokens.Parse(token, PurposePasswordReset); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestResetTokens_PurposeAndSignatureBound(t *testing.T) {
	clk := clockwork.NewFakeClock()
	tokens := NewResetTokens("secret", 0, clk)
	token, _ := tokens.Issue(&domain.Identity{ID: "u1"}, PurposeInitialPassword)

	if _, err := tokens.Parse(token, PurposePasswordReset); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected purpose mismatch to fail, got %v", err)
	}
	other := NewResetTokens("other-secret", 0, clk)
	if _, err := other.Parse(token, PurposeInitialPassword); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected signature mismatch to fail, got %v", err)
	}
	if _, err := tokens.Parse("not-a-token", PurposeInitialPassword); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected garbage to fail, got %v", err)
	}
}
