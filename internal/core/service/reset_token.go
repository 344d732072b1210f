package service

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/pkg/clock"
)

const (
	// DefaultResetTokenTTL bounds how long a password reset link works.
	DefaultResetTokenTTL = 3 * time.Hour

	PurposePasswordReset   = "password-reset"
	PurposeInitialPassword = "initial-password"
)

// ResetTokens issues signed, expiring tokens that act as the credential of
// the password reset and initial password forms.
type ResetTokens struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewResetTokens(secret string, ttl time.Duration, clk clock.Clock) *ResetTokens {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokens{secret: []byte(secret), ttl: ttl, clock: clk}
}

// ResetClaim is what a valid token carries.
type ResetClaim struct {
	IdentityID string
	// PasswordStamp fingerprints the password hash at issue time.
	PasswordStamp string
}

type resetClaims struct {
	Stamp string `json:"pst"`
	jwt.RegisteredClaims
}

// PasswordStamp fingerprints a password hash. A token stops matching once
// the password it was issued against has been replaced.
func PasswordStamp(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}

func (r *ResetTokens) Issue(identity *domain.Identity, purpose string) (string, error) {
	now := r.clock.Now()
	claims := resetClaims{
		Stamp: PasswordStamp(identity.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Audience:  jwt.ClaimStrings{purpose},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return signed, nil
}

// Parse checks signature, purpose and expiry. Matching the stamp against the
// stored password is left to the caller.
func (r *ResetTokens) Parse(token, purpose string) (ResetClaim, error) {
	claims := &resetClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(purpose),
		jwt.WithTimeFunc(r.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ResetClaim{}, domain.ErrTokenExpired
		}
		return ResetClaim{}, domain.ErrTokenInvalid
	}
	if !parsed.Valid || claims.Subject == "" || claims.Stamp == "" {
		return ResetClaim{}, domain.ErrTokenInvalid
	}
	return ResetClaim{IdentityID: claims.Subject, PasswordStamp: claims.Stamp}, nil
}
