package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/ports"
)

const minPasswordLength = 8

// AuthService implements password login, the second factor check and the
// token based password flows.
type AuthService struct {
	repo   ports.IdentityRepository
	otp    *OtpService
	tokens *ResetTokens
	cost   int
	log    zerolog.Logger
}

func NewAuthService(repo ports.IdentityRepository, otp *OtpService, tokens *ResetTokens, log zerolog.Logger) *AuthService {
	return &AuthService{repo: repo, otp: otp, tokens: tokens, cost: bcrypt.DefaultCost, log: log}
}

func (s *AuthService) SignIn(ctx context.Context, username, password string) (*ports.SignInResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrAuthenticationFailed
	}

	identity, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, domain.ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}

	if !identity.Active || identity.PasswordHash == "" {
		s.log.Info().Str("identity", identity.ID).Msg("sign in refused for locked or passwordless account")
		return nil, domain.ErrAuthenticationFailed
	}
	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrAuthenticationFailed
	}

	return &ports.SignInResult{Identity: identity, NeedOtp: identity.OtpEnabled()}, nil
}

func (s *AuthService) CheckOtp(ctx context.Context, identityID, code string) (*domain.Identity, error) {
	identity, err := s.repo.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, domain.ErrIntegrityBroken
		}
		return nil, fmt.Errorf("check otp: %w", err)
	}
	if !identity.OtpEnabled() || !s.otp.Verify(identity.OtpSecret, code) {
		return nil, domain.ErrOtpInvalid
	}
	return identity, nil
}

// IssueResetToken returns a token for username. Delivering it is up to the caller.
func (s *AuthService) IssueResetToken(ctx context.Context, username, purpose string) (string, error) {
	identity, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(identity, purpose)
}

// ValidateResetToken returns the identity a token was issued for. A token
// issued before the last password change is reported as expired, so each
// link sets a password at most once.
func (s *AuthService) ValidateResetToken(ctx context.Context, token, purpose string) (string, error) {
	if token == "" {
		return "", domain.ErrTokenInvalid
	}
	claim, err := s.tokens.Parse(token, purpose)
	if err != nil {
		return "", err
	}
	identity, err := s.repo.FindByID(ctx, claim.IdentityID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return "", domain.ErrTokenInvalid
		}
		return "", fmt.Errorf("validate reset token: %w", err)
	}
	if PasswordStamp(identity.PasswordHash) != claim.PasswordStamp {
		return "", domain.ErrTokenExpired
	}
	return identity.ID, nil
}

// ResetPassword consumes token and returns the identity whose password changed.
func (s *AuthService) ResetPassword(ctx context.Context, token, purpose, password string) (string, error) {
	identityID, err := s.ValidateResetToken(ctx, token, purpose)
	if err != nil {
		return "", err
	}
	if err := s.SetPassword(ctx, identityID, password); err != nil {
		return "", err
	}
	return identityID, nil
}

// CreateIdentity stores a new active identity without a password and returns
// the token of its initial password form.
func (s *AuthService) CreateIdentity(ctx context.Context, draft domain.Identity) (*domain.Identity, string, error) {
	draft.Username = strings.TrimSpace(draft.Username)
	if _, err := s.repo.FindByUsername(ctx, draft.Username); err == nil {
		return nil, "", domain.NewUserMessage("username %s is already taken", draft.Username)
	} else if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, "", fmt.Errorf("create identity: %w", err)
	}

	draft.ID = ""
	draft.PasswordHash = ""
	draft.OtpSecret = nil
	draft.Active = true
	created, err := s.repo.Create(ctx, &draft)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityExists) {
			return nil, "", domain.NewUserMessage("username %s is already taken", draft.Username)
		}
		return nil, "", fmt.Errorf("create identity: %w", err)
	}

	token, err := s.tokens.Issue(created, PurposeInitialPassword)
	if err != nil {
		return nil, "", err
	}
	s.log.Info().Str("identity", created.ID).Str("username", created.Username).Msg("identity created")
	return created, token, nil
}

func (s *AuthService) SetPassword(ctx context.Context, identityID, password string) error {
	if len(password) < minPasswordLength {
		return domain.NewUserMessage("password must be at least %d characters long", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, identityID, string(hash)); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}
