package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/ports"
	"github.com/99minutos/admin-backend/internal/pkg/clock"
)

const (
	otpSecretSize = 10
	otpPeriod     = 30
	otpModulo     = 1_000_000

	// EnrollmentTTL bounds the time between showing a secret and confirming it.
	EnrollmentTTL = 10 * time.Minute

	qrCodeEndpoint = "https://api.qrserver.com/v1/create-qr-code/?size=200x200&data="
)

var otpEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// OtpService generates and verifies RFC 6238 time based one-time passwords.
type OtpService struct {
	clock clock.Clock
}

func NewOtpService(clk clock.Clock) *OtpService {
	return &OtpService{clock: clk}
}

// GenerateSecret returns a fresh random secret.
func (s *OtpService) GenerateSecret() ([]byte, error) {
	secret := make([]byte, otpSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate otp secret: %w", err)
	}
	return secret, nil
}

// TimeSlot returns the 30 second slot t falls into.
func TimeSlot(t time.Time) uint64 {
	return uint64(t.Unix() / otpPeriod)
}

// OtpCode computes the 6 digit code of secret for slot.
func OtpCode(secret []byte, slot uint64) int {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], slot)

	mac := hmac.New(sha1.New, secret)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return int(value % otpModulo)
}

// Verify accepts codes of the current, previous and next time slot.
func (s *OtpService) Verify(secret []byte, code string) bool {
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if len(secret) == 0 || code == "" {
		return false
	}
	supplied, err := strconv.Atoi(code)
	if err != nil || supplied < 0 {
		return false
	}

	given := []byte(fmt.Sprintf("%06d", supplied))
	slot := TimeSlot(s.clock.Now())
	for _, candidate := range []uint64{slot, slot - 1, slot + 1} {
		if candidate == ^uint64(0) {
			continue
		}
		if hmac.Equal([]byte(fmt.Sprintf("%06d", OtpCode(secret, candidate))), given) {
			return true
		}
	}
	return false
}

// Base32Encode renders secret for manual entry in an authenticator app.
func Base32Encode(secret []byte) string {
	return otpEncoding.EncodeToString(secret)
}

// ProvisioningURI builds the otpauth:// URI rendered as a QR code.
func ProvisioningURI(issuer, username string, secret []byte) string {
	label := url.PathEscape(issuer) + ":" + url.PathEscape(username)
	q := url.Values{}
	q.Set("secret", Base32Encode(secret))
	q.Set("issuer", issuer)
	return "otpauth://totp/" + label + "?" + q.Encode()
}

// QRCodeURL returns an image URL encoding uri.
func QRCodeURL(uri string) string {
	return qrCodeEndpoint + url.QueryEscape(uri)
}

// Enrollment is what the operator needs to register the secret in an app.
type Enrollment struct {
	Secret    string `json:"secret"`
	URI       string `json:"uri"`
	QRCodeURL string `json:"qrUrl"`
}

// OtpEnrollment runs the two phase enrollment: Begin stages a secret in the
// shared cache, Confirm persists it once the operator proves possession.
type OtpEnrollment struct {
	otp        *OtpService
	cache      ports.EnrollmentCache
	identities ports.IdentityRepository
	issuer     string
	log        zerolog.Logger
}

func NewOtpEnrollment(otp *OtpService, cache ports.EnrollmentCache, identities ports.IdentityRepository, issuer string, log zerolog.Logger) *OtpEnrollment {
	return &OtpEnrollment{otp: otp, cache: cache, identities: identities, issuer: issuer, log: log}
}

func (e *OtpEnrollment) Begin(ctx context.Context, identity *domain.Identity) (*Enrollment, error) {
	secret, err := e.otp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	human := Base32Encode(secret)

	value := []byte(identity.ID + ":" + hex.EncodeToString(secret))
	if err := e.cache.Stage(ctx, enrollmentKey(human), value, EnrollmentTTL); err != nil {
		return nil, fmt.Errorf("stage otp secret: %w", err)
	}

	uri := ProvisioningURI(e.issuer, identity.Username, secret)
	return &Enrollment{Secret: human, URI: uri, QRCodeURL: QRCodeURL(uri)}, nil
}

func (e *OtpEnrollment) Confirm(ctx context.Context, identity *domain.Identity, human, code string) error {
	key := enrollmentKey(strings.ToUpper(strings.TrimSpace(human)))
	staged, ok, err := e.cache.Fetch(ctx, key)
	if err != nil {
		return fmt.Errorf("fetch staged otp secret: %w", err)
	}
	if !ok {
		return fmt.Errorf("otp enrollment: %w", domain.ErrTokenExpired)
	}

	owner, encoded, found := strings.Cut(string(staged), ":")
	if !found || owner != identity.ID {
		return fmt.Errorf("otp enrollment: %w", domain.ErrTokenInvalid)
	}
	secret, err := hex.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("otp enrollment: %w", domain.ErrTokenInvalid)
	}

	if !e.otp.Verify(secret, code) {
		return domain.ErrOtpInvalid
	}

	if err := e.identities.SetOtpSecret(ctx, identity.ID, secret); err != nil {
		return fmt.Errorf("persist otp secret: %w", err)
	}
	if err := e.cache.Drop(ctx, key); err != nil {
		e.log.Warn().Err(err).Str("identity", identity.ID).Msg("failed to drop staged otp secret")
	}
	identity.OtpSecret = secret
	return nil
}

// Remove disables two-factor login for identityID.
func (e *OtpEnrollment) Remove(ctx context.Context, identityID string) error {
	if err := e.identities.SetOtpSecret(ctx, identityID, nil); err != nil {
		return fmt.Errorf("remove otp secret: %w", err)
	}
	return nil
}

func enrollmentKey(human string) string {
	sum := sha256.Sum256([]byte(human))
	return "otp-enroll:" + hex.EncodeToString(sum[:])
}
