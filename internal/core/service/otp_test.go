package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

var rfcSecret = []byte("12345678901234567890")

func TestOtpCode_RFC6238Vectors(t *testing.T) {
	cases := []struct {
		at   int64
		want int
	}{
		{59, 287082},
		{1111111109, 81804},
		{1111111111, 50471},
		{1234567890, 5924},
	}
	for _, tc := range cases {
		got := OtpCode(rfcSecret, TimeSlot(time.Unix(tc.at, 0)))
		if got != tc.want {
			t.Fatalf("at %d: expected %06d, got %06d", tc.at, tc.want, got)
		}
	}
}

func TestOtpService_VerifyWindow(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Unix(1111111109, 0))
	svc := NewOtpService(clk)
	slot := TimeSlot(clk.Now())

	for _, offset := range []int64{-1, 0, 1} {
		code := fmt.Sprintf("%06d", OtpCode(rfcSecret, uint64(int64(slot)+offset)))
		if !svc.Verify(rfcSecret, code) {
			t.Fatalf("expected code of slot offset %d to be accepted", offset)
		}
	}
	for _, offset := range []int64{-2, 2} {
		code := fmt.Sprintf("%06d", OtpCode(rfcSecret, uint64(int64(slot)+offset)))
		if svc.Verify(rfcSecret, code) {
			t.Fatalf("expected code of slot offset %d to be rejected", offset)
		}
	}
}

func TestOtpService_VerifyRejectsGarbage(t *testing.T) {
	svc := NewOtpService(clockwork.NewFakeClockAt(time.Unix(59, 0)))

	if !svc.Verify(rfcSecret, " 287 082 ") {
		t.Fatalf("expected whitespace to be ignored")
	}
	for _, code := range []string{"", "abc", "-287082"} {
		if svc.Verify(rfcSecret, code) {
			t.Fatalf("expected %q to be rejected", code)
		}
	}
	if svc.Verify([]byte("another-secret-value"), "287082") {
		t.Fatalf("expected code of another secret to be rejected")
	}
	if svc.Verify(nil, "287082") {
		t.Fatalf("expected empty secret to be rejected")
	}
}

func TestProvisioningURI(t *testing.T) {
	uri := ProvisioningURI("Acme Admin", "alice", rfcSecret)
	u, err := url.Parse(uri)
	if err != nil {
		t.Fatalf("invalid uri: %v", err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" {
		t.Fatalf("unexpected uri %q", uri)
	}
	if u.Query().Get("secret") != "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ" {
		t.Fatalf("unexpected secret %q", u.Query().Get("secret"))
	}
	if u.Query().Get("issuer") != "Acme Admin" {
		t.Fatalf("unexpected issuer %q", u.Query().Get("issuer"))
	}
	if !strings.HasPrefix(QRCodeURL(uri), qrCodeEndpoint) {
		t.Fatalf("unexpected qr url")
	}
}

func newEnrollmentFixture(t *testing.T) (*OtpEnrollment, *stubIdentityRepo, *clockwork.FakeClock, *domain.Identity) {
	t.Helper()
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	alice := &domain.Identity{ID: "u1", Username: "alice", Active: true}
	repo := newStubIdentityRepo(alice)
	cache := newStubCache(clk.Now)
	enroll := NewOtpEnrollment(NewOtpService(clk), cache, repo, "Acme", zerolog.Nop())
	return enroll, repo, clk, alice
}

func decodeHuman(t *testing.T, human string) []byte {
	t.Helper()
	secret, err := otpEncoding.DecodeString(human)
	if err != nil {
		t.Fatalf("decode secret: %v", err)
	}
	return secret
}

func TestOtpEnrollment_BeginConfirm(t *testing.T) {
	enroll, repo, clk, alice := newEnrollmentFixture(t)
	ctx := context.Background()

	e, err := enroll.Begin(ctx, alice)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if alice.OtpEnabled() {
		t.Fatalf("secret must not be persisted before confirmation")
	}

	secret := decodeHuman(t, e.Secret)
	wrong := fmt.Sprintf("%06d", (OtpCode(secret, TimeSlot(clk.Now())+5)))
	if !NewOtpService(clk).Verify(secret, wrong) {
		if err := enroll.Confirm(ctx, alice, e.Secret, wrong); !errors.Is(err, domain.ErrOtpInvalid) {
			t.Fatalf("expected ErrOtpInvalid, got %v", err)
		}
	}

	code := fmt.Sprintf("%06d", OtpCode(secret, TimeSlot(clk.Now())))
	if err := enroll.Confirm(ctx, alice, strings.ToLower(e.Secret), code); err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if string(repo.byID["u1"].OtpSecret) != string(secret) {
		t.Fatalf("expected secret persisted")
	}

	if err := enroll.Confirm(ctx, alice, e.Secret, code); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("staged secret must be consumed, got %v", err)
	}
}

func TestOtpEnrollment_ExpiredStage(t *testing.T) {
	enroll, _, clk, alice := newEnrollmentFixture(t)
	ctx := context.Background()

	e, err := enroll.Begin(ctx, alice)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	clk.Advance(EnrollmentTTL + time.Second)

	code := fmt.Sprintf("%06d", OtpCode(decodeHuman(t, e.Secret), TimeSlot(clk.Now())))
	if err := enroll.Confirm(ctx, alice, e.Secret, code); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestOtpEnrollment_OtherIdentityCannotConfirm(t *testing.T) {
	enroll, _, clk, alice := newEnrollmentFixture(t)
	ctx := context.Background()

	e, err := enroll.Begin(ctx, alice)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	code := fmt.Sprintf("%06d", OtpCode(decodeHuman(t, e.Secret), TimeSlot(clk.Now())))

	mallory := &domain.Identity{ID: "u2", Username: "mallory"}
	if err := enroll.Confirm(ctx, mallory, e.Secret, code); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestOtpEnrollment_Remove(t *testing.T) {
	enroll, repo, _, alice := newEnrollmentFixture(t)
	alice.OtpSecret = rfcSecret

	if err := enroll.Remove(context.Background(), "u1"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if repo.byID["u1"].OtpEnabled() {
		t.Fatalf("expected otp disabled")
	}
}
