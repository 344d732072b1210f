package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/99minutos/admin-backend/internal/core/domain"
	"github.com/99minutos/admin-backend/internal/core/session"
)

func newGuard(clk clockwork.Clock, sess *session.Session, opts ...NonceOption) *NonceGuard {
	return NewNonceGuard(sess, clk, opts...)
}

func TestNonceGuard_CurrentIsStablePerRequest(t *testing.T) {
	clk := clockwork.NewFakeClock()
	sess := session.New("sid", nil, &stubSessionStore{})
	g := newGuard(clk, sess)

	first := g.Current()
	if first == "" || g.Current() != first {
		t.Fatalf("expected one stable token per request")
	}
	if len(sess.State.Nonces) != 1 || !sess.Dirty() {
		t.Fatalf("expected token stored in session")
	}
}

func TestNonceGuard_SingleUse(t *testing.T) {
	clk := clockwork.NewFakeClock()
	store := &stubSessionStore{}
	sess := session.New("sid", nil, store)
	token := newGuard(clk, sess).Current()

	// next request, same session
	g := newGuard(clk, sess)
	ok, err := g.Verify(context.Background(), token)
	if err != nil || !ok {
		t.Fatalf("expected first verification to succeed: %v %v", ok, err)
	}
	if store.saves == 0 {
		t.Fatalf("expected consumed nonce to be persisted")
	}

	ok, _ = g.Verify(context.Background(), token)
	if ok {
		t.Fatalf("token must verify at most once")
	}
}

func TestNonceGuard_Expiration(t *testing.T) {
	clk := clockwork.NewFakeClock()
	sess := session.New("sid", nil, &stubSessionStore{})

	fresh := newGuard(clk, sess).Current()
	stale := newGuard(clk, sess).Current()

	clk.Advance(60 * time.Second)
	if ok, _ := newGuard(clk, sess).Verify(context.Background(), fresh); !ok {
		t.Fatalf("token exactly at the window edge must still be valid")
	}

	clk.Advance(time.Second)
	if ok, _ := newGuard(clk, sess).Verify(context.Background(), stale); ok {
		t.Fatalf("token older than 60s must fail")
	}
}

func TestNonceGuard_EmptyTokenMeansNoCheck(t *testing.T) {
	g := newGuard(clockwork.NewFakeClock(), session.New("sid", nil, &stubSessionStore{}))
	if ok, err := g.Verify(context.Background(), ""); !ok || err != nil {
		t.Fatalf("empty token must be accepted")
	}
}

func TestNonceGuard_UnknownTokenRejected(t *testing.T) {
	g := newGuard(clockwork.NewFakeClock(), session.New("sid", nil, &stubSessionStore{}))
	if ok, _ := g.Verify(context.Background(), "forged"); ok {
		t.Fatalf("unknown token must be rejected")
	}
}

func TestNonceGuard_GarbageCollection(t *testing.T) {
	clk := clockwork.NewFakeClock()
	now := clk.Now().Unix()

	nonces := map[string]int64{}
	for i := 0; i < 40; i++ {
		nonces[fmt.Sprintf("old-%d", i)] = now - 120
	}
	nonces["young"] = now - 10
	sess := session.New("sid", &domain.SessionState{Nonces: nonces}, &stubSessionStore{})

	// never collected when the dice say no
	newGuard(clk, sess, WithGCChance(func() float64 { return 0.5 })).Current()
	if len(sess.State.Nonces) != 42 {
		t.Fatalf("expected no purge, got %d entries", len(sess.State.Nonces))
	}

	newGuard(clk, sess, WithGCChance(func() float64 { return 0.001 })).Current()
	if _, ok := sess.State.Nonces["young"]; !ok {
		t.Fatalf("unexpired nonce must survive collection")
	}
	if len(sess.State.Nonces) != 3 {
		t.Fatalf("expected expired entries purged, got %d entries", len(sess.State.Nonces))
	}
}

func TestNonceGuard_GarbageCollectionNeedsThreshold(t *testing.T) {
	clk := clockwork.NewFakeClock()
	now := clk.Now().Unix()
	sess := session.New("sid", &domain.SessionState{Nonces: map[string]int64{"old": now - 500}}, &stubSessionStore{})

	newGuard(clk, sess, WithGCChance(func() float64 { return 0 })).Current()
	if _, ok := sess.State.Nonces["old"]; !ok {
		t.Fatalf("small maps are not collected")
	}
}

func TestNonceGuard_PanicsAfterHeadersSent(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	g := newGuard(clockwork.NewFakeClock(), session.New("sid", nil, nil), WithHeadersSent(func() bool { return true }))
	g.Current()
}
