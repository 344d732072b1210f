package service

import (
	"context"
	"crypto/rand"
	mrand "math/rand/v2"
	"time"

	"github.com/99minutos/admin-backend/internal/core/session"
	"github.com/99minutos/admin-backend/internal/pkg/clock"
)

const (
	// DefaultNonceTTL is how long an issued token stays valid.
	DefaultNonceTTL = 60 * time.Second

	nonceGCThreshold   = 32
	nonceGCProbability = 0.01
)

// NonceGuard issues and consumes single use CSRF tokens kept in the session.
// One guard is built per request; Current returns the same token for the
// whole request.
type NonceGuard struct {
	sess        *session.Session
	clock       clock.Clock
	ttl         time.Duration
	chance      func() float64
	headersSent func() bool

	current string
}

type NonceOption func(*NonceGuard)

func WithNonceTTL(ttl time.Duration) NonceOption {
	return func(g *NonceGuard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithGCChance replaces the random source deciding when expired tokens are purged.
func WithGCChance(chance func() float64) NonceOption {
	return func(g *NonceGuard) { g.chance = chance }
}

// WithHeadersSent lets the guard detect a response that was already committed.
func WithHeadersSent(sent func() bool) NonceOption {
	return func(g *NonceGuard) { g.headersSent = sent }
}

func NewNonceGuard(sess *session.Session, clk clock.Clock, opts ...NonceOption) *NonceGuard {
	g := &NonceGuard{
		sess:   sess,
		clock:  clk,
		ttl:    DefaultNonceTTL,
		chance: mrand.Float64,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Current returns the outstanding token of this request, issuing it on first
// call. It panics when headers were already sent: the token could not reach
// the session cookie any more, which is a programming error.
func (g *NonceGuard) Current() string {
	if g.current != "" {
		return g.current
	}
	if g.headersSent != nil && g.headersSent() {
		panic("nonce: token requested after response headers were sent")
	}

	nonces := g.nonces()
	g.collectGarbage(nonces)

	token := rand.Text()
	nonces[token] = g.clock.Now().Unix()
	g.sess.MarkDirty()
	g.current = token
	return token
}

// Verify consumes token. An empty token means no check was requested and is
// accepted. A known, unexpired token is accepted exactly once.
func (g *NonceGuard) Verify(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return true, nil
	}

	nonces := g.nonces()
	issued, ok := nonces[token]
	if !ok {
		return false, nil
	}

	delete(nonces, token)
	g.sess.MarkDirty()
	if err := g.sess.Save(ctx); err != nil {
		return false, err
	}

	if g.expired(issued) {
		return false, nil
	}
	return true, nil
}

func (g *NonceGuard) expired(issued int64) bool {
	return g.clock.Now().Unix()-issued > int64(g.ttl/time.Second)
}

func (g *NonceGuard) collectGarbage(nonces map[string]int64) {
	if len(nonces) <= nonceGCThreshold || g.chance() >= nonceGCProbability {
		return
	}
	for token, issued := range nonces {
		if g.expired(issued) {
			delete(nonces, token)
		}
	}
}

func (g *NonceGuard) nonces() map[string]int64 {
	if g.sess.State.Nonces == nil {
		g.sess.State.Nonces = make(map[string]int64)
	}
	return g.sess.State.Nonces
}
