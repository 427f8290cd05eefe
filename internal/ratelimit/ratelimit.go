// Package ratelimit provides token-bucket HTTP request throttling,
// grounded in the same golang.org/x/time/rate pattern other services
// in this stack use for API rate limiting — distinct from
// internal/limiter, which bounds concurrent query executions rather
// than request rate. Four tiers compose on every request: a global
// budget for the whole process, a per-organization budget so one
// noisy tenant cannot starve the rest of the fleet's share, a
// per-remote-address budget for unauthenticated traffic, and tighter
// per-remote-address budgets scoped to /auth/login and /auth/register
// specifically (spec §6).
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	cleanupInterval = 5 * time.Minute
	idleTimeout      = 30 * time.Minute
)

// keyedLimiter hands out an independent token bucket per key (an org
// ID or a remote address), lazily created on first use and reaped
// after idleTimeout of inactivity so long-lived processes don't
// accumulate one bucket per IP forever.
type keyedLimiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	byKey   map[string]*bucket
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newKeyedLimiter(rps float64, burst int) *keyedLimiter {
	return &keyedLimiter{rps: rate.Limit(rps), burst: burst, byKey: make(map[string]*bucket)}
}

func (k *keyedLimiter) allow(key string) bool {
	k.mu.Lock()
	b, ok := k.byKey[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(k.rps, k.burst)}
		k.byKey[key] = b
	}
	b.lastAccess = time.Now()
	k.mu.Unlock()
	return b.limiter.Allow()
}

func (k *keyedLimiter) evictIdle(cutoff time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, b := range k.byKey {
		if b.lastAccess.Before(cutoff) {
			delete(k.byKey, key)
		}
	}
}

// Limiter enforces, in order: a global process-wide rate, a
// per-remote-address rate, and a per-org rate, plus separate tighter
// per-remote-address buckets reserved for the login and register
// endpoints so credential-stuffing or account-spam attempts against
// those two routes specifically are throttled well below ordinary API
// traffic, independent of how busy the caller's organization is.
type Limiter struct {
	global       *rate.Limiter
	perOrg       *keyedLimiter
	perIP        *keyedLimiter
	loginByIP    *keyedLimiter
	registerByIP *keyedLimiter
}

func New(globalRPS float64, globalBurst int, orgRPS float64, orgBurst int, ipRPS float64, ipBurst int, authRPS float64, authBurst int) *Limiter {
	l := &Limiter{
		global:       rate.NewLimiter(rate.Limit(globalRPS), globalBurst),
		perOrg:       newKeyedLimiter(orgRPS, orgBurst),
		perIP:        newKeyedLimiter(ipRPS, ipBurst),
		loginByIP:    newKeyedLimiter(authRPS, authBurst),
		registerByIP: newKeyedLimiter(authRPS, authBurst),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether a request from remoteAddr, attributed to
// orgID (empty for unauthenticated routes), may proceed now.
func (l *Limiter) Allow(orgID, remoteAddr string) bool {
	if !l.global.Allow() {
		return false
	}
	if !l.perIP.allow(remoteAddr) {
		return false
	}
	if orgID == "" {
		return true
	}
	return l.perOrg.allow(orgID)
}

// AllowLogin applies /auth/login's own tighter per-remote-address
// bucket, on top of (not instead of) the general Allow check the
// global middleware already runs for every route.
func (l *Limiter) AllowLogin(remoteAddr string) bool {
	return l.loginByIP.allow(remoteAddr)
}

// AllowRegister applies /auth/register's own tighter per-remote-address
// bucket, analogous to AllowLogin.
func (l *Limiter) AllowRegister(remoteAddr string) bool {
	return l.registerByIP.allow(remoteAddr)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-idleTimeout)
		l.perOrg.evictIdle(cutoff)
		l.perIP.evictIdle(cutoff)
		l.loginByIP.evictIdle(cutoff)
		l.registerByIP.evictIdle(cutoff)
	}
}
