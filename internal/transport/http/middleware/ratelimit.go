package middleware

import (
	"net/http"

	"github.com/biexec/core/internal/ratelimit"
	"github.com/biexec/core/internal/transport/http/apierr"
	"github.com/gin-gonic/gin"
)

const errRateLimited = "Too many requests"

// RateLimit rejects requests once the caller's remote address, the
// caller's organization (when authenticated), or the global budget is
// exhausted. Must run after Auth when per-org limiting is desired —
// orgID is read from the actor set by Auth, defaulting to ""
// (remote-address-only) otherwise.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := ""
		if actor, ok := ActorFromContext(c); ok {
			orgID = actor.OrgID
		}

		if !limiter.Allow(orgID, c.ClientIP()) {
			c.Header("Retry-After", "1")
			apierr.Respond(c, nil, http.StatusTooManyRequests, apierr.TypeRateLimited, errRateLimited, "rate limit", nil)
			return
		}
		c.Next()
	}
}

// LoginRateLimit applies /auth/login's own tighter per-remote-address
// bucket (spec §6), on top of the general RateLimit middleware that
// already runs for every route.
func LoginRateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.AllowLogin(c.ClientIP()) {
			c.Header("Retry-After", "30")
			apierr.Respond(c, nil, http.StatusTooManyRequests, apierr.TypeRateLimited, errRateLimited, "login rate limit", nil)
			return
		}
		c.Next()
	}
}

// RegisterRateLimit is LoginRateLimit's counterpart for /auth/register.
func RegisterRateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.AllowRegister(c.ClientIP()) {
			c.Header("Retry-After", "30")
			apierr.Respond(c, nil, http.StatusTooManyRequests, apierr.TypeRateLimited, errRateLimited, "register rate limit", nil)
			return
		}
		c.Next()
	}
}
