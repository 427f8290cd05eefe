// Package apierr implements the structured error envelope spec §6
// requires for every HTTP error response, shared by handler and
// middleware so a 401 from auth middleware and a 404 from a handler
// look identical on the wire.
package apierr

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Error type identifiers for the envelope's "type" field: stable
// values a client can branch on without parsing "message".
const (
	TypeBadRequest   = "bad_request"
	TypeNotFound     = "not_found"
	TypeConflict     = "conflict"
	TypeUnauthorized = "unauthorized"
	TypeForbidden    = "forbidden"
	TypeRateLimited  = "rate_limited"
	TypeBadGateway   = "bad_gateway"
	TypeInternal     = "internal"
)

const InternalMessage = "Internal server error"

// Respond writes {"error": {"type", "message", "error_id"}} and aborts
// the context. Every response gets a fresh error_id; when logErr is
// non-nil it is logged server-side under op with that same error_id
// attached, so an operator can correlate an error_id a caller reports
// back to the underlying cause without the response body ever
// carrying more than a generic message (§7's error propagation
// policy).
func Respond(c *gin.Context, logger *slog.Logger, status int, errType, message, op string, logErr error) {
	errorID := uuid.NewString()
	if logErr != nil && logger != nil {
		logger.Error(op, "error_id", errorID, "status", status, "error", logErr)
	}
	c.JSON(status, gin.H{"error": gin.H{
		"type":     errType,
		"message":  message,
		"error_id": errorID,
	}})
	c.Abort()
}

// Internal is the common case: an unexpected usecase/repo error that
// must not leak past the generic message, logged under op for
// correlation.
func Internal(c *gin.Context, logger *slog.Logger, op string, err error) {
	Respond(c, logger, 500, TypeInternal, InternalMessage, op, err)
}
