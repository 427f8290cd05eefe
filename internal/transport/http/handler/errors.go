package handler

import (
	"log/slog"
	"net/http"

	"github.com/biexec/core/internal/transport/http/apierr"
	"github.com/gin-gonic/gin"
)

const (
	errInternalServer     = apierr.InternalMessage
	errNotFound           = "Resource not found"
	errSQLRejected        = "SQL rejected by safety gate"
	errParameterInvalid   = "Invalid query parameter value"
	errInvalidCredentials = "Invalid email or password"
	errInvalidCronExpr    = "Invalid cron expression"
)

// Error type identifiers for the envelope's "type" field (spec §6):
// stable values a client can branch on without parsing "message".
// Aliased from apierr, the shared envelope implementation also used
// by the auth and rate-limit middleware.
const (
	errTypeBadRequest   = apierr.TypeBadRequest
	errTypeNotFound     = apierr.TypeNotFound
	errTypeConflict     = apierr.TypeConflict
	errTypeUnauthorized = apierr.TypeUnauthorized
	errTypeBadGateway   = apierr.TypeBadGateway
	errTypeInternal     = apierr.TypeInternal
)

// respondError writes the structured error envelope spec §6 requires:
// {"error": {"type": ..., "message": ..., "error_id": ...}}.
func respondError(c *gin.Context, logger *slog.Logger, status int, errType, message, op string, logErr error) {
	apierr.Respond(c, logger, status, errType, message, op, logErr)
}

// respondInternal is the common case: an unexpected usecase/repo error
// that must not leak past the generic message, logged under op for
// correlation.
func respondInternal(c *gin.Context, logger *slog.Logger, op string, err error) {
	respondError(c, logger, http.StatusInternalServerError, errTypeInternal, errInternalServer, op, err)
}
