package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/transport/http/apierr"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const errUnauthorized = "Unauthorized"
const errForbidden = "Forbidden"

const actorContextKey = "actor"

// Auth validates a Bearer JWT and attaches the decoded domain.Actor to
// the gin context for downstream handlers and RequireRole.
func Auth(jwtKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			apierr.Respond(c, nil, http.StatusUnauthorized, apierr.TypeUnauthorized, errUnauthorized, "auth", nil)
			return
		}

		rawToken := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(rawToken, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return jwtKey, nil
		})
		if err != nil || !token.Valid {
			apierr.Respond(c, nil, http.StatusUnauthorized, apierr.TypeUnauthorized, errUnauthorized, "auth", nil)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			apierr.Respond(c, nil, http.StatusUnauthorized, apierr.TypeUnauthorized, errUnauthorized, "auth", nil)
			return
		}

		userID, _ := claims["sub"].(string)
		orgID, _ := claims["org_id"].(string)
		role, _ := claims["role"].(string)
		if userID == "" || orgID == "" {
			apierr.Respond(c, nil, http.StatusUnauthorized, apierr.TypeUnauthorized, errUnauthorized, "auth", nil)
			return
		}

		c.Set(actorContextKey, domain.Actor{UserID: userID, OrgID: orgID, Role: domain.Role(role)})
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated actor holds at
// least min. Must run after Auth.
func RequireRole(min domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok || !actor.Role.AtLeast(min) {
			apierr.Respond(c, nil, http.StatusForbidden, apierr.TypeForbidden, errForbidden, "require role", nil)
			return
		}
		c.Next()
	}
}

// ActorFromContext retrieves the actor set by Auth.
func ActorFromContext(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}
