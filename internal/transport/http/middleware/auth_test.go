package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testKey = "middleware-test-secret-at-least-32-chars!"

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(testKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuth_MissingHeader_Unauthorized(t *testing.T) {
	r := gin.New()
	r.GET("/x", middleware.Auth([]byte(testKey)), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_ValidToken_SetsActor(t *testing.T) {
	var gotActor domain.Actor
	r := gin.New()
	r.GET("/x", middleware.Auth([]byte(testKey)), func(c *gin.Context) {
		actor, ok := middleware.ActorFromContext(c)
		if !ok {
			t.Error("expected actor in context")
		}
		gotActor = actor
		c.Status(http.StatusOK)
	})

	now := time.Now()
	token := signTestToken(t, jwt.MapClaims{
		"sub": "user-1", "org_id": "org-1", "role": "editor",
		"iat": now.Unix(), "exp": now.Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotActor.UserID != "user-1" || gotActor.OrgID != "org-1" || gotActor.Role != domain.RoleEditor {
		t.Errorf("unexpected actor: %+v", gotActor)
	}
}

func TestAuth_ExpiredToken_Unauthorized(t *testing.T) {
	r := gin.New()
	r.GET("/x", middleware.Auth([]byte(testKey)), func(c *gin.Context) { c.Status(http.StatusOK) })

	past := time.Now().Add(-time.Hour)
	token := signTestToken(t, jwt.MapClaims{
		"sub": "user-1", "org_id": "org-1", "role": "viewer",
		"iat": past.Unix(), "exp": past.Add(time.Minute).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_WrongSigningKey_Unauthorized(t *testing.T) {
	r := gin.New()
	r.GET("/x", middleware.Auth([]byte(testKey)), func(c *gin.Context) { c.Status(http.StatusOK) })

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1", "org_id": "org-1", "role": "admin",
	})
	signed, err := tok.SignedString([]byte("a-completely-different-secret-key!!"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireRole_InsufficientRole_Forbidden(t *testing.T) {
	r := gin.New()
	r.GET("/x", middleware.Auth([]byte(testKey)), middleware.RequireRole(domain.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token := signTestToken(t, jwt.MapClaims{
		"sub": "user-1", "org_id": "org-1", "role": "viewer",
		"iat": time.Now().Unix(), "exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestRequireRole_SufficientRole_Allowed(t *testing.T) {
	r := gin.New()
	r.GET("/x", middleware.Auth([]byte(testKey)), middleware.RequireRole(domain.RoleEditor), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token := signTestToken(t, jwt.MapClaims{
		"sub": "user-1", "org_id": "org-1", "role": "admin",
		"iat": time.Now().Unix(), "exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (admin satisfies editor requirement)", w.Code)
	}
}
