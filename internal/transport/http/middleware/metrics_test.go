package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/biexec/core/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

func TestMetrics_DoesNotAlterResponse(t *testing.T) {
	r := gin.New()
	r.Use(middleware.Metrics())
	r.GET("/widgets/:id", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"id": c.Param("id")}) })

	req, _ := http.NewRequest(http.MethodGet, "/widgets/42", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestMetrics_UnmatchedRoute_DoesNotPanic(t *testing.T) {
	r := gin.New()
	r.Use(middleware.Metrics())
	r.GET("/widgets/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest(http.MethodGet, "/does-not-exist", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
