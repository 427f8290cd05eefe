package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/biexec/core/internal/requestid"
	"github.com/biexec/core/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

func TestRequestID_NoHeader_GeneratesOne(t *testing.T) {
	var gotCtxID string
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/ping", func(c *gin.Context) {
		gotCtxID = requestid.FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	header := w.Header().Get("X-Request-ID")
	if header == "" {
		t.Fatal("expected X-Request-ID response header")
	}
	if gotCtxID != header {
		t.Errorf("context id %q != response header %q", gotCtxID, header)
	}
}

func TestRequestID_IncomingHeader_Preserved(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-supplied-id" {
		t.Errorf("X-Request-ID = %q, want client-supplied-id", got)
	}
}
