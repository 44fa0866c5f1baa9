package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSMiddlewareAllowsAuthTokenHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware(nil))
	router.OPTIONS("/api/reports/submit", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodOptions, "/api/reports/submit", http.NoBody)
	request.Header.Set("Origin", "https://app.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	request.Header.Set("Access-Control-Request-Headers", "x-auth-token")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}

	allowHeaders := recorder.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(strings.ToLower(allowHeaders), authTokenHeader) {
		t.Fatalf("expected Access-Control-Allow-Headers to include %s, got %q", authTokenHeader, allowHeaders)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected any origin to be allowed, got %q", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestCORSMiddlewareRestrictsConfiguredOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware([]string{"https://trustrace.example"}))
	router.GET("/api/reports/recent/feed", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	allowed := httptest.NewRequest(http.MethodGet, "/api/reports/recent/feed", http.NoBody)
	allowed.Header.Set("Origin", "https://trustrace.example")
	allowedRecorder := httptest.NewRecorder()
	router.ServeHTTP(allowedRecorder, allowed)
	if allowedRecorder.Header().Get("Access-Control-Allow-Origin") != "https://trustrace.example" {
		t.Fatalf("expected configured origin to be echoed, got %q", allowedRecorder.Header().Get("Access-Control-Allow-Origin"))
	}

	denied := httptest.NewRequest(http.MethodGet, "/api/reports/recent/feed", http.NoBody)
	denied.Header.Set("Origin", "https://evil.example")
	deniedRecorder := httptest.NewRecorder()
	router.ServeHTTP(deniedRecorder, denied)
	if deniedRecorder.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden for unknown origin, got %d", deniedRecorder.Code)
	}
}
