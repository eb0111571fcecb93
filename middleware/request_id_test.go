package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AnTengye/tenderanalyzer/pkg/logger"
	"github.com/gin-gonic/gin"
)

func newRequestIDRouter() *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		ctxID, _ := c.Request.Context().Value(logger.RequestIDKey).(string)
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c), "ctx_id": ctxID})
	})
	return router
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := newRequestIDRouter()

	// Test auto-generated request ID
	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	responseID := w.Header().Get(RequestIDHeader)
	if responseID == "" {
		t.Fatal("Expected X-Request-ID header to be set")
	}
	if !strings.Contains(w.Body.String(), `"ctx_id":"`+responseID+`"`) {
		t.Errorf("Expected request ID in request context, got %s", w.Body.String())
	}
}

func TestRequestIDMiddlewareWithExistingID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := newRequestIDRouter()

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"short id kept", "existing-request-id-123", true},
		{"long id replaced", strings.Repeat("x", 200), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set(RequestIDHeader, tt.incoming)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			responseID := w.Header().Get(RequestIDHeader)
			if (responseID == tt.incoming) != tt.keep {
				t.Errorf("Incoming %q kept=%v, response ID %q", tt.incoming, tt.keep, responseID)
			}
		})
	}
}

func TestGetRequestIDEmpty(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	// Test with no request ID set
	requestID := GetRequestID(c)
	if requestID != "" {
		t.Errorf("Expected empty string, got '%s'", requestID)
	}
}
