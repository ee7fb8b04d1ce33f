package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"intellidoc-backend/internal/shared/auth"
)

func newAuthRouter(t *testing.T, iss *auth.Issuer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(iss))
	router.GET("/api/v1/documents", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserIDFromContext(c)})
	})
	router.OPTIONS("/api/v1/documents", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	iss, _ := auth.NewIssuer("test-secret", time.Hour, "dev")
	router := newAuthRouter(t, iss)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthRejections(t *testing.T) {
	iss, _ := auth.NewIssuer("test-secret", time.Hour, "dev")
	other, _ := auth.NewIssuer("other-secret", time.Hour, "dev")
	foreign, _ := other.Sign(auth.Claims{UserID: "user-1"})
	expired, _ := iss.Sign(auth.Claims{
		UserID:           "user-1",
		RegisteredClaims: expiredAt(time.Now().Add(-time.Minute)),
	})

	cases := []struct {
		name    string
		header  string
		message string
	}{
		{"missing", "", "No token provided"},
		{"wrong scheme", "Basic abc", "Invalid token format"},
		{"empty bearer", "Bearer ", "Invalid token format"},
		{"foreign signature", "Bearer " + foreign, "Invalid token"},
		{"expired", "Bearer " + expired, "Token expired"},
	}

	router := newAuthRouter(t, iss)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.Code)
			}
			var body struct {
				Error struct {
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Message != tc.message {
				t.Fatalf("expected %q, got %q", tc.message, body.Error.Message)
			}
		})
	}
}

func TestAuthStoresUserID(t *testing.T) {
	iss, _ := auth.NewIssuer("test-secret", time.Hour, "dev")
	token, err := iss.Sign(auth.Claims{UserID: "user-42"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	router := newAuthRouter(t, iss)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["userId"] != "user-42" {
		t.Fatalf("unexpected userId: %q", body["userId"])
	}
}
