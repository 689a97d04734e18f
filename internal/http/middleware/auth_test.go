package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/duckbot/internal/auth"
)

const testSecret = "admin-secret"

func adminRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AdminAuth(testSecret, []string{"UADMIN"}))
	r.GET("/admin", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sub": AdminSubject(c)})
	})
	return r
}

func token(t *testing.T, sub, secret string, ttl time.Duration) string {
	t.Helper()
	tok, err := auth.IssueAdminToken(sub, secret, ttl, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func TestAdminAuth(t *testing.T) {
	r := adminRouter()

	cases := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "unauthorized"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "unauthorized"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "unauthorized"},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, "unauthorized"},
		{"wrong secret", "Bearer " + token(t, "UADMIN", "other", time.Hour), http.StatusUnauthorized, "unauthorized"},
		{"expired", "Bearer " + token(t, "UADMIN", testSecret, -time.Minute), http.StatusUnauthorized, "unauthorized"},
		{"not admin", "Bearer " + token(t, "U1", testSecret, time.Hour), http.StatusForbidden, "forbidden"},
		{"ok", "Bearer " + token(t, "UADMIN", testSecret, time.Hour), http.StatusOK, ""},
		{"lowercase scheme", "bearer " + token(t, "UADMIN", testSecret, time.Hour), http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status = %d; want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("bad json: %v", err)
			}
			if tc.code != "" && body["code"] != tc.code {
				t.Fatalf("code = %v; want %s", body["code"], tc.code)
			}
			if tc.code == "" && body["sub"] != "UADMIN" {
				t.Fatalf("subject not propagated: %v", body)
			}
		})
	}
}
