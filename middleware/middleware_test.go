package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/cppla/radiocms/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimitPerCaller(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	// burst is half the per-minute budget
	if code := call("10.0.0.1"); code != http.StatusNoContent {
		t.Fatalf("first request: %d", code)
	}
	if code := call("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", code)
	}
	if code := call("10.0.0.2"); code != http.StatusNoContent {
		t.Fatalf("other callers keep their own bucket, got %d", code)
	}
}

func TestRequireRoles(t *testing.T) {
	newRouter := func(p *models.Principal) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			if p != nil {
				c.Set(ContextPrincipalKey, *p)
			}
		})
		r.GET("/", RequireRoles(models.RoleAdmin, models.RoleAnnouncer), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return r
	}
	cases := []struct {
		name string
		p    *models.Principal
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"publisher", &models.Principal{UserID: 1, Roles: []string{models.RolePublisher}}, http.StatusForbidden},
		{"announcer", &models.Principal{UserID: 2, Roles: []string{models.RoleAnnouncer}}, http.StatusNoContent},
		{"admin", &models.Principal{UserID: 3, Roles: []string{models.RoleAdmin}}, http.StatusNoContent},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		newRouter(tc.p).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.name, w.Code, tc.want)
		}
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]int{
		"":             http.StatusUnauthorized,
		"Token abc":    http.StatusUnauthorized,
		"Bearer    ":   http.StatusUnauthorized,
		"bearer abc":   0,
		"Bearer x.y.z": 0,
	}
	for header, want := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			c.Request.Header.Set("Authorization", header)
		}
		_, ok := bearerToken(c)
		if want == 0 && !ok {
			t.Fatalf("%q should yield a token", header)
		}
		if want != 0 && (ok || w.Code != want) {
			t.Fatalf("%q: ok=%v code=%d", header, ok, w.Code)
		}
	}
}
