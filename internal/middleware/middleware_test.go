package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"fitdesk/internal/metrics"
	"fitdesk/internal/security"
)

const secret = "middleware-secret-middleware-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type secretParser struct{}

func (secretParser) ParseAccessToken(token string) (*security.AccessClaims, error) {
	return security.ParseAccessToken(token, secret)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token, err := security.GenerateAccessToken(secret, security.AccessTokenInput{
		UserID: "u1", Role: role, TenantID: "t1", SessionID: "s1",
	}, time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	return "Bearer " + token
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", Auth(secretParser{}), func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			t.Error("principal missing")
		}
		c.JSON(http.StatusOK, gin.H{"uid": p.UserID, "sid": p.SessionID})
	})

	expired, _ := security.GenerateAccessToken(secret, security.AccessTokenInput{UserID: "u1"}, -time.Minute)

	cases := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage", "Bearer abc", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"valid", bearer(t, "CLIENT"), http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			body := decodeEnvelope(t, rec)
			if tc.code != "" {
				if body["error"] != tc.code || body["success"] != false {
					t.Errorf("body = %v", body)
				}
				return
			}
			if body["uid"] != "u1" || body["sid"] != "s1" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestRequireStaff(t *testing.T) {
	r := gin.New()
	r.GET("/staff", Auth(secretParser{}), RequireStaff(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for role, want := range map[string]int{
		"TRAINER": http.StatusNoContent,
		"ADMIN":   http.StatusNoContent,
		"CLIENT":  http.StatusForbidden,
		"":        http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/staff", nil)
		req.Header.Set("Authorization", bearer(t, role))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("role %q: status = %d, want %d", role, rec.Code, want)
		}
	}
}

func TestRequireRolesWithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireStaff(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()))
	r.GET("/boom", func(*gin.Context) { panic(errors.New("boom")) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeEnvelope(t, rec); body["error"] != "INTERNAL_SERVER_ERROR" {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("request id header missing")
	}
}

func TestRequestIDKeepsIncoming(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q", got)
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("allow origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin allowed")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMin: 60, Burst: 2, CleanupInterval: time.Hour}, zerolog.Nop())
	defer rl.Stop()

	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := do("10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if body := decodeEnvelope(t, rec); body["error"] != "RATE_LIMITED" {
		t.Errorf("body = %v", body)
	}

	if rec := do("10.0.0.2"); rec.Code != http.StatusOK {
		t.Errorf("other client limited: %d", rec.Code)
	}
	if rl.ClientCount() != 2 {
		t.Errorf("clients = %d", rl.ClientCount())
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMin: 60, Burst: 1, CleanupInterval: time.Hour}, zerolog.Nop())
	defer rl.Stop()

	base := time.Now()
	rl.now = func() time.Time { return base }
	rl.limiterFor("10.0.0.1")

	rl.now = func() time.Time { return base.Add(3 * time.Hour) }
	rl.limiterFor("10.0.0.2")
	rl.evictIdle()

	if rl.ClientCount() != 1 {
		t.Errorf("clients = %d, want 1", rl.ClientCount())
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	r := gin.New()
	r.Use(Metrics(collector))
	r.DELETE("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/"+id, nil))
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "fitdesk_http_request_duration_seconds" {
			continue
		}
		if n := len(mf.GetMetric()); n != 1 {
			t.Fatalf("series = %d, want 1", n)
		}
		for _, lp := range mf.GetMetric()[0].GetLabel() {
			if lp.GetName() == "route" && lp.GetValue() != "/sessions/:id" {
				t.Errorf("route = %q", lp.GetValue())
			}
		}
		return
	}
	t.Fatal("histogram not found")
}

func TestLoggerRecordsRouteAndPrincipal(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.InfoLevel)

	r := gin.New()
	r.Use(Logger(log))
	r.GET("/api/auth/sessions/:id", Auth(secretParser{}), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/api/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/auth/sessions/s-42?token=secret-value", nil)
	req.Header.Set("Authorization", bearer(t, "TRAINER"))
	r.ServeHTTP(httptest.NewRecorder(), req)

	if strings.Contains(buf.String(), "secret-value") {
		t.Fatalf("query string leaked into access log: %s", buf.String())
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["route"] != "/api/auth/sessions/:id" || line["path"] != "/api/auth/sessions/s-42" {
		t.Errorf("route/path = %v / %v", line["route"], line["path"])
	}
	if line["user_id"] != "u1" || line["tenant_id"] != "t1" || line["level"] != "info" {
		t.Errorf("log line = %v", line)
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	if buf.Len() != 0 {
		t.Errorf("health probe logged at info: %s", buf.String())
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/sessions/s-1", nil))
	if !strings.Contains(buf.String(), `"level":"warn"`) || !strings.Contains(buf.String(), `"status":401`) {
		t.Errorf("unauthorized request line = %s", buf.String())
	}
}
