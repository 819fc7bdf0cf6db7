package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskboard/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	r := gin.New()
	r.Use(AuthMiddleware(cfg))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":      c.GetString(ContextUserID),
			"workspace": c.GetString(ContextWorkspaceID),
		})
	})
	return r
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	r := authRouter()

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:      "u1",
		WorkspaceID: "ws1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	wrongKey, err := IssueToken("other-secret", "u1", "ws1", time.Hour)
	require.NoError(t, err)
	noWorkspace, err := IssueToken(testSecret, "u1", "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"only bearer prefix", "Bearer "},
		{"malformed jwt", "Bearer not.a.valid.jwt"},
		{"expired", "Bearer " + expired},
		{"wrong signature", "Bearer " + wrongKey},
		{"no workspace claim", "Bearer " + noWorkspace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "Unauthorized")
		})
	}
}

func TestAuthMiddleware_InjectsClaims(t *testing.T) {
	r := authRouter()
	token, err := IssueToken(testSecret, "user-7", "ws-9", time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"user-7","workspace":"ws-9"}`, w.Body.String())
}

func TestAuthMiddleware_WebsocketQueryToken(t *testing.T) {
	r := authRouter()
	tok, err := IssueToken(testSecret, "u1", "ws1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/test?access_token="+tok, nil)
	req.Header.Set("Upgrade", "websocket")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// plain requests must still use the header
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test?access_token="+tok, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestParseToken_RejectsNoneAlg(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{WorkspaceID: "ws"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(unsigned, testSecret)
	assert.Error(t, err)
}

func TestClaimsSubjectFallback(t *testing.T) {
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"}}
	assert.Equal(t, "sub-1", c.Subject())
	c.UserID = "uid"
	assert.Equal(t, "uid", c.Subject())
}

func rateLimitedRouter(rl config.RateLimitingConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Security: config.SecurityConfig{RateLimiting: rl}}
	r := gin.New()
	r.Use(RateLimitMiddleware(cfg))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/api/automation/rules", ok)
	r.GET("/api/cards", ok)
	return r
}

func hit(r *gin.Engine, path, ip string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":1234"
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_Disabled(t *testing.T) {
	r := rateLimitedRouter(config.RateLimitingConfig{Enabled: false, RequestsPerMinute: 1, Burst: 1})
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(r, "/api/cards", "10.0.0.1"))
	}
}

func TestRateLimit_GlobalBurst(t *testing.T) {
	r := rateLimitedRouter(config.RateLimitingConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2})
	assert.Equal(t, http.StatusOK, hit(r, "/api/cards", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit(r, "/api/cards", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "/api/cards", "10.0.0.1"))
	// a different caller has its own bucket
	assert.Equal(t, http.StatusOK, hit(r, "/api/cards", "10.0.0.2"))
}

func TestRateLimit_EndpointOverride(t *testing.T) {
	r := rateLimitedRouter(config.RateLimitingConfig{
		Enabled:           true,
		RequestsPerMinute: 600,
		Burst:             100,
		Endpoints: []config.EndpointRateLimitConfig{
			{Prefix: "/api/automation", RequestsPerMinute: 1, Burst: 1},
		},
	})
	assert.Equal(t, http.StatusOK, hit(r, "/api/automation/rules", "10.0.0.3"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "/api/automation/rules", "10.0.0.3"))
	assert.Equal(t, http.StatusOK, hit(r, "/api/cards", "10.0.0.3"))
}

func TestRateLimit_RunsAheadOfAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		JWT: config.JWTConfig{Secret: "ratelimit-secret"},
		Security: config.SecurityConfig{RateLimiting: config.RateLimitingConfig{
			Enabled: true, RequestsPerMinute: 1, Burst: 1,
		}},
	}
	r := gin.New()
	r.Use(RateLimitMiddleware(cfg))
	api := r.Group("/api")
	api.Use(AuthMiddleware(cfg))
	api.GET("/cards", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, hit(r, "/api/cards", "10.0.0.9"))
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "/api/cards", "10.0.0.9"))

	// authenticated calls from the same address draw from the same bucket
	token, err := IssueToken("ratelimit-secret", "alice", "ws1", time.Minute)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/cards", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestTokenBucketRefill(t *testing.T) {
	b := newBucket(60, 1)
	now := time.Now()
	assert.True(t, b.allow(now))
	assert.False(t, b.allow(now))
	assert.True(t, b.allow(now.Add(1100*time.Millisecond)))
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.GetDefaultConfig()
	cfg.Security.CORS.AllowedOrigins = []string{"https://board.example.com"}

	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/api/cards", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/cards", nil)
	req.Header.Set("Origin", "https://board.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://board.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/cards", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORS_Wildcard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(config.GetDefaultConfig()))
	r.GET("/api/cards", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/cards", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
