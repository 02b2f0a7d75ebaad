package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/erasreview/internal/auth"
	"github.com/yoockh/erasreview/internal/logger"
	"github.com/yoockh/erasreview/internal/metrics"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/utils"
)

func init() { gin.SetMode(gin.TestMode) }

type stubResolver struct {
	principals map[string]*models.Principal
	err        error
}

func (s stubResolver) Principal(_ context.Context, userID string) (*models.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.principals[userID]
	if !ok {
		return nil, utils.E(utils.CodeUnauthorized, "User.Principal", "user not found", nil)
	}
	return p, nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var body apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func authedRouter(tokens TokenParser, users PrincipalResolver, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	chain := append([]gin.HandlerFunc{JWTAuth(tokens), LoadPrincipal(users)}, extra...)
	chain = append(chain, func(c *gin.Context) {
		p := c.MustGet("principal").(*models.Principal)
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "role": p.Role})
	})
	r.GET("/x", chain...)
	return r
}

func TestJWTAuth(t *testing.T) {
	tokens := auth.NewTokenIssuer("secret", time.Hour)
	users := stubResolver{principals: map[string]*models.Principal{
		"u1": {UserID: "u1", Email: "a@b.co", Role: models.RoleUser},
	}}
	r := authedRouter(tokens, users)

	good, _, err := tokens.Generate("u1", "a@b.co")
	require.NoError(t, err)
	foreign, _, err := auth.NewTokenIssuer("other", time.Hour).Generate("u1", "a@b.co")
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/x", bearer(good))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"user_id":"u1"`)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/x", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "missing bearer token", decodeError(t, rec).Message)
	})

	t.Run("empty bearer", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/x", http.Header{"Authorization": []string{"Bearer   "}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/x", bearer(foreign))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid token", decodeError(t, rec).Message)
	})
}

func TestLoadPrincipal_FailsClosed(t *testing.T) {
	tokens := auth.NewTokenIssuer("secret", time.Hour)
	ghost, _, err := tokens.Generate("ghost", "g@b.co")
	require.NoError(t, err)

	t.Run("deleted account", func(t *testing.T) {
		r := authedRouter(tokens, stubResolver{})
		rec := serve(r, http.MethodGet, "/x", bearer(ghost))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "account not found", decodeError(t, rec).Message)
	})

	t.Run("store unavailable", func(t *testing.T) {
		r := authedRouter(tokens, stubResolver{err: errors.New("connection refused")})
		rec := serve(r, http.MethodGet, "/x", bearer(ghost))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, utils.CodeUnavailable, decodeError(t, rec).Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	tokens := auth.NewTokenIssuer("secret", time.Hour)
	users := stubResolver{principals: map[string]*models.Principal{
		"u1":    {UserID: "u1", Role: models.RoleUser},
		"admin": {UserID: "admin", Role: models.RoleAdmin},
	}}
	r := authedRouter(tokens, users, RequireAdmin())

	userTok, _, _ := tokens.Generate("u1", "u@b.co")
	adminTok, _, _ := tokens.Generate("admin", "a@b.co")

	rec := serve(r, http.MethodGet, "/x", bearer(userTok))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, utils.CodeForbidden, decodeError(t, rec).Code)

	rec = serve(r, http.MethodGet, "/x", bearer(adminTok))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"admin"`)
}

func TestRequireRole_WithoutPrincipal(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireRole(models.RoleUser), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, 1, logger.Discard())
	r := gin.New()
	r.GET("/x", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	first := serve(r, http.MethodGet, "/x", nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := serve(r, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Equal(t, utils.CodeRateLimited, decodeError(t, second).Code)
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(5, 5, logger.Discard())
	t0 := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	rl.limiter("10.0.0.1", t0)
	rl.limiter("10.0.0.2", t0.Add(8*time.Minute))

	rl.Sweep(t0.Add(5 * time.Minute))
	assert.Len(t, rl.limiters, 2)

	rl.Sweep(t0.Add(11 * time.Minute))
	assert.Len(t, rl.limiters, 1)
	assert.Contains(t, rl.limiters, "10.0.0.2")
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0, logger.Discard())
	assert.EqualValues(t, 5, rl.rate)
	assert.Equal(t, 5, rl.burst)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("preflight from allowed origin", func(t *testing.T) {
		rec := serve(r, http.MethodOptions, "/x", http.Header{
			"Origin":                        []string{"https://app.example.com"},
			"Access-Control-Request-Method": []string{http.MethodGet},
		})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("actual request from unknown origin", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/x", http.Header{"Origin": []string{"https://evil.example"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestLogger_RequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(logger.Discard()))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	rec := serve(r, http.MethodGet, "/x", http.Header{RequestIDHeader: []string{"abc-123"}})
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", rec.Body.String())

	rec = serve(r, http.MethodGet, "/x", http.Header{RequestIDHeader: []string{strings.Repeat("x", 200)}})
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	rec = serve(r, http.MethodGet, "/x", nil)
	_, err = uuid.Parse(rec.Body.String())
	assert.NoError(t, err)
}

func TestMetrics_CountsByRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	counter := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/items/:id", "202")
	before := testutil.ToFloat64(counter)

	serve(r, http.MethodGet, "/items/1", nil)
	serve(r, http.MethodGet, "/items/2", nil)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))

	unmatched := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	serve(r, http.MethodGet, "/nope", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))
}
