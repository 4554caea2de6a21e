package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpportal/vpportal/backend/internal/handler"
	"github.com/vpportal/vpportal/backend/internal/service"
	"github.com/vpportal/vpportal/backend/internal/setup"
	"github.com/vpportal/vpportal/shared/config"
	"github.com/vpportal/vpportal/shared/domain"
	"github.com/vpportal/vpportal/shared/jwt"
	mw "github.com/vpportal/vpportal/shared/middleware"
	rl "github.com/vpportal/vpportal/shared/middleware/ratelimiter"
)

type stubAuth struct {
	service.AuthService
}

func (stubAuth) Login(ctx context.Context, email domain.Email, password domain.Password) (string, domain.User, error) {
	return "", domain.User{}, service.ErrInvalidCredentials
}

func (stubAuth) Me(ctx context.Context, userId domain.UserId) (domain.User, error) {
	return domain.User{Id: userId}, nil
}

type stubRequests struct {
	service.RequestService
}

func (stubRequests) MyRequests(ctx context.Context, owner domain.UserId) ([]domain.Request, error) {
	return []domain.Request{}, nil
}

func (stubRequests) Request(ctx context.Context, owner domain.UserId, id domain.RequestId) (domain.Request, error) {
	return domain.Request{Id: id, Owner: owner}, nil
}

type okPinger struct{}

func (okPinger) Ping(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *jwt.Jwt) {
	t.Helper()
	jwtService := jwt.New("test-secret", time.Hour)
	cfg := &config.Config{Public: config.Public{AllowedOrigins: []string{"http://localhost:3000"}}}
	deps := &setup.Dependencies{
		Config:         cfg,
		Handler:        handler.New(stubAuth{}, stubRequests{}, okPinger{}, nil),
		AuthMiddleware: mw.NewAuth(jwtService),
	}
	limiters := &Limiters{
		EmailSending: rl.New(1, 100, time.Hour),
		OTPCheck:     rl.New(1, 100, time.Hour),
		Login:        rl.New(rl.Every(1, time.Hour), 2, time.Hour),
		PerUser:      rl.New(1, 100, time.Hour),
	}
	t.Cleanup(limiters.Stop)
	return New(deps, limiters), jwtService
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestProtectedRoutesNeedBearerToken(t *testing.T) {
	r, jwtService := newTestRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/requests/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"success":false,"message":"Not authorized, no token"}`, rr.Body.String())

	token, err := jwtService.NewToken(domain.User{Id: "u1"})
	require.NoError(t, err)

	for _, path := range []string{"/api/requests/me", "/api/users/me", "/api/requests/abc"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestLoginIsRateLimited(t *testing.T) {
	r, _ := newTestRouter(t)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"email":"a@woxsen.edu.in","password":"x"}`))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/requests", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}
