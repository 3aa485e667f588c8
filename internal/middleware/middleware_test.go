package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/planix/backend/internal/contextkeys"
	"github.com/planix/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]*domain.JWTClaims

func (s stubVerifier) VerifyToken(token string) (*domain.JWTClaims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := r.Context().Value(contextkeys.AccountID).(string)
	role, _ := r.Context().Value(contextkeys.AccountRole).(string)
	_, _ = io.WriteString(w, id+"/"+role)
}

func TestAuth(t *testing.T) {
	verifier := stubVerifier{
		"good":  {Sub: "acc-1", Email: "a@example.com", Role: domain.RoleUser},
		"admin": {Sub: "acc-2", Email: "b@example.com", Role: domain.RoleAdmin},
	}
	h := Auth(verifier)(http.HandlerFunc(echoAccount))

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, ""},
		{"invalid token", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid token", "Bearer good", http.StatusOK, "acc-1/user"},
		{"scheme is case-insensitive", "bearer admin", http.StatusOK, "acc-2/admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	h := AdminOnly(http.HandlerFunc(echoAccount))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	ctx := WithClaims(context.Background(), &domain.JWTClaims{Sub: "u", Role: domain.RoleUser})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	ctx = WithClaims(context.Background(), &domain.JWTClaims{Sub: "a", Role: domain.RoleAdmin})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecovery(t *testing.T) {
	h := Recovery(quietLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 0.001, 2)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("1.1.1.1").Code)
	assert.Equal(t, http.StatusNoContent, call("1.1.1.1").Code)
	limited := call("1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	// Buckets are per client.
	assert.Equal(t, http.StatusNoContent, call("2.2.2.2").Code)
}

func TestRateLimiter_Evict(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 1, 1)
	rl.now = func() time.Time { return now }

	rl.allow("1.1.1.1")
	now = now.Add(visitorTTL + time.Second)
	rl.allow("2.2.2.2")
	rl.evict()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "1.1.1.1")
	assert.Contains(t, rl.visitors, "2.2.2.2")
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"real ip wins", map[string]string{"X-Real-IP": "9.9.9.9", "X-Forwarded-For": "8.8.8.8"}, "1.2.3.4:5", "9.9.9.9"},
		{"first forwarded entry", map[string]string{"X-Forwarded-For": "8.8.8.8, 10.0.0.1"}, "1.2.3.4:5", "8.8.8.8"},
		{"remote addr without port", nil, "1.2.3.4:5678", "1.2.3.4"},
		{"remote addr unparsable", nil, "garbage", "garbage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractClientIP(req))
		})
	}
}

func TestStatusWriter_SharedAcrossMiddleware(t *testing.T) {
	var seen *statusWriter
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	})
	h := Logger(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = wrap(w)
		Metrics(inner).ServeHTTP(w, r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, seen)
	assert.Equal(t, http.StatusTeapot, seen.status)
}
