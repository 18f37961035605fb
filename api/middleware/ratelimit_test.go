package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type fakeLimiter struct {
	counts map[string]int64
	err    error
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: make(map[string]int64)}
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func TestRateLimitBlocksAfterMax(t *testing.T) {
	h := RateLimit(newFakeLimiter(), time.Minute, 2, nil)(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", last.Header().Get("Retry-After"))
	}
	if last.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected remaining 0, got %q", last.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitSeparatesClients(t *testing.T) {
	limiter := newFakeLimiter()
	h := RateLimit(limiter, time.Minute, 1, nil)(okHandler())

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set("X-Forwarded-For", ip+", 172.16.0.1")
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("client %s: expected 200, got %d", ip, rec.Code)
		}
	}
}

func TestRateLimitSharesBucketAcrossPathParams(t *testing.T) {
	limiter := newFakeLimiter()
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimit(limiter, time.Minute, 1, nil))
		r.Get("/products/{id}", okHandler().ServeHTTP)
	})

	codes := make([]int, 0, 2)
	for _, id := range []string{"a1", "b2"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/products/"+id, nil)
		req.RemoteAddr = "10.0.0.9:1234"
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %v", codes)
	}
	if got := limiter.counts["api:10.0.0.9:GET:/api/products/{id}"]; got != 2 {
		t.Fatalf("expected both requests in the pattern bucket, got %v", limiter.counts)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := newFakeLimiter()
	limiter.err = errors.New("redis down")
	h := RateLimit(limiter, time.Minute, 1, nil)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when limiter fails, got %d", rec.Code)
	}
}

func TestAuthRateLimitByEmail(t *testing.T) {
	policy := AuthPolicy{Name: "login", Window: time.Minute, IPLimit: 10, EmailLimit: 1}
	var seen string
	h := AuthRateLimit(policy, newFakeLimiter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	body := `{"email":"Fan@Example.com","password":"secret"}`
	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body)))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first attempt to pass, got %d", first.Code)
	}
	if seen != body {
		t.Fatalf("handler saw altered body %q", seen)
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"fan@example.com"}`)))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for repeated email, got %d", second.Code)
	}
}

func TestAuthRateLimitByIP(t *testing.T) {
	policy := AuthPolicy{Name: "register", Window: time.Minute, IPLimit: 1}
	h := AuthRateLimit(policy, newFakeLimiter(), nil)(okHandler())

	codes := make([]int, 0, 2)
	for _, email := range []string{"a@example.com", "b@example.com"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"`+email+`"}`))
		req.RemoteAddr = "192.0.2.10:5555"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
}
