package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	product "github.com/classickits/jerseystore-backend/internal/products"
	"github.com/classickits/jerseystore-backend/internal/users"
	pkgAuth "github.com/classickits/jerseystore-backend/pkg/auth"
	"github.com/classickits/jerseystore-backend/pkg/auth/session"
	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/enums"
)

var routerJWT = config.JWTConfig{Secret: "router-secret", Issuer: "jerseystore-test", ExpirationMinutes: 60}

type memoryStore struct {
	data   map[string]string
	counts map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryStore) Ping(context.Context) error { return nil }

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

type allowAllSessions struct{}

func (allowAllSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type stubCatalog struct {
	product.Service
	listed int
}

func (s *stubCatalog) ListProducts(context.Context, product.ListProductsInput) (*product.ProductListResult, error) {
	s.listed++
	return &product.ProductListResult{Products: []product.ProductDTO{}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", PublicBaseURL: "https://shop.example.com"},
		JWT: routerJWT,
		RateLimit: config.RateLimitConfig{
			Window:      time.Minute,
			MaxRequests: 3,
		},
	}
}

func bearer(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(routerJWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "fan@example.com",
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func serve(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "198.51.100.7:4000"
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	h := NewRouter(Params{Config: testConfig(), Redis: newMemoryStore()})
	rec := serve(h, http.MethodGet, "/health/live", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestPublicCatalogRoute(t *testing.T) {
	catalog := &stubCatalog{}
	h := NewRouter(Params{Config: testConfig(), Redis: newMemoryStore(), Products: catalog})
	rec := serve(h, http.MethodGet, "/api/products?team=Ajax", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if catalog.listed != 1 {
		t.Fatalf("expected catalog handler to run")
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	h := NewRouter(Params{Config: testConfig(), Redis: newMemoryStore(), Sessions: allowAllSessions{}})
	rec := serve(h, http.MethodGet, "/api/orders", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminRouteRejectsCustomer(t *testing.T) {
	h := NewRouter(Params{Config: testConfig(), Redis: newMemoryStore(), Sessions: allowAllSessions{}})
	rec := serve(h, http.MethodPut, "/api/orders/"+uuid.NewString(), bearer(t, enums.UserRoleCustomer), `{"status":"shipped"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAdminRouteReachesHandler(t *testing.T) {
	h := NewRouter(Params{Config: testConfig(), Redis: newMemoryStore(), Sessions: allowAllSessions{}})
	// No payment service is wired, so reaching the handler yields 503.
	rec := serve(h, http.MethodPost, "/api/payment/refund", bearer(t, enums.UserRoleAdmin), `{"paymentId":"`+uuid.NewString()+`"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestUnconfiguredWebhookIsUnavailable(t *testing.T) {
	h := NewRouter(Params{Config: testConfig(), Redis: newMemoryStore()})
	rec := serve(h, http.MethodPost, "/api/payment/square/webhook", "", `{}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRateLimitAppliesToAPI(t *testing.T) {
	catalog := &stubCatalog{}
	h := NewRouter(Params{Config: testConfig(), Redis: newMemoryStore(), Products: catalog})
	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		last = serve(h, http.MethodGet, "/api/products", "", "")
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", last.Code)
	}
	if catalog.listed != 3 {
		t.Fatalf("expected 3 handled requests, got %d", catalog.listed)
	}
}

func TestWebhooksBypassRateLimit(t *testing.T) {
	store := newMemoryStore()
	h := NewRouter(Params{Config: testConfig(), Redis: store})
	for i := 0; i < 5; i++ {
		rec := serve(h, http.MethodPost, "/api/payment/stripe/webhook", "", `{}`)
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("webhook %d was throttled", i+1)
		}
	}
	if len(store.counts) != 0 {
		t.Fatalf("expected no limiter buckets for webhooks, got %v", store.counts)
	}
}

func TestRateLimitBucketsByRoutePattern(t *testing.T) {
	store := newMemoryStore()
	h := NewRouter(Params{Config: testConfig(), Redis: store})
	for i := 0; i < 3; i++ {
		serve(h, http.MethodGet, "/api/products/"+uuid.NewString(), "", "")
	}
	rec := serve(h, http.MethodGet, "/api/products/"+uuid.NewString(), "", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the fourth product lookup, got %d", rec.Code)
	}
	if got := store.counts["api:198.51.100.7:GET:/api/products/{id}"]; got != 4 {
		t.Fatalf("expected one pattern bucket, got %v", store.counts)
	}
}

type stubUsers struct {
	users.Service
	lastList users.ListInput
}

func (s *stubUsers) List(_ context.Context, input users.ListInput) (*users.UserList, error) {
	s.lastList = input
	return &users.UserList{Users: []users.UserDTO{}}, nil
}

func TestAdminUsersRequiresAdmin(t *testing.T) {
	h := NewRouter(Params{Config: testConfig(), Redis: newMemoryStore(), Sessions: allowAllSessions{}, Users: &stubUsers{}})
	rec := serve(h, http.MethodGet, "/api/admin/users", bearer(t, enums.UserRoleCustomer), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAdminUsersListPassesFilters(t *testing.T) {
	svc := &stubUsers{}
	h := NewRouter(Params{Config: testConfig(), Redis: newMemoryStore(), Sessions: allowAllSessions{}, Users: svc})
	rec := serve(h, http.MethodGet, "/api/admin/users?search=cruyff&role=admin&page=2&limit=5", bearer(t, enums.UserRoleAdmin), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastList.Search != "cruyff" || svc.lastList.Role == nil || *svc.lastList.Role != enums.UserRoleAdmin {
		t.Fatalf("unexpected filters %+v", svc.lastList)
	}
	if svc.lastList.Pagination.Page != 2 || svc.lastList.Pagination.Limit != 5 {
		t.Fatalf("unexpected pagination %+v", svc.lastList.Pagination)
	}
}

func TestAdminUsersUnavailableWithoutService(t *testing.T) {
	h := NewRouter(Params{Config: testConfig(), Redis: newMemoryStore(), Sessions: allowAllSessions{}})
	rec := serve(h, http.MethodDelete, "/api/admin/users/"+uuid.NewString(), bearer(t, enums.UserRoleAdmin), "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestForgotPasswordUnavailableWithoutAuth(t *testing.T) {
	h := NewRouter(Params{Config: testConfig(), Redis: newMemoryStore()})
	rec := serve(h, http.MethodPost, "/api/auth/forgot-password", "", `{"email":"fan@example.com"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
