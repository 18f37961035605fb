package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classickits/jerseystore-backend/api/responses"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
)

type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit caps requests per client IP and route pattern inside a fixed
// window, so /products/{id} is one bucket whatever the id. Limiter failures
// fail open.
func RateLimit(limiter windowLimiter, window time.Duration, max int, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || max <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope := "api:" + clientIP(r) + ":" + r.Method + ":" + routePattern(r)
			allowed, count, err := limiter.FixedWindowAllow(ctx, scope, int64(max), window)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "rate limiter unavailable")
				}
				next.ServeHTTP(w, r)
				return
			}
			remaining := int64(max) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(max))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if !allowed {
				tooManyRequests(ctx, logg, w, window)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthPolicy limits credential endpoints per IP and per submitted email.
type AuthPolicy struct {
	Name       string
	Window     time.Duration
	IPLimit    int
	EmailLimit int
}

// AuthRateLimit applies policy before the handler decodes the body. The body
// is buffered and restored so the handler sees it unchanged.
func AuthRateLimit(policy AuthPolicy, limiter windowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || policy.Window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			checks := make([]rateCheck, 0, 2)
			if policy.IPLimit > 0 {
				checks = append(checks, rateCheck{"auth:" + policy.Name + ":ip:" + clientIP(r), policy.IPLimit})
			}
			if policy.EmailLimit > 0 {
				if email := peekEmail(r); email != "" {
					checks = append(checks, rateCheck{"auth:" + policy.Name + ":email:" + email, policy.EmailLimit})
				}
			}

			for _, c := range checks {
				allowed, _, err := limiter.FixedWindowAllow(ctx, c.scope, int64(c.limit), policy.Window)
				if err != nil {
					if logg != nil {
						logg.Warn(logg.WithField(ctx, "error", err.Error()), "auth rate limiter unavailable")
					}
					break
				}
				if !allowed {
					if logg != nil {
						logg.Warn(logg.WithField(ctx, "policy", policy.Name), "auth rate limit exceeded")
					}
					tooManyRequests(ctx, logg, w, policy.Window)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// routePattern resolves the pattern the request will match. Middleware runs
// before the mux has routed, so the lookup goes through the root routes.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return r.URL.Path
	}
	match := chi.NewRouteContext()
	if !rctx.Routes.Match(match, r.Method, r.URL.Path) {
		return "unmatched"
	}
	return match.RoutePattern()
}

type rateCheck struct {
	scope string
	limit int
}

func tooManyRequests(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, window time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
	responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests, please try again later"))
}

func peekEmail(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
