package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/classickits/jerseystore-backend/api/responses"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	defaultIdempotencyTTL = 24 * time.Hour
	paymentIdempotencyTTL = 7 * 24 * time.Hour
)

type idempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// Paths whose responses are recorded when the client sends Idempotency-Key.
var idempotentRoutes = map[string]time.Duration{
	"/api/auth/register":          defaultIdempotencyTTL,
	"/api/orders":                 paymentIdempotencyTTL,
	"/api/payment/checkout":       paymentIdempotencyTTL,
	"/api/payment/stripe/intent":  paymentIdempotencyTTL,
	"/api/payment/paypal/create":  paymentIdempotencyTTL,
	"/api/payment/paypal/capture": paymentIdempotencyTTL,
	"/api/payment/square/create":  paymentIdempotencyTTL,
	"/api/payment/refund":         paymentIdempotencyTTL,
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        string `json:"body"`
	RequestHash string `json:"requestHash"`
}

// Idempotency replays the first response recorded for a (caller, route,
// key) triple. The header is optional; requests without it pass through.
// A reused key with a different body is rejected. Server errors are not
// recorded so the client can retry with the same key.
func Idempotency(store idempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ttl, ok := idempotencyTTL(r.Method, r.URL.Path)
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if !ok || key == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > 255 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := hashBody(body)
			storeKey := store.IdempotencyKey(callerScope(ctx)+"|"+r.Method+"|"+r.URL.Path, key)

			raw, err := store.Get(ctx, storeKey)
			if err != nil && !errors.Is(err, redis.Nil) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key"))
				return
			}
			if raw != "" {
				var prior storedResponse
				if err := json.Unmarshal([]byte(raw), &prior); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record"))
					return
				}
				if prior.RequestHash != hash {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
					return
				}
				replay(w, prior)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status >= http.StatusInternalServerError {
				return
			}

			payload, err := json.Marshal(storedResponse{
				Status:      statusOrOK(rec.status),
				ContentType: rec.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				RequestHash: hash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, storeKey, string(payload), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "record idempotent response", err)
			}
		})
	}
}

func idempotencyTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost {
		return 0, false
	}
	ttl, ok := idempotentRoutes[strings.TrimSuffix(path, "/")]
	return ttl, ok
}

// callerScope separates keys per user. Anonymous callers share one scope.
func callerScope(ctx context.Context) string {
	if id, ok := IdentityFrom(ctx); ok {
		return id.UserID.String()
	}
	return ""
}

func replay(w http.ResponseWriter, prior storedResponse) {
	if prior.ContentType != "" {
		w.Header().Set("Content-Type", prior.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(prior.Status)
	if body, err := base64.StdEncoding.DecodeString(prior.Body); err == nil {
		_, _ = w.Write(body)
	}
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func statusOrOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
