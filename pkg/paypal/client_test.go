package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/classickits/jerseystore-backend/pkg/config"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
)

type fakePayPal struct {
	tokenCalls   int32
	lastCreate   CreateOrderRequest
	lastRefund   refundRequest
	lastReqID    string
	captureState string
}

func (f *fakePayPal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"bad creds"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("missing bearer token")
		}
		f.lastReqID = r.Header.Get("PayPal-Request-Id")
		if err := json.NewDecoder(r.Body).Decode(&f.lastCreate); err != nil {
			t.Errorf("decode create: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"PP-1","status":"CREATED","links":[{"href":"https://paypal.test/self","rel":"self"},{"href":"https://paypal.test/approve","rel":"approve"}]}`))
	})
	mux.HandleFunc("/v2/checkout/orders/PP-1/capture", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if f.captureState == "unprocessable" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"x","details":[{"issue":"ORDER_NOT_APPROVED"}]}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"PP-1","status":"COMPLETED","purchase_units":[{"custom_id":"order-1","payments":{"captures":[{"id":"CAP-1","status":"COMPLETED","custom_id":"order-1"}]}}]}`))
	})
	mux.HandleFunc("/v2/checkout/orders/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"name":"RESOURCE_NOT_FOUND","message":"not found"}`))
	})
	mux.HandleFunc("/v2/payments/captures/CAP-1/refund", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&f.lastRefund); err != nil {
			t.Errorf("decode refund: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"REF-1","status":"COMPLETED"}`))
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakePayPal) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return newClient(srv.URL, config.PayPalConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		BrandName:    "Vintage Soccer Jersey Store",
		Currency:     "usd",
		ReturnURL:    "https://shop.test/return",
		CancelURL:    "https://shop.test/cancel",
		Timeout:      5 * time.Second,
	}, nil)
}

func TestCreateOrderBuildsPurchaseUnitAndCachesToken(t *testing.T) {
	fake := &fakePayPal{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	order, err := c.CreateOrder(ctx, OrderParams{LocalOrderID: "order-1", AmountValue: "200.00", RequestID: "req-1"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "PP-1" || order.ApprovalURL() != "https://paypal.test/approve" {
		t.Fatalf("unexpected order %+v", order)
	}

	pu := fake.lastCreate.PurchaseUnits[0]
	if fake.lastCreate.Intent != "CAPTURE" || pu.CustomID != "order-1" || pu.InvoiceID != "ORDER-order-1" {
		t.Fatalf("unexpected purchase unit %+v", pu)
	}
	if pu.Amount.Value != "200.00" || pu.Amount.CurrencyCode != "USD" {
		t.Fatalf("unexpected amount %+v", pu.Amount)
	}
	if pu.Description != "Vintage Soccer Jersey Order #order-1" {
		t.Fatalf("unexpected description %q", pu.Description)
	}
	appCtx := fake.lastCreate.ApplicationContext
	if appCtx.UserAction != "PAY_NOW" || appCtx.ReturnURL != "https://shop.test/return" {
		t.Fatalf("unexpected application context %+v", appCtx)
	}
	if fake.lastReqID != "req-1" {
		t.Fatalf("expected request id header, got %q", fake.lastReqID)
	}

	if _, err := c.CreateOrder(ctx, OrderParams{LocalOrderID: "order-2", AmountValue: "10.00"}); err != nil {
		t.Fatalf("second create: %v", err)
	}
	if calls := atomic.LoadInt32(&fake.tokenCalls); calls != 1 {
		t.Fatalf("expected cached token, got %d token calls", calls)
	}
}

func TestCaptureOrderAndRefund(t *testing.T) {
	fake := &fakePayPal{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	order, err := c.CaptureOrder(ctx, "PP-1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if order.Status != OrderStatusCompleted || order.CustomID() != "order-1" {
		t.Fatalf("unexpected capture %+v", order)
	}
	if capture := order.FirstCapture(); capture == nil || capture.ID != "CAP-1" {
		t.Fatalf("expected capture CAP-1, got %+v", capture)
	}

	refund, err := c.RefundCapture(ctx, "CAP-1", "50.00", "")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.ID != "REF-1" || fake.lastRefund.Amount == nil || fake.lastRefund.Amount.Value != "50.00" {
		t.Fatalf("unexpected refund %+v body=%+v", refund, fake.lastRefund)
	}
}

func TestPayPalErrorsMapToCodes(t *testing.T) {
	fake := &fakePayPal{captureState: "unprocessable"}
	c := newTestClient(t, fake)
	ctx := context.Background()

	if _, err := c.CaptureOrder(ctx, "PP-1"); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if _, err := c.GetOrder(ctx, "missing"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	bad := newTestClient(t, &fakePayPal{})
	bad.clientSecret = "wrong"
	_, err := bad.GetOrder(ctx, "PP-1")
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error for bad credentials, got %v", err)
	}
	if !strings.Contains(err.Error(), "paypal") {
		t.Fatalf("unexpected error text %v", err)
	}
}

func TestNormalizeEnv(t *testing.T) {
	for raw, want := range map[string]string{"": sandboxEnv, "SANDBOX": sandboxEnv, "live": liveEnv, "production": liveEnv} {
		got, err := normalizeEnv(raw)
		if err != nil || got != want {
			t.Fatalf("normalizeEnv(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatal("expected invalid mode error")
	}
}
