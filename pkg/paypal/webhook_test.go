package paypal

import (
	"net/http"
	"testing"

	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
)

func signedHeaders(webhookID string, body []byte) TransmissionHeaders {
	return TransmissionHeaders{
		TransmissionID:   "tx-1",
		TransmissionTime: "2024-05-01T10:00:00Z",
		CertURL:          "https://api.paypal.com/cert.pem",
		AuthAlgo:         "SHA256withRSA",
		TransmissionSig:  ExpectedSignature("tx-1", "2024-05-01T10:00:00Z", webhookID, body),
	}
}

func TestVerifyWebhook(t *testing.T) {
	body := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED"}`)
	headers := signedHeaders("WH-1", body)

	if err := VerifyWebhook("WH-1", headers, body); err != nil {
		t.Fatalf("expected valid signature: %v", err)
	}
	if err := VerifyWebhook("WH-1", headers, []byte(`{"tampered":true}`)); !pkgerrors.IsCode(err, pkgerrors.CodeSignature) {
		t.Fatalf("expected tampered body to fail, got %v", err)
	}
	if err := VerifyWebhook("WH-2", headers, body); !pkgerrors.IsCode(err, pkgerrors.CodeSignature) {
		t.Fatalf("expected other webhook id to fail, got %v", err)
	}
	if err := VerifyWebhook("", headers, body); !pkgerrors.IsCode(err, pkgerrors.CodeSignature) {
		t.Fatalf("expected unconfigured webhook id to fail, got %v", err)
	}

	missing := headers
	missing.CertURL = ""
	if err := VerifyWebhook("WH-1", missing, body); !pkgerrors.IsCode(err, pkgerrors.CodeSignature) {
		t.Fatalf("expected missing header to fail, got %v", err)
	}
}

func TestHeadersFrom(t *testing.T) {
	h := http.Header{}
	h.Set("paypal-transmission-id", "tx-1")
	h.Set("paypal-transmission-time", "t")
	h.Set("paypal-cert-url", "u")
	h.Set("paypal-auth-algo", "a")
	h.Set("paypal-transmission-sig", "s")
	got := HeadersFrom(h)
	if !got.complete() || got.TransmissionID != "tx-1" {
		t.Fatalf("unexpected headers %+v", got)
	}
}

func TestLocalOrderID(t *testing.T) {
	if got := LocalOrderID("abc", "ORDER-def"); got != "abc" {
		t.Fatalf("custom id should win, got %q", got)
	}
	if got := LocalOrderID("", "ORDER-def"); got != "def" {
		t.Fatalf("expected prefix stripped, got %q", got)
	}
	if got := LocalOrderID("", ""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
