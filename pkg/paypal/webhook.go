package paypal

import (
	"net/http"
	"strings"

	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/security"
)

// Transmission headers PayPal attaches to webhook deliveries.
const (
	HeaderTransmissionID   = "Paypal-Transmission-Id"
	HeaderTransmissionTime = "Paypal-Transmission-Time"
	HeaderCertURL          = "Paypal-Cert-Url"
	HeaderAuthAlgo         = "Paypal-Auth-Algo"
	HeaderTransmissionSig  = "Paypal-Transmission-Sig"
)

// TransmissionHeaders are the signature inputs of a webhook delivery.
type TransmissionHeaders struct {
	TransmissionID   string
	TransmissionTime string
	CertURL          string
	AuthAlgo         string
	TransmissionSig  string
}

// HeadersFrom extracts the transmission headers from an inbound request.
func HeadersFrom(h http.Header) TransmissionHeaders {
	return TransmissionHeaders{
		TransmissionID:   strings.TrimSpace(h.Get(HeaderTransmissionID)),
		TransmissionTime: strings.TrimSpace(h.Get(HeaderTransmissionTime)),
		CertURL:          strings.TrimSpace(h.Get(HeaderCertURL)),
		AuthAlgo:         strings.TrimSpace(h.Get(HeaderAuthAlgo)),
		TransmissionSig:  strings.TrimSpace(h.Get(HeaderTransmissionSig)),
	}
}

func (t TransmissionHeaders) complete() bool {
	return t.TransmissionID != "" && t.TransmissionTime != "" && t.CertURL != "" &&
		t.AuthAlgo != "" && t.TransmissionSig != ""
}

// ExpectedSignature builds base64(sha256("<id>|<time>|<webhookId>|<hex(sha256(body))>")).
func ExpectedSignature(transmissionID, transmissionTime, webhookID string, body []byte) string {
	digest := strings.Join([]string{transmissionID, transmissionTime, webhookID, security.SHA256Hex(body)}, "|")
	return security.SHA256Base64([]byte(digest))
}

// VerifyWebhook checks the transmission signature against the configured webhook id.
func (c *Client) VerifyWebhook(headers TransmissionHeaders, body []byte) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "paypal client not configured")
	}
	return VerifyWebhook(c.webhookID, headers, body)
}

// VerifyWebhook is the stateless form of Client.VerifyWebhook. A missing
// webhook id rejects every delivery.
func VerifyWebhook(webhookID string, headers TransmissionHeaders, body []byte) error {
	if webhookID == "" {
		return pkgerrors.New(pkgerrors.CodeSignature, "paypal webhook id not configured")
	}
	if !headers.complete() {
		return pkgerrors.New(pkgerrors.CodeSignature, "missing paypal transmission headers")
	}
	expected := ExpectedSignature(headers.TransmissionID, headers.TransmissionTime, webhookID, body)
	if !security.ConstantTimeEqual(expected, headers.TransmissionSig) {
		return pkgerrors.New(pkgerrors.CodeSignature, "invalid paypal signature")
	}
	return nil
}

// LocalOrderID resolves the store's order id from a capture resource:
// custom_id first, then invoice_id with the ORDER- prefix stripped.
func LocalOrderID(customID, invoiceID string) string {
	if id := strings.TrimSpace(customID); id != "" {
		return id
	}
	return strings.TrimPrefix(strings.TrimSpace(invoiceID), InvoicePrefix)
}
