package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/classickits/jerseystore-backend/pkg/config"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
)

const (
	sandboxEnv = "sandbox"
	liveEnv    = "live"

	// refresh the token slightly before PayPal expires it
	tokenExpirySkew = 60 * time.Second
)

var (
	errClientIDRequired  = errors.New("paypal client id is required")
	errSecretRequired    = errors.New("paypal client secret is required")
	errInvalidPayPalMode = fmt.Errorf("paypal mode must be %q or %q", sandboxEnv, liveEnv)
)

var baseURLs = map[string]string{
	sandboxEnv: "https://api-m.sandbox.paypal.com",
	liveEnv:    "https://api-m.paypal.com",
}

// Client talks to the PayPal REST API with cached client-credentials tokens.
type Client struct {
	http         *resty.Client
	clientID     string
	clientSecret string
	webhookID    string
	environment  string
	brandName    string
	currency     string
	returnURL    string
	cancelURL    string
	logger       *logger.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	now         func() time.Time
}

// NewClient validates credentials and prepares the resty client. No network
// call is made until the first API request.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.ClientSecret)
	if secret == "" {
		return nil, errSecretRequired
	}

	c := newClient(baseURLs[env], cfg, logg)
	c.clientID = clientID
	c.clientSecret = secret
	c.environment = env

	if logg != nil {
		logg.Info(logg.WithField(ctx, "paypal_env", env), "paypal client initialized")
	}
	return c, nil
}

func newClient(baseURL string, cfg config.PayPalConfig, logg *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		webhookID:    strings.TrimSpace(cfg.WebhookID),
		environment:  cfg.Environment(),
		brandName:    cfg.BrandName,
		currency:     currency,
		returnURL:    cfg.ReturnURL,
		cancelURL:    cfg.CancelURL,
		logger:       logg,
		now:          time.Now,
	}
}

// Environment reports the normalized PayPal mode.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// Currency returns the configured currency code.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// OrderParams describes the PayPal order created for a local order.
type OrderParams struct {
	LocalOrderID string
	AmountValue  string
	Currency     string
	ReturnURL    string
	CancelURL    string
	RequestID    string
}

// CreateOrder creates a CAPTURE-intent order whose custom_id is the local
// order id and whose invoice_id is ORDER-<id>.
func (c *Client) CreateOrder(ctx context.Context, params OrderParams) (*Order, error) {
	if strings.TrimSpace(params.LocalOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "local order id is required")
	}
	if strings.TrimSpace(params.AmountValue) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal amount is required")
	}
	currency := params.Currency
	if currency == "" {
		currency = c.currency
	}
	returnURL := firstNonEmpty(params.ReturnURL, c.returnURL)
	cancelURL := firstNonEmpty(params.CancelURL, c.cancelURL)

	body := CreateOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []PurchaseUnitRequest{{
			CustomID:    params.LocalOrderID,
			InvoiceID:   InvoicePrefix + params.LocalOrderID,
			Description: fmt.Sprintf("Vintage Soccer Jersey Order #%s", params.LocalOrderID),
			Amount:      Money{CurrencyCode: currency, Value: params.AmountValue},
		}},
		ApplicationContext: &ApplicationContext{
			BrandName:   c.brandName,
			LandingPage: "NO_PREFERENCE",
			UserAction:  "PAY_NOW",
			ReturnURL:   returnURL,
			CancelURL:   cancelURL,
		},
	}

	var out Order
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &out, requestID(params.RequestID)); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrder fetches a PayPal order.
func (c *Client) GetOrder(ctx context.Context, paypalOrderID string) (*Order, error) {
	if strings.TrimSpace(paypalOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order id is required")
	}
	var out Order
	if err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+paypalOrderID, nil, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// CaptureOrder captures an approved order.
func (c *Client) CaptureOrder(ctx context.Context, paypalOrderID string) (*Order, error) {
	if strings.TrimSpace(paypalOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order id is required")
	}
	var out Order
	path := "/v2/checkout/orders/" + paypalOrderID + "/capture"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &out, "capture-"+paypalOrderID); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefundCapture refunds a capture. An empty amount refunds the remainder.
func (c *Client) RefundCapture(ctx context.Context, captureID, amountValue, requestKey string) (*Refund, error) {
	if strings.TrimSpace(captureID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal capture id is required")
	}
	body := refundRequest{}
	if amountValue != "" {
		body.Amount = &Money{CurrencyCode: c.currency, Value: amountValue}
	}
	var out Refund
	path := "/v2/payments/captures/" + captureID + "/refund"
	if err := c.do(ctx, http.MethodPost, path, body, &out, requestID(requestKey)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, paypalRequestID string) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	apiErr := &APIError{}
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(result).
		SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if paypalRequestID != "" {
		req.SetHeader("PayPal-Request-Id", paypalRequestID)
	}
	if method == http.MethodPost {
		req.SetHeader("Prefer", "return=representation")
	}

	c.log(ctx, "request", method+" "+path, nil)
	resp, err := req.Execute(method, path)
	if err != nil {
		c.log(ctx, "error", method+" "+path, err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paypal request failed")
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusUnauthorized {
			c.invalidateToken()
		}
		mapped := mapPayPalError(resp.StatusCode(), apiErr)
		c.log(ctx, "error", method+" "+path, mapped)
		return mapped
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	var tok tokenResponse
	apiErr := &APIError{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&tok).
		SetError(apiErr).
		Post("/v1/oauth2/token")
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paypal token request failed")
	}
	if resp.IsError() {
		return "", mapPayPalError(resp.StatusCode(), apiErr)
	}
	if tok.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal returned an empty access token")
	}

	ttl := time.Duration(tok.ExpiresIn)*time.Second - tokenExpirySkew
	if ttl < 0 {
		ttl = 0
	}
	c.accessToken = tok.AccessToken
	c.expiresAt = c.now().Add(ttl)
	return c.accessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

func (c *Client) log(ctx context.Context, phase, op string, err error) {
	if c == nil || c.logger == nil {
		return
	}
	ctx = c.logger.WithFields(ctx, map[string]any{"operation": op, "phase": phase})
	if err != nil {
		c.logger.Error(ctx, "paypal "+op, err)
		return
	}
	c.logger.Info(ctx, "paypal "+phase)
}

func mapPayPalError(status int, apiErr *APIError) error {
	var cause error = apiErr
	if apiErr == nil || (apiErr.Name == "" && apiErr.OAuthError == "") {
		cause = fmt.Errorf("paypal status %d", status)
	}
	code := pkgerrors.CodeDependency
	switch {
	case status == http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case status == http.StatusUnprocessableEntity:
		code = pkgerrors.CodeStateConflict
	case status == http.StatusTooManyRequests:
		code = pkgerrors.CodeRateLimit
	case status == http.StatusBadRequest:
		code = pkgerrors.CodeValidation
	case status == http.StatusConflict:
		code = pkgerrors.CodeConflict
	}
	return pkgerrors.Wrap(code, cause, "paypal request failed")
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	switch env {
	case "", sandboxEnv:
		return sandboxEnv, nil
	case liveEnv, "production":
		return liveEnv, nil
	default:
		return "", errInvalidPayPalMode
	}
}

func requestID(key string) string {
	if strings.TrimSpace(key) != "" {
		return key
	}
	return uuid.NewString()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
