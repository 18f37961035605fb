package paypal

// Order statuses reported by the Orders v2 API.
const (
	OrderStatusCreated   = "CREATED"
	OrderStatusApproved  = "APPROVED"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusVoided    = "VOIDED"
)

// Webhook event types handled by the store.
const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
)

// InvoicePrefix prefixes the local order id in invoice_id.
const InvoicePrefix = "ORDER-"

type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

type PurchaseUnitRequest struct {
	ReferenceID string `json:"reference_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	InvoiceID   string `json:"invoice_id,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      Money  `json:"amount"`
}

type ApplicationContext struct {
	BrandName   string `json:"brand_name,omitempty"`
	LandingPage string `json:"landing_page,omitempty"`
	UserAction  string `json:"user_action,omitempty"`
	ReturnURL   string `json:"return_url,omitempty"`
	CancelURL   string `json:"cancel_url,omitempty"`
}

type CreateOrderRequest struct {
	Intent             string                `json:"intent"`
	PurchaseUnits      []PurchaseUnitRequest `json:"purchase_units"`
	ApplicationContext *ApplicationContext   `json:"application_context,omitempty"`
}

type Capture struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	CustomID  string `json:"custom_id,omitempty"`
	InvoiceID string `json:"invoice_id,omitempty"`
	Amount    *Money `json:"amount,omitempty"`
}

type PurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	InvoiceID   string `json:"invoice_id,omitempty"`
	Amount      *Money `json:"amount,omitempty"`
	Payments    *struct {
		Captures []Capture `json:"captures,omitempty"`
	} `json:"payments,omitempty"`
}

// Order is the subset of the Orders v2 resource the store reads.
type Order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Links         []Link         `json:"links,omitempty"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units,omitempty"`
}

// ApprovalURL returns the buyer approval link, if present.
func (o *Order) ApprovalURL() string {
	if o == nil {
		return ""
	}
	for _, link := range o.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			return link.Href
		}
	}
	return ""
}

// FirstCapture returns the first capture on the first purchase unit.
func (o *Order) FirstCapture() *Capture {
	if o == nil || len(o.PurchaseUnits) == 0 {
		return nil
	}
	pu := o.PurchaseUnits[0]
	if pu.Payments == nil || len(pu.Payments.Captures) == 0 {
		return nil
	}
	return &pu.Payments.Captures[0]
}

// CustomID resolves the local order id echoed back on the order: the
// capture's custom_id first, then the purchase unit's.
func (o *Order) CustomID() string {
	if capture := o.FirstCapture(); capture != nil && capture.CustomID != "" {
		return capture.CustomID
	}
	if o == nil || len(o.PurchaseUnits) == 0 {
		return ""
	}
	return o.PurchaseUnits[0].CustomID
}

type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *Money `json:"amount,omitempty"`
}

type refundRequest struct {
	Amount *Money `json:"amount,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// APIError is the PayPal error envelope.
type APIError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details,omitempty"`
	// OAuth endpoints use a different shape.
	OAuthError       string `json:"error"`
	OAuthDescription string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Name != "" {
		if len(e.Details) > 0 {
			return e.Name + ": " + e.Details[0].Issue
		}
		return e.Name + ": " + e.Message
	}
	return e.OAuthError + ": " + e.OAuthDescription
}
