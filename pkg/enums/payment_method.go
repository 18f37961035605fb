package enums

// PaymentMethod is the provider that handles a payment attempt.
type PaymentMethod string

const (
	PaymentMethodStripe PaymentMethod = "stripe"
	PaymentMethodPayPal PaymentMethod = "paypal"
	PaymentMethodSquare PaymentMethod = "square"
)

var paymentMethods = set[PaymentMethod]{PaymentMethodStripe, PaymentMethodPayPal, PaymentMethodSquare}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return paymentMethods.has(p) }

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	return paymentMethods.parse("payment method", raw)
}
