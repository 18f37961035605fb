package payments

import "github.com/classickits/jerseystore-backend/pkg/types"

// mergeDetails overlays the non-empty fields of incoming onto current. A
// variant for a different provider is ignored.
func mergeDetails(current types.PaymentDetails, incoming *types.PaymentDetails) types.PaymentDetails {
	if incoming == nil || incoming.Provider != current.Provider {
		return current
	}
	out := current
	switch {
	case incoming.Stripe != nil:
		v := types.StripeDetails{}
		if current.Stripe != nil {
			v = *current.Stripe
		}
		v.PaymentIntentID = pick(incoming.Stripe.PaymentIntentID, v.PaymentIntentID)
		v.IntentStatus = pick(incoming.Stripe.IntentStatus, v.IntentStatus)
		v.LastError = pick(incoming.Stripe.LastError, v.LastError)
		v.RefundID = pick(incoming.Stripe.RefundID, v.RefundID)
		out.Stripe = &v
	case incoming.PayPal != nil:
		v := types.PayPalDetails{}
		if current.PayPal != nil {
			v = *current.PayPal
		}
		v.OrderID = pick(incoming.PayPal.OrderID, v.OrderID)
		v.ApprovalURL = pick(incoming.PayPal.ApprovalURL, v.ApprovalURL)
		v.CaptureID = pick(incoming.PayPal.CaptureID, v.CaptureID)
		v.OrderStatus = pick(incoming.PayPal.OrderStatus, v.OrderStatus)
		v.RefundID = pick(incoming.PayPal.RefundID, v.RefundID)
		out.PayPal = &v
	case incoming.Square != nil:
		v := types.SquareDetails{}
		if current.Square != nil {
			v = *current.Square
		}
		v.PaymentID = pick(incoming.Square.PaymentID, v.PaymentID)
		v.LocationID = pick(incoming.Square.LocationID, v.LocationID)
		v.PaymentStatus = pick(incoming.Square.PaymentStatus, v.PaymentStatus)
		v.ReceiptURL = pick(incoming.Square.ReceiptURL, v.ReceiptURL)
		v.RefundID = pick(incoming.Square.RefundID, v.RefundID)
		out.Square = &v
	}
	return out
}

func pick(next, prev string) string {
	if next != "" {
		return next
	}
	return prev
}
