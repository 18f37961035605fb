package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/internal/orders"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/metrics"
	"github.com/classickits/jerseystore-backend/pkg/outbox"
	"github.com/classickits/jerseystore-backend/pkg/paypal"
	"github.com/classickits/jerseystore-backend/pkg/square"
	stripeclient "github.com/classickits/jerseystore-backend/pkg/stripe"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

const orderDescription = "Vintage Soccer Jersey Order #%s"

// Service initiates provider payments and reconciles their outcomes.
type Service interface {
	Checkout(ctx context.Context, actor orders.Actor, input CheckoutInput) (*InitiationResult, error)
	InitiateStripe(ctx context.Context, actor orders.Actor, input InitiateInput) (*InitiationResult, error)
	InitiatePayPal(ctx context.Context, actor orders.Actor, input InitiateInput) (*InitiationResult, error)
	InitiateSquare(ctx context.Context, actor orders.Actor, input InitiateInput) (*InitiationResult, error)
	CapturePayPal(ctx context.Context, actor orders.Actor, paypalOrderID string) (*CaptureResult, error)
	Refund(ctx context.Context, actor orders.Actor, input RefundInput) (*models.Payment, error)
	Reconcile(ctx context.Context, input ReconcileInput) (ReconcileResult, error)
	ReconcileStale(ctx context.Context, cutoff time.Time, limit int) (SweepResult, error)
}

type orderFlow interface {
	Create(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error)
	MarkProcessing(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (enums.OrderStatus, bool, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams bundles the payment service dependencies. Provider gateways
// are optional; a nil gateway makes that provider unavailable.
type ServiceParams struct {
	Repo    *orders.Repository
	Orders  orderFlow
	Stripe  StripeGateway
	PayPal  PayPalGateway
	Square  SquareGateway
	Outbox  outboxEmitter
	Tx      db.TxRunner
	Metrics *metrics.CommerceMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    *orders.Repository
	orders  orderFlow
	stripe  StripeGateway
	paypal  PayPalGateway
	square  SquareGateway
	outbox  outboxEmitter
	tx      db.TxRunner
	metrics *metrics.CommerceMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		orders:  params.Orders,
		stripe:  params.Stripe,
		paypal:  params.PayPal,
		square:  params.Square,
		outbox:  params.Outbox,
		tx:      params.Tx,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Checkout pays an existing order, or creates one from the supplied lines
// first and then pays it.
func (s *service) Checkout(ctx context.Context, actor orders.Actor, input CheckoutInput) (*InitiationResult, error) {
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}

	provider := input.Provider
	switch {
	case input.OrderID != nil:
		provider.OrderID = *input.OrderID
	case len(input.CartItems) > 0:
		order, err := s.orders.Create(ctx, orders.CreateOrderInput{
			UserID:          actor.UserID,
			Role:            actor.Role,
			Lines:           input.CartItems,
			ShippingAddress: input.ShippingAddress,
			AddressID:       input.AddressID,
			PaymentMethod:   input.PaymentMethod,
			ClearCart:       true,
		})
		if err != nil {
			return nil, err
		}
		provider.OrderID = order.ID
		provider.Amount = nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId or cartItems is required")
	}

	switch input.PaymentMethod {
	case enums.PaymentMethodStripe:
		return s.InitiateStripe(ctx, actor, provider)
	case enums.PaymentMethodPayPal:
		return s.InitiatePayPal(ctx, actor, provider)
	default:
		return s.InitiateSquare(ctx, actor, provider)
	}
}

func (s *service) InitiateStripe(ctx context.Context, actor orders.Actor, input InitiateInput) (*InitiationResult, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe payments are not configured")
	}
	order, err := s.loadPayable(ctx, actor, input)
	if err != nil {
		return nil, err
	}

	intent, err := s.stripe.CreatePaymentIntent(ctx, stripeclient.IntentParams{
		AmountCents:    order.TotalCents,
		OrderID:        order.ID.String(),
		UserID:         order.UserID.String(),
		Description:    fmt.Sprintf(orderDescription, order.ID),
		IdempotencyKey: "intent-" + uuid.NewString(),
	})
	if err != nil {
		return nil, s.providerFailure(ctx, order, enums.PaymentMethodStripe, err)
	}

	details := types.NewStripeDetails(types.StripeDetails{
		PaymentIntentID: intent.ID,
		IntentStatus:    string(intent.Status),
	})
	var payment *models.Payment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		recorded, err := s.recordAttempt(ctx, tx, order, enums.PaymentMethodStripe, intent.ID, details)
		payment = recorded
		return err
	})
	if err != nil {
		return nil, err
	}

	s.initiated(ctx, order, payment, metrics.InitiationCreated)
	result := newResult(order, payment)
	result.ClientSecret = intent.ClientSecret
	result.PaymentIntentID = intent.ID
	return result, nil
}

func (s *service) InitiatePayPal(ctx context.Context, actor orders.Actor, input InitiateInput) (*InitiationResult, error) {
	if s.paypal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal payments are not configured")
	}
	order, err := s.loadPayable(ctx, actor, input)
	if err != nil {
		return nil, err
	}

	created, err := s.paypal.CreateOrder(ctx, paypal.OrderParams{
		LocalOrderID: order.ID.String(),
		AmountValue:  types.FormatCents(order.TotalCents),
		ReturnURL:    input.ReturnURL,
		CancelURL:    input.CancelURL,
		RequestID:    "order-" + uuid.NewString(),
	})
	if err != nil {
		return nil, s.providerFailure(ctx, order, enums.PaymentMethodPayPal, err)
	}

	approval := created.ApprovalURL()
	details := types.NewPayPalDetails(types.PayPalDetails{
		OrderID:     created.ID,
		ApprovalURL: approval,
		OrderStatus: created.Status,
	})
	var payment *models.Payment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		recorded, err := s.recordAttempt(ctx, tx, order, enums.PaymentMethodPayPal, created.ID, details)
		payment = recorded
		return err
	})
	if err != nil {
		return nil, err
	}

	s.initiated(ctx, order, payment, metrics.InitiationCreated)
	result := newResult(order, payment)
	result.PayPalOrderID = created.ID
	result.ApprovalURL = approval
	return result, nil
}

// InitiateSquare charges the source immediately. A COMPLETED charge settles
// the payment and advances the order in the same transaction that records it.
func (s *service) InitiateSquare(ctx context.Context, actor orders.Actor, input InitiateInput) (*InitiationResult, error) {
	if s.square == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square payments are not configured")
	}
	if input.SourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sourceId is required")
	}
	order, err := s.loadPayable(ctx, actor, input)
	if err != nil {
		return nil, err
	}

	charged, err := s.square.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    order.TotalCents,
		LocationID:     input.LocationID,
		SourceID:       input.SourceID,
		IdempotencyKey: uuid.NewString(),
		Note:           fmt.Sprintf(orderDescription+" - User %s", order.ID, order.UserID),
		ReferenceID:    OrderReference(order.ID),
		Autocomplete:   true,
	})
	if err == nil && charged == nil {
		err = fmt.Errorf("square returned no payment")
	}
	if err != nil {
		return nil, s.providerFailure(ctx, order, enums.PaymentMethodSquare, err)
	}

	squareID := deref(charged.ID)
	status := deref(charged.Status)
	details := types.NewSquareDetails(types.SquareDetails{
		PaymentID:     squareID,
		LocationID:    deref(charged.LocationID),
		PaymentStatus: status,
		ReceiptURL:    deref(charged.ReceiptURL),
	})

	var (
		payment *models.Payment
		settled settlement
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		recorded, err := s.recordAttempt(ctx, tx, order, enums.PaymentMethodSquare, squareID, details)
		if err != nil {
			return err
		}
		payment = recorded
		switch status {
		case squareCompleted:
			settled, err = s.settle(ctx, tx, recorded, OutcomeSucceeded, nil, "", outbox.UserActor(actor.UserID, string(actor.Role)))
		case squareFailed, squareCanceled:
			settled, err = s.settle(ctx, tx, recorded, OutcomeFailed, nil, "square payment "+status, outbox.UserActor(actor.UserID, string(actor.Role)))
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterSettle(ctx, payment, settled)
	result := newResult(order, payment)
	result.Status = status
	if settled.result == ResultCompleted {
		s.initiated(ctx, order, payment, metrics.InitiationCompleted)
	} else {
		s.initiated(ctx, order, payment, metrics.InitiationCreated)
	}
	result.SquarePaymentID = squareID
	result.ReceiptURL = deref(charged.ReceiptURL)
	return result, nil
}

// CapturePayPal captures an approved PayPal order on behalf of its owner and
// settles the matching attempt.
func (s *service) CapturePayPal(ctx context.Context, actor orders.Actor, paypalOrderID string) (*CaptureResult, error) {
	if s.paypal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal payments are not configured")
	}
	if paypalOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required")
	}

	payment, err := s.repo.FindPaymentByTransaction(ctx, enums.PaymentMethodPayPal, paypalOrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment")
	}
	order, err := s.repo.FindByID(ctx, payment.OrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}

	if payment.Status == enums.PaymentStatusCompleted {
		captureID := ""
		if payment.PaymentDetails.PayPal != nil {
			captureID = payment.PaymentDetails.PayPal.CaptureID
		}
		return &CaptureResult{Success: true, OrderID: order.ID, CaptureID: captureID, Status: paypalCompleted}, nil
	}

	captured, err := s.paypal.CaptureOrder(ctx, paypalOrderID)
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "paypal capture failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to capture payment")
	}
	capture := captured.FirstCapture()
	if capture == nil || capture.Status != paypalCompleted {
		status := captured.Status
		if capture != nil {
			status = capture.Status
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal capture not completed").WithDetails(map[string]any{
			"status": status,
		})
	}
	if local := captured.CustomID(); local != "" && local != order.ID.String() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order does not reference this order")
	}

	details := types.NewPayPalDetails(types.PayPalDetails{
		OrderID:     captured.ID,
		CaptureID:   capture.ID,
		OrderStatus: captured.Status,
	})
	var settled settlement
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.repo.WithTx(tx).FindPayment(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload payment")
		}
		settled, err = s.settle(ctx, tx, current, OutcomeSucceeded, &details, "", outbox.UserActor(actor.UserID, string(actor.Role)))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterSettle(ctx, payment, settled)

	return &CaptureResult{Success: true, OrderID: order.ID, CaptureID: capture.ID, Status: capture.Status}, nil
}

// loadPayable returns the order when the actor owns it, it is pending and
// the supplied amount, if any, matches its total.
func (s *service) loadPayable(ctx context.Context, actor orders.Actor, input InitiateInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required")
	}
	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending").WithDetails(map[string]any{
			"status": order.Status,
		})
	}
	if input.Amount != nil {
		cents, err := types.DecimalToCents(*input.Amount)
		if err != nil || cents != order.TotalCents {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount does not match order total").WithDetails(map[string]any{
				"expected": types.FormatCents(order.TotalCents),
			})
		}
	}
	return order, nil
}

// recordAttempt attaches the provider id to the order's placeholder attempt
// for this method, or inserts a new attempt when none is free.
func (s *service) recordAttempt(ctx context.Context, tx *gorm.DB, order *models.Order, method enums.PaymentMethod, transactionID string, details types.PaymentDetails) (*models.Payment, error) {
	repo := s.repo.WithTx(tx)
	if placeholder := findPlaceholder(order.Payments, method); placeholder != nil {
		ok, err := repo.AttachTransaction(ctx, placeholder.ID, transactionID, map[string]any{
			"payment_details": details,
			"amount_cents":    order.TotalCents,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
		}
		if ok {
			payment := *placeholder
			payment.TransactionID = &transactionID
			payment.PaymentDetails = details
			payment.AmountCents = order.TotalCents
			return &payment, nil
		}
	}

	payment := &models.Payment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		PaymentMethod:  method,
		TransactionID:  &transactionID,
		AmountCents:    order.TotalCents,
		Status:         enums.PaymentStatusPending,
		PaymentDetails: details,
	}
	if err := repo.CreatePayment(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
	}
	return payment, nil
}

func findPlaceholder(payments []models.Payment, method enums.PaymentMethod) *models.Payment {
	for i := range payments {
		p := payments[i]
		if p.PaymentMethod == method && p.Status == enums.PaymentStatusPending && !p.HasTransaction() {
			return &payments[i]
		}
	}
	return nil
}

func (s *service) providerFailure(ctx context.Context, order *models.Order, method enums.PaymentMethod, err error) error {
	s.metrics.PaymentInitiated(string(method), metrics.InitiationFailed)
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"provider": method,
	})
	s.logg.Error(logCtx, "payment initiation failed", err)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create payment")
}

func (s *service) initiated(ctx context.Context, order *models.Order, payment *models.Payment, result string) {
	s.metrics.PaymentInitiated(string(payment.PaymentMethod), result)
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
		"payment_id": payment.ID.String(),
		"provider":   payment.PaymentMethod,
		"result":     result,
	})
	s.logg.Info(logCtx, "payment initiated")
}

func newResult(order *models.Order, payment *models.Payment) *InitiationResult {
	return &InitiationResult{
		Success:       true,
		OrderID:       order.ID,
		PaymentID:     payment.ID,
		Amount:        types.FormatCents(order.TotalCents),
		PaymentMethod: payment.PaymentMethod,
	}
}
