package payments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/internal/address"
	"github.com/classickits/jerseystore-backend/internal/cart"
	"github.com/classickits/jerseystore-backend/internal/orders"
	product "github.com/classickits/jerseystore-backend/internal/products"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/db/dbtest"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/outbox"
	"github.com/classickits/jerseystore-backend/pkg/paypal"
	"github.com/classickits/jerseystore-backend/pkg/square"
	stripeclient "github.com/classickits/jerseystore-backend/pkg/stripe"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

type stubStripe struct {
	created []stripeclient.IntentParams
	err     error
	status  stripe.PaymentIntentStatus
	refunds []int64
}

func (s *stubStripe) CreatePaymentIntent(_ context.Context, in stripeclient.IntentParams) (*stripe.PaymentIntent, error) {
	s.created = append(s.created, in)
	if s.err != nil {
		return nil, s.err
	}
	id := fmt.Sprintf("pi_%d", len(s.created))
	return &stripe.PaymentIntent{ID: id, ClientSecret: id + "_secret", Status: stripe.PaymentIntentStatusRequiresPaymentMethod}, nil
}

func (s *stubStripe) GetPaymentIntent(_ context.Context, intentID string) (*stripe.PaymentIntent, error) {
	return &stripe.PaymentIntent{ID: intentID, Status: s.status}, nil
}

func (s *stubStripe) RefundPaymentIntent(_ context.Context, _ string, amountCents int64, _ string) (*stripe.Refund, error) {
	s.refunds = append(s.refunds, amountCents)
	return &stripe.Refund{ID: "re_1"}, nil
}

type stubPayPal struct {
	created  []paypal.OrderParams
	captured *paypal.Order
}

func (s *stubPayPal) CreateOrder(_ context.Context, params paypal.OrderParams) (*paypal.Order, error) {
	s.created = append(s.created, params)
	return &paypal.Order{
		ID:     "PP-ORDER-1",
		Status: "CREATED",
		Links:  []paypal.Link{{Href: "https://paypal.test/approve", Rel: "approve"}},
	}, nil
}

func (s *stubPayPal) GetOrder(_ context.Context, id string) (*paypal.Order, error) {
	return &paypal.Order{ID: id, Status: "APPROVED"}, nil
}

func (s *stubPayPal) CaptureOrder(_ context.Context, _ string) (*paypal.Order, error) {
	return s.captured, nil
}

func (s *stubPayPal) RefundCapture(_ context.Context, _, _, _ string) (*paypal.Refund, error) {
	return &paypal.Refund{ID: "PP-REFUND-1", Status: "COMPLETED"}, nil
}

type stubSquare struct {
	status string
	params []square.PaymentCreateParams
}

func (s *stubSquare) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	s.params = append(s.params, params)
	id := "sq_pay_1"
	status := s.status
	receipt := "https://squareup.test/receipt/1"
	return &sq.Payment{ID: &id, Status: &status, ReceiptURL: &receipt}, nil
}

func (s *stubSquare) GetPayment(_ context.Context, id string) (*sq.Payment, error) {
	status := s.status
	return &sq.Payment{ID: &id, Status: &status}, nil
}

func (s *stubSquare) RefundPayment(_ context.Context, _ square.RefundParams) (*sq.PaymentRefund, error) {
	return &sq.PaymentRefund{ID: "sq_refund_1"}, nil
}

type fixture struct {
	svc    Service
	orders orders.Service
	conn   *gorm.DB
	repo   *orders.Repository
	outbox *outbox.Repository
	stripe *stubStripe
	paypal *stubPayPal
	square *stubSquare
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	tx := db.FromGorm(conn)
	logg := logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})
	addresses, err := address.NewService(address.NewRepository(conn), tx)
	require.NoError(t, err)
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, nil)
	repo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      repo,
		Products:  product.NewRepository(conn),
		Cart:      cart.NewRepository(conn),
		Addresses: addresses,
		Outbox:    emitter,
		Tx:        tx,
		Logger:    logg,
	})
	require.NoError(t, err)

	f := fixture{
		orders: orderSvc,
		conn:   conn,
		repo:   repo,
		outbox: outboxRepo,
		stripe: &stubStripe{},
		paypal: &stubPayPal{},
		square: &stubSquare{status: "COMPLETED"},
	}
	f.svc, err = NewService(ServiceParams{
		Repo:   repo,
		Orders: orderSvc,
		Stripe: f.stripe,
		PayPal: f.paypal,
		Square: f.square,
		Outbox: emitter,
		Tx:     tx,
		Logger: logg,
	})
	require.NoError(t, err)
	return f
}

func seedProduct(t *testing.T, conn *gorm.DB, priceCents int64, inventory int) models.Product {
	t.Helper()
	p := models.Product{
		ID:         uuid.New(),
		Name:       "Italy 1982 Away",
		Team:       "Italy",
		Year:       1982,
		PriceCents: priceCents,
		Condition:  enums.ProductConditionGood,
		Size:       enums.ProductSizeM,
		SKU:        uuid.NewString(),
		Inventory:  inventory,
	}
	require.NoError(t, conn.Create(&p).Error)
	return p
}

func shippingAddress() *types.Address {
	return &types.Address{Street: "10 Via Roma", City: "Torino", State: "TO", ZipCode: "10121", Country: "IT"}
}

// placeOrder creates a pending order for two units of a 100.00 jersey.
func placeOrder(t *testing.T, f fixture, userID uuid.UUID, method enums.PaymentMethod) *models.Order {
	t.Helper()
	p := seedProduct(t, f.conn, 10000, 5)
	order, err := f.orders.Create(context.Background(), orders.CreateOrderInput{
		UserID:          userID,
		Lines:           []orders.LineInput{{ProductID: p.ID, Quantity: 2}},
		ShippingAddress: shippingAddress(),
		PaymentMethod:   method,
	})
	require.NoError(t, err)
	return order
}

func customer(id uuid.UUID) orders.Actor {
	return orders.Actor{UserID: id, Role: enums.UserRoleCustomer}
}

func eventTypes(t *testing.T, repo *outbox.Repository, aggregateID uuid.UUID) []enums.OutboxEventType {
	t.Helper()
	rows, err := repo.ListByAggregate(nil, aggregateID)
	require.NoError(t, err)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}

func orderStatus(t *testing.T, f fixture, id uuid.UUID) enums.OrderStatus {
	t.Helper()
	order, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return order.Status
}

func TestStripeIntentThenWebhookSettlesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := placeOrder(t, f, userID, enums.PaymentMethodStripe)

	amount := decimal.RequireFromString("200.00")
	res, err := f.svc.InitiateStripe(ctx, customer(userID), InitiateInput{OrderID: order.ID, Amount: &amount})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "200.00", res.Amount)
	require.Equal(t, "pi_1", res.PaymentIntentID)
	require.Equal(t, "pi_1_secret", res.ClientSecret)

	require.Len(t, f.stripe.created, 1)
	require.Equal(t, int64(20000), f.stripe.created[0].AmountCents)
	require.Equal(t, order.ID.String(), f.stripe.created[0].OrderID)
	require.Equal(t, userID.String(), f.stripe.created[0].UserID)

	payments, err := f.repo.ListPayments(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1, "placeholder attempt is reused")
	require.Equal(t, res.PaymentID, payments[0].ID)
	require.Equal(t, "pi_1", *payments[0].TransactionID)
	require.Equal(t, enums.PaymentStatusPending, payments[0].Status)

	result, err := f.svc.Reconcile(ctx, ReconcileInput{
		Provider:       enums.PaymentMethodStripe,
		OrderID:        order.ID,
		TransactionIDs: []string{"pi_1"},
		Outcome:        OutcomeSucceeded,
	})
	require.NoError(t, err)
	require.Equal(t, ResultCompleted, result)

	payment, err := f.repo.FindPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, payment.Status)
	require.Equal(t, enums.OrderStatusProcessing, orderStatus(t, f, order.ID))
	require.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderPaid}, eventTypes(t, f.outbox, order.ID))
}

func TestReconcileReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := placeOrder(t, f, userID, enums.PaymentMethodStripe)
	_, err := f.svc.InitiateStripe(ctx, customer(userID), InitiateInput{OrderID: order.ID})
	require.NoError(t, err)

	input := ReconcileInput{
		Provider:       enums.PaymentMethodStripe,
		OrderID:        order.ID,
		TransactionIDs: []string{"pi_1"},
		Outcome:        OutcomeSucceeded,
	}
	first, err := f.svc.Reconcile(ctx, input)
	require.NoError(t, err)
	require.Equal(t, ResultCompleted, first)

	second, err := f.svc.Reconcile(ctx, input)
	require.NoError(t, err)
	require.Equal(t, ResultNoop, second)

	require.Equal(t, enums.OrderStatusProcessing, orderStatus(t, f, order.ID))
	require.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderPaid}, eventTypes(t, f.outbox, order.ID))
}

func TestReconcileFailureKeepsOrderPendingAndNeverDowngrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := placeOrder(t, f, userID, enums.PaymentMethodStripe)
	res, err := f.svc.InitiateStripe(ctx, customer(userID), InitiateInput{OrderID: order.ID})
	require.NoError(t, err)

	failed, err := f.svc.Reconcile(ctx, ReconcileInput{
		Provider:       enums.PaymentMethodStripe,
		OrderID:        order.ID,
		TransactionIDs: []string{"pi_1"},
		Outcome:        OutcomeFailed,
		Reason:         "card_declined",
	})
	require.NoError(t, err)
	require.Equal(t, ResultFailed, failed)
	require.Equal(t, enums.OrderStatusPending, orderStatus(t, f, order.ID))
	require.Equal(t, []enums.OutboxEventType{enums.EventPaymentFailed}, eventTypes(t, f.outbox, res.PaymentID))

	payment, err := f.repo.FindPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, payment.Status)
	require.Equal(t, "card_declined", payment.PaymentDetails.Stripe.LastError)

	// A retried intent can still succeed after a decline.
	completed, err := f.svc.Reconcile(ctx, ReconcileInput{
		Provider:       enums.PaymentMethodStripe,
		OrderID:        order.ID,
		TransactionIDs: []string{"pi_1"},
		Outcome:        OutcomeSucceeded,
	})
	require.NoError(t, err)
	require.Equal(t, ResultCompleted, completed)

	late, err := f.svc.Reconcile(ctx, ReconcileInput{
		Provider:       enums.PaymentMethodStripe,
		OrderID:        order.ID,
		TransactionIDs: []string{"pi_1"},
		Outcome:        OutcomeFailed,
	})
	require.NoError(t, err)
	require.Equal(t, ResultNoop, late)

	payment, err = f.repo.FindPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, payment.Status)
	require.Equal(t, enums.OrderStatusProcessing, orderStatus(t, f, order.ID))
}

func TestReconcileUnknownTransactionIsUnmatched(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Reconcile(context.Background(), ReconcileInput{
		Provider:       enums.PaymentMethodSquare,
		TransactionIDs: []string{"missing"},
		Outcome:        OutcomeSucceeded,
	})
	require.NoError(t, err)
	require.Equal(t, ResultUnmatched, result)

	_, err = f.svc.Reconcile(context.Background(), ReconcileInput{
		Provider: enums.PaymentMethodSquare,
		Outcome:  OutcomeSucceeded,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestReconcileSuccessLeavesCancelledOrderAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := placeOrder(t, f, userID, enums.PaymentMethodStripe)
	res, err := f.svc.InitiateStripe(ctx, customer(userID), InitiateInput{OrderID: order.ID})
	require.NoError(t, err)

	admin := orders.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	_, err = f.orders.UpdateStatus(ctx, admin, order.ID, orders.UpdateStatusInput{Status: enums.OrderStatusCancelled})
	require.NoError(t, err)

	result, err := f.svc.Reconcile(ctx, ReconcileInput{
		Provider:       enums.PaymentMethodStripe,
		OrderID:        order.ID,
		TransactionIDs: []string{"pi_1"},
		Outcome:        OutcomeSucceeded,
	})
	require.NoError(t, err)
	require.Equal(t, ResultCompleted, result)

	payment, err := f.repo.FindPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, payment.Status)
	require.Equal(t, enums.OrderStatusCancelled, orderStatus(t, f, order.ID))
}

func TestInitiateEnforcesPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ownerID := uuid.New()
	order := placeOrder(t, f, ownerID, enums.PaymentMethodStripe)

	_, err := f.svc.InitiateStripe(ctx, customer(uuid.New()), InitiateInput{OrderID: order.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	wrong := decimal.RequireFromString("150.00")
	_, err = f.svc.InitiateStripe(ctx, customer(ownerID), InitiateInput{OrderID: order.ID, Amount: &wrong})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.InitiateStripe(ctx, customer(ownerID), InitiateInput{OrderID: uuid.New()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.InitiateSquare(ctx, customer(ownerID), InitiateInput{OrderID: order.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "square needs a source")
	require.Empty(t, f.stripe.created)

	admin := orders.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	_, err = f.orders.UpdateStatus(ctx, admin, order.ID, orders.UpdateStatusInput{Status: enums.OrderStatusProcessing})
	require.NoError(t, err)

	_, err = f.svc.InitiateStripe(ctx, customer(ownerID), InitiateInput{OrderID: order.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Empty(t, f.stripe.created)
}

func TestInitiateProviderFailureSurfacesGenericError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := placeOrder(t, f, userID, enums.PaymentMethodStripe)
	f.stripe.err = errors.New("stripe: invalid api key")

	_, err := f.svc.InitiateStripe(ctx, customer(userID), InitiateInput{OrderID: order.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Equal(t, "failed to create payment", pkgerrors.As(err).Message())

	payments, err := f.repo.ListPayments(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.False(t, payments[0].HasTransaction())
}

func TestSquareCompletedChargeSettlesSynchronously(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := placeOrder(t, f, userID, enums.PaymentMethodSquare)

	res, err := f.svc.InitiateSquare(ctx, customer(userID), InitiateInput{OrderID: order.ID, SourceID: "cnon:card-nonce-ok"})
	require.NoError(t, err)
	require.Equal(t, "COMPLETED", res.Status)
	require.Equal(t, "sq_pay_1", res.SquarePaymentID)
	require.Equal(t, "https://squareup.test/receipt/1", res.ReceiptURL)

	require.Len(t, f.square.params, 1)
	require.Equal(t, OrderReference(order.ID), f.square.params[0].ReferenceID)
	require.True(t, f.square.params[0].Autocomplete)
	require.NotEmpty(t, f.square.params[0].IdempotencyKey)

	payment, err := f.repo.FindPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, payment.Status)
	require.Equal(t, "sq_pay_1", payment.PaymentDetails.Square.PaymentID)
	require.Equal(t, enums.OrderStatusProcessing, orderStatus(t, f, order.ID))

	// The webhook for the same charge arrives afterwards and changes nothing.
	replay, err := f.svc.Reconcile(ctx, ReconcileInput{
		Provider:       enums.PaymentMethodSquare,
		OrderID:        order.ID,
		TransactionIDs: []string{"sq_pay_1"},
		Outcome:        OutcomeSucceeded,
	})
	require.NoError(t, err)
	require.Equal(t, ResultNoop, replay)
}

func TestCheckoutCreatesOrderAndStartsPayPal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	p := seedProduct(t, f.conn, 7500, 3)

	res, err := f.svc.Checkout(ctx, customer(userID), CheckoutInput{
		CartItems:       []orders.LineInput{{ProductID: p.ID, Quantity: 2}},
		ShippingAddress: shippingAddress(),
		PaymentMethod:   enums.PaymentMethodPayPal,
	})
	require.NoError(t, err)
	require.Equal(t, "150.00", res.Amount)
	require.Equal(t, enums.PaymentMethodPayPal, res.PaymentMethod)
	require.Equal(t, "PP-ORDER-1", res.PayPalOrderID)
	require.Equal(t, "https://paypal.test/approve", res.ApprovalURL)

	require.Len(t, f.paypal.created, 1)
	require.Equal(t, res.OrderID.String(), f.paypal.created[0].LocalOrderID)
	require.Equal(t, "150.00", f.paypal.created[0].AmountValue)

	_, err = f.svc.Checkout(ctx, customer(userID), CheckoutInput{PaymentMethod: enums.PaymentMethodPayPal})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCheckoutWithItemsEmptiesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	saved := seedProduct(t, f.conn, 5000, 4)
	bought := seedProduct(t, f.conn, 9000, 4)
	require.NoError(t, f.conn.Create(&models.CartItem{ID: uuid.New(), UserID: userID, ProductID: saved.ID, Quantity: 1}).Error)

	res, err := f.svc.Checkout(ctx, customer(userID), CheckoutInput{
		CartItems:       []orders.LineInput{{ProductID: bought.ID, Quantity: 2}},
		ShippingAddress: shippingAddress(),
		PaymentMethod:   enums.PaymentMethodStripe,
	})
	require.NoError(t, err)
	require.Equal(t, "180.00", res.Amount)

	var rows int64
	require.NoError(t, f.conn.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&rows).Error)
	require.Zero(t, rows)
}

func TestCapturePayPalCompletesOwnedPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := placeOrder(t, f, userID, enums.PaymentMethodPayPal)
	res, err := f.svc.InitiatePayPal(ctx, customer(userID), InitiateInput{OrderID: order.ID})
	require.NoError(t, err)

	f.paypal.captured = &paypal.Order{
		ID:     "PP-ORDER-1",
		Status: "COMPLETED",
		PurchaseUnits: []paypal.PurchaseUnit{{
			CustomID: order.ID.String(),
			Payments: &struct {
				Captures []paypal.Capture `json:"captures,omitempty"`
			}{Captures: []paypal.Capture{{ID: "CAPTURE-1", Status: "COMPLETED", CustomID: order.ID.String()}}},
		}},
	}

	_, err = f.svc.CapturePayPal(ctx, customer(uuid.New()), "PP-ORDER-1")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.CapturePayPal(ctx, customer(userID), "PP-UNKNOWN")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	capture, err := f.svc.CapturePayPal(ctx, customer(userID), "PP-ORDER-1")
	require.NoError(t, err)
	require.True(t, capture.Success)
	require.Equal(t, "CAPTURE-1", capture.CaptureID)
	require.Equal(t, "COMPLETED", capture.Status)

	payment, err := f.repo.FindPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, payment.Status)
	require.Equal(t, "CAPTURE-1", payment.PaymentDetails.PayPal.CaptureID)
	require.Equal(t, "https://paypal.test/approve", payment.PaymentDetails.PayPal.ApprovalURL)
	require.Equal(t, enums.OrderStatusProcessing, orderStatus(t, f, order.ID))

	again, err := f.svc.CapturePayPal(ctx, customer(userID), "PP-ORDER-1")
	require.NoError(t, err)
	require.Equal(t, "CAPTURE-1", again.CaptureID)
}

func TestCapturePayPalRejectsIncompleteCapture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := placeOrder(t, f, userID, enums.PaymentMethodPayPal)
	_, err := f.svc.InitiatePayPal(ctx, customer(userID), InitiateInput{OrderID: order.ID})
	require.NoError(t, err)

	f.paypal.captured = &paypal.Order{ID: "PP-ORDER-1", Status: "PAYER_ACTION_REQUIRED"}
	_, err = f.svc.CapturePayPal(ctx, customer(userID), "PP-ORDER-1")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, enums.OrderStatusPending, orderStatus(t, f, order.ID))
}

func TestRefundCompletedPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	admin := orders.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	order := placeOrder(t, f, userID, enums.PaymentMethodStripe)
	res, err := f.svc.InitiateStripe(ctx, customer(userID), InitiateInput{OrderID: order.ID})
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, admin, RefundInput{PaymentID: res.PaymentID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "pending payments cannot be refunded")

	_, err = f.svc.Reconcile(ctx, ReconcileInput{
		Provider:       enums.PaymentMethodStripe,
		OrderID:        order.ID,
		TransactionIDs: []string{"pi_1"},
		Outcome:        OutcomeSucceeded,
	})
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, customer(userID), RefundInput{PaymentID: res.PaymentID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	tooMuch := decimal.RequireFromString("250.00")
	_, err = f.svc.Refund(ctx, admin, RefundInput{PaymentID: res.PaymentID, Amount: &tooMuch})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	refunded, err := f.svc.Refund(ctx, admin, RefundInput{PaymentID: res.PaymentID})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusRefunded, refunded.Status)
	require.Equal(t, []int64{20000}, f.stripe.refunds)

	stored, err := f.repo.FindPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusRefunded, stored.Status)
	require.Equal(t, "re_1", stored.PaymentDetails.Stripe.RefundID)
	require.Contains(t, eventTypes(t, f.outbox, res.PaymentID), enums.EventPaymentRefunded)
}

func TestReconcileStaleAsksProviders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := placeOrder(t, f, userID, enums.PaymentMethodStripe)
	res, err := f.svc.InitiateStripe(ctx, customer(userID), InitiateInput{OrderID: order.ID})
	require.NoError(t, err)

	f.stripe.status = stripe.PaymentIntentStatusProcessing
	sweep, err := f.svc.ReconcileStale(ctx, time.Now().UTC().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Equal(t, SweepResult{}, sweep, "fresh attempts are not polled")

	require.NoError(t, f.conn.Model(&models.Payment{}).
		Where("id = ?", res.PaymentID).
		UpdateColumn("updated_at", time.Now().UTC().Add(-2*time.Hour)).Error)

	sweep, err = f.svc.ReconcileStale(ctx, time.Now().UTC().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Equal(t, SweepResult{Checked: 1}, sweep)

	f.stripe.status = stripe.PaymentIntentStatusSucceeded
	sweep, err = f.svc.ReconcileStale(ctx, time.Now().UTC().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Equal(t, SweepResult{Checked: 1, Settled: 1}, sweep)
	require.Equal(t, enums.OrderStatusProcessing, orderStatus(t, f, order.ID))
}

func TestMergeDetailsKeepsEarlierFields(t *testing.T) {
	current := types.NewPayPalDetails(types.PayPalDetails{OrderID: "PP-1", ApprovalURL: "https://paypal.test/a"})
	incoming := types.NewPayPalDetails(types.PayPalDetails{CaptureID: "CAP-1", OrderStatus: "COMPLETED"})

	merged := mergeDetails(current, &incoming)
	require.Equal(t, types.PayPalDetails{
		OrderID:     "PP-1",
		ApprovalURL: "https://paypal.test/a",
		CaptureID:   "CAP-1",
		OrderStatus: "COMPLETED",
	}, *merged.PayPal)

	other := types.NewStripeDetails(types.StripeDetails{PaymentIntentID: "pi_9"})
	require.Equal(t, current, mergeDetails(current, &other))
}

func TestParseOrderReference(t *testing.T) {
	id := uuid.New()
	for _, raw := range []string{id.String(), OrderReference(id), " " + OrderReference(id) + " "} {
		parsed, err := ParseOrderReference(raw)
		require.NoError(t, err)
		require.Equal(t, id, parsed)
	}
	_, err := ParseOrderReference("ORDER-")
	require.Error(t, err)
}
