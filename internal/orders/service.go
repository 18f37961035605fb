package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/internal/cart"
	product "github.com/classickits/jerseystore-backend/internal/products"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/metrics"
	"github.com/classickits/jerseystore-backend/pkg/outbox"
	"github.com/classickits/jerseystore-backend/pkg/outbox/payloads"
	"github.com/classickits/jerseystore-backend/pkg/pagination"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

const maxOrderLines = 50

// Service coordinates order creation, reads and the status lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, actor Actor, input ListInput) (*OrderList, error)
	UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, input UpdateStatusInput) (*models.Order, error)
	MarkProcessing(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (enums.OrderStatus, bool, error)
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// LineInput is one requested (product, quantity) pair.
type LineInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=100"`
}

// CreateOrderInput describes a new order. Empty Lines means "use the cart".
// Exactly one of ShippingAddress and AddressID must be set. A non-empty
// PaymentMethod records a pending attempt with no provider id yet. The cart
// is emptied when the order is built from it or when ClearCart is set.
type CreateOrderInput struct {
	UserID          uuid.UUID
	Role            enums.UserRole
	Lines           []LineInput
	ShippingAddress *types.Address
	AddressID       *uuid.UUID
	PaymentMethod   enums.PaymentMethod
	ClearCart       bool
}

type UpdateStatusInput struct {
	Status         enums.OrderStatus `json:"status" validate:"required"`
	TrackingNumber *string           `json:"trackingNumber" validate:"omitempty,max=100"`
	Notes          *string           `json:"notes" validate:"omitempty,max=2000"`
}

type ListInput struct {
	Status     *enums.OrderStatus
	Pagination pagination.Params
}

type addressBook interface {
	Snapshot(ctx context.Context, userID, id uuid.UUID) (types.Address, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams bundles the order service dependencies.
type ServiceParams struct {
	Repo      *Repository
	Products  *product.Repository
	Cart      cart.CartRepository
	Addresses addressBook
	Outbox    outboxEmitter
	Tx        db.TxRunner
	Metrics   *metrics.CommerceMetrics
	Logger    *logger.Logger
}

type service struct {
	repo      *Repository
	products  *product.Repository
	cart      cart.CartRepository
	addresses addressBook
	outbox    outboxEmitter
	tx        db.TxRunner
	metrics   *metrics.CommerceMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address book required")
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
		repo:      params.Repo,
		products:  params.Products,
		cart:      params.Cart,
		addresses: params.Addresses,
		outbox:    params.Outbox,
		tx:        params.Tx,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.PaymentMethod != "" && !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
	address, err := s.resolveAddress(ctx, input)
	if err != nil {
		return nil, err
	}
	lines, err := mergeLines(input.Lines)
	if err != nil {
		return nil, err
	}
	fromCart := len(lines) == 0

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if fromCart {
			cartLines, err := s.cartLines(ctx, tx, input.UserID)
			if err != nil {
				return err
			}
			lines = cartLines
		}

		built, err := s.reserveAndBuild(ctx, tx, input.UserID, address, lines)
		if err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, built); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		if input.PaymentMethod != "" {
			payment := models.Payment{
				ID:             uuid.New(),
				OrderID:        built.ID,
				PaymentMethod:  input.PaymentMethod,
				AmountCents:    built.TotalCents,
				Status:         enums.PaymentStatusPending,
				PaymentDetails: types.EmptyDetails(input.PaymentMethod),
			}
			if err := repo.CreatePayment(ctx, &payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment attempt")
			}
			built.Payments = []models.Payment{payment}
		}

		if fromCart || input.ClearCart {
			if err := s.cart.WithTx(tx).Clear(ctx, input.UserID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   built.ID,
			Actor:         outbox.UserActor(input.UserID, string(actorRole(input.Role))),
			Data:          orderCreatedPayload(built, input.PaymentMethod),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order event")
		}

		order = built
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"total_cents": order.TotalCents,
		"lines":       len(order.Items),
		"from_cart":   fromCart,
	}), "order created")
	return order, nil
}

func (s *service) resolveAddress(ctx context.Context, input CreateOrderInput) (types.Address, error) {
	switch {
	case input.AddressID != nil && input.ShippingAddress != nil:
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "provide either addressId or shippingAddress")
	case input.AddressID != nil:
		return s.addresses.Snapshot(ctx, input.UserID, *input.AddressID)
	case input.ShippingAddress != nil:
		addr := input.ShippingAddress.Normalize()
		if err := addr.Validate(); err != nil {
			return types.Address{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
		}
		return addr, nil
	default:
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
}

// mergeLines validates explicit lines and folds repeated products together.
func mergeLines(in []LineInput) ([]LineInput, error) {
	if len(in) > maxOrderLines {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many order lines").WithDetails(map[string]any{"max": maxOrderLines})
	}
	out := make([]LineInput, 0, len(in))
	index := make(map[uuid.UUID]int, len(in))
	for _, line := range in {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").WithDetails(map[string]any{"productId": line.ProductID})
		}
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out, nil
}

func (s *service) cartLines(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]LineInput, error) {
	rows, err := s.cart.WithTx(tx).ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	lines := make([]LineInput, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, LineInput{ProductID: row.ProductID, Quantity: row.Quantity})
	}
	return lines, nil
}

// reserveAndBuild decrements stock for every line and returns the unsaved
// order. Reservations run in product id order so concurrent orders touching
// the same products lock rows in the same sequence.
func (s *service) reserveAndBuild(ctx context.Context, tx *gorm.DB, userID uuid.UUID, address types.Address, lines []LineInput) (*models.Order, error) {
	products := s.products.WithTx(tx)

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	catalog, err := products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	for _, line := range lines {
		if _, ok := catalog[line.ProductID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{"productId": line.ProductID})
		}
	}

	ordered := append([]LineInput(nil), lines...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ProductID.String() < ordered[j].ProductID.String()
	})
	for _, line := range ordered {
		ok, err := products.Reserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve inventory")
		}
		if !ok {
			p := catalog[line.ProductID]
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("insufficient inventory for %s", p.Name)).WithDetails(map[string]any{
				"productId": p.ID,
				"name":      p.Name,
				"available": p.Inventory,
				"requested": line.Quantity,
			})
		}
	}

	now := s.now()
	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          enums.OrderStatusPending,
		ShippingAddress: address,
		Items:           make([]models.OrderItem, 0, len(lines)),
	}
	for _, line := range lines {
		p := catalog[line.ProductID]
		item := models.OrderItem{
			ID:              uuid.New(),
			OrderID:         order.ID,
			ProductID:       p.ID,
			ProductSnapshot: product.Snapshot(p, now),
			Quantity:        line.Quantity,
			PriceCents:      p.PriceCents,
		}
		order.TotalCents += item.LineTotalCents()
		order.Items = append(order.Items, item)
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, actor Actor, input ListInput) (*OrderList, error) {
	filter := ListFilter{Status: input.Status}
	if !actor.IsAdmin() {
		userID := actor.UserID
		filter.UserID = &userID
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	params := input.Pagination.Normalize()
	rows, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := &OrderList{
		Orders:     make([]OrderDTO, 0, len(rows)),
		Pagination: pagination.NewMeta(params, total),
	}
	for i := range rows {
		out.Orders = append(out.Orders, *NewOrderDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, input UpdateStatusInput) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").WithDetails(map[string]any{"status": input.Status})
	}

	var (
		result  *models.Order
		from    enums.OrderStatus
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		from = order.Status
		extra := fulfillmentUpdates(input)

		if from == input.Status {
			if err := repo.UpdateFulfillment(ctx, id, extra); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order")
			}
		} else {
			if err := s.transition(ctx, tx, order, input.Status, extra, outbox.UserActor(actor.UserID, string(actor.Role)), ""); err != nil {
				return err
			}
			changed = true
		}

		result, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.OrderTransition(string(from), string(input.Status))
		s.logg.Info(s.logg.WithFields(s.logg.WithOrderID(ctx, id.String()), map[string]any{
			"from": from,
			"to":   input.Status,
		}), "order status changed")
	}
	return result, nil
}

// transition applies one FSM step inside tx: conditional update, restock on
// cancellation and the order.status_changed event.
func (s *service) transition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, extra map[string]any, actor *outbox.ActorRef, reason string) error {
	from := order.Status
	if !from.CanTransitionTo(to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal order status transition").WithDetails(map[string]any{
			"from": from,
			"to":   to,
		})
	}

	ok, err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, from, to, extra)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}

	if to == enums.OrderStatusCancelled {
		products := s.products.WithTx(tx)
		for _, item := range order.Items {
			if err := products.Restock(ctx, item.ProductID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restock inventory")
			}
		}
	}

	payload := payloads.OrderStatusChangedEvent{
		OrderID:   order.ID,
		From:      from,
		To:        to,
		Reason:    reason,
		ChangedAt: s.now(),
	}
	if tracking, ok := extra["tracking_number"].(*string); ok {
		payload.TrackingNumber = tracking
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data:          payload,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue status event")
	}
	order.Status = to
	return nil
}

// MarkProcessing moves a pending order to processing inside the caller's
// transaction. It returns the status found and whether it changed; orders
// already past pending are left alone.
func (s *service) MarkProcessing(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (enums.OrderStatus, bool, error) {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindForUpdate(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return "", false, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return "", false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.Status != enums.OrderStatusPending {
		return order.Status, false, nil
	}
	ok, err := repo.TransitionStatus(ctx, orderID, enums.OrderStatusPending, enums.OrderStatusProcessing, nil)
	if err != nil {
		return order.Status, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	return order.Status, ok, nil
}

// ExpirePending cancels stale pending orders one transaction at a time and
// returns how many were cancelled. Failures are collected, not fatal.
func (s *service) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	rows, err := s.repo.ListExpiredPending(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired orders")
	}

	var errs error
	expired := 0
	for _, row := range rows {
		changed, err := s.expireOne(ctx, row.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", row.ID, err))
			continue
		}
		if changed {
			expired++
			s.metrics.OrderTransition(string(enums.OrderStatusPending), string(enums.OrderStatusCancelled))
		}
	}
	return expired, errs
}

func (s *service) expireOne(ctx context.Context, id uuid.UUID) (bool, error) {
	changed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return nil
		}
		payments, err := repo.ListPayments(ctx, id)
		if err != nil {
			return err
		}
		for _, p := range payments {
			if p.Status == enums.PaymentStatusCompleted {
				return nil
			}
		}
		if err := s.transition(ctx, tx, order, enums.OrderStatusCancelled, nil, outbox.SystemActor("order-expiry"), "expired"); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

func fulfillmentUpdates(input UpdateStatusInput) map[string]any {
	updates := map[string]any{}
	if input.TrackingNumber != nil {
		updates["tracking_number"] = input.TrackingNumber
	}
	if input.Notes != nil {
		updates["notes"] = input.Notes
	}
	return updates
}

func actorRole(role enums.UserRole) enums.UserRole {
	if role == "" {
		return enums.UserRoleCustomer
	}
	return role
}

func orderCreatedPayload(order *models.Order, method enums.PaymentMethod) payloads.OrderCreatedEvent {
	out := payloads.OrderCreatedEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		TotalCents:    order.TotalCents,
		PaymentMethod: method,
		Items:         make([]payloads.OrderLine, 0, len(order.Items)),
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		out.Items = append(out.Items, payloads.OrderLine{
			ProductID:      item.ProductID,
			SKU:            item.ProductSnapshot.SKU,
			Quantity:       item.Quantity,
			UnitPriceCents: item.PriceCents,
		})
	}
	return out
}
