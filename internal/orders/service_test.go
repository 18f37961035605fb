package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/internal/address"
	"github.com/classickits/jerseystore-backend/internal/cart"
	product "github.com/classickits/jerseystore-backend/internal/products"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/db/dbtest"
	"github.com/classickits/jerseystore-backend/pkg/db/models"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/outbox"
	"github.com/classickits/jerseystore-backend/pkg/types"
)

type fixture struct {
	svc       Service
	conn      *gorm.DB
	repo      *Repository
	outbox    *outbox.Repository
	addresses address.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	tx := db.FromGorm(conn)
	addresses, err := address.NewService(address.NewRepository(conn), tx)
	require.NoError(t, err)
	outboxRepo := outbox.NewRepository(conn)
	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Products:  product.NewRepository(conn),
		Cart:      cart.NewRepository(conn),
		Addresses: addresses,
		Outbox:    outbox.NewService(outboxRepo, nil),
		Tx:        tx,
		Logger:    logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return fixture{svc: svc, conn: conn, repo: repo, outbox: outboxRepo, addresses: addresses}
}

func seedProduct(t *testing.T, conn *gorm.DB, name string, priceCents int64, inventory int) models.Product {
	t.Helper()
	p := models.Product{
		ID:         uuid.New(),
		Name:       name,
		Team:       "Argentina",
		Year:       1986,
		PriceCents: priceCents,
		Condition:  enums.ProductConditionExcellent,
		Size:       enums.ProductSizeL,
		SKU:        uuid.NewString(),
		Inventory:  inventory,
	}
	require.NoError(t, conn.Create(&p).Error)
	return p
}

func shippingAddress() *types.Address {
	return &types.Address{Street: "1 Calle Florida", City: "Buenos Aires", State: "BA", ZipCode: "C1005"}
}

func inventoryOf(t *testing.T, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, conn.First(&p, "id = ?", id).Error)
	return p.Inventory
}

func countRows(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

func TestCreateFromCartReservesInventoryAndClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	p := seedProduct(t, f.conn, "Maradona 1986 Home", 10000, 5)
	require.NoError(t, cart.NewRepository(f.conn).AddQuantity(ctx, &models.CartItem{ID: uuid.New(), UserID: userID, ProductID: p.ID, Quantity: 2}))

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:          userID,
		ShippingAddress: shippingAddress(),
		PaymentMethod:   enums.PaymentMethodStripe,
	})
	require.NoError(t, err)
	require.Equal(t, int64(20000), order.TotalCents)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	require.Equal(t, "Maradona 1986 Home", order.Items[0].ProductSnapshot.Name)
	require.Equal(t, 3, inventoryOf(t, f.conn, p.ID))

	items, err := cart.NewRepository(f.conn).ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, items)

	stored, err := f.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	require.Len(t, stored.Payments, 1)
	require.Equal(t, enums.PaymentStatusPending, stored.Payments[0].Status)
	require.False(t, stored.Payments[0].HasTransaction())
	require.Equal(t, int64(20000), stored.Payments[0].AmountCents)
	require.Equal(t, "US", stored.ShippingAddress.Country)

	events, err := f.outbox.ListByAggregate(nil, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventOrderCreated, events[0].EventType)
}

func TestCreateInsufficientInventoryLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plenty := seedProduct(t, f.conn, "Brazil 1970", 15000, 10)
	scarce := seedProduct(t, f.conn, "Netherlands 1974", 12000, 1)

	_, err := f.svc.Create(ctx, CreateOrderInput{
		UserID: uuid.New(),
		Lines: []LineInput{
			{ProductID: plenty.ID, Quantity: 3},
			{ProductID: scarce.ID, Quantity: 2},
		},
		ShippingAddress: shippingAddress(),
	})
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Contains(t, err.Error(), "Netherlands 1974")

	require.Equal(t, 10, inventoryOf(t, f.conn, plenty.ID))
	require.Equal(t, 1, inventoryOf(t, f.conn, scarce.ID))
	require.Zero(t, countRows(t, f.conn, &models.Order{}))
	require.Zero(t, countRows(t, f.conn, &models.OrderItem{}))
	require.Zero(t, countRows(t, f.conn, &models.OutboxEvent{}))
}

func TestCreateTotalsMatchItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := seedProduct(t, f.conn, "Italy 1982", 9950, 4)
	b := seedProduct(t, f.conn, "West Germany 1990", 13025, 4)

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID: uuid.New(),
		Lines: []LineInput{
			{ProductID: a.ID, Quantity: 1},
			{ProductID: b.ID, Quantity: 2},
			{ProductID: a.ID, Quantity: 1},
		},
		ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 2, "repeated products fold into one line")

	var sum int64
	for _, item := range order.Items {
		sum += item.LineTotalCents()
	}
	require.Equal(t, sum, order.TotalCents)
	require.Equal(t, int64(2*9950+2*13025), order.TotalCents)
	require.Equal(t, 2, inventoryOf(t, f.conn, a.ID))
	require.Equal(t, 2, inventoryOf(t, f.conn, b.ID))
	require.Empty(t, order.Payments)
}

func TestCreateNeverOversellsLastUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := seedProduct(t, f.conn, "France 1998", 11000, 1)
	line := []LineInput{{ProductID: p.ID, Quantity: 1}}

	_, err := f.svc.Create(ctx, CreateOrderInput{UserID: uuid.New(), Lines: line, ShippingAddress: shippingAddress()})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateOrderInput{UserID: uuid.New(), Lines: line, ShippingAddress: shippingAddress()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, 0, inventoryOf(t, f.conn, p.ID))
	require.Equal(t, int64(1), countRows(t, f.conn, &models.Order{}))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := seedProduct(t, f.conn, "Cameroon 1990", 8000, 3)
	userID := uuid.New()

	_, err := f.svc.Create(ctx, CreateOrderInput{UserID: userID, ShippingAddress: shippingAddress()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "empty cart")

	_, err = f.svc.Create(ctx, CreateOrderInput{UserID: userID, Lines: []LineInput{{ProductID: p.ID, Quantity: 1}}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "missing address")

	_, err = f.svc.Create(ctx, CreateOrderInput{UserID: userID, Lines: []LineInput{{ProductID: p.ID, Quantity: 0}}, ShippingAddress: shippingAddress()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "zero quantity")

	_, err = f.svc.Create(ctx, CreateOrderInput{UserID: userID, Lines: []LineInput{{ProductID: p.ID, Quantity: 1}}, ShippingAddress: shippingAddress(), PaymentMethod: "bitcoin"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "unknown provider")

	_, err = f.svc.Create(ctx, CreateOrderInput{UserID: userID, Lines: []LineInput{{ProductID: uuid.New(), Quantity: 1}}, ShippingAddress: shippingAddress()})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "unknown product")

	require.Equal(t, 3, inventoryOf(t, f.conn, p.ID))
}

func TestCreateSnapshotsSavedAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	p := seedProduct(t, f.conn, "Mexico 1986", 7000, 2)
	saved, err := f.addresses.Create(ctx, userID, address.CreateRequest{
		Street: "Av. Reforma 1", City: "CDMX", State: "CDMX", ZipCode: "06600", Country: "MX",
	})
	require.NoError(t, err)

	order, err := f.svc.Create(ctx, CreateOrderInput{
		UserID:    userID,
		Lines:     []LineInput{{ProductID: p.ID, Quantity: 1}},
		AddressID: &saved.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "Av. Reforma 1", order.ShippingAddress.Street)
	require.Equal(t, "MX", order.ShippingAddress.Country)

	other := uuid.New()
	_, err = f.svc.Create(ctx, CreateOrderInput{
		UserID:    other,
		Lines:     []LineInput{{ProductID: p.ID, Quantity: 1}},
		AddressID: &saved.ID,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "address of another user")
}

func placeOrder(t *testing.T, f fixture, userID uuid.UUID, p models.Product, qty int) *models.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), CreateOrderInput{
		UserID:          userID,
		Lines:           []LineInput{{ProductID: p.ID, Quantity: qty}},
		ShippingAddress: shippingAddress(),
	})
	require.NoError(t, err)
	return order
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	p := seedProduct(t, f.conn, "England 1966", 20000, 2)
	order := placeOrder(t, f, owner, p, 1)

	got, err := f.svc.Get(ctx, Actor{UserID: owner, Role: enums.UserRoleCustomer}, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)

	_, err = f.svc.Get(ctx, Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Get(ctx, Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, Actor{UserID: owner, Role: enums.UserRoleCustomer}, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListScopesCustomersToTheirOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	p := seedProduct(t, f.conn, "Uruguay 1950", 5000, 10)
	placeOrder(t, f, alice, p, 1)
	placeOrder(t, f, alice, p, 1)
	placeOrder(t, f, bob, p, 1)

	mine, err := f.svc.List(ctx, Actor{UserID: alice, Role: enums.UserRoleCustomer}, ListInput{})
	require.NoError(t, err)
	require.Len(t, mine.Orders, 2)
	require.Equal(t, int64(2), mine.Pagination.Total)

	all, err := f.svc.List(ctx, Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}, ListInput{})
	require.NoError(t, err)
	require.Len(t, all.Orders, 3)

	cancelled := enums.OrderStatusCancelled
	none, err := f.svc.List(ctx, Actor{UserID: alice, Role: enums.UserRoleCustomer}, ListInput{Status: &cancelled})
	require.NoError(t, err)
	require.Empty(t, none.Orders)
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	p := seedProduct(t, f.conn, "Spain 2010", 9000, 3)
	order := placeOrder(t, f, uuid.New(), p, 1)

	_, err := f.svc.UpdateStatus(ctx, Actor{UserID: order.UserID, Role: enums.UserRoleCustomer}, order.ID, UpdateStatusInput{Status: enums.OrderStatusProcessing})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: enums.OrderStatusShipped})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "pending cannot ship")

	updated, err := f.svc.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: enums.OrderStatusProcessing})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusProcessing, updated.Status)

	tracking := "1Z999AA10123456784"
	updated, err = f.svc.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: enums.OrderStatusProcessing, TrackingNumber: &tracking})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusProcessing, updated.Status)
	require.NotNil(t, updated.TrackingNumber)
	require.Equal(t, tracking, *updated.TrackingNumber)

	_, err = f.svc.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: enums.OrderStatusShipped})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: enums.OrderStatusDelivered})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: enums.OrderStatusPending})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "delivered is terminal")

	events, err := f.outbox.ListByAggregate(nil, order.ID)
	require.NoError(t, err)
	statusEvents := 0
	for _, e := range events {
		if e.EventType == enums.EventOrderStatusChanged {
			statusEvents++
		}
	}
	require.Equal(t, 3, statusEvents, "re-setting the same status emits nothing")
}

func TestCancelRestoresInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	p := seedProduct(t, f.conn, "Cameroon 2002", 6000, 5)
	order := placeOrder(t, f, uuid.New(), p, 3)
	require.Equal(t, 2, inventoryOf(t, f.conn, p.ID))

	updated, err := f.svc.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: enums.OrderStatusCancelled})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, updated.Status)
	require.Equal(t, 5, inventoryOf(t, f.conn, p.ID))

	_, err = f.svc.UpdateStatus(ctx, admin, order.ID, UpdateStatusInput{Status: enums.OrderStatusProcessing})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 5, inventoryOf(t, f.conn, p.ID))
}

func TestMarkProcessingOnlyAdvancesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := seedProduct(t, f.conn, "Nigeria 2018", 7500, 5)
	order := placeOrder(t, f, uuid.New(), p, 1)

	var (
		from    enums.OrderStatus
		changed bool
	)
	require.NoError(t, f.conn.Transaction(func(tx *gorm.DB) error {
		var err error
		from, changed, err = f.svc.MarkProcessing(ctx, tx, order.ID)
		return err
	}))
	require.Equal(t, enums.OrderStatusPending, from)
	require.True(t, changed)

	require.NoError(t, f.conn.Transaction(func(tx *gorm.DB) error {
		var err error
		from, changed, err = f.svc.MarkProcessing(ctx, tx, order.ID)
		return err
	}))
	require.Equal(t, enums.OrderStatusProcessing, from)
	require.False(t, changed)
}

func TestExpirePendingCancelsStaleUnpaidOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := seedProduct(t, f.conn, "Denmark 1986", 9900, 6)
	stale := placeOrder(t, f, uuid.New(), p, 2)
	paid := placeOrder(t, f, uuid.New(), p, 1)
	fresh := placeOrder(t, f, uuid.New(), p, 1)
	require.Equal(t, 2, inventoryOf(t, f.conn, p.ID))

	old := time.Now().UTC().Add(-100 * time.Hour)
	for _, id := range []uuid.UUID{stale.ID, paid.ID} {
		require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", id).UpdateColumn("created_at", old).Error)
	}
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", fresh.ID).UpdateColumn("created_at", time.Now().UTC()).Error)
	require.NoError(t, f.repo.CreatePayment(ctx, &models.Payment{
		ID:             uuid.New(),
		OrderID:        paid.ID,
		PaymentMethod:  enums.PaymentMethodSquare,
		AmountCents:    paid.TotalCents,
		Status:         enums.PaymentStatusCompleted,
		PaymentDetails: types.EmptyDetails(enums.PaymentMethodSquare),
	}))

	expired, err := f.svc.ExpirePending(ctx, time.Now().UTC().Add(-72*time.Hour), 50)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	got, err := f.repo.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, got.Status)
	require.Equal(t, 4, inventoryOf(t, f.conn, p.ID))

	got, err = f.repo.FindByID(ctx, paid.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, got.Status)

	again, err := f.svc.ExpirePending(ctx, time.Now().UTC().Add(-72*time.Hour), 50)
	require.NoError(t, err)
	require.Zero(t, again)
}
