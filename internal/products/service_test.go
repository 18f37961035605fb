package product

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/db/dbtest"
	"github.com/classickits/jerseystore-backend/pkg/enums"
	pkgerrors "github.com/classickits/jerseystore-backend/pkg/errors"
	"github.com/classickits/jerseystore-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.FromGorm(conn))
	require.NoError(t, err)
	return svc, conn
}

func intPtr(v int) *int { return &v }

func createInput(sku, team string, price string) CreateProductInput {
	return CreateProductInput{
		Name:      team + " Home Shirt",
		Team:      team,
		Year:      1986,
		Price:     decimal.RequireFromString(price),
		Condition: enums.ProductConditionExcellent,
		Size:      enums.ProductSizeL,
		SKU:       sku,
	}
}

func TestCreateProductDefaultsAndImages(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	input := createInput("ARG-86-L", "Argentina", "149.99")
	input.Images = []ImageInput{
		{ImageURL: "https://cdn.example.com/back.jpg", DisplayOrder: intPtr(2)},
		{ImageURL: "https://cdn.example.com/front.jpg", DisplayOrder: intPtr(0)},
	}

	created, err := svc.CreateProduct(ctx, input)
	require.NoError(t, err)
	require.Equal(t, "149.99", created.Price)
	require.Equal(t, 1, created.Inventory)
	require.Len(t, created.Images, 2)
	require.Equal(t, "https://cdn.example.com/front.jpg", created.Images[0].ImageURL)

	_, err = svc.CreateProduct(ctx, createInput("ARG-86-L", "Argentina", "99.00"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "duplicate sku: %v", err)
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	bad := []CreateProductInput{
		createInput("A", "Brazil", "0"),
		createInput("B", "Brazil", "10.999"),
		func() CreateProductInput { in := createInput("C", "Brazil", "10"); in.Year = 1850; return in }(),
		func() CreateProductInput { in := createInput("D", "Brazil", "10"); in.Condition = "Worn"; return in }(),
		func() CreateProductInput { in := createInput("E", "Brazil", "10"); in.Inventory = intPtr(-1); return in }(),
	}
	for i, in := range bad {
		_, err := svc.CreateProduct(ctx, in)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "case %d: %v", i, err)
	}
}

func TestListProductsFiltersAndPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i, team := range []string{"Ajax", "Ajax", "Milan", "Celtic"} {
		in := createInput(uuid.NewString(), team, []string{"50", "80", "120", "95"}[i])
		if team == "Milan" {
			in.Featured = true
		}
		_, err := svc.CreateProduct(ctx, in)
		require.NoError(t, err)
	}

	res, err := svc.ListProducts(ctx, ListProductsInput{
		Filters:    ListFilters{Team: "ajax"},
		Pagination: pagination.Params{Page: 1, Limit: 1},
	})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	require.EqualValues(t, 2, res.Pagination.Total)
	require.Equal(t, 2, res.Pagination.TotalPages)

	lo, hi := int64(9000), int64(13000)
	res, err = svc.ListProducts(ctx, ListProductsInput{Filters: ListFilters{MinPriceCents: &lo, MaxPriceCents: &hi}})
	require.NoError(t, err)
	require.Len(t, res.Products, 2)

	res, err = svc.ListProducts(ctx, ListProductsInput{Filters: ListFilters{Search: "celt"}})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	require.Equal(t, "Celtic", res.Products[0].Team)

	featured, err := svc.ListFeatured(ctx, 0)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	require.Equal(t, "Milan", featured[0].Team)
}

func TestUpdateProductReplacesImagesAndChecksFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	in := createInput("NED-88-M", "Netherlands", "200")
	in.Images = []ImageInput{{ImageURL: "https://cdn.example.com/old.jpg"}}
	created, err := svc.CreateProduct(ctx, in)
	require.NoError(t, err)

	price := decimal.RequireFromString("180.50")
	featured := true
	images := []ImageInput{{ImageURL: "https://cdn.example.com/new-1.jpg"}, {ImageURL: "https://cdn.example.com/new-2.jpg"}}
	updated, err := svc.UpdateProduct(ctx, created.ID, UpdateProductInput{Price: &price, Featured: &featured, Images: &images})
	require.NoError(t, err)
	require.Equal(t, "180.50", updated.Price)
	require.True(t, updated.Featured)
	require.Len(t, updated.Images, 2)
	require.Equal(t, "Netherlands", updated.Team)

	blank := " "
	_, err = svc.UpdateProduct(ctx, created.ID, UpdateProductInput{Name: &blank})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateProduct(ctx, uuid.New(), UpdateProductInput{Featured: &featured})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSetInventoryAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, createInput("ITA-90-S", "Italy", "75"))
	require.NoError(t, err)

	updated, err := svc.SetInventory(ctx, created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 7, updated.Inventory)

	_, err = svc.SetInventory(ctx, created.ID, -1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.NoError(t, svc.DeleteProduct(ctx, created.ID))
	_, err = svc.GetProduct(ctx, created.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.True(t, pkgerrors.IsCode(svc.DeleteProduct(ctx, created.ID), pkgerrors.CodeNotFound))
}

func TestRepositoryReserveNeverGoesNegative(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	repo := NewRepository(conn)

	in := createInput("GER-74-XL", "West Germany", "300")
	in.Inventory = intPtr(3)
	created, err := svc.CreateProduct(ctx, in)
	require.NoError(t, err)

	ok, err := repo.Reserve(ctx, created.ID, 2)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Reserve(ctx, created.ID, 2)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.Restock(ctx, created.ID, 2))
	product, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 3, product.Inventory)

	ok, err = repo.Reserve(ctx, uuid.New(), 1)
	require.NoError(t, err)
	require.False(t, ok)
}
