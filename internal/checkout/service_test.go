package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sabunku/storefront-backend/internal/checkout/reservation"
	pkgcheckout "github.com/sabunku/storefront-backend/pkg/checkout"
	"github.com/sabunku/storefront-backend/pkg/db"
	"github.com/sabunku/storefront-backend/pkg/db/dbtest"
	"github.com/sabunku/storefront-backend/pkg/db/models"
	"github.com/sabunku/storefront-backend/pkg/enums"
	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
	"github.com/sabunku/storefront-backend/pkg/metrics"
	"github.com/sabunku/storefront-backend/pkg/outbox"
	"github.com/sabunku/storefront-backend/pkg/outbox/payloads"
)

type fixture struct {
	conn *gorm.DB
	svc  Service
	repo *faultyRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	repo := &faultyRepo{Repository: NewRepository(conn)}
	svc, err := NewService(ServiceParams{
		Tx:         db.Wrap(conn),
		Repository: repo,
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
		Metrics:    metrics.NewCheckoutMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, repo: repo}
}

// faultyRepo injects store failures into an otherwise real repository.
type faultyRepo struct {
	Repository
	failVariants bool
	failProducts bool
	failOrder    bool
	failItems    bool
}

func (f *faultyRepo) WithTx(tx *gorm.DB) Repository {
	clone := *f
	clone.Repository = f.Repository.WithTx(tx)
	return &clone
}

func (f *faultyRepo) FindVariants(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error) {
	if f.failVariants {
		return nil, errors.New("variants unavailable")
	}
	return f.Repository.FindVariants(ctx, ids)
}

func (f *faultyRepo) FindProductNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if f.failProducts {
		return nil, errors.New("products unavailable")
	}
	return f.Repository.FindProductNames(ctx, ids)
}

func (f *faultyRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	if f.failOrder {
		return errors.New("insert order failed")
	}
	return f.Repository.CreateOrder(ctx, order)
}

func (f *faultyRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if f.failItems {
		return errors.New("insert items failed")
	}
	return f.Repository.CreateOrderItems(ctx, items)
}

func intake(lines ...pkgcheckout.Line) pkgcheckout.Intake {
	return pkgcheckout.Intake{CustomerName: "Budi", CustomerPhone: "081234567890", Lines: lines}
}

func line(v models.ProductVariant, qty int) pkgcheckout.Line {
	return pkgcheckout.Line{ProductID: v.ProductID.String(), VariantID: v.ID.String(), Quantity: qty}
}

func TestPlaceComputesTotalFromStorePrices(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, variants := dbtest.SeedProduct(t, f.conn, "Sabun Sereh",
		models.ProductVariant{Name: "100g", Price: 10000, Stock: 5},
	)

	res, err := f.svc.Place(context.Background(), enums.CheckoutChannelWeb, intake(line(variants[0], 2)))
	require.NoError(t, err)

	assert.EqualValues(t, 20000, res.TotalPrice)
	assert.Equal(t, 3, dbtest.VariantStock(t, f.conn, variants[0].ID))
	require.Len(t, res.Items, 1)
	assert.Equal(t, ResultItem{Name: "Sabun Sereh", VariantName: "100g", Quantity: 2, Price: 10000}, res.Items[0])

	var order models.Order
	require.NoError(t, f.conn.Preload("Items").First(&order, "id = ?", res.OrderID).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.EqualValues(t, 20000, order.TotalPrice)
	assert.Equal(t, "081234567890", order.CustomerPhone)
	require.Len(t, order.Items, 1)
	assert.EqualValues(t, 10000, order.Items[0].Price)
	assert.Equal(t, "Sabun Sereh", order.Items[0].ProductName)
}

func TestPlaceEmitsOrderCreated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, variants := dbtest.SeedProduct(t, f.conn, "Sabun Arang",
		models.ProductVariant{Name: "Bar", Price: 15000, Stock: 3},
	)

	res, err := f.svc.Place(context.Background(), enums.CheckoutChannelWhatsApp, intake(line(variants[0], 1)))
	require.NoError(t, err)

	rows, err := outbox.NewRepository(f.conn).ListByAggregate(context.Background(), res.OrderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventOrderCreated, rows[0].EventType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	var payload payloads.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, enums.CheckoutChannelWhatsApp, payload.Channel)
	assert.EqualValues(t, 15000, payload.TotalPrice)
	require.Len(t, payload.Items, 1)
}

func TestPlaceInsufficientStockLeavesNoTrace(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, variants := dbtest.SeedProduct(t, f.conn, "Sabun B",
		models.ProductVariant{Name: "Bar", Price: 12000, Stock: 2},
	)

	_, err := f.svc.Place(context.Background(), enums.CheckoutChannelWeb, intake(line(variants[0], 3)))
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgcheckout.ReasonInsufficientStock, typed.Reason())
	assert.Equal(t, "Stok Sabun B (Bar) tidak mencukupi. Tersisa: 2", typed.Message())
	assert.Zero(t, dbtest.Count(t, f.conn, &models.Order{}))
	assert.Zero(t, dbtest.Count(t, f.conn, &models.OutboxEvent{}))
	assert.Equal(t, 2, dbtest.VariantStock(t, f.conn, variants[0].ID))
}

func TestPlaceChecksCombinedQuantityForRepeatedVariant(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, variants := dbtest.SeedProduct(t, f.conn, "Sabun Madu",
		models.ProductVariant{Name: "Bar", Price: 9000, Stock: 4},
	)

	_, err := f.svc.Place(context.Background(), enums.CheckoutChannelWeb, intake(line(variants[0], 3), line(variants[0], 2)))
	assert.Equal(t, pkgcheckout.ReasonInsufficientStock, pkgerrors.ReasonOf(err))
	assert.Equal(t, 4, dbtest.VariantStock(t, f.conn, variants[0].ID))

	res, err := f.svc.Place(context.Background(), enums.CheckoutChannelWeb, intake(line(variants[0], 2), line(variants[0], 2)))
	require.NoError(t, err)
	assert.EqualValues(t, 36000, res.TotalPrice)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 0, dbtest.VariantStock(t, f.conn, variants[0].ID))
}

func TestPlaceRejectsBadLines(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, variants := dbtest.SeedProduct(t, f.conn, "Sabun Susu",
		models.ProductVariant{Name: "Bar", Price: 9000, Stock: 4},
	)

	cases := []struct {
		name   string
		lines  []pkgcheckout.Line
		reason pkgerrors.Reason
		msg    string
	}{
		{"unknown variant", []pkgcheckout.Line{{VariantID: "00000000-0000-0000-0000-000000000001", Quantity: 1}}, pkgcheckout.ReasonVariantNotFound, "Varian tidak ditemukan: 00000000-0000-0000-0000-000000000001"},
		{"malformed variant id", []pkgcheckout.Line{{VariantID: "abc", Quantity: 1}}, pkgcheckout.ReasonVariantNotFound, "Varian tidak ditemukan: abc"},
		{"zero quantity", []pkgcheckout.Line{line(variants[0], 0)}, pkgcheckout.ReasonInvalidQuantity, "Jumlah tidak valid untuk Sabun Susu"},
		{"quantity over limit", []pkgcheckout.Line{line(variants[0], 101)}, pkgcheckout.ReasonInvalidQuantity, "Jumlah tidak valid untuk Sabun Susu"},
		{"empty", nil, pkgcheckout.ReasonEmptyCart, "Keranjang belanja kosong"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Place(context.Background(), enums.CheckoutChannelWeb, intake(tc.lines...))
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tc.reason, typed.Reason())
			assert.Equal(t, tc.msg, typed.Message())
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
	assert.Zero(t, dbtest.Count(t, f.conn, &models.Order{}))
	assert.Equal(t, 4, dbtest.VariantStock(t, f.conn, variants[0].ID))
}

func TestPlaceStoreFailuresRollBack(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		arm    func(*faultyRepo)
		reason pkgerrors.Reason
		msg    string
	}{
		{"variant fetch", func(r *faultyRepo) { r.failVariants = true }, pkgcheckout.ReasonVariantFetch, "Gagal mengambil data varian"},
		{"product fetch", func(r *faultyRepo) { r.failProducts = true }, pkgcheckout.ReasonProductFetch, "Gagal mengambil data produk"},
		{"order insert", func(r *faultyRepo) { r.failOrder = true }, pkgcheckout.ReasonOrderCreate, "Gagal membuat pesanan"},
		{"items insert", func(r *faultyRepo) { r.failItems = true }, pkgcheckout.ReasonOrderItemsPersist, "Gagal menyimpan item pesanan"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, variants := dbtest.SeedProduct(t, f.conn, "Sabun Zaitun",
				models.ProductVariant{Name: "Bar", Price: 11000, Stock: 5},
			)
			tc.arm(f.repo)

			_, err := f.svc.Place(context.Background(), enums.CheckoutChannelWeb, intake(line(variants[0], 2)))
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
			assert.Equal(t, tc.reason, typed.Reason())
			assert.Equal(t, tc.msg, typed.Message())

			assert.Zero(t, dbtest.Count(t, f.conn, &models.Order{}))
			assert.Zero(t, dbtest.Count(t, f.conn, &models.OrderItem{}))
			assert.Equal(t, 5, dbtest.VariantStock(t, f.conn, variants[0].ID))
		})
	}
}

type failingReserver struct{}

func (failingReserver) Decrement(context.Context, *gorm.DB, []reservation.Request) error {
	return pkgcheckout.ErrInsufficientStock("Sabun", "Bar", 0)
}

func TestPlaceDecrementFailureRemovesOrderAndItems(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Tx:         db.Wrap(conn),
		Repository: NewRepository(conn),
		Reserver:   failingReserver{},
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	_, variants := dbtest.SeedProduct(t, conn, "Sabun", models.ProductVariant{Name: "Bar", Price: 5000, Stock: 5})

	_, err = svc.Place(context.Background(), enums.CheckoutChannelLegacy, intake(line(variants[0], 1)))
	assert.Equal(t, pkgcheckout.ReasonInsufficientStock, pkgerrors.ReasonOf(err))
	assert.Zero(t, dbtest.Count(t, conn, &models.Order{}))
	assert.Zero(t, dbtest.Count(t, conn, &models.OrderItem{}))
}

func TestDecrementStockAllOrNothing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, variants := dbtest.SeedProduct(t, f.conn, "Sabun Legacy",
		models.ProductVariant{Name: "A", Price: 5000, Stock: 3},
		models.ProductVariant{Name: "B", Price: 5000, Stock: 1},
	)

	err := f.svc.DecrementStock(context.Background(), []pkgcheckout.Line{line(variants[0], 2), line(variants[1], 2)})
	assert.Equal(t, pkgcheckout.ReasonInsufficientStock, pkgerrors.ReasonOf(err))
	assert.Equal(t, 3, dbtest.VariantStock(t, f.conn, variants[0].ID))

	require.NoError(t, f.svc.DecrementStock(context.Background(), []pkgcheckout.Line{line(variants[0], 2), line(variants[1], 1)}))
	assert.Equal(t, 1, dbtest.VariantStock(t, f.conn, variants[0].ID))
	assert.Equal(t, 0, dbtest.VariantStock(t, f.conn, variants[1].ID))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
