package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sabunku/storefront-backend/pkg/db/dbtest"
	"github.com/sabunku/storefront-backend/pkg/db/models"
	"github.com/sabunku/storefront-backend/pkg/enums"
	"github.com/sabunku/storefront-backend/pkg/pagination"
)

func seedOrderAt(t *testing.T, conn *gorm.DB, status enums.OrderStatus, createdAt time.Time) models.Order {
	t.Helper()
	order := models.Order{
		CustomerName: "Siti",
		TotalPrice:   10000,
		Status:       status,
		CreatedAt:    createdAt.UTC(),
	}
	require.NoError(t, conn.Create(&order).Error)
	item := models.OrderItem{OrderID: order.ID, ProductName: "Sabun", VariantName: "Bar", Quantity: 1, Price: 10000}
	require.NoError(t, conn.Create(&item).Error)
	return order
}

func TestRepositoryListOrdersPaginates(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	var seeded []models.Order
	for i := 0; i < 5; i++ {
		seeded = append(seeded, seedOrderAt(t, conn, enums.OrderStatusPending, base.Add(time.Duration(i)*time.Hour)))
	}

	first, err := repo.ListOrders(context.Background(), ListFilters{}, nil, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, seeded[4].ID, first[0].ID)
	assert.Equal(t, seeded[2].ID, first[2].ID)
	assert.Len(t, first[0].Items, 1)

	cursor := &pagination.Cursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}
	rest, err := repo.ListOrders(context.Background(), ListFilters{}, cursor, 10)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, seeded[2].ID, rest[0].ID)
	assert.Equal(t, seeded[0].ID, rest[2].ID)
}

func TestRepositoryListOrdersFiltersStatus(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()
	seedOrderAt(t, conn, enums.OrderStatusPending, now)
	shipped := seedOrderAt(t, conn, enums.OrderStatusShipped, now)

	status := enums.OrderStatusShipped
	rows, err := repo.ListOrders(context.Background(), ListFilters{Status: &status}, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, shipped.ID, rows[0].ID)
}

func TestRepositoryUpdateStatusIfIsGuarded(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	order := seedOrderAt(t, conn, enums.OrderStatusPending, time.Now())

	moved, err := repo.UpdateStatusIf(context.Background(), order.ID, enums.OrderStatusConfirmed, enums.OrderStatusShipped)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = repo.UpdateStatusIf(context.Background(), order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.True(t, moved)

	loaded, err := repo.FindOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, loaded.Status)
}

func TestRepositoryCountByStatus(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	now := time.Now()
	seedOrderAt(t, conn, enums.OrderStatusPending, now)
	seedOrderAt(t, conn, enums.OrderStatusPending, now)
	seedOrderAt(t, conn, enums.OrderStatusDone, now)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[enums.OrderStatusPending])
	assert.EqualValues(t, 1, counts[enums.OrderStatusDone])
	assert.Zero(t, counts[enums.OrderStatusShipped])
}

func TestRepositoryDeleteOrderOnlyCancelled(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	pending := seedOrderAt(t, conn, enums.OrderStatusPending, time.Now())

	deleted, err := repo.DeleteOrder(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = repo.FindOrder(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryFindPendingBefore(t *testing.T) {
	t.Parallel()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	cutoff := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	stale := seedOrderAt(t, conn, enums.OrderStatusPending, cutoff.Add(-time.Hour))
	seedOrderAt(t, conn, enums.OrderStatusPending, cutoff.Add(time.Hour))
	seedOrderAt(t, conn, enums.OrderStatusConfirmed, cutoff.Add(-2*time.Hour))

	ids, err := repo.FindPendingBefore(context.Background(), cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stale.ID}, ids)
}
