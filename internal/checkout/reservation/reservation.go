// Package reservation applies guarded stock decrements inside a caller's
// transaction.
package reservation

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sabunku/storefront-backend/pkg/checkout"
	"github.com/sabunku/storefront-backend/pkg/db/models"
)

// Request asks for Quantity units of one variant. Several requests for the
// same variant are combined before the write.
type Request struct {
	VariantID uuid.UUID
	Quantity  int
}

// Reserver is the engine-facing handle for Decrement.
type Reserver struct{}

func (Reserver) Decrement(ctx context.Context, tx *gorm.DB, requests []Request) error {
	return Decrement(ctx, tx, requests)
}

// Decrement subtracts stock for every requested variant with one guarded
// UPDATE per variant. A write that matches no row means the stock was
// consumed concurrently; the current remainder is re-read and reported as
// insufficient stock. Callers roll back the transaction on error.
func Decrement(ctx context.Context, tx *gorm.DB, requests []Request) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	totals, order, err := combine(requests)
	if err != nil {
		return err
	}

	for _, id := range order {
		qty := totals[id]
		res := tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("id = ? AND stock >= ?", id, qty).
			UpdateColumn("stock", gorm.Expr("stock - ?", qty))
		if res.Error != nil {
			return checkout.ErrStockDecrement(res.Error)
		}
		if res.RowsAffected == 0 {
			return shortage(ctx, tx, id)
		}
	}
	return nil
}

// Restore adds quantity back to each variant. Missing variants are skipped
// since a deleted variant has no stock to return.
func Restore(ctx context.Context, tx *gorm.DB, requests []Request) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	totals, order, err := combine(requests)
	if err != nil {
		return err
	}
	for _, id := range order {
		res := tx.WithContext(ctx).
			Model(&models.ProductVariant{}).
			Where("id = ?", id).
			UpdateColumn("stock", gorm.Expr("stock + ?", totals[id]))
		if res.Error != nil {
			return res.Error
		}
	}
	return nil
}

// combine sums quantities per variant and returns a stable id order so
// concurrent transactions lock rows in the same sequence.
func combine(requests []Request) (map[uuid.UUID]int, []uuid.UUID, error) {
	totals := make(map[uuid.UUID]int, len(requests))
	order := make([]uuid.UUID, 0, len(requests))
	for _, req := range requests {
		if req.Quantity <= 0 {
			return nil, nil, checkout.ErrInvalidQuantity(req.VariantID.String())
		}
		if _, seen := totals[req.VariantID]; !seen {
			order = append(order, req.VariantID)
		}
		totals[req.VariantID] += req.Quantity
	}
	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })
	return totals, order, nil
}

type stockRow struct {
	Stock       int
	VariantName string
	ProductName string
}

func shortage(ctx context.Context, tx *gorm.DB, variantID uuid.UUID) error {
	var rows []stockRow
	err := tx.WithContext(ctx).
		Table("product_variants AS v").
		Select("v.stock AS stock, v.name AS variant_name, p.name AS product_name").
		Joins("JOIN products p ON p.id = v.product_id").
		Where("v.id = ?", variantID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return checkout.ErrVariantFetch(err)
	}
	if len(rows) == 0 {
		return checkout.ErrVariantNotFound(variantID.String())
	}
	return checkout.ErrInsufficientStock(rows[0].ProductName, rows[0].VariantName, rows[0].Stock)
}
