package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sabunku/storefront-backend/internal/checkout/reservation"
	"github.com/sabunku/storefront-backend/pkg/db/models"
	"github.com/sabunku/storefront-backend/pkg/enums"
	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/outbox"
	"github.com/sabunku/storefront-backend/pkg/outbox/payloads"
	"github.com/sabunku/storefront-backend/pkg/pagination"
)

// expireBatchSize bounds how many stale orders one ExpireStale call cancels.
const expireBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockRestorer returns stock held by cancelled order items.
type StockRestorer interface {
	Restore(ctx context.Context, tx *gorm.DB, requests []reservation.Request) error
}

type stockRestorerFunc func(ctx context.Context, tx *gorm.DB, requests []reservation.Request) error

func (f stockRestorerFunc) Restore(ctx context.Context, tx *gorm.DB, requests []reservation.Request) error {
	return f(ctx, tx, requests)
}

// Service is the order lifecycle manager used by the admin surface and the
// cron worker.
type Service interface {
	UpdateStatus(ctx context.Context, input StatusInput) (*OrderDetail, error)
	Cancel(ctx context.Context, input CancelInput) error
	Delete(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)
	StatusCounts(ctx context.Context) (map[enums.OrderStatus]int64, error)
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Outbox     outbox.Emitter
	Stock      StockRestorer
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	stock  StockRestorer
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the lifecycle manager with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	stock := params.Stock
	if stock == nil {
		stock = stockRestorerFunc(reservation.Restore)
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:   params.Repository,
		tx:     params.Tx,
		outbox: params.Outbox,
		stock:  stock,
		logg:   params.Logger,
		now:    now,
	}, nil
}

func (s *service) UpdateStatus(ctx context.Context, input StatusInput) (*OrderDetail, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	target, err := enums.ParseOrderStatus(input.Status)
	if err != nil {
		return nil, ErrInvalidStatus(input.Status)
	}

	var detail OrderDetail
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status == target {
			detail = toDetail(*order)
			return nil
		}
		if target == enums.OrderStatusCancelled {
			if err := s.cancel(ctx, tx, order, input.Actor, ""); err != nil {
				return err
			}
			detail = toDetail(*order)
			return nil
		}
		if !order.Status.CanTransitionTo(target) {
			return ErrInvalidTransition(order.Status, target)
		}

		from := order.Status
		moved, err := repo.UpdateStatusIf(ctx, order.ID, from, target)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return ErrInvalidTransition(from, target)
		}
		order.Status = target
		order.UpdatedAt = s.now().UTC()

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			OccurredAt:    s.now().UTC(),
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				From:    from,
				To:      target,
			},
		}); err != nil {
			return err
		}
		detail = toDetail(*order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.info(ctx, input.OrderID, "order status updated", map[string]any{"status": detail.Status})
	return &detail, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.load(ctx, s.repo.WithTx(tx), input.OrderID)
		if err != nil {
			return err
		}
		return s.cancel(ctx, tx, order, input.Actor, input.Reason)
	})
	if err != nil {
		return err
	}
	s.info(ctx, input.OrderID, "order cancelled", map[string]any{"reason": input.Reason})
	return nil
}

// cancel restores stock for every item that still references a variant and
// marks the order cancelled. It must run inside tx.
func (s *service) cancel(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef, reason string) error {
	switch order.Status {
	case enums.OrderStatusCancelled:
		return ErrAlreadyCancelled()
	case enums.OrderStatusDone:
		return ErrAlreadyDone()
	}
	if !order.Status.Cancellable() {
		return ErrInvalidTransition(order.Status, enums.OrderStatusCancelled)
	}

	from := order.Status
	moved, err := s.repo.WithTx(tx).UpdateStatusIf(ctx, order.ID, from, enums.OrderStatusCancelled)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !moved {
		return ErrInvalidTransition(from, enums.OrderStatusCancelled)
	}

	requests := make([]reservation.Request, 0, len(order.Items))
	restored := make([]payloads.RestoredStock, 0, len(order.Items))
	for _, item := range order.Items {
		if item.VariantID == nil || item.Quantity <= 0 {
			continue
		}
		requests = append(requests, reservation.Request{VariantID: *item.VariantID, Quantity: item.Quantity})
		restored = append(restored, payloads.RestoredStock{VariantID: *item.VariantID, Quantity: item.Quantity})
	}
	if len(requests) > 0 {
		if err := s.stock.Restore(ctx, tx, requests); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
	}

	now := s.now().UTC()
	order.Status = enums.OrderStatusCancelled
	order.UpdatedAt = now
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data: payloads.OrderCancelledEvent{
			OrderID:        order.ID,
			PreviousStatus: from,
			Restored:       restored,
			Reason:         reason,
			CancelledAt:    now,
		},
	})
}

func (s *service) Delete(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusCancelled {
			return ErrNotCancelled()
		}
		if err := repo.DeleteItems(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order items")
		}
		deleted, err := repo.DeleteOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		if !deleted {
			return ErrNotCancelled()
		}

		now := s.now().UTC()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			OccurredAt:    now,
			Data: payloads.OrderDeletedEvent{
				OrderID:   order.ID,
				DeletedAt: now,
			},
		})
	})
	if err != nil {
		return err
	}
	s.info(ctx, orderID, "order deleted", nil)
	return nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, ErrInvalidStatus(string(*filters.Status))
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListOrders(ctx, filters, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})

	out := &OrderList{Orders: make([]OrderDetail, 0, len(page)), NextCursor: next}
	for _, order := range page {
		out.Orders = append(out.Orders, toDetail(order))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	detail := toDetail(*order)
	return &detail, nil
}

func (s *service) StatusCounts(ctx context.Context) (map[enums.OrderStatus]int64, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
	}
	out := make(map[enums.OrderStatus]int64, len(enums.OrderStatuses()))
	for _, status := range enums.OrderStatuses() {
		out[status] = counts[status]
	}
	return out, nil
}

// ExpireStale cancels pending orders created before cutoff. Orders that
// change state concurrently are skipped; other failures are collected and
// the remaining orders are still processed.
func (s *service) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.repo.FindPendingBefore(ctx, cutoff, expireBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale orders")
	}

	var (
		expired int
		errs    error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, multierr.Append(errs, err)
		}
		err := s.Cancel(ctx, CancelInput{OrderID: id, Reason: "expired"})
		switch {
		case err == nil:
			expired++
		case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			continue
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", id, err))
		}
	}
	return expired, errs
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound(orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) info(ctx context.Context, orderID uuid.UUID, msg string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	if len(fields) > 0 {
		logCtx = s.logg.WithFields(logCtx, fields)
	}
	s.logg.Info(logCtx, msg)
}
