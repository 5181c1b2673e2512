package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sabunku/storefront-backend/internal/checkout/reservation"
	pkgcheckout "github.com/sabunku/storefront-backend/pkg/checkout"
	"github.com/sabunku/storefront-backend/pkg/db/models"
	"github.com/sabunku/storefront-backend/pkg/enums"
	pkgerrors "github.com/sabunku/storefront-backend/pkg/errors"
	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/metrics"
	"github.com/sabunku/storefront-backend/pkg/outbox"
	"github.com/sabunku/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReserver interface {
	Decrement(ctx context.Context, tx *gorm.DB, requests []reservation.Request) error
}

// Service places orders. Every entry point (web, WhatsApp, legacy) goes
// through Place.
type Service interface {
	Place(ctx context.Context, channel enums.CheckoutChannel, intake pkgcheckout.Intake) (*Result, error)
	DecrementStock(ctx context.Context, lines []pkgcheckout.Line) error
}

type ServiceParams struct {
	Tx         txRunner
	Repository Repository
	Reserver   stockReserver
	Outbox     outbox.Emitter
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	tx       txRunner
	repo     Repository
	reserver stockReserver
	outbox   outbox.Emitter
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	reserver := params.Reserver
	if reserver == nil {
		reserver = reservation.Reserver{}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:       params.Tx,
		repo:     params.Repository,
		reserver: reserver,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

type resolvedLine struct {
	variant     models.ProductVariant
	productName string
	quantity    int
}

func (s *service) Place(ctx context.Context, channel enums.CheckoutChannel, intake pkgcheckout.Intake) (*Result, error) {
	if !channel.IsValid() {
		channel = enums.CheckoutChannelWeb
	}
	start := s.now()
	result, err := s.place(ctx, channel, intake)
	s.observe(ctx, channel, start, result, err)
	return result, err
}

func (s *service) place(ctx context.Context, channel enums.CheckoutChannel, intake pkgcheckout.Intake) (*Result, error) {
	if len(intake.Lines) == 0 {
		return nil, pkgcheckout.ErrEmptyCart()
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		variantIDs, err := distinctVariantIDs(intake.Lines)
		if err != nil {
			return err
		}
		variants, err := repo.FindVariants(ctx, variantIDs)
		if err != nil {
			return pkgcheckout.ErrVariantFetch(err)
		}
		variantMap := make(map[uuid.UUID]models.ProductVariant, len(variants))
		productIDs := make([]uuid.UUID, 0, len(variants))
		seenProducts := map[uuid.UUID]struct{}{}
		for _, v := range variants {
			variantMap[v.ID] = v
			if _, ok := seenProducts[v.ProductID]; !ok {
				seenProducts[v.ProductID] = struct{}{}
				productIDs = append(productIDs, v.ProductID)
			}
		}

		productNames, err := repo.FindProductNames(ctx, productIDs)
		if err != nil {
			return pkgcheckout.ErrProductFetch(err)
		}

		lines, total, err := resolveLines(intake.Lines, variantMap, productNames)
		if err != nil {
			return err
		}

		order := &models.Order{
			CustomerName:    intake.CustomerName,
			CustomerPhone:   intake.CustomerPhone,
			CustomerAddress: intake.CustomerAddress,
			TotalPrice:      total,
			Status:          enums.OrderStatusPending,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgcheckout.ErrOrderCreate(err)
		}

		items := make([]models.OrderItem, 0, len(lines))
		requests := make([]reservation.Request, 0, len(lines))
		for _, line := range lines {
			productID := line.variant.ProductID
			variantID := line.variant.ID
			items = append(items, models.OrderItem{
				OrderID:     order.ID,
				ProductID:   &productID,
				VariantID:   &variantID,
				ProductName: line.productName,
				VariantName: line.variant.Name,
				Quantity:    line.quantity,
				Price:       line.variant.Price,
			})
			requests = append(requests, reservation.Request{VariantID: variantID, Quantity: line.quantity})
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgcheckout.ErrOrderItemsPersist(err)
		}

		if err := s.reserver.Decrement(ctx, tx, requests); err != nil {
			return err
		}

		if err := s.emitOrderCreated(ctx, tx, channel, order, items); err != nil {
			return err
		}

		result = buildResult(order, items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DecrementStock backs the legacy stock endpoint: all lines succeed or none do.
func (s *service) DecrementStock(ctx context.Context, lines []pkgcheckout.Line) error {
	if len(lines) == 0 {
		return pkgcheckout.ErrEmptyCart()
	}
	requests := make([]reservation.Request, 0, len(lines))
	for _, line := range lines {
		id, err := uuid.Parse(line.VariantID)
		if err != nil {
			return pkgcheckout.ErrVariantNotFound(line.VariantID)
		}
		if !pkgcheckout.ValidQuantity(line.Quantity) {
			return pkgcheckout.ErrInvalidQuantity(line.VariantID)
		}
		requests = append(requests, reservation.Request{VariantID: id, Quantity: line.Quantity})
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.reserver.Decrement(ctx, tx, requests)
	})
}

func distinctVariantIDs(lines []pkgcheckout.Line) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		id, err := uuid.Parse(line.VariantID)
		if err != nil {
			return nil, pkgcheckout.ErrVariantNotFound(line.VariantID)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolveLines checks every line in request order against store data and
// prices it. Repeated variants are checked against their combined quantity.
func resolveLines(lines []pkgcheckout.Line, variants map[uuid.UUID]models.ProductVariant, productNames map[uuid.UUID]string) ([]resolvedLine, int64, error) {
	resolved := make([]resolvedLine, 0, len(lines))
	requested := make(map[uuid.UUID]int, len(lines))
	var total int64

	for _, line := range lines {
		id, err := uuid.Parse(line.VariantID)
		if err != nil {
			return nil, 0, pkgcheckout.ErrVariantNotFound(line.VariantID)
		}
		variant, ok := variants[id]
		if !ok {
			return nil, 0, pkgcheckout.ErrVariantNotFound(line.VariantID)
		}
		productName := productNames[variant.ProductID]
		if !pkgcheckout.ValidQuantity(line.Quantity) {
			return nil, 0, pkgcheckout.ErrInvalidQuantity(productName)
		}
		if variant.Stock < requested[id]+line.Quantity {
			return nil, 0, pkgcheckout.ErrInsufficientStock(productName, variant.Name, variant.Stock)
		}
		requested[id] += line.Quantity
		total += variant.Price * int64(line.Quantity)
		resolved = append(resolved, resolvedLine{
			variant:     variant,
			productName: productName,
			quantity:    line.Quantity,
		})
	}
	return resolved, total, nil
}

func buildResult(order *models.Order, items []models.OrderItem) *Result {
	out := &Result{
		OrderID:      order.ID,
		TotalPrice:   order.TotalPrice,
		CustomerName: order.CustomerName,
		CreatedAt:    order.CreatedAt,
		Items:        make([]ResultItem, 0, len(items)),
	}
	for _, item := range items {
		out.Items = append(out.Items, ResultItem{
			Name:        item.ProductName,
			VariantName: item.VariantName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return out
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, channel enums.CheckoutChannel, order *models.Order, items []models.OrderItem) error {
	lines := make([]payloads.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, payloads.OrderLine{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderCreatedEvent{
			OrderID:      order.ID,
			Channel:      channel,
			CustomerName: order.CustomerName,
			TotalPrice:   order.TotalPrice,
			Items:        lines,
		},
	})
}

func (s *service) observe(ctx context.Context, channel enums.CheckoutChannel, start time.Time, result *Result, err error) {
	elapsed := s.now().Sub(start)
	if err == nil {
		s.metrics.Observe(channel.String(), "success", elapsed)
		units := 0
		for _, item := range result.Items {
			units += item.Quantity
		}
		s.metrics.AddUnits(channel.String(), units)
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(ctx, result.OrderID.String())
			logCtx = s.logg.WithFields(logCtx, map[string]any{"channel": channel, "total_price": result.TotalPrice})
			s.logg.Info(logCtx, "checkout completed")
		}
		return
	}

	outcome := string(pkgerrors.ReasonOf(err))
	if outcome == "" {
		outcome = "error"
	}
	s.metrics.Observe(channel.String(), outcome, elapsed)
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"channel": channel, "reason": outcome})
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeDependency && typed.Code() != pkgerrors.CodeInternal {
		s.logg.Warn(logCtx, "checkout rejected")
		return
	}
	s.logg.Error(logCtx, "checkout failed", err)
}
