package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codebrew/pos-backend/internal/inventory"
	"github.com/codebrew/pos-backend/pkg/config"
	"github.com/codebrew/pos-backend/pkg/db"
	"github.com/codebrew/pos-backend/pkg/db/models"
	"github.com/codebrew/pos-backend/pkg/enums"
	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
	"github.com/codebrew/pos-backend/pkg/logger"
	"github.com/codebrew/pos-backend/pkg/metrics"
	"github.com/codebrew/pos-backend/pkg/outbox"
	"github.com/codebrew/pos-backend/pkg/outbox/payloads"
	"github.com/codebrew/pos-backend/pkg/tracing"
)

const (
	opCreateOrder = "create_order"
	opVoidOrder   = "void_order"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service captures sales and reverses them.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	VoidOrder(ctx context.Context, input VoidOrderInput) (*VoidOrderResult, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)
}

// ServiceParams groups the collaborators of NewService.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Ledger  *inventory.Ledger
	Audit   *inventory.AuditWriter
	Outbox  inventory.Emitter
	Config  config.OrdersConfig
	Metrics *metrics.EngineMetrics
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	ledger  *inventory.Ledger
	audit   *inventory.AuditWriter
	outbox  inventory.Emitter
	cfg     config.OrdersConfig
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		params.Ledger = inventory.NewLedger()
	}
	if params.Audit == nil {
		params.Audit = inventory.NewAuditWriter()
	}
	if params.Clock == nil {
		params.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		ledger:  params.Ledger,
		audit:   params.Audit,
		outbox:  params.Outbox,
		cfg:     params.Config,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     params.Clock,
	}, nil
}

// productMoves groups the lines of one product so the ledger row is touched
// once per operation.
type productMoves struct {
	productID uuid.UUID
	lines     []int
	total     int
}

// groupByProduct returns one entry per product in ascending product id order.
// Every transaction takes row locks in this order, so two orders touching the
// same products cannot deadlock each other.
func groupByProduct(productIDs []uuid.UUID, quantities []int) []productMoves {
	index := map[uuid.UUID]int{}
	var groups []productMoves
	for i, productID := range productIDs {
		pos, ok := index[productID]
		if !ok {
			pos = len(groups)
			index[productID] = pos
			groups = append(groups, productMoves{productID: productID})
		}
		groups[pos].lines = append(groups[pos].lines, i)
		groups[pos].total += quantities[i]
	}
	sort.Slice(groups, func(a, b int) bool {
		return groups[a].productID.String() < groups[b].productID.String()
	})
	return groups
}

// lineSnapshots spreads the final balance of a grouped movement back over its
// lines so each audit row carries the quantity right after that line.
func lineSnapshots(final int, deltas []int) []int {
	out := make([]int, len(deltas))
	running := final
	for i := len(deltas) - 1; i >= 0; i-- {
		out[i] = running
		running -= deltas[i]
	}
	return out
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (result *CreateOrderResult, err error) {
	started := time.Now()
	ctx, span := tracing.Start(ctx, "orders", opCreateOrder)
	defer func() {
		tracing.End(span, err)
		s.metrics.Observe(opCreateOrder, started, err)
	}()

	if err := validateShape(input); err != nil {
		return nil, err
	}
	if err := verifyTotals(input, s.cfg); err != nil {
		return nil, err
	}

	branchID := *input.BranchID
	actor := inventory.BuildActor(input.ActorUserID, input.BranchID, input.ActorRole)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order := &models.Order{
			BranchID:       branchID,
			UserID:         input.ActorUserID,
			SubtotalAmount: input.Subtotal,
			TaxAmount:      input.Tax,
			DiscountAmount: input.Discount,
			TotalAmount:    input.Total,
			Status:         enums.OrderStatusCompleted,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return db.ClassifyError(err, "create order")
		}

		items := make([]models.OrderItem, len(input.Items))
		productIDs := make([]uuid.UUID, len(input.Items))
		quantities := make([]int, len(input.Items))
		for i, line := range input.Items {
			items[i] = models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			}
			productIDs[i] = line.ProductID
			quantities[i] = line.Quantity
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return db.ClassifyError(err, "create order items")
		}

		var lines []payloads.StockLine
		for _, group := range groupByProduct(productIDs, quantities) {
			balance, err := s.ledger.AdjustQuantity(ctx, tx, inventory.Movement{
				ProductID: group.productID,
				BranchID:  branchID,
				Delta:     -group.total,
				Step:      string(enums.ReasonSale),
			})
			if err != nil {
				return err
			}

			deltas := make([]int, len(group.lines))
			for i, line := range group.lines {
				deltas[i] = -quantities[line]
			}
			snapshots := lineSnapshots(balance.Quantity, deltas)
			for i := range group.lines {
				if _, err := s.audit.Append(ctx, tx, inventory.AuditEntry{
					ProductID:   group.productID,
					BranchID:    branchID,
					UserID:      input.ActorUserID,
					Delta:       deltas[i],
					NewQuantity: snapshots[i],
					Reason:      enums.SystemReason(enums.ReasonSale),
					OrderID:     &order.ID,
				}); err != nil {
					return err
				}
			}
			lines = append(lines, payloads.StockLine{
				ProductID:   group.productID,
				Quantity:    group.total,
				NewQuantity: balance.Quantity,
			})
			if err := inventory.EmitLowStockIfCrossed(ctx, tx, s.outbox, actor, group.productID, branchID, -group.total, balance); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue low stock event")
			}
		}

		payments := make([]models.Payment, 0, len(input.Payments))
		for _, p := range input.Payments {
			payments = append(payments, models.Payment{
				OrderID:         order.ID,
				PaymentMethodID: p.PaymentMethodID,
				AmountPaid:      p.Amount,
			})
		}
		if err := repo.CreatePayments(ctx, payments); err != nil {
			return db.ClassifyError(err, "create payments")
		}

		discounts := make([]models.OrderDiscount, 0, len(input.DiscountIDs))
		for _, id := range input.DiscountIDs {
			discounts = append(discounts, models.OrderDiscount{OrderID: order.ID, DiscountID: id})
		}
		if err := repo.CreateDiscounts(ctx, discounts); err != nil {
			return db.ClassifyError(err, "create order discounts")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				BranchID:    branchID,
				UserID:      input.ActorUserID,
				TotalAmount: order.TotalAmount.StringFixed(2),
				Lines:       lines,
				CreatedAt:   order.CreatedAt,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
		}

		result = &CreateOrderResult{
			OrderID:   order.ID,
			CreatedAt: order.CreatedAt,
			Total:     order.TotalAmount,
		}
		return nil
	})
	if err != nil {
		return nil, db.ClassifyError(err, "create order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":  result.OrderID.String(),
		"branch_id": branchID.String(),
		"user_id":   input.ActorUserID.String(),
		"items":     len(input.Items),
		"total":     result.Total.StringFixed(2),
	})
	s.logg.Info(logCtx, "order created")
	return result, nil
}

// VoidOrder reverses a completed order. Stock goes back to the branch the
// order was sold from.
func (s *service) VoidOrder(ctx context.Context, input VoidOrderInput) (result *VoidOrderResult, err error) {
	started := time.Now()
	ctx, span := tracing.Start(ctx, "orders", opVoidOrder, tracing.UUID("pos.order_id", input.OrderID))
	defer func() {
		tracing.End(span, err)
		s.metrics.Observe(opVoidOrder, started, err)
	}()

	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	actor := inventory.BuildActor(input.ActorUserID, input.ActorBranchID, input.ActorRole)
	voidedAt := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		updated, err := repo.MarkVoided(ctx, input.OrderID, input.ActorUserID, voidedAt)
		if err != nil {
			return db.ClassifyError(err, "void order")
		}
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return db.ClassifyError(err, "load order")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already voided").
				WithDetails(map[string]any{"order_id": order.ID.String(), "status": order.Status})
		}

		items, err := repo.FindItems(ctx, order.ID)
		if err != nil {
			return db.ClassifyError(err, "load order items")
		}
		productIDs := make([]uuid.UUID, len(items))
		quantities := make([]int, len(items))
		for i, item := range items {
			productIDs[i] = item.ProductID
			quantities[i] = item.Quantity
		}

		note := fmt.Sprintf("Reversal for order %s", order.ID)
		var lines []payloads.StockLine
		for _, group := range groupByProduct(productIDs, quantities) {
			balance, err := s.ledger.AdjustQuantity(ctx, tx, inventory.Movement{
				ProductID: group.productID,
				BranchID:  order.BranchID,
				Delta:     group.total,
				Step:      string(enums.ReasonVoid),
			})
			if err != nil {
				return err
			}
			deltas := make([]int, len(group.lines))
			for i, line := range group.lines {
				deltas[i] = quantities[line]
			}
			snapshots := lineSnapshots(balance.Quantity, deltas)
			for i := range group.lines {
				if _, err := s.audit.Append(ctx, tx, inventory.AuditEntry{
					ProductID:   group.productID,
					BranchID:    order.BranchID,
					UserID:      input.ActorUserID,
					Delta:       deltas[i],
					NewQuantity: snapshots[i],
					Reason:      enums.SystemReason(enums.ReasonVoid),
					Note:        &note,
					OrderID:     &order.ID,
				}); err != nil {
					return err
				}
			}
			lines = append(lines, payloads.StockLine{
				ProductID:   group.productID,
				Quantity:    group.total,
				NewQuantity: balance.Quantity,
			})
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderVoided,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderVoidedEvent{
				OrderID:  order.ID,
				BranchID: order.BranchID,
				VoidedBy: input.ActorUserID,
				VoidedAt: voidedAt,
				Lines:    lines,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue void event")
		}

		result = &VoidOrderResult{OrderID: order.ID, BranchID: order.BranchID, VoidedAt: voidedAt}
		return nil
	})
	if err != nil {
		return nil, db.ClassifyError(err, "void order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":  result.OrderID.String(),
		"branch_id": result.BranchID.String(),
		"user_id":   input.ActorUserID.String(),
	})
	s.logg.Info(logCtx, "order voided")
	return result, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, db.ClassifyError(err, "load order")
	}
	items, err := s.repo.FindItems(ctx, orderID)
	if err != nil {
		return nil, db.ClassifyError(err, "load order items")
	}
	payments, err := s.repo.FindPayments(ctx, orderID)
	if err != nil {
		return nil, db.ClassifyError(err, "load payments")
	}
	discountIDs, err := s.repo.FindDiscountIDs(ctx, orderID)
	if err != nil {
		return nil, db.ClassifyError(err, "load order discounts")
	}
	return toOrderDetail(*order, items, payments, discountIDs), nil
}
