package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/codebrew/pos-backend/internal/inventory"
	"github.com/codebrew/pos-backend/internal/transfers"
	"github.com/codebrew/pos-backend/pkg/config"
	"github.com/codebrew/pos-backend/pkg/db"
	"github.com/codebrew/pos-backend/pkg/db/dbtest"
	"github.com/codebrew/pos-backend/pkg/db/models"
	"github.com/codebrew/pos-backend/pkg/enums"
	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
	"github.com/codebrew/pos-backend/pkg/logger"
	"github.com/codebrew/pos-backend/pkg/outbox"
)

var strictOrders = config.OrdersConfig{EnforceTotals: true, RequireFullPayment: true}

type fixture struct {
	db        *gorm.DB
	svc       Service
	inventory inventory.Service
	transfers transfers.Service
	fx        dbtest.Fixtures
	cashier   uuid.UUID
}

func newFixture(t *testing.T, cfg config.OrdersConfig) *fixture {
	t.Helper()
	return newFixtureOn(t, dbtest.Open(t), cfg)
}

func newFixtureOn(t *testing.T, conn *gorm.DB, cfg config.OrdersConfig) *fixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	txRunner := db.NewFromGorm(conn)

	invSvc, err := inventory.NewService(inventory.ServiceParams{
		Repo: inventory.NewRepository(conn), Tx: txRunner, Outbox: emitter, Logger: logg,
	})
	require.NoError(t, err)
	transferSvc, err := transfers.NewService(transfers.ServiceParams{Tx: txRunner, Outbox: emitter, Logger: logg})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Tx:     txRunner,
		Outbox: emitter,
		Config: cfg,
		Logger: logg,
	})
	require.NoError(t, err)

	return &fixture{
		db:        conn,
		svc:       svc,
		inventory: invSvc,
		transfers: transferSvc,
		fx:        dbtest.Seed(t, conn),
		cashier:   uuid.New(),
	}
}

func (f *fixture) stock(t *testing.T, productID, branchID uuid.UUID, qty int) {
	t.Helper()
	ctx := context.Background()
	_, err := f.inventory.OpenRecord(ctx, inventory.OpenRecordInput{ProductID: productID, BranchID: branchID, ActorUserID: f.cashier})
	require.NoError(t, err)
	if qty == 0 {
		return
	}
	_, err = f.inventory.AdjustInventory(ctx, inventory.AdjustInput{
		ProductID: productID, BranchID: branchID, Delta: qty, ActorUserID: f.cashier,
	})
	require.NoError(t, err)
}

func (f *fixture) quantity(t *testing.T, productID, branchID uuid.UUID) int {
	t.Helper()
	var record models.InventoryRecord
	require.NoError(t, f.db.Where("product_id = ? AND branch_id = ?", productID, branchID).First(&record).Error)
	return record.Quantity
}

func (f *fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (f *fixture) balanced(t *testing.T, productID, branchID uuid.UUID) {
	t.Helper()
	rec, err := f.inventory.Reconcile(context.Background(), productID, branchID)
	require.NoError(t, err)
	assert.True(t, rec.Balanced, "ledger drift: %+v", rec)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (f *fixture) sale(branchID uuid.UUID, items []ItemInput, discount, tax string) CreateOrderInput {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	total := subtotal.Sub(dec(discount)).Add(dec(tax))
	return CreateOrderInput{
		BranchID:    &branchID,
		ActorUserID: f.cashier,
		ActorRole:   enums.RoleCashier,
		Items:       items,
		Payments:    []PaymentInput{{PaymentMethodID: f.fx.PaymentMethod, Amount: total}},
		Subtotal:    subtotal,
		Tax:         dec(tax),
		Discount:    dec(discount),
		Total:       total,
	}
}

func TestCreateOrderPersistsAggregateAndDecrementsStock(t *testing.T) {
	f := newFixture(t, strictOrders)
	f.stock(t, f.fx.Product, f.fx.BranchA, 10)
	f.stock(t, f.fx.SecondProduct, f.fx.BranchA, 4)

	input := f.sale(f.fx.BranchA, []ItemInput{
		{ProductID: f.fx.Product, Quantity: 2, UnitPrice: dec("12.50")},
		{ProductID: f.fx.SecondProduct, Quantity: 1, UnitPrice: dec("8.00")},
		{ProductID: f.fx.Product, Quantity: 1, UnitPrice: dec("12.50")},
	}, "5.00", "3.64")
	input.DiscountIDs = []uuid.UUID{f.fx.Discount}
	input.Payments = []PaymentInput{
		{PaymentMethodID: f.fx.PaymentMethod, Amount: dec("40.00")},
		{PaymentMethodID: f.fx.PaymentMethod, Amount: dec("10.00")},
	}

	res, err := f.svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, res.Total.Equal(dec("44.14")), "total %s", res.Total)
	assert.False(t, res.CreatedAt.IsZero())

	assert.Equal(t, 7, f.quantity(t, f.fx.Product, f.fx.BranchA))
	assert.Equal(t, 3, f.quantity(t, f.fx.SecondProduct, f.fx.BranchA))

	var logs []models.InventoryLog
	require.NoError(t, f.db.Where("order_id = ? AND product_id = ?", res.OrderID, f.fx.Product).Order("seq ASC").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, -2, logs[0].ChangeQuantity)
	assert.Equal(t, 8, logs[0].NewQuantity)
	assert.Equal(t, -1, logs[1].ChangeQuantity)
	assert.Equal(t, 7, logs[1].NewQuantity)
	assert.Equal(t, enums.ReasonSale, logs[0].Reason.Kind)

	detail, err := f.svc.GetOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, detail.Status)
	require.Len(t, detail.Items, 3)
	assert.Len(t, detail.Payments, 2)
	assert.Equal(t, []uuid.UUID{f.fx.Discount}, detail.DiscountIDs)
	perProduct := map[uuid.UUID]int{}
	for i, item := range detail.Items {
		perProduct[item.ProductID] += item.Quantity
		if i > 0 {
			prev := detail.Items[i-1]
			assert.LessOrEqual(t, prev.ProductID.String(), item.ProductID.String(), "items sorted by product")
			if prev.ProductID == item.ProductID {
				assert.Less(t, prev.ID.String(), item.ID.String(), "ties broken by item id")
			}
		}
	}
	assert.Equal(t, map[uuid.UUID]int{f.fx.Product: 3, f.fx.SecondProduct: 1}, perProduct)
	assert.True(t, detail.Subtotal.Equal(dec("45.50")))

	assert.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderCreated))
	f.balanced(t, f.fx.Product, f.fx.BranchA)
	f.balanced(t, f.fx.SecondProduct, f.fx.BranchA)
}

func TestCreateOrderFailingLineRollsBackEverything(t *testing.T) {
	f := newFixture(t, strictOrders)
	f.stock(t, f.fx.Product, f.fx.BranchA, 5)
	f.stock(t, f.fx.SecondProduct, f.fx.BranchA, 0)

	input := f.sale(f.fx.BranchA, []ItemInput{
		{ProductID: f.fx.Product, Quantity: 2, UnitPrice: dec("12.50")},
		{ProductID: f.fx.SecondProduct, Quantity: 1, UnitPrice: dec("8.00")},
	}, "0", "0")
	input.DiscountIDs = []uuid.UUID{f.fx.Discount}

	_, err := f.svc.CreateOrder(context.Background(), input)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "got %v", err)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	details := typed.Details().(map[string]any)
	assert.Equal(t, f.fx.SecondProduct.String(), details["product_id"])
	assert.Equal(t, f.fx.BranchA.String(), details["branch_id"])

	assert.Equal(t, 5, f.quantity(t, f.fx.Product, f.fx.BranchA))
	assert.EqualValues(t, 0, f.count(t, &models.Order{}, ""))
	assert.EqualValues(t, 0, f.count(t, &models.OrderItem{}, ""))
	assert.EqualValues(t, 0, f.count(t, &models.Payment{}, ""))
	assert.EqualValues(t, 0, f.count(t, &models.OrderDiscount{}, ""))
	assert.EqualValues(t, 0, f.count(t, &models.InventoryLog{}, "order_id IS NOT NULL"))
	assert.EqualValues(t, 0, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderCreated))
}

func TestCreateOrderUnknownInventoryIsNotFound(t *testing.T) {
	f := newFixture(t, strictOrders)

	_, err := f.svc.CreateOrder(context.Background(), f.sale(f.fx.BranchB, []ItemInput{
		{ProductID: f.fx.Product, Quantity: 1, UnitPrice: dec("12.50")},
	}, "0", "0"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
	assert.EqualValues(t, 0, f.count(t, &models.Order{}, ""))
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t, strictOrders)
	f.stock(t, f.fx.Product, f.fx.BranchA, 5)
	ctx := context.Background()
	items := []ItemInput{{ProductID: f.fx.Product, Quantity: 2, UnitPrice: dec("12.50")}}

	noBranch := f.sale(f.fx.BranchA, items, "0", "0")
	noBranch.BranchID = nil
	_, err := f.svc.CreateOrder(ctx, noBranch)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	wrongSubtotal := f.sale(f.fx.BranchA, items, "0", "0")
	wrongSubtotal.Subtotal = dec("20.00")
	wrongSubtotal.Total = dec("20.00")
	_, err = f.svc.CreateOrder(ctx, wrongSubtotal)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, "25.00", typed.Details().(map[string]any)["expected"])

	wrongTotal := f.sale(f.fx.BranchA, items, "1.00", "2.00")
	wrongTotal.Total = dec("25.00")
	_, err = f.svc.CreateOrder(ctx, wrongTotal)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	underpaid := f.sale(f.fx.BranchA, items, "0", "0")
	underpaid.Payments = []PaymentInput{{PaymentMethodID: f.fx.PaymentMethod, Amount: dec("10.00")}}
	_, err = f.svc.CreateOrder(ctx, underpaid)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	badQty := f.sale(f.fx.BranchA, []ItemInput{{ProductID: f.fx.Product, Quantity: 0, UnitPrice: dec("12.50")}}, "0", "0")
	_, err = f.svc.CreateOrder(ctx, badQty)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	fractional := f.sale(f.fx.BranchA, items, "0", "0.005")
	_, err = f.svc.CreateOrder(ctx, fractional)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	assert.Equal(t, 5, f.quantity(t, f.fx.Product, f.fx.BranchA))
	assert.EqualValues(t, 0, f.count(t, &models.Order{}, ""))
}

func TestCreateOrderTrustsTotalsWhenChecksDisabled(t *testing.T) {
	f := newFixture(t, config.OrdersConfig{})
	f.stock(t, f.fx.Product, f.fx.BranchA, 5)

	input := f.sale(f.fx.BranchA, []ItemInput{{ProductID: f.fx.Product, Quantity: 1, UnitPrice: dec("12.50")}}, "0", "0")
	input.Subtotal = dec("1.00")
	input.Total = dec("99.00")
	input.Payments = nil

	res, err := f.svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, res.Total.Equal(dec("99.00")))
	assert.Equal(t, 4, f.quantity(t, f.fx.Product, f.fx.BranchA))
}

func TestVoidOrderIsSingleShot(t *testing.T) {
	f := newFixture(t, strictOrders)
	f.stock(t, f.fx.Product, f.fx.BranchA, 6)
	ctx := context.Background()

	res, err := f.svc.CreateOrder(ctx, f.sale(f.fx.BranchA, []ItemInput{
		{ProductID: f.fx.Product, Quantity: 4, UnitPrice: dec("12.50")},
	}, "0", "0"))
	require.NoError(t, err)
	require.Equal(t, 2, f.quantity(t, f.fx.Product, f.fx.BranchA))

	admin := uuid.New()
	// the voiding actor's branch never redirects the reversal
	voided, err := f.svc.VoidOrder(ctx, VoidOrderInput{
		OrderID: res.OrderID, ActorUserID: admin, ActorRole: enums.RoleAdmin, ActorBranchID: &f.fx.BranchB,
	})
	require.NoError(t, err)
	assert.Equal(t, f.fx.BranchA, voided.BranchID)
	assert.Equal(t, 6, f.quantity(t, f.fx.Product, f.fx.BranchA))

	logsAfterFirst := f.count(t, &models.InventoryLog{}, "")
	_, err = f.svc.VoidOrder(ctx, VoidOrderInput{OrderID: res.OrderID, ActorUserID: admin, ActorRole: enums.RoleAdmin})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	assert.Equal(t, 6, f.quantity(t, f.fx.Product, f.fx.BranchA))
	assert.Equal(t, logsAfterFirst, f.count(t, &models.InventoryLog{}, ""))

	detail, err := f.svc.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusVoided, detail.Status)
	require.NotNil(t, detail.VoidedBy)
	assert.Equal(t, admin, *detail.VoidedBy)

	var reversal models.InventoryLog
	require.NoError(t, f.db.Where("order_id = ? AND reason = ?", res.OrderID, "void").First(&reversal).Error)
	require.NotNil(t, reversal.Note)
	assert.Equal(t, "Reversal for order "+res.OrderID.String(), *reversal.Note)
	assert.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderVoided))
	f.balanced(t, f.fx.Product, f.fx.BranchA)
}

func TestVoidOrderMissing(t *testing.T) {
	f := newFixture(t, strictOrders)

	_, err := f.svc.VoidOrder(context.Background(), VoidOrderInput{OrderID: uuid.New(), ActorUserID: f.cashier})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.GetOrder(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSaleVoidTransferScenario(t *testing.T) {
	f := newFixture(t, strictOrders)
	f.stock(t, f.fx.Product, f.fx.BranchA, 5)
	ctx := context.Background()
	logsFor := func(branchID uuid.UUID) []models.InventoryLog {
		var logs []models.InventoryLog
		require.NoError(t, f.db.Where("product_id = ? AND branch_id = ?", f.fx.Product, branchID).Order("seq ASC").Find(&logs).Error)
		return logs
	}

	sale, err := f.svc.CreateOrder(ctx, f.sale(f.fx.BranchA, []ItemInput{
		{ProductID: f.fx.Product, Quantity: 3, UnitPrice: dec("12.50")},
	}, "0", "0"))
	require.NoError(t, err)
	assert.Equal(t, 2, f.quantity(t, f.fx.Product, f.fx.BranchA))
	logs := logsFor(f.fx.BranchA)
	require.Len(t, logs, 2)
	assert.Equal(t, -3, logs[1].ChangeQuantity)
	assert.Equal(t, 2, logs[1].NewQuantity)

	_, err = f.svc.VoidOrder(ctx, VoidOrderInput{OrderID: sale.OrderID, ActorUserID: f.cashier})
	require.NoError(t, err)
	assert.Equal(t, 5, f.quantity(t, f.fx.Product, f.fx.BranchA))
	logs = logsFor(f.fx.BranchA)
	require.Len(t, logs, 3)
	assert.Equal(t, 3, logs[2].ChangeQuantity)
	assert.Equal(t, 5, logs[2].NewQuantity)

	transfer, err := f.transfers.TransferProducts(ctx, transfers.Input{
		ProductID: f.fx.Product, FromBranchID: f.fx.BranchA, ToBranchID: f.fx.BranchB, Quantity: 2, ActorUserID: f.cashier,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, transfer.DestinationQuantity)
	assert.Equal(t, 3, f.quantity(t, f.fx.Product, f.fx.BranchA))
	assert.Equal(t, 2, f.quantity(t, f.fx.Product, f.fx.BranchB))

	logs = logsFor(f.fx.BranchA)
	require.Len(t, logs, 4)
	assert.Equal(t, enums.ReasonTransferOut, logs[3].Reason.Kind)
	destLogs := logsFor(f.fx.BranchB)
	require.Len(t, destLogs, 1)
	assert.Equal(t, enums.ReasonTransferIn, destLogs[0].Reason.Kind)
	assert.EqualValues(t, 1, f.count(t, &models.StockTransfer{}, ""))

	f.balanced(t, f.fx.Product, f.fx.BranchA)
	f.balanced(t, f.fx.Product, f.fx.BranchB)
}

func TestGroupByProductOrdersByProductID(t *testing.T) {
	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-0000-0000-0000-000000000001")

	groups := groupByProduct([]uuid.UUID{high, low, high}, []int{2, 5, 1})
	require.Len(t, groups, 2)
	assert.Equal(t, low, groups[0].productID)
	assert.Equal(t, 5, groups[0].total)
	assert.Equal(t, high, groups[1].productID)
	assert.Equal(t, []int{0, 2}, groups[1].lines)
	assert.Equal(t, 3, groups[1].total)
}

func TestLineSnapshots(t *testing.T) {
	assert.Equal(t, []int{8, 7}, lineSnapshots(7, []int{-2, -1}))
	assert.Equal(t, []int{4, 6}, lineSnapshots(6, []int{2, 2}))
}

func TestVoidOrderUsesInjectedClock(t *testing.T) {
	f := newFixture(t, strictOrders)
	f.stock(t, f.fx.Product, f.fx.BranchA, 2)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(f.db),
		Tx:     db.NewFromGorm(f.db),
		Outbox: outbox.NewService(outbox.NewRepository(f.db), nil),
		Config: strictOrders,
		Logger: logger.New(logger.Options{Output: io.Discard}),
		Clock:  func() time.Time { return fixed },
	})
	require.NoError(t, err)

	res, err := svc.CreateOrder(context.Background(), f.sale(f.fx.BranchA, []ItemInput{
		{ProductID: f.fx.Product, Quantity: 1, UnitPrice: dec("12.50")},
	}, "0", "0"))
	require.NoError(t, err)
	voided, err := svc.VoidOrder(context.Background(), VoidOrderInput{OrderID: res.OrderID, ActorUserID: f.cashier})
	require.NoError(t, err)
	assert.True(t, voided.VoidedAt.Equal(fixed))
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixtureOn(t, dbtest.OpenFile(t), strictOrders)
	const (
		startQty  = 4
		registers = 10
	)
	f.stock(t, f.fx.Product, f.fx.BranchA, startQty)

	results := make([]error, registers)
	var g errgroup.Group
	for i := 0; i < registers; i++ {
		i := i
		g.Go(func() error {
			_, err := f.svc.CreateOrder(context.Background(), f.sale(f.fx.BranchA, []ItemInput{
				{ProductID: f.fx.Product, Quantity: 1, UnitPrice: dec("12.50")},
			}, "0", "0"))
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var sold, short int
	for _, err := range results {
		switch {
		case err == nil:
			sold++
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, startQty, sold)
	assert.Equal(t, registers-startQty, short)
	assert.Equal(t, 0, f.quantity(t, f.fx.Product, f.fx.BranchA))
	assert.EqualValues(t, startQty, f.count(t, &models.Order{}, ""))
	assert.EqualValues(t, startQty, f.count(t, &models.OrderItem{}, ""))
	assert.EqualValues(t, startQty, f.count(t, &models.Payment{}, ""))
	assert.EqualValues(t, startQty, f.count(t, &models.InventoryLog{}, "reason = ?", string(enums.ReasonSale)))
	f.balanced(t, f.fx.Product, f.fx.BranchA)
}
