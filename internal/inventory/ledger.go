package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codebrew/pos-backend/pkg/db"
	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
)

const (
	decrementSQL = `UPDATE inventory_records
SET quantity = quantity + ?, updated_at = CURRENT_TIMESTAMP
WHERE product_id = ? AND branch_id = ? AND quantity + ? >= 0
RETURNING quantity, low_stock_threshold`

	upsertSQL = `INSERT INTO inventory_records (id, product_id, branch_id, quantity, created_at, updated_at)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
ON CONFLICT (product_id, branch_id)
DO UPDATE SET quantity = inventory_records.quantity + excluded.quantity, updated_at = CURRENT_TIMESTAMP
RETURNING quantity, low_stock_threshold`
)

// Movement is one signed change to a (product, branch) balance.
type Movement struct {
	ProductID uuid.UUID
	BranchID  uuid.UUID
	Delta     int
	// CreateIfMissing opens the record when it does not exist yet. Only
	// positive deltas may use it.
	CreateIfMissing bool
	// Step names the caller's step in error details, e.g. "transfer_out".
	Step string
}

// Balance is the state of a record right after a movement.
type Balance struct {
	Quantity          int  `gorm:"column:quantity"`
	LowStockThreshold *int `gorm:"column:low_stock_threshold"`
}

// CrossedThreshold reports whether applying delta moved the balance from above
// the threshold to at or below it.
func (b Balance) CrossedThreshold(delta int) bool {
	if b.LowStockThreshold == nil || delta >= 0 {
		return false
	}
	previous := b.Quantity - delta
	return previous > *b.LowStockThreshold && b.Quantity <= *b.LowStockThreshold
}

// Ledger applies movements to inventory_records. Every call runs on the
// caller's transaction; the check and the write are one statement, so
// concurrent movements on the same row serialize on its row lock.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// AdjustQuantity applies m and returns the resulting balance.
func (l *Ledger) AdjustQuantity(ctx context.Context, tx *gorm.DB, m Movement) (Balance, error) {
	if tx == nil {
		return Balance{}, errors.New("transaction required")
	}
	if m.ProductID == uuid.Nil || m.BranchID == uuid.Nil {
		return Balance{}, pkgerrors.New(pkgerrors.CodeValidation, "product and branch are required")
	}
	if m.Delta == 0 {
		return Balance{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity change must be non-zero")
	}
	if m.CreateIfMissing && m.Delta < 0 {
		return Balance{}, pkgerrors.New(pkgerrors.CodeValidation, "only positive movements may open a record")
	}

	tx = tx.WithContext(ctx)
	if m.CreateIfMissing {
		return l.upsert(tx, m)
	}

	var balance Balance
	res := tx.Raw(decrementSQL, m.Delta, m.ProductID, m.BranchID, m.Delta).Scan(&balance)
	if res.Error != nil {
		return Balance{}, db.ClassifyError(res.Error, "apply inventory movement")
	}
	if res.RowsAffected == 0 {
		return Balance{}, l.explainMiss(tx, m)
	}
	return balance, nil
}

func (l *Ledger) upsert(tx *gorm.DB, m Movement) (Balance, error) {
	var balance Balance
	res := tx.Raw(upsertSQL, uuid.New(), m.ProductID, m.BranchID, m.Delta).Scan(&balance)
	if res.Error != nil {
		if db.IsForeignKeyViolation(res.Error) {
			return Balance{}, notFound(m)
		}
		return Balance{}, db.ClassifyError(res.Error, "open inventory record")
	}
	if res.RowsAffected == 0 {
		return Balance{}, pkgerrors.New(pkgerrors.CodeDependency, "inventory upsert returned no row")
	}
	return balance, nil
}

// explainMiss runs after the conditional update matched nothing, inside the
// same transaction, to tell a missing record from a short one.
func (l *Ledger) explainMiss(tx *gorm.DB, m Movement) error {
	var current struct {
		Quantity int `gorm:"column:quantity"`
	}
	res := tx.Raw(
		"SELECT quantity FROM inventory_records WHERE product_id = ? AND branch_id = ?",
		m.ProductID, m.BranchID,
	).Scan(&current)
	if res.Error != nil {
		return db.ClassifyError(res.Error, "load inventory record")
	}
	if res.RowsAffected == 0 {
		return notFound(m)
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"product_id": m.ProductID.String(),
			"branch_id":  m.BranchID.String(),
			"requested":  -m.Delta,
			"available":  current.Quantity,
			"step":       m.Step,
		})
}

func notFound(m Movement) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found").
		WithDetails(map[string]any{
			"product_id": m.ProductID.String(),
			"branch_id":  m.BranchID.String(),
			"step":       m.Step,
		})
}
