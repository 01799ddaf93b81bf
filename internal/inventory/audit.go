package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codebrew/pos-backend/pkg/db"
	"github.com/codebrew/pos-backend/pkg/db/models"
	"github.com/codebrew/pos-backend/pkg/enums"
)

// AuditEntry documents one ledger movement.
type AuditEntry struct {
	ProductID       uuid.UUID
	BranchID        uuid.UUID
	UserID          uuid.UUID
	Delta           int
	NewQuantity     int
	Reason          enums.InventoryReason
	Note            *string
	OrderID         *uuid.UUID
	StockTransferID *uuid.UUID
}

// AuditWriter appends inventory_logs rows. Rows are never updated.
type AuditWriter struct{}

func NewAuditWriter() *AuditWriter {
	return &AuditWriter{}
}

// Append inserts entry on tx, which must be the transaction that applied the
// movement.
func (w *AuditWriter) Append(ctx context.Context, tx *gorm.DB, entry AuditEntry) (*models.InventoryLog, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	row := &models.InventoryLog{
		ProductID:       entry.ProductID,
		BranchID:        entry.BranchID,
		UserID:          entry.UserID,
		ChangeQuantity:  entry.Delta,
		NewQuantity:     entry.NewQuantity,
		Reason:          entry.Reason,
		Note:            entry.Note,
		OrderID:         entry.OrderID,
		StockTransferID: entry.StockTransferID,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		return nil, db.ClassifyError(err, "append inventory log")
	}
	return row, nil
}
