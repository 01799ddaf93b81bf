package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/codebrew/pos-backend/pkg/db/models"
	"github.com/codebrew/pos-backend/pkg/enums"
)

// AdjustInput is a manual stock correction.
type AdjustInput struct {
	ProductID     uuid.UUID
	BranchID      uuid.UUID
	Delta         int
	Reason        string
	Note          *string
	ActorUserID   uuid.UUID
	ActorRole     enums.Role
	ActorBranchID *uuid.UUID
}

// AdjustResult is returned by AdjustInventory.
type AdjustResult struct {
	ProductID   uuid.UUID `json:"product_id"`
	BranchID    uuid.UUID `json:"branch_id"`
	NewQuantity int       `json:"new_quantity"`
	LogID       uuid.UUID `json:"log_id"`
}

// OpenRecordInput opens a (product, branch) record at zero.
type OpenRecordInput struct {
	ProductID         uuid.UUID
	BranchID          uuid.UUID
	LowStockThreshold *int
	ActorUserID       uuid.UUID
}

// BranchInventoryItem is one row of a branch stock listing.
type BranchInventoryItem struct {
	ProductID         uuid.UUID `json:"product_id" gorm:"column:product_id"`
	BranchID          uuid.UUID `json:"branch_id" gorm:"column:branch_id"`
	ProductName       string    `json:"product_name" gorm:"column:product_name"`
	SKU               string    `json:"sku" gorm:"column:sku"`
	Quantity          int       `json:"quantity" gorm:"column:quantity"`
	LowStockThreshold *int      `json:"low_stock_threshold,omitempty" gorm:"column:low_stock_threshold"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// LogFilter narrows ListLogs.
type LogFilter struct {
	ProductID *uuid.UUID
	BranchID  *uuid.UUID
}

// LogQuery is a page request against the audit trail.
type LogQuery struct {
	Filter LogFilter
	Cursor string
	Limit  int
}

// LogEntry is the API view of an audit row.
type LogEntry struct {
	ID              uuid.UUID  `json:"id"`
	Seq             int64      `json:"seq"`
	ProductID       uuid.UUID  `json:"product_id"`
	BranchID        uuid.UUID  `json:"branch_id"`
	UserID          uuid.UUID  `json:"user_id"`
	ChangeQuantity  int        `json:"change_quantity"`
	NewQuantity     int        `json:"new_quantity"`
	Reason          string     `json:"reason"`
	Note            *string    `json:"note,omitempty"`
	OrderID         *uuid.UUID `json:"order_id,omitempty"`
	StockTransferID *uuid.UUID `json:"stock_transfer_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// LogPage is one page of audit entries, newest first.
type LogPage struct {
	Entries    []LogEntry `json:"entries"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// Reconciliation compares a record with its audit trail.
type Reconciliation struct {
	ProductID    uuid.UUID `json:"product_id"`
	BranchID     uuid.UUID `json:"branch_id"`
	Quantity     int       `json:"quantity"`
	LogSum       int64     `json:"log_sum"`
	LastSnapshot *int      `json:"last_snapshot,omitempty"`
	Entries      int64     `json:"entries"`
	Balanced     bool      `json:"balanced"`
}

func toLogEntry(row models.InventoryLog) LogEntry {
	return LogEntry{
		ID:              row.ID,
		Seq:             row.Seq,
		ProductID:       row.ProductID,
		BranchID:        row.BranchID,
		UserID:          row.UserID,
		ChangeQuantity:  row.ChangeQuantity,
		NewQuantity:     row.NewQuantity,
		Reason:          row.Reason.String(),
		Note:            row.Note,
		OrderID:         row.OrderID,
		StockTransferID: row.StockTransferID,
		CreatedAt:       row.CreatedAt,
	}
}
