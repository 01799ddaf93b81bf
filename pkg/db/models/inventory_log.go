package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codebrew/pos-backend/pkg/enums"
)

// InventoryLog is an append-only audit entry for one quantity delta.
type InventoryLog struct {
	ID uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	// Seq is assigned by the database and orders entries per (product, branch)
	// in ledger application order.
	Seq             int64                 `gorm:"column:seq;->"`
	ProductID       uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	BranchID        uuid.UUID             `gorm:"column:branch_id;type:uuid;not null"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null"`
	ChangeQuantity  int                   `gorm:"column:change_quantity;not null"`
	NewQuantity     int                   `gorm:"column:new_quantity;not null"`
	Reason          enums.InventoryReason `gorm:"column:reason;type:text;not null"`
	Note            *string               `gorm:"column:note"`
	OrderID         *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	StockTransferID *uuid.UUID            `gorm:"column:stock_transfer_id;type:uuid"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (InventoryLog) TableName() string { return "inventory_logs" }

func (l *InventoryLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
