package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryRecord is the on-hand quantity of one product at one branch.
// quantity is only written through the ledger's conditional update.
type InventoryRecord struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	BranchID          uuid.UUID `gorm:"column:branch_id;type:uuid;not null" json:"branch_id"`
	Quantity          int       `gorm:"column:quantity;not null;default:0" json:"quantity"`
	LowStockThreshold *int      `gorm:"column:low_stock_threshold" json:"low_stock_threshold,omitempty"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (InventoryRecord) TableName() string { return "inventory_records" }

func (r *InventoryRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsLow reports whether the record sits at or below its threshold.
func (r InventoryRecord) IsLow() bool {
	return r.LowStockThreshold != nil && r.Quantity <= *r.LowStockThreshold
}
