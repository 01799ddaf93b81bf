package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockTransfer is the header of one inter-branch move.
type StockTransfer struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	FromBranchID      uuid.UUID `gorm:"column:from_branch_id;type:uuid;not null"`
	ToBranchID        uuid.UUID `gorm:"column:to_branch_id;type:uuid;not null"`
	Quantity          int       `gorm:"column:quantity;not null"`
	InitiatedByUserID uuid.UUID `gorm:"column:initiated_by_user_id;type:uuid;not null"`
	Notes             *string   `gorm:"column:notes"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (StockTransfer) TableName() string { return "stock_transfers" }

func (s *StockTransfer) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
