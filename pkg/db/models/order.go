package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/codebrew/pos-backend/pkg/enums"
)

// Order is the sale header. Items, payments and discounts are written with it
// in one transaction and never mutated afterwards.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BranchID       uuid.UUID         `gorm:"column:branch_id;type:uuid;not null"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	SubtotalAmount decimal.Decimal   `gorm:"column:subtotal_amount;type:numeric(12,2);not null"`
	TaxAmount      decimal.Decimal   `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal   `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount    decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Status         enums.OrderStatus `gorm:"column:status;type:text;not null"`
	VoidedAt       *time.Time        `gorm:"column:voided_at"`
	VoidedBy       *uuid.UUID        `gorm:"column:voided_by;type:uuid"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem captures the unit price at sale time.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Payment is one tender line; split tender produces several rows.
type Payment struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	PaymentMethodID uuid.UUID       `gorm:"column:payment_method_id;type:uuid;not null"`
	AmountPaid      decimal.Decimal `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// OrderDiscount links an order to an applied discount.
type OrderDiscount struct {
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey"`
	DiscountID uuid.UUID `gorm:"column:discount_id;type:uuid;primaryKey"`
}

func (OrderDiscount) TableName() string { return "order_discounts" }
