package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codebrew/pos-backend/pkg/db/models"
	"github.com/codebrew/pos-backend/pkg/enums"
)

// ItemInput is one sold line with the price captured at the register.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// PaymentInput is one tender line.
type PaymentInput struct {
	PaymentMethodID uuid.UUID
	Amount          decimal.Decimal
}

// CreateOrderInput carries a sale as captured by the register.
type CreateOrderInput struct {
	BranchID    *uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.Role
	Items       []ItemInput
	Payments    []PaymentInput
	DiscountIDs []uuid.UUID
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// CreateOrderResult is returned after the sale commits.
type CreateOrderResult struct {
	OrderID   uuid.UUID       `json:"order_id"`
	CreatedAt time.Time       `json:"created_at"`
	Total     decimal.Decimal `json:"total"`
}

// VoidOrderInput reverses a completed sale.
type VoidOrderInput struct {
	OrderID       uuid.UUID
	ActorUserID   uuid.UUID
	ActorRole     enums.Role
	ActorBranchID *uuid.UUID
}

// VoidOrderResult reports the reversal.
type VoidOrderResult struct {
	OrderID  uuid.UUID `json:"order_id"`
	BranchID uuid.UUID `json:"branch_id"`
	VoidedAt time.Time `json:"voided_at"`
}

// OrderDetail is the full aggregate as stored.
type OrderDetail struct {
	ID          uuid.UUID         `json:"id"`
	BranchID    uuid.UUID         `json:"branch_id"`
	UserID      uuid.UUID         `json:"user_id"`
	Status      enums.OrderStatus `json:"status"`
	Subtotal    decimal.Decimal   `json:"subtotal_amount"`
	Tax         decimal.Decimal   `json:"tax_amount"`
	Discount    decimal.Decimal   `json:"discount_amount"`
	Total       decimal.Decimal   `json:"total_amount"`
	CreatedAt   time.Time         `json:"created_at"`
	VoidedAt    *time.Time        `json:"voided_at,omitempty"`
	VoidedBy    *uuid.UUID        `json:"voided_by,omitempty"`
	Items       []OrderItemDTO    `json:"items"`
	Payments    []PaymentDTO      `json:"payments"`
	DiscountIDs []uuid.UUID       `json:"discount_ids"`
}

type OrderItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type PaymentDTO struct {
	ID              uuid.UUID       `json:"id"`
	PaymentMethodID uuid.UUID       `json:"payment_method_id"`
	Amount          decimal.Decimal `json:"amount"`
}

func toOrderDetail(order models.Order, items []models.OrderItem, payments []models.Payment, discountIDs []uuid.UUID) *OrderDetail {
	detail := &OrderDetail{
		ID:          order.ID,
		BranchID:    order.BranchID,
		UserID:      order.UserID,
		Status:      order.Status,
		Subtotal:    order.SubtotalAmount,
		Tax:         order.TaxAmount,
		Discount:    order.DiscountAmount,
		Total:       order.TotalAmount,
		CreatedAt:   order.CreatedAt,
		VoidedAt:    order.VoidedAt,
		VoidedBy:    order.VoidedBy,
		Items:       make([]OrderItemDTO, 0, len(items)),
		Payments:    make([]PaymentDTO, 0, len(payments)),
		DiscountIDs: discountIDs,
	}
	if detail.DiscountIDs == nil {
		detail.DiscountIDs = []uuid.UUID{}
	}
	for _, item := range items {
		detail.Items = append(detail.Items, OrderItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	for _, payment := range payments {
		detail.Payments = append(detail.Payments, PaymentDTO{
			ID:              payment.ID,
			PaymentMethodID: payment.PaymentMethodID,
			Amount:          payment.AmountPaid,
		})
	}
	return detail
}
