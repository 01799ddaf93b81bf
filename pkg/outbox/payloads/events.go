package payloads

import (
	"time"

	"github.com/google/uuid"
)

// StockLine is one ledger movement carried by order events.
type StockLine struct {
	ProductID   uuid.UUID `json:"product_id"`
	Quantity    int       `json:"quantity"`
	NewQuantity int       `json:"new_quantity"`
}

// OrderCreatedEvent is emitted when a sale commits.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID   `json:"order_id"`
	BranchID    uuid.UUID   `json:"branch_id"`
	UserID      uuid.UUID   `json:"user_id"`
	TotalAmount string      `json:"total_amount"`
	Lines       []StockLine `json:"lines"`
	CreatedAt   time.Time   `json:"created_at"`
}

// OrderVoidedEvent is emitted when a sale is reversed.
type OrderVoidedEvent struct {
	OrderID  uuid.UUID   `json:"order_id"`
	BranchID uuid.UUID   `json:"branch_id"`
	VoidedBy uuid.UUID   `json:"voided_by"`
	VoidedAt time.Time   `json:"voided_at"`
	Lines    []StockLine `json:"lines"`
}

// InventoryAdjustedEvent is emitted for manual adjustments.
type InventoryAdjustedEvent struct {
	ProductID   uuid.UUID `json:"product_id"`
	BranchID    uuid.UUID `json:"branch_id"`
	Delta       int       `json:"delta"`
	NewQuantity int       `json:"new_quantity"`
	Reason      string    `json:"reason"`
}

// StockTransferredEvent is emitted once per committed transfer.
type StockTransferredEvent struct {
	TransferID     uuid.UUID `json:"transfer_id"`
	ProductID      uuid.UUID `json:"product_id"`
	FromBranchID   uuid.UUID `json:"from_branch_id"`
	ToBranchID     uuid.UUID `json:"to_branch_id"`
	Quantity       int       `json:"quantity"`
	SourceQuantity int       `json:"source_quantity"`
	DestQuantity   int       `json:"dest_quantity"`
}

// LowStockReachedEvent is emitted when a decrement leaves a record at or below
// its threshold.
type LowStockReachedEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	BranchID  uuid.UUID `json:"branch_id"`
	Quantity  int       `json:"quantity"`
	Threshold int       `json:"threshold"`
}
