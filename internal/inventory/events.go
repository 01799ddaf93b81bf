package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codebrew/pos-backend/pkg/enums"
	"github.com/codebrew/pos-backend/pkg/outbox"
	"github.com/codebrew/pos-backend/pkg/outbox/payloads"
)

// Emitter queues domain events on the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// EmitLowStockIfCrossed queues low_stock_reached when delta took the record
// across its threshold.
func EmitLowStockIfCrossed(ctx context.Context, tx *gorm.DB, emitter Emitter, actor *outbox.ActorRef, productID, branchID uuid.UUID, delta int, balance Balance) error {
	if emitter == nil || !balance.CrossedThreshold(delta) {
		return nil
	}
	return emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLowStockReached,
		AggregateType: enums.AggregateInventoryRecord,
		AggregateID:   productID,
		Actor:         actor,
		Data: payloads.LowStockReachedEvent{
			ProductID: productID,
			BranchID:  branchID,
			Quantity:  balance.Quantity,
			Threshold: *balance.LowStockThreshold,
		},
	})
}

// BuildActor converts caller identity into the event actor reference.
func BuildActor(userID uuid.UUID, branchID *uuid.UUID, role enums.Role) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{
		UserID:   userID,
		BranchID: branchID,
		Role:     role.String(),
	}
}
