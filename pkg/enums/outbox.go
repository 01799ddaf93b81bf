package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateOrder           OutboxAggregateType = "order"
	AggregateInventoryRecord OutboxAggregateType = "inventory_record"
	AggregateStockTransfer   OutboxAggregateType = "stock_transfer"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateInventoryRecord,
	AggregateStockTransfer,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event queued in outbox_events.
type OutboxEventType string

const (
	EventOrderCreated      OutboxEventType = "order_created"
	EventOrderVoided       OutboxEventType = "order_voided"
	EventInventoryAdjusted OutboxEventType = "inventory_adjusted"
	EventStockTransferred  OutboxEventType = "stock_transferred"
	EventLowStockReached   OutboxEventType = "low_stock_reached"
)

var validEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderVoided,
	EventInventoryAdjusted,
	EventStockTransferred,
	EventLowStockReached,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason explains why a row was moved to outbox_dlq.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
