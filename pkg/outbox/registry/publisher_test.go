package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebrew/pos-backend/pkg/config"
	"github.com/codebrew/pos-backend/pkg/db/models"
	"github.com/codebrew/pos-backend/pkg/enums"
	"github.com/codebrew/pos-backend/pkg/outbox"
	"github.com/codebrew/pos-backend/pkg/outbox/payloads"
)

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		OrdersTopic:    "orders-topic",
		InventoryTopic: "inventory-topic",
	})
	require.NoError(t, err)
	return reg
}

func mustEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return env
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders"})
	require.Error(t, err)

	_, err = NewEventRegistry(config.PubSubConfig{InventoryTopic: "inventory"})
	require.Error(t, err)
}

func TestResolveRoutesOrderEventsToOrdersTopic(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderVoided,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelope(t, payloads.OrderVoidedEvent{OrderID: orderID}),
	})
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", resolved.Descriptor.Topic)

	payload, ok := resolved.Payload.(*payloads.OrderVoidedEvent)
	require.True(t, ok)
	assert.Equal(t, orderID, payload.OrderID)
}

func TestResolveRoutesStockEventsToInventoryTopic(t *testing.T) {
	reg := newTestEventRegistry(t)
	transferID := uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventStockTransferred,
		AggregateType: enums.AggregateStockTransfer,
		AggregateID:   transferID,
		Payload:       mustEnvelope(t, payloads.StockTransferredEvent{TransferID: transferID, Quantity: 5}),
	})
	require.NoError(t, err)
	assert.Equal(t, "inventory-topic", resolved.Descriptor.Topic)
	assert.Equal(t, 5, resolved.Payload.(*payloads.StockTransferredEvent).Quantity)
}

func TestResolveRejectsAggregateMismatch(t *testing.T) {
	reg := newTestEventRegistry(t)

	_, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventLowStockReached,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, payloads.LowStockReachedEvent{}),
	})
	var nonRetryable NonRetryableError
	require.True(t, errors.As(err, &nonRetryable))
}

func TestResolveRejectsMissingPayload(t *testing.T) {
	reg := newTestEventRegistry(t)
	env, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: "evt", Data: json.RawMessage("null")})
	require.NoError(t, err)

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       env,
	})
	var nonRetryable NonRetryableError
	require.True(t, errors.As(err, &nonRetryable))
}

func TestResolveRejectsUnknownEventType(t *testing.T) {
	reg := newTestEventRegistry(t)

	_, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.OutboxEventType("order_teleported"),
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelope(t, map[string]string{"a": "b"}),
	})
	require.Error(t, err)
}

func TestTopicsAreDistinctAndSorted(t *testing.T) {
	reg := newTestEventRegistry(t)
	assert.Equal(t, []string{"inventory-topic", "orders-topic"}, reg.Topics())
}
