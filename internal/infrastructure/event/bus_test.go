package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Test", uuid.New(), time.Now())}
}

type recordingHandler struct {
	types    []string
	received []string
	err      error
	panicMsg string
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) Handle(_ context.Context, e shared.DomainEvent) error {
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	h.received = append(h.received, e.EventType())
	return h.err
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Start(context.Background()))

	created := &recordingHandler{types: []string{"MatchCreated"}}
	all := &recordingHandler{}
	bus.Subscribe(created)
	bus.Subscribe(all)

	err := bus.Publish(context.Background(), newTestEvent("MatchCreated"), newTestEvent("MatchRevoked"))
	require.NoError(t, err)

	assert.Equal(t, []string{"MatchCreated"}, created.received)
	assert.Equal(t, []string{"MatchCreated", "MatchRevoked"}, all.received)

	published, failed := bus.Stats()
	assert.Equal(t, int64(2), published)
	assert.Zero(t, failed)
	require.NoError(t, bus.Stop(context.Background()))
}

func TestInMemoryEventBus_HandlerFailuresDoNotStopDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	failing := &recordingHandler{types: []string{"X"}, err: errors.New("disk full")}
	panicking := &recordingHandler{types: []string{"X"}, panicMsg: "nil map"}
	healthy := &recordingHandler{types: []string{"X"}}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent("X"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, []string{"X"}, healthy.received)

	_, failed := bus.Stats()
	assert.Equal(t, int64(2), failed)
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &recordingHandler{types: []string{"A", "B"}}
	bus.Subscribe(h)
	bus.Subscribe(h, "C")
	assert.Equal(t, 3, bus.registry.Count())

	bus.Unsubscribe(h)
	assert.Zero(t, bus.registry.Count())
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A")))
	assert.Empty(t, h.received)
}
