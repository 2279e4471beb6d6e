package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"orderbot_backend/platform/logger"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func waitDelivered(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
		return nil
	}
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))

	delivered := make(chan Event, 2)
	handler := HandlerFunc(func(_ context.Context, ev Event) error {
		delivered <- ev
		return nil
	})
	bus.Subscribe("orders.order.created", handler)
	bus.Subscribe("orders.order.created", handler)

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "orders.order.created"})

	for i := 0; i < 2; i++ {
		if ev := waitDelivered(t, delivered); ev.EventName() != "orders.order.created" {
			t.Fatalf("event name = %q", ev.EventName())
		}
	}
}

func TestPublishSurvivesCancelledRequestContext(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))

	delivered := make(chan Event, 1)
	bus.Subscribe("catalog.imported", HandlerFunc(func(ctx context.Context, ev Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivered <- ev
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, testEvent{BaseEvent: NewBaseEvent(), name: "catalog.imported"})

	waitDelivered(t, delivered)
}

func TestPublishIsolatesPanickingHandler(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))

	delivered := make(chan Event, 1)
	bus.Subscribe("support.question.asked", HandlerFunc(func(context.Context, Event) error {
		panic("boom")
	}))
	bus.Subscribe("support.question.asked", HandlerFunc(func(context.Context, Event) error {
		return errors.New("logged, not propagated")
	}))
	bus.Subscribe("support.question.asked", HandlerFunc(func(_ context.Context, ev Event) error {
		delivered <- ev
		return nil
	}))

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "support.question.asked"})

	waitDelivered(t, delivered)
}

func TestPublishWithoutSubscribersIsNoOp(t *testing.T) {
	bus := NewInMemoryBus(logger.New("development"))
	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "orders.order.status_changed"})
}
