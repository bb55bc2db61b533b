package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/coachpo/execrelay/internal/schema"
)

func TestDispatchClonesPerSink(t *testing.T) {
	f := NewFanout(4)
	evt := orderInfo(100, 5)

	var mu sync.Mutex
	received := make(map[string]*schema.ExecutionEvent)
	sinks := make([]Sink, 0, 3)
	for _, id := range []string{"a", "b", "c"} {
		sinkID := id
		sinks = append(sinks, Sink{ID: sinkID, Deliver: func(_ context.Context, msg schema.Inbound) error {
			mu.Lock()
			received[sinkID] = msg.Exec
			mu.Unlock()
			return nil
		}})
	}

	if err := f.Dispatch(context.Background(), schema.ExecInbound(evt), sinks); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(received) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(received))
	}
	seen := map[*schema.ExecutionEvent]bool{evt: true}
	for id, got := range received {
		if got.TransactionID != 100 {
			t.Fatalf("sink %s received wrong event", id)
		}
		if seen[got] {
			t.Fatalf("sink %s shares an event pointer with another consumer", id)
		}
		seen[got] = true
	}
}

func TestDispatchSingleSinkAvoidsClone(t *testing.T) {
	f := NewFanout(4)
	evt := orderInfo(100, 5)

	var got *schema.ExecutionEvent
	sink := Sink{ID: "only", Deliver: func(_ context.Context, msg schema.Inbound) error {
		got = msg.Exec
		return nil
	}}
	if err := f.Dispatch(context.Background(), schema.ExecInbound(evt), []Sink{sink}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got != evt {
		t.Fatal("single-sink dispatch must hand over the original event")
	}
}

func TestDispatchAggregatesSinkErrors(t *testing.T) {
	f := NewFanout(2)
	boom := errors.New("downstream full")
	sinks := []Sink{
		{ID: "ok", Deliver: func(context.Context, schema.Inbound) error { return nil }},
		{ID: "bad", Deliver: func(context.Context, schema.Inbound) error { return boom }},
		{ID: "panics", Deliver: func(context.Context, schema.Inbound) error { panic("sink crash") }},
	}
	err := f.Dispatch(context.Background(), schema.ExecInbound(orderInfo(1, 1)), sinks)
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("aggregated error must wrap sink failures: %v", err)
	}
}

func TestDispatchNoSinks(t *testing.T) {
	f := NewFanout(1)
	if err := f.Dispatch(context.Background(), schema.ExecInbound(orderInfo(1, 1)), nil); err != nil {
		t.Fatalf("dispatch with no sinks: %v", err)
	}
}
