package venuesim

import (
	"context"
	"testing"
	"time"
)

func collect(t *testing.T, c *Connector) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.Start(ctx)
	orders, trades := 0, 0
	seenOrder := make(map[int64]bool)
	for msg := range c.Inbound() {
		evt := msg.Exec
		if evt == nil {
			t.Fatal("simulator emitted a non-execution message")
		}
		if evt.HasOrderInfo {
			orders++
			seenOrder[evt.OrderID] = true
			continue
		}
		trades++
		if evt.Price == nil || evt.Quantity == nil {
			t.Fatal("trade without price or quantity")
		}
	}
	return orders + trades
}

func TestScriptEmitsConfiguredVolume(t *testing.T) {
	c := New(Config{Orders: 5, TradesPerOrder: 3, EventsPerSecond: 10000, Seed: 7})
	total := collect(t, c)
	if total != 5*4 {
		t.Fatalf("expected 20 events, got %d", total)
	}
}

func TestShuffleKeepsVolume(t *testing.T) {
	c := New(Config{Orders: 8, TradesPerOrder: 2, EventsPerSecond: 10000, Shuffle: true, Seed: 42})
	total := collect(t, c)
	if total != 8*3 {
		t.Fatalf("expected 24 events, got %d", total)
	}
}

func TestDuplicateReplaysScript(t *testing.T) {
	c := New(Config{Orders: 2, TradesPerOrder: 1, EventsPerSecond: 10000, Seed: 3})
	dup, err := c.Duplicate()
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	first := collect(t, c)
	second := collect(t, dup.(*Connector))
	if first != second {
		t.Fatalf("duplicate emitted %d events, original %d", second, first)
	}
}

func TestDefaultsApplied(t *testing.T) {
	c := New(Config{})
	if c.Name() != "sim" {
		t.Fatalf("default venue name: %s", c.Name())
	}
	if c.SupportsFullLog() {
		t.Fatal("full log must default off")
	}
}
