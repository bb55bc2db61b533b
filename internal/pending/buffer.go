// Package pending parks trade-only events whose owning order is not yet
// known, preserving arrival order until the correlation resolves.
package pending

import (
	"sync"

	"github.com/coachpo/execrelay/internal/observability"
	"github.com/coachpo/execrelay/internal/schema"
)

// Namespace labels the two independent buffer keyspaces for metrics.
const (
	namespaceOrderID  = "order_id"
	namespaceOrderStr = "order_string_id"
)

// Buffer is the non-associated holding area. Suspend and Resume are pure
// data-structure operations; nothing ever waits on a buffered event.
type Buffer struct {
	mu         sync.Mutex
	byOrderID  map[int64][]*schema.ExecutionEvent
	byOrderStr map[string][]*schema.ExecutionEvent
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	b := new(Buffer)
	b.byOrderID = make(map[int64][]*schema.ExecutionEvent)
	b.byOrderStr = make(map[string][]*schema.ExecutionEvent)
	return b
}

// SuspendByOrderID appends the event to the FIFO keyed by the numeric order
// id. The caller must treat the event as fully consumed.
func (b *Buffer) SuspendByOrderID(orderID int64, evt *schema.ExecutionEvent) {
	if orderID == 0 || evt == nil {
		return
	}
	b.mu.Lock()
	b.byOrderID[orderID] = append(b.byOrderID[orderID], evt)
	depth := len(b.byOrderID)
	b.mu.Unlock()
	observability.Telemetry().SetGauge("relay_parked_keys", float64(depth),
		map[string]string{"namespace": namespaceOrderID})
}

// SuspendByOrderStringID appends the event to the FIFO keyed by the textual
// order id. Keys mirror whatever the event carried; case folding happens at
// the correlation layer, not here.
func (b *Buffer) SuspendByOrderStringID(orderStringID string, evt *schema.ExecutionEvent) {
	if orderStringID == "" || evt == nil {
		return
	}
	b.mu.Lock()
	b.byOrderStr[orderStringID] = append(b.byOrderStr[orderStringID], evt)
	depth := len(b.byOrderStr)
	b.mu.Unlock()
	observability.Telemetry().SetGauge("relay_parked_keys", float64(depth),
		map[string]string{"namespace": namespaceOrderStr})
}

// ResumeOrderID atomically detaches and returns the FIFO for the numeric
// order id, or nil when nothing is parked. The caller forwards the returned
// events downstream in order.
func (b *Buffer) ResumeOrderID(orderID int64) []*schema.ExecutionEvent {
	if orderID == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	events, ok := b.byOrderID[orderID]
	if !ok {
		return nil
	}
	delete(b.byOrderID, orderID)
	return events
}

// ResumeOrderStringID atomically detaches and returns the FIFO for the
// textual order id, or nil when nothing is parked.
func (b *Buffer) ResumeOrderStringID(orderStringID string) []*schema.ExecutionEvent {
	if orderStringID == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	events, ok := b.byOrderStr[orderStringID]
	if !ok {
		return nil
	}
	delete(b.byOrderStr, orderStringID)
	return events
}

// Depth reports the number of parked events across both namespaces.
func (b *Buffer) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, events := range b.byOrderID {
		total += len(events)
	}
	for _, events := range b.byOrderStr {
		total += len(events)
	}
	return total
}

// Reset clears both namespaces, discarding all parked events without
// resuming them.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byOrderID = make(map[int64][]*schema.ExecutionEvent)
	b.byOrderStr = make(map[string][]*schema.ExecutionEvent)
}
