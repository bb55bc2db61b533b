package relay

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/coachpo/execrelay/internal/observability"
	"github.com/coachpo/execrelay/internal/schema"
)

// DeliveryFunc is the downstream handler invoked for each fan-out duplicate.
type DeliveryFunc func(context.Context, schema.Inbound) error

// Sink encapsulates metadata and handler for a downstream consumer.
type Sink struct {
	ID      string
	Deliver DeliveryFunc
}

// Fanout coordinates duplicate creation and parallel dispatch to sinks.
// Dispatch blocks until every sink has consumed the message, so per-sink
// event order matches relay emission order.
type Fanout struct {
	maxWorkers int
}

// NewFanout constructs a fan-out dispatcher with the provided concurrency limit.
func NewFanout(maxWorkers int) *Fanout {
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	return &Fanout{maxWorkers: maxWorkers}
}

// Dispatch delivers the message to all sinks, cloning the execution payload
// per sink so no two consumers share mutable state.
func (f *Fanout) Dispatch(ctx context.Context, msg schema.Inbound, sinks []Sink) error {
	count := len(sinks)
	if count == 0 {
		return nil
	}
	if count == 1 {
		sink := sinks[0]
		if sink.Deliver == nil {
			return nil
		}
		return sink.Deliver(ctx, msg)
	}
	workerLimit := f.maxWorkers
	if workerLimit > count {
		workerLimit = count
	}
	start := time.Now()
	var mu sync.Mutex
	var workerErrs []error
	p := pool.New().WithMaxGoroutines(workerLimit)
	for _, sink := range sinks {
		if sink.Deliver == nil {
			continue
		}
		s := sink
		p.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					workerErrs = append(workerErrs, fmt.Errorf("sink %s panic: %v", s.ID, r))
					mu.Unlock()
				}
			}()
			if err := ctx.Err(); err != nil {
				mu.Lock()
				workerErrs = append(workerErrs, fmt.Errorf("context error: %w", err))
				mu.Unlock()
				return
			}
			dup := msg
			if msg.Exec != nil {
				dup.Exec = msg.Exec.Clone()
			}
			if err := s.Deliver(ctx, dup); err != nil {
				mu.Lock()
				workerErrs = append(workerErrs, fmt.Errorf("sink %s: %w", s.ID, err))
				mu.Unlock()
			}
		})
	}
	p.Wait()
	observability.Telemetry().ObserveHistogram("relay_fanout_seconds", time.Since(start).Seconds(),
		map[string]string{"sinks": fmt.Sprintf("%d", count)})
	if len(workerErrs) == 0 {
		return nil
	}
	return observability.AggregateErrors(
		"relay fan-out",
		workerErrs,
		observability.Field{Key: "kind", Value: string(msg.Kind)},
		observability.Field{Key: "sink_count", Value: count},
	)
}
