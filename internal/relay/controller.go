package relay

import (
	"context"
	"sync"

	"github.com/coachpo/execrelay/errs"
	"github.com/coachpo/execrelay/internal/correlation"
	"github.com/coachpo/execrelay/internal/observability"
	"github.com/coachpo/execrelay/internal/pending"
	"github.com/coachpo/execrelay/internal/schema"
	"github.com/coachpo/execrelay/internal/translog"
)

// Controller is the sole orchestrator of the correlation state. It consumes
// pipeline commands and connector events, applies the ordered decision
// rules, and forwards reconstructed streams downstream.
//
// Registry, buffer, and each subscription carry independent locks; the
// controller's barrier only serialises Reset against in-flight event
// processing.
type Controller struct {
	venue     string
	connector Connector
	registry  *correlation.Registry
	buffer    *pending.Buffer
	translog  *translog.Aggregator
	fanout    *Fanout
	sinks     []Sink
	metrics   *observability.RuntimeMetrics

	barrier sync.RWMutex

	trackedMu sync.RWMutex
	tracked   map[int64]struct{}
}

// NewController constructs the adapter around the connector. It fails fast
// on malformed input before any state is allocated.
func NewController(connector Connector, fanout *Fanout, sinks ...Sink) (*Controller, error) {
	if connector == nil {
		return nil, errs.New("", errs.CodeInvalid, errs.WithMessage("connector required"))
	}
	for _, sink := range sinks {
		if sink.Deliver == nil {
			return nil, errs.New(connector.Name(), errs.CodeInvalid,
				errs.WithMessage("sink without delivery handler"))
		}
	}
	if fanout == nil {
		fanout = NewFanout(0)
	}
	c := new(Controller)
	c.venue = connector.Name()
	c.connector = connector
	c.registry = correlation.NewRegistry()
	c.buffer = pending.NewBuffer()
	c.translog = translog.NewAggregator(c.venue)
	c.fanout = fanout
	c.sinks = sinks
	c.metrics = observability.NewRuntimeMetrics()
	c.translog.UseMetrics(c.metrics)
	c.tracked = make(map[int64]struct{})
	return c, nil
}

// Duplicate produces a fresh adapter wrapping a duplicate of the underlying
// connector, with every internal structure reset to empty.
func (c *Controller) Duplicate() (*Controller, error) {
	dup, err := c.connector.Duplicate()
	if err != nil {
		return nil, errs.New(c.venue, errs.CodeUnavailable,
			errs.WithMessage("connector duplication failed"), errs.WithCause(err))
	}
	return NewController(dup, NewFanout(c.fanout.maxWorkers), c.sinks...)
}

// Metrics returns a snapshot of the relay runtime counters.
func (c *Controller) Metrics() observability.RelayMetricsSnapshot {
	return c.metrics.Snapshot()
}

// Apply decodes and executes one pipeline command.
func (c *Controller) Apply(ctx context.Context, cmd schema.Command) error {
	switch cmd.Type {
	case schema.CommandReset:
		c.Reset()
		return nil
	case schema.CommandRegisterOrder:
		var payload schema.RegisterOrderPayload
		if err := cmd.DecodePayload(&payload); err != nil {
			return errs.New(c.venue, errs.CodeInvalid, errs.WithCause(err))
		}
		c.RegisterOrder(payload.TransactionID, payload.SecurityID)
		return nil
	case schema.CommandReplaceOrder:
		var payload schema.ReplaceOrderPayload
		if err := cmd.DecodePayload(&payload); err != nil {
			return errs.New(c.venue, errs.CodeInvalid, errs.WithCause(err))
		}
		c.ReplaceOrder(payload.OriginalTransactionID, payload.TransactionID)
		return nil
	case schema.CommandPairReplaceOrder:
		var payload schema.PairReplaceOrderPayload
		if err := cmd.DecodePayload(&payload); err != nil {
			return errs.New(c.venue, errs.CodeInvalid, errs.WithCause(err))
		}
		c.PairReplaceOrder(payload.Leg1, payload.Leg2)
		return nil
	case schema.CommandSubscribeOrderStatus:
		var payload schema.SubscribeOrderStatusPayload
		if err := cmd.DecodePayload(&payload); err != nil {
			return errs.New(c.venue, errs.CodeInvalid, errs.WithCause(err))
		}
		return c.SubscribeOrderStatus(payload.TransactionID, payload.Subscribe)
	default:
		return errs.New(c.venue, errs.CodeInvalid, errs.WithMessage("unknown command type: "+string(cmd.Type)))
	}
}

// Reset is the global barrier: it excludes concurrent event processing and
// clears the registry, buffer, aggregator, and tracked ids as one atomic
// unit. No stale correlation survives a connector reconnect.
func (c *Controller) Reset() {
	c.barrier.Lock()
	defer c.barrier.Unlock()
	c.trackedMu.Lock()
	c.tracked = make(map[int64]struct{})
	c.trackedMu.Unlock()
	c.registry.Reset()
	c.buffer.Reset()
	c.translog.Reset()
	observability.Log().Info("relay state reset", observability.Field{Key: "venue", Value: c.venue})
}

// RegisterOrder records the security a new order transaction trades.
func (c *Controller) RegisterOrder(transactionID, securityID int64) {
	c.registry.RecordSecurity(transactionID, securityID)
}

// ReplaceOrder propagates the replaced order's security to its replacement.
func (c *Controller) ReplaceOrder(originalTransactionID, transactionID int64) {
	c.registry.PropagateSecurityOnReplace(originalTransactionID, transactionID)
}

// PairReplaceOrder propagates security for each replacement leg independently.
func (c *Controller) PairReplaceOrder(leg1, leg2 schema.ReplaceOrderPayload) {
	c.registry.PropagateSecurityOnReplace(leg1.OriginalTransactionID, leg1.TransactionID)
	c.registry.PropagateSecurityOnReplace(leg2.OriginalTransactionID, leg2.TransactionID)
}

// SubscribeOrderStatus opens a log subscription when the connector supports
// full transactional replay, or tracks the bulk-query id otherwise. An
// unsubscribe aborts any pending aggregation for the id.
func (c *Controller) SubscribeOrderStatus(transactionID int64, subscribe bool) error {
	if transactionID == 0 {
		return errs.New(c.venue, errs.CodeInvalid, errs.WithMessage("transaction id required"))
	}
	if !subscribe {
		c.trackedMu.Lock()
		delete(c.tracked, transactionID)
		c.trackedMu.Unlock()
		if c.translog.IsOpen(transactionID) {
			return c.translog.Abort(transactionID)
		}
		return nil
	}
	c.trackedMu.Lock()
	c.tracked[transactionID] = struct{}{}
	c.trackedMu.Unlock()
	if c.connector.SupportsFullLog() {
		return c.translog.Open(transactionID)
	}
	return nil
}

func (c *Controller) isTracked(transactionID int64) bool {
	c.trackedMu.RLock()
	defer c.trackedMu.RUnlock()
	_, ok := c.tracked[transactionID]
	return ok
}

// HandleInbound routes one connector message.
func (c *Controller) HandleInbound(ctx context.Context, msg schema.Inbound) error {
	switch msg.Kind {
	case schema.InboundExecution:
		if msg.Exec == nil {
			return errs.New(c.venue, errs.CodeInvalid, errs.WithMessage("execution message without event"))
		}
		return c.HandleExecution(ctx, msg.Exec)
	case schema.InboundSubscriptionResponse:
		if msg.Notice == nil {
			return errs.New(c.venue, errs.CodeInvalid, errs.WithMessage("subscription response without notice"))
		}
		return c.HandleSubscriptionResponse(ctx, *msg.Notice)
	case schema.InboundSubscriptionFinished, schema.InboundSubscriptionOnline:
		if msg.Notice == nil {
			return errs.New(c.venue, errs.CodeInvalid, errs.WithMessage("subscription notice missing"))
		}
		return c.HandleSubscriptionComplete(ctx, msg.Notice.OriginalTransactionID)
	case schema.InboundPassthrough:
		return c.forward(ctx, msg)
	default:
		// Unknown message kinds pass through unmodified.
		return c.forward(ctx, msg)
	}
}

// HandleExecution classifies one execution event and applies the outcome.
// Events produced by buffer resumption re-enter the same decision function
// through an explicit work queue, never by recursion.
func (c *Controller) HandleExecution(ctx context.Context, evt *schema.ExecutionEvent) error {
	if evt == nil {
		return errs.New(c.venue, errs.CodeInvalid, errs.WithMessage("nil execution event"))
	}
	c.barrier.RLock()
	defer c.barrier.RUnlock()
	return c.drain(ctx, []*schema.ExecutionEvent{evt})
}

// drain processes the work queue until no follow-up events remain. Caller
// holds the barrier read lock.
func (c *Controller) drain(ctx context.Context, queue []*schema.ExecutionEvent) error {
	var failures []error
	for len(queue) > 0 {
		evt := queue[0]
		queue = queue[1:]
		followUps, err := c.dispatchOne(ctx, evt)
		if err != nil {
			failures = append(failures, err)
		}
		queue = append(queue, followUps...)
	}
	if len(failures) == 0 {
		return nil
	}
	return observability.AggregateErrors("relay dispatch", failures,
		observability.Field{Key: "venue", Value: c.venue})
}

// dispatchOne runs the decision rules for a single event and applies the
// outcome, returning any buffered events released for re-dispatch.
func (c *Controller) dispatchOne(ctx context.Context, evt *schema.ExecutionEvent) ([]*schema.ExecutionEvent, error) {
	out := c.decide(evt)
	c.applyCorrelation(out, evt)

	switch out.action {
	case actForward:
		if err := c.forward(ctx, schema.ExecInbound(evt)); err != nil {
			return nil, err
		}
		if out.passthrough || !evt.HasOrderInfo {
			return nil, nil
		}
		return c.resumeFor(evt.OrderID, evt.OrderStringID), nil

	case actSuspendOrderID:
		c.buffer.SuspendByOrderID(out.suspendOrderID, evt)
		c.metrics.RecordParkedDepth("order_id", c.buffer.Depth())
		return nil, nil

	case actSuspendOrderStr:
		c.buffer.SuspendByOrderStringID(out.suspendOrderStr, evt)
		c.metrics.RecordParkedDepth("order_string_id", c.buffer.Depth())
		return nil, nil

	case actMerge:
		return c.merge(ctx, out, evt)

	case actDrop:
		observability.Log().Warn("event dropped",
			observability.Field{Key: "venue", Value: c.venue},
			observability.Field{Key: "reason", Value: out.dropReason},
			observability.Field{Key: "transaction", Value: evt.TransactionID},
			observability.Field{Key: "original_transaction", Value: evt.OriginalTransactionID},
			observability.Field{Key: "order_id", Value: evt.OrderID},
			observability.Field{Key: "order_string_id", Value: evt.OrderStringID},
		)
		c.metrics.IncrementDropped(out.dropReason)
		observability.Telemetry().IncCounter("relay_dropped_total", 1,
			map[string]string{"reason": out.dropReason})
		return nil, nil
	}
	return nil, nil
}

// merge folds the event into its owning subscription. When the subscription
// turned terminal between classification and merge the event falls back to
// direct forwarding, never lost.
func (c *Controller) merge(ctx context.Context, out outcome, evt *schema.ExecutionEvent) ([]*schema.ExecutionEvent, error) {
	var mergeErr error
	if out.mergeOrder {
		mergeErr = c.translog.MergeOrder(out.subscriptionID, out.ownerTx, evt)
	}
	if mergeErr == nil && out.mergeTrade {
		mergeErr = c.translog.MergeTrade(out.subscriptionID, out.ownerTx, evt)
	}
	if mergeErr == nil {
		return nil, nil
	}
	if errs.IsCode(mergeErr, errs.CodeTerminal) || errs.IsCode(mergeErr, errs.CodeNotFound) {
		if err := c.forward(ctx, schema.ExecInbound(evt)); err != nil {
			return nil, err
		}
		if evt.HasOrderInfo {
			return c.resumeFor(evt.OrderID, evt.OrderStringID), nil
		}
		return nil, nil
	}
	return nil, mergeErr
}

// resumeFor detaches parked trades for both identifier namespaces. The
// returned events re-enter the decision queue in original arrival order.
func (c *Controller) resumeFor(orderID int64, orderStringID string) []*schema.ExecutionEvent {
	var resumed []*schema.ExecutionEvent
	if orderID != 0 {
		resumed = append(resumed, c.buffer.ResumeOrderID(orderID)...)
	}
	if orderStringID != "" {
		resumed = append(resumed, c.buffer.ResumeOrderStringID(orderStringID)...)
	}
	if len(resumed) > 0 {
		c.metrics.RecordParkedDepth("resumed", c.buffer.Depth())
	}
	return resumed
}

// HandleSubscriptionResponse aborts the aggregation when the subscription
// request itself failed. Successful responses carry no state change.
func (c *Controller) HandleSubscriptionResponse(ctx context.Context, notice schema.SubscriptionNotice) error {
	_ = ctx
	if !notice.Failed() {
		return nil
	}
	c.barrier.RLock()
	defer c.barrier.RUnlock()
	observability.Log().Warn("status subscription failed",
		observability.Field{Key: "venue", Value: c.venue},
		observability.Field{Key: "subscription", Value: notice.OriginalTransactionID},
		observability.Field{Key: "error", Value: notice.ErrorMessage},
	)
	c.trackedMu.Lock()
	delete(c.tracked, notice.OriginalTransactionID)
	c.trackedMu.Unlock()
	if c.translog.IsOpen(notice.OriginalTransactionID) {
		return c.translog.Abort(notice.OriginalTransactionID)
	}
	return nil
}

// HandleSubscriptionComplete flushes the finished (or now-online)
// subscription and replays its output through the normal forward path:
// snapshot first, buffered trades for its identifiers, then the aggregated
// trades in arrival order.
func (c *Controller) HandleSubscriptionComplete(ctx context.Context, subscriptionID int64) error {
	c.barrier.RLock()
	defer c.barrier.RUnlock()

	entries, err := c.translog.Close(subscriptionID)
	if err != nil {
		if errs.IsCode(err, errs.CodeNotFound) || errs.IsCode(err, errs.CodeTerminal) {
			// Lightweight mode, or a duplicate completion signal.
			observability.Log().Debug("subscription completion without open aggregation",
				observability.Field{Key: "venue", Value: c.venue},
				observability.Field{Key: "subscription", Value: subscriptionID},
			)
			return nil
		}
		return err
	}
	c.metrics.IncrementFlushedBatches()
	observability.Telemetry().IncCounter("relay_flushes_total", 1,
		map[string]string{"venue": c.venue})

	var failures []error
	for _, entry := range entries {
		if err := c.replayEntry(ctx, entry); err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return observability.AggregateErrors("subscription flush", failures,
		observability.Field{Key: "venue", Value: c.venue},
		observability.Field{Key: "subscription", Value: subscriptionID},
	)
}

func (c *Controller) replayEntry(ctx context.Context, entry translog.FlushEntry) error {
	orderID, orderStringID := c.registry.OrderIdentifiers(entry.TransactionID)
	if entry.Snapshot != nil {
		if entry.Snapshot.OrderID != 0 {
			orderID = entry.Snapshot.OrderID
		}
		if entry.Snapshot.OrderStringID != "" {
			orderStringID = entry.Snapshot.OrderStringID
		}
		if err := c.forward(ctx, schema.ExecInbound(entry.Snapshot)); err != nil {
			return err
		}
	}
	if resumed := c.resumeFor(orderID, orderStringID); len(resumed) > 0 {
		if err := c.drain(ctx, resumed); err != nil {
			return err
		}
	}
	for _, trade := range entry.Trades {
		if err := c.forward(ctx, schema.ExecInbound(trade)); err != nil {
			return err
		}
	}
	if resumed := c.resumeFor(orderID, orderStringID); len(resumed) > 0 {
		return c.drain(ctx, resumed)
	}
	return nil
}

func (c *Controller) forward(ctx context.Context, msg schema.Inbound) error {
	if err := c.fanout.Dispatch(ctx, msg, c.sinks); err != nil {
		return err
	}
	c.metrics.IncrementForwarded()
	return nil
}
