// Package translog accumulates per-transaction order snapshots and trades
// for open log subscriptions until the venue signals completion.
package translog

import (
	"sync"

	"github.com/coachpo/execrelay/errs"
	"github.com/coachpo/execrelay/internal/observability"
	"github.com/coachpo/execrelay/internal/schema"
)

// Status tracks the subscription state machine: OPEN -> {FLUSHED | ABORTED},
// terminal once reached.
type Status int

const (
	// StatusOpen accepts merges.
	StatusOpen Status = iota
	// StatusFlushed produced its output; further merges are rejected.
	StatusFlushed
	// StatusAborted discarded its state; further merges are rejected.
	StatusAborted
)

// FlushEntry pairs one transaction's merged snapshot with its trades in
// arrival order. Ownership of both transfers to the caller on Close.
type FlushEntry struct {
	TransactionID int64
	Snapshot      *schema.ExecutionEvent
	Trades        []*schema.ExecutionEvent
}

type record struct {
	snapshot *schema.ExecutionEvent
	trades   []*schema.ExecutionEvent
}

// subscription owns an independent lock so merge activity on one
// subscription never blocks another.
type subscription struct {
	mu      sync.Mutex
	status  Status
	records map[int64]*record
	order   []int64
}

// Aggregator tracks every log subscription opened against the connector.
type Aggregator struct {
	venue   string
	metrics *observability.RuntimeMetrics
	mu      sync.RWMutex
	subs    map[int64]*subscription
}

// NewAggregator creates an empty aggregator for the named venue.
func NewAggregator(venue string) *Aggregator {
	a := new(Aggregator)
	a.venue = venue
	a.subs = make(map[int64]*subscription)
	return a
}

// UseMetrics attaches a runtime metrics accumulator for merge rejections.
func (a *Aggregator) UseMetrics(metrics *observability.RuntimeMetrics) {
	a.metrics = metrics
}

// Open creates an empty transaction map for the subscription id.
func (a *Aggregator) Open(subscriptionID int64) error {
	if subscriptionID == 0 {
		return errs.New(a.venue, errs.CodeInvalid, errs.WithMessage("subscription id required"))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.subs[subscriptionID]; ok {
		return errs.New(a.venue, errs.CodeConflict, errs.WithSubscription(subscriptionID),
			errs.WithMessage("subscription already open"))
	}
	sub := new(subscription)
	sub.status = StatusOpen
	sub.records = make(map[int64]*record)
	a.subs[subscriptionID] = sub
	return nil
}

// IsOpen reports whether the subscription exists and still accepts merges.
func (a *Aggregator) IsOpen(subscriptionID int64) bool {
	a.mu.RLock()
	sub, ok := a.subs[subscriptionID]
	a.mu.RUnlock()
	if !ok {
		return false
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.status == StatusOpen
}

// HasOpen reports whether any subscription currently accepts merges.
func (a *Aggregator) HasOpen() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, sub := range a.subs {
		sub.mu.Lock()
		open := sub.status == StatusOpen
		sub.mu.Unlock()
		if open {
			return true
		}
	}
	return false
}

// OwnerOf returns the id of the open subscription already holding the
// transaction, if any.
func (a *Aggregator) OwnerOf(transactionID int64) (int64, bool) {
	if transactionID == 0 {
		return 0, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	for id, sub := range a.subs {
		sub.mu.Lock()
		_, seen := sub.records[transactionID]
		open := sub.status == StatusOpen
		sub.mu.Unlock()
		if open && seen {
			return id, true
		}
	}
	return 0, false
}

// MergeOrder folds an order-level event into the transaction snapshot. On
// first sight the event becomes the initial snapshot; afterwards every set
// field overwrites the prior value, except balance (monotonically
// non-increasing) and lifecycle state (legal transitions only), which keep
// the prior value on violation.
func (a *Aggregator) MergeOrder(subscriptionID, transactionID int64, evt *schema.ExecutionEvent) error {
	sub, err := a.openSub(subscriptionID)
	if err != nil {
		return err
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.status != StatusOpen {
		return a.terminalErr(subscriptionID)
	}
	rec, ok := sub.records[transactionID]
	if !ok {
		sub.records[transactionID] = &record{snapshot: evt.Clone(), trades: nil}
		sub.order = append(sub.order, transactionID)
		return nil
	}
	if rec.snapshot == nil {
		rec.snapshot = evt.Clone()
		return nil
	}
	a.mergeSnapshot(subscriptionID, transactionID, rec.snapshot, evt)
	return nil
}

// MergeTrade appends a copy of the event, order-info fields cleared, to the
// transaction's trade list. The snapshot itself is never touched by a
// trade-only event.
func (a *Aggregator) MergeTrade(subscriptionID, transactionID int64, evt *schema.ExecutionEvent) error {
	sub, err := a.openSub(subscriptionID)
	if err != nil {
		return err
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.status != StatusOpen {
		return a.terminalErr(subscriptionID)
	}
	rec, ok := sub.records[transactionID]
	if !ok {
		rec = &record{snapshot: nil, trades: nil}
		sub.records[transactionID] = rec
		sub.order = append(sub.order, transactionID)
	}
	rec.trades = append(rec.trades, evt.StripOrderInfo())
	return nil
}

// Close transitions the subscription to FLUSHED and returns the accumulated
// entries ordered by first-seen transaction id. The snapshot is taken under
// the subscription lock and the lock released before the caller forwards
// downstream, so a flush replay can never deadlock against concurrent
// merges; those merges observe the terminal state and are rejected cleanly.
func (a *Aggregator) Close(subscriptionID int64) ([]FlushEntry, error) {
	sub, err := a.openSub(subscriptionID)
	if err != nil {
		return nil, err
	}
	sub.mu.Lock()
	if sub.status != StatusOpen {
		sub.mu.Unlock()
		return nil, a.terminalErr(subscriptionID)
	}
	sub.status = StatusFlushed
	entries := make([]FlushEntry, 0, len(sub.order))
	for _, transactionID := range sub.order {
		rec := sub.records[transactionID]
		if rec == nil {
			continue
		}
		entries = append(entries, FlushEntry{
			TransactionID: transactionID,
			Snapshot:      rec.snapshot,
			Trades:        rec.trades,
		})
	}
	sub.records = make(map[int64]*record)
	sub.order = nil
	sub.mu.Unlock()
	return entries, nil
}

// Abort discards all accumulated state for the subscription without
// producing output.
func (a *Aggregator) Abort(subscriptionID int64) error {
	sub, err := a.openSub(subscriptionID)
	if err != nil {
		return err
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.status != StatusOpen {
		return a.terminalErr(subscriptionID)
	}
	sub.status = StatusAborted
	sub.records = make(map[int64]*record)
	sub.order = nil
	return nil
}

// Reset drops every subscription, open or terminal.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, sub := range a.subs {
		sub.mu.Lock()
		sub.status = StatusAborted
		sub.records = nil
		sub.order = nil
		sub.mu.Unlock()
	}
	a.subs = make(map[int64]*subscription)
}

func (a *Aggregator) openSub(subscriptionID int64) (*subscription, error) {
	a.mu.RLock()
	sub, ok := a.subs[subscriptionID]
	a.mu.RUnlock()
	if !ok {
		return nil, errs.New(a.venue, errs.CodeNotFound, errs.WithSubscription(subscriptionID),
			errs.WithMessage("subscription unknown"))
	}
	return sub, nil
}

func (a *Aggregator) terminalErr(subscriptionID int64) error {
	return errs.New(a.venue, errs.CodeTerminal, errs.WithSubscription(subscriptionID),
		errs.WithMessage("subscription no longer accepts merges"))
}

// mergeSnapshot applies the field-level merge; caller holds the subscription
// lock.
func (a *Aggregator) mergeSnapshot(subscriptionID, transactionID int64, snapshot, evt *schema.ExecutionEvent) {
	if evt.TransactionID != 0 {
		snapshot.TransactionID = evt.TransactionID
	}
	if evt.OriginalTransactionID != 0 {
		snapshot.OriginalTransactionID = evt.OriginalTransactionID
	}
	if evt.SecurityID != 0 {
		snapshot.SecurityID = evt.SecurityID
	}
	if evt.OrderID != 0 {
		snapshot.OrderID = evt.OrderID
	}
	if evt.OrderStringID != "" {
		snapshot.OrderStringID = evt.OrderStringID
	}
	snapshot.HasOrderInfo = snapshot.HasOrderInfo || evt.HasOrderInfo

	if evt.Balance != nil {
		if snapshot.Balance != nil && evt.Balance.GreaterThan(*snapshot.Balance) {
			observability.Log().Warn("balance increase rejected",
				observability.Field{Key: "subscription", Value: subscriptionID},
				observability.Field{Key: "transaction", Value: transactionID},
				observability.Field{Key: "current", Value: snapshot.Balance.String()},
				observability.Field{Key: "incoming", Value: evt.Balance.String()},
			)
			a.rejected("balance")
		} else {
			value := *evt.Balance
			snapshot.Balance = &value
		}
	}
	if evt.State != nil {
		if snapshot.State != nil && !snapshot.State.CanTransition(*evt.State) {
			observability.Log().Warn("illegal lifecycle transition rejected",
				observability.Field{Key: "subscription", Value: subscriptionID},
				observability.Field{Key: "transaction", Value: transactionID},
				observability.Field{Key: "current", Value: string(*snapshot.State)},
				observability.Field{Key: "incoming", Value: string(*evt.State)},
			)
			a.rejected("state")
		} else {
			value := *evt.State
			snapshot.State = &value
		}
	}
	if evt.Status != nil {
		value := *evt.Status
		snapshot.Status = &value
	}
	if evt.AssignedOrderID != nil {
		value := *evt.AssignedOrderID
		snapshot.AssignedOrderID = &value
	}
	if evt.BoardID != nil {
		value := *evt.BoardID
		snapshot.BoardID = &value
	}
	if evt.PnL != nil {
		value := *evt.PnL
		snapshot.PnL = &value
	}
	if evt.Position != nil {
		value := *evt.Position
		snapshot.Position = &value
	}
	if evt.Commission != nil {
		value := *evt.Commission
		snapshot.Commission = &value
	}
	if evt.CommissionCurrency != nil {
		value := *evt.CommissionCurrency
		snapshot.CommissionCurrency = &value
	}
	if evt.AveragePrice != nil {
		value := *evt.AveragePrice
		snapshot.AveragePrice = &value
	}
	if evt.LatencyMicros != nil {
		value := *evt.LatencyMicros
		snapshot.LatencyMicros = &value
	}
	if evt.Price != nil {
		value := *evt.Price
		snapshot.Price = &value
	}
	if evt.Quantity != nil {
		value := *evt.Quantity
		snapshot.Quantity = &value
	}
}

func (a *Aggregator) rejected(field string) {
	if a.metrics != nil {
		a.metrics.IncrementRejectedTransition(field)
	}
	observability.Telemetry().IncCounter("relay_rejected_merge_total", 1,
		map[string]string{"field": field})
}
