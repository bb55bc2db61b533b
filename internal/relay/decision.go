package relay

import "github.com/coachpo/execrelay/internal/schema"

// action tags the routing outcome for one inbound execution event.
type action int

const (
	actForward action = iota
	actSuspendOrderID
	actSuspendOrderStr
	actMerge
	actDrop
)

// outcome is the result of classifying one event against the ordered
// decision rules. Classification only reads shared state; every write it
// requires is described here and applied afterwards, so the rule evaluation
// stays testable in isolation.
type outcome struct {
	action action

	// passthrough marks rule (a) events that skip correlation entirely.
	passthrough bool
	// dropReason explains an actDrop outcome.
	dropReason string

	// ownerTx is the resolved owning order transaction.
	ownerTx int64
	// subscriptionID is the log subscription receiving the merge.
	subscriptionID int64
	// mergeOrder / mergeTrade select the aggregator operations to run.
	mergeOrder bool
	mergeTrade bool

	// recordSecurity registers the event's own (transaction, security) pair.
	recordSecurity bool
	// fillSecurity stamps a registry-resolved security onto the event.
	fillSecurity int64
	// linkTx binds the event's order identifiers to this transaction.
	linkTx int64
	// clearOriginal wipes a bulk-query id masquerading as the owner.
	clearOriginal bool
	// setOriginal stamps the re-derived owner onto the event.
	setOriginal int64

	// suspendOrderID / suspendOrderStr carry the buffer key for parking.
	suspendOrderID  int64
	suspendOrderStr string
}

// decide classifies the event against the ordered rule list, first match
// wins. It never mutates the event or any component.
func (c *Controller) decide(evt *schema.ExecutionEvent) outcome {
	var out outcome

	// (a) Market data and pure cancellation acks carry no lifecycle state
	// and need no correlation.
	if evt.MarketData || evt.CancellationAck {
		out.action = actForward
		out.passthrough = true
		return out
	}

	// (b) Record the event's own security, or fill an unset one from the
	// registry.
	if evt.TransactionID != 0 && evt.SecurityID != 0 {
		out.recordSecurity = true
	}
	if evt.SecurityID == 0 {
		lookupTx := evt.OriginalTransactionID
		if lookupTx == 0 {
			lookupTx = evt.TransactionID
		}
		if lookupTx != 0 {
			if securityID, ok := c.registry.ResolveSecurity(lookupTx); ok {
				out.fillSecurity = securityID
			}
		}
	}

	// (c) First exposure of a transaction id together with an order
	// identifier registers the link. A bulk-query id never qualifies as the
	// owning transaction here.
	if evt.HasOrderIdentifier() {
		linkTx := evt.TransactionID
		if linkTx == 0 && evt.OriginalTransactionID != 0 && !c.isTracked(evt.OriginalTransactionID) {
			linkTx = evt.OriginalTransactionID
		}
		out.linkTx = linkTx
	}

	// (d) A trade replying to a bulk status query must not inherit the
	// query id as its owner; clear it so (e) re-derives the true owner.
	originalTx := evt.OriginalTransactionID
	if originalTx != 0 && evt.HasTradeInfo && c.isTracked(originalTx) {
		out.clearOriginal = true
		originalTx = 0
	}

	// (e) Resolve the owning order transaction.
	ownerTx := int64(0)
	if originalTx != 0 && !c.isTracked(originalTx) {
		ownerTx = originalTx
	}
	if ownerTx == 0 && evt.TransactionID != 0 {
		ownerTx = evt.TransactionID
	}
	idResolved := out.linkTx != 0
	if ownerTx == 0 {
		if resolved, ok := c.registry.ResolveByOrderID(evt.OrderID); ok {
			ownerTx = resolved
			idResolved = true
		} else if resolved, ok := c.registry.ResolveByOrderStringID(evt.OrderStringID); ok {
			ownerTx = resolved
			idResolved = true
		}
		if ownerTx != 0 {
			out.setOriginal = ownerTx
			if out.fillSecurity == 0 && evt.SecurityID == 0 {
				if securityID, ok := c.registry.ResolveSecurity(ownerTx); ok {
					out.fillSecurity = securityID
				}
			}
		}
	}

	// (f) A trade whose owning order is not registered anywhere parks until
	// the order-info event arrives. Without any order identifier the owner
	// can never be found and the event is unrecoverable.
	if ownerTx == 0 {
		if evt.TradeOnly() && evt.OrderID != 0 {
			out.action = actSuspendOrderID
			out.suspendOrderID = evt.OrderID
			return out
		}
		if evt.TradeOnly() && evt.OrderStringID != "" {
			out.action = actSuspendOrderStr
			out.suspendOrderStr = evt.OrderStringID
			return out
		}
		out.action = actDrop
		out.dropReason = "unresolvable correlation"
		return out
	}
	out.ownerTx = ownerTx
	if evt.TradeOnly() && !idResolved {
		securityKnown := evt.SecurityID != 0 || out.fillSecurity != 0
		if !securityKnown {
			if evt.OrderID != 0 {
				out.action = actSuspendOrderID
				out.suspendOrderID = evt.OrderID
				return out
			}
			if evt.OrderStringID != "" {
				out.action = actSuspendOrderStr
				out.suspendOrderStr = evt.OrderStringID
				return out
			}
		}
	}

	// (g) With no log subscription open the event flows straight through.
	if !c.translog.HasOpen() {
		out.action = actForward
		return out
	}

	// (h) Merge into the owning subscription: direct lookup by the literal
	// reply id, or via the transaction the subscription already holds.
	subscriptionID := int64(0)
	if evt.OriginalTransactionID != 0 && c.translog.IsOpen(evt.OriginalTransactionID) {
		subscriptionID = evt.OriginalTransactionID
	} else if owner, ok := c.translog.OwnerOf(ownerTx); ok {
		subscriptionID = owner
	}
	if subscriptionID == 0 {
		out.action = actForward
		return out
	}
	out.action = actMerge
	out.subscriptionID = subscriptionID
	out.mergeOrder = evt.HasOrderInfo
	out.mergeTrade = evt.HasTradeInfo
	return out
}

// applyCorrelation performs the registry writes and event mutations the
// decision demanded. Run before acting on the routing outcome.
func (c *Controller) applyCorrelation(out outcome, evt *schema.ExecutionEvent) {
	if out.passthrough {
		return
	}
	if out.recordSecurity {
		c.registry.RecordSecurity(evt.TransactionID, evt.SecurityID)
	}
	if out.fillSecurity != 0 {
		evt.SecurityID = out.fillSecurity
	}
	if out.linkTx != 0 {
		if evt.OrderID != 0 {
			c.registry.LinkOrderID(evt.OrderID, out.linkTx)
		}
		if evt.OrderStringID != "" {
			c.registry.LinkOrderStringID(evt.OrderStringID, out.linkTx)
		}
	}
	if out.clearOriginal {
		evt.OriginalTransactionID = 0
	}
	if out.setOriginal != 0 {
		evt.OriginalTransactionID = out.setOriginal
	}
}
