package schema

// OrderState enumerates order lifecycle states reported by the venue.
type OrderState string

const (
	// StateNew indicates the order was accepted but not yet working.
	StateNew OrderState = "New"
	// StateActive indicates the order is working on the book.
	StateActive OrderState = "Active"
	// StatePartiallyFilled indicates partial execution with remaining balance.
	StatePartiallyFilled OrderState = "PartiallyFilled"
	// StateFilled indicates complete execution.
	StateFilled OrderState = "Filled"
	// StateCancelled indicates cancellation before completion.
	StateCancelled OrderState = "Cancelled"
	// StateRejected indicates the venue refused the order.
	StateRejected OrderState = "Rejected"
	// StateExpired indicates the order lapsed without completing.
	StateExpired OrderState = "Expired"
)

// legalTransitions is the order-lifecycle transition table. Snapshots merged
// by the log aggregator may only move along these edges; anything else is a
// confirmation delivered out of causal order and must be rejected.
var legalTransitions = map[OrderState]map[OrderState]struct{}{
	StateNew: {
		StateActive:          {},
		StatePartiallyFilled: {},
		StateFilled:          {},
		StateCancelled:       {},
		StateRejected:        {},
		StateExpired:         {},
	},
	StateActive: {
		StatePartiallyFilled: {},
		StateFilled:          {},
		StateCancelled:       {},
		StateExpired:         {},
	},
	StatePartiallyFilled: {
		StateFilled:    {},
		StateCancelled: {},
		StateExpired:   {},
	},
	StateFilled:    {},
	StateCancelled: {},
	StateRejected:  {},
	StateExpired:   {},
}

// Valid reports whether the state is a known lifecycle state.
func (s OrderState) Valid() bool {
	_, ok := legalTransitions[s]
	return ok
}

// Terminal reports whether no further transitions leave the state.
func (s OrderState) Terminal() bool {
	next, ok := legalTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. Re-asserting the current state is always allowed.
func (s OrderState) CanTransition(next OrderState) bool {
	if s == next {
		return true
	}
	allowed, ok := legalTransitions[s]
	if !ok {
		return false
	}
	_, ok = allowed[next]
	return ok
}
