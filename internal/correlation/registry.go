// Package correlation maintains the identifier maps linking venue order ids
// and security ids to pipeline transaction ids.
package correlation

import (
	"strings"
	"sync"
)

// Registry holds the security-by-transaction map and the two bidirectional
// order-identifier maps. All entries are add-if-absent: the first writer wins
// and a later event can never rebind an identifier to a different transaction.
type Registry struct {
	mu             sync.RWMutex
	securityByTx   map[int64]int64
	txByOrderID    map[int64]int64
	orderIDByTx    map[int64]int64
	txByOrderStr   map[string]int64
	orderStrByTx   map[int64]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := new(Registry)
	r.securityByTx = make(map[int64]int64)
	r.txByOrderID = make(map[int64]int64)
	r.orderIDByTx = make(map[int64]int64)
	r.txByOrderStr = make(map[string]int64)
	r.orderStrByTx = make(map[int64]string)
	return r
}

// RecordSecurity stores the security traded by the transaction, keeping any
// earlier value.
func (r *Registry) RecordSecurity(transactionID, securityID int64) {
	if transactionID == 0 || securityID == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.securityByTx[transactionID]; !ok {
		r.securityByTx[transactionID] = securityID
	}
}

// PropagateSecurityOnReplace carries the original transaction's security over
// to its replacement. When the original security is still unknown this is a
// silent no-op; the replacement resolves from its own events later.
func (r *Registry) PropagateSecurityOnReplace(originalTransactionID, transactionID int64) {
	if originalTransactionID == 0 || transactionID == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	securityID, ok := r.securityByTx[originalTransactionID]
	if !ok {
		return
	}
	if _, ok := r.securityByTx[transactionID]; !ok {
		r.securityByTx[transactionID] = securityID
	}
}

// ResolveSecurity returns the security recorded for the transaction.
func (r *Registry) ResolveSecurity(transactionID int64) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	securityID, ok := r.securityByTx[transactionID]
	return securityID, ok
}

// LinkOrderID binds the numeric venue order id to the transaction, first
// writer wins.
func (r *Registry) LinkOrderID(orderID, transactionID int64) {
	if orderID == 0 || transactionID == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txByOrderID[orderID]; ok {
		return
	}
	r.txByOrderID[orderID] = transactionID
	if _, ok := r.orderIDByTx[transactionID]; !ok {
		r.orderIDByTx[transactionID] = orderID
	}
}

// LinkOrderStringID binds the textual venue order id to the transaction,
// first writer wins. Matching is case-insensitive.
func (r *Registry) LinkOrderStringID(orderStringID string, transactionID int64) {
	key := normalizeOrderString(orderStringID)
	if key == "" || transactionID == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txByOrderStr[key]; ok {
		return
	}
	r.txByOrderStr[key] = transactionID
	if _, ok := r.orderStrByTx[transactionID]; !ok {
		r.orderStrByTx[transactionID] = orderStringID
	}
}

// ResolveByOrderID returns the transaction owning the numeric order id.
func (r *Registry) ResolveByOrderID(orderID int64) (int64, bool) {
	if orderID == 0 {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	transactionID, ok := r.txByOrderID[orderID]
	return transactionID, ok
}

// ResolveByOrderStringID returns the transaction owning the textual order id.
func (r *Registry) ResolveByOrderStringID(orderStringID string) (int64, bool) {
	key := normalizeOrderString(orderStringID)
	if key == "" {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	transactionID, ok := r.txByOrderStr[key]
	return transactionID, ok
}

// OrderIdentifiers returns the venue identifiers recorded for the
// transaction, via the reverse indexes. Used when replaying a flushed
// snapshot that predates identifier assignment.
func (r *Registry) OrderIdentifiers(transactionID int64) (orderID int64, orderStringID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orderIDByTx[transactionID], r.orderStrByTx[transactionID]
}

// Reset clears all three maps.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.securityByTx = make(map[int64]int64)
	r.txByOrderID = make(map[int64]int64)
	r.orderIDByTx = make(map[int64]int64)
	r.txByOrderStr = make(map[string]int64)
	r.orderStrByTx = make(map[int64]string)
}

func normalizeOrderString(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
