// Package schema defines the execution event shapes exchanged between the
// venue connector and the trading pipeline.
package schema

import (
	"github.com/shopspring/decimal"
)

// ExecutionEvent is one confirmation unit delivered by the venue connector.
//
// Identifier fields use the venue convention that zero (or the empty string)
// means "not assigned". Order-lifecycle fields are pointers so that an unset
// field stays distinguishable from a present zero value; a zero Balance is a
// fully filled order, not a missing one.
type ExecutionEvent struct {
	TransactionID         int64  `json:"transaction_id,omitempty"`
	OriginalTransactionID int64  `json:"original_transaction_id,omitempty"`
	SecurityID            int64  `json:"security_id,omitempty"`
	OrderID               int64  `json:"order_id,omitempty"`
	OrderStringID         string `json:"order_string_id,omitempty"`

	HasOrderInfo    bool `json:"has_order_info,omitempty"`
	HasTradeInfo    bool `json:"has_trade_info,omitempty"`
	CancellationAck bool `json:"cancellation_ack,omitempty"`
	MarketData      bool `json:"market_data,omitempty"`

	TradeID  int64            `json:"trade_id,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`

	Balance            *decimal.Decimal `json:"balance,omitempty"`
	State              *OrderState      `json:"state,omitempty"`
	Status             *string          `json:"status,omitempty"`
	AssignedOrderID    *int64           `json:"assigned_order_id,omitempty"`
	BoardID            *string          `json:"board_id,omitempty"`
	PnL                *decimal.Decimal `json:"pnl,omitempty"`
	Position           *decimal.Decimal `json:"position,omitempty"`
	Commission         *decimal.Decimal `json:"commission,omitempty"`
	CommissionCurrency *string          `json:"commission_currency,omitempty"`
	AveragePrice       *decimal.Decimal `json:"average_price,omitempty"`
	LatencyMicros      *int64           `json:"latency_micros,omitempty"`
}

// TradeOnly reports whether the event carries trade information without any
// order-level state.
func (e *ExecutionEvent) TradeOnly() bool {
	return e != nil && e.HasTradeInfo && !e.HasOrderInfo
}

// HasOrderIdentifier reports whether the event exposes a numeric or string
// venue order id.
func (e *ExecutionEvent) HasOrderIdentifier() bool {
	return e != nil && (e.OrderID != 0 || e.OrderStringID != "")
}

// Clone returns a deep copy of the event. Every value crossing a component
// boundary is a clone; callers never share mutable lifecycle pointers.
func (e *ExecutionEvent) Clone() *ExecutionEvent {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Price = cloneDecimal(e.Price)
	clone.Quantity = cloneDecimal(e.Quantity)
	clone.Balance = cloneDecimal(e.Balance)
	clone.State = cloneState(e.State)
	clone.Status = cloneString(e.Status)
	clone.AssignedOrderID = cloneInt64(e.AssignedOrderID)
	clone.BoardID = cloneString(e.BoardID)
	clone.PnL = cloneDecimal(e.PnL)
	clone.Position = cloneDecimal(e.Position)
	clone.Commission = cloneDecimal(e.Commission)
	clone.CommissionCurrency = cloneString(e.CommissionCurrency)
	clone.AveragePrice = cloneDecimal(e.AveragePrice)
	clone.LatencyMicros = cloneInt64(e.LatencyMicros)
	return &clone
}

// StripOrderInfo returns a clone with all order-lifecycle fields cleared,
// keeping identifiers and trade markers. Trade entries stored by the log
// aggregator use this shape so a flush never duplicates snapshot state.
func (e *ExecutionEvent) StripOrderInfo() *ExecutionEvent {
	clone := e.Clone()
	if clone == nil {
		return nil
	}
	clone.HasOrderInfo = false
	clone.Balance = nil
	clone.State = nil
	clone.Status = nil
	clone.AssignedOrderID = nil
	clone.BoardID = nil
	clone.PnL = nil
	clone.Position = nil
	clone.Commission = nil
	clone.CommissionCurrency = nil
	clone.AveragePrice = nil
	clone.LatencyMicros = nil
	return clone
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneState(s *OrderState) *OrderState {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt64(i *int64) *int64 {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
