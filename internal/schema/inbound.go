package schema

// InboundKind classifies messages arriving from the venue connector.
type InboundKind string

const (
	// InboundExecution identifies an execution event.
	InboundExecution InboundKind = "Execution"
	// InboundSubscriptionResponse identifies the reply to a status subscription request.
	InboundSubscriptionResponse InboundKind = "SubscriptionResponse"
	// InboundSubscriptionFinished identifies the completion of a log replay.
	InboundSubscriptionFinished InboundKind = "SubscriptionFinished"
	// InboundSubscriptionOnline identifies the transition of a replay to live mode.
	InboundSubscriptionOnline InboundKind = "SubscriptionOnline"
	// InboundPassthrough identifies a message kind the relay does not interpret.
	InboundPassthrough InboundKind = "Passthrough"
)

// SubscriptionNotice reports lifecycle changes for a log subscription.
type SubscriptionNotice struct {
	OriginalTransactionID int64  `json:"original_transaction_id"`
	ErrorMessage          string `json:"error_message,omitempty"`
}

// Failed reports whether the notice carries a request-level error.
func (n SubscriptionNotice) Failed() bool {
	return n.ErrorMessage != ""
}

// Inbound is the union of message shapes delivered by the connector.
type Inbound struct {
	Kind   InboundKind         `json:"kind"`
	Exec   *ExecutionEvent     `json:"exec,omitempty"`
	Notice *SubscriptionNotice `json:"notice,omitempty"`
	Raw    any                 `json:"raw,omitempty"`
}

// ExecInbound wraps an execution event for connector delivery.
func ExecInbound(evt *ExecutionEvent) Inbound {
	return Inbound{Kind: InboundExecution, Exec: evt, Notice: nil, Raw: nil}
}

// NoticeInbound wraps a subscription lifecycle notice.
func NoticeInbound(kind InboundKind, notice SubscriptionNotice) Inbound {
	return Inbound{Kind: kind, Exec: nil, Notice: &notice, Raw: nil}
}

// PassthroughInbound wraps an uninterpreted message for transparent delivery.
func PassthroughInbound(raw any) Inbound {
	return Inbound{Kind: InboundPassthrough, Exec: nil, Notice: nil, Raw: raw}
}
