// Control-plane command structures consumed from the pipeline side.
package schema

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// CommandType enumerates supported pipeline commands.
type CommandType string

const (
	// CommandReset discards every piece of correlation state atomically.
	CommandReset CommandType = "Reset"
	// CommandRegisterOrder announces a new order transaction and its security.
	CommandRegisterOrder CommandType = "RegisterOrder"
	// CommandReplaceOrder announces a single-order replacement.
	CommandReplaceOrder CommandType = "ReplaceOrder"
	// CommandPairReplaceOrder announces a two-legged replacement.
	CommandPairReplaceOrder CommandType = "PairReplaceOrder"
	// CommandSubscribeOrderStatus opens or closes a bulk order status query.
	CommandSubscribeOrderStatus CommandType = "SubscribeOrderStatus"
)

// Command is the envelope exchanged over the command channel.
type Command struct {
	MessageID string          `json:"message_id"`
	Type      CommandType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewCommand stamps an envelope around the payload, encoding it with the
// canonical codec.
func NewCommand(typ CommandType, payload any) (Command, error) {
	cmd := Command{
		MessageID: uuid.NewString(),
		Type:      typ,
		Payload:   nil,
		Timestamp: time.Now().UTC(),
	}
	if payload == nil {
		return cmd, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Command{}, fmt.Errorf("command payload encode: %w", err)
	}
	cmd.Payload = raw
	return cmd, nil
}

// DecodePayload unmarshals the payload into the provided destination.
func (c Command) DecodePayload(dest any) error {
	if len(c.Payload) == 0 {
		return fmt.Errorf("command payload empty")
	}
	if dest == nil {
		return fmt.Errorf("command payload destination nil")
	}
	if err := json.Unmarshal(c.Payload, dest); err != nil {
		return fmt.Errorf("command payload decode: %w", err)
	}
	return nil
}

// RegisterOrderPayload announces the security an order transaction trades.
type RegisterOrderPayload struct {
	TransactionID int64 `json:"transaction_id"`
	SecurityID    int64 `json:"security_id"`
}

// ReplaceOrderPayload links a replacement transaction to the one it replaces.
type ReplaceOrderPayload struct {
	OriginalTransactionID int64 `json:"original_transaction_id"`
	TransactionID         int64 `json:"transaction_id"`
}

// PairReplaceOrderPayload carries both legs of a paired replacement.
type PairReplaceOrderPayload struct {
	Leg1 ReplaceOrderPayload `json:"leg1"`
	Leg2 ReplaceOrderPayload `json:"leg2"`
}

// SubscribeOrderStatusPayload opens (or closes) a bulk order status query.
type SubscribeOrderStatusPayload struct {
	TransactionID int64 `json:"transaction_id"`
	Subscribe     bool  `json:"subscribe"`
}
