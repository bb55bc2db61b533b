package schema

import "testing"

func TestNewCommandStampsEnvelope(t *testing.T) {
	cmd, err := NewCommand(CommandRegisterOrder, RegisterOrderPayload{TransactionID: 5, SecurityID: 9})
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	if cmd.MessageID == "" {
		t.Fatal("expected message id")
	}
	if cmd.Timestamp.IsZero() {
		t.Fatal("expected timestamp")
	}

	var payload RegisterOrderPayload
	if err := cmd.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if payload.TransactionID != 5 || payload.SecurityID != 9 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestDecodePayloadRejectsEmpty(t *testing.T) {
	cmd, err := NewCommand(CommandReset, nil)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	var payload RegisterOrderPayload
	if err := cmd.DecodePayload(&payload); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if err := (Command{Payload: []byte("{}")}).DecodePayload(nil); err == nil {
		t.Fatal("expected error for nil destination")
	}
}
