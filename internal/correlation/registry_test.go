package correlation

import (
	"sync"
	"testing"
)

func TestRecordSecurityAddIfAbsent(t *testing.T) {
	reg := NewRegistry()
	reg.RecordSecurity(1, 100)
	reg.RecordSecurity(1, 200)

	securityID, ok := reg.ResolveSecurity(1)
	if !ok || securityID != 100 {
		t.Fatalf("expected first security to stick, got %d ok=%v", securityID, ok)
	}
}

func TestRecordSecurityIgnoresZeroIdentifiers(t *testing.T) {
	reg := NewRegistry()
	reg.RecordSecurity(0, 100)
	reg.RecordSecurity(1, 0)
	if _, ok := reg.ResolveSecurity(0); ok {
		t.Fatal("zero transaction must not be recorded")
	}
	if _, ok := reg.ResolveSecurity(1); ok {
		t.Fatal("zero security must not be recorded")
	}
}

func TestPropagateSecurityOnReplace(t *testing.T) {
	reg := NewRegistry()
	reg.RecordSecurity(1, 100)
	reg.PropagateSecurityOnReplace(1, 2)

	securityID, ok := reg.ResolveSecurity(2)
	if !ok || securityID != 100 {
		t.Fatalf("expected propagated security 100, got %d ok=%v", securityID, ok)
	}
}

func TestPropagateSecurityUnknownOriginalIsSilent(t *testing.T) {
	reg := NewRegistry()
	reg.PropagateSecurityOnReplace(9, 10)
	if _, ok := reg.ResolveSecurity(10); ok {
		t.Fatal("unknown original must not create an entry")
	}

	// The replacement's own security still resolves later from its events.
	reg.RecordSecurity(10, 300)
	if securityID, _ := reg.ResolveSecurity(10); securityID != 300 {
		t.Fatalf("expected late-resolved security 300, got %d", securityID)
	}
}

func TestLinkOrderIDFirstWriterWins(t *testing.T) {
	reg := NewRegistry()
	reg.LinkOrderID(555, 1)
	reg.LinkOrderID(555, 2)

	transactionID, ok := reg.ResolveByOrderID(555)
	if !ok || transactionID != 1 {
		t.Fatalf("expected order 555 to stay bound to tx 1, got %d", transactionID)
	}
}

func TestLinkOrderStringIDCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	reg.LinkOrderStringID("Ord-Abc", 7)

	if transactionID, ok := reg.ResolveByOrderStringID("ORD-ABC"); !ok || transactionID != 7 {
		t.Fatalf("expected case-insensitive resolution, got %d ok=%v", transactionID, ok)
	}
	reg.LinkOrderStringID("ord-abc", 8)
	if transactionID, _ := reg.ResolveByOrderStringID("Ord-Abc"); transactionID != 7 {
		t.Fatalf("expected first writer to win across cases, got %d", transactionID)
	}
}

func TestOrderIdentifiersReverseLookup(t *testing.T) {
	reg := NewRegistry()
	reg.LinkOrderID(555, 1)
	reg.LinkOrderStringID("ORD-555", 1)

	orderID, orderStringID := reg.OrderIdentifiers(1)
	if orderID != 555 || orderStringID != "ORD-555" {
		t.Fatalf("unexpected reverse identifiers: %d %q", orderID, orderStringID)
	}
	if orderID, orderStringID = reg.OrderIdentifiers(2); orderID != 0 || orderStringID != "" {
		t.Fatal("unknown transaction must yield zero identifiers")
	}
}

func TestResetClearsAllMaps(t *testing.T) {
	reg := NewRegistry()
	reg.RecordSecurity(1, 100)
	reg.LinkOrderID(555, 1)
	reg.LinkOrderStringID("ORD-555", 1)

	reg.Reset()

	if _, ok := reg.ResolveSecurity(1); ok {
		t.Fatal("security map must be cleared")
	}
	if _, ok := reg.ResolveByOrderID(555); ok {
		t.Fatal("order id map must be cleared")
	}
	if _, ok := reg.ResolveByOrderStringID("ORD-555"); ok {
		t.Fatal("order string map must be cleared")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(tx int64) {
			defer wg.Done()
			reg.RecordSecurity(tx, tx*10)
			reg.LinkOrderID(tx*1000, tx)
			reg.ResolveByOrderID(tx * 1000)
			reg.ResolveSecurity(tx)
		}(i)
	}
	wg.Wait()
	for i := int64(1); i <= 50; i++ {
		if transactionID, ok := reg.ResolveByOrderID(i * 1000); !ok || transactionID != i {
			t.Fatalf("lost link for tx %d", i)
		}
	}
}
