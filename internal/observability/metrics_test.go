package observability

import "testing"

func TestRuntimeMetricsSnapshotCopies(t *testing.T) {
	metrics := NewRuntimeMetrics()
	metrics.RecordParkedDepth("order_id", 3)
	metrics.IncrementDropped("unresolvable")
	metrics.IncrementDropped("unresolvable")
	metrics.IncrementRejectedTransition("balance")
	metrics.IncrementFlushedBatches()
	metrics.IncrementForwarded()

	snapshot := metrics.Snapshot()
	if snapshot.ParkedDepth["order_id"] != 3 {
		t.Fatalf("expected parked depth 3, got %d", snapshot.ParkedDepth["order_id"])
	}
	if snapshot.DroppedEvents["unresolvable"] != 2 {
		t.Fatalf("expected 2 drops, got %d", snapshot.DroppedEvents["unresolvable"])
	}
	if snapshot.RejectedTransitions["balance"] != 1 {
		t.Fatalf("expected 1 rejected transition, got %d", snapshot.RejectedTransitions["balance"])
	}
	if snapshot.FlushedBatches != 1 || snapshot.ForwardedEvents != 1 {
		t.Fatalf("unexpected counters: %+v", snapshot)
	}

	snapshot.ParkedDepth["order_id"] = 99
	if metrics.Snapshot().ParkedDepth["order_id"] != 3 {
		t.Fatal("snapshot must be detached from internal state")
	}
}

func TestSetMetricsNilRestoresNoop(t *testing.T) {
	SetMetrics(nil)
	Telemetry().IncCounter("noop", 1, nil)
}
