package metrics

import (
	"testing"
	"time"

	"github.com/apex-sdk/apex-sdk-go/pkg/pipeline"
)

func TestRPCCallCounterTotalsAcrossMethods(t *testing.T) {
	m := New()
	m.RecordRPCCall("get_balance")
	m.RecordRPCCall("get_balance")
	m.RecordRPCCall("get_nonce")

	snap := m.Snapshot()
	if snap.TotalRPCCalls != 3 {
		t.Fatalf("total rpc calls = %d, want 3", snap.TotalRPCCalls)
	}
	if snap.RPCCallsByMethod["get_balance"] != 2 {
		t.Fatalf("get_balance calls = %d, want 2", snap.RPCCallsByMethod["get_balance"])
	}
	if snap.RPCCallsByMethod["get_nonce"] != 1 {
		t.Fatalf("get_nonce calls = %d, want 1", snap.RPCCallsByMethod["get_nonce"])
	}
}

func TestTransactionSuccessRate(t *testing.T) {
	m := New()
	m.RecordTransactionAttempt()
	m.RecordTransactionSuccess()
	m.RecordTransactionAttempt()
	m.RecordTransactionFailure()

	snap := m.Snapshot()
	if snap.TransactionAttempts != 2 {
		t.Fatalf("attempts = %d, want 2", snap.TransactionAttempts)
	}
	if snap.SuccessRate != 50.0 {
		t.Fatalf("success rate = %v, want 50.0", snap.SuccessRate)
	}
}

func TestCacheHitRate(t *testing.T) {
	m := New()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	snap := m.Snapshot()
	if snap.CacheHits != 3 || snap.CacheMisses != 1 {
		t.Fatalf("got hits=%d misses=%d, want 3/1", snap.CacheHits, snap.CacheMisses)
	}
	if snap.HitRate != 75.0 {
		t.Fatalf("hit rate = %v, want 75.0", snap.HitRate)
	}
}

func TestZeroAttemptsYieldsZeroRatesNotDivideByZero(t *testing.T) {
	m := New()
	snap := m.Snapshot()
	if snap.SuccessRate != 0 || snap.HitRate != 0 {
		t.Fatalf("expected zeroed rates with no activity, got %+v", snap)
	}
}

func TestOnTransitionAccumulatesPerStateTime(t *testing.T) {
	m := New()
	m.OnTransition(pipeline.StatePrepared, 100*time.Millisecond)
	m.OnTransition(pipeline.StatePrepared, 50*time.Millisecond)
	m.OnTransition(pipeline.StateBroadcast, 200*time.Millisecond)

	snap := m.Snapshot()
	if snap.StateTime["prepared"] != 150*time.Millisecond {
		t.Fatalf("prepared time = %v, want 150ms", snap.StateTime["prepared"])
	}
	if snap.StateTime["broadcast"] != 200*time.Millisecond {
		t.Fatalf("broadcast time = %v, want 200ms", snap.StateTime["broadcast"])
	}
}

func TestAvgRPCTimeComputedFromTimedCalls(t *testing.T) {
	m := New()
	m.RecordRPCCallTime("get_balance", 100*time.Millisecond)
	m.RecordRPCCallTime("get_balance", 300*time.Millisecond)

	snap := m.Snapshot()
	if snap.TotalRPCCalls != 2 {
		t.Fatalf("total rpc calls = %d, want 2", snap.TotalRPCCalls)
	}
	if snap.AvgRPCTime != 200*time.Millisecond {
		t.Fatalf("avg rpc time = %v, want 200ms", snap.AvgRPCTime)
	}
}
