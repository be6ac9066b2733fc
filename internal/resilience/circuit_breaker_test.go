package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_StateClosed(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	if cb.State() != StateClosed {
		t.Errorf("Expected initial state to be Closed, got %s", cb.State())
	}
	if !cb.allowRequest() {
		t.Error("Expected to allow request in Closed state")
	}
	if cb.Name() != "test" {
		t.Errorf("Expected name 'test', got '%s'", cb.Name())
	}
}

func TestCircuitBreaker_OpenAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	cb.record(false)
	cb.record(false)
	if cb.State() != StateClosed {
		t.Error("Expected state to still be Closed after 2 failures")
	}

	cb.record(false)
	if cb.State() != StateOpen {
		t.Error("Expected state to be Open after 3 failures")
	}
	if cb.allowRequest() {
		t.Error("Expected to not allow request in Open state")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	cb.record(false)
	cb.record(false)
	cb.record(true)
	cb.record(false)
	cb.record(false)

	if cb.State() != StateClosed {
		t.Error("Expected non-consecutive failures to keep the circuit Closed")
	}
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 50*time.Millisecond)

	cb.record(false)
	cb.record(false)
	cb.record(false)
	if cb.State() != StateOpen {
		t.Fatal("Expected circuit to be Open")
	}

	time.Sleep(80 * time.Millisecond)

	if !cb.allowRequest() {
		t.Error("Expected to allow request after timeout (HalfOpen)")
	}
	if state := cb.Stats().State; state != StateHalfOpen {
		t.Errorf("Expected state to be HalfOpen, got %s", state)
	}

	// Probe budget is bounded
	cb.allowRequest()
	cb.allowRequest()
	if cb.allowRequest() {
		t.Error("Expected half-open probe budget to be exhausted")
	}
}

func TestCircuitBreaker_CloseAfterSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 50*time.Millisecond)

	cb.record(false)
	cb.record(false)
	cb.record(false)

	time.Sleep(80 * time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return nil }); err != nil {
			t.Fatalf("Expected probe %d to pass, got %v", i, err)
		}
	}

	if cb.State() != StateClosed {
		t.Errorf("Expected state to be Closed after successes in HalfOpen, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpenAfterFailureInHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 50*time.Millisecond)

	cb.record(false)
	cb.record(false)
	cb.record(false)

	time.Sleep(80 * time.Millisecond)

	err := cb.Call(func() error { return errors.New("still down") })
	if err == nil {
		t.Fatal("Expected probe error")
	}
	if cb.State() != StateOpen {
		t.Error("Expected state to be Open after failure in HalfOpen")
	}
}

func TestCircuitBreaker_Call(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	if err := cb.Call(func() error { return nil }); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := cb.Call(func() error { return errors.New("test error") }); err == nil {
		t.Error("Expected error from failed call")
	}
}

func TestCircuitBreaker_CallOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 1*time.Second)

	cb.record(false)

	called := false
	err := cb.Call(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Expected function not to run while the circuit is open")
	}
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	cb.record(true)
	cb.record(true)
	cb.record(false)

	stats := cb.Stats()
	if stats.State != StateClosed {
		t.Errorf("Expected state Closed, got %s", stats.State)
	}
	if stats.Requests != 3 {
		t.Errorf("Expected 3 requests, got %d", stats.Requests)
	}
	if stats.Failures != 1 || stats.Consecutive != 1 {
		t.Errorf("Expected 1 failure, got %d total and %d consecutive", stats.Failures, stats.Consecutive)
	}
	if rate := stats.FailureRate(); rate < 33.0 || rate > 34.0 {
		t.Errorf("Expected failure rate around 33.33%%, got %.2f%%", rate)
	}
	if !stats.OpenedAt.IsZero() {
		t.Error("Expected no open time for a breaker that never tripped")
	}
	if (BreakerStats{}).FailureRate() != 0 {
		t.Error("Expected zero failure rate without requests")
	}
}

func TestCircuitBreaker_StatsRecordTrip(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 1*time.Second)

	before := time.Now()
	cb.record(false)
	cb.record(false)

	stats := cb.Stats()
	if stats.State != StateOpen {
		t.Fatalf("Expected state Open, got %s", stats.State)
	}
	if stats.OpenedAt.Before(before) {
		t.Errorf("Expected open time after %v, got %v", before, stats.OpenedAt)
	}
	if stats.Consecutive != 2 {
		t.Errorf("Expected 2 consecutive failures, got %d", stats.Consecutive)
	}
}
