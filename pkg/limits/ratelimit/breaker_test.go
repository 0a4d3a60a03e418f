package ratelimit

import (
	"testing"
	"time"
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(0, 0)
	now := time.UnixMilli(1_000_000)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	if _, ok := b.Allow(now); !ok {
		t.Fatal("four failures must not open the circuit")
	}

	b.RecordFailure()
	until, ok := b.Allow(now)
	if ok {
		t.Fatal("five failures must open the circuit")
	}
	if want := now.Add(30 * time.Second); !until.Equal(want) {
		t.Errorf("until = %v, want %v", until, want)
	}
	if !b.Open(now.Add(29 * time.Second)) {
		t.Error("circuit should still be open during cooldown")
	}
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	b := NewCircuitBreaker(5, time.Second)
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()
	b.RecordFailure()
	if got := b.Failures(); got != 1 {
		t.Errorf("failures = %d, want 1", got)
	}
	if _, ok := b.Allow(time.Now()); !ok {
		t.Error("circuit should be closed")
	}
}

func TestCircuitBreaker_ClosesAfterCooldown(t *testing.T) {
	b := NewCircuitBreaker(5, 30*time.Second)
	now := time.UnixMilli(5_000)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	if _, ok := b.Allow(now); ok {
		t.Fatal("expected open circuit")
	}
	if _, ok := b.Allow(now.Add(30*time.Second - time.Millisecond)); ok {
		t.Fatal("circuit must stay open until the cooldown ends")
	}
	if _, ok := b.Allow(now.Add(30*time.Second + time.Millisecond)); !ok {
		t.Fatal("circuit should close after cooldown")
	}
	if got := b.Failures(); got != 0 {
		t.Errorf("failures after close = %d, want 0", got)
	}
}
