package ratelimit

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTenantLimiter_BurstThenExceeded(t *testing.T) {
	l := NewTenantLimiter()
	cfg := TenantConfig{RequestsPerMinute: 10, BurstLimit: 5}
	now := time.UnixMilli(1_000_000)

	for i := 0; i < 15; i++ {
		if err := l.Check("tenant-a", cfg, now.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatalf("call %d should succeed: %v", i+1, err)
		}
	}

	err := l.Check("tenant-a", cfg, now.Add(20*time.Millisecond))
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("16th call should fail with exceeded, got %v", err)
	}
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) || rlErr.Limit != 10 || rlErr.TenantID != "tenant-a" {
		t.Errorf("unexpected error detail: %+v", rlErr)
	}
}

func TestTenantLimiter_WindowSlides(t *testing.T) {
	l := NewTenantLimiter()
	cfg := TenantConfig{RequestsPerMinute: 2, BurstLimit: 0}
	now := time.UnixMilli(10_000_000)

	if err := l.Check("t", cfg, now); err != nil {
		t.Fatal(err)
	}
	if err := l.Check("t", cfg, now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := l.Check("t", cfg, now.Add(2*time.Second)); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected exceeded, got %v", err)
	}

	// The first hit falls out of the window.
	if err := l.Check("t", cfg, now.Add(60*time.Second+time.Millisecond)); err != nil {
		t.Fatalf("expected admission after slide, got %v", err)
	}
	if got := l.WindowCount("t"); got != 2 {
		t.Errorf("window count = %d, want 2", got)
	}
}

func TestTenantLimiter_TenantsAreIndependent(t *testing.T) {
	l := NewTenantLimiter()
	cfg := TenantConfig{RequestsPerMinute: 1}
	now := time.Now()

	if err := l.Check("a", cfg, now); err != nil {
		t.Fatal(err)
	}
	if err := l.Check("a", cfg, now); err == nil {
		t.Fatal("tenant a should be limited")
	}
	if err := l.Check("b", cfg, now); err != nil {
		t.Fatalf("tenant b must not share tenant a's window: %v", err)
	}
}

func TestTenantLimiter_CircuitOpenAndReset(t *testing.T) {
	l := NewTenantLimiter()
	cfg := DefaultTenantConfig()
	now := time.UnixMilli(2_000_000)

	for i := 0; i < 5; i++ {
		l.RecordFailure("tenant-a")
	}

	err := l.Check("tenant-a", cfg, now)
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) || rlErr.Kind != KindCircuitOpen {
		t.Fatalf("expected circuit open, got %v", err)
	}
	if got, want := rlErr.Until.UnixMilli(), now.UnixMilli()+30000; got != want {
		t.Errorf("until_ms = %d, want %d", got, want)
	}
	if l.WindowCount("tenant-a") != 0 {
		t.Error("open circuit must not record a hit")
	}

	if err := l.Check("tenant-a", cfg, now.Add(30001*time.Millisecond)); err != nil {
		t.Fatalf("check after cooldown should succeed: %v", err)
	}
	if got := l.Failures("tenant-a"); got != 0 {
		t.Errorf("failures after cooldown = %d, want 0", got)
	}
}

func TestTenantLimiter_SuccessResetsFailures(t *testing.T) {
	l := NewTenantLimiter()
	for i := 0; i < 4; i++ {
		l.RecordFailure("t")
	}
	l.RecordSuccess("t")
	l.RecordFailure("t")
	if err := l.Check("t", DefaultTenantConfig(), time.Now()); err != nil {
		t.Errorf("circuit should be closed: %v", err)
	}
}

func TestTenantLimiter_DropsIdleTenants(t *testing.T) {
	l := NewTenantLimiter()
	cfg := DefaultTenantConfig()
	now := time.UnixMilli(3_000_000)

	for i := 0; i < 100; i++ {
		if err := l.Check(fmt.Sprintf("random-%d", i), cfg, now); err != nil {
			t.Fatal(err)
		}
	}
	l.RecordFailure("flaky")
	if got := l.Tenants(); got != 101 {
		t.Fatalf("Tenants() = %d, want 101", got)
	}

	// Inside the window nothing is dropped.
	if err := l.Check("live", cfg, now.Add(30*time.Second)); err != nil {
		t.Fatal(err)
	}
	if got := l.Tenants(); got != 102 {
		t.Fatalf("Tenants() within window = %d, want 102", got)
	}

	if err := l.Check("live", cfg, now.Add(61*time.Second)); err != nil {
		t.Fatal(err)
	}
	if got := l.Tenants(); got != 2 {
		t.Errorf("Tenants() after a window = %d, want 2 (live and flaky)", got)
	}
	if got := l.Failures("flaky"); got != 1 {
		t.Errorf("Failures(flaky) = %d, want 1", got)
	}
	if got := l.WindowCount("live"); got != 2 {
		t.Errorf("WindowCount(live) = %d, want 2", got)
	}
}

func TestDefaultTenantConfig(t *testing.T) {
	cfg := DefaultTenantConfig()
	if cfg.RequestsPerMinute != 120 || cfg.BurstLimit != 20 || cfg.QuotaBytes != 5*1024*1024*1024 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.EffectiveLimit() != 140 {
		t.Errorf("effective limit = %d, want 140", cfg.EffectiveLimit())
	}
}
