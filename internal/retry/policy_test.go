package retry

import (
	"context"
	"testing"
	"time"

	"github.com/yahoon/Copr/internal/config"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != config.RetryBackoffFixed { t.Fatalf("expected fixed default mode got %s", p.Mode) }
	if p.Initial != 0 { t.Fatalf("expected no initial delay got %v", p.Initial) }
	if p.MaxAttempts != 2 { t.Fatalf("expected 2 attempts got %d", p.MaxAttempts) }
	if d := p.Delay(1); d != 0 { t.Fatalf("expected immediate retry got %v", d) }
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second { t.Fatalf("expected clamped initial 2s got %v", p.Initial) }
	if p.Mode != config.RetryBackoffLinear { t.Fatalf("expected linear mode got %s", p.Mode) }
	if p.MaxAttempts != 5 { t.Fatalf("expected 5 attempts got %d", p.MaxAttempts) }

	p = NewPolicy("bogus", 0, 0, 0)
	if p != DefaultPolicy() { t.Fatalf("expected defaults for invalid input got %+v", p) }
}

// TestFromConfig maps the build config section.
func TestFromConfig(t *testing.T) {
	p := FromConfig(config.BuildConfig{MaxAttempts: 3, RetryBackoff: config.RetryBackoffExponential, RetryInitialDelay: "1s", RetryMaxDelay: "4s"})
	if p.MaxAttempts != 3 || p.Mode != config.RetryBackoffExponential { t.Fatalf("unexpected policy %+v", p) }
	if d := p.Delay(3); d != 4*time.Second { t.Fatalf("expected 4s got %v", d) }
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(config.RetryBackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		if d := fixed.Delay(i); d != 100*time.Millisecond {
			t.Fatalf("fixed retry %d expected 100ms got %v", i, d)
		}
	}

	linear := NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5)
	cases := []struct{ retry int; want time.Duration }{{1, 100 * time.Millisecond}, {2, 200 * time.Millisecond}, {3, 250 * time.Millisecond}}
	for _, c := range cases {
		if got := linear.Delay(c.retry); got != c.want {
			t.Fatalf("linear retry %d expected %v got %v", c.retry, c.want, got)
		}
	}

	exp := NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5)
	expCases := []struct{ retry int; want time.Duration }{{1, 50 * time.Millisecond}, {2, 100 * time.Millisecond}, {3, 160 * time.Millisecond}}
	for _, c := range expCases {
		if got := exp.Delay(c.retry); got != c.want {
			t.Fatalf("exp retry %d expected %v got %v", c.retry, c.want, got)
		}
	}
}

// TestDelayEdgeCases ensures non-positive retries yield zero.
func TestDelayEdgeCases(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, 10*time.Millisecond, 20*time.Millisecond, 1)
	if d := p.Delay(0); d != 0 { t.Fatalf("retry 0 expected 0 got %v", d) }
	if d := p.Delay(-1); d != 0 { t.Fatalf("retry -1 expected 0 got %v", d) }
}

// TestWaitHonorsContext ensures a cancelled context interrupts the pause.
func TestWaitHonorsContext(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx, 1); err == nil { t.Fatalf("expected context error") }
	if err := DefaultPolicy().Wait(context.Background(), 1); err != nil { t.Fatalf("immediate wait failed: %v", err) }
}

// TestValidate covers validation error paths.
func TestValidate(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil { t.Fatalf("default should validate: %v", err) }
	if err := (Policy{Mode: config.RetryBackoffFixed, Max: time.Second, MaxAttempts: 0}).Validate(); err == nil { t.Fatalf("expected error for zero attempts") }
	if err := (Policy{Mode: config.RetryBackoffFixed, Initial: -1, Max: time.Second, MaxAttempts: 1}).Validate(); err == nil { t.Fatalf("expected error for negative initial") }
	if err := (Policy{Mode: config.RetryBackoffFixed, MaxAttempts: 1}).Validate(); err == nil { t.Fatalf("expected error for zero max") }
}
