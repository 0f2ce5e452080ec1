package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KamdynS/go-swarm/llm"
)

func transientErr() error {
	return llm.NewError(llm.ProviderOpenAI, llm.ErrorTypeRateLimited, "throttled")
}

func fatalErr() error {
	return llm.NewError(llm.ProviderOpenAI, llm.ErrorTypeAuthentication, "bad key")
}

func newTestLimiter(maxRetries int) *Limiter {
	l := NewLimiter()
	l.SetBackoff(time.Millisecond, 10*time.Millisecond)
	l.ConfigureEndpoint("model", 100, 1000.0, maxRetries)
	return l
}

func TestDo_Success(t *testing.T) {
	l := newTestLimiter(3)

	result, err := Do(l, context.Background(), "model", func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if result != "ok" {
		t.Errorf("Expected ok, got %q", result)
	}

	m, ok := l.Metrics("model")
	if !ok {
		t.Fatal("Expected metrics for configured endpoint")
	}
	if m.Calls != 1 || m.Failures != 0 {
		t.Errorf("Expected 1 call 0 failures, got %+v", m)
	}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	l := newTestLimiter(3)

	attempts := 0
	result, err := Do(l, context.Background(), "model", func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", transientErr()
		}
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if result != "recovered" {
		t.Errorf("Expected recovered, got %q", result)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}

	m, _ := l.Metrics("model")
	if m.Calls != 3 || m.Failures != 2 || m.Retries != 2 {
		t.Errorf("Unexpected metrics: %+v", m)
	}
}

func TestDo_ExhaustionSurfacesRateLimitExceeded(t *testing.T) {
	l := newTestLimiter(2)

	attempts := 0
	_, err := Do(l, context.Background(), "model", func(ctx context.Context) (string, error) {
		attempts++
		return "", transientErr()
	})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("Expected ErrRateLimitExceeded, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected maxRetries+1 = 3 attempts, got %d", attempts)
	}

	// The last transient error is preserved in the chain.
	if !llm.IsRateLimited(err) {
		t.Errorf("Expected underlying rate-limited error, got %v", err)
	}
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	l := newTestLimiter(3)

	attempts := 0
	_, err := Do(l, context.Background(), "model", func(ctx context.Context) (string, error) {
		attempts++
		return "", fatalErr()
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if errors.Is(err, ErrRateLimitExceeded) {
		t.Error("Non-retryable failure should not report retry exhaustion")
	}
	if attempts != 1 {
		t.Errorf("Expected a single attempt, got %d", attempts)
	}
}

func TestDo_UnconfiguredEndpointGetsDefaults(t *testing.T) {
	l := NewLimiter()
	l.SetBackoff(time.Millisecond, 10*time.Millisecond)

	result, err := Do(l, context.Background(), "never-configured", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}

	if _, ok := l.Metrics("never-configured"); !ok {
		t.Error("Expected default configuration to be recorded")
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	l := NewLimiter()
	l.SetBackoff(time.Second, time.Second)
	l.ConfigureEndpoint("model", 100, 1000.0, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Do(l, ctx, "model", func(ctx context.Context) (string, error) {
		return "", transientErr()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context deadline error, got %v", err)
	}
}

func TestConfigureEndpoint_KeepsMetrics(t *testing.T) {
	l := newTestLimiter(3)

	Do(l, context.Background(), "model", func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	l.ConfigureEndpoint("model", 50, 10.0, 5)

	m, _ := l.Metrics("model")
	if m.Calls != 1 {
		t.Errorf("Expected metrics preserved across reconfigure, got %+v", m)
	}
}

func TestAllMetrics(t *testing.T) {
	l := newTestLimiter(1)
	l.ConfigureEndpoint("other", 10, 10.0, 1)

	all := l.AllMetrics()
	if len(all) != 2 {
		t.Errorf("Expected 2 endpoints, got %d", len(all))
	}
}

func TestAcquire_RecordsWait(t *testing.T) {
	l := NewLimiter()
	l.ConfigureEndpoint("slow", 1, 100.0, 0)
	ctx := context.Background()

	if _, err := l.Acquire(ctx, "slow", 1); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := l.Acquire(ctx, "slow", 1); err != nil {
		t.Fatalf("Second acquire failed: %v", err)
	}

	m, _ := l.Metrics("slow")
	if m.TotalWait <= 0 {
		t.Errorf("Expected cumulative wait to be recorded, got %v", m.TotalWait)
	}
}
