package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/KamdynS/go-swarm/llm"
)

// ErrRateLimitExceeded is returned when an endpoint's retry budget is
// exhausted. The failed call is fatal; the process and sibling calls are not.
var ErrRateLimitExceeded = errors.New("rate limit retries exhausted")

// LimitError wraps the last transient error after retries are exhausted.
type LimitError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("endpoint %s: retries exhausted after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *LimitError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRateLimitExceeded) match a LimitError.
func (e *LimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// CallMetrics is a read-only snapshot of an endpoint's call history.
// It has no effect on admission decisions.
type CallMetrics struct {
	Calls       int64         `json:"calls"`
	Failures    int64         `json:"failures"`
	Retries     int64         `json:"retries"`
	TotalWait   time.Duration `json:"total_wait"`
	LastCallAt  time.Time     `json:"last_call_at,omitempty"`
	LastFailure string        `json:"last_failure,omitempty"`
}

type endpointState struct {
	bucket     *TokenBucket
	maxRetries int
	metrics    CallMetrics
}

// Limiter provides token-bucket admission control with per-endpoint
// configuration and exponential backoff. It is shared process-wide by all
// concurrent callers; all token accounting is serialized per endpoint.
type Limiter struct {
	mu        sync.Mutex
	endpoints map[string]*endpointState

	baseDelay time.Duration
	maxDelay  time.Duration
	rand      *rand.Rand
	randMu    sync.Mutex
}

// Default configuration applied to endpoints that were never configured.
const (
	defaultMaxTokens  = 10
	defaultRefillRate = 1.0
	defaultMaxRetries = 3
)

// NewLimiter creates an empty limiter with the standard backoff window.
func NewLimiter() *Limiter {
	return &Limiter{
		endpoints: make(map[string]*endpointState),
		baseDelay: 1 * time.Second,
		maxDelay:  60 * time.Second,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ConfigureEndpoint sets up admission control for a named endpoint.
// Reconfiguring an endpoint replaces its bucket and retry budget but keeps
// its call metrics.
func (l *Limiter) ConfigureEndpoint(name string, maxTokens int, refillRate float64, maxRetries int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.endpoints[name]
	st := &endpointState{
		bucket:     NewTokenBucket(maxTokens, refillRate),
		maxRetries: maxRetries,
	}
	if prev != nil {
		st.metrics = prev.metrics
	}
	l.endpoints[name] = st
}

// SetBackoff overrides the backoff window. Intended for tests and tuning.
func (l *Limiter) SetBackoff(base, max time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.baseDelay = base
	l.maxDelay = max
}

// endpoint returns the state for name, creating a default configuration when
// none exists so an unconfigured endpoint degrades instead of failing.
func (l *Limiter) endpoint(name string) *endpointState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.endpoints[name]
	if !ok {
		st = &endpointState{
			bucket:     NewTokenBucket(defaultMaxTokens, defaultRefillRate),
			maxRetries: defaultMaxRetries,
		}
		l.endpoints[name] = st
	}
	return st
}

// Acquire waits for a token on the named endpoint and returns the wait time.
func (l *Limiter) Acquire(ctx context.Context, name string, tokens int) (time.Duration, error) {
	st := l.endpoint(name)
	wait, err := st.bucket.Acquire(ctx, tokens)
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	st.metrics.TotalWait += wait
	l.mu.Unlock()
	return wait, nil
}

// backoffDelay computes the exponential backoff for a retry with ±10% jitter,
// honoring a provider-supplied retry-after when present.
func (l *Limiter) backoffDelay(retry int, err error) time.Duration {
	if e, ok := llm.AsError(err); ok && e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}

	delay := float64(l.baseDelay) * math.Pow(2, float64(retry))
	if delay > float64(l.maxDelay) {
		delay = float64(l.maxDelay)
	}

	l.randMu.Lock()
	jitter := 0.9 + l.rand.Float64()*0.2
	l.randMu.Unlock()

	return time.Duration(delay * jitter)
}

// Do executes fn under the endpoint's admission control. Each attempt,
// including retries, acquires its own token. Transient failures (throttle or
// timeout class) back off exponentially; exhausting the retry budget surfaces
// the last error wrapped in ErrRateLimitExceeded.
func Do[T any](l *Limiter, ctx context.Context, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	st := l.endpoint(name)
	var lastErr error

	for attempt := 0; attempt <= st.maxRetries; attempt++ {
		if _, err := l.Acquire(ctx, name, 1); err != nil {
			return zero, err
		}

		l.mu.Lock()
		st.metrics.Calls++
		st.metrics.LastCallAt = time.Now()
		if attempt > 0 {
			st.metrics.Retries++
		}
		l.mu.Unlock()

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		l.mu.Lock()
		st.metrics.Failures++
		st.metrics.LastFailure = err.Error()
		l.mu.Unlock()

		if !llm.IsRetryable(err) {
			return zero, err
		}
		if attempt == st.maxRetries {
			break
		}

		delay := l.backoffDelay(attempt, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, &LimitError{Endpoint: name, Attempts: st.maxRetries + 1, Err: lastErr}
}

// Metrics returns a snapshot of the named endpoint's call metrics.
func (l *Limiter) Metrics(name string) (CallMetrics, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.endpoints[name]
	if !ok {
		return CallMetrics{}, false
	}
	return st.metrics, true
}

// AllMetrics returns call metrics for every known endpoint.
func (l *Limiter) AllMetrics() map[string]CallMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]CallMetrics, len(l.endpoints))
	for name, st := range l.endpoints {
		out[name] = st.metrics
	}
	return out
}
