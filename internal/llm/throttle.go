package llm

import (
	"context"
	"math"
	"sync"
	"time"
)

// pacer caps outbound model calls at a fixed request rate with a small
// burst allowance. A nil pacer is disabled and admits every call.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	capacity float64
	tokens   float64
	last     time.Time
}

func newPacer(rps float64, burst int) *pacer {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	interval := time.Duration(float64(time.Second) / rps)
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &pacer{
		interval: interval,
		capacity: float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
	}
}

// Acquire blocks until a token is available or the context is
// canceled. Tokens accrue continuously rather than on a ticker, so
// there is no background goroutine to stop.
func (p *pacer) Acquire(ctx context.Context) error {
	if p == nil {
		return nil
	}
	for {
		p.mu.Lock()
		now := time.Now()
		accrued := float64(now.Sub(p.last)) / float64(p.interval)
		p.tokens = math.Min(p.capacity, p.tokens+accrued)
		p.last = now
		if p.tokens >= 1 {
			p.tokens--
			p.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - p.tokens) * float64(p.interval))
		p.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// retryStream runs fn up to attempts times with exponential backoff
// starting at base. fn reports the text it has already forwarded
// downstream; once anything has been emitted a retry would duplicate
// output, so the failure is returned as-is.
func retryStream(ctx context.Context, attempts int, base time.Duration, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := fn()
		if err == nil {
			return out, nil
		}
		if out != "" {
			return out, err
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(base << attempt)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", lastErr
}
