package streaming

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultThrottleRecompute is how often the per-transfer budget is recomputed.
const DefaultThrottleRecompute = 5 * time.Second

// Throttle limits one transfer to its share of a global download bit rate.
// The share is limitKbps divided by the number of concurrent downloads and is
// recomputed periodically, not on every write. A Throttle must not be shared
// between transfers; use ForTransfer to derive one per transfer.
type Throttle struct {
	limitKbps int
	active    func() int
	recompute time.Duration
	burst     int

	mu         sync.Mutex
	limiter    *rate.Limiter
	lastUpdate time.Time
	now        func() time.Time
}

// NewThrottle creates a throttle for a global limit in kbps. A limit of zero
// or less disables throttling. active reports the current number of
// concurrent downloads and may be nil. burst should be the largest buffer
// passed to Wait.
func NewThrottle(limitKbps int, active func() int, burst int) *Throttle {
	if burst <= 0 {
		burst = DefaultBufferSize
	}
	t := &Throttle{
		limitKbps: limitKbps,
		active:    active,
		recompute: DefaultThrottleRecompute,
		burst:     burst,
		now:       time.Now,
	}
	if limitKbps > 0 {
		t.limiter = rate.NewLimiter(t.bytesPerSecond(), burst)
		t.lastUpdate = t.now()
	}
	return t
}

// ForTransfer returns a throttle with the same limit and its own budget, so
// that N concurrent transfers each get limitKbps/N.
func (t *Throttle) ForTransfer() *Throttle {
	if t == nil {
		return nil
	}
	ft := &Throttle{
		limitKbps: t.limitKbps,
		active:    t.active,
		recompute: t.recompute,
		burst:     t.burst,
		now:       t.now,
	}
	if ft.limitKbps > 0 {
		ft.limiter = rate.NewLimiter(ft.bytesPerSecond(), ft.burst)
		ft.lastUpdate = ft.now()
	}
	return ft
}

// Enabled reports whether the throttle limits anything.
func (t *Throttle) Enabled() bool {
	return t != nil && t.limiter != nil
}

// BytesPerSecond returns the budget currently in effect.
func (t *Throttle) BytesPerSecond() float64 {
	if !t.Enabled() {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.limiter.Limit())
}

// Wait blocks until n more bytes may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context, n int) error {
	if !t.Enabled() || n <= 0 {
		return nil
	}

	t.mu.Lock()
	if t.now().Sub(t.lastUpdate) >= t.recompute {
		t.limiter.SetLimit(t.bytesPerSecond())
		t.lastUpdate = t.now()
	}
	limiter := t.limiter
	t.mu.Unlock()

	for n > 0 {
		chunk := min(n, t.burst)
		if err := limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// bytesPerSecond converts the kbps limit into this transfer's byte budget.
func (t *Throttle) bytesPerSecond() rate.Limit {
	transfers := 1
	if t.active != nil {
		transfers = max(1, t.active())
	}
	bitsPerSecond := float64(t.limitKbps) * 1024 / float64(transfers)
	return rate.Limit(bitsPerSecond / 8)
}
