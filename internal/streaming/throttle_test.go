package streaming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottle_Disabled(t *testing.T) {
	th := NewThrottle(0, nil, 1024)
	assert.False(t, th.Enabled())
	assert.Zero(t, th.BytesPerSecond())
	require.NoError(t, th.Wait(context.Background(), 1<<30))

	var nilThrottle *Throttle
	assert.False(t, nilThrottle.Enabled())
	require.NoError(t, nilThrottle.Wait(context.Background(), 10))
}

func TestThrottle_SharesBudgetBetweenTransfers(t *testing.T) {
	active := 1
	th := NewThrottle(800, func() int { return active }, 1024)

	// 800 kbps = 800*1024 bits/s = 102400 bytes/s.
	assert.InDelta(t, 102400, th.BytesPerSecond(), 0.001)

	now := time.Now()
	th.now = func() time.Time { return now }

	active = 4
	require.NoError(t, th.Wait(context.Background(), 1))
	assert.InDelta(t, 102400, th.BytesPerSecond(), 0.001, "budget is not recomputed before the interval")

	now = now.Add(DefaultThrottleRecompute)
	require.NoError(t, th.Wait(context.Background(), 1))
	assert.InDelta(t, 25600, th.BytesPerSecond(), 0.001)
}

func TestThrottle_ForTransferKeepsAggregateAtLimit(t *testing.T) {
	// 800 kbps = 102400 bytes/s in total, 51200 bytes/s for each of two transfers.
	shared := NewThrottle(800, func() int { return 2 }, 1024)

	const perTransfer = 51200
	start := time.Now()
	var wg sync.WaitGroup
	for range 2 {
		th := shared.ForTransfer()
		assert.InDelta(t, 51200, th.BytesPerSecond(), 0.001)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sent := 0; sent < perTransfer; sent += 1024 {
				assert.NoError(t, th.Wait(context.Background(), 1024))
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	// Each transfer needs just under a second at its own budget. A single
	// budget drawn on by both would take about two.
	assert.GreaterOrEqual(t, elapsed, 800*time.Millisecond)
	assert.Less(t, elapsed, 1500*time.Millisecond)
}

func TestThrottle_ForTransferNil(t *testing.T) {
	var th *Throttle
	assert.Nil(t, th.ForTransfer())
	assert.False(t, NewThrottle(0, nil, 0).ForTransfer().Enabled())
}

func TestThrottle_ZeroTransfersCountAsOne(t *testing.T) {
	th := NewThrottle(80, func() int { return 0 }, 1024)
	assert.InDelta(t, 10240, th.BytesPerSecond(), 0.001)
}

func TestThrottle_DelaysPastBurst(t *testing.T) {
	// 8 kbps = 1024 bytes/s with a 512 byte burst.
	th := NewThrottle(8, nil, 512)

	start := time.Now()
	require.NoError(t, th.Wait(context.Background(), 512))
	require.NoError(t, th.Wait(context.Background(), 256))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestThrottle_WaitHonorsCancel(t *testing.T) {
	th := NewThrottle(8, nil, 512)
	require.NoError(t, th.Wait(context.Background(), 512))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, th.Wait(ctx, 512))
}

func TestPump_ThrottleChargesOnlyInRangeBytes(t *testing.T) {
	// 8 kbps = 1024 bytes/s. Skipping 100 KiB must not be charged.
	th := NewThrottle(8, nil, 1024)
	data := sequence(100*1024 + 512)
	r := OpenRange(100 * 1024)
	var out []byte
	rw := NewRangeWriter(writerFunc(func(p []byte) (int, error) {
		out = append(out, p...)
		return len(p), nil
	}), &r, nil)

	p := &Pump{
		Input:      bytesReader(data),
		Output:     rw,
		Range:      rw,
		Isolated:   true,
		Throttle:   th,
		BufferSize: 1024,
		Logger:     discardLogger(),
	}

	start := time.Now()
	res := p.Run(context.Background())
	require.Equal(t, ReasonEndOfInput, res.Reason)
	assert.Len(t, out, 512)
	assert.Less(t, time.Since(start), 2*time.Second)
}
