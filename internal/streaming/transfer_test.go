package streaming

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func statusWithClock(historySize int, interval time.Duration) (*TransferStatus, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewTransferStatusWithConfig(TransferStream, "p1", "alice", historySize, interval)
	s.now = clock.Now
	s.started = clock.Now()
	return s, clock
}

func TestTransferStatus_Counters(t *testing.T) {
	s := NewTransferStatus(TransferDownload, "p1", "alice")
	assert.NotEmpty(t, s.ID)
	assert.True(t, s.Active())
	assert.False(t, s.Terminated())

	s.AddTransferred(100)
	s.AddTransferred(-5)
	s.AddSkipped(40)
	s.AddSkipped(0)
	s.SetTotal(1000)
	s.SetPath("/music/a.mp3")

	assert.Equal(t, int64(100), s.BytesTransferred())
	assert.Equal(t, int64(40), s.BytesSkipped())
	assert.Equal(t, int64(1000), s.BytesTotal())
	assert.Equal(t, "/music/a.mp3", s.Path())
}

func TestTransferStatus_TerminateIsSticky(t *testing.T) {
	s := NewTransferStatus(TransferStream, "p1", "alice")
	s.Terminate()
	s.Finish()
	assert.True(t, s.Terminated())
	assert.False(t, s.Active())
	assert.False(t, s.Ended().IsZero())
}

func TestTransferStatus_SamplesRespectInterval(t *testing.T) {
	s, clock := statusWithClock(10, 5*time.Second)

	s.AddTransferred(100)
	clock.Advance(time.Second)
	s.AddTransferred(100)
	clock.Advance(5 * time.Second)
	s.AddTransferred(100)

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, int64(100), history[0].Bytes)
	assert.Equal(t, int64(300), history[1].Bytes)
	assert.Equal(t, int64(200)/6, s.CurrentBps())
}

func TestTransferStatus_HistoryIsBounded(t *testing.T) {
	s, clock := statusWithClock(3, time.Second)

	for i := 0; i < 10; i++ {
		s.AddTransferred(10)
		clock.Advance(time.Second)
	}

	history := s.History()
	require.Len(t, history, 3)
	assert.Equal(t, int64(80), history[0].Bytes)
	assert.Equal(t, int64(100), history[2].Bytes)
}

func TestTransferStatus_CurrentBps(t *testing.T) {
	s, clock := statusWithClock(10, time.Second)

	clock.Advance(time.Second)
	s.AddTransferred(1000)
	clock.Advance(2 * time.Second)
	s.AddTransferred(4000)

	assert.Equal(t, int64(2000), s.CurrentBps())
}

func TestTransferStatus_FinishRecordsFinalSample(t *testing.T) {
	s, clock := statusWithClock(10, time.Minute)

	s.AddTransferred(10)
	clock.Advance(time.Second)
	s.AddTransferred(20)
	s.Finish()
	s.Finish()

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, int64(30), history[1].Bytes)
	assert.Equal(t, clock.Now(), s.Ended())
}
