package streaming

import (
	"crypto/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// DefaultHistorySize is the default number of samples kept per transfer.
	DefaultHistorySize = 200

	// DefaultSampleInterval is the minimum time between two samples.
	DefaultSampleInterval = 5 * time.Second
)

// TransferKind distinguishes stream transfers from downloads.
type TransferKind string

const (
	TransferStream   TransferKind = "stream"
	TransferDownload TransferKind = "download"
)

// Sample is one point of a transfer's byte history.
type Sample struct {
	Bytes     int64     `json:"bytes"`
	Timestamp time.Time `json:"timestamp"`
}

// TransferStatus tracks one in-flight transfer. Counters are safe for
// concurrent use; the pump updates them while status readers poll.
type TransferStatus struct {
	ID       string
	Kind     TransferKind
	PlayerID string
	Username string

	bytesTransferred atomic.Int64
	bytesSkipped     atomic.Int64
	bytesTotal       atomic.Int64
	terminated       atomic.Bool
	active           atomic.Bool

	mu             sync.RWMutex
	path           string
	started        time.Time
	ended          time.Time
	samples        []Sample
	historySize    int
	sampleInterval time.Duration
	now            func() time.Time
}

// NewTransferStatus creates an active status with default sampling settings.
func NewTransferStatus(kind TransferKind, playerID, username string) *TransferStatus {
	return NewTransferStatusWithConfig(kind, playerID, username, DefaultHistorySize, DefaultSampleInterval)
}

// NewTransferStatusWithConfig creates an active status with custom sampling settings.
func NewTransferStatusWithConfig(kind TransferKind, playerID, username string, historySize int, interval time.Duration) *TransferStatus {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	s := &TransferStatus{
		ID:             ulid.MustNew(ulid.Now(), rand.Reader).String(),
		Kind:           kind,
		PlayerID:       playerID,
		Username:       username,
		historySize:    historySize,
		sampleInterval: interval,
		now:            time.Now,
	}
	s.started = s.now()
	s.samples = make([]Sample, 0, historySize)
	s.active.Store(true)
	return s
}

// AddTransferred records bytes delivered to the client.
func (s *TransferStatus) AddTransferred(n int64) {
	if n <= 0 {
		return
	}
	s.bytesTransferred.Add(n)
	s.maybeSample()
}

// AddSkipped records bytes read from the source but dropped outside the range.
func (s *TransferStatus) AddSkipped(n int64) {
	if n > 0 {
		s.bytesSkipped.Add(n)
	}
}

// SetTotal records the declared size of the transfer.
func (s *TransferStatus) SetTotal(n int64) {
	s.bytesTotal.Store(n)
}

// BytesTransferred returns the bytes delivered so far.
func (s *TransferStatus) BytesTransferred() int64 {
	return s.bytesTransferred.Load()
}

// BytesSkipped returns the bytes dropped outside the range so far.
func (s *TransferStatus) BytesSkipped() int64 {
	return s.bytesSkipped.Load()
}

// BytesTotal returns the declared size, or zero when unknown.
func (s *TransferStatus) BytesTotal() int64 {
	return s.bytesTotal.Load()
}

// SetPath records the file currently being transferred.
func (s *TransferStatus) SetPath(path string) {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
}

// Path returns the file currently being transferred.
func (s *TransferStatus) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Terminate asks the owning pump to stop. The flag is sticky.
func (s *TransferStatus) Terminate() {
	s.terminated.Store(true)
}

// Terminated reports whether Terminate has been called.
func (s *TransferStatus) Terminated() bool {
	return s.terminated.Load()
}

// Active reports whether the transfer is still running.
func (s *TransferStatus) Active() bool {
	return s.active.Load()
}

// Finish marks the transfer inactive and takes a final sample.
func (s *TransferStatus) Finish() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = s.now()
	s.appendSampleLocked(s.ended)
}

// Started returns when the transfer began.
func (s *TransferStatus) Started() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Ended returns when the transfer finished, or the zero time while active.
func (s *TransferStatus) Ended() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended
}

// History returns a copy of the recorded samples, oldest first.
func (s *TransferStatus) History() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// CurrentBps returns the average rate over the sample window in bytes per second.
func (s *TransferStatus) CurrentBps() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.samples) == 0 {
		elapsed := s.now().Sub(s.started).Seconds()
		if elapsed <= 0 {
			return 0
		}
		return int64(float64(s.bytesTransferred.Load()) / elapsed)
	}

	first := s.samples[0]
	last := s.samples[len(s.samples)-1]
	if len(s.samples) == 1 {
		first = Sample{Bytes: 0, Timestamp: s.started}
	}
	elapsed := last.Timestamp.Sub(first.Timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return int64(float64(last.Bytes-first.Bytes) / elapsed)
}

func (s *TransferStatus) maybeSample() {
	now := s.now()

	s.mu.RLock()
	due := len(s.samples) == 0 || now.Sub(s.samples[len(s.samples)-1].Timestamp) >= s.sampleInterval
	s.mu.RUnlock()
	if !due {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.samples); n > 0 && now.Sub(s.samples[n-1].Timestamp) < s.sampleInterval {
		return
	}
	s.appendSampleLocked(now)
}

func (s *TransferStatus) appendSampleLocked(now time.Time) {
	s.samples = append(s.samples, Sample{Bytes: s.bytesTransferred.Load(), Timestamp: now})
	if len(s.samples) > s.historySize {
		s.samples = s.samples[len(s.samples)-s.historySize:]
	}
}
