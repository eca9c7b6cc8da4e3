// Package playback tracks play queues and active transfers per player.
package playback

import (
	"sync"

	"github.com/jmylchreest/soundrelay/internal/models"
)

// QueueStatus is the playback state of a queue.
type QueueStatus string

const (
	QueuePlaying QueueStatus = "PLAYING"
	QueueStopped QueueStatus = "STOPPED"
)

// PlayQueue is an ordered list of media files with a current position.
// It is safe for concurrent use.
type PlayQueue struct {
	mu     sync.RWMutex
	files  []*models.MediaFile
	index  int
	status QueueStatus
}

// NewPlayQueue creates a playing queue positioned on the first file.
func NewPlayQueue(files ...*models.MediaFile) *PlayQueue {
	q := &PlayQueue{status: QueuePlaying}
	q.files = append(q.files, files...)
	return q
}

// Files returns a copy of the queued files.
func (q *PlayQueue) Files() []*models.MediaFile {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*models.MediaFile, len(q.files))
	copy(out, q.files)
	return out
}

// Len returns the number of queued files.
func (q *PlayQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.files)
}

// Replace swaps the queued files and moves to index.
func (q *PlayQueue) Replace(files []*models.MediaFile, index int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.files = append([]*models.MediaFile(nil), files...)
	q.index = clampIndex(index, len(q.files))
}

// Current returns the file at the current position, or nil when the queue is
// exhausted.
func (q *PlayQueue) Current() *models.MediaFile {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.index < 0 || q.index >= len(q.files) {
		return nil
	}
	return q.files[q.index]
}

// Index returns the current position.
func (q *PlayQueue) Index() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.index
}

// SetIndex moves to index. Values outside the queue are clamped so that the
// queue becomes exhausted rather than wrapping.
func (q *PlayQueue) SetIndex(index int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.index = clampIndex(index, len(q.files))
}

// Next advances to the following file and returns it, or nil once the end
// of the queue is reached.
func (q *PlayQueue) Next() *models.MediaFile {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.index < len(q.files) {
		q.index++
	}
	if q.index >= len(q.files) {
		return nil
	}
	return q.files[q.index]
}

// IndexOf returns the position of the file with the given id, or -1.
func (q *PlayQueue) IndexOf(id models.ULID) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for i, f := range q.files {
		if f != nil && f.ID == id {
			return i
		}
	}
	return -1
}

// Status returns the playback state.
func (q *PlayQueue) Status() QueueStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.status
}

// SetStatus changes the playback state.
func (q *PlayQueue) SetStatus(status QueueStatus) {
	q.mu.Lock()
	q.status = status
	q.mu.Unlock()
}

// Stopped reports whether the queue is STOPPED.
func (q *PlayQueue) Stopped() bool {
	return q.Status() == QueueStopped
}

func clampIndex(index, n int) int {
	if index < 0 {
		return 0
	}
	if index > n {
		return n
	}
	return index
}
