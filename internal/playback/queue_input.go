package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/jmylchreest/soundrelay/internal/streaming"
)

// OpenFunc opens the byte source of one media file, transcoded or not.
type OpenFunc func(ctx context.Context, file *models.MediaFile) (io.ReadCloser, error)

// QueueInput reads the files of a play queue back to back. It follows the
// queue's current position, so skipping tracks in the queue switches the
// source at the next read. Once the queue is exhausted Read returns io.EOF,
// and the queue is consulted again on the following call.
type QueueInput struct {
	ctx    context.Context
	queue  *PlayQueue
	open   OpenFunc
	status *streaming.TransferStatus
	logger *slog.Logger

	mu      sync.Mutex
	current *models.MediaFile
	reader  io.ReadCloser
}

// NewQueueInput creates an input over queue. status may be nil.
func NewQueueInput(ctx context.Context, queue *PlayQueue, open OpenFunc, status *streaming.TransferStatus) *QueueInput {
	return &QueueInput{
		ctx:    ctx,
		queue:  queue,
		open:   open,
		status: status,
		logger: slog.Default().With(slog.String("component", "queue_input")),
	}
}

// WithLogger sets the logger for the input.
func (in *QueueInput) WithLogger(logger *slog.Logger) *QueueInput {
	in.logger = logger
	return in
}

// Read implements io.Reader.
func (in *QueueInput) Read(p []byte) (int, error) {
	for {
		want := in.queue.Current()
		if want == nil {
			in.closeCurrent()
			return 0, io.EOF
		}

		if in.currentFile() == nil || in.currentFile().ID != want.ID {
			in.closeCurrent()
			if err := in.openFile(want); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return 0, err
				}
				in.logger.Warn("skipping unreadable file",
					slog.String("path", want.Path),
					slog.String("error", err.Error()),
				)
				in.queue.Next()
				continue
			}
		}

		n, err := in.reader.Read(p)
		if errors.Is(err, io.EOF) {
			in.closeCurrent()
			in.queue.Next()
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// NowPlaying returns the artist and title of the file being read.
func (in *QueueInput) NowPlaying() (artist, title string, ok bool) {
	f := in.currentFile()
	if f == nil {
		return "", "", false
	}
	return f.Artist, f.DisplayTitle(), true
}

// Close releases the file being read.
func (in *QueueInput) Close() error {
	return in.closeCurrent()
}

func (in *QueueInput) currentFile() *models.MediaFile {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.current
}

func (in *QueueInput) openFile(f *models.MediaFile) error {
	rc, err := in.open(in.ctx, f)
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Path, err)
	}

	in.mu.Lock()
	in.current = f
	in.reader = rc
	in.mu.Unlock()

	if in.status != nil {
		in.status.SetPath(f.Path)
	}
	in.logger.Debug("opened queue file", slog.String("path", f.Path))
	return nil
}

func (in *QueueInput) closeCurrent() error {
	in.mu.Lock()
	rc := in.reader
	in.reader = nil
	in.current = nil
	in.mu.Unlock()

	if rc == nil {
		return nil
	}
	return rc.Close()
}
