package playback

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/jmylchreest/soundrelay/internal/streaming"
)

// DefaultHistoryPerPlayer is the number of ended stream statuses kept per player.
const DefaultHistoryPerPlayer = 10

// RegistrarConfig holds configuration for the registrar.
type RegistrarConfig struct {
	// HistoryPerPlayer bounds the inactive stream history of each player.
	HistoryPerPlayer int
	// StatusHistorySize is the sample history length of each transfer status.
	StatusHistorySize int
	// StatusSampleInterval is the minimum time between two status samples.
	StatusSampleInterval time.Duration
}

// DefaultRegistrarConfig returns the default registrar settings.
func DefaultRegistrarConfig() RegistrarConfig {
	return RegistrarConfig{
		HistoryPerPlayer:     DefaultHistoryPerPlayer,
		StatusHistorySize:    streaming.DefaultHistorySize,
		StatusSampleInterval: streaming.DefaultSampleInterval,
	}
}

// BeginRequest describes a transfer about to start.
type BeginRequest struct {
	PlayerID string
	Username string
	Kind     streaming.TransferKind

	// Files, when set, are played from an ephemeral queue private to this
	// request. Otherwise the player's canonical queue is used.
	Files []*models.MediaFile

	// Isolated marks podcast, playlist and single-file streams. They coexist
	// with other streams of the player; any other stream terminates them.
	Isolated bool
}

type sessionKey struct {
	playerID  string
	requestID string
}

type registeredStream struct {
	seq    uint64
	status *streaming.TransferStatus
}

// Registrar owns the canonical play queue of every player, the ephemeral
// queues of in-flight isolated requests and the directory of active transfers.
type Registrar struct {
	config RegistrarConfig
	logger *slog.Logger

	mu        sync.RWMutex
	queues    map[string]*PlayQueue
	ephemeral map[sessionKey]*PlayQueue
	streams   map[string][]registeredStream
	downloads map[string]*streaming.TransferStatus
	history   map[string][]*streaming.TransferStatus
	seq       uint64

	shutdown atomic.Bool
}

// NewRegistrar creates an empty registrar.
func NewRegistrar(config RegistrarConfig) *Registrar {
	if config.HistoryPerPlayer <= 0 {
		config.HistoryPerPlayer = DefaultHistoryPerPlayer
	}
	return &Registrar{
		config:    config,
		logger:    slog.Default().With(slog.String("component", "playback")),
		queues:    make(map[string]*PlayQueue),
		ephemeral: make(map[sessionKey]*PlayQueue),
		streams:   make(map[string][]registeredStream),
		downloads: make(map[string]*streaming.TransferStatus),
		history:   make(map[string][]*streaming.TransferStatus),
	}
}

// WithLogger sets the logger for the registrar.
func (r *Registrar) WithLogger(logger *slog.Logger) *Registrar {
	r.logger = logger.With(slog.String("component", "playback"))
	return r
}

// Queue returns the canonical queue of a player, creating it on first use.
func (r *Registrar) Queue(playerID string) *PlayQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queueLocked(playerID)
}

func (r *Registrar) queueLocked(playerID string) *PlayQueue {
	q, ok := r.queues[playerID]
	if !ok {
		q = NewPlayQueue()
		r.queues[playerID] = q
	}
	return q
}

// Begin registers a new transfer and returns its session. Callers must
// defer Session.End.
func (r *Registrar) Begin(req BeginRequest) *Session {
	if req.Kind == "" {
		req.Kind = streaming.TransferStream
	}

	status := streaming.NewTransferStatusWithConfig(
		req.Kind, req.PlayerID, req.Username,
		r.config.StatusHistorySize, r.config.StatusSampleInterval,
	)

	s := &Session{
		ID:             uuid.NewString(),
		PlayerID:       req.PlayerID,
		Status:         status,
		CanonicalIndex: -1,
		registrar:      r,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	canonical := r.queueLocked(req.PlayerID)
	if len(req.Files) > 0 {
		s.Queue = NewPlayQueue(req.Files...)
		if len(req.Files) == 1 && req.Files[0] != nil {
			s.CanonicalIndex = canonical.IndexOf(req.Files[0].ID)
		}
		s.ephemeral = true
		r.ephemeral[sessionKey{req.PlayerID, s.ID}] = s.Queue
	} else {
		s.Queue = canonical
	}

	if req.Kind == streaming.TransferDownload {
		r.downloads[status.ID] = status
		return s
	}

	if !req.Isolated {
		terminated := 0
		for _, rs := range r.streams[req.PlayerID] {
			if !rs.status.Terminated() {
				rs.status.Terminate()
				terminated++
			}
		}
		if terminated > 0 {
			r.logger.Debug("terminated previous streams",
				slog.String("player_id", req.PlayerID),
				slog.Int("count", terminated),
			)
		}
	}

	r.seq++
	s.seq = r.seq
	r.streams[req.PlayerID] = append(r.streams[req.PlayerID], registeredStream{seq: s.seq, status: status})
	return s
}

// alive reports whether no stream of the player registered at or after seq
// has been terminated.
func (r *Registrar) alive(playerID string, seq uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rs := range r.streams[playerID] {
		if rs.seq >= seq && rs.status.Terminated() {
			return false
		}
	}
	return true
}

func (r *Registrar) end(s *Session) {
	s.Status.Finish()

	r.mu.Lock()
	defer r.mu.Unlock()

	if s.ephemeral {
		delete(r.ephemeral, sessionKey{s.PlayerID, s.ID})
	}

	if s.Status.Kind == streaming.TransferDownload {
		delete(r.downloads, s.Status.ID)
		return
	}

	list := r.streams[s.PlayerID]
	for i, rs := range list {
		if rs.status == s.Status {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.streams, s.PlayerID)
	} else {
		r.streams[s.PlayerID] = list
	}

	hist := append([]*streaming.TransferStatus{s.Status}, r.history[s.PlayerID]...)
	if len(hist) > r.config.HistoryPerPlayer {
		hist = hist[:r.config.HistoryPerPlayer]
	}
	r.history[s.PlayerID] = hist
}

// StopPlayer stops the canonical queue and every ephemeral queue of a player.
func (r *Registrar) StopPlayer(playerID string) {
	r.setPlayerStatus(playerID, QueueStopped)
}

// StartPlayer resumes the canonical queue and every ephemeral queue of a player.
func (r *Registrar) StartPlayer(playerID string) {
	r.setPlayerStatus(playerID, QueuePlaying)
}

func (r *Registrar) setPlayerStatus(playerID string, status QueueStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queueLocked(playerID).SetStatus(status)
	for key, q := range r.ephemeral {
		if key.playerID == playerID {
			q.SetStatus(status)
		}
	}
	r.logger.Info("player status changed",
		slog.String("player_id", playerID),
		slog.String("status", string(status)),
	)
}

// Shutdown marks the process as shutting down. Every pump stops at its next
// liveness check.
func (r *Registrar) Shutdown() {
	r.shutdown.Store(true)
}

// ShuttingDown reports whether Shutdown has been called.
func (r *Registrar) ShuttingDown() bool {
	return r.shutdown.Load()
}

// ActiveStreams returns the active stream statuses of all players.
func (r *Registrar) ActiveStreams() []*streaming.TransferStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*streaming.TransferStatus
	for _, list := range r.streams {
		for _, rs := range list {
			out = append(out, rs.status)
		}
	}
	sortByStart(out)
	return out
}

// StreamsForPlayer returns the active stream statuses of one player.
func (r *Registrar) StreamsForPlayer(playerID string) []*streaming.TransferStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*streaming.TransferStatus, 0, len(r.streams[playerID]))
	for _, rs := range r.streams[playerID] {
		out = append(out, rs.status)
	}
	return out
}

// ActiveStreamCount returns the number of active streams.
func (r *Registrar) ActiveStreamCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.streams {
		n += len(list)
	}
	return n
}

// ActiveDownloads returns the active download statuses.
func (r *Registrar) ActiveDownloads() []*streaming.TransferStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*streaming.TransferStatus, 0, len(r.downloads))
	for _, s := range r.downloads {
		out = append(out, s)
	}
	sortByStart(out)
	return out
}

// DownloadCount returns the number of active downloads.
func (r *Registrar) DownloadCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.downloads)
}

// History returns the ended stream statuses of every player, newest first.
func (r *Registrar) History() []*streaming.TransferStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*streaming.TransferStatus
	for _, list := range r.history {
		out = append(out, list...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Ended().After(out[j].Ended())
	})
	return out
}

// PruneHistory drops ended statuses that finished before cutoff and returns
// how many were removed.
func (r *Registrar) PruneHistory(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for playerID, list := range r.history {
		kept := list[:0]
		for _, s := range list {
			if s.Ended().Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			delete(r.history, playerID)
		} else {
			r.history[playerID] = kept
		}
	}
	return removed
}

func sortByStart(list []*streaming.TransferStatus) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Started().Before(list[j].Started())
	})
}

// Session is one registered transfer. It implements streaming.Monitor.
type Session struct {
	// ID is the request id keying the ephemeral queue.
	ID       string
	PlayerID string
	Queue    *PlayQueue
	Status   *streaming.TransferStatus

	// CanonicalIndex is the position of a single requested file in the
	// player's canonical queue, or -1.
	CanonicalIndex int

	registrar *Registrar
	seq       uint64
	ephemeral bool
	endOnce   sync.Once
}

// QueueStopped reports whether the session's queue is STOPPED.
func (s *Session) QueueStopped() bool {
	return s.Queue.Stopped()
}

// Interrupted returns the reason the transfer must stop, or "" while it may
// continue.
func (s *Session) Interrupted() streaming.Reason {
	if s.registrar.ShuttingDown() {
		return streaming.ReasonShutdown
	}
	if s.Status.Terminated() {
		return streaming.ReasonTerminated
	}
	if s.Status.Kind == streaming.TransferStream && !s.registrar.alive(s.PlayerID, s.seq) {
		return streaming.ReasonTerminated
	}
	return ""
}

// End unregisters the transfer. It is safe to call more than once.
func (s *Session) End() {
	s.endOnce.Do(func() {
		s.registrar.end(s)
	})
}
