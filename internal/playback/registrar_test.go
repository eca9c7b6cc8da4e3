package playback

import (
	"testing"
	"time"

	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/jmylchreest/soundrelay/internal/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistrar() *Registrar {
	return NewRegistrar(DefaultRegistrarConfig())
}

func TestRegistrar_SharedStreamTerminatesPredecessors(t *testing.T) {
	r := newTestRegistrar()

	first := r.Begin(BeginRequest{PlayerID: "p1", Username: "alice"})
	defer first.End()
	other := r.Begin(BeginRequest{PlayerID: "p2", Username: "bob"})
	defer other.End()

	assert.Equal(t, streaming.Reason(""), first.Interrupted())

	second := r.Begin(BeginRequest{PlayerID: "p1", Username: "alice"})
	defer second.End()

	assert.Equal(t, streaming.ReasonTerminated, first.Interrupted())
	assert.Equal(t, streaming.Reason(""), second.Interrupted())
	assert.Equal(t, streaming.Reason(""), other.Interrupted())
	assert.Same(t, first.Queue, second.Queue)
	assert.Same(t, r.Queue("p1"), second.Queue)
}

func TestRegistrar_IsolatedStreamsCoexist(t *testing.T) {
	r := newTestRegistrar()
	f := mediaFile("/a.mp3")

	shared := r.Begin(BeginRequest{PlayerID: "p1"})
	defer shared.End()
	single := r.Begin(BeginRequest{PlayerID: "p1", Files: []*models.MediaFile{f}, Isolated: true})
	defer single.End()

	assert.Equal(t, streaming.Reason(""), shared.Interrupted())
	assert.Equal(t, streaming.Reason(""), single.Interrupted())
	assert.NotSame(t, r.Queue("p1"), single.Queue)
	assert.Same(t, f, single.Queue.Current())
	assert.Len(t, r.StreamsForPlayer("p1"), 2)
}

func TestRegistrar_SingleFileDoesNotTouchCanonicalQueue(t *testing.T) {
	r := newTestRegistrar()
	a, b := mediaFile("/a.mp3"), mediaFile("/b.mp3")
	r.Queue("p1").Replace([]*models.MediaFile{a, b}, 0)

	s := r.Begin(BeginRequest{PlayerID: "p1", Files: []*models.MediaFile{b}, Isolated: true})
	defer s.End()

	assert.Equal(t, 1, s.CanonicalIndex)
	assert.Same(t, a, r.Queue("p1").Current())
	assert.Equal(t, 0, r.Queue("p1").Index())
}

func TestRegistrar_SharedStreamTerminatesIsolatedStreams(t *testing.T) {
	r := newTestRegistrar()

	single := r.Begin(BeginRequest{PlayerID: "p1", Files: []*models.MediaFile{mediaFile("/a.mp3")}, Isolated: true})
	defer single.End()
	shared := r.Begin(BeginRequest{PlayerID: "p1"})
	defer shared.End()

	assert.Equal(t, streaming.ReasonTerminated, single.Interrupted())
	assert.Equal(t, streaming.Reason(""), shared.Interrupted())
}

func TestRegistrar_EndMovesStreamToHistory(t *testing.T) {
	r := newTestRegistrar()

	s := r.Begin(BeginRequest{PlayerID: "p1", Files: []*models.MediaFile{mediaFile("/a.mp3")}, Isolated: true})
	require.Len(t, r.ActiveStreams(), 1)

	s.End()
	s.End()

	assert.Empty(t, r.ActiveStreams())
	assert.False(t, s.Status.Active())
	history := r.History()
	require.Len(t, history, 1)
	assert.Same(t, s.Status, history[0])
}

func TestRegistrar_HistoryIsBoundedPerPlayer(t *testing.T) {
	r := NewRegistrar(RegistrarConfig{HistoryPerPlayer: 2})

	var last *Session
	for i := 0; i < 5; i++ {
		last = r.Begin(BeginRequest{PlayerID: "p1"})
		last.End()
	}

	history := r.History()
	require.Len(t, history, 2)
	assert.Same(t, last.Status, history[0])
}

func TestRegistrar_PruneHistory(t *testing.T) {
	r := newTestRegistrar()
	s := r.Begin(BeginRequest{PlayerID: "p1"})
	s.End()

	assert.Equal(t, 0, r.PruneHistory(time.Now().Add(-time.Hour)))
	assert.Len(t, r.History(), 1)

	assert.Equal(t, 1, r.PruneHistory(time.Now().Add(time.Second)))
	assert.Empty(t, r.History())
}

func TestRegistrar_Downloads(t *testing.T) {
	r := newTestRegistrar()

	stream := r.Begin(BeginRequest{PlayerID: "p1"})
	defer stream.End()
	d1 := r.Begin(BeginRequest{PlayerID: "p1", Kind: streaming.TransferDownload})
	d2 := r.Begin(BeginRequest{PlayerID: "p1", Kind: streaming.TransferDownload})

	assert.Equal(t, 2, r.DownloadCount())
	assert.Len(t, r.ActiveDownloads(), 2)
	assert.Len(t, r.ActiveStreams(), 1)
	assert.Equal(t, streaming.Reason(""), stream.Interrupted())
	assert.Equal(t, streaming.Reason(""), d1.Interrupted())

	d1.End()
	assert.Equal(t, 1, r.DownloadCount())
	d2.End()
	assert.Equal(t, 0, r.DownloadCount())
	assert.Empty(t, r.History())
}

func TestRegistrar_StopAndStartPlayer(t *testing.T) {
	r := newTestRegistrar()

	shared := r.Begin(BeginRequest{PlayerID: "p1"})
	defer shared.End()
	single := r.Begin(BeginRequest{PlayerID: "p1", Files: []*models.MediaFile{mediaFile("/a.mp3")}, Isolated: true})
	defer single.End()
	other := r.Begin(BeginRequest{PlayerID: "p2", Files: []*models.MediaFile{mediaFile("/b.mp3")}, Isolated: true})
	defer other.End()

	r.StopPlayer("p1")
	assert.True(t, shared.QueueStopped())
	assert.True(t, single.QueueStopped())
	assert.False(t, other.QueueStopped())

	r.StartPlayer("p1")
	assert.False(t, shared.QueueStopped())
	assert.False(t, single.QueueStopped())
}

func TestRegistrar_EphemeralQueueRemovedOnEnd(t *testing.T) {
	r := newTestRegistrar()

	s := r.Begin(BeginRequest{PlayerID: "p1", Files: []*models.MediaFile{mediaFile("/a.mp3")}, Isolated: true})
	s.End()

	r.StopPlayer("p1")
	assert.False(t, s.QueueStopped())
}

func TestRegistrar_Shutdown(t *testing.T) {
	r := newTestRegistrar()
	s := r.Begin(BeginRequest{PlayerID: "p1", Kind: streaming.TransferDownload})
	defer s.End()

	r.Shutdown()
	assert.True(t, r.ShuttingDown())
	assert.Equal(t, streaming.ReasonShutdown, s.Interrupted())
}

func TestSession_DrivesPump(t *testing.T) {
	r := newTestRegistrar()
	first := r.Begin(BeginRequest{PlayerID: "p1"})
	defer first.End()

	second := r.Begin(BeginRequest{PlayerID: "p1"})
	defer second.End()

	p := &streaming.Pump{
		Input:   infiniteReader{},
		Output:  discardWriter{},
		Monitor: first,
	}
	res := p.Run(t.Context())
	assert.Equal(t, streaming.ReasonTerminated, res.Reason)
}

type infiniteReader struct{}

func (infiniteReader) Read(p []byte) (int, error) { return len(p), nil }

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
