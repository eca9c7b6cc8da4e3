package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/jmylchreest/soundrelay/internal/repository"
	"github.com/jmylchreest/soundrelay/internal/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_SingleFile(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()

	err := f.delivery.Stream(context.Background(), rec, StreamRequest{
		Username: "alice",
		FileID:   f.first.ID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.firstData, rec.Body.Bytes())
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1200", rec.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, f.first.ID.String(), rec.Header().Get("ETag"))
	assert.Equal(t, "125.0", rec.Header().Get("X-Content-Duration"))

	history := f.registrar.History()
	require.Len(t, history, 1)
	assert.Equal(t, int64(len(f.firstData)), history[0].BytesTransferred())
	assert.False(t, history[0].Active())
}

func TestStream_Range(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()

	err := f.delivery.Stream(context.Background(), rec, StreamRequest{
		Username:    "alice",
		FileID:      f.first.ID.String(),
		RangeHeader: "bytes=10-19",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, f.firstData[10:20], rec.Body.Bytes())
	assert.Equal(t, "bytes 10-19/1200", rec.Header().Get("Content-Range"))
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
}

func TestStream_PadsToDeclaredLength(t *testing.T) {
	f := newFixture(t)
	f.first.Size = int64(len(f.firstData)) + 50
	require.NoError(t, f.db.Save(f.first).Error)

	rec := httptest.NewRecorder()
	err := f.delivery.Stream(context.Background(), rec, StreamRequest{
		Username: "alice",
		FileID:   f.first.ID.String(),
	})
	require.NoError(t, err)

	body := rec.Body.Bytes()
	require.Len(t, body, len(f.firstData)+50)
	assert.Equal(t, f.firstData, body[:len(f.firstData)])
	assert.Equal(t, make([]byte, 50), body[len(f.firstData):])
}

func TestStream_HeadOnly(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()

	err := f.delivery.Stream(context.Background(), rec, StreamRequest{
		Username: "alice",
		FileID:   f.first.ID.String(),
		HeadOnly: true,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1200", rec.Header().Get("Content-Length"))
	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, f.registrar.History())
}

func TestStream_RequestErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		req    StreamRequest
		status int
	}{
		{
			name:   "malformed id",
			req:    StreamRequest{Username: "alice", FileID: "not-an-id"},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown file",
			req:    StreamRequest{Username: "alice", FileID: models.NewULID().String()},
			status: http.StatusNotFound,
		},
		{
			name:   "no folder access",
			req:    StreamRequest{Username: "bob", FileID: f.first.ID.String()},
			status: http.StatusForbidden,
		},
		{
			name:   "directory",
			req:    StreamRequest{Username: "alice", FileID: f.album.ID.String()},
			status: http.StatusBadRequest,
		},
		{
			name:   "negative bit rate",
			req:    StreamRequest{Username: "alice", FileID: f.first.ID.String(), MaxBitRate: -1},
			status: http.StatusBadRequest,
		},
		{
			name:   "bad video size",
			req:    StreamRequest{Username: "alice", FileID: f.first.ID.String(), HLS: true, Size: "huge"},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown playlist",
			req:    StreamRequest{Username: "alice", PlaylistID: models.NewULID().String()},
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			err := f.delivery.Stream(context.Background(), rec, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Zero(t, rec.Body.Len())
			assert.Empty(t, rec.Header().Get("Content-Type"))
		})
	}
}

func TestStream_Playlist(t *testing.T) {
	f := newFixture(t)
	p := f.playlist(t, "alice", f.second, f.first)
	rec := httptest.NewRecorder()

	err := f.delivery.Stream(context.Background(), rec, StreamRequest{
		Username:   "alice",
		PlaylistID: p.ID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "none", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, string(f.secondData)+string(f.firstData), rec.Body.String())
}

func TestStream_PlaylistOfAnotherUser(t *testing.T) {
	f := newFixture(t)
	p := f.playlist(t, "bob", f.first)

	err := f.delivery.Stream(context.Background(), httptest.NewRecorder(), StreamRequest{
		Username:   "alice",
		ClientID:   "web",
		PlaylistID: p.ID.String(),
	})
	assert.ErrorIs(t, err, ErrForbidden)

	players, err := repository.NewPlayerRepository(f.db).GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, players, "no player is created for a rejected request")
}

func TestStream_PlayerQueueKeepsConnectionAlive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	player, err := f.players.Resolve(ctx, "", "alice", "web")
	require.NoError(t, err)
	_, err = f.players.SetQueue(ctx, player.ID.String(), "alice", []string{f.second.ID.String()}, 0)
	require.NoError(t, err)

	streamCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	err = f.delivery.Stream(streamCtx, rec, StreamRequest{
		Username:  "alice",
		PlayerID:  player.ID.String(),
		Shoutcast: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "20480", rec.Header().Get("icy-metaint"))
	body := rec.Body.String()
	require.Greater(t, len(body), len(f.secondData))
	assert.True(t, strings.HasPrefix(body, string(f.secondData)))

	history := f.registrar.History()
	require.Len(t, history, 1)
	assert.Equal(t, streaming.TransferStream, history[0].Kind)
}

func TestStream_NewQueueStreamTerminatesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	player, err := f.players.Resolve(ctx, "", "alice", "web")
	require.NoError(t, err)

	firstCtx, cancelFirst := context.WithTimeout(ctx, 5*time.Second)
	defer cancelFirst()

	done := make(chan error, 1)
	go func() {
		done <- f.delivery.Stream(firstCtx, httptest.NewRecorder(), StreamRequest{
			Username: "alice",
			PlayerID: player.ID.String(),
		})
	}()

	require.Eventually(t, func() bool {
		return f.registrar.ActiveStreamCount() == 1
	}, time.Second, 5*time.Millisecond)

	secondCtx, cancelSecond := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancelSecond()
	require.NoError(t, f.delivery.Stream(secondCtx, httptest.NewRecorder(), StreamRequest{
		Username: "alice",
		PlayerID: player.ID.String(),
	}))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("first stream was not terminated")
	}
	assert.NoError(t, firstCtx.Err())
}
