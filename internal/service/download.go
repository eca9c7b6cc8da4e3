package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/jmylchreest/soundrelay/internal/playback"
	"github.com/jmylchreest/soundrelay/internal/streaming"
)

// queueArchiveName is the archive name of a player queue download.
const queueArchiveName = "download.zip"

// DownloadRequest is a parsed download request.
type DownloadRequest struct {
	Username string
	ClientID string

	// FileID selects a file or directory, PlaylistID a playlist. With
	// neither the canonical queue of PlayerID is downloaded.
	FileID     string
	PlaylistID string
	PlayerID   string

	// Indexes selects entries of a directory, playlist or queue.
	Indexes []int

	RangeHeader string
	HeadOnly    bool
}

// Download writes a file, or a zip archive of several files, to w. A
// returned error means nothing has been written.
func (s *DeliveryService) Download(ctx context.Context, w http.ResponseWriter, req DownloadRequest) error {
	var (
		files    []*models.MediaFile
		single   *models.MediaFile
		name     string
		coverArt string
	)

	switch {
	case req.FileID != "":
		file, err := s.lookupFile(ctx, req.FileID, req.Username)
		if err != nil {
			return err
		}
		if !file.IsDirectory {
			single = file
			break
		}
		if files, err = s.files.GetChildren(ctx, file.Path); err != nil {
			return fmt.Errorf("listing directory: %w", err)
		}
		name = file.Name() + ".zip"
		if len(req.Indexes) == 0 {
			coverArt = file.CoverArtPath
		}

	case req.PlaylistID != "":
		playlist, err := s.lookupPlaylist(ctx, req.PlaylistID, req.Username)
		if err != nil {
			return err
		}
		if files, err = s.readable(ctx, playlistFiles(playlist), req.Username); err != nil {
			return err
		}
		name = playlist.Name + ".zip"
	}

	player, err := s.players.Resolve(ctx, req.PlayerID, req.Username, req.ClientID)
	if err != nil {
		return err
	}

	if single == nil && req.FileID == "" && req.PlaylistID == "" {
		queued := s.registrar.Queue(player.ID.String()).Files()
		if files, err = s.readable(ctx, queued, req.Username); err != nil {
			return err
		}
		name = queueArchiveName
	}

	if single == nil {
		selected := selectIndexes(files, req.Indexes)
		if len(req.Indexes) == 1 && len(selected) == 1 && !selected[0].IsDirectory {
			single = selected[0]
		} else {
			return s.downloadArchive(ctx, w, req, player, selected, name, coverArt)
		}
	}
	return s.downloadFile(ctx, w, req, player, single)
}

// downloadFile sends one file as an attachment, honoring byte ranges.
func (s *DeliveryService) downloadFile(ctx context.Context, w http.ResponseWriter, req DownloadRequest, player *models.Player, file *models.MediaFile) error {
	f, err := s.fs.Open(file.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, file.Path)
		}
		return fmt.Errorf("opening %s: %w", file.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", file.Path, err)
	}
	length := info.Size()

	neg := streaming.Negotiate(streaming.NegotiationRequest{
		FileID:         file.ID.String(),
		RangeAllowed:   true,
		ExpectedLength: &length,
		RangeHeader:    req.RangeHeader,
	}, s.logger)

	h := w.Header()
	h.Set("Content-Type", streaming.DownloadContentType)
	h.Set("Content-Disposition", streaming.AttachmentDisposition(file.Name()))
	neg.ApplyHeaders(h)
	if req.HeadOnly {
		w.WriteHeader(neg.Status)
		return nil
	}

	session := s.registrar.Begin(playback.BeginRequest{
		PlayerID: player.ID.String(),
		Username: req.Username,
		Kind:     streaming.TransferDownload,
	})
	defer session.End()

	session.Status.SetPath(file.Path)
	session.Status.SetTotal(neg.ContentLength)
	logger := s.sessionLogger(session, req.Username).With(slog.String("path", file.Path))

	w.WriteHeader(neg.Status)

	rw := streaming.NewRangeWriter(w, neg.Range, session.Status)
	pump := &streaming.Pump{
		Input:          f,
		Output:         rw,
		Range:          rw,
		Monitor:        downloadMonitor{session},
		Isolated:       true,
		ExpectedLength: &length,
		Throttle:       s.throttle.ForTransfer(),
		BufferSize:     s.config.DownloadBufferSize,
		Logger:         logger,
	}
	s.finish(ctx, logger, streaming.TransferDownload, pump.Run(ctx))
	return nil
}

// downloadArchive streams files as a STORED zip. Range requests are ignored.
func (s *DeliveryService) downloadArchive(ctx context.Context, w http.ResponseWriter, req DownloadRequest, player *models.Player, files []*models.MediaFile, name, coverArt string) error {
	roots := make([]string, 0, len(files))
	for _, f := range files {
		roots = append(roots, f.Path)
	}

	h := w.Header()
	h.Set("Content-Type", streaming.DownloadContentType)
	h.Set("Content-Disposition", streaming.AttachmentDisposition(name))
	h.Set("Accept-Ranges", "none")
	if req.HeadOnly {
		w.WriteHeader(http.StatusOK)
		return nil
	}

	session := s.registrar.Begin(playback.BeginRequest{
		PlayerID: player.ID.String(),
		Username: req.Username,
		Kind:     streaming.TransferDownload,
	})
	defer session.End()
	logger := s.sessionLogger(session, req.Username).With(slog.String("archive", name))

	w.WriteHeader(http.StatusOK)

	archive := &streaming.Archive{
		Fs:         s.fs,
		Roots:      roots,
		CoverArt:   coverArt,
		Status:     session.Status,
		Monitor:    downloadMonitor{session},
		Throttle:   s.throttle.ForTransfer(),
		BufferSize: s.config.DownloadBufferSize,
		Logger:     logger,
	}
	err := archive.Stream(ctx, w)
	if err != nil && ctx.Err() == nil && !errors.Is(err, streaming.ErrArchiveInterrupted) {
		logger.WarnContext(ctx, "archive failed", slog.String("error", err.Error()))
	}
	s.finish(ctx, logger, streaming.TransferDownload, archiveResult(ctx, session, err))
	return nil
}
