package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmylchreest/soundrelay/internal/metrics"
	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/jmylchreest/soundrelay/internal/playback"
	"github.com/jmylchreest/soundrelay/internal/repository"
	"github.com/jmylchreest/soundrelay/internal/signing"
	"github.com/jmylchreest/soundrelay/internal/streaming"
	"github.com/jmylchreest/soundrelay/internal/transcode"
	"github.com/spf13/afero"
)

// InputOpener opens the byte source of resolved transcoding parameters.
type InputOpener interface {
	Open(ctx context.Context, p *transcode.Parameters) (io.ReadCloser, error)
}

// DeliveryConfig holds pump and station settings.
type DeliveryConfig struct {
	BufferSize         int
	DownloadBufferSize int
	KeepAliveDelay     time.Duration
	Icy                streaming.IcyInfo
}

// DeliveryService serves streams, HLS playlists and downloads.
type DeliveryService struct {
	files     repository.MediaFileRepository
	playlists repository.PlaylistRepository
	access    repository.FolderAccessRepository
	players   *PlayerService
	registrar *playback.Registrar
	resolver  *transcode.Resolver
	opener    InputOpener

	fs       afero.Fs
	signer   *signing.Signer
	throttle *streaming.Throttle
	metrics  *metrics.Metrics
	config   DeliveryConfig
	logger   *slog.Logger
}

// NewDeliveryService creates a new delivery service reading downloads from
// the OS filesystem without throttling.
func NewDeliveryService(
	files repository.MediaFileRepository,
	playlists repository.PlaylistRepository,
	access repository.FolderAccessRepository,
	players *PlayerService,
	registrar *playback.Registrar,
	resolver *transcode.Resolver,
	opener InputOpener,
	config DeliveryConfig,
) *DeliveryService {
	if config.BufferSize <= 0 {
		config.BufferSize = streaming.DefaultBufferSize
	}
	if config.DownloadBufferSize <= 0 {
		config.DownloadBufferSize = config.BufferSize
	}
	if config.KeepAliveDelay <= 0 {
		config.KeepAliveDelay = streaming.DefaultKeepAliveDelay
	}
	return &DeliveryService{
		files:     files,
		playlists: playlists,
		access:    access,
		players:   players,
		registrar: registrar,
		resolver:  resolver,
		opener:    opener,
		fs:        afero.NewOsFs(),
		config:    config,
		logger:    slog.Default().With(slog.String("component", "delivery")),
	}
}

// WithLogger sets the logger for the service.
func (s *DeliveryService) WithLogger(logger *slog.Logger) *DeliveryService {
	s.logger = logger.With(slog.String("component", "delivery"))
	return s
}

// WithFilesystem sets the filesystem downloads are read from.
func (s *DeliveryService) WithFilesystem(fs afero.Fs) *DeliveryService {
	s.fs = fs
	return s
}

// WithSigner sets the signer for HLS links.
func (s *DeliveryService) WithSigner(signer *signing.Signer) *DeliveryService {
	s.signer = signer
	return s
}

// WithThrottle sets the download limit. Each download derives its own
// share of it.
func (s *DeliveryService) WithThrottle(t *streaming.Throttle) *DeliveryService {
	s.throttle = t
	return s
}

// WithMetrics sets the metrics collectors.
func (s *DeliveryService) WithMetrics(m *metrics.Metrics) *DeliveryService {
	s.metrics = m
	return s
}

// lookupFile returns a file the user may read.
func (s *DeliveryService) lookupFile(ctx context.Context, fileID, username string) (*models.MediaFile, error) {
	id, err := parseID("file", fileID)
	if err != nil {
		return nil, err
	}
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting media file: %w", err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}
	allowed, err := s.access.IsFolderAccessAllowed(ctx, file, username)
	if err != nil {
		return nil, fmt.Errorf("checking folder access: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("%w: file %s", ErrForbidden, fileID)
	}
	return file, nil
}

// lookupPlaylist returns a playlist owned by the user.
func (s *DeliveryService) lookupPlaylist(ctx context.Context, playlistID, username string) (*models.Playlist, error) {
	id, err := parseID("playlist", playlistID)
	if err != nil {
		return nil, err
	}
	playlist, err := s.playlists.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting playlist: %w", err)
	}
	if playlist == nil {
		return nil, fmt.Errorf("%w: playlist %s", ErrNotFound, playlistID)
	}
	if playlist.Username != username {
		return nil, fmt.Errorf("%w: playlist %s", ErrForbidden, playlistID)
	}
	return playlist, nil
}

// readable drops directories and files the user may not read, keeping order.
func (s *DeliveryService) readable(ctx context.Context, files []*models.MediaFile, username string) ([]*models.MediaFile, error) {
	out := make([]*models.MediaFile, 0, len(files))
	for _, f := range files {
		if f == nil || f.IsDirectory {
			continue
		}
		allowed, err := s.access.IsFolderAccessAllowed(ctx, f, username)
		if err != nil {
			return nil, fmt.Errorf("checking folder access: %w", err)
		}
		if allowed {
			out = append(out, f)
		}
	}
	return out, nil
}

func playlistFiles(p *models.Playlist) []*models.MediaFile {
	files := make([]*models.MediaFile, 0, len(p.Entries))
	for _, e := range p.Entries {
		files = append(files, e.MediaFile)
	}
	return files
}

// open opens the input of one resolved file.
func (s *DeliveryService) open(ctx context.Context, params *transcode.Parameters) (io.ReadCloser, error) {
	rc, err := s.opener.Open(ctx, params)
	if err != nil {
		return nil, err
	}
	if params.Transcoding() {
		s.metrics.ObserveTranscode(params.TargetFormat())
	}
	return rc, nil
}

// openFunc resolves and opens each file a queue input advances to.
func (s *DeliveryService) openFunc(player *models.Player, maxBitRate int, format string) playback.OpenFunc {
	return func(ctx context.Context, file *models.MediaFile) (io.ReadCloser, error) {
		params, err := s.resolver.Resolve(ctx, transcode.Request{
			File:       file,
			Player:     player,
			MaxBitRate: maxBitRate,
			Format:     format,
		})
		if err != nil {
			return nil, err
		}
		return s.open(ctx, params)
	}
}

// contentType returns the media type of a file after transcoding.
func (s *DeliveryService) contentType(ctx context.Context, file *models.MediaFile, player *models.Player, maxBitRate int, format string) string {
	if file == nil {
		return streaming.MimeType("mp3")
	}
	params, err := s.resolver.Resolve(ctx, transcode.Request{
		File:       file,
		Player:     player,
		MaxBitRate: maxBitRate,
		Format:     format,
	})
	if err != nil {
		return streaming.MimeType(file.Format)
	}
	return streaming.MimeType(params.TargetFormat())
}

// finish logs and records the outcome of a transfer.
func (s *DeliveryService) finish(ctx context.Context, logger *slog.Logger, kind streaming.TransferKind, res streaming.Result) {
	s.metrics.ObserveTransfer(kind, res)

	switch res.Reason {
	case streaming.ReasonTransportError, streaming.ReasonCanceled:
		logger.DebugContext(ctx, "client went away", slog.Any("result", res))
	case streaming.ReasonInputError:
		logger.WarnContext(ctx, "transfer input failed", slog.Any("result", res))
	default:
		logger.InfoContext(ctx, "transfer finished", slog.Any("result", res))
	}
}

// sessionLogger returns a logger carrying the transfer identity.
func (s *DeliveryService) sessionLogger(session *playback.Session, username string) *slog.Logger {
	return s.logger.With(
		slog.String("transfer_id", session.Status.ID),
		slog.String("player_id", session.PlayerID),
		slog.String("username", username),
	)
}

// selectIndexes returns the files at the given indexes in request order.
// Out of range indexes are ignored. No indexes selects everything.
func selectIndexes(files []*models.MediaFile, indexes []int) []*models.MediaFile {
	if len(indexes) == 0 {
		return files
	}
	out := make([]*models.MediaFile, 0, len(indexes))
	for _, i := range indexes {
		if i >= 0 && i < len(files) {
			out = append(out, files[i])
		}
	}
	return out
}

// downloadMonitor ignores queue state: only termination and shutdown end a
// download.
type downloadMonitor struct {
	session *playback.Session
}

func (m downloadMonitor) QueueStopped() bool { return false }

func (m downloadMonitor) Interrupted() streaming.Reason { return m.session.Interrupted() }

// archiveResult converts an archive outcome into a pump result.
func archiveResult(ctx context.Context, session *playback.Session, err error) streaming.Result {
	res := streaming.Result{
		Written: session.Status.BytesTransferred(),
		Reason:  streaming.ReasonEndOfInput,
		Err:     err,
	}
	switch {
	case err == nil:
	case ctx.Err() != nil:
		res.Reason = streaming.ReasonCanceled
	case errors.Is(err, streaming.ErrArchiveInterrupted):
		res.Reason = session.Interrupted()
		if res.Reason == "" {
			res.Reason = streaming.ReasonTransportError
		}
	default:
		res.Reason = streaming.ReasonInputError
	}
	return res
}
