package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmylchreest/soundrelay/internal/models"
	"github.com/jmylchreest/soundrelay/internal/playback"
	"github.com/jmylchreest/soundrelay/internal/streaming"
	"github.com/jmylchreest/soundrelay/internal/transcode"
)

// StreamRequest is a parsed stream request.
type StreamRequest struct {
	Username string
	ClientID string
	PlayerID string

	// FileID selects a single file, PlaylistID a playlist. With neither the
	// player's canonical queue is streamed.
	FileID     string
	PlaylistID string

	MaxBitRate int
	Format     string

	// HLS marks a segment request; TimeOffset, Duration and Size describe
	// the segment or video window.
	HLS        bool
	TimeOffset int
	Duration   int
	Size       string

	OffsetSeconds string
	RangeHeader   string

	// Shoutcast asks for in-band metadata on queue streams.
	Shoutcast bool
	// HeadOnly sends the headers without a body.
	HeadOnly bool
}

// Stream writes the response for req. A returned error means nothing has
// been written to w; failures after that are logged and recorded only.
func (s *DeliveryService) Stream(ctx context.Context, w http.ResponseWriter, req StreamRequest) error {
	if req.MaxBitRate < 0 {
		return invalidf("maxBitRate %d", req.MaxBitRate)
	}
	if req.TimeOffset < 0 || req.Duration < 0 {
		return invalidf("negative time window")
	}

	var file *models.MediaFile
	if req.FileID != "" {
		f, err := s.lookupFile(ctx, req.FileID, req.Username)
		if err != nil {
			return err
		}
		if f.IsDirectory {
			return invalidf("%s is a directory", req.FileID)
		}
		file = f
	}

	// Playlist access is checked before a player may be created.
	var files []*models.MediaFile
	if file == nil && req.PlaylistID != "" {
		playlist, err := s.lookupPlaylist(ctx, req.PlaylistID, req.Username)
		if err != nil {
			return err
		}
		if files, err = s.readable(ctx, playlistFiles(playlist), req.Username); err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("%w: playlist %s has no playable files", ErrNotFound, req.PlaylistID)
		}
	}

	player, err := s.players.Resolve(ctx, req.PlayerID, req.Username, req.ClientID)
	if err != nil {
		return err
	}

	switch {
	case file != nil:
		return s.streamFile(ctx, w, req, player, file)
	case req.PlaylistID != "":
		return s.streamPlaylist(ctx, w, req, player, files)
	default:
		return s.streamQueue(ctx, w, req, player)
	}
}

// streamFile sends one file, honoring byte ranges when the target allows it.
func (s *DeliveryService) streamFile(ctx context.Context, w http.ResponseWriter, req StreamRequest, player *models.Player, file *models.MediaFile) error {
	video, err := videoSettings(file, player, req)
	if err != nil {
		return err
	}

	params, err := s.resolver.Resolve(ctx, transcode.Request{
		File:       file,
		Player:     player,
		MaxBitRate: req.MaxBitRate,
		Format:     req.Format,
		Video:      video,
	})
	if err != nil {
		return fmt.Errorf("resolving transcoding: %w", err)
	}

	neg := streaming.Negotiate(streaming.NegotiationRequest{
		FileID:          file.ID.String(),
		IsVideo:         file.IsVideo || req.HLS,
		RangeAllowed:    params.RangeAllowed,
		ExpectedLength:  params.ExpectedLength,
		DurationSeconds: file.Duration(),
		RangeHeader:     req.RangeHeader,
		OffsetSeconds:   req.OffsetSeconds,
	}, s.logger)

	if req.HeadOnly {
		s.writeFileHeaders(w, neg, params, req)
		w.WriteHeader(neg.Status)
		return nil
	}

	session := s.registrar.Begin(playback.BeginRequest{
		PlayerID: player.ID.String(),
		Username: req.Username,
		Kind:     streaming.TransferStream,
		Files:    []*models.MediaFile{file},
		Isolated: true,
	})
	defer session.End()

	session.Status.SetPath(file.Path)
	if neg.ContentLength >= 0 {
		session.Status.SetTotal(neg.ContentLength)
	}
	logger := s.sessionLogger(session, req.Username).With(slog.String("path", file.Path))

	in, err := s.open(ctx, params)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	s.writeFileHeaders(w, neg, params, req)
	w.WriteHeader(neg.Status)

	logger.DebugContext(ctx, "streaming file",
		slog.Int("status", neg.Status),
		slog.Bool("transcoding", params.Transcoding()),
	)

	rw := streaming.NewRangeWriter(w, neg.Range, session.Status)
	pump := &streaming.Pump{
		Input:          in,
		Output:         rw,
		Range:          rw,
		Monitor:        session,
		Isolated:       true,
		ExpectedLength: params.ExpectedLength,
		BufferSize:     s.config.BufferSize,
		KeepAliveDelay: s.config.KeepAliveDelay,
		Logger:         logger,
	}
	s.finish(ctx, logger, streaming.TransferStream, pump.Run(ctx))
	return nil
}

func (s *DeliveryService) writeFileHeaders(w http.ResponseWriter, neg streaming.Negotiation, params *transcode.Parameters, req StreamRequest) {
	h := w.Header()
	h.Set("Content-Type", streaming.MimeType(params.TargetFormat()))
	if d := params.File.Duration(); d > 0 && !req.HLS {
		h.Set("X-Content-Duration", fmt.Sprintf("%.1f", d))
	}
	neg.ApplyHeaders(h)
}

// streamPlaylist plays the readable entries of a playlist back to back.
// files is non-empty and already filtered for the user.
func (s *DeliveryService) streamPlaylist(ctx context.Context, w http.ResponseWriter, req StreamRequest, player *models.Player, files []*models.MediaFile) error {
	h := w.Header()
	h.Set("Content-Type", s.contentType(ctx, files[0], player, req.MaxBitRate, req.Format))
	h.Set("Accept-Ranges", "none")
	if req.HeadOnly {
		w.WriteHeader(http.StatusOK)
		return nil
	}

	session := s.registrar.Begin(playback.BeginRequest{
		PlayerID: player.ID.String(),
		Username: req.Username,
		Kind:     streaming.TransferStream,
		Files:    files,
		Isolated: true,
	})
	defer session.End()
	logger := s.sessionLogger(session, req.Username).With(slog.String("playlist_id", req.PlaylistID))

	input := playback.NewQueueInput(ctx, session.Queue, s.openFunc(player, req.MaxBitRate, req.Format), session.Status).
		WithLogger(logger)
	defer input.Close()

	w.WriteHeader(http.StatusOK)

	rw := streaming.NewRangeWriter(w, nil, session.Status)
	pump := &streaming.Pump{
		Input:          input,
		Output:         rw,
		Range:          rw,
		Monitor:        session,
		Isolated:       true,
		BufferSize:     s.config.BufferSize,
		KeepAliveDelay: s.config.KeepAliveDelay,
		Logger:         logger,
	}
	s.finish(ctx, logger, streaming.TransferStream, pump.Run(ctx))
	return nil
}

// streamQueue follows the player's canonical queue. The connection stays
// open while the queue is exhausted or stopped.
func (s *DeliveryService) streamQueue(ctx context.Context, w http.ResponseWriter, req StreamRequest, player *models.Player) error {
	queue := s.registrar.Queue(player.ID.String())

	h := w.Header()
	h.Set("Content-Type", s.contentType(ctx, queue.Current(), player, req.MaxBitRate, req.Format))
	h.Set("Accept-Ranges", "none")
	if req.Shoutcast {
		streaming.SetIcyHeaders(h, s.config.Icy)
	}
	if req.HeadOnly {
		w.WriteHeader(http.StatusOK)
		return nil
	}

	session := s.registrar.Begin(playback.BeginRequest{
		PlayerID: player.ID.String(),
		Username: req.Username,
		Kind:     streaming.TransferStream,
	})
	defer session.End()
	logger := s.sessionLogger(session, req.Username)

	input := playback.NewQueueInput(ctx, session.Queue, s.openFunc(player, req.MaxBitRate, req.Format), session.Status).
		WithLogger(logger)
	defer input.Close()

	w.WriteHeader(http.StatusOK)

	rw := streaming.NewRangeWriter(w, nil, session.Status)
	pump := &streaming.Pump{
		Input:          input,
		Output:         rw,
		Range:          rw,
		Monitor:        session,
		BufferSize:     s.config.BufferSize,
		KeepAliveDelay: s.config.KeepAliveDelay,
		Logger:         logger,
	}
	if req.Shoutcast {
		pump.Output = streaming.NewShoutcastWriter(rw, input.NowPlaying, s.config.Icy.WelcomeTitle)
	}
	logger.DebugContext(ctx, "streaming player queue", slog.Bool("shoutcast", req.Shoutcast))
	s.finish(ctx, logger, streaming.TransferStream, pump.Run(ctx))
	return nil
}

// videoSettings returns the window and size of a video or HLS segment
// transcode, or nil for audio.
func videoSettings(file *models.MediaFile, player *models.Player, req StreamRequest) (*transcode.VideoSettings, error) {
	if !file.IsVideo && !req.HLS {
		return nil, nil
	}

	v := &transcode.VideoSettings{
		TimeOffset: req.TimeOffset,
		Duration:   req.Duration,
		HLS:        req.HLS,
	}
	if req.Size != "" {
		width, height, ok := transcode.ParseSize(req.Size)
		if !ok {
			return nil, invalidf("size %q", req.Size)
		}
		v.Width, v.Height = width, height
		return v, nil
	}

	limit := req.MaxBitRate
	if limit == 0 && player != nil {
		limit = player.MaxBitRate
	}
	v.Width, v.Height = transcode.SuitableSize(file.Width, file.Height, limit)
	return v, nil
}
