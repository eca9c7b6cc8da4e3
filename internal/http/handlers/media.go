// Package handlers provides HTTP handlers for soundrelay.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/jmylchreest/soundrelay/internal/http/middleware"
	"github.com/jmylchreest/soundrelay/internal/service"
	"github.com/jmylchreest/soundrelay/internal/signing"
	"github.com/jmylchreest/soundrelay/internal/streaming"
)

// errBadParam marks a malformed query parameter.
var errBadParam = errors.New("invalid parameter")

// MediaHandler serves the raw streaming, HLS and download routes.
type MediaHandler struct {
	delivery *service.DeliveryService
	signer   *signing.Signer
	logger   *slog.Logger
}

// NewMediaHandler creates a new media handler. Signed /ext routes are only
// mounted when signer is not nil.
func NewMediaHandler(delivery *service.DeliveryService, signer *signing.Signer) *MediaHandler {
	return &MediaHandler{
		delivery: delivery,
		signer:   signer,
		logger:   slog.Default().With(slog.String("component", "media_handler")),
	}
}

// WithLogger sets the logger for the handler.
func (h *MediaHandler) WithLogger(logger *slog.Logger) *MediaHandler {
	h.logger = logger.With(slog.String("component", "media_handler"))
	return h
}

// RegisterChiRoutes registers the media routes as raw Chi handlers. Media
// responses choose their status and headers before the first body byte,
// which huma's StreamResponse cannot do.
func (h *MediaHandler) RegisterChiRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(middleware.UnescapeQuery)
		h.mount(r)
	})

	if h.signer != nil {
		router.Route("/ext", func(r chi.Router) {
			r.Use(middleware.UnescapeQuery)
			r.Use(signing.Middleware(h.signer, h.logger))
			h.mount(r)
		})
	}
}

func (h *MediaHandler) mount(r chi.Router) {
	for _, p := range []string{"/stream", "/stream/*"} {
		r.Get(p, h.handleStream)
		r.Head(p, h.handleStream)
	}
	for _, p := range []string{"/hls", "/hls/*"} {
		r.Get(p, h.handleHLS)
	}
	r.Get("/download", h.handleDownload)
	r.Head("/download", h.handleDownload)
}

// Register registers documentation-only operations for the media routes.
func (h *MediaHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "stream",
		Method:      http.MethodGet,
		Path:        "/stream",
		Summary:     "Stream a file, playlist or player queue",
		Description: `Streams media to a player. With id a single file is sent and byte ranges
are honored when no transcoding applies. With playlist the entries are played back
to back. With neither, the player's play queue is followed and the connection is
kept alive while the queue is empty or stopped.

Send "Icy-MetaData: 1" on a queue stream to receive ShoutCast titles in band.`,
		Tags: []string{"Media"},
		Responses: map[string]*huma.Response{
			"200": {Description: "Media content"},
			"206": {Description: "Partial media content"},
			"400": {Description: "Invalid parameter"},
			"403": {Description: "Access denied"},
			"404": {Description: "File or playlist not found"},
		},
	}, h.docsOnlyStream)

	huma.Register(api, huma.Operation{
		OperationID: "hlsPlaylist",
		Method:      http.MethodGet,
		Path:        "/hls",
		Summary:     "HLS playlist of a file",
		Description: "Returns a segment playlist, or a variant playlist when more than one bitRate is given. Links point at the signed /ext routes.",
		Tags:        []string{"Media"},
		Responses: map[string]*huma.Response{
			"200": {Description: "M3U8 playlist"},
			"400": {Description: "Invalid bitRate"},
			"403": {Description: "Access denied"},
			"404": {Description: "File not found"},
		},
	}, h.docsOnlyHLS)

	huma.Register(api, huma.Operation{
		OperationID: "download",
		Method:      http.MethodGet,
		Path:        "/download",
		Summary:     "Download a file, directory, playlist or player queue",
		Description: "Single files are sent as attachments with byte range support. Everything else is streamed as an uncompressed zip archive.",
		Tags:        []string{"Media"},
		Responses: map[string]*huma.Response{
			"200": {Description: "File or zip archive"},
			"206": {Description: "Partial file"},
			"403": {Description: "Access denied"},
			"404": {Description: "Not found"},
		},
	}, h.docsOnlyDownload)
}

// StreamDocsInput documents the stream query parameters.
type StreamDocsInput struct {
	ID            string `query:"id" doc:"Media file ID"`
	Playlist      string `query:"playlist" doc:"Playlist ID"`
	Player        string `query:"player" doc:"Player ID, defaults to the user's player for the client"`
	Client        string `query:"c" doc:"Client name used when a player is created"`
	MaxBitRate    int    `query:"maxBitRate" doc:"Maximum bit rate in kbps, 0 for unlimited"`
	Format        string `query:"format" doc:"Preferred target format, raw disables transcoding"`
	HLS           bool   `query:"hls" doc:"Request an HLS segment"`
	TimeOffset    int    `query:"timeOffset" doc:"Start offset in seconds"`
	Duration      int    `query:"duration" doc:"Segment duration in seconds"`
	Size          string `query:"size" doc:"Video size as WIDTHxHEIGHT"`
	OffsetSeconds string `query:"offsetSeconds" doc:"Video seek offset in seconds"`
}

// HLSDocsInput documents the HLS query parameters.
type HLSDocsInput struct {
	ID      string   `query:"id" doc:"Media file ID"`
	Player  string   `query:"player" doc:"Player ID"`
	BitRate []string `query:"bitRate" doc:"Bit rate in kbps, optionally with @WIDTHxHEIGHT"`
}

// DownloadDocsInput documents the download query parameters.
type DownloadDocsInput struct {
	ID       string `query:"id" doc:"File or directory ID"`
	Playlist string `query:"playlist" doc:"Playlist ID"`
	Player   string `query:"player" doc:"Player whose queue is downloaded"`
	Index    []int  `query:"i" doc:"Entry indexes to include"`
}

func (h *MediaHandler) docsOnlyStream(ctx context.Context, input *StreamDocsInput) (*huma.StreamResponse, error) {
	return nil, huma.Error500InternalServerError("this endpoint is handled by raw Chi handlers", nil)
}

func (h *MediaHandler) docsOnlyHLS(ctx context.Context, input *HLSDocsInput) (*huma.StreamResponse, error) {
	return nil, huma.Error500InternalServerError("this endpoint is handled by raw Chi handlers", nil)
}

func (h *MediaHandler) docsOnlyDownload(ctx context.Context, input *DownloadDocsInput) (*huma.StreamResponse, error) {
	return nil, huma.Error500InternalServerError("this endpoint is handled by raw Chi handlers", nil)
}

func (h *MediaHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var err error
	req := service.StreamRequest{
		Username:      username(r),
		ClientID:      q.Get("c"),
		PlayerID:      q.Get("player"),
		FileID:        q.Get("id"),
		PlaylistID:    q.Get("playlist"),
		Format:        q.Get("format"),
		Size:          q.Get("size"),
		OffsetSeconds: q.Get("offsetSeconds"),
		RangeHeader:   r.Header.Get("Range"),
		Shoutcast:     streaming.WantsShoutcast(r),
		HeadOnly:      r.Method == http.MethodHead,
	}
	if req.MaxBitRate, err = intParam(q, "maxBitRate"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.TimeOffset, err = intParam(q, "timeOffset"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Duration, err = intParam(q, "duration"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.HLS, err = boolParam(q, "hls"); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.delivery.Stream(r.Context(), w, req); err != nil {
		h.writeError(w, r, err)
	}
}

func (h *MediaHandler) handleHLS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	playlist, err := h.delivery.Playlist(r.Context(), service.HLSRequest{
		Username: username(r),
		ClientID: q.Get("c"),
		PlayerID: q.Get("player"),
		FileID:   q.Get("id"),
		Bitrates: q["bitRate"],
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", streaming.HLSContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(playlist)))
	if _, err := w.Write([]byte(playlist)); err != nil {
		h.logger.DebugContext(r.Context(), "writing hls playlist", slog.String("error", err.Error()))
	}
}

func (h *MediaHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	indexes := make([]int, 0, len(q["i"]))
	for _, v := range q["i"] {
		i, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w %q: i=%s", errBadParam, "i", v))
			return
		}
		indexes = append(indexes, i)
	}

	err := h.delivery.Download(r.Context(), w, service.DownloadRequest{
		Username:    username(r),
		ClientID:    q.Get("c"),
		FileID:      q.Get("id"),
		PlaylistID:  q.Get("playlist"),
		PlayerID:    q.Get("player"),
		Indexes:     indexes,
		RangeHeader: r.Header.Get("Range"),
		HeadOnly:    r.Method == http.MethodHead,
	})
	if err != nil {
		h.writeError(w, r, err)
	}
}

// writeError sends an escaped plain text error. It is only called before
// anything has been written.
func (h *MediaHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := service.StatusCode(err)
	if errors.Is(err, errBadParam) {
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "media request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	} else {
		h.logger.DebugContext(r.Context(), "media request rejected",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	http.Error(w, html.EscapeString(err.Error()), status)
}

// username returns the requesting user. On signed routes the token subject
// takes precedence over the trusted header.
func username(r *http.Request) string {
	if claims, ok := signing.ClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		return claims.Subject
	}
	return middleware.GetUser(r.Context())
}

func intParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %s", errBadParam, name, v)
	}
	return n, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w %q: %s", errBadParam, name, v)
	}
	return b, nil
}
