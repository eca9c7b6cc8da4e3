// Package transcode decides how a media file is delivered and opens its
// byte source, either the file itself or a chain of external transcoders.
package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmylchreest/soundrelay/internal/models"
)

const (
	// FormatRaw requests the original file without transcoding.
	FormatRaw = "raw"

	// HLSTargetFormat is the container of HLS segments.
	HLSTargetFormat = "ts"

	// DefaultVideoBitRate is the bitrate cap for video, in kbps.
	DefaultVideoBitRate = 2000

	// DefaultHLSCommand produces one MPEG-TS segment on stdout.
	DefaultHLSCommand = "ffmpeg -ss %o -t %d -i %s -async 1 -b:v %bk -s %wx%h -ar 44100 -ac 2 -v 0 -f mpegts -c:v libx264 -preset superfast -c:a libmp3lame -threads 0 -"
)

// standardBitRates are the constant bitrates a transcoder is asked for, in kbps.
var standardBitRates = []int{32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 256, 320}

// ProfileSource lists the transcoding profiles that may be applied.
type ProfileSource interface {
	GetEnabled(ctx context.Context) ([]*models.TranscodingProfile, error)
}

// Request describes what a client asked for.
type Request struct {
	File   *models.MediaFile
	Player *models.Player

	// MaxBitRate is the requested cap in kbps, 0 for none.
	MaxBitRate int

	// Format is the preferred target format. FormatRaw disables transcoding.
	Format string

	// Video is set for video files and HLS segments.
	Video *VideoSettings
}

// Parameters is the resolved delivery plan for one file.
type Parameters struct {
	File    *models.MediaFile
	Profile *models.TranscodingProfile
	Video   *VideoSettings

	// MaxBitRate is the effective cap in kbps, 0 when unknown.
	MaxBitRate int

	// ExpectedLength is the exact file size, or an estimate of the
	// transcoded size, or nil when it cannot be predicted.
	ExpectedLength *int64

	RangeAllowed bool
}

// Transcoding reports whether a profile is applied.
func (p *Parameters) Transcoding() bool {
	return p.Profile != nil
}

// TargetFormat returns the format the client receives.
func (p *Parameters) TargetFormat() string {
	if p.Profile != nil {
		return p.Profile.TargetFormat
	}
	return p.File.Format
}

// Steps returns the argv of every transcoding step, in pipe order.
func (p *Parameters) Steps(dir string) [][]string {
	if p.Profile == nil {
		return nil
	}
	var cmds [][]string
	for _, step := range p.Profile.Steps() {
		if argv := BuildCommand(step, dir, p.File, p.MaxBitRate, p.Video); len(argv) > 0 {
			cmds = append(cmds, argv)
		}
	}
	return cmds
}

// ResolverConfig holds configuration for the resolver.
type ResolverConfig struct {
	// HLSCommand is the single step used for HLS segments.
	HLSCommand string
}

// Resolver maps a request onto transcoding parameters.
type Resolver struct {
	profiles ProfileSource
	config   ResolverConfig
	logger   *slog.Logger
}

// NewResolver creates a resolver over the given profiles.
func NewResolver(profiles ProfileSource, config ResolverConfig) *Resolver {
	if config.HLSCommand == "" {
		config.HLSCommand = DefaultHLSCommand
	}
	return &Resolver{
		profiles: profiles,
		config:   config,
		logger:   slog.Default().With(slog.String("component", "transcode")),
	}
}

// WithLogger sets the logger for the resolver.
func (r *Resolver) WithLogger(logger *slog.Logger) *Resolver {
	r.logger = logger.With(slog.String("component", "transcode"))
	return r
}

// Resolve chooses a profile, if any, and predicts the output length.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Parameters, error) {
	file := req.File
	params := &Parameters{File: file, Video: req.Video}

	limit := strictest(playerLimit(req.Player), req.MaxBitRate)
	bitRate := fileBitRate(file)
	mb := effectiveMaxBitRate(file, limit, bitRate)

	profile, err := r.pick(ctx, req)
	if err != nil {
		return nil, err
	}

	hls := req.Video != nil && req.Video.HLS
	if profile != nil && (hls || needsTranscoding(file, mb, bitRate, req.Format)) {
		params.Profile = profile
	}

	params.MaxBitRate = mb
	params.ExpectedLength = r.expectedLength(params)
	params.RangeAllowed = rangeAllowed(params)

	r.logger.DebugContext(ctx, "resolved delivery",
		slog.String("path", file.Path),
		slog.Bool("transcoding", params.Transcoding()),
		slog.String("target_format", params.TargetFormat()),
		slog.Int("max_bit_rate", mb),
		slog.Bool("range_allowed", params.RangeAllowed),
	)
	return params, nil
}

// pick returns the profile that would apply, or nil.
func (r *Resolver) pick(ctx context.Context, req Request) (*models.TranscodingProfile, error) {
	if req.Format == FormatRaw {
		return nil, nil
	}

	if req.Video != nil && req.Video.HLS {
		return &models.TranscodingProfile{
			Name:          "hls",
			SourceFormats: req.File.Format,
			TargetFormat:  HLSTargetFormat,
			Step1:         r.config.HLSCommand,
			Enabled:       models.BoolPtr(true),
		}, nil
	}

	if req.Player != nil && !req.Player.CanTranscode() {
		return nil, nil
	}
	if r.profiles == nil {
		return nil, nil
	}

	profiles, err := r.profiles.GetEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing transcoding profiles: %w", err)
	}

	var applicable []*models.TranscodingProfile
	for _, p := range profiles {
		if req.File.IsVideo && req.Format != "" && strings.EqualFold(p.TargetFormat, req.Format) {
			return p, nil
		}
		if p.Accepts(req.File.Format) {
			applicable = append(applicable, p)
		}
	}
	if len(applicable) == 0 {
		return nil, nil
	}
	for _, p := range applicable {
		if strings.EqualFold(p.TargetFormat, req.Format) {
			return p, nil
		}
	}
	return applicable[0], nil
}

func (r *Resolver) expectedLength(p *Parameters) *int64 {
	if !p.Transcoding() {
		size := p.File.Size
		return &size
	}

	if p.File.DurationSeconds == nil {
		r.logger.Warn("unknown duration, unable to estimate transcoded size",
			slog.String("path", p.File.Path),
		)
		return nil
	}
	if p.MaxBitRate == 0 {
		r.logger.Warn("unknown bit rate, unable to estimate transcoded size",
			slog.String("path", p.File.Path),
		)
		return nil
	}

	// Two extra seconds so that small estimation errors never cut the stream short.
	duration := int64(*p.File.DurationSeconds)
	length := (duration + 2) * int64(p.MaxBitRate) * 1000 / 8
	return &length
}

// rangeAllowed holds when the exact size is known, or when the estimate
// comes from a final step that encodes at the capped bitrate.
func rangeAllowed(p *Parameters) bool {
	if !p.Transcoding() {
		return true
	}
	if p.ExpectedLength == nil {
		return false
	}
	steps := p.Profile.Steps()
	if len(steps) == 0 {
		return false
	}
	return strings.Contains(steps[len(steps)-1], "%b")
}

func needsTranscoding(file *models.MediaFile, mb, bitRate int, format string) bool {
	if mb != 0 && (bitRate == 0 || bitRate > mb) {
		return true
	}
	return format != "" && !strings.EqualFold(file.Format, format)
}

func playerLimit(p *models.Player) int {
	if p == nil {
		return 0
	}
	return p.MaxBitRate
}

// strictest returns the lower of two limits, where 0 means unlimited.
func strictest(a, b int) int {
	switch {
	case a == 0:
		return b
	case b == 0:
		return a
	default:
		return min(a, b)
	}
}

// fileBitRate returns the bitrate of a file in kbps, 0 when unknown. VBR audio
// is assumed to need a fifth more bandwidth at constant bitrate.
func fileBitRate(f *models.MediaFile) int {
	if f.BitRate == nil {
		return 0
	}
	bitRate := *f.BitRate
	if f.IsVideo {
		return bitRate
	}
	if f.VariableBitRate {
		bitRate = bitRate * 6 / 5
	}
	return quantize(bitRate)
}

// quantize rounds a bitrate up to the next standard CBR value. Values above
// the largest standard rate are kept.
func quantize(bitRate int) int {
	if bitRate <= 0 {
		return bitRate
	}
	for _, b := range standardBitRates {
		if bitRate <= b {
			return b
		}
	}
	return bitRate
}

func effectiveMaxBitRate(f *models.MediaFile, limit, bitRate int) int {
	mb := limit
	if f.IsVideo && mb == 0 {
		mb = DefaultVideoBitRate
	}
	if mb == 0 || (bitRate != 0 && bitRate < mb) {
		return bitRate
	}
	return mb
}
