package streaming

import (
	"errors"
	"fmt"
	"html"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SegmentDuration is the length of one HLS segment in seconds.
const SegmentDuration = 10

// Default paths for generated HLS links.
const (
	DefaultPlaylistPath = "/ext/hls/hls.m3u8"
	DefaultSegmentPath  = "/ext/stream/stream.ts"
)

var (
	// ErrInvalidBitrate is returned for a bitRate value that is not kbps[@WxH].
	ErrInvalidBitrate = errors.New("invalid bit rate specification")

	// ErrMissingDuration is returned when the media duration is unknown.
	ErrMissingDuration = errors.New("unknown media duration")
)

var bitratePattern = regexp.MustCompile(`^(\d+)(@(\d+)x(\d+))?$`)

// BitrateSpec is a kbps value with optional video dimensions.
type BitrateSpec struct {
	Kbps   int
	Width  int
	Height int
}

// HasSize reports whether dimensions were given.
func (b BitrateSpec) HasSize() bool {
	return b.Width > 0 || b.Height > 0
}

// Size returns the dimensions as "WxH".
func (b BitrateSpec) Size() string {
	return fmt.Sprintf("%dx%d", b.Width, b.Height)
}

// String returns the spec in its request form.
func (b BitrateSpec) String() string {
	if !b.HasSize() {
		return strconv.Itoa(b.Kbps)
	}
	return fmt.Sprintf("%d@%s", b.Kbps, b.Size())
}

// ParseBitrate parses "kbps" or "kbps@WxH".
func ParseBitrate(s string) (BitrateSpec, error) {
	m := bitratePattern.FindStringSubmatch(s)
	if m == nil {
		return BitrateSpec{}, fmt.Errorf("%w: %q", ErrInvalidBitrate, s)
	}
	kbps, err := strconv.Atoi(m[1])
	if err != nil {
		return BitrateSpec{}, fmt.Errorf("%w: %q", ErrInvalidBitrate, s)
	}
	spec := BitrateSpec{Kbps: kbps}
	if m[2] != "" {
		if spec.Width, err = strconv.Atoi(m[3]); err != nil {
			return BitrateSpec{}, fmt.Errorf("%w: %q", ErrInvalidBitrate, s)
		}
		if spec.Height, err = strconv.Atoi(m[4]); err != nil {
			return BitrateSpec{}, fmt.Errorf("%w: %q", ErrInvalidBitrate, s)
		}
	}
	return spec, nil
}

// ParseBitrates parses every value, failing on the first invalid one.
func ParseBitrates(values []string) ([]BitrateSpec, error) {
	specs := make([]BitrateSpec, 0, len(values))
	for _, v := range values {
		spec, err := ParseBitrate(v)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// URLSigner issues signed links. Implementations append an opaque token.
type URLSigner interface {
	SignURL(rawURL string, expires time.Time) (string, error)
}

// PlaylistRequest describes one HLS playlist.
type PlaylistRequest struct {
	FileID          string
	PlayerID        string
	DurationSeconds float64
	Bitrates        []BitrateSpec

	// PlaylistPath and SegmentPath default to DefaultPlaylistPath and DefaultSegmentPath.
	PlaylistPath string
	SegmentPath  string

	Expires time.Time
}

// BuildPlaylist returns a variant playlist for more than one bit rate and a
// normal segment playlist otherwise.
func BuildPlaylist(req PlaylistRequest, signer URLSigner) (string, error) {
	if req.DurationSeconds <= 0 || math.IsNaN(req.DurationSeconds) {
		return "", ErrMissingDuration
	}
	if req.PlaylistPath == "" {
		req.PlaylistPath = DefaultPlaylistPath
	}
	if req.SegmentPath == "" {
		req.SegmentPath = DefaultSegmentPath
	}

	pb := &playlistBuilder{signer: signer, expires: req.Expires}
	if len(req.Bitrates) > 1 {
		return pb.variant(req)
	}
	return pb.normal(req)
}

type playlistBuilder struct {
	sb      strings.Builder
	signer  URLSigner
	expires time.Time
}

// line writes one HTML-escaped line.
func (pb *playlistBuilder) line(s string) {
	pb.sb.WriteString(html.EscapeString(s))
	pb.sb.WriteByte('\n')
}

func (pb *playlistBuilder) link(path string, params url.Values) error {
	u := path + "?" + params.Encode()
	if pb.signer != nil {
		signed, err := pb.signer.SignURL(u, pb.expires)
		if err != nil {
			return fmt.Errorf("signing %s: %w", path, err)
		}
		u = signed
	}
	pb.line(u)
	return nil
}

func (pb *playlistBuilder) variant(req PlaylistRequest) (string, error) {
	pb.line("#EXTM3U")
	pb.line("#EXT-X-VERSION:1")

	for _, br := range req.Bitrates {
		pb.line("#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=" + strconv.FormatInt(int64(br.Kbps)*1000, 10))

		params := url.Values{}
		params.Set("id", req.FileID)
		if req.PlayerID != "" {
			params.Set("player", req.PlayerID)
		}
		params.Set("bitRate", br.String())
		if err := pb.link(req.PlaylistPath, params); err != nil {
			return "", err
		}
		if br.HasSize() {
			pb.line("@" + br.Size())
		}
	}
	return pb.sb.String(), nil
}

func (pb *playlistBuilder) normal(req PlaylistRequest) (string, error) {
	var br *BitrateSpec
	if len(req.Bitrates) == 1 {
		br = &req.Bitrates[0]
	}

	total := int(math.Ceil(req.DurationSeconds))

	pb.line("#EXTM3U")
	pb.line("#EXT-X-VERSION:1")
	pb.line("#EXT-X-TARGETDURATION:" + strconv.Itoa(SegmentDuration))

	for i := 0; i < total/SegmentDuration; i++ {
		pb.line("#EXTINF:" + strconv.Itoa(SegmentDuration) + ",")
		if err := pb.link(req.SegmentPath, segmentParams(req, br, i*SegmentDuration, SegmentDuration)); err != nil {
			return "", err
		}
	}

	if remainder := total % SegmentDuration; remainder > 0 {
		pb.line("#EXTINF:" + strconv.Itoa(remainder) + ",")
		if err := pb.link(req.SegmentPath, segmentParams(req, br, total-remainder, remainder)); err != nil {
			return "", err
		}
	}

	pb.line("#EXT-X-ENDLIST")
	return pb.sb.String(), nil
}

func segmentParams(req PlaylistRequest, br *BitrateSpec, offset, duration int) url.Values {
	params := url.Values{}
	params.Set("id", req.FileID)
	params.Set("hls", "true")
	params.Set("timeOffset", strconv.Itoa(offset))
	if req.PlayerID != "" {
		params.Set("player", req.PlayerID)
	}
	params.Set("duration", strconv.Itoa(duration))
	if br != nil {
		params.Set("maxBitRate", strconv.Itoa(br.Kbps))
		if br.HasSize() {
			params.Set("size", br.Size())
		}
	}
	return params
}

// UnescapeQuery undoes the HTML escaping applied to playlist links so that
// "&amp;"-separated query strings parse as ordinary ones.
func UnescapeQuery(rawQuery string) string {
	if !strings.Contains(rawQuery, "&amp;") {
		return rawQuery
	}
	return strings.ReplaceAll(rawQuery, "&amp;", "&")
}
