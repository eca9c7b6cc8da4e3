package streaming

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MetaDataInterval is the number of payload bytes between two ShoutCast
// metadata blocks.
const MetaDataInterval = 20480

// IcyInfo describes the station advertised in icy-* response headers.
type IcyInfo struct {
	Name    string
	Genre   string
	URL     string
	Notice1 string
	Notice2 string
	// WelcomeTitle is announced when nothing is playing.
	WelcomeTitle string
}

// WantsShoutcast reports whether the request asked for in-band metadata.
func WantsShoutcast(r *http.Request) bool {
	return r.Header.Get("Icy-Metadata") == "1"
}

// SetIcyHeaders sets the icy-* response headers. It must be called before
// any body byte is written.
func SetIcyHeaders(h http.Header, info IcyInfo) {
	h.Set("icy-metaint", strconv.Itoa(MetaDataInterval))
	h.Set("icy-notice1", info.Notice1)
	h.Set("icy-notice2", info.Notice2)
	h.Set("icy-name", info.Name)
	h.Set("icy-genre", info.Genre)
	h.Set("icy-url", info.URL)
}

// NowPlaying returns the artist and title of the current track. ok is false
// when nothing is playing.
type NowPlaying func() (artist, title string, ok bool)

// ShoutcastWriter interleaves a metadata block after every MetaDataInterval
// payload bytes.
type ShoutcastWriter struct {
	w          io.Writer
	nowPlaying NowPlaying
	welcome    string

	count         int
	previousTitle string
	hasPrevious   bool
}

// NewShoutcastWriter wraps w. nowPlaying may be nil.
func NewShoutcastWriter(w io.Writer, nowPlaying NowPlaying, welcomeTitle string) *ShoutcastWriter {
	return &ShoutcastWriter{
		w:          w,
		nowPlaying: nowPlaying,
		welcome:    strings.TrimSpace(welcomeTitle),
	}
}

// Write writes p, inserting metadata blocks at interval boundaries. The
// returned count covers payload bytes only.
func (s *ShoutcastWriter) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n := min(len(p)-written, MetaDataInterval-s.count)
		m, err := s.w.Write(p[written : written+n])
		written += m
		s.count += m
		if err != nil {
			return written, err
		}
		if s.count == MetaDataInterval {
			s.count = 0
			if err := s.writeMetaData(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush flushes the underlying writer when it supports flushing.
func (s *ShoutcastWriter) Flush() error {
	return flush(s.w)
}

func (s *ShoutcastWriter) writeMetaData() error {
	title := s.welcome
	if s.nowPlaying != nil {
		if artist, track, ok := s.nowPlaying(); ok {
			title = artist + " - " + track
		}
	}

	var payload []byte
	if !s.hasPrevious || title != s.previousTitle {
		s.previousTitle = title
		s.hasPrevious = true
		payload = StreamTitle(title)
	}

	_, err := s.w.Write(MetaDataBlock(payload))
	return err
}

// MetaDataBlock frames payload as a ShoutCast metadata block: one length byte
// counting 16-byte groups, then the payload zero-padded to that length.
func MetaDataBlock(payload []byte) []byte {
	groups := (len(payload) + 15) / 16
	if groups > 255 {
		groups = 255
		payload = payload[:groups*16]
	}
	block := make([]byte, 1+groups*16)
	block[0] = byte(groups)
	copy(block[1:], payload)
	return block
}

// StreamTitle renders the StreamTitle metadata for title as ASCII, with
// quotes removed and accented letters folded.
func StreamTitle(title string) []byte {
	title = strings.ReplaceAll(title, "'", "")
	return []byte("StreamTitle='" + FoldASCII(title) + "';")
}

var asciiFolder = runes.Map(func(r rune) rune {
	switch r {
	case 'Æ':
		return 'A'
	case 'æ':
		return 'a'
	case 'Ø':
		return 'O'
	case 'ø':
		return 'o'
	case 'ß':
		return 'B'
	case '–', '—':
		return '-'
	}
	if r > unicode.MaxASCII {
		return '?'
	}
	return r
})

// FoldASCII decomposes s, strips combining marks and replaces anything left
// outside ASCII.
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), asciiFolder)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
