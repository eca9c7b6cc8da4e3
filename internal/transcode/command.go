package transcode

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jmylchreest/soundrelay/internal/models"
)

// Placeholder fallbacks for missing tags.
const (
	UnknownTitle  = "Unknown Song"
	UnknownAlbum  = "Unknown Album"
	UnknownArtist = "Unknown Artist"
)

// SplitCommand splits a command line on spaces, honoring single and double
// quotes and backslash escapes.
func SplitCommand(s string) []string {
	var result []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)
	escaped := false

	for _, r := range s {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		if r == '\\' {
			escaped = true
			continue
		}

		if r == '"' || r == '\'' {
			if !inQuote {
				inQuote = true
				quoteChar = r
			} else if r == quoteChar {
				inQuote = false
			} else {
				current.WriteRune(r)
			}
			continue
		}

		if (r == ' ' || r == '\t') && !inQuote {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
			continue
		}

		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// BuildCommand turns one transcoding step into an argv. The binary is looked
// up in dir first; arguments get their placeholders substituted.
func BuildCommand(step, dir string, file *models.MediaFile, maxBitRate int, video *VideoSettings) []string {
	args := SplitCommand(step)
	if len(args) == 0 {
		return nil
	}

	args[0] = resolveBinary(dir, args[0])
	r := placeholders(file, maxBitRate, video)
	for i := 1; i < len(args); i++ {
		args[i] = r.Replace(args[i])
	}
	return args
}

func resolveBinary(dir, name string) string {
	if dir == "" || filepath.IsAbs(name) {
		return name
	}
	candidate := filepath.Join(dir, name)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return name
}

func placeholders(file *models.MediaFile, maxBitRate int, video *VideoSettings) *strings.Replacer {
	title := orDefault(file.Title, UnknownTitle)
	album := orDefault(file.Album, UnknownAlbum)
	artist := orDefault(file.Artist, UnknownArtist)

	pairs := []string{
		"%b", strconv.Itoa(maxBitRate),
		"%t", title,
		"%l", album,
		"%a", artist,
		"%s", file.Path,
	}
	if video != nil {
		pairs = append(pairs,
			"%o", strconv.Itoa(video.TimeOffset),
			"%d", strconv.Itoa(video.Duration),
			"%w", strconv.Itoa(video.Width),
			"%h", strconv.Itoa(video.Height),
		)
	}
	return strings.NewReplacer(pairs...)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
