package streaming

import (
	"strings"
)

// HLSContentType is the media type of HLS playlists.
const HLSContentType = "application/vnd.apple.mpegurl"

// DownloadContentType is the media type of downloads.
const DownloadContentType = "application/x-download"

var mimeTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"oga":  "audio/ogg",
	"opus": "audio/ogg",
	"ogx":  "application/ogg",
	"aac":  "audio/mp4",
	"m4a":  "audio/mp4",
	"m4b":  "audio/mp4",
	"flac": "audio/flac",
	"wav":  "audio/x-wav",
	"wma":  "audio/x-ms-wma",
	"ape":  "audio/x-monkeys-audio",
	"mpc":  "audio/x-musepack",
	"shn":  "audio/x-shn",
	"dsf":  "audio/x-dsf",
	"flv":  "video/x-flv",
	"avi":  "video/avi",
	"mpg":  "video/mpeg",
	"mpeg": "video/mpeg",
	"mp4":  "video/mp4",
	"m4v":  "video/x-m4v",
	"mkv":  "video/x-matroska",
	"mov":  "video/quicktime",
	"wmv":  "video/x-ms-wmv",
	"ogv":  "video/ogg",
	"divx": "video/divx",
	"m2ts": "video/MP2T",
	"ts":   "video/MP2T",
	"webm": "video/webm",
	"gif":  "image/gif",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"bmp":  "image/bmp",
	"m3u":  "audio/x-mpegurl",
	"m3u8": HLSContentType,
	"pls":  "audio/x-scpls",
}

// MimeType returns the media type for a format suffix.
func MimeType(format string) string {
	if t, ok := mimeTypes[strings.ToLower(strings.TrimPrefix(format, "."))]; ok {
		return t
	}
	return "application/octet-stream"
}

// rfc5987AttrChars are the attr-chars of RFC 5987 that need no escaping.
const rfc5987AttrChars = "!#$&+-.^_`|~"

// EncodeRFC5987 percent-encodes the UTF-8 bytes of s outside attr-char.
func EncodeRFC5987(s string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		b := s[i]
		if isAttrChar(b) {
			sb.WriteByte(b)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[b>>4])
		sb.WriteByte(hex[b&0x0f])
	}
	return sb.String()
}

func isAttrChar(b byte) bool {
	switch {
	case b >= '0' && b <= '9', b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z':
		return true
	}
	return strings.IndexByte(rfc5987AttrChars, b) >= 0
}

// AttachmentDisposition returns a Content-Disposition value for a download.
func AttachmentDisposition(filename string) string {
	return "attachment; filename*=UTF-8''" + EncodeRFC5987(filename)
}
