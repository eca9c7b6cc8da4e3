package transcode

import (
	"regexp"
	"strconv"
)

// MaxVideoDimension bounds a requested video width or height.
const MaxVideoDimension = 2000

var sizePattern = regexp.MustCompile(`^(\d+)x(\d+)$`)

// VideoSettings are the extra parameters of video and HLS segment transcodes.
type VideoSettings struct {
	Width      int
	Height     int
	TimeOffset int
	Duration   int
	HLS        bool
}

// ParseSize parses a "WxH" size. Dimensions above MaxVideoDimension are
// rejected.
func ParseSize(spec string) (width, height int, ok bool) {
	m := sizePattern.FindStringSubmatch(spec)
	if m == nil {
		return 0, 0, false
	}
	w, errW := strconv.Atoi(m[1])
	h, errH := strconv.Atoi(m[2])
	if errW != nil || errH != nil || w > MaxVideoDimension || h > MaxVideoDimension {
		return 0, 0, false
	}
	return w, h, true
}

// SuitableSize picks an output size for a bitrate, keeping the source aspect
// ratio and never upscaling. Zero source dimensions mean unknown, a zero
// maxBitRate means no limit was requested.
func SuitableSize(sourceWidth, sourceHeight, maxBitRate int) (width, height int) {
	if maxBitRate == 0 {
		return 400, 224
	}

	var w int
	switch {
	case maxBitRate < 400:
		w = 400
	case maxBitRate < 600:
		w = 480
	case maxBitRate < 1800:
		w = 640
	default:
		w = 960
	}
	h := even(w * 9 / 16)

	if sourceWidth <= 0 || sourceHeight <= 0 {
		return w, h
	}
	if sourceWidth < w || sourceHeight < h {
		return even(sourceWidth), even(sourceHeight)
	}

	aspect := float64(sourceWidth) / float64(sourceHeight)
	h = int(float64(w)/aspect + 0.5)
	return even(w), even(h)
}

func even(n int) int {
	return n + n%2
}
