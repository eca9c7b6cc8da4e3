// Package streaming implements the media delivery engine: byte-range
// negotiation, output decorators, the throttled output pump, HLS playlist
// generation and STORED zip archives.
package streaming

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// ErrInvalidRange is returned when a Range header cannot be parsed.
var ErrInvalidRange = errors.New("invalid range")

// HTTPRange is an inclusive byte range. Last is -1 when the range is open-ended.
type HTTPRange struct {
	First int64
	Last  int64
}

// OpenRange returns an open-ended range starting at first.
func OpenRange(first int64) HTTPRange {
	return HTTPRange{First: first, Last: -1}
}

// IsClosed reports whether the range has an explicit last byte.
func (r HTTPRange) IsClosed() bool {
	return r.Last >= 0
}

// Size returns the number of bytes in a closed range, or -1 if open-ended.
func (r HTTPRange) Size() int64 {
	if !r.IsClosed() {
		return -1
	}
	return r.Last - r.First + 1
}

// Contains reports whether the byte at offset lies inside the range.
func (r HTTPRange) Contains(offset int64) bool {
	if offset < r.First {
		return false
	}
	return !r.IsClosed() || offset <= r.Last
}

// String returns the range in "first-last" form, with an empty last when open-ended.
func (r HTTPRange) String() string {
	if !r.IsClosed() {
		return fmt.Sprintf("%d-", r.First)
	}
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

// ParseRange parses a single-range header of the form "bytes=first-" or
// "bytes=first-last". Suffix ranges and multiple ranges are rejected.
func ParseRange(header string) (HTTPRange, error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return HTTPRange{}, fmt.Errorf("%w: missing bytes unit: %q", ErrInvalidRange, header)
	}
	if strings.Contains(spec, ",") {
		return HTTPRange{}, fmt.Errorf("%w: multiple ranges: %q", ErrInvalidRange, header)
	}

	firstStr, lastStr, ok := strings.Cut(spec, "-")
	if !ok || strings.TrimSpace(firstStr) == "" {
		return HTTPRange{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}

	first, err := strconv.ParseInt(strings.TrimSpace(firstStr), 10, 64)
	if err != nil || first < 0 {
		return HTTPRange{}, fmt.Errorf("%w: bad first byte: %q", ErrInvalidRange, header)
	}

	lastStr = strings.TrimSpace(lastStr)
	if lastStr == "" {
		return OpenRange(first), nil
	}
	last, err := strconv.ParseInt(lastStr, 10, 64)
	if err != nil || last < first {
		return HTTPRange{}, fmt.Errorf("%w: bad last byte: %q", ErrInvalidRange, header)
	}
	return HTTPRange{First: first, Last: last}, nil
}

// NegotiationRequest carries everything the negotiator needs about the target
// and the inbound request.
type NegotiationRequest struct {
	FileID          string
	IsVideo         bool
	RangeAllowed    bool
	ExpectedLength  *int64
	DurationSeconds float64

	// RangeHeader is the raw Range request header.
	RangeHeader string
	// OffsetSeconds is the raw offsetSeconds query parameter.
	OffsetSeconds string
}

// Negotiation is the outcome of range negotiation.
type Negotiation struct {
	Status int
	// Range is nil when the whole body is sent.
	Range *HTTPRange
	// ContentLength is -1 when the body length is not declared.
	ContentLength int64
	Header        http.Header
}

// Partial reports whether the response is 206 Partial Content.
func (n Negotiation) Partial() bool {
	return n.Status == http.StatusPartialContent
}

// ApplyHeaders copies the negotiated headers onto h.
func (n Negotiation) ApplyHeaders(h http.Header) {
	for k, vs := range n.Header {
		for _, v := range vs {
			h.Set(k, v)
		}
	}
}

// Negotiate decides between a full and a partial response. It never fails:
// malformed or unsatisfiable range input falls back to a full response.
func Negotiate(req NegotiationRequest, logger *slog.Logger) Negotiation {
	if logger == nil {
		logger = slog.Default()
	}

	n := Negotiation{
		Status:        http.StatusOK,
		ContentLength: -1,
		Header:        http.Header{},
	}

	if req.IsVideo || !req.RangeAllowed || req.ExpectedLength == nil {
		n.Header.Set("Accept-Ranges", "none")
		return n
	}

	length := *req.ExpectedLength
	n.Header.Set("Accept-Ranges", "bytes")
	n.Header.Set("ETag", req.FileID)

	r := requestedRange(req, length, logger)
	if r == nil {
		n.ContentLength = length
		n.Header.Set("Content-Length", strconv.FormatInt(length, 10))
		return n
	}

	end := length - 1
	if r.IsClosed() && r.Last < end {
		end = r.Last
	}

	n.Status = http.StatusPartialContent
	n.Range = r
	n.ContentLength = end - r.First + 1
	n.Header.Set("Content-Length", strconv.FormatInt(n.ContentLength, 10))
	n.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", r.First, end, length))
	return n
}

// requestedRange returns the range the client asked for, either through the
// Range header or as a time offset, or nil for the whole body.
func requestedRange(req NegotiationRequest, length int64, logger *slog.Logger) *HTTPRange {
	if req.RangeHeader != "" {
		r, err := ParseRange(req.RangeHeader)
		if err != nil {
			logger.Debug("ignoring range header",
				slog.String("range", req.RangeHeader),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if r.First >= length {
			logger.Debug("ignoring unsatisfiable range",
				slog.String("range", r.String()),
				slog.Int64("length", length),
			)
			return nil
		}
		return &r
	}

	if req.OffsetSeconds == "" {
		return nil
	}
	if req.DurationSeconds <= 0 {
		return nil
	}

	offset, err := strconv.ParseFloat(req.OffsetSeconds, 64)
	if err != nil || offset < 0 || math.IsNaN(offset) || math.IsInf(offset, 0) {
		logger.Warn("failed to parse time offset",
			slog.String("offset_seconds", req.OffsetSeconds),
		)
		return nil
	}

	byteOffset := ByteOffset(length, offset, req.DurationSeconds)
	if byteOffset >= length {
		return nil
	}
	r := OpenRange(byteOffset)
	return &r
}

// ByteOffset converts a time offset into a byte offset assuming a constant bit rate.
func ByteOffset(length int64, offsetSeconds, durationSeconds float64) int64 {
	if durationSeconds <= 0 {
		return 0
	}
	return int64(math.Floor(float64(length) * offsetSeconds / durationSeconds))
}
