package streaming

import "io"

// RangeWriter forwards only the bytes of a linear write sequence that fall
// inside an HTTPRange. Bytes are never buffered or reordered.
type RangeWriter struct {
	w      io.Writer
	r      HTTPRange
	pos    int64
	status *TransferStatus

	delivered int64
}

// NewRangeWriter wraps w. A nil range passes everything through.
func NewRangeWriter(w io.Writer, r *HTTPRange, status *TransferStatus) *RangeWriter {
	rw := &RangeWriter{w: w, r: OpenRange(0), status: status}
	if r != nil {
		rw.r = *r
	}
	return rw
}

// Write reports len(p) consumed on success, including dropped bytes.
func (rw *RangeWriter) Write(p []byte) (int, error) {
	total := len(p)
	start := int64(0)
	end := int64(total)

	if rw.pos < rw.r.First {
		skip := rw.r.First - rw.pos
		if skip >= end {
			rw.skip(end)
			rw.pos += end
			return total, nil
		}
		start = skip
	}
	if rw.r.IsClosed() {
		remaining := rw.r.Last + 1 - rw.pos
		if remaining < end {
			end = max(remaining, start)
		}
	}

	rw.skip(start + int64(total) - end)

	if end > start {
		n, err := rw.w.Write(p[start:end])
		rw.delivered += int64(n)
		if rw.status != nil {
			rw.status.AddTransferred(int64(n))
		}
		if err != nil {
			rw.pos += start + int64(n)
			return int(start) + n, err
		}
	}

	rw.pos += int64(total)
	return total, nil
}

func (rw *RangeWriter) skip(n int64) {
	if n > 0 && rw.status != nil {
		rw.status.AddSkipped(n)
	}
}

// Exhausted reports whether every byte of a closed range has been written.
func (rw *RangeWriter) Exhausted() bool {
	return rw.r.IsClosed() && rw.pos > rw.r.Last
}

// Delivered returns the number of in-range bytes forwarded so far.
func (rw *RangeWriter) Delivered() int64 {
	return rw.delivered
}

// Position returns the logical offset of the next byte to be written.
func (rw *RangeWriter) Position() int64 {
	return rw.pos
}

// Flush flushes the underlying writer when it supports flushing.
func (rw *RangeWriter) Flush() error {
	return flush(rw.w)
}

type flusher interface {
	Flush()
}

type errFlusher interface {
	Flush() error
}

// flush flushes w if it is an http.Flusher or a buffered writer.
func flush(w io.Writer) error {
	switch f := w.(type) {
	case errFlusher:
		return f.Flush()
	case flusher:
		f.Flush()
	}
	return nil
}
