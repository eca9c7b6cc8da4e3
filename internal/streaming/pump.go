package streaming

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultBufferSize is the pump read buffer size.
	DefaultBufferSize = 16 * 1024

	// DefaultKeepAliveDelay is the pause before a keep-alive chunk.
	DefaultKeepAliveDelay = 2 * time.Second

	// checkInterval is the number of bytes between two liveness checks.
	checkInterval = 4096
)

// Reason tells why a pump stopped.
type Reason string

const (
	ReasonEndOfInput     Reason = "end_of_input"
	ReasonQueueStopped   Reason = "queue_stopped"
	ReasonRangeSatisfied Reason = "range_satisfied"
	ReasonTerminated     Reason = "terminated"
	ReasonShutdown       Reason = "shutdown"
	ReasonCanceled       Reason = "canceled"
	ReasonTransportError Reason = "transport_error"
	ReasonInputError     Reason = "input_error"
)

// Result is the terminal state of a pump run. Once a pump has started,
// headers are committed, so a Result is logged, never retried.
type Result struct {
	// Written counts payload and filler bytes handed to the output.
	Written int64
	// Padded counts the filler bytes included in Written.
	Padded int64
	// KeepAlive counts keep-alive bytes, which are not part of Written.
	KeepAlive int64
	Reason    Reason
	Err       error
}

// Partial reports whether the run ended before its input was fully delivered.
func (r Result) Partial() bool {
	switch r.Reason {
	case ReasonEndOfInput, ReasonRangeSatisfied:
		return false
	}
	return true
}

// LogValue implements slog.LogValuer.
func (r Result) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("reason", string(r.Reason)),
		slog.Int64("written", r.Written),
	}
	if r.Padded > 0 {
		attrs = append(attrs, slog.Int64("padded", r.Padded))
	}
	if r.KeepAlive > 0 {
		attrs = append(attrs, slog.Int64("keepalive", r.KeepAlive))
	}
	if r.Err != nil {
		attrs = append(attrs, slog.String("error", r.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// Monitor exposes the playback state a pump polls.
type Monitor interface {
	// QueueStopped reports whether the play queue feeding the stream is stopped.
	QueueStopped() bool
	// Interrupted returns ReasonShutdown or ReasonTerminated when the stream
	// must end, or the empty reason while it is alive.
	Interrupted() Reason
}

// Pump copies Input to Output until the input ends, the queue stops, the
// stream is interrupted or the transport fails.
type Pump struct {
	Input  io.Reader
	Output io.Writer

	// Range, when set, is the range writer at the bottom of the output chain.
	// The pump stops once its range has been fully written and charges the
	// throttle with in-range bytes only.
	Range *RangeWriter

	Monitor Monitor

	// Isolated is true for single-file and podcast streams. Isolated streams
	// end at EOF or queue stop; shared streams keep the connection alive.
	Isolated bool

	// ExpectedLength is the declared length isolated streams are padded to.
	ExpectedLength *int64

	Throttle       *Throttle
	BufferSize     int
	KeepAliveDelay time.Duration
	Logger         *slog.Logger
}

// Run executes the copy loop.
func (p *Pump) Run(ctx context.Context) Result {
	size := p.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	buf := make([]byte, size)
	var res Result
	lastCheck := int64(-1)
	progressed := true
	warned := false

	for {
		if err := ctx.Err(); err != nil {
			return p.finish(res, ReasonCanceled, err)
		}

		if lastCheck < 0 || !progressed || res.Written-lastCheck >= checkInterval {
			lastCheck = res.Written
			if reason := p.interrupted(); reason != "" {
				return p.finish(res, reason, nil)
			}
			if p.Monitor != nil && p.Monitor.QueueStopped() {
				if p.Isolated {
					return p.finish(res, ReasonQueueStopped, nil)
				}
				if err := p.keepAlive(ctx, buf, &res); err != nil {
					return p.fail(res, err)
				}
				progressed = false
				continue
			}
		}

		n, readErr := p.Input.Read(buf)
		progressed = n > 0
		if n > 0 {
			if !warned && p.ExpectedLength != nil && res.Written+int64(n) > *p.ExpectedLength {
				warned = true
				logger.Warn("stream output exceeded expected length",
					slog.Int64("expected_length", *p.ExpectedLength),
				)
			}
			if err := p.write(ctx, buf[:n], &res); err != nil {
				return p.fail(res, err)
			}
			if p.Range != nil && p.Range.Exhausted() {
				return p.finish(res, ReasonRangeSatisfied, nil)
			}
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF):
			if p.Isolated {
				if err := p.pad(ctx, buf, &res); err != nil {
					return p.fail(res, err)
				}
				return p.finish(res, ReasonEndOfInput, nil)
			}
			if err := p.keepAlive(ctx, buf, &res); err != nil {
				return p.fail(res, err)
			}
			progressed = false
		default:
			return p.finish(res, ReasonInputError, readErr)
		}
	}
}

func (p *Pump) interrupted() Reason {
	if p.Monitor == nil {
		return ""
	}
	return p.Monitor.Interrupted()
}

// write hands b to the output and charges the throttle.
func (p *Pump) write(ctx context.Context, b []byte, res *Result) error {
	before := int64(0)
	if p.Range != nil {
		before = p.Range.Delivered()
	}

	n, err := p.Output.Write(b)
	res.Written += int64(n)
	if err != nil {
		return &transportError{err}
	}

	charge := len(b)
	if p.Range != nil {
		charge = int(p.Range.Delivered() - before)
	}
	return p.Throttle.Wait(ctx, charge)
}

// pad appends zero bytes until ExpectedLength bytes have been written.
func (p *Pump) pad(ctx context.Context, buf []byte, res *Result) error {
	if p.ExpectedLength == nil || res.Written >= *p.ExpectedLength {
		return nil
	}
	clear(buf)
	for res.Written < *p.ExpectedLength {
		if p.Range != nil && p.Range.Exhausted() {
			return nil
		}
		n := int(min(int64(len(buf)), *p.ExpectedLength-res.Written))
		before := res.Written
		if err := p.write(ctx, buf[:n], res); err != nil {
			res.Padded += res.Written - before
			return err
		}
		res.Padded += res.Written - before
	}
	return nil
}

// keepAlive waits, then writes one buffer of zero bytes and flushes.
func (p *Pump) keepAlive(ctx context.Context, buf []byte, res *Result) error {
	delay := p.KeepAliveDelay
	if delay <= 0 {
		delay = DefaultKeepAliveDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	clear(buf)
	n, err := p.Output.Write(buf)
	res.KeepAlive += int64(n)
	if err != nil {
		return &transportError{err}
	}
	if err := flush(p.Output); err != nil {
		return &transportError{err}
	}
	return nil
}

func (p *Pump) fail(res Result, err error) Result {
	var te *transportError
	if errors.As(err, &te) {
		return p.finish(res, ReasonTransportError, te.err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return p.finish(res, ReasonCanceled, err)
	}
	return p.finish(res, ReasonTransportError, err)
}

func (p *Pump) finish(res Result, reason Reason, err error) Result {
	res.Reason = reason
	res.Err = err
	return res
}

// transportError marks a failure writing to the client.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "transport: " + e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }
