package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// stderrLines is the number of recent stderr lines kept for diagnostics.
const stderrLines = 100

// ErrNoSteps is returned when a pipeline has no command to run.
var ErrNoSteps = errors.New("no transcoding steps")

// ProcessInput reads the stdout of a chain of external processes, each
// feeding its stdout into the next one's stdin. Close kills and reaps every
// process; callers must always defer it.
type ProcessInput struct {
	cmds    []*exec.Cmd
	stdout  io.ReadCloser
	stderr  *lineRing
	started time.Time
	logger  *slog.Logger

	closeOnce sync.Once
	waitOnce  sync.Once
	waitErr   error
}

// StartProcess starts the pipeline described by steps.
func StartProcess(ctx context.Context, steps [][]string, logger *slog.Logger) (*ProcessInput, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &ProcessInput{
		stderr:  newLineRing(stderrLines),
		started: time.Now(),
		logger:  logger,
	}

	var pipes []*os.File
	closePipes := func() {
		for _, f := range pipes {
			f.Close()
		}
	}

	for i, argv := range steps {
		if len(argv) == 0 {
			closePipes()
			return nil, fmt.Errorf("step %d: %w", i+1, ErrNoSteps)
		}
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stderr = p.stderr
		p.cmds = append(p.cmds, cmd)
	}

	for i := 0; i < len(p.cmds)-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			closePipes()
			return nil, fmt.Errorf("creating pipe: %w", err)
		}
		pipes = append(pipes, r, w)
		p.cmds[i].Stdout = w
		p.cmds[i+1].Stdin = r
	}

	stdout, err := p.cmds[len(p.cmds)-1].StdoutPipe()
	if err != nil {
		closePipes()
		return nil, fmt.Errorf("getting stdout pipe: %w", err)
	}
	p.stdout = stdout

	for i, cmd := range p.cmds {
		if err := cmd.Start(); err != nil {
			closePipes()
			p.stdout.Close()
			p.kill()
			p.wait()
			return nil, fmt.Errorf("starting %s: %w", strings.Join(steps[i], " "), err)
		}
	}

	// The children hold their own copies of the pipe ends.
	closePipes()

	logger.Debug("started transcoder",
		slog.String("command", p.String()),
		slog.Int("steps", len(p.cmds)),
	)
	return p, nil
}

// Read implements io.Reader over the last process's stdout. A non-zero exit
// is logged and the stream ends normally.
func (p *ProcessInput) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if errors.Is(err, io.EOF) {
		if werr := p.wait(); werr != nil {
			p.logger.Warn("transcoder exited with error",
				slog.String("command", p.String()),
				slog.String("error", werr.Error()),
				slog.String("stderr", p.LastStderr()),
			)
		}
	}
	return n, err
}

// Close kills every process of the pipeline and waits for them to exit.
func (p *ProcessInput) Close() error {
	p.closeOnce.Do(func() {
		p.kill()
		p.wait()
		p.logger.Debug("transcoder closed",
			slog.String("command", p.String()),
			slog.Duration("duration", time.Since(p.started)),
		)
	})
	return nil
}

// String returns the pipeline as a shell-like command line.
func (p *ProcessInput) String() string {
	parts := make([]string, 0, len(p.cmds))
	for _, cmd := range p.cmds {
		parts = append(parts, strings.Join(cmd.Args, " "))
	}
	return strings.Join(parts, " | ")
}

// StderrLines returns the recent stderr lines of all processes.
func (p *ProcessInput) StderrLines() []string {
	return p.stderr.Lines()
}

// LastStderr returns the most recent stderr line, or "".
func (p *ProcessInput) LastStderr() string {
	lines := p.stderr.Lines()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

func (p *ProcessInput) kill() {
	for _, cmd := range p.cmds {
		if cmd.Process != nil && cmd.ProcessState == nil {
			_ = cmd.Process.Kill()
		}
	}
}

// wait reaps every started process once and returns the first failure.
func (p *ProcessInput) wait() error {
	p.waitOnce.Do(func() {
		for _, cmd := range p.cmds {
			if cmd.Process == nil {
				continue
			}
			if err := cmd.Wait(); err != nil && p.waitErr == nil {
				p.waitErr = err
			}
		}
	})
	return p.waitErr
}

// lineRing is an io.Writer keeping the last lines written to it.
type lineRing struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial []byte
}

func newLineRing(size int) *lineRing {
	return &lineRing{max: size, lines: make([]string, 0, size)}
}

func (l *lineRing) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := append(l.partial, b...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		l.push(strings.TrimRight(string(data[:i]), "\r"))
		data = data[i+1:]
	}
	l.partial = append(l.partial[:0:0], data...)
	return len(b), nil
}

func (l *lineRing) push(line string) {
	if line == "" {
		return
	}
	if len(l.lines) >= l.max {
		l.lines = l.lines[1:]
	}
	l.lines = append(l.lines, line)
}

// Lines returns the kept lines, oldest first, including an unterminated tail.
func (l *lineRing) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines), len(l.lines)+1)
	copy(out, l.lines)
	if len(l.partial) > 0 {
		out = append(out, string(l.partial))
	}
	return out
}
