package transcode

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
)

// Opener opens the byte source described by resolved parameters.
type Opener struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
}

// NewOpener creates an opener reading plain files from fs and running
// transcoders found in dir.
func NewOpener(fs afero.Fs, dir string) *Opener {
	return &Opener{
		fs:     fs,
		dir:    dir,
		logger: slog.Default().With(slog.String("component", "transcode")),
	}
}

// WithLogger sets the logger for the opener.
func (o *Opener) WithLogger(logger *slog.Logger) *Opener {
	o.logger = logger.With(slog.String("component", "transcode"))
	return o
}

// Open returns the file itself, or the stdout of its transcoding pipeline.
func (o *Opener) Open(ctx context.Context, p *Parameters) (io.ReadCloser, error) {
	if !p.Transcoding() {
		f, err := o.fs.Open(p.File.Path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", p.File.Path, err)
		}
		return f, nil
	}

	in, err := StartProcess(ctx, p.Steps(o.dir), o.logger.With(slog.String("path", p.File.Path)))
	if err != nil {
		return nil, fmt.Errorf("transcoding %s with %s: %w", p.File.Path, p.Profile.Name, err)
	}
	return in, nil
}
