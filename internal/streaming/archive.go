package streaming

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// crcBufferSize is the read buffer used for the checksum pass.
const crcBufferSize = 8192

// ErrArchiveInterrupted is returned when an archive stops before completion.
var ErrArchiveInterrupted = errors.New("archive interrupted")

// Archive streams files and directories as an uncompressed (STORED) zip.
// Each file is read twice: once for its CRC32 and once for its data, so every
// local header carries exact sizes and no data descriptors are needed.
type Archive struct {
	Fs afero.Fs

	// Roots are the selected files or directories. Entry names are relative
	// to each root's parent directory.
	Roots []string

	// CoverArt is appended once at the end unless one of the streamed files
	// has the same canonical path.
	CoverArt string

	Status     *TransferStatus
	Monitor    Monitor
	Throttle   *Throttle
	BufferSize int
	Logger     *slog.Logger
}

// Stream writes the archive to w.
func (a *Archive) Stream(ctx context.Context, w io.Writer) error {
	if a.Fs == nil {
		a.Fs = afero.NewOsFs()
	}
	if a.Logger == nil {
		a.Logger = slog.Default()
	}

	zw := zip.NewWriter(NewRangeWriter(w, nil, a.Status))

	coverPath := ""
	if a.CoverArt != "" {
		if info, err := a.Fs.Stat(a.CoverArt); err == nil && !info.IsDir() {
			coverPath = a.canonical(a.CoverArt)
		}
	}

	coverEmbedded := false
	for _, root := range a.Roots {
		streamed, err := a.add(ctx, zw, filepath.Dir(root), root)
		if err != nil {
			return err
		}
		if coverPath != "" && streamed[coverPath] {
			coverEmbedded = true
		}
	}

	if coverPath != "" && !coverEmbedded {
		if _, err := a.add(ctx, zw, filepath.Dir(a.CoverArt), a.CoverArt); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

// add writes path and, for directories, everything below it. It returns the
// canonical paths of the files it streamed.
func (a *Archive) add(ctx context.Context, zw *zip.Writer, root, path string) (map[string]bool, error) {
	streamed := make(map[string]bool)
	err := a.walk(ctx, zw, root, path, streamed)
	return streamed, err
}

func (a *Archive) walk(ctx context.Context, zw *zip.Writer, root, path string, streamed map[string]bool) error {
	if IsHidden(path) {
		return nil
	}

	info, err := a.Fs.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	name, err := entryName(root, path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		if err := a.writeFile(ctx, zw, name, path, info); err != nil {
			return err
		}
		streamed[a.canonical(path)] = true
		return nil
	}

	if _, err := zw.CreateRaw(storedHeader(name+"/", info.ModTime(), 0, 0)); err != nil {
		return fmt.Errorf("writing directory entry %s: %w", name, err)
	}

	children, err := afero.ReadDir(a.Fs, path)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", path, err)
	}
	for _, child := range children {
		if err := a.walk(ctx, zw, root, filepath.Join(path, child.Name()), streamed); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) writeFile(ctx context.Context, zw *zip.Writer, name, path string, info os.FileInfo) error {
	if a.Status != nil {
		a.Status.SetPath(path)
	}

	crc, err := ComputeCRC(a.Fs, path)
	if err != nil {
		return err
	}

	size := uint64(info.Size())
	ew, err := zw.CreateRaw(storedHeader(name, info.ModTime(), crc, size))
	if err != nil {
		return fmt.Errorf("writing entry %s: %w", name, err)
	}

	f, err := a.Fs.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	pump := &Pump{
		Input:      f,
		Output:     ew,
		Monitor:    a.Monitor,
		Isolated:   true,
		Throttle:   a.Throttle,
		BufferSize: a.BufferSize,
		Logger:     a.Logger,
	}
	res := pump.Run(ctx)
	if res.Reason != ReasonEndOfInput {
		return fmt.Errorf("%w: %s: %s", ErrArchiveInterrupted, name, res.Reason)
	}
	if res.Written != int64(size) {
		a.Logger.Warn("archive entry size changed while streaming",
			slog.String("entry", name),
			slog.Uint64("declared", size),
			slog.Int64("written", res.Written),
		)
	}
	return nil
}

// ComputeCRC returns the CRC32 (IEEE) of a file.
func ComputeCRC(fs afero.Fs, path string) (uint32, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.CopyBuffer(h, f, make([]byte, crcBufferSize)); err != nil {
		return 0, fmt.Errorf("computing crc of %s: %w", path, err)
	}
	return h.Sum32(), nil
}

// IsHidden reports whether the base name starts with a dot.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func entryName(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

func (a *Archive) canonical(path string) string {
	if _, ok := a.Fs.(*afero.OsFs); ok {
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			return resolved
		}
	}
	return filepath.Clean(path)
}

// storedHeader builds a STORED entry header with exact sizes. CreateRaw
// writes the MS-DOS time fields verbatim, so they are filled in here.
func storedHeader(name string, modified time.Time, crc uint32, size uint64) *zip.FileHeader {
	date, clock := dosDateTime(modified)
	return &zip.FileHeader{
		Name:               name,
		Method:             zip.Store,
		CRC32:              crc,
		CompressedSize64:   size,
		UncompressedSize64: size,
		Modified:           modified,
		ModifiedDate:       date,
		ModifiedTime:       clock,
		Flags:              nameFlags(name),
	}
}

// dosDateTime converts t to MS-DOS date and time, clamped to 1980.
func dosDateTime(t time.Time) (date, clock uint16) {
	if t.Year() < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	date = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	clock = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return date, clock
}

// nameFlags sets the UTF-8 flag for names outside ASCII.
func nameFlags(name string) uint16 {
	for i := 0; i < len(name); i++ {
		if name[i] >= 0x80 {
			return 0x800
		}
	}
	return 0
}
