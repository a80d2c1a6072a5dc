package mp4

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"m7s.live/faststart/plugin/mp4/pkg/box"
)

const (
	DefaultChunkSize = 8192
	MaxMoovSize      = 1 << 30
)

var (
	ErrIncompleteBox = errors.New("incomplete atom")
	ErrMoovTooLarge  = errors.New("moov atom too large")
	ErrPanic         = errors.New("panic during rewrite")
)

type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeSuitable
	OutcomeIgnored
	OutcomeUnsupported
	OutcomeNeedsPatching
	OutcomeConverted
	OutcomeFailed
)

var outcomeNames = [...]string{"none", "suitable", "ignored", "unsupported", "needs patching", "converted", "failed"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", o)
}

// Status describes the source file as seen by the last Check or Process.
type Status struct {
	SlowStart    bool // moov is behind mdat
	HasFreeAtoms bool
	Unsupported  bool // ftyp, moov or mdat is missing
	Outcome      Outcome
	OutputLength int64
	LastError    error
}

func (s *Status) AlreadySuitable() bool {
	return !s.SlowStart && !s.HasFreeAtoms
}

// FastStart moves the moov atom of an mp4 file in front of its media data and
// drops free atoms on the way. A FastStart runs one file at a time.
type FastStart struct {
	Notify   Notifier
	Logger   *slog.Logger
	TaskName string
	// when false, a file whose moov is already first is left alone even if it
	// has free atoms
	RemoveFreeAtom    bool
	OutputProgressLog bool
	ChunkSize         int

	status Status
}

func New() *FastStart {
	return &FastStart{
		RemoveFreeAtom: true,
		ChunkSize:      DefaultChunkSize,
	}
}

func (fs *FastStart) Status() Status {
	return fs.status
}

// Check reports whether r needs to be rewritten. Nothing is written.
func (fs *FastStart) Check(ctx context.Context, r io.ReadSeeker) bool {
	return fs.run(ctx, r, nil)
}

// Process rewrites r into the output created by out. It reports whether a new
// file was produced; a file that is already suitable is not an error.
func (fs *FastStart) Process(ctx context.Context, r io.ReadSeeker, out OutputFactory) bool {
	return fs.run(ctx, r, out)
}

func (fs *FastStart) run(ctx context.Context, r io.ReadSeeker, out OutputFactory) (converted bool) {
	fs.status = Status{}
	defer func() {
		if p := recover(); p != nil {
			fs.fail(fmt.Errorf("%w: %v", ErrPanic, p), "rewrite aborted")
			converted = false
		}
	}()

	fs.message("analyzing index of top level atoms")
	idx := fs.scanTopLevel(r)
	if !idx.IsValid() {
		fs.message("invalid file", "ftyp", idx.Ftyp() != nil, "moov", idx.Moov() != nil, "mdat", idx.Mdat() != nil)
		fs.status.Unsupported = true
		fs.status.Outcome = OutcomeUnsupported
		return false
	}

	fs.status.HasFreeAtoms = idx.HasFreeAtoms
	if idx.MoovFirst {
		if !idx.HasFreeAtoms && !idx.HasRedundantTail {
			fs.message("file already suitable")
			fs.status.Outcome = OutcomeSuitable
			return false
		}
		if !fs.RemoveFreeAtom {
			fs.message("file has redundant atoms but ignored")
			fs.status.Outcome = OutcomeIgnored
			return false
		}
	} else {
		fs.status.SlowStart = true
	}

	if out == nil {
		fs.message("file needs patching", "slowStart", fs.status.SlowStart, "freeAtoms", fs.status.HasFreeAtoms)
		fs.status.Outcome = OutcomeNeedsPatching
		return true
	}

	fs.message("patching moov", "bias", idx.OffsetBias())
	moov, err := fs.patchMoov(r, &idx)
	if err != nil {
		fs.fail(err, "cannot patch moov")
		return false
	}

	fs.message("writing output file")
	length, err := fs.writeOutput(ctx, r, &idx, moov, out)
	if err != nil {
		fs.fail(err, "cannot write output file")
		return false
	}
	fs.status.OutputLength = length
	fs.status.Outcome = OutcomeConverted
	fs.message("write complete", "length", length)
	return true
}

func (fs *FastStart) fail(err error, msg string) {
	fs.error(msg, "error", err)
	fs.status.LastError = err
	fs.status.Outcome = OutcomeFailed
}

// patchMoov loads the moov atom and shifts all of its chunk offsets by the
// layout's bias. The result has the same length as the moov atom.
func (fs *FastStart) patchMoov(r io.ReadSeeker, idx *Index) (buf []byte, err error) {
	moov := idx.Moov()
	if moov.Size > MaxMoovSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMoovTooLarge, moov.Size)
	}
	buf = make([]byte, moov.Size)
	if _, err = r.Seek(moov.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek moov: %w", err)
	}
	if _, err = io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read moov: %w", err)
	}
	var tables []box.ChunkOffsetTable
	for table, err := range box.ChunkOffsetTables(buf) {
		if err != nil {
			return nil, err
		}
		fs.verbose("patching table", "type", string(table.Box.Type[:]), "entries", table.EntryCount)
		tables = append(tables, table)
	}
	return box.PatchChunkOffsets(buf, tables, idx.OffsetBias())
}

// writeOutput creates the output and fills it. The output is closed and
// deleted on any failure, including a panic while writing.
func (fs *FastStart) writeOutput(ctx context.Context, r io.ReadSeeker, idx *Index, moov []byte, out OutputFactory) (total int64, err error) {
	w, err := out.Create()
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	written := false
	defer func() {
		if written && err == nil {
			return
		}
		if !written {
			w.Close()
		}
		if derr := out.Delete(); derr != nil {
			fs.error("cannot delete output", "error", derr)
		}
		total = 0
	}()
	total, err = fs.writeBoxes(ctx, r, w, idx, moov)
	written = true
	if cerr := w.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close output: %w", cerr)
	}
	return
}

// writeBoxes writes ftyp, the patched moov and then every other top-level box
// in file order, leaving out free atoms.
func (fs *FastStart) writeBoxes(ctx context.Context, r io.ReadSeeker, w io.Writer, idx *Index, moov []byte) (total int64, err error) {
	chunkSize := fs.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunk := make([]byte, chunkSize)

	ftyp := idx.Ftyp()
	fs.verbose("writing ftyp", "at", total, "length", ftyp.Size)
	if err = fs.copyBox(ctx, r, w, ftyp, chunk); err != nil {
		return
	}
	total += int64(ftyp.Size)

	fs.verbose("writing moov", "at", total, "length", len(moov))
	if _, err = w.Write(moov); err != nil {
		return
	}
	total += int64(len(moov))

	for i := range idx.Boxes {
		b := &idx.Boxes[i]
		switch b.Class {
		case ClassFtyp, ClassMoov, ClassFree:
			continue
		}
		fs.verbose("writing "+string(b.Type[:]), "at", total, "length", b.Size)
		if err = fs.copyBox(ctx, r, w, b, chunk); err != nil {
			return
		}
		total += int64(b.Size)
	}
	return
}

func (fs *FastStart) copyBox(ctx context.Context, r io.ReadSeeker, w io.Writer, b *Box, chunk []byte) error {
	if _, err := r.Seek(b.Offset, io.SeekStart); err != nil {
		return err
	}
	size := int64(b.Size)
	remain := size
	for remain > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.ReadFull(r, chunk[:min(remain, int64(len(chunk)))])
		if n > 0 {
			if _, werr := w.Write(chunk[:n]); werr != nil {
				return werr
			}
			remain -= int64(n)
			fs.progress(size-remain, size, string(b.Type[:]))
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				fs.error("found incomplete atom", "atom", b.String(), "short", remain)
				return fmt.Errorf("%w: %s is %d bytes short", ErrIncompleteBox, b.Type[:], remain)
			}
			return err
		}
	}
	return nil
}
