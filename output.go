package faststart

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"m7s.live/faststart/pkg"
	mp4 "m7s.live/faststart/plugin/mp4/pkg"
)

var _ mp4.OutputFactory = (*FileOutput)(nil)

// FileOutput creates the rewritten file at Path. Without Overwrite an existing
// file is never touched.
type FileOutput struct {
	Path      string
	Overwrite bool
}

type bufferedFile struct {
	*bufio.Writer
	file *os.File
}

func (b *bufferedFile) Close() error {
	err := b.Flush()
	if cerr := b.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func (o *FileOutput) Create() (io.WriteCloser, error) {
	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !o.Overwrite {
		flag |= os.O_EXCL
	}
	if dir := filepath.Dir(o.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(o.Path, flag, 0644)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%w: %s", pkg.ErrOutputExists, o.Path)
	}
	if err != nil {
		return nil, err
	}
	return &bufferedFile{bufio.NewWriterSize(f, DefaultReadBuffer), f}, nil
}

func (o *FileOutput) Delete() error {
	return os.Remove(o.Path)
}

// OutputPath puts suffix between the base name and the extension of source,
// a.mp4 becomes a_faststart.mp4.
func OutputPath(source, suffix string) string {
	ext := filepath.Ext(source)
	return strings.TrimSuffix(source, ext) + suffix + ext
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
