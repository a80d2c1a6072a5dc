package faststart

import (
	"os"

	"github.com/sunfish-shogi/bufseekio"
)

const (
	DefaultReadBuffer = 128 * 1024
	DefaultReadPages  = 4
)

// Source is an input file behind a paged read-ahead buffer. The rewrite seeks
// back and forth between atoms, which a plain bufio.Reader cannot follow.
type Source struct {
	*bufseekio.ReadSeeker
	file   *os.File
	Length int64
}

func OpenSource(path string, bufferSize, pages int) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, os.ErrInvalid
	}
	if bufferSize <= 0 {
		bufferSize = DefaultReadBuffer
	}
	if pages <= 0 {
		pages = DefaultReadPages
	}
	return &Source{
		ReadSeeker: bufseekio.NewReadSeeker(f, bufferSize, pages),
		file:       f,
		Length:     info.Size(),
	}, nil
}

func (s *Source) Close() error {
	return s.file.Close()
}
