package box

import (
	"encoding/binary"
	"errors"
	"io"
)

// readFull reads exactly len(buf) bytes. A short read is reported as io.EOF,
// the end-of-stream sentinel, never as io.ErrUnexpectedEOF.
func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return err
	}
	return nil
}

func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// ReadTag reads a four character box type. Bytes are passed through as is.
func ReadTag(r io.Reader) (tag [4]byte, err error) {
	err = readFull(r, tag[:])
	return
}

func WriteUint32(w io.Writer, n uint32) (err error) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], n)
	_, err = w.Write(buf[:])
	return
}

func WriteUint64(w io.Writer, n uint64) (err error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	_, err = w.Write(buf[:])
	return
}

func WriteTag(w io.Writer, tag [4]byte) (err error) {
	_, err = w.Write(tag[:])
	return
}
