package box

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	BasicBoxLen = 8
	LargeBoxLen = 16
	FullBoxLen  = 12
)

func f(s string) [4]byte {
	return [4]byte([]byte(s))
}

var (
	TypeFTYP = f("ftyp")
	TypeMOOV = f("moov")
	TypeMDAT = f("mdat")
	TypeFREE = f("free")
	TypeTRAK = f("trak")
	TypeMDIA = f("mdia")
	TypeMINF = f("minf")
	TypeSTBL = f("stbl")
	TypeSTCO = f("stco")
	TypeCO64 = f("co64")
	TypeCMOV = f("cmov")
)

var (
	ErrZeroSize    = errors.New("zero-size box")
	ErrInvalidSize = errors.New("box size smaller than its header")
)

//	aligned(8) class Box (unsigned int(32) boxtype) {
//	    unsigned int(32) size;
//	    unsigned int(32) type = boxtype;
//	    if (size==1) {
//	       unsigned int(64) largesize;
//	    } else if (size==0) {
//	       // box extends to end of file
//	    }
//	}
type BasicBox struct {
	Offset     int64
	Size       uint64
	Type       [4]byte
	HeaderSize int
}

// Is compares box types ignoring ASCII case.
func (box *BasicBox) Is(t [4]byte) bool {
	return bytes.EqualFold(box.Type[:], t[:])
}

func (box *BasicBox) End() int64 {
	return box.Offset + int64(box.Size)
}

func (box *BasicBox) HeaderEnd() int64 {
	return box.Offset + int64(box.HeaderSize)
}

func (box *BasicBox) String() string {
	return fmt.Sprintf("[%s, start=%d, size=%d]", box.Type[:], box.Offset, box.Size)
}

// ReadBasicBox reads one box header at the current position of r.
// io.EOF means there are no more boxes. ErrZeroSize and ErrInvalidSize are
// returned together with the partially decoded header.
func ReadBasicBox(r io.ReadSeeker) (box *BasicBox, err error) {
	var offset int64
	if offset, err = r.Seek(0, io.SeekCurrent); err != nil {
		return
	}
	var size uint32
	if size, err = ReadUint32(r); err != nil {
		return
	}
	box = &BasicBox{Offset: offset, Size: uint64(size), HeaderSize: BasicBoxLen}
	if box.Type, err = ReadTag(r); err != nil {
		return nil, err
	}
	switch size {
	case 0:
		return box, ErrZeroSize
	case 1:
		if box.Size, err = ReadUint64(r); err != nil {
			return nil, err
		}
		box.HeaderSize = LargeBoxLen
	}
	if box.Size < uint64(box.HeaderSize) {
		return box, ErrInvalidSize
	}
	return
}
