package mp4

import (
	"errors"
	"io"

	"m7s.live/faststart/plugin/mp4/pkg/box"
)

// Class is the role a top-level box plays in the rewrite. It is derived from
// the box type and from where the box sits in the file.
type Class uint8

const (
	ClassOther Class = iota
	ClassFtyp
	ClassMoov
	ClassMdat
	ClassFree
)

func (c Class) String() string {
	switch c {
	case ClassFtyp:
		return "ftyp"
	case ClassMoov:
		return "moov"
	case ClassMdat:
		return "mdat"
	case ClassFree:
		return "free"
	}
	return "other"
}

type Box struct {
	box.BasicBox
	Class Class
}

// Layout holds the facts derived from one pass over the top-level boxes.
// ftyp, moov and mdat index the first box of each kind in Index.Boxes, -1
// when absent. StoppedEarly is set when the boxes behind a leading moov were
// only searched for mdat, without being classified or indexed.
type Layout struct {
	ftyp, moov, mdat   int
	MoovFirst          bool
	HasFreeAtoms       bool
	HasRedundantTail   bool
	Truncated          bool
	StoppedEarly       bool
	FreeSizeBeforeData int64
	moovSize           uint64
}

func (l *Layout) IsValid() bool {
	return l.ftyp >= 0 && l.moov >= 0 && l.mdat >= 0
}

// OffsetBias is added to every chunk offset so that it stays correct once moov
// is in front of the media data and the free boxes before it are dropped.
func (l *Layout) OffsetBias() int64 {
	var bias int64
	if !l.MoovFirst {
		bias = int64(l.moovSize)
	}
	return bias - l.FreeSizeBeforeData
}

// Index is the ordered list of top-level boxes plus their layout.
type Index struct {
	Boxes []Box
	Layout
}

func (idx *Index) Ftyp() *Box { return idx.at(idx.ftyp) }
func (idx *Index) Moov() *Box { return idx.at(idx.moov) }
func (idx *Index) Mdat() *Box { return idx.at(idx.mdat) }

func (idx *Index) at(i int) *Box {
	if i < 0 {
		return nil
	}
	return &idx.Boxes[i]
}

// scanTopLevel indexes the top-level boxes of r starting at its beginning.
// It never fails: end of data, a zero or undersized box, and a box running
// past the end of the stream all end the scan, the latter marking Truncated.
func (fs *FastStart) scanTopLevel(r io.ReadSeeker) (idx Index) {
	idx.Layout = Layout{ftyp: -1, moov: -1, mdat: -1}
	length, err := r.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = r.Seek(0, io.SeekStart)
	}
	if err != nil {
		fs.error("cannot seek input", "error", err)
		return
	}
	for {
		basic, err := box.ReadBasicBox(r)
		if err != nil {
			switch {
			case errors.Is(err, box.ErrZeroSize), errors.Is(err, box.ErrInvalidSize):
				fs.error("invalid atom", "atom", basic.String(), "error", err)
			case err != io.EOF:
				fs.error("cannot read atom header", "error", err)
			}
			return
		}
		fs.verbose(basic.String())
		b := Box{BasicBox: *basic}
		l := &idx.Layout
		i := len(idx.Boxes)
		switch {
		case l.StoppedEarly && !b.Is(box.TypeMDAT):
			// past a leading moov only the presence of mdat matters
		case b.Is(box.TypeFTYP):
			b.Class = ClassFtyp
			if l.ftyp < 0 {
				l.ftyp = i
			}
		case b.Is(box.TypeMOOV):
			if l.moov < 0 {
				b.Class = ClassMoov
				l.moov = i
				l.moovSize = b.Size
				if l.mdat < 0 {
					l.MoovFirst = true
				}
				break
			}
			// a second moov is leftover junk, dropped like free
			fs.warning("multiple moov atoms found", "atom", b.String())
			b.Class = ClassFree
			l.HasFreeAtoms = true
			if l.mdat < 0 {
				l.FreeSizeBeforeData += int64(b.Size)
			} else {
				l.HasRedundantTail = true
			}
		case b.Is(box.TypeMDAT):
			b.Class = ClassMdat
			if l.mdat < 0 {
				l.mdat = i
			}
		case b.Is(box.TypeFREE):
			b.Class = ClassFree
			l.HasFreeAtoms = true
			if l.mdat < 0 {
				l.FreeSizeBeforeData += int64(b.Size)
			}
		}
		if l.StoppedEarly {
			if b.Class == ClassMdat {
				idx.Boxes = append(idx.Boxes, b)
				return
			}
		} else {
			idx.Boxes = append(idx.Boxes, b)
			if b.Class == ClassMoov && l.MoovFirst && !fs.RemoveFreeAtom {
				l.StoppedEarly = true
			}
		}
		if b.Size > uint64(length-b.Offset) {
			fs.error("cannot seek to next atom, maybe truncated", "atom", b.String(), "length", length)
			l.Truncated = true
			return
		}
		if _, err = r.Seek(b.End(), io.SeekStart); err != nil {
			fs.error("cannot seek to next atom, maybe truncated", "atom", b.String(), "error", err)
			l.Truncated = true
			return
		}
	}
}
