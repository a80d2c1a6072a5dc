package box

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

// aligned(8) class ChunkOffsetBox
//     extends FullBox(‘stco’, version = 0, 0) {
//         unsigned int(32) entry_count;
//         for (i=1; i <= entry_count; i++) {
//             unsigned int(32) chunk_offset;
//     }
// }
// aligned(8) class ChunkLargeOffsetBox
//     extends FullBox(‘co64’, version = 0, 0) {
//         unsigned int(32) entry_count;
//         for (i=1; i <= entry_count; i++) {
//             unsigned int(64) chunk_offset;
//         }
// }

var (
	ErrMalformedTable = errors.New("malformed chunk offset table")
	ErrCompressedMoov = errors.New("compressed moov is not supported")
	ErrLengthChanged  = errors.New("patched moov length differs from the original")
)

// ChunkOffsetTable locates one stco or co64 box inside a moov buffer.
// All offsets are relative to the start of the buffer.
type ChunkOffsetTable struct {
	Box          BasicBox
	EntryCount   uint32
	EntriesStart int64
}

func (t *ChunkOffsetTable) Large() bool {
	return t.Box.Is(TypeCO64)
}

func (t *ChunkOffsetTable) EntrySize() int64 {
	if t.Large() {
		return 8
	}
	return 4
}

func (t *ChunkOffsetTable) EntriesEnd() int64 {
	return t.EntriesStart + int64(t.EntryCount)*t.EntrySize()
}

// only these boxes can have chunk offset tables as descendants
func isAncestor(box *BasicBox) bool {
	return box.Is(TypeTRAK) || box.Is(TypeMDIA) || box.Is(TypeMINF) || box.Is(TypeSTBL)
}

// ChunkOffsetTables walks the moov box held in moov (header included) and yields
// every chunk offset table in file order. Only trak, mdia, minf and stbl are
// descended into, every other box is skipped as a whole. The sequence stops at
// the first error.
func ChunkOffsetTables(moov []byte) iter.Seq2[ChunkOffsetTable, error] {
	return func(yield func(ChunkOffsetTable, error) bool) {
		r := bytes.NewReader(moov)
		parent, err := ReadBasicBox(r)
		if err != nil {
			yield(ChunkOffsetTable{}, fmt.Errorf("%w: moov header: %w", ErrMalformedTable, err))
			return
		}
		for r.Len() > 0 {
			child, err := ReadBasicBox(r)
			if err != nil {
				if errors.Is(err, ErrZeroSize) || errors.Is(err, ErrInvalidSize) {
					yield(ChunkOffsetTable{}, fmt.Errorf("%w: %s: %w", ErrMalformedTable, child, err))
				}
				return
			}
			switch {
			case child.Is(TypeSTCO), child.Is(TypeCO64):
				table, err := readChunkOffsetTable(r, child, parent)
				if !yield(table, err) || err != nil {
					return
				}
			case isAncestor(child):
				continue
			case child.Is(TypeCMOV):
				yield(ChunkOffsetTable{}, ErrCompressedMoov)
				return
			}
			if _, err = r.Seek(child.End(), io.SeekStart); err != nil {
				return
			}
		}
	}
}

func readChunkOffsetTable(r *bytes.Reader, child, parent *BasicBox) (table ChunkOffsetTable, err error) {
	table.Box = *child
	// version and flags
	if _, err = ReadUint32(r); err != nil {
		err = fmt.Errorf("%w: %s version: %w", ErrMalformedTable, child.Type[:], err)
		return
	}
	if table.EntryCount, err = ReadUint32(r); err != nil {
		err = fmt.Errorf("%w: %s entry count: %w", ErrMalformedTable, child.Type[:], err)
		return
	}
	table.EntriesStart = r.Size() - int64(r.Len())
	end := uint64(table.EntriesStart) + uint64(table.EntryCount)*uint64(table.EntrySize())
	if end > uint64(child.Offset)+child.Size || end > parent.Size || end > uint64(r.Size()) {
		err = fmt.Errorf("%w: %s at %d declares %d entries past its end", ErrMalformedTable, child.Type[:], child.Offset, table.EntryCount)
	}
	return
}

// PatchChunkOffsets returns a copy of moov in which every entry of every table
// has bias added. stco entries wrap around at 32 bits. The copy always has the
// same length as moov.
func PatchChunkOffsets(moov []byte, tables []ChunkOffsetTable, bias int64) ([]byte, error) {
	in := bytes.NewReader(moov)
	var out bytes.Buffer
	out.Grow(len(moov))
	var cursor int64
	for i := range tables {
		table := &tables[i]
		if table.EntriesStart < cursor || table.EntriesEnd() > int64(len(moov)) {
			return nil, fmt.Errorf("%w: %s at %d overlaps or exceeds the buffer", ErrMalformedTable, table.Box.Type[:], table.Box.Offset)
		}
		out.Write(moov[cursor:table.EntriesStart])
		if _, err := in.Seek(table.EntriesStart, io.SeekStart); err != nil {
			return nil, err
		}
		for range table.EntryCount {
			if table.Large() {
				v, err := ReadUint64(in)
				if err != nil {
					return nil, err
				}
				WriteUint64(&out, uint64(int64(v)+bias))
			} else {
				v, err := ReadUint32(in)
				if err != nil {
					return nil, err
				}
				WriteUint32(&out, uint32(int64(v)+bias))
			}
		}
		cursor = table.EntriesEnd()
	}
	out.Write(moov[cursor:])
	if out.Len() != len(moov) {
		return nil, ErrLengthChanged
	}
	return out.Bytes(), nil
}
