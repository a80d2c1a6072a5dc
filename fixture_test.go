package faststart

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"
)

// slowStart is an mp4 with one video track whose moov sits behind 1000 bytes
// of mdat.
type slowStart struct {
	data      []byte
	ftypSize  uint64
	moovSize  uint64
	dataStart uint64
}

func newSlowStart(t *testing.T) *slowStart {
	t.Helper()
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "mp41"})
	moov := mp4.NewMoovBox()
	moov.AddChild(mp4.CreateMvhd())
	trak := mp4.CreateEmptyTrak(1, 1000, "video", "und")
	moov.AddChild(trak)
	stbl := trak.Mdia.Minf.Stbl
	// Two samples of 500 bytes, one per chunk. An empty stts would make the
	// file look like a fragmented init segment.
	stbl.Stts.SampleCount = []uint32{2}
	stbl.Stts.SampleTimeDelta = []uint32{1000}
	if err := stbl.Stsc.AddEntry(1, 1, 1); err != nil {
		t.Fatal(err)
	}
	stbl.Stsz.SampleNumber = 2
	stbl.Stsz.SampleSize = []uint32{500, 500}
	s := &slowStart{ftypSize: ftyp.Size()}
	s.dataStart = s.ftypSize + 8
	stbl.Stco.ChunkOffset = []uint32{uint32(s.dataStart), uint32(s.dataStart) + 500}
	s.moovSize = moov.Size()

	var buf bytes.Buffer
	if err := ftyp.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	buf.Write(binary.BigEndian.AppendUint32(nil, 1008))
	buf.WriteString("mdat")
	buf.Write(bytes.Repeat([]byte{0xAB}, 1000))
	if err := moov.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	s.data = buf.Bytes()
	return s
}

func (s *slowStart) write(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, s.data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
