package faststart

import (
	"fmt"
	"os"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
)

type TrackInfo struct {
	ID           uint32
	Handler      string
	Timescale    uint32
	Duration     uint64
	ChunkOffsets []uint64
}

// ProbeInfo summarizes the structure of an mp4 file.
type ProbeInfo struct {
	MajorBrand string
	Boxes      []string
	MoovFirst  bool
	Fragmented bool
	Duration   time.Duration
	Tracks     []TrackInfo
}

// Probe decodes the file structure without loading media data.
func Probe(path string) (*ProbeInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	file, err := mp4.DecodeFile(f, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	info := &ProbeInfo{Fragmented: file.IsFragmented()}
	if file.Ftyp != nil {
		info.MajorBrand = file.Ftyp.MajorBrand()
	}
	mdatSeen := false
	for _, b := range file.Children {
		info.Boxes = append(info.Boxes, b.Type())
		switch b.Type() {
		case "mdat":
			mdatSeen = true
		case "moov":
			info.MoovFirst = !mdatSeen
		}
	}
	moov := file.Moov
	if moov == nil {
		return info, nil
	}
	if moov.Mvhd != nil {
		info.Duration = mediaDuration(moov.Mvhd.Duration, moov.Mvhd.Timescale)
	}
	for _, trak := range moov.Traks {
		var track TrackInfo
		if trak.Tkhd != nil {
			track.ID = trak.Tkhd.TrackID
		}
		if mdia := trak.Mdia; mdia != nil {
			if mdia.Hdlr != nil {
				track.Handler = mdia.Hdlr.HandlerType
			}
			if mdia.Mdhd != nil {
				track.Timescale = mdia.Mdhd.Timescale
				track.Duration = mdia.Mdhd.Duration
			}
			if mdia.Minf != nil && mdia.Minf.Stbl != nil {
				stbl := mdia.Minf.Stbl
				if stbl.Stco != nil {
					for _, o := range stbl.Stco.ChunkOffset {
						track.ChunkOffsets = append(track.ChunkOffsets, uint64(o))
					}
				}
				if stbl.Co64 != nil {
					track.ChunkOffsets = append(track.ChunkOffsets, stbl.Co64.ChunkOffset...)
				}
			}
		}
		info.Tracks = append(info.Tracks, track)
	}
	return info, nil
}

// mediaDuration converts a duration in timescale units, splitting off whole
// seconds first so long media does not overflow.
func mediaDuration(duration uint64, timescale uint32) time.Duration {
	if timescale == 0 {
		return 0
	}
	ts := uint64(timescale)
	secs, rem := duration/ts, duration%ts
	return time.Duration(secs)*time.Second + time.Duration(rem)*time.Second/time.Duration(ts)
}
