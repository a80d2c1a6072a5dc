package mp4

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"testing"

	gomp4 "github.com/abema/go-mp4"
)

func atom(typ string, payload ...[]byte) []byte {
	size := 8
	for _, p := range payload {
		size += len(p)
	}
	buf := binary.BigEndian.AppendUint32(nil, uint32(size))
	buf = append(buf, typ...)
	for _, p := range payload {
		buf = append(buf, p...)
	}
	return buf
}

// largeAtom uses the 64-bit size field even though the box is small.
func largeAtom(typ string, payload []byte) []byte {
	buf := binary.BigEndian.AppendUint32(nil, 1)
	buf = append(buf, typ...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(16+len(payload)))
	return append(buf, payload...)
}

func padded(typ string, size int) []byte {
	return atom(typ, make([]byte, size-8))
}

// ftyp is 20 bytes: isom, minor 0x200, one compatible brand.
func ftyp() []byte {
	return atom("ftyp", []byte("isom"), []byte{0, 0, 2, 0}, []byte("isom"))
}

func stco(entries ...uint32) []byte {
	payload := binary.BigEndian.AppendUint32(nil, 0)
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(entries)))
	for _, e := range entries {
		payload = binary.BigEndian.AppendUint32(payload, e)
	}
	return atom("stco", payload)
}

func co64(entries ...uint64) []byte {
	payload := binary.BigEndian.AppendUint32(nil, 0)
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(entries)))
	for _, e := range entries {
		payload = binary.BigEndian.AppendUint64(payload, e)
	}
	return atom("co64", payload)
}

func trak(table []byte) []byte {
	return atom("trak", atom("mdia", atom("minf", atom("stbl", table))))
}

// moovOfSize builds a moov of exactly size bytes holding one trak per table,
// padded with a udta box.
func moovOfSize(t *testing.T, size int, tables ...[]byte) []byte {
	t.Helper()
	var content []byte
	for _, table := range tables {
		content = append(content, trak(table)...)
	}
	pad := size - 8 - len(content)
	if pad < 8 {
		t.Fatalf("moov of %d bytes cannot hold %d bytes of tracks", size, len(content))
	}
	return atom("moov", content, padded("udta", pad))
}

func join(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

type memWriter struct {
	*memOutput
}

func (w memWriter) Write(p []byte) (int, error) { return w.Buffer.Write(p) }
func (w memWriter) Close() error {
	w.closed++
	return nil
}

type memOutput struct {
	bytes.Buffer
	created, closed, deleted int
	createErr                error
}

func (m *memOutput) Create() (io.WriteCloser, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created++
	m.Reset()
	return memWriter{m}, nil
}

func (m *memOutput) Delete() error {
	m.deleted++
	m.Reset()
	return nil
}

type recordNotifier struct {
	messages, errors, warnings, verbose []string
	progress                            int
}

func (n *recordNotifier) Message(s string) { n.messages = append(n.messages, s) }
func (n *recordNotifier) Error(s string)   { n.errors = append(n.errors, s) }
func (n *recordNotifier) Warning(s string) { n.warnings = append(n.warnings, s) }
func (n *recordNotifier) Verbose(s string) { n.verbose = append(n.verbose, s) }
func (n *recordNotifier) UpdateProgress(current, total int64, label string) {
	n.progress++
}

// panicNotifier panics on the first progress update.
type panicNotifier struct {
	recordNotifier
}

func (n *panicNotifier) UpdateProgress(current, total int64, label string) {
	panic("progress sink gone")
}

func newTestFastStart() *FastStart {
	fs := New()
	fs.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return fs
}

// chunkOffsets reads every stco and co64 entry of data with an independent parser.
func chunkOffsets(t *testing.T, data []byte) (offsets []uint64) {
	t.Helper()
	r := bytes.NewReader(data)
	stbl := gomp4.BoxPath{gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak(), gomp4.BoxTypeMdia(), gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl()}
	boxes, err := gomp4.ExtractBoxesWithPayload(r, nil, []gomp4.BoxPath{
		append(append(gomp4.BoxPath{}, stbl...), gomp4.BoxTypeStco()),
		append(append(gomp4.BoxPath{}, stbl...), gomp4.BoxTypeCo64()),
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range boxes {
		switch payload := b.Payload.(type) {
		case *gomp4.Stco:
			for _, o := range payload.ChunkOffset {
				offsets = append(offsets, uint64(o))
			}
		case *gomp4.Co64:
			offsets = append(offsets, payload.ChunkOffset...)
		default:
			t.Fatalf("unexpected payload %T", b.Payload)
		}
	}
	return
}

func mustIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
