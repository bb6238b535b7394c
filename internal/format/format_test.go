package format

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	h := &FileHeader{
		Version:          CurrentVersion,
		Flags:            FlagZeroOrderHold,
		FileCodecID:      3,
		RowCodecID:       1,
		CompressionLevel: 6,
		BlockSizeHint:    65536,
		Columns: []ColumnDesc{
			{Name: "i", Type: 5},
			{Name: "s", Type: 11},
			{Name: "ok", Type: 0},
		},
	}
	b, err := h.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, n, err := ReadFileHeader(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(b)) {
		t.Errorf("decoded length = %d, want %d", n, len(b))
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFileHeaderChecksumDetectsCorruption(t *testing.T) {
	h := &FileHeader{Version: CurrentVersion, Columns: []ColumnDesc{{Name: "x", Type: 5}}}
	b, err := h.Encode()
	if err != nil {
		t.Fatal(err)
	}
	b[10] ^= 0xFF
	if _, _, err := ReadFileHeader(bytes.NewReader(b)); err == nil {
		t.Fatal("expected checksum error on corrupted file header")
	}
}

func TestPacketHeaderRoundTrip(t *testing.T) {
	h := &PacketHeader{FirstRowIndex: 12345, PrevPayloadChecksum: 0xdeadbeefcafe}
	b := h.Encode()
	if len(b) != PacketHeaderSize {
		t.Fatalf("encoded size = %d, want %d", len(b), PacketHeaderSize)
	}
	got, err := ReadPacketHeader(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPacketHeaderChecksumDetectsCorruption(t *testing.T) {
	h := &PacketHeader{FirstRowIndex: 1, PrevPayloadChecksum: 2}
	b := h.Encode()
	b[5] ^= 0xFF
	if _, err := ReadPacketHeader(bytes.NewReader(b)); err == nil {
		t.Fatal("expected checksum error on corrupted packet header")
	}
}

type memReaderAt struct{ b []byte }

func (m memReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.b)) {
		return 0, bytesEOF
	}
	n := copy(p, m.b[off:])
	if n < len(p) {
		return n, bytesEOF
	}
	return n, nil
}

var bytesEOF = errEOF{}

type errEOF struct{}

func (errEOF) Error() string { return "EOF" }

func TestFooterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("PREAMBLE-PACKET-BYTES-BEFORE-FOOTER")
	directoryStart := int64(buf.Len())
	footer := &Footer{
		Directory: []DirEntry{
			{ByteOffset: 24, FirstRow: 0},
			{ByteOffset: 5000, FirstRow: 100},
			{ByteOffset: 9999, FirstRow: 250},
		},
		LastPayloadChecksum: 0x1122334455667788,
		TotalRowCount:       250,
	}
	if _, err := footer.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	got, ok, err := ReadFooter(memReaderAt{data}, int64(len(data)))
	if err != nil || !ok {
		t.Fatalf("ReadFooter failed: ok=%v err=%v", ok, err)
	}
	footer.DirectoryStart = directoryStart
	if diff := cmp.Diff(footer, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFooterCorruptionDetected(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("xxxx")
	directoryStart := int64(buf.Len())
	footer := &Footer{
		Directory:           []DirEntry{{ByteOffset: 4, FirstRow: 0}},
		LastPayloadChecksum: 42,
		TotalRowCount:       10,
	}
	if _, err := footer.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	base := buf.Bytes()

	cases := map[string]func([]byte) []byte{
		"begin marker": func(b []byte) []byte {
			c := append([]byte(nil), b...)
			c[directoryStart] = 'X'
			return c
		},
		"end marker": func(b []byte) []byte {
			c := append([]byte(nil), b...)
			c[len(c)-FooterTailSize] = 'X'
			return c
		},
		"directory byte": func(b []byte) []byte {
			c := append([]byte(nil), b...)
			c[directoryStart+5] ^= 0xFF
			return c
		},
		"tail checksum": func(b []byte) []byte {
			c := append([]byte(nil), b...)
			c[len(c)-1] ^= 0xFF
			return c
		},
	}
	for name, corrupt := range cases {
		name, corrupt := name, corrupt
		t.Run(name, func(t *testing.T) {
			data := corrupt(base)
			if _, ok, err := ReadFooter(memReaderAt{data}, int64(len(data))); ok && err == nil {
				t.Fatalf("expected failure for corruption case %q", name)
			}
		})
	}
}
