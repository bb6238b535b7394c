// Package format implements the on-disk byte layouts of the container:
// FileHeader, PacketHeader and Footer. It knows nothing about Layout, Row
// or codecs — it only serializes/deserializes the fixed and variable-length
// byte structures with encoding/binary over fixed Go structs.
package format

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/webertob/bcsv-go/internal/checksum"
	"golang.org/x/xerrors"
)

// FileMagic is the 4-byte magic identifying a bcsv file.
var FileMagic = [4]byte{'B', 'C', 'S', 'V'}

// PacketMagic is the 4-byte magic at the start of every PacketHeader.
var PacketMagic = [4]byte{'B', 'P', 'K', 'T'}

// FooterBeginMarker and FooterEndMarker bracket the packet directory.
var (
	FooterBeginMarker = [4]byte{'B', 'I', 'D', 'X'}
	FooterEndMarker   = [4]byte{'E', 'I', 'D', 'X'}
)

// Version is the file format version triple.
type Version struct {
	Major, Minor, Patch byte
}

// CurrentVersion is written into every file produced by this package.
var CurrentVersion = Version{1, 0, 0}

// File format flag bits (FileHeader.Flags).
const (
	FlagZeroOrderHold uint32 = 1 << 0
)

// ColumnDesc is the wire representation of one Layout column: just enough
// to round-trip through the file header without this package depending on
// the root bcsv.Layout type (the root package imports format, so the
// dependency can only point that way).
type ColumnDesc struct {
	Name string
	Type uint8
}

// FileHeader is the decoded form of the fixed-plus-variable FileHeader
// section at byte 0 of every bcsv file.
type FileHeader struct {
	Version          Version
	Flags            uint32
	FileCodecID      uint16
	RowCodecID       uint16
	CompressionLevel uint8
	BlockSizeHint    uint32
	Columns          []ColumnDesc
}

// fixedHeaderPrefix mirrors bytes [0,24) of the FileHeader verbatim.
type fixedHeaderPrefix struct {
	Magic            [4]byte
	VersionMajor     byte
	VersionMinor     byte
	VersionPatch     byte
	Reserved0        byte
	Flags            uint32
	FileCodecID      uint16
	RowCodecID       uint16
	CompressionLevel uint8
	Reserved1        [3]byte
	BlockSizeHint    uint32
}

// Encode serializes h to its on-disk byte representation, including the
// trailing header checksum.
func (h *FileHeader) Encode() ([]byte, error) {
	var buf bytes.Buffer
	prefix := fixedHeaderPrefix{
		Magic:            FileMagic,
		VersionMajor:     h.Version.Major,
		VersionMinor:     h.Version.Minor,
		VersionPatch:     h.Version.Patch,
		Flags:            h.Flags,
		FileCodecID:      h.FileCodecID,
		RowCodecID:       h.RowCodecID,
		CompressionLevel: h.CompressionLevel,
		BlockSizeHint:    h.BlockSizeHint,
	}
	if err := binary.Write(&buf, binary.LittleEndian, prefix); err != nil {
		return nil, xerrors.Errorf("encode file header prefix: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(h.Columns))); err != nil {
		return nil, xerrors.Errorf("encode column count: %w", err)
	}
	for _, c := range h.Columns {
		if err := binary.Write(&buf, binary.LittleEndian, uint16(len(c.Name))); err != nil {
			return nil, xerrors.Errorf("encode column name length: %w", err)
		}
		if _, err := buf.WriteString(c.Name); err != nil {
			return nil, xerrors.Errorf("encode column name: %w", err)
		}
		if err := buf.WriteByte(c.Type); err != nil {
			return nil, xerrors.Errorf("encode column type: %w", err)
		}
	}
	sum := checksum.Header(buf.Bytes())
	if err := binary.Write(&buf, binary.LittleEndian, sum); err != nil {
		return nil, xerrors.Errorf("encode header checksum: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTo writes the encoded header to w.
func (h *FileHeader) WriteTo(w io.Writer) (int64, error) {
	b, err := h.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// ReadFileHeader reads and validates a FileHeader from the start of r,
// returning the header and the number of bytes it occupied.
func ReadFileHeader(r io.Reader) (*FileHeader, int64, error) {
	var prefix fixedHeaderPrefix
	prefixBuf := make([]byte, binary.Size(prefix))
	if _, err := io.ReadFull(r, prefixBuf); err != nil {
		return nil, 0, xerrors.Errorf("read file header prefix: %w", err)
	}
	if err := binary.Read(bytes.NewReader(prefixBuf), binary.LittleEndian, &prefix); err != nil {
		return nil, 0, xerrors.Errorf("decode file header prefix: %w", err)
	}
	if prefix.Magic != FileMagic {
		return nil, 0, xerrors.Errorf("bad file magic: got %q, want %q", prefix.Magic, FileMagic)
	}

	var all bytes.Buffer
	all.Write(prefixBuf)

	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, 0, xerrors.Errorf("read column count: %w", err)
	}
	all.Write(countBuf[:])
	count := binary.LittleEndian.Uint32(countBuf[:])

	columns := make([]ColumnDesc, 0, count)
	for i := uint32(0); i < count; i++ {
		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, 0, xerrors.Errorf("read column %d name length: %w", i, err)
		}
		all.Write(lenBuf[:])
		nameLen := binary.LittleEndian.Uint16(lenBuf[:])
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, 0, xerrors.Errorf("read column %d name: %w", i, err)
		}
		all.Write(name)
		var typ [1]byte
		if _, err := io.ReadFull(r, typ[:]); err != nil {
			return nil, 0, xerrors.Errorf("read column %d type: %w", i, err)
		}
		all.Write(typ[:])
		columns = append(columns, ColumnDesc{Name: string(name), Type: typ[0]})
	}

	var sumBuf [4]byte
	if _, err := io.ReadFull(r, sumBuf[:]); err != nil {
		return nil, 0, xerrors.Errorf("read header checksum: %w", err)
	}
	want := binary.LittleEndian.Uint32(sumBuf[:])
	if got := checksum.Header(all.Bytes()); got != want {
		return nil, 0, xerrors.Errorf("file header checksum mismatch: got %x, want %x", got, want)
	}

	h := &FileHeader{
		Version:          Version{prefix.VersionMajor, prefix.VersionMinor, prefix.VersionPatch},
		Flags:            prefix.Flags,
		FileCodecID:      prefix.FileCodecID,
		RowCodecID:       prefix.RowCodecID,
		CompressionLevel: prefix.CompressionLevel,
		BlockSizeHint:    prefix.BlockSizeHint,
		Columns:          columns,
	}
	return h, int64(all.Len()) + 4, nil
}
