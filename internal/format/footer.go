package format

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/webertob/bcsv-go/internal/checksum"
	"golang.org/x/xerrors"
)

// DirEntrySize is the encoded size of one directory entry: u64 byte_offset,
// u64 first_row.
const DirEntrySize = 16

// FooterTailSize is the fixed tail every reader seeks to (file_size-32) to
// start footer validation.
const FooterTailSize = 32

// DirEntry maps a packet's first row index to its byte offset in the file.
type DirEntry struct {
	ByteOffset uint64
	FirstRow   uint64
}

// Footer is the decoded packet directory plus totals written once at close.
// DirectoryStart is filled in by ReadFooter (the absolute offset of the
// begin marker) so callers can bound the payload area preceding the footer;
// it is not itself serialized.
type Footer struct {
	Directory           []DirEntry
	LastPayloadChecksum uint64
	TotalRowCount       uint64
	DirectoryStart      int64
}

// WriteTo writes the footer to w and returns the number of bytes written.
// The directory body is the begin marker plus the entries; the fixed
// 32-byte tail is the end marker, the distance from the tail start back to
// the begin marker, the totals, and a checksum over every footer byte that
// precedes it.
func (f *Footer) WriteTo(w io.Writer) (int64, error) {
	var body bytes.Buffer
	body.Write(FooterBeginMarker[:])
	for _, e := range f.Directory {
		binary.Write(&body, binary.LittleEndian, e.ByteOffset)
		binary.Write(&body, binary.LittleEndian, e.FirstRow)
	}

	var tail bytes.Buffer
	tail.Write(FooterEndMarker[:])
	binary.Write(&tail, binary.LittleEndian, uint32(body.Len()))
	binary.Write(&tail, binary.LittleEndian, f.LastPayloadChecksum)
	binary.Write(&tail, binary.LittleEndian, f.TotalRowCount)

	h := checksum.NewPayloadHasher()
	h.Write(body.Bytes())
	h.Write(tail.Bytes())
	binary.Write(&tail, binary.LittleEndian, h.Sum64())

	if _, err := w.Write(body.Bytes()); err != nil {
		return 0, xerrors.Errorf("write footer directory: %w", err)
	}
	if _, err := w.Write(tail.Bytes()); err != nil {
		return 0, xerrors.Errorf("write footer tail: %w", err)
	}
	return int64(body.Len() + tail.Len()), nil
}

// ReadFooter reads the footer from a ReaderAt given the total file size. It
// returns (footer, true, nil) on success, or (nil, false, err) if the tail
// is structurally absent or fails validation — callers fall back to packet
// recovery in that case.
func ReadFooter(r io.ReaderAt, fileSize int64) (*Footer, bool, error) {
	if fileSize < FooterTailSize {
		return nil, false, xerrors.New("file too small to contain a footer tail")
	}
	tail := make([]byte, FooterTailSize)
	if _, err := r.ReadAt(tail, fileSize-FooterTailSize); err != nil {
		return nil, false, xerrors.Errorf("read footer tail: %w", err)
	}
	if !bytes.Equal(tail[0:4], FooterEndMarker[:]) {
		return nil, false, xerrors.New("footer end marker missing")
	}
	distance := binary.LittleEndian.Uint32(tail[4:8])
	lastPayloadChecksum := binary.LittleEndian.Uint64(tail[8:16])
	totalRowCount := binary.LittleEndian.Uint64(tail[16:24])
	wantDirSum := binary.LittleEndian.Uint64(tail[24:32])

	// The distance counts from the tail start (the end marker) back to the
	// begin marker, so the directory body excludes both tail and end marker.
	tailStartOffset := fileSize - FooterTailSize
	directoryStartOffset := tailStartOffset - int64(distance)
	if directoryStartOffset < 0 || distance < 4 {
		return nil, false, xerrors.New("footer directory offset out of range")
	}

	body := make([]byte, distance)
	if _, err := r.ReadAt(body, directoryStartOffset); err != nil {
		return nil, false, xerrors.Errorf("read footer directory: %w", err)
	}
	if !bytes.Equal(body[0:4], FooterBeginMarker[:]) {
		return nil, false, xerrors.New("footer begin marker missing")
	}

	// Same byte range the writer hashed: directory body plus the tail up to
	// the checksum itself.
	h := checksum.NewPayloadHasher()
	h.Write(body)
	h.Write(tail[0:24])
	if h.Sum64() != wantDirSum {
		return nil, false, xerrors.New("footer directory checksum mismatch")
	}

	entryBytes := body[4:]
	if len(entryBytes)%DirEntrySize != 0 {
		return nil, false, xerrors.New("footer directory length not a multiple of entry size")
	}
	n := len(entryBytes) / DirEntrySize
	dir := make([]DirEntry, n)
	for i := 0; i < n; i++ {
		off := i * DirEntrySize
		dir[i] = DirEntry{
			ByteOffset: binary.LittleEndian.Uint64(entryBytes[off : off+8]),
			FirstRow:   binary.LittleEndian.Uint64(entryBytes[off+8 : off+16]),
		}
	}

	return &Footer{
		Directory:           dir,
		LastPayloadChecksum: lastPayloadChecksum,
		TotalRowCount:       totalRowCount,
		DirectoryStart:      directoryStartOffset,
	}, true, nil
}
