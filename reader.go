package bcsv

import (
	"io"
	"os"
	"sort"

	"github.com/webertob/bcsv-go/internal/checksum"
	"github.com/webertob/bcsv-go/internal/filecodec"
	"github.com/webertob/bcsv-go/internal/format"
)

// Reader reads a file sequentially (ReadNext) or by absolute row index
// (Read). It loads the footer directory on open, so locating the packet
// containing any row is a binary search; within a packet, rows decode
// forward. A Reader owns its file handle and buffers exclusively; sharing
// one Reader between goroutines is undefined.
type Reader struct {
	r      io.ReaderAt
	size   int64
	closer io.Closer
	path   string

	layout   *Layout
	fileID   filecodec.ID
	rowCodec RowCodecKind

	state  handleState
	errMsg string
	sealed bool

	directory []format.DirEntry
	totalRows uint64
	lastSum   uint64 // footer's checksum of the final packet payload
	dirStart  int64  // absolute offset of the footer's begin marker
	headerEnd int64

	cur         *Row
	rowPos      int64 // index of the last row returned, -1 before the first
	pktIdx      int   // index of the loaded packet, -1 before the first
	payload     []byte
	payloadOff  int
	rowsDecoded uint64 // rows decoded from the loaded packet so far
	pktSum      uint64 // payload checksum of the loaded packet
	zohDec      *ZohDecoder

	batchReader *filecodec.BatchReader
	batchNext   int // packet index the batch reader expects next
}

// OpenReader opens the file at path for reading.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapErr(KindIO, err, "open %q for reading", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, wrapErr(KindIO, err, "stat %q", path)
	}
	r, err := NewReader(f, st.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	r.path = path
	r.closer = f
	return r, nil
}

// NewReader builds a Reader over an arbitrary io.ReaderAt of the given
// size. Tests read back files written into memory without touching disk.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	r := &Reader{
		r:         ra,
		size:      size,
		rowPos:    -1,
		pktIdx:    -1,
		batchNext: -1,
	}

	fh, headerEnd, err := format.ReadFileHeader(io.NewSectionReader(ra, 0, size))
	if err != nil {
		return nil, wrapErr(KindFormat, err, "read file header")
	}
	if fh.Version.Major != format.CurrentVersion.Major {
		return nil, newErr(KindFormat, "unsupported format version %d.%d.%d",
			fh.Version.Major, fh.Version.Minor, fh.Version.Patch)
	}
	r.fileID = filecodec.ID(fh.FileCodecID)
	if !r.fileID.IsPacketFramed() && r.fileID != filecodec.Stream001 && r.fileID != filecodec.StreamLZ4001 {
		return nil, newErr(KindFormat, "unknown file codec id %d", fh.FileCodecID)
	}
	r.rowCodec = RowCodecKind(fh.RowCodecID)
	if r.rowCodec != RowCodecFlat && r.rowCodec != RowCodecZoH {
		return nil, newErr(KindFormat, "unknown row codec id %d", fh.RowCodecID)
	}
	layout, err := layoutFromColumnDescs(fh.Columns)
	if err != nil {
		return nil, err
	}
	r.layout = layout
	r.headerEnd = headerEnd
	r.cur = NewRow(layout)
	if r.rowCodec == RowCodecZoH {
		r.zohDec = NewZohDecoder(layout)
	}
	if r.fileID == filecodec.PacketLZ4Batch001 {
		r.batchReader = &filecodec.BatchReader{}
	}

	footer, ok, ferr := format.ReadFooter(ra, size)
	if ok {
		r.directory = footer.Directory
		r.totalRows = footer.TotalRowCount
		r.lastSum = footer.LastPayloadChecksum
		r.dirStart = footer.DirectoryStart
		if err := validateDirectory(r.directory); err != nil {
			return nil, err
		}
		r.sealed = true
	} else {
		if !r.fileID.IsPacketFramed() {
			return nil, wrapErr(KindRecovery, ferr, "stream-framed file has no valid footer and cannot be recovered packet-wise")
		}
		if err := r.recover(); err != nil {
			return nil, err
		}
		r.errMsg = newErr(KindRecovery, "file is unsealed (%v); recovered %d packets, %d rows", ferr, len(r.directory), r.totalRows).Error()
	}

	r.state = stateOpen
	return r, nil
}

func validateDirectory(dir []format.DirEntry) error {
	for i, e := range dir {
		if i == 0 {
			if e.FirstRow != 0 {
				return newErr(KindFormat, "directory entry 0 has first_row %d, want 0", e.FirstRow)
			}
			continue
		}
		if e.ByteOffset <= dir[i-1].ByteOffset || e.FirstRow < dir[i-1].FirstRow {
			return newErr(KindFormat, "directory entries not monotonically increasing at %d", i)
		}
	}
	return nil
}

// recover rebuilds the directory by scanning packet headers forward from
// the end of the file header, stopping at the first header or payload that
// fails validation. The file stays readable up to that point.
func (r *Reader) recover() error {
	pos := r.headerEnd
	var prevSum uint64
	var rows uint64
	br := &filecodec.BatchReader{}

	for pos+format.PacketHeaderSize < r.size {
		sect := io.NewSectionReader(r.r, pos, r.size-pos)
		hdr, err := format.ReadPacketHeader(sect)
		if err != nil {
			break
		}
		if hdr.PrevPayloadChecksum != prevSum || hdr.FirstRowIndex != rows {
			break
		}
		payload, err := r.readPayloadFrom(sect, br)
		if err != nil {
			break
		}
		n, err := r.countRows(payload)
		if err != nil {
			break
		}
		used, err := sect.Seek(0, io.SeekCurrent)
		if err != nil {
			break
		}
		r.directory = append(r.directory, format.DirEntry{ByteOffset: uint64(pos), FirstRow: rows})
		rows += n
		prevSum = checksum.Payload(payload)
		pos += used
	}
	if len(r.directory) == 0 {
		return newErr(KindRecovery, "no recoverable packets in unsealed file")
	}
	r.totalRows = rows
	r.lastSum = prevSum
	r.sealed = false
	return nil
}

// readPayloadFrom reads one packet's decompressed payload from sect, which
// must be positioned immediately after the packet header.
func (r *Reader) readPayloadFrom(sect *io.SectionReader, br *filecodec.BatchReader) ([]byte, error) {
	if r.fileID == filecodec.PacketLZ4Batch001 {
		return br.DecodeNext(sect)
	}
	return filecodec.DecodePacketPayload(r.fileID, sect)
}

// countRows decodes every record in payload with fresh codec state, just to
// count them; used during recovery where the footer's totals are gone.
func (r *Reader) countRows(payload []byte) (uint64, error) {
	var n uint64
	tmp := NewRow(r.layout)
	if r.rowCodec == RowCodecZoH {
		dec := NewZohDecoder(r.layout)
		off := 0
		for off < len(payload) {
			if payload[off] == ZohEOFSentinel {
				break
			}
			used, err := dec.Decode(payload[off:], tmp)
			if err != nil {
				return 0, err
			}
			off += used
			n++
		}
		return n, nil
	}
	off := 0
	for off < len(payload) {
		used, err := DecodeFlat(tmp, payload[off:])
		if err != nil {
			return 0, err
		}
		off += used
		n++
	}
	return n, nil
}

// IsOpen reports whether the reader has an open file.
func (r *Reader) IsOpen() bool { return r.state == stateOpen }

// Sealed reports whether the file's footer was present and valid. An
// unsealed file is readable up to its last recovered packet; ErrorMsg
// carries the recovery warning.
func (r *Reader) Sealed() bool { return r.sealed }

// ErrorMsg returns the last error or warning message, or "" if none.
func (r *Reader) ErrorMsg() string { return r.errMsg }

// RowCount returns the total number of rows in the file (recovered rows
// only, for an unsealed file).
func (r *Reader) RowCount() uint64 { return r.totalRows }

// RowPos returns the index of the last row returned by ReadNext or Read,
// or -1 if no row has been returned yet.
func (r *Reader) RowPos() int64 { return r.rowPos }

// FilePath returns the path this reader was opened from, or "" for an
// in-memory reader.
func (r *Reader) FilePath() string { return r.path }

// Layout returns the column schema stored in the file header.
func (r *Reader) Layout() *Layout { return r.layout }

// RowCodec returns the row codec the file was written with.
func (r *Reader) RowCodec() RowCodecKind { return r.rowCodec }

// Row returns the current decoded row. Only valid after a successful
// ReadNext or Read.
func (r *Reader) Row() *Row { return r.cur }

// Close releases the file handle. It is idempotent.
func (r *Reader) Close() error {
	if r.state != stateOpen {
		return nil
	}
	r.state = stateClosed
	if r.closer != nil {
		if err := r.closer.Close(); err != nil {
			r.errMsg = err.Error()
			return wrapErr(KindIO, err, "close file")
		}
	}
	return nil
}

// fatal records err, closes the reader, and returns false. Checksum and
// format failures mid-read are unrecoverable.
func (r *Reader) fatal(err error) bool {
	r.errMsg = err.Error()
	r.state = stateClosed
	if r.closer != nil {
		r.closer.Close()
	}
	return false
}

func (r *Reader) packetRows(k int) uint64 {
	if k+1 < len(r.directory) {
		return r.directory[k+1].FirstRow - r.directory[k].FirstRow
	}
	return r.totalRows - r.directory[k].FirstRow
}

// loadPacket reads, validates and decompresses packet k, resetting row
// codec state. chainSum, when non-nil, is the payload checksum of the
// packet that precedes k in the file; the header's embedded link must match
// it (this is what detects reordered or substituted packets).
func (r *Reader) loadPacket(k int, chainSum *uint64) error {
	if !r.fileID.IsPacketFramed() {
		return r.loadStream()
	}
	off := int64(r.directory[k].ByteOffset)
	sect := io.NewSectionReader(r.r, off, r.size-off)
	hdr, err := format.ReadPacketHeader(sect)
	if err != nil {
		return wrapErr(KindChecksum, err, "packet %d header", k)
	}
	if hdr.FirstRowIndex != r.directory[k].FirstRow {
		return newErr(KindFormat, "packet %d first_row %d disagrees with directory (%d)", k, hdr.FirstRowIndex, r.directory[k].FirstRow)
	}
	if k == 0 && hdr.PrevPayloadChecksum != 0 {
		return newErr(KindChecksum, "packet 0 carries a non-zero chain checksum")
	}
	if chainSum != nil && hdr.PrevPayloadChecksum != *chainSum {
		return newErr(KindChecksum, "packet %d chain checksum mismatch: header %x, predecessor payload %x", k, hdr.PrevPayloadChecksum, *chainSum)
	}

	var payload []byte
	if r.fileID == filecodec.PacketLZ4Batch001 {
		payload, err = r.batchPayload(k, sect)
	} else {
		payload, err = filecodec.DecodePacketPayload(r.fileID, sect)
	}
	if err != nil {
		return wrapErr(KindFormat, err, "packet %d payload", k)
	}

	sum := checksum.Payload(payload)
	if r.sealed && k == len(r.directory)-1 && sum != r.lastSum {
		return newErr(KindChecksum, "final packet payload checksum mismatch: got %x, footer has %x", sum, r.lastSum)
	}

	r.pktIdx = k
	r.payload = payload
	r.payloadOff = 0
	r.rowsDecoded = 0
	r.pktSum = sum
	if r.zohDec != nil {
		r.zohDec.Reset()
	}
	return nil
}

// batchPayload returns packet k's payload for the batched codec. Sequential
// packets slice out of the cached blob; a jump replays chunks from the
// batch's head packet.
func (r *Reader) batchPayload(k int, sect *io.SectionReader) ([]byte, error) {
	if k == r.batchNext {
		p, err := r.batchReader.DecodeNext(sect)
		if err != nil {
			return nil, err
		}
		r.batchNext = k + 1
		return p, nil
	}

	head := k
	for {
		isHead, err := r.chunkIsHead(head)
		if err != nil {
			return nil, err
		}
		if isHead {
			break
		}
		if head == 0 {
			return nil, newErr(KindFormat, "no batch head chunk precedes packet %d", k)
		}
		head--
	}

	r.batchReader = &filecodec.BatchReader{}
	var payload []byte
	for j := head; j <= k; j++ {
		off := int64(r.directory[j].ByteOffset) + format.PacketHeaderSize
		chunk := io.NewSectionReader(r.r, off, r.size-off)
		p, err := r.batchReader.DecodeNext(chunk)
		if err != nil {
			return nil, err
		}
		payload = p
	}
	r.batchNext = k + 1
	return payload, nil
}

func (r *Reader) chunkIsHead(k int) (bool, error) {
	var meta [5]byte
	off := int64(r.directory[k].ByteOffset) + format.PacketHeaderSize
	if _, err := r.r.ReadAt(meta[:], off); err != nil {
		return false, wrapErr(KindIO, err, "read batch chunk meta of packet %d", k)
	}
	return meta[4] == 1, nil
}

// loadStream decompresses the single continuous payload of a stream-framed
// file. The payload spans from the end of the file header to the start of
// the footer directory.
func (r *Reader) loadStream() error {
	start := int64(r.directory[0].ByteOffset)
	sect := io.NewSectionReader(r.r, start, r.dirStart-start)
	payload, err := filecodec.DecodeStream(r.fileID, sect)
	if err != nil {
		return wrapErr(KindFormat, err, "stream payload")
	}
	if sum := checksum.Payload(payload); sum != r.lastSum {
		return newErr(KindChecksum, "stream payload checksum mismatch: got %x, footer has %x", sum, r.lastSum)
	}
	r.pktIdx = 0
	r.payload = payload
	r.payloadOff = 0
	r.rowsDecoded = 0
	if r.zohDec != nil {
		r.zohDec.Reset()
	}
	return nil
}

// decodeOne decodes the next record of the loaded packet into r.cur.
func (r *Reader) decodeOne() error {
	data := r.payload[r.payloadOff:]
	if r.rowCodec == RowCodecZoH {
		n, err := r.zohDec.Decode(data, r.cur)
		if err != nil {
			return err
		}
		r.payloadOff += n
	} else {
		n, err := DecodeFlat(r.cur, data)
		if err != nil {
			return err
		}
		r.payloadOff += n
	}
	r.rowsDecoded++
	return nil
}

// ReadNext advances to the next row, returning false at end of file or on
// a fatal error (distinguish via ErrorMsg). Packet transitions validate the
// chain checksum against the payload just decoded.
func (r *Reader) ReadNext() bool {
	if r.state != stateOpen {
		r.errMsg = newErr(KindState, "read_next: reader is not open").Error()
		return false
	}
	next := uint64(r.rowPos + 1)
	if next >= r.totalRows {
		return false
	}

	if r.pktIdx < 0 {
		if err := r.loadPacket(0, nil); err != nil {
			return r.fatal(err)
		}
	} else if r.fileID.IsPacketFramed() && r.rowsDecoded >= r.packetRows(r.pktIdx) {
		prev := r.pktSum
		if err := r.loadPacket(r.pktIdx+1, &prev); err != nil {
			return r.fatal(err)
		}
	}

	if err := r.decodeOne(); err != nil {
		return r.fatal(err)
	}
	r.rowPos = int64(next)
	return true
}

// Read positions the reader on row i (random access). If i lies in the
// packet already loaded at or ahead of the current decode position, it
// continues forward; otherwise it seeks to the packet containing i found
// by binary search, decompresses it, and decodes forward from the packet's
// first row.
func (r *Reader) Read(i uint64) bool {
	if r.state != stateOpen {
		r.errMsg = newErr(KindState, "read: reader is not open").Error()
		return false
	}
	if i >= r.totalRows {
		r.errMsg = newErr(KindRange, "read: row %d out of range [0,%d)", i, r.totalRows).Error()
		return false
	}

	k := sort.Search(len(r.directory), func(j int) bool {
		return r.directory[j].FirstRow > i
	}) - 1

	// absNext is the absolute index of the next row decodeOne would yield.
	absNext := uint64(0)
	inPlace := false
	if r.pktIdx == k {
		absNext = r.directory[k].FirstRow + r.rowsDecoded
		if absNext == i+1 && r.rowPos == int64(i) {
			return true
		}
		inPlace = absNext <= i
	}
	if !inPlace {
		if err := r.loadPacket(k, nil); err != nil {
			return r.fatal(err)
		}
		absNext = r.directory[k].FirstRow
	}

	for absNext <= i {
		if err := r.decodeOne(); err != nil {
			return r.fatal(err)
		}
		absNext++
	}
	r.rowPos = int64(i)
	return true
}
