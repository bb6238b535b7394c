package bcsv

import (
	"io"
	"os"

	"github.com/webertob/bcsv-go/internal/checksum"
	"github.com/webertob/bcsv-go/internal/filecodec"
	"github.com/webertob/bcsv-go/internal/format"
)

// Framing selects continuous vs per-packet file framing. Only per-packet
// framing supports random access.
type Framing int

const (
	FramingStream Framing = iota
	FramingPacket
)

// Compression selects the payload compression algorithm.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionLZ4
)

// WriterOptions configures a new file: which row codec to encode rows with,
// which file codec to frame/compress packets with, and the block size that
// triggers a packet flush.
type WriterOptions struct {
	RowCodec         RowCodecKind
	Framing          Framing
	Compression      Compression
	Batch            bool
	BatchSize        int // packets per shared LZ4 blob, PacketLZ4Batch001 only
	BlockSize        uint32
	CompressionLevel uint8
}

// DefaultWriterOptions returns the Packet001/Flat configuration: no
// compression, fixed-width rows, 64 KiB packets.
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		RowCodec:  RowCodecFlat,
		Framing:   FramingPacket,
		BlockSize: 64 * 1024,
	}
}

type handleState int

const (
	stateClosed handleState = iota
	stateOpen
)

// Writer builds a file by appending rows, then seals it with a footer on
// Close. Its lifecycle is Closed -> Open -> Closed; writing after Close or
// opening twice is a state error. A Writer owns its file handle and
// internal buffers exclusively; sharing one Writer between goroutines is
// undefined.
type Writer struct {
	w      io.WriteSeeker
	closer io.Closer
	layout *Layout
	opts   WriterOptions
	fileID filecodec.ID
	state  handleState
	errMsg string

	staging *Row
	zohEnc  *ZohEncoder

	payload          []byte
	rowsInPacket     uint64
	firstRowOfPacket uint64
	prevPayloadSum   uint64
	totalRows        uint64
	directory        []format.DirEntry
	headerEnd        int64

	batchWriter  *filecodec.BatchWriter
	batchHeaders []format.PacketHeader

	streamWriter *filecodec.StreamWriter
}

// OpenWriter creates (or, with overwrite, truncates) the file at path and
// returns a Writer ready to accept rows.
func OpenWriter(path string, overwrite bool, layout *Layout, opts WriterOptions) (*Writer, error) {
	flags := os.O_RDWR | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, wrapErr(KindIO, err, "open %q for writing", path)
	}
	w, err := NewWriter(f, layout, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter builds a Writer over an arbitrary io.WriteSeeker. Tests use
// github.com/orcaman/writerseeker to write into memory instead of a temp
// file.
func NewWriter(w io.WriteSeeker, layout *Layout, opts WriterOptions) (*Writer, error) {
	id, err := filecodec.Resolve(filecodec.Framing(opts.Framing), filecodec.Compression(opts.Compression), opts.Batch)
	if err != nil {
		return nil, wrapErr(KindFormat, err, "resolve file codec")
	}
	if opts.RowCodec != RowCodecFlat && opts.RowCodec != RowCodecZoH {
		return nil, newErr(KindFormat, "unknown row codec %d", opts.RowCodec)
	}
	if opts.BlockSize == 0 {
		opts.BlockSize = 64 * 1024
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 8
	}

	fh := &format.FileHeader{
		Version:          format.CurrentVersion,
		FileCodecID:      uint16(id),
		RowCodecID:       uint16(opts.RowCodec),
		CompressionLevel: opts.CompressionLevel,
		BlockSizeHint:    opts.BlockSize,
		Columns:          layoutToColumnDescs(layout),
	}
	if opts.RowCodec == RowCodecZoH {
		fh.Flags |= format.FlagZeroOrderHold
	}
	n, err := fh.WriteTo(w)
	if err != nil {
		return nil, wrapErr(KindIO, err, "write file header")
	}

	wr := &Writer{
		w:         w,
		layout:    layout,
		opts:      opts,
		fileID:    id,
		state:     stateOpen,
		staging:   NewRow(layout),
		headerEnd: n,
	}
	if opts.RowCodec == RowCodecZoH {
		wr.zohEnc = NewZohEncoder(layout)
	}
	if id == filecodec.PacketLZ4Batch001 {
		wr.batchWriter = filecodec.NewBatchWriter(int(opts.CompressionLevel))
	}
	if !id.IsPacketFramed() {
		sw, err := filecodec.NewStreamWriter(id, int(opts.CompressionLevel))
		if err != nil {
			return nil, err
		}
		wr.streamWriter = sw
	}
	return wr, nil
}

// IsOpen reports whether the writer has an open file.
func (w *Writer) IsOpen() bool { return w.state == stateOpen }

// ErrorMsg returns the last error message recorded, or "" if none.
func (w *Writer) ErrorMsg() string { return w.errMsg }

// RowCount returns the number of rows committed so far.
func (w *Writer) RowCount() uint64 { return w.totalRows }

// Layout returns the column schema this writer encodes against.
func (w *Writer) Layout() *Layout { return w.layout }

// Row returns the mutable staging row for the caller to fill in before
// WriteRow.
func (w *Writer) Row() *Row { return w.staging }

func (w *Writer) fail(err error) error {
	w.errMsg = err.Error()
	return err
}

// WriteRow commits the staging row (as returned by Row()) to the file.
func (w *Writer) WriteRow() error {
	if w.state != stateOpen {
		return w.fail(newErr(KindState, "write_row: writer is not open"))
	}
	if err := w.encodeAndAppend(w.staging); err != nil {
		return w.fail(err)
	}
	w.staging.Reset()
	w.totalRows++
	w.rowsInPacket++

	if !w.fileID.IsPacketFramed() {
		return nil
	}
	if uint32(len(w.payload)) >= w.opts.BlockSize {
		if err := w.flushPacket(); err != nil {
			return w.fail(err)
		}
	}
	return nil
}

// Write copies row into the staging row and commits it, without disturbing
// row (the caller retains ownership of its own buffer).
func (w *Writer) Write(row *Row) error {
	if w.state != stateOpen {
		return w.fail(newErr(KindState, "write: writer is not open"))
	}
	if err := w.staging.CopyFrom(row); err != nil {
		return w.fail(err)
	}
	return w.WriteRow()
}

func (w *Writer) encodeAndAppend(row *Row) error {
	if w.opts.RowCodec == RowCodecZoH {
		enc, err := w.zohEnc.Encode(w.payload, row)
		if err != nil {
			return err
		}
		w.payload = enc
		return nil
	}
	enc, err := EncodeFlat(row)
	if err != nil {
		return err
	}
	w.payload = append(w.payload, enc...)
	return nil
}

// Flush closes the current packet, writing it to the file even if it has
// not reached BlockSize. A no-op for stream framing, which has no
// intermediate packets. Under PacketLZ4Batch001 the closed packet is staged
// in the current batch and reaches the file when the batch fills or on Close.
func (w *Writer) Flush() error {
	if w.state != stateOpen {
		return w.fail(newErr(KindState, "flush: writer is not open"))
	}
	if !w.fileID.IsPacketFramed() {
		return nil
	}
	if len(w.payload) == 0 {
		return nil
	}
	if err := w.flushPacket(); err != nil {
		return w.fail(err)
	}
	return nil
}

func (w *Writer) flushPacket() error {
	raw := w.payload
	payloadSum := checksum.Payload(raw)
	header := format.PacketHeader{
		FirstRowIndex:       w.firstRowOfPacket,
		PrevPayloadChecksum: w.prevPayloadSum,
	}

	if w.fileID == filecodec.PacketLZ4Batch001 {
		// Batch mode defers all file writes until the batch is full: the
		// shared LZ4 blob is only known once every payload of the batch has
		// been staged, and each header must land immediately before its own
		// payload chunk. drainBatch does the writing.
		w.batchWriter.Add(raw)
		w.batchHeaders = append(w.batchHeaders, header)
		if len(w.batchHeaders) >= w.opts.BatchSize {
			if err := w.drainBatch(); err != nil {
				return err
			}
		}
	} else {
		offset, err := w.w.Seek(0, io.SeekCurrent)
		if err != nil {
			return wrapErr(KindIO, err, "seek before packet header")
		}
		if _, err := header.WriteTo(w.w); err != nil {
			return wrapErr(KindIO, err, "write packet header")
		}
		wire, err := filecodec.EncodePacketPayload(w.fileID, raw, int(w.opts.CompressionLevel))
		if err != nil {
			return wrapErr(KindFormat, err, "encode packet payload")
		}
		if _, err := w.w.Write(wire); err != nil {
			return wrapErr(KindIO, err, "write packet payload")
		}
		w.directory = append(w.directory, format.DirEntry{ByteOffset: uint64(offset), FirstRow: w.firstRowOfPacket})
	}

	w.prevPayloadSum = payloadSum
	w.firstRowOfPacket += w.rowsInPacket
	w.rowsInPacket = 0
	w.payload = w.payload[:0]
	if w.zohEnc != nil {
		w.zohEnc.Reset()
	}
	return nil
}

// drainBatch compresses every staged payload of the pending batch into one
// shared LZ4 blob, then writes each packet as header followed by its wire
// chunk (the first chunk of a batch carries the blob; the rest reference
// it), recording directory entries as it goes.
func (w *Writer) drainBatch() error {
	chunks, err := w.batchWriter.Flush()
	if err != nil {
		return err
	}
	for i, chunk := range chunks {
		offset, err := w.w.Seek(0, io.SeekCurrent)
		if err != nil {
			return wrapErr(KindIO, err, "seek before packet header")
		}
		if _, err := w.batchHeaders[i].WriteTo(w.w); err != nil {
			return wrapErr(KindIO, err, "write packet header")
		}
		if _, err := w.w.Write(chunk); err != nil {
			return wrapErr(KindIO, err, "write batch payload chunk")
		}
		w.directory = append(w.directory, format.DirEntry{ByteOffset: uint64(offset), FirstRow: w.batchHeaders[i].FirstRowIndex})
	}
	w.batchHeaders = w.batchHeaders[:0]
	return nil
}

// Close flushes any pending packet, writes the footer, and seals the
// writer into the Closed state. Close is idempotent.
func (w *Writer) Close() error {
	if w.state != stateOpen {
		return nil
	}
	var ferr error
	if w.fileID.IsPacketFramed() {
		if len(w.payload) > 0 {
			ferr = w.flushPacket()
		}
		if ferr == nil && len(w.batchHeaders) > 0 {
			ferr = w.drainBatch()
		}
	} else {
		w.prevPayloadSum = checksum.Payload(w.payload)
		w.streamWriter.Write(w.payload)
		final, err := w.streamWriter.Finish()
		if err != nil {
			ferr = err
		} else if _, err := w.w.Write(final); err != nil {
			ferr = wrapErr(KindIO, err, "write stream payload")
		} else {
			w.directory = append(w.directory, format.DirEntry{ByteOffset: uint64(w.headerEnd), FirstRow: 0})
		}
	}

	if ferr == nil {
		footer := &format.Footer{
			Directory:           w.directory,
			LastPayloadChecksum: w.prevPayloadSum,
			TotalRowCount:       w.totalRows,
		}
		if _, err := footer.WriteTo(w.w); err != nil {
			ferr = wrapErr(KindIO, err, "write footer")
		}
	}

	w.state = stateClosed
	if w.closer != nil {
		if cerr := w.closer.Close(); cerr != nil && ferr == nil {
			ferr = wrapErr(KindIO, cerr, "close file")
		}
	}
	if ferr != nil {
		w.errMsg = ferr.Error()
	}
	return ferr
}
