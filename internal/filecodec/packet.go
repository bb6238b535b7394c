package filecodec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/xerrors"
)

// EncodePacketPayload compresses (if id requires it) raw and prepends the
// u32 compressed_len framing that per-packet codecs write before the
// payload bytes.
func EncodePacketPayload(id ID, raw []byte, level int) ([]byte, error) {
	var payload []byte
	switch id {
	case Packet001:
		payload = raw
	case PacketLZ4001:
		compressed, err := compressLZ4(raw, level)
		if err != nil {
			return nil, err
		}
		payload = compressed
	default:
		return nil, xerrors.Errorf("filecodec: %s does not use per-packet single-payload encoding", id)
	}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	return buf.Bytes(), nil
}

// DecodePacketPayload reads one per-packet payload (length-prefixed,
// optionally LZ4-compressed) from r and returns the decompressed bytes.
func DecodePacketPayload(id ID, r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, xerrors.Errorf("filecodec: read compressed_len: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, xerrors.Errorf("filecodec: read packet payload: %w", err)
	}
	switch id {
	case Packet001:
		return payload, nil
	case PacketLZ4001:
		return decompressLZ4(payload)
	default:
		return nil, xerrors.Errorf("filecodec: %s does not use per-packet single-payload encoding", id)
	}
}

// clampLZ4Level maps the format's 0..22 compression_level field onto the
// range the pierrec/lz4 implementation actually accepts.
func clampLZ4Level(level int) lz4.CompressionLevel {
	levels := [...]lz4.CompressionLevel{
		lz4.Fast,
		lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
		lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
	}
	if level < 0 {
		level = 0
	}
	if level > len(levels)-1 {
		level = len(levels) - 1
	}
	return levels[level]
}

func compressLZ4(raw []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(clampLZ4Level(level))); err != nil {
		return nil, xerrors.Errorf("filecodec: configure lz4 level: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, xerrors.Errorf("filecodec: lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, xerrors.Errorf("filecodec: lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressLZ4(compressed []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(compressed))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, xerrors.Errorf("filecodec: lz4 decompress: %w", err)
	}
	return out, nil
}

// BatchWriter implements PacketLZ4Batch001: it accumulates the raw payloads
// of several packets, then compresses them together in one LZ4 frame,
// reusing a single lz4.Writer via Reset across batches. Each packet's wire
// framing is:
//
//	u32 raw_len                      (this packet's own uncompressed length)
//	u8  is_batch_head                (1 if this packet starts a new blob)
//	if is_batch_head: u32 blob_len, blob_len bytes of shared LZ4 data
//
// A reader landing on a non-head packet walks backward through the
// directory to the nearest head chunk, decompresses the blob once, then
// slices each packet's raw_len bytes out of it in order.
type BatchWriter struct {
	level   int
	lzw     *lz4.Writer
	pending [][]byte
}

// NewBatchWriter returns a BatchWriter compressing at the given LZ4 level.
func NewBatchWriter(level int) *BatchWriter {
	return &BatchWriter{level: level, lzw: lz4.NewWriter(nil)}
}

// Add stages one packet's raw payload for the current batch.
func (bw *BatchWriter) Add(raw []byte) {
	bw.pending = append(bw.pending, append([]byte(nil), raw...))
}

// Flush compresses every staged payload as one LZ4 frame and returns the
// per-packet wire chunks to write, in order, immediately following each
// packet's PacketHeader. The batch is cleared afterward.
func (bw *BatchWriter) Flush() ([][]byte, error) {
	if len(bw.pending) == 0 {
		return nil, nil
	}
	var concatenated bytes.Buffer
	for _, p := range bw.pending {
		concatenated.Write(p)
	}
	var compBuf bytes.Buffer
	bw.lzw.Reset(&compBuf)
	if err := bw.lzw.Apply(lz4.CompressionLevelOption(clampLZ4Level(bw.level))); err != nil {
		return nil, xerrors.Errorf("filecodec: configure lz4 level: %w", err)
	}
	if _, err := bw.lzw.Write(concatenated.Bytes()); err != nil {
		return nil, xerrors.Errorf("filecodec: batch lz4 compress: %w", err)
	}
	if err := bw.lzw.Close(); err != nil {
		return nil, xerrors.Errorf("filecodec: batch lz4 close: %w", err)
	}

	chunks := make([][]byte, len(bw.pending))
	for i, p := range bw.pending {
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, uint32(len(p)))
		if i == 0 {
			buf.WriteByte(1)
			binary.Write(&buf, binary.LittleEndian, uint32(compBuf.Len()))
			buf.Write(compBuf.Bytes())
		} else {
			buf.WriteByte(0)
		}
		chunks[i] = buf.Bytes()
	}
	bw.pending = nil
	return chunks, nil
}

// BatchReader decodes PacketLZ4Batch001 packet payloads sequentially,
// caching the most recently decompressed blob so consecutive packets in the
// same batch don't re-decompress.
type BatchReader struct {
	blob   []byte
	offset int
}

// DecodeNext reads one packet's payload from r. A head chunk replaces the
// cached blob; subsequent chunks slice out of it in order. Callers jumping
// to an arbitrary packet must replay chunks from that packet's batch head.
func (br *BatchReader) DecodeNext(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, xerrors.Errorf("filecodec: read batch raw_len: %w", err)
	}
	rawLen := binary.LittleEndian.Uint32(lenBuf[:])

	var headByte [1]byte
	if _, err := io.ReadFull(r, headByte[:]); err != nil {
		return nil, xerrors.Errorf("filecodec: read batch head flag: %w", err)
	}

	if headByte[0] == 1 {
		var blobLenBuf [4]byte
		if _, err := io.ReadFull(r, blobLenBuf[:]); err != nil {
			return nil, xerrors.Errorf("filecodec: read batch blob_len: %w", err)
		}
		blobLen := binary.LittleEndian.Uint32(blobLenBuf[:])
		compressed := make([]byte, blobLen)
		if _, err := io.ReadFull(r, compressed); err != nil {
			return nil, xerrors.Errorf("filecodec: read batch blob: %w", err)
		}
		blob, err := decompressLZ4(compressed)
		if err != nil {
			return nil, err
		}
		br.blob = blob
		br.offset = 0
	}

	if int(rawLen) > len(br.blob)-br.offset {
		return nil, xerrors.New("filecodec: batch raw_len exceeds remaining blob bytes")
	}
	out := br.blob[br.offset : br.offset+int(rawLen)]
	br.offset += int(rawLen)
	return out, nil
}
