package filecodec

import (
	"bytes"
	"io"

	"golang.org/x/xerrors"
)

// StreamWriter wraps a single continuous payload for Stream001/StreamLZ4001:
// there is no per-packet framing, so the entire row stream is written (and,
// for the LZ4 variant, compressed) as one payload when the file is closed.
type StreamWriter struct {
	id    ID
	level int
	buf   bytes.Buffer
}

// NewStreamWriter returns a StreamWriter for the given stream file codec.
func NewStreamWriter(id ID, level int) (*StreamWriter, error) {
	if id != Stream001 && id != StreamLZ4001 {
		return nil, xerrors.Errorf("filecodec: %s is not a stream codec", id)
	}
	return &StreamWriter{id: id, level: level}, nil
}

// Write appends raw encoded row bytes to the pending stream payload.
func (s *StreamWriter) Write(p []byte) (int, error) { return s.buf.Write(p) }

// Finish returns the final bytes to write to the file: the raw payload for
// Stream001, or its LZ4 compression for StreamLZ4001.
func (s *StreamWriter) Finish() ([]byte, error) {
	if s.id == StreamLZ4001 {
		return compressLZ4(s.buf.Bytes(), s.level)
	}
	return s.buf.Bytes(), nil
}

// DecodeStream reads and, if necessary, decompresses a whole stream payload
// from r.
func DecodeStream(id ID, r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, xerrors.Errorf("filecodec: read stream payload: %w", err)
	}
	if id == StreamLZ4001 {
		return decompressLZ4(raw)
	}
	return raw, nil
}
