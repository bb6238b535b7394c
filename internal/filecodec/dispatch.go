// Package filecodec implements the file-codec dispatch matrix: framing
// (continuous stream vs per-packet) crossed with compression (none vs LZ4)
// and an optional batch mode, plus the concrete wire encoding of each
// packet's payload. Only per-packet framing supports random access; stream
// framing is a single continuous payload for the whole file, read
// forward-only.
package filecodec

import "golang.org/x/xerrors"

// ID is the closed set of file-codec identifiers stored in FileHeader.
type ID uint16

const (
	Stream001 ID = 1 + iota
	StreamLZ4001
	Packet001
	PacketLZ4001
	PacketLZ4Batch001
)

func (id ID) String() string {
	switch id {
	case Stream001:
		return "Stream001"
	case StreamLZ4001:
		return "StreamLZ4001"
	case Packet001:
		return "Packet001"
	case PacketLZ4001:
		return "PacketLZ4001"
	case PacketLZ4Batch001:
		return "PacketLZ4Batch001"
	default:
		return "Unknown"
	}
}

// Framing selects continuous vs per-packet framing.
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

// IsPacketFramed reports whether id supports independent per-packet decode
// (and therefore random access).
func (id ID) IsPacketFramed() bool {
	return id == Packet001 || id == PacketLZ4001 || id == PacketLZ4Batch001
}

// IsCompressed reports whether id applies LZ4 compression to payloads.
func (id ID) IsCompressed() bool {
	return id == StreamLZ4001 || id == PacketLZ4001 || id == PacketLZ4Batch001
}

// Resolve maps (framing, compression, batch) to the single matching file
// codec ID, rejecting combinations the matrix does not define — batch mode
// only exists for per-packet LZ4 framing.
func Resolve(framing Framing, compression Compression, batch bool) (ID, error) {
	switch {
	case framing == FramingStream && compression == CompressionNone && !batch:
		return Stream001, nil
	case framing == FramingStream && compression == CompressionLZ4 && !batch:
		return StreamLZ4001, nil
	case framing == FramingPacket && compression == CompressionNone && !batch:
		return Packet001, nil
	case framing == FramingPacket && compression == CompressionLZ4 && !batch:
		return PacketLZ4001, nil
	case framing == FramingPacket && compression == CompressionLZ4 && batch:
		return PacketLZ4Batch001, nil
	case batch:
		return 0, xerrors.New("filecodec: batch mode requires per-packet LZ4 framing")
	default:
		return 0, xerrors.New("filecodec: no file codec for the requested framing/compression combination")
	}
}
