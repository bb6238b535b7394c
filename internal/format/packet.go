package format

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/webertob/bcsv-go/internal/checksum"
	"golang.org/x/xerrors"
)

// PacketHeaderSize is the fixed size in bytes of a PacketHeader.
const PacketHeaderSize = 24

// PacketHeader is the 24-byte frame preceding every packet's (possibly
// compressed) payload. PrevPayloadChecksum links this packet to its
// predecessor, forming a checksum chain that detects reordered or
// substituted packets.
type PacketHeader struct {
	FirstRowIndex       uint64
	PrevPayloadChecksum uint64
}

type packetHeaderWire struct {
	Magic               [4]byte
	FirstRowIndex       uint64
	PrevPayloadChecksum uint64
	HeaderChecksum      uint32
}

// Encode serializes h into exactly PacketHeaderSize bytes.
func (h *PacketHeader) Encode() []byte {
	wire := packetHeaderWire{
		Magic:               PacketMagic,
		FirstRowIndex:       h.FirstRowIndex,
		PrevPayloadChecksum: h.PrevPayloadChecksum,
	}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, wire.Magic)
	binary.Write(&buf, binary.LittleEndian, wire.FirstRowIndex)
	binary.Write(&buf, binary.LittleEndian, wire.PrevPayloadChecksum)
	sum := checksum.Header(buf.Bytes())
	binary.Write(&buf, binary.LittleEndian, sum)
	return buf.Bytes()
}

// WriteTo writes the encoded packet header to w.
func (h *PacketHeader) WriteTo(w io.Writer) (int64, error) {
	b := h.Encode()
	n, err := w.Write(b)
	return int64(n), err
}

// ReadPacketHeader reads and self-validates a PacketHeader from r.
func ReadPacketHeader(r io.Reader) (*PacketHeader, error) {
	buf := make([]byte, PacketHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, xerrors.Errorf("read packet header: %w", err)
	}
	var magic [4]byte
	copy(magic[:], buf[0:4])
	if magic != PacketMagic {
		return nil, xerrors.Errorf("bad packet magic: got %q, want %q", magic, PacketMagic)
	}
	firstRow := binary.LittleEndian.Uint64(buf[4:12])
	prevSum := binary.LittleEndian.Uint64(buf[12:20])
	wantSum := binary.LittleEndian.Uint32(buf[20:24])
	if got := checksum.Header(buf[0:20]); got != wantSum {
		return nil, xerrors.Errorf("packet header checksum mismatch: got %x, want %x", got, wantSum)
	}
	return &PacketHeader{FirstRowIndex: firstRow, PrevPayloadChecksum: prevSum}, nil
}
