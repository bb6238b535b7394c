package bcsv

// Zero-Order-Hold row codec: each row after the first in a
// packet is encoded as a change mask plus the Flat encoding of only the
// cells whose bit is set. A row identical to the previous one collapses to
// a single repeat-sentinel byte.
//
// Sentinel placement: ZohRepeatSentinel and ZohEOFSentinel must never equal
// a legitimate first byte of a change mask, for any layout width. Rather
// than reserve specific bit patterns only "usually" safe, the mask packing
// itself reserves bit 7 of its very first byte: that byte encodes columns
// 0..6 in bits 0..6, and bit 7 is always zero. Every subsequent mask byte
// (columns 7.. onward) packs a full 8 bits. A legitimate first byte can
// therefore never exceed 0x7F, so 0xFF and 0xFE are free for the two
// sentinels regardless of how many columns the layout has.
const (
	ZohRepeatSentinel byte = 0xFF
	ZohEOFSentinel    byte = 0xFE
)

// zohMaskLen returns the number of change-mask bytes needed for a layout of
// n columns, given the bit-7-reserved packing of the first byte.
func zohMaskLen(n int) int {
	if n <= 7 {
		return 1
	}
	return 1 + (n-7+7)/8
}

func zohMaskBitPos(col int) (byteIdx, bitIdx int) {
	if col < 7 {
		return 0, col
	}
	adjusted := col - 7
	return 1 + adjusted/8, adjusted % 8
}

func zohMaskTest(mask []byte, col int) bool {
	b, bit := zohMaskBitPos(col)
	return mask[b]&(1<<uint(bit)) != 0
}

func zohMaskSet(mask []byte, col int) {
	b, bit := zohMaskBitPos(col)
	mask[b] |= 1 << uint(bit)
}

// ZohEncoder holds the previous row's values across calls to Encode, so
// that only changed cells are emitted. Reset drops that state (called at
// every packet boundary by the writer), which is what lets a ZoH packet be
// decoded without reading any earlier packet — the defining property that
// makes random access over ZoH-encoded files possible.
type ZohEncoder struct {
	layout  *Layout
	prev    *Row
	hasPrev bool
}

// NewZohEncoder returns an encoder for rows conforming to layout.
func NewZohEncoder(layout *Layout) *ZohEncoder {
	return &ZohEncoder{layout: layout, prev: NewRow(layout)}
}

// Reset drops any previous-row state, so the next Encode call emits a full
// row.
func (e *ZohEncoder) Reset() { e.hasPrev = false }

// Encode appends the ZoH encoding of row to dst and returns the extended
// slice.
func (e *ZohEncoder) Encode(dst []byte, row *Row) ([]byte, error) {
	if e.hasPrev && e.prev.Equal(row) {
		return append(dst, ZohRepeatSentinel), nil
	}

	n := e.layout.ColumnCount()
	maskLen := zohMaskLen(n)
	maskStart := len(dst)
	dst = append(dst, make([]byte, maskLen)...)
	mask := dst[maskStart : maskStart+maskLen]

	for i := 0; i < n; i++ {
		if !e.hasPrev || !cellEqual(e.layout.Type(i), row.cells[i], e.prev.cells[i]) {
			zohMaskSet(mask, i)
		}
	}

	for i := 0; i < n; i++ {
		if !zohMaskTest(mask, i) {
			continue
		}
		enc, err := encodeFlatCell(e.layout.Type(i), row.cells[i])
		if err != nil {
			return nil, err
		}
		dst = append(dst, enc...)
	}

	e.prev.CopyFrom(row)
	e.hasPrev = true
	return dst, nil
}

func cellEqual(t ColumnType, a, b cell) bool {
	if t == ColumnString {
		return string(a.str) == string(b.str)
	}
	return a.scalar == b.scalar
}

// encodeFlatCell encodes a single cell the same way EncodeFlat would (minus
// any bool bitmap, since ZoH's change mask already communicates presence
// for bool columns individually).
func encodeFlatCell(t ColumnType, c cell) ([]byte, error) {
	switch {
	case t == ColumnBool:
		if c.scalar != 0 {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case t.FixedWidth() > 0:
		buf := make([]byte, t.FixedWidth())
		writeScalar(buf, t, c.scalar)
		return buf, nil
	case t == ColumnString:
		buf := make([]byte, 4+len(c.str))
		buf[0] = byte(len(c.str))
		buf[1] = byte(len(c.str) >> 8)
		buf[2] = byte(len(c.str) >> 16)
		buf[3] = byte(len(c.str) >> 24)
		copy(buf[4:], c.str)
		return buf, nil
	default:
		return nil, newErr(KindFormat, "zoh encode: unsupported column type %v", t)
	}
}

func decodeFlatCell(t ColumnType, data []byte) (cell, int, error) {
	switch {
	case t == ColumnBool:
		if len(data) < 1 {
			return cell{}, 0, newErr(KindFormat, "zoh decode: truncated bool cell")
		}
		if data[0] != 0 {
			return cell{scalar: 1}, 1, nil
		}
		return cell{scalar: 0}, 1, nil
	case t.FixedWidth() > 0:
		w := t.FixedWidth()
		if len(data) < w {
			return cell{}, 0, newErr(KindFormat, "zoh decode: truncated scalar cell")
		}
		return cell{scalar: readScalar(data[:w], t)}, w, nil
	case t == ColumnString:
		if len(data) < 4 {
			return cell{}, 0, newErr(KindFormat, "zoh decode: truncated string length")
		}
		l := int(data[0]) | int(data[1])<<8 | int(data[2])<<16 | int(data[3])<<24
		if l < 0 || len(data) < 4+l {
			return cell{}, 0, newErr(KindFormat, "zoh decode: truncated string bytes")
		}
		buf := make([]byte, l)
		copy(buf, data[4:4+l])
		return cell{str: buf}, 4 + l, nil
	default:
		return cell{}, 0, newErr(KindFormat, "zoh decode: unsupported column type %v", t)
	}
}

// ZohDecoder mirrors ZohEncoder's state machine on the read side.
type ZohDecoder struct {
	layout  *Layout
	prev    *Row
	hasPrev bool
}

// NewZohDecoder returns a decoder for rows conforming to layout.
func NewZohDecoder(layout *Layout) *ZohDecoder {
	return &ZohDecoder{layout: layout, prev: NewRow(layout)}
}

// Reset drops any previous-row state; called at every packet boundary.
// State is never carried across packets.
func (d *ZohDecoder) Reset() { d.hasPrev = false }

// Decode decodes one record from the front of data into out, returning the
// number of bytes consumed. out receives a full copy of the decoded row
// (including cells left unchanged by this record).
func (d *ZohDecoder) Decode(data []byte, out *Row) (int, error) {
	if len(data) == 0 {
		return 0, newErr(KindFormat, "zoh decode: empty record")
	}
	if data[0] == ZohRepeatSentinel {
		if !d.hasPrev {
			return 0, newErr(KindFormat, "zoh decode: repeat sentinel with no previous row")
		}
		out.CopyFrom(d.prev)
		return 1, nil
	}
	if data[0] == ZohEOFSentinel {
		return 0, newErr(KindFormat, "zoh decode: unexpected EOF sentinel")
	}

	n := d.layout.ColumnCount()
	maskLen := zohMaskLen(n)
	if len(data) < maskLen {
		return 0, newErr(KindFormat, "zoh decode: truncated change mask")
	}
	mask := data[:maskLen]
	off := maskLen

	if !d.hasPrev {
		out.Reset()
	} else {
		out.CopyFrom(d.prev)
	}

	for i := 0; i < n; i++ {
		if !zohMaskTest(mask, i) {
			continue
		}
		c, consumed, err := decodeFlatCell(d.layout.Type(i), data[off:])
		if err != nil {
			return 0, err
		}
		out.cells[i] = c
		out.markPresent(i)
		off += consumed
	}

	d.prev.CopyFrom(out)
	d.hasPrev = true
	return off, nil
}
