package bcsv

import (
	"encoding/binary"
)

// EncodeFlat encodes row as: a leading bitmap packing every BOOL column's
// value (not its presence bit — the Flat codec has no notion of "unchanged"
// and always treats the row as fully present), followed by every non-BOOL
// cell in column order: scalars at their fixed width, strings each as a
// fixed little-endian u32 length prefix plus raw UTF-8 bytes. Strings sit
// at their own column position between the scalars; they are not grouped
// after the scalar area.
func EncodeFlat(row *Row) ([]byte, error) {
	layout := row.layout
	n := layout.ColumnCount()

	boolBitmapLen := (countBools(layout) + 7) / 8
	size := boolBitmapLen
	for i := 0; i < n; i++ {
		if t := layout.Type(i); t != ColumnBool {
			if w := t.FixedWidth(); w > 0 {
				size += w
			} else if t == ColumnString {
				size += 4 + len(row.cells[i].str)
			}
		}
	}

	out := make([]byte, size)
	boolIdx := 0
	for i := 0; i < n; i++ {
		if layout.Type(i) == ColumnBool && row.cells[i].scalar != 0 {
			out[boolIdx/8] |= 1 << uint(boolIdx%8)
		}
		if layout.Type(i) == ColumnBool {
			boolIdx++
		}
	}

	off := boolBitmapLen
	for i := 0; i < n; i++ {
		t := layout.Type(i)
		switch {
		case t == ColumnBool:
			// already packed above
		case t.FixedWidth() > 0:
			writeScalar(out[off:], t, row.cells[i].scalar)
			off += t.FixedWidth()
		case t == ColumnString:
			s := row.cells[i].str
			binary.LittleEndian.PutUint32(out[off:], uint32(len(s)))
			off += 4
			copy(out[off:], s)
			off += len(s)
		}
	}
	return out, nil
}

// DecodeFlat decodes one Flat-encoded row from data into row (which must
// already be built against a Compatible layout), returning the number of
// bytes consumed.
func DecodeFlat(row *Row, data []byte) (int, error) {
	layout := row.layout
	n := layout.ColumnCount()
	boolBitmapLen := (countBools(layout) + 7) / 8
	if len(data) < boolBitmapLen {
		return 0, newErr(KindFormat, "flat decode: truncated bool bitmap")
	}

	boolIdx := 0
	for i := 0; i < n; i++ {
		if layout.Type(i) != ColumnBool {
			continue
		}
		bit := data[boolIdx/8]&(1<<uint(boolIdx%8)) != 0
		if bit {
			row.cells[i].scalar = 1
		} else {
			row.cells[i].scalar = 0
		}
		row.markPresent(i)
		boolIdx++
	}

	off := boolBitmapLen
	for i := 0; i < n; i++ {
		t := layout.Type(i)
		switch {
		case t == ColumnBool:
			// handled above
		case t.FixedWidth() > 0:
			w := t.FixedWidth()
			if off+w > len(data) {
				return 0, newErr(KindFormat, "flat decode: truncated scalar at column %d", i)
			}
			row.cells[i].scalar = readScalar(data[off:off+w], t)
			row.markPresent(i)
			off += w
		case t == ColumnString:
			if off+4 > len(data) {
				return 0, newErr(KindFormat, "flat decode: truncated string length at column %d", i)
			}
			l := int(binary.LittleEndian.Uint32(data[off:]))
			off += 4
			if l < 0 || off+l > len(data) {
				return 0, newErr(KindFormat, "flat decode: truncated string bytes at column %d", i)
			}
			buf := make([]byte, l)
			copy(buf, data[off:off+l])
			row.cells[i].str = buf
			row.markPresent(i)
			off += l
		}
	}
	return off, nil
}

func countBools(layout *Layout) int {
	n := 0
	for i := 0; i < layout.ColumnCount(); i++ {
		if layout.Type(i) == ColumnBool {
			n++
		}
	}
	return n
}

func writeScalar(dst []byte, t ColumnType, v uint64) {
	switch t.FixedWidth() {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(dst, v)
	}
}

func readScalar(src []byte, t ColumnType) uint64 {
	switch t.FixedWidth() {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(src))
	case 4:
		return uint64(binary.LittleEndian.Uint32(src))
	case 8:
		return binary.LittleEndian.Uint64(src)
	}
	return 0
}

// FlatEncodedSize returns the byte size EncodeFlat(row) would produce,
// letting the writer size packet payload buffers without encoding twice.
func FlatEncodedSize(row *Row) int {
	layout := row.layout
	size := (countBools(layout) + 7) / 8
	for i := 0; i < layout.ColumnCount(); i++ {
		t := layout.Type(i)
		if w := t.FixedWidth(); w > 0 {
			size += w
		} else if t == ColumnString {
			size += 4 + len(row.cells[i].str)
		}
	}
	return size
}
