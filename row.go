package bcsv

import "github.com/webertob/bcsv-go/internal/bitset"

// cell holds one column's value in whatever representation is cheapest:
// scalars in a uint64 bit pattern, strings as an owned byte slice. One
// tagged representation with a single switch point in the codec hot loops,
// rather than a Go type per column type.
type cell struct {
	scalar uint64
	str    []byte
}

// Row is one record conforming to a Layout. It borrows the Layout (shares
// its lifetime, does not own it) and owns its own cell storage. Every cell
// carries a presence bit recording whether it was explicitly assigned since
// the last Reset. The ZoH encoder does not read it: it detects changes by
// comparing each cell's value with the previous row's.
type Row struct {
	layout   *Layout
	cells    []cell
	presence *bitset.Fixed // "was this cell explicitly assigned since last Reset"
}

// NewRow allocates a Row against layout. The row's lifetime is tied to the
// layout: columns must not be added or removed on layout while rows built
// against it are in use.
func NewRow(layout *Layout) *Row {
	n := layout.ColumnCount()
	return &Row{
		layout:   layout,
		cells:    make([]cell, n),
		presence: bitset.NewFixed(n),
	}
}

// Layout returns the Layout this row was built against.
func (r *Row) Layout() *Layout { return r.layout }

func (r *Row) checkIndex(i int, want ColumnType) error {
	if i < 0 || i >= len(r.cells) {
		return newErr(KindRange, "column index %d out of range [0,%d)", i, len(r.cells))
	}
	if got := r.layout.Type(i); got != want {
		return newErr(KindRange, "column %d (%s) type mismatch: got %s, want %s", i, r.layout.Name(i), want, got)
	}
	return nil
}

// Reset clears the presence bitmap (every cell is considered "not written")
// without touching stored values. The writer calls this on its staging Row
// after every committed row; applications reuse a staging Row across
// write_row calls the same way.
func (r *Row) Reset() { r.presence.ResetAll() }

// Present reports whether column i has been explicitly assigned since the
// last Reset.
func (r *Row) Present(i int) bool { return r.presence.Test(i) }

func (r *Row) markPresent(i int) { r.presence.Set(i) }

// --- typed scalar accessors ---

// SetBool assigns a bool cell.
func (r *Row) SetBool(i int, v bool) error {
	if err := r.checkIndex(i, ColumnBool); err != nil {
		return err
	}
	if v {
		r.cells[i].scalar = 1
	} else {
		r.cells[i].scalar = 0
	}
	r.markPresent(i)
	return nil
}

// Bool reads a bool cell.
func (r *Row) Bool(i int) (bool, error) {
	if err := r.checkIndex(i, ColumnBool); err != nil {
		return false, err
	}
	return r.cells[i].scalar != 0, nil
}

// SetString assigns a string cell. The row takes ownership of a copy of v's
// bytes.
func (r *Row) SetString(i int, v string) error {
	if err := r.checkIndex(i, ColumnString); err != nil {
		return err
	}
	buf := make([]byte, len(v))
	copy(buf, v)
	r.cells[i].str = buf
	r.markPresent(i)
	return nil
}

// String reads a string cell.
func (r *Row) String(i int) (string, error) {
	if err := r.checkIndex(i, ColumnString); err != nil {
		return "", err
	}
	return string(r.cells[i].str), nil
}

// Int64 reads a signed integer cell of any width, sign-extended.
func (r *Row) Int64(i int) (int64, error) {
	if i < 0 || i >= len(r.cells) {
		return 0, newErr(KindRange, "column index %d out of range [0,%d)", i, len(r.cells))
	}
	switch r.layout.Type(i) {
	case ColumnInt8:
		return int64(int8(r.cells[i].scalar)), nil
	case ColumnInt16:
		return int64(int16(r.cells[i].scalar)), nil
	case ColumnInt32:
		return int64(int32(r.cells[i].scalar)), nil
	case ColumnInt64:
		return int64(r.cells[i].scalar), nil
	default:
		return 0, newErr(KindRange, "column %d (%s) is not a signed integer", i, r.layout.Name(i))
	}
}

// SetInt64 assigns a signed integer cell, truncating to the column's width.
func (r *Row) SetInt64(i int, v int64) error {
	if i < 0 || i >= len(r.cells) {
		return newErr(KindRange, "column index %d out of range [0,%d)", i, len(r.cells))
	}
	switch r.layout.Type(i) {
	case ColumnInt8, ColumnInt16, ColumnInt32, ColumnInt64:
		r.cells[i].scalar = uint64(v)
		r.markPresent(i)
		return nil
	default:
		return newErr(KindRange, "column %d (%s) is not a signed integer", i, r.layout.Name(i))
	}
}

// Uint64 reads an unsigned integer cell of any width.
func (r *Row) Uint64(i int) (uint64, error) {
	if i < 0 || i >= len(r.cells) {
		return 0, newErr(KindRange, "column index %d out of range [0,%d)", i, len(r.cells))
	}
	switch r.layout.Type(i) {
	case ColumnUint8:
		return uint64(uint8(r.cells[i].scalar)), nil
	case ColumnUint16:
		return uint64(uint16(r.cells[i].scalar)), nil
	case ColumnUint32:
		return uint64(uint32(r.cells[i].scalar)), nil
	case ColumnUint64:
		return r.cells[i].scalar, nil
	default:
		return 0, newErr(KindRange, "column %d (%s) is not an unsigned integer", i, r.layout.Name(i))
	}
}

// SetUint64 assigns an unsigned integer cell, truncating to the column's
// width.
func (r *Row) SetUint64(i int, v uint64) error {
	if i < 0 || i >= len(r.cells) {
		return newErr(KindRange, "column index %d out of range [0,%d)", i, len(r.cells))
	}
	switch r.layout.Type(i) {
	case ColumnUint8, ColumnUint16, ColumnUint32, ColumnUint64:
		r.cells[i].scalar = v
		r.markPresent(i)
		return nil
	default:
		return newErr(KindRange, "column %d (%s) is not an unsigned integer", i, r.layout.Name(i))
	}
}

// Float32 reads a ColumnFloat cell.
func (r *Row) Float32(i int) (float32, error) {
	if err := r.checkIndex(i, ColumnFloat); err != nil {
		return 0, err
	}
	return float32FromBits(uint32(r.cells[i].scalar)), nil
}

// SetFloat32 assigns a ColumnFloat cell.
func (r *Row) SetFloat32(i int, v float32) error {
	if err := r.checkIndex(i, ColumnFloat); err != nil {
		return err
	}
	r.cells[i].scalar = uint64(float32Bits(v))
	r.markPresent(i)
	return nil
}

// Float64 reads a ColumnDouble cell.
func (r *Row) Float64(i int) (float64, error) {
	if err := r.checkIndex(i, ColumnDouble); err != nil {
		return 0, err
	}
	return float64FromBits(r.cells[i].scalar), nil
}

// SetFloat64 assigns a ColumnDouble cell.
func (r *Row) SetFloat64(i int, v float64) error {
	if err := r.checkIndex(i, ColumnDouble); err != nil {
		return err
	}
	r.cells[i].scalar = float64Bits(v)
	r.markPresent(i)
	return nil
}

// SetUint64Range bulk-assigns span to columns [i0, i0+len(span)), which
// must all be unsigned integer columns. It fails with a KindRange error if
// the range would run past the layout.
func (r *Row) SetUint64Range(i0 int, span []uint64) error {
	if i0 < 0 || i0+len(span) > len(r.cells) {
		return newErr(KindRange, "bulk set [%d,%d) overflows layout of %d columns", i0, i0+len(span), len(r.cells))
	}
	for k, v := range span {
		if err := r.SetUint64(i0+k, v); err != nil {
			return err
		}
	}
	return nil
}

// CellVisitor is invoked once per column by Row.Visit, receiving the column
// index and its current typed value boxed as interface{} (bool, int64,
// uint64, float32, float64 or string depending on the column's type).
type CellVisitor func(i int, value interface{})

// Visit calls fn once for every column in order. It is a read-only visitor:
// it never touches the presence bitmap.
func (r *Row) Visit(fn CellVisitor) {
	for i := 0; i < len(r.cells); i++ {
		fn(i, r.valueAt(i))
	}
}

// MutatingCellVisitor is invoked once per column by Row.VisitMutable and
// returns the new value for that column plus whether it changed. Returning
// changed=false leaves the cell untouched.
type MutatingCellVisitor func(i int, value interface{}) (newValue interface{}, changed bool)

// VisitMutable calls fn once per column, applying any returned value and
// aggregating the "changed" flags into the row's presence bitmap, just as
// the direct typed setters mark the cells they assign.
func (r *Row) VisitMutable(fn MutatingCellVisitor) error {
	for i := 0; i < len(r.cells); i++ {
		nv, changed := fn(i, r.valueAt(i))
		if !changed {
			continue
		}
		if err := r.setValue(i, nv); err != nil {
			return err
		}
	}
	return nil
}

func (r *Row) valueAt(i int) interface{} {
	switch r.layout.Type(i) {
	case ColumnBool:
		return r.cells[i].scalar != 0
	case ColumnInt8, ColumnInt16, ColumnInt32, ColumnInt64:
		v, _ := r.Int64(i)
		return v
	case ColumnUint8, ColumnUint16, ColumnUint32, ColumnUint64:
		v, _ := r.Uint64(i)
		return v
	case ColumnFloat:
		v, _ := r.Float32(i)
		return v
	case ColumnDouble:
		v, _ := r.Float64(i)
		return v
	case ColumnString:
		return string(r.cells[i].str)
	default:
		return nil
	}
}

func (r *Row) setValue(i int, v interface{}) error {
	switch val := v.(type) {
	case bool:
		return r.SetBool(i, val)
	case int64:
		return r.SetInt64(i, val)
	case uint64:
		return r.SetUint64(i, val)
	case float32:
		return r.SetFloat32(i, val)
	case float64:
		return r.SetFloat64(i, val)
	case string:
		return r.SetString(i, val)
	default:
		return newErr(KindRange, "column %d: unsupported value type %T", i, v)
	}
}

// CopyFrom replaces r's contents with a deep copy of src. The two rows must
// share a Compatible layout; CopyFrom is how Writer.Write(row)
// stages an externally-built row without retaining the caller's buffer.
func (r *Row) CopyFrom(src *Row) error {
	if !r.layout.Compatible(src.layout) {
		return newErr(KindRange, "CopyFrom: incompatible layouts")
	}
	for i := range r.cells {
		r.cells[i].scalar = src.cells[i].scalar
		if src.cells[i].str != nil {
			r.cells[i].str = append(r.cells[i].str[:0], src.cells[i].str...)
		} else {
			r.cells[i].str = nil
		}
		if src.presence.Test(i) {
			r.presence.Set(i)
		}
	}
	return nil
}

// Equal reports whether r and other hold the same values for every column.
// The comparison includes BOOL columns: the differential encoder's "is this
// row identical to the previous one" check depends on it, and bools are
// easy to miss because the Flat encoding packs them into a separate bitmap.
func (r *Row) Equal(other *Row) bool {
	if len(r.cells) != len(other.cells) {
		return false
	}
	for i := range r.cells {
		if r.layout.Type(i) == ColumnString {
			if string(r.cells[i].str) != string(other.cells[i].str) {
				return false
			}
			continue
		}
		if r.cells[i].scalar != other.cells[i].scalar {
			return false
		}
	}
	return true
}
