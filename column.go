package bcsv

// ColumnType is the closed enumeration of cell types a Layout column may
// hold. The numeric values are part of the file format (they are written
// verbatim into the serialized Layout, see FileHeader in internal/format)
// and must never be reordered.
type ColumnType uint8

const (
	ColumnBool ColumnType = iota
	ColumnInt8
	ColumnUint8
	ColumnInt16
	ColumnUint16
	ColumnInt32
	ColumnUint32
	ColumnInt64
	ColumnUint64
	ColumnFloat
	ColumnDouble
	ColumnString
)

func (t ColumnType) String() string {
	switch t {
	case ColumnBool:
		return "bool"
	case ColumnInt8:
		return "int8"
	case ColumnUint8:
		return "uint8"
	case ColumnInt16:
		return "int16"
	case ColumnUint16:
		return "uint16"
	case ColumnInt32:
		return "int32"
	case ColumnUint32:
		return "uint32"
	case ColumnInt64:
		return "int64"
	case ColumnUint64:
		return "uint64"
	case ColumnFloat:
		return "float"
	case ColumnDouble:
		return "double"
	case ColumnString:
		return "string"
	default:
		return "invalid"
	}
}

// IsValid reports whether t is one of the twelve defined column types.
func (t ColumnType) IsValid() bool {
	return t <= ColumnString
}

// FixedWidth returns the encoded width in bytes of a scalar cell of type t,
// or 0 for ColumnString (whose width depends on its content) and for
// ColumnBool (packed into the leading bool bitmap of a Flat-encoded row).
func (t ColumnType) FixedWidth() int {
	switch t {
	case ColumnInt8, ColumnUint8:
		return 1
	case ColumnInt16, ColumnUint16:
		return 2
	case ColumnInt32, ColumnUint32, ColumnFloat:
		return 4
	case ColumnInt64, ColumnUint64, ColumnDouble:
		return 8
	default:
		return 0
	}
}

// Column is a single named, typed field of a Layout.
type Column struct {
	Name string
	Type ColumnType
}
