package bcsv

import (
	"testing"
)

func TestRowTypedAccess(t *testing.T) {
	layout := NewLayout(
		Column{"b", ColumnBool},
		Column{"i8", ColumnInt8},
		Column{"u16", ColumnUint16},
		Column{"f", ColumnFloat},
		Column{"d", ColumnDouble},
		Column{"s", ColumnString},
	)
	r := NewRow(layout)

	if err := r.SetBool(0, true); err != nil {
		t.Fatal(err)
	}
	if err := r.SetInt64(1, -5); err != nil {
		t.Fatal(err)
	}
	if err := r.SetUint64(2, 65535); err != nil {
		t.Fatal(err)
	}
	if err := r.SetFloat32(3, 1.5); err != nil {
		t.Fatal(err)
	}
	if err := r.SetFloat64(4, -2.25); err != nil {
		t.Fatal(err)
	}
	if err := r.SetString(5, "hello"); err != nil {
		t.Fatal(err)
	}

	if v, _ := r.Bool(0); !v {
		t.Error("Bool(0) = false")
	}
	if v, _ := r.Int64(1); v != -5 {
		t.Errorf("Int64(1) = %d", v)
	}
	if v, _ := r.Uint64(2); v != 65535 {
		t.Errorf("Uint64(2) = %d", v)
	}
	if v, _ := r.Float32(3); v != 1.5 {
		t.Errorf("Float32(3) = %v", v)
	}
	if v, _ := r.Float64(4); v != -2.25 {
		t.Errorf("Float64(4) = %v", v)
	}
	if v, _ := r.String(5); v != "hello" {
		t.Errorf("String(5) = %q", v)
	}
}

func TestRowTypeMismatch(t *testing.T) {
	layout := NewLayout(Column{"i", ColumnInt32}, Column{"s", ColumnString})
	r := NewRow(layout)

	if err := r.SetString(0, "nope"); err == nil {
		t.Error("SetString on an int column must fail")
	}
	if _, err := r.Bool(0); err == nil {
		t.Error("Bool on an int column must fail")
	}
	if _, err := r.Int64(1); err == nil {
		t.Error("Int64 on a string column must fail")
	}
	if err := r.SetInt64(5, 1); err == nil {
		t.Error("out-of-range column index must fail")
	}
}

func TestRowPresenceTracking(t *testing.T) {
	layout := NewLayout(Column{"a", ColumnInt32}, Column{"b", ColumnInt32})
	r := NewRow(layout)
	if r.Present(0) || r.Present(1) {
		t.Fatal("fresh row has no present cells")
	}
	if err := r.SetInt64(0, 1); err != nil {
		t.Fatal(err)
	}
	if !r.Present(0) || r.Present(1) {
		t.Fatal("presence must track explicit assignment")
	}
	r.Reset()
	if r.Present(0) {
		t.Fatal("Reset must clear presence")
	}
	v, err := r.Int64(0)
	if err != nil || v != 1 {
		t.Fatal("Reset must not clear values")
	}
}

func TestRowBulkSetRange(t *testing.T) {
	layout := NewLayout(
		Column{"a", ColumnUint32},
		Column{"b", ColumnUint32},
		Column{"c", ColumnUint32},
	)
	r := NewRow(layout)
	if err := r.SetUint64Range(1, []uint64{7, 8}); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Uint64(1); v != 7 {
		t.Errorf("Uint64(1) = %d, want 7", v)
	}
	if v, _ := r.Uint64(2); v != 8 {
		t.Errorf("Uint64(2) = %d, want 8", v)
	}
	if err := r.SetUint64Range(2, []uint64{1, 2}); err == nil {
		t.Fatal("bulk set overflowing the layout must fail")
	}
}

func TestRowVisitors(t *testing.T) {
	layout := NewLayout(
		Column{"i", ColumnInt64},
		Column{"s", ColumnString},
		Column{"b", ColumnBool},
	)
	r := NewRow(layout)
	r.SetInt64(0, 41)
	r.SetString(1, "x")
	r.SetBool(2, false)

	var seen []interface{}
	r.Visit(func(i int, v interface{}) {
		seen = append(seen, v)
	})
	if len(seen) != 3 {
		t.Fatalf("visited %d cells, want 3", len(seen))
	}
	if seen[0].(int64) != 41 || seen[1].(string) != "x" || seen[2].(bool) != false {
		t.Fatalf("visitor values: %v", seen)
	}

	err := r.VisitMutable(func(i int, v interface{}) (interface{}, bool) {
		if n, ok := v.(int64); ok {
			return n + 1, true
		}
		return nil, false
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Int64(0); v != 42 {
		t.Errorf("mutable visit result = %d, want 42", v)
	}
	if s, _ := r.String(1); s != "x" {
		t.Error("unchanged cells must keep their value")
	}
}

func TestRowCopyFromAndEqual(t *testing.T) {
	layout := NewLayout(Column{"i", ColumnInt32}, Column{"s", ColumnString})
	a := NewRow(layout)
	a.SetInt64(0, 9)
	a.SetString(1, "payload")

	b := NewRow(layout)
	if err := b.CopyFrom(a); err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Fatal("copied row must compare equal")
	}

	// The copy owns its string bytes.
	a.SetString(1, "mutated")
	if s, _ := b.String(1); s != "payload" {
		t.Fatalf("copy aliased the source string: %q", s)
	}
	if a.Equal(b) {
		t.Fatal("rows with differing strings must not compare equal")
	}

	other := NewRow(NewLayout(Column{"x", ColumnBool}))
	if err := other.CopyFrom(a); err == nil {
		t.Fatal("CopyFrom across incompatible layouts must fail")
	}
}
