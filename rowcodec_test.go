package bcsv

import (
	"testing"
)

func mustLayout(t *testing.T, cols ...Column) *Layout {
	t.Helper()
	return NewLayout(cols...)
}

func TestFlatRoundTrip(t *testing.T) {
	layout := mustLayout(t,
		Column{"i", ColumnInt32},
		Column{"s", ColumnString},
		Column{"b", ColumnBool},
	)
	type want struct {
		i int64
		s string
		b bool
	}
	rows := []want{
		{1, "a", true},
		{2, "bb", false},
		{3, "", true},
	}
	for _, w := range rows {
		row := NewRow(layout)
		if err := row.SetInt64(0, w.i); err != nil {
			t.Fatal(err)
		}
		if err := row.SetString(1, w.s); err != nil {
			t.Fatal(err)
		}
		if err := row.SetBool(2, w.b); err != nil {
			t.Fatal(err)
		}

		enc, err := EncodeFlat(row)
		if err != nil {
			t.Fatal(err)
		}
		if len(enc) != FlatEncodedSize(row) {
			t.Fatalf("FlatEncodedSize = %d, actual encoded = %d", FlatEncodedSize(row), len(enc))
		}

		out := NewRow(layout)
		n, err := DecodeFlat(out, enc)
		if err != nil {
			t.Fatal(err)
		}
		if n != len(enc) {
			t.Errorf("consumed %d, want %d", n, len(enc))
		}
		if !row.Equal(out) {
			t.Errorf("round trip mismatch: got %+v", out)
		}
	}
}

func TestZohRepeats(t *testing.T) {
	layout := mustLayout(t, Column{"f", ColumnFloat})
	values := []float32{1.0, 1.0, 1.0, 2.0, 2.0}

	enc := NewZohEncoder(layout)
	var buf []byte
	var offsets []int
	for _, v := range values {
		row := NewRow(layout)
		if err := row.SetFloat32(0, v); err != nil {
			t.Fatal(err)
		}
		before := len(buf)
		var err error
		buf, err = enc.Encode(buf, row)
		if err != nil {
			t.Fatal(err)
		}
		offsets = append(offsets, len(buf)-before)
	}

	// First row is full, rows 1 and 2 are repeats (1 byte each), row 3 is a
	// delta, row 4 is a repeat.
	if offsets[1] != 1 || offsets[2] != 1 || offsets[4] != 1 {
		t.Fatalf("expected single-byte repeat records, got offsets %v", offsets)
	}
	if offsets[0] == 1 || offsets[3] == 1 {
		t.Fatalf("expected full/delta records to exceed 1 byte, got offsets %v", offsets)
	}

	dec := NewZohDecoder(layout)
	pos := 0
	for i, v := range values {
		out := NewRow(layout)
		n, err := dec.Decode(buf[pos:], out)
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		pos += n
		got, err := out.Float32(0)
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Errorf("row %d: got %v, want %v", i, got, v)
		}
	}
	if pos != len(buf) {
		t.Errorf("decoder consumed %d of %d bytes", pos, len(buf))
	}
}

func TestZohBoolOnlyTransition(t *testing.T) {
	// Regression guard: change mask must reflect BOOL changes even though
	// bools live in the scalar cell area rather than a separate presence
	// map. A buggy implementation that excludes bools from row equality
	// would collapse rows 0->1 or 1->2 into (incorrect) repeat sentinels.
	layout := mustLayout(t,
		Column{"a", ColumnBool},
		Column{"b", ColumnBool},
		Column{"n", ColumnInt32},
	)
	type want struct {
		a, b bool
		n    int64
	}
	rows := []want{
		{false, true, 42},
		{true, false, 42},
		{true, true, 42},
		{true, true, 99},
	}

	enc := NewZohEncoder(layout)
	var buf []byte
	for _, w := range rows {
		row := NewRow(layout)
		row.SetBool(0, w.a)
		row.SetBool(1, w.b)
		row.SetInt64(2, w.n)
		var err error
		buf, err = enc.Encode(buf, row)
		if err != nil {
			t.Fatal(err)
		}
	}

	dec := NewZohDecoder(layout)
	pos := 0
	for i, w := range rows {
		out := NewRow(layout)
		n, err := dec.Decode(buf[pos:], out)
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		pos += n
		a, _ := out.Bool(0)
		b, _ := out.Bool(1)
		nn, _ := out.Int64(2)
		if a != w.a || b != w.b || nn != w.n {
			t.Errorf("row %d: got (%v,%v,%d), want (%v,%v,%d)", i, a, b, nn, w.a, w.b, w.n)
		}
	}
}

func TestZohResetAtPacketBoundary(t *testing.T) {
	layout := mustLayout(t, Column{"x", ColumnInt32})
	enc := NewZohEncoder(layout)
	row := NewRow(layout)
	row.SetInt64(0, 7)

	buf, err := enc.Encode(nil, row)
	if err != nil {
		t.Fatal(err)
	}
	fullLen := len(buf)

	enc.Reset()
	buf2, err := enc.Encode(nil, row)
	if err != nil {
		t.Fatal(err)
	}
	// After Reset, the identical row must again be encoded in full (not as
	// a 1-byte repeat), since the encoder has no previous-row context.
	if len(buf2) != fullLen {
		t.Fatalf("post-reset encode length = %d, want %d (full row)", len(buf2), fullLen)
	}
}
