package csv

import (
	"bytes"
	"strings"
	"testing"

	bcsv "github.com/webertob/bcsv-go"
)

func TestRoundTrip(t *testing.T) {
	layout := bcsv.NewLayout(
		bcsv.Column{Name: "id", Type: bcsv.ColumnInt32},
		bcsv.Column{Name: "ratio", Type: bcsv.ColumnDouble},
		bcsv.Column{Name: "name", Type: bcsv.ColumnString},
		bcsv.Column{Name: "ok", Type: bcsv.ColumnBool},
	)
	type rec struct {
		id    int64
		ratio float64
		name  string
		ok    bool
	}
	recs := []rec{
		{1, 0.5, "alpha", true},
		{2, -1.25, "beta,with comma", false},
		{3, 0, "", true},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, layout)
	for _, rc := range recs {
		row := bcsv.NewRow(layout)
		row.SetInt64(0, rc.id)
		row.SetFloat64(1, rc.ratio)
		row.SetString(2, rc.name)
		row.SetBool(3, rc.ok)
		if err := w.WriteRow(row); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Layout().Equal(layout) {
		t.Fatal("layout did not round-trip through the header")
	}
	for i, rc := range recs {
		if !r.ReadNext() {
			t.Fatalf("row %d: unexpected EOF (%s)", i, r.ErrorMsg())
		}
		id, _ := r.Row().Int64(0)
		ratio, _ := r.Row().Float64(1)
		name, _ := r.Row().String(2)
		ok, _ := r.Row().Bool(3)
		if id != rc.id || ratio != rc.ratio || name != rc.name || ok != rc.ok {
			t.Errorf("row %d: got (%d,%v,%q,%v), want %+v", i, id, ratio, name, ok, rc)
		}
	}
	if r.ReadNext() {
		t.Fatal("expected EOF after last row")
	}
	if r.ErrorMsg() != "" {
		t.Fatalf("clean EOF should not set an error: %s", r.ErrorMsg())
	}
}

func TestBadHeader(t *testing.T) {
	cases := []string{
		"id\n1\n",             // no type annotation
		"id:int128\n1\n",      // unknown type
		"id:int32,id:int32\n", // duplicate name
	}
	for _, src := range cases {
		if _, err := NewReader(strings.NewReader(src)); err == nil {
			t.Errorf("header %q: expected error", src)
		}
	}
}

func TestMalformedCell(t *testing.T) {
	r, err := NewReader(strings.NewReader("id:int32\nnot-a-number\n"))
	if err != nil {
		t.Fatal(err)
	}
	if r.ReadNext() {
		t.Fatal("expected parse failure")
	}
	if r.ErrorMsg() == "" {
		t.Fatal("parse failure should set ErrorMsg")
	}
}
