// Package csv reads and writes the text twin of the binary row-store
// format: the same Layout abstraction over comma-separated values, with a
// typed header row of "name:type" cells. It exists for interchange and
// debugging; the binary format is the storage format.
package csv

import (
	stdcsv "encoding/csv"
	"io"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	bcsv "github.com/webertob/bcsv-go"
)

func typeFromString(s string) (bcsv.ColumnType, error) {
	for t := bcsv.ColumnBool; t <= bcsv.ColumnString; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, xerrors.Errorf("unknown column type %q", s)
}

// Writer emits a typed header followed by one record per row.
type Writer struct {
	cw          *stdcsv.Writer
	layout      *bcsv.Layout
	wroteHeader bool
	record      []string
}

// NewWriter returns a Writer emitting rows of layout to w.
func NewWriter(w io.Writer, layout *bcsv.Layout) *Writer {
	return &Writer{
		cw:     stdcsv.NewWriter(w),
		layout: layout,
		record: make([]string, layout.ColumnCount()),
	}
}

func (w *Writer) writeHeader() error {
	rec := make([]string, w.layout.ColumnCount())
	for i := range rec {
		rec[i] = w.layout.Name(i) + ":" + w.layout.Type(i).String()
	}
	w.wroteHeader = true
	return w.cw.Write(rec)
}

// WriteRow appends one row, emitting the header first if it has not been
// written yet.
func (w *Writer) WriteRow(row *bcsv.Row) error {
	if !w.wroteHeader {
		if err := w.writeHeader(); err != nil {
			return err
		}
	}
	var verr error
	row.Visit(func(i int, v interface{}) {
		if verr != nil {
			return
		}
		w.record[i], verr = formatCell(w.layout.Type(i), v)
	})
	if verr != nil {
		return verr
	}
	return w.cw.Write(w.record)
}

// Flush writes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}

func formatCell(t bcsv.ColumnType, v interface{}) (string, error) {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case string:
		return val, nil
	default:
		return "", xerrors.Errorf("cannot format %T as %s", v, t)
	}
}

// Reader parses a typed header and streams rows. It satisfies the same
// row-source shape as the binary Reader, so a Sampler can run over CSV
// input unchanged.
type Reader struct {
	cr     *stdcsv.Reader
	layout *bcsv.Layout
	row    *bcsv.Row
	errMsg string
}

// NewReader reads the header record from r and builds the layout.
func NewReader(r io.Reader) (*Reader, error) {
	cr := stdcsv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, xerrors.Errorf("read csv header: %w", err)
	}
	layout := bcsv.NewLayout()
	for i, cell := range header {
		name, typeName, found := strings.Cut(cell, ":")
		if !found {
			return nil, xerrors.Errorf("header cell %d (%q) is not name:type", i, cell)
		}
		t, err := typeFromString(typeName)
		if err != nil {
			return nil, xerrors.Errorf("header cell %d: %w", i, err)
		}
		if err := layout.AddColumn(name, t); err != nil {
			return nil, err
		}
	}
	cr.FieldsPerRecord = layout.ColumnCount()
	return &Reader{cr: cr, layout: layout, row: bcsv.NewRow(layout)}, nil
}

// Layout returns the layout parsed from the header.
func (r *Reader) Layout() *bcsv.Layout { return r.layout }

// Row returns the current parsed row.
func (r *Reader) Row() *bcsv.Row { return r.row }

// ErrorMsg returns the last parse error, or "" at clean EOF.
func (r *Reader) ErrorMsg() string { return r.errMsg }

// ReadNext parses the next record into Row, returning false at EOF or on a
// malformed record (distinguish via ErrorMsg).
func (r *Reader) ReadNext() bool {
	rec, err := r.cr.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		r.errMsg = err.Error()
		return false
	}
	for i, cell := range rec {
		if err := r.parseCell(i, cell); err != nil {
			r.errMsg = err.Error()
			return false
		}
	}
	return true
}

func (r *Reader) parseCell(i int, cell string) error {
	switch t := r.layout.Type(i); t {
	case bcsv.ColumnBool:
		v, err := strconv.ParseBool(cell)
		if err != nil {
			return xerrors.Errorf("column %d: %w", i, err)
		}
		return r.row.SetBool(i, v)
	case bcsv.ColumnInt8, bcsv.ColumnInt16, bcsv.ColumnInt32, bcsv.ColumnInt64:
		v, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return xerrors.Errorf("column %d: %w", i, err)
		}
		return r.row.SetInt64(i, v)
	case bcsv.ColumnUint8, bcsv.ColumnUint16, bcsv.ColumnUint32, bcsv.ColumnUint64:
		v, err := strconv.ParseUint(cell, 10, 64)
		if err != nil {
			return xerrors.Errorf("column %d: %w", i, err)
		}
		return r.row.SetUint64(i, v)
	case bcsv.ColumnFloat:
		v, err := strconv.ParseFloat(cell, 32)
		if err != nil {
			return xerrors.Errorf("column %d: %w", i, err)
		}
		return r.row.SetFloat32(i, float32(v))
	case bcsv.ColumnDouble:
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return xerrors.Errorf("column %d: %w", i, err)
		}
		return r.row.SetFloat64(i, v)
	case bcsv.ColumnString:
		return r.row.SetString(i, cell)
	default:
		return xerrors.Errorf("column %d has invalid type %d", i, t)
	}
}
