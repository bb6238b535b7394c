// Package sampler filters and projects rows streamed from a reader using a
// small expression language compiled to stack-machine bytecode. Cell
// references X[r][c] address a sliding window of rows around the current
// one: r = 0 is the current row, negative offsets look behind, positive
// offsets look ahead. The window is sized at compile time from the extreme
// offsets in the expressions, so memory use is fixed before iteration
// starts. Rows too close to the stream's start or end for every referenced
// offset to resolve are skipped.
package sampler

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"

	bcsv "github.com/webertob/bcsv-go"
)

// Source is the row stream a Sampler consumes. *bcsv.Reader implements it.
type Source interface {
	ReadNext() bool
	Row() *bcsv.Row
	Layout() *bcsv.Layout
}

// CompileResult reports whether an expression compiled, and the compile
// error message when it did not.
type CompileResult struct {
	Success  bool
	ErrorMsg string
}

func compileOK() CompileResult { return CompileResult{Success: true} }
func compileErr(err error) CompileResult {
	return CompileResult{ErrorMsg: err.Error()}
}

// Sampler wraps a Source with a compiled conditional (rows failing it are
// dropped) and a compiled selection (the projected output row).
type Sampler struct {
	src Source
	in  *bcsv.Layout

	cond    *program
	sels    []*program
	out     *bcsv.Layout
	outRow  *bcsv.Row
	started bool

	lookBehind int
	lookAhead  int

	win       []*bcsv.Row // sliding window, win[0] is row frontAbs
	frontAbs  int64
	readCount int64 // rows pulled from src so far
	candidate int64 // absolute index of the next row to consider
	eof       bool
	errMsg    string
}

// New returns a Sampler over src with the trivial conditional (every row
// passes) and the identity selection (all input columns of the current
// row). Use SetConditional and SetSelection to replace either.
func New(src Source) *Sampler {
	return &Sampler{src: src, in: src.Layout()}
}

// SetConditional compiles expr as the row predicate. It must be called
// before the first Next.
func (s *Sampler) SetConditional(expr string) CompileResult {
	if s.started {
		return compileErr(xerrors.New("cannot change the conditional after iteration started"))
	}
	prog, _, err := compile(expr, s.in)
	if err != nil {
		return compileErr(err)
	}
	if prog.result != kindBool {
		return compileErr(xerrors.Errorf("conditional must be boolean, got %s", prog.result))
	}
	s.cond = prog
	return compileOK()
}

// SetSelection compiles a comma-separated expression list as the output
// projection. The output layout is inferred from the expressions' result
// types. It must be called before the first Next.
func (s *Sampler) SetSelection(exprs string) CompileResult {
	if s.started {
		return compileErr(xerrors.New("cannot change the selection after iteration started"))
	}
	list, err := parseExprList(exprs)
	if err != nil {
		return compileErr(err)
	}
	sels := make([]*program, 0, len(list))
	out := bcsv.NewLayout()
	for i, e := range list {
		prog, folded, err := lower(exprText(exprs, i, len(list)), e, s.in)
		if err != nil {
			return compileErr(err)
		}
		prog.code = append(prog.code, instr{op: opStoreOutput, a: i})
		sels = append(sels, prog)
		if err := out.AddColumn(s.outputName(out, folded, i), kindColumn(prog.result)); err != nil {
			return compileErr(err)
		}
	}
	s.sels = sels
	s.out = out
	s.outRow = bcsv.NewRow(out)
	return compileOK()
}

// exprText labels a selection program for disassembly. The individual
// sub-expression text is not tracked through parsing, so lists are labeled
// by position.
func exprText(all string, i, n int) string {
	if n == 1 {
		return all
	}
	return fmt.Sprintf("selection expression %d", i)
}

// outputName derives a column name for a selection expression: a bare cell
// reference keeps its input column's name, anything else gets a positional
// name. Collisions get a numeric suffix.
func (s *Sampler) outputName(out *bcsv.Layout, e expr, i int) string {
	name := fmt.Sprintf("col%d", i)
	if cell, ok := e.(*cellExpr); ok {
		name = s.in.Name(cell.col)
	}
	if !out.Has(name) {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", name, n)
		if !out.Has(candidate) {
			return candidate
		}
	}
}

func kindColumn(k valueKind) bcsv.ColumnType {
	switch k {
	case kindBool:
		return bcsv.ColumnBool
	case kindFloat:
		return bcsv.ColumnDouble
	case kindStr:
		return bcsv.ColumnString
	default:
		return bcsv.ColumnInt64
	}
}

// OutputLayout returns the projected layout. Only valid after SetSelection
// (or after the first Next, which installs the identity selection).
func (s *Sampler) OutputLayout() *bcsv.Layout { return s.out }

// ErrorMsg returns the last runtime error, or "" if none.
func (s *Sampler) ErrorMsg() string { return s.errMsg }

// prepare installs the default conditional/selection if the caller set
// neither, and sizes the window from the compiled programs.
func (s *Sampler) prepare() bool {
	if s.started {
		return s.errMsg == ""
	}
	if s.cond == nil {
		if res := s.SetConditional("true"); !res.Success {
			s.errMsg = res.ErrorMsg
			return false
		}
	}
	if s.sels == nil {
		parts := make([]string, s.in.ColumnCount())
		for i := range parts {
			parts[i] = fmt.Sprintf("X[0][%d]", i)
		}
		if res := s.SetSelection(strings.Join(parts, ", ")); !res.Success {
			s.errMsg = res.ErrorMsg
			return false
		}
	}
	minOff, maxOff := s.cond.minOff, s.cond.maxOff
	for _, p := range s.sels {
		if p.minOff < minOff {
			minOff = p.minOff
		}
		if p.maxOff > maxOff {
			maxOff = p.maxOff
		}
	}
	s.lookBehind = -minOff
	s.lookAhead = maxOff
	s.started = true
	return true
}

// pull reads one row from the source into the window, dropping the oldest
// row once the window is at capacity.
func (s *Sampler) pull() {
	if !s.src.ReadNext() {
		s.eof = true
		return
	}
	cp := bcsv.NewRow(s.in)
	if err := cp.CopyFrom(s.src.Row()); err != nil {
		s.errMsg = err.Error()
		s.eof = true
		return
	}
	s.win = append(s.win, cp)
	if len(s.win) > s.lookBehind+1+s.lookAhead {
		s.win = s.win[1:]
		s.frontAbs++
	}
	s.readCount++
}

// loadCell resolves X[rowOff][col] relative to the candidate row abs.
func (s *Sampler) loadCell(abs int64) cellLoader {
	return func(rowOff, col int) (value, error) {
		idx := abs + int64(rowOff) - s.frontAbs
		if idx < 0 || idx >= int64(len(s.win)) {
			return value{}, xerrors.Errorf("window does not hold row offset %+d at row %d", rowOff, abs)
		}
		return loadRowCell(s.win[idx], col)
	}
}

func loadRowCell(row *bcsv.Row, col int) (value, error) {
	switch row.Layout().Type(col) {
	case bcsv.ColumnBool:
		v, err := row.Bool(col)
		if err != nil {
			return value{}, err
		}
		return boolValue(v), nil
	case bcsv.ColumnInt8, bcsv.ColumnInt16, bcsv.ColumnInt32, bcsv.ColumnInt64:
		v, err := row.Int64(col)
		if err != nil {
			return value{}, err
		}
		return intValue(v), nil
	case bcsv.ColumnUint8, bcsv.ColumnUint16, bcsv.ColumnUint32, bcsv.ColumnUint64:
		v, err := row.Uint64(col)
		if err != nil {
			return value{}, err
		}
		return intValue(int64(v)), nil
	case bcsv.ColumnFloat:
		v, err := row.Float32(col)
		if err != nil {
			return value{}, err
		}
		return floatValue(float64(v)), nil
	case bcsv.ColumnDouble:
		v, err := row.Float64(col)
		if err != nil {
			return value{}, err
		}
		return floatValue(v), nil
	case bcsv.ColumnString:
		v, err := row.String(col)
		if err != nil {
			return value{}, err
		}
		return strValue(v), nil
	}
	return value{}, xerrors.Errorf("column %d has an unsupported type", col)
}

func (s *Sampler) storeOutput(col int, v value) error {
	switch v.kind {
	case kindBool:
		return s.outRow.SetBool(col, v.b)
	case kindInt:
		return s.outRow.SetInt64(col, v.i)
	case kindFloat:
		return s.outRow.SetFloat64(col, v.f)
	case kindStr:
		return s.outRow.SetString(col, v.s)
	}
	return xerrors.Errorf("cannot store value of kind %d", v.kind)
}

// Next advances to the next row satisfying the conditional and materializes
// its projection. It returns false at end of stream or on error
// (distinguish via ErrorMsg).
func (s *Sampler) Next() bool {
	if !s.prepare() {
		return false
	}
	for {
		for s.readCount <= s.candidate+int64(s.lookAhead) && !s.eof {
			s.pull()
		}
		if s.errMsg != "" {
			return false
		}
		if s.readCount <= s.candidate+int64(s.lookAhead) {
			return false // not enough lookahead left in the stream
		}
		if s.candidate < int64(s.lookBehind) {
			s.candidate++ // not enough lookbehind yet
			continue
		}

		abs := s.candidate
		s.candidate++
		load := s.loadCell(abs)
		v, err := s.cond.run(load, nil)
		if err != nil {
			s.errMsg = err.Error()
			return false
		}
		if !v.b {
			continue
		}
		for _, p := range s.sels {
			if _, err := p.run(load, s.storeOutput); err != nil {
				s.errMsg = err.Error()
				return false
			}
		}
		return true
	}
}

// Row returns the current projected row. Only valid after a successful
// Next.
func (s *Sampler) Row() *bcsv.Row { return s.outRow }

// Bulk drains the sampler and returns every remaining projected row.
func (s *Sampler) Bulk() ([]*bcsv.Row, error) {
	var out []*bcsv.Row
	for s.Next() {
		cp := bcsv.NewRow(s.out)
		if err := cp.CopyFrom(s.outRow); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	if s.errMsg != "" {
		return nil, xerrors.New(s.errMsg)
	}
	return out, nil
}

// Disassemble returns a text listing of the compiled bytecode for
// diagnostics.
func (s *Sampler) Disassemble() string {
	var b strings.Builder
	if s.cond != nil {
		fmt.Fprintf(&b, "conditional: %s\n", s.cond.src)
		s.cond.disassemble(&b)
	}
	for i, p := range s.sels {
		fmt.Fprintf(&b, "selection[%d]: %s\n", i, p.src)
		p.disassemble(&b)
	}
	return b.String()
}
