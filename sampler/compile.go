package sampler

import (
	"fmt"

	"golang.org/x/xerrors"

	bcsv "github.com/webertob/bcsv-go"
)

// compiler lowers one checked expression tree to a program.
type compiler struct {
	layout *bcsv.Layout
	prog   *program
}

// compile parses, checks and lowers a single expression against the input
// layout.
func compile(src string, layout *bcsv.Layout) (*program, expr, error) {
	e, err := parseExpr(src)
	if err != nil {
		return nil, nil, err
	}
	return lower(src, e, layout)
}

func lower(src string, e expr, layout *bcsv.Layout) (*program, expr, error) {
	c := &compiler{layout: layout, prog: &program{src: src}}
	if err := c.resolve(e); err != nil {
		return nil, nil, err
	}
	kind, err := c.typeOf(e)
	if err != nil {
		return nil, nil, err
	}
	e, err = fold(e)
	if err != nil {
		return nil, nil, err
	}
	if err := c.gen(e); err != nil {
		return nil, nil, err
	}
	c.prog.result = kind
	return c.prog, e, nil
}

// resolve binds every cell reference to a column index and value kind, and
// records the extreme row offsets for window sizing.
func (c *compiler) resolve(e expr) error {
	switch n := e.(type) {
	case *litExpr:
		return nil
	case *cellExpr:
		if n.byName {
			i, ok := c.layout.Index(n.colName)
			if !ok {
				return xerrors.Errorf("unknown column %q", n.colName)
			}
			n.col = i
		} else {
			if n.colIndex < 0 || n.colIndex >= c.layout.ColumnCount() {
				return xerrors.Errorf("column index %d out of range [0,%d)", n.colIndex, c.layout.ColumnCount())
			}
			n.col = n.colIndex
		}
		n.kind = columnKind(c.layout.Type(n.col))
		if n.rowOff < c.prog.minOff {
			c.prog.minOff = n.rowOff
		}
		if n.rowOff > c.prog.maxOff {
			c.prog.maxOff = n.rowOff
		}
		return nil
	case *unaryExpr:
		return c.resolve(n.x)
	case *binaryExpr:
		if err := c.resolve(n.l); err != nil {
			return err
		}
		return c.resolve(n.r)
	}
	return xerrors.Errorf("unhandled expression node %T", e)
}

func columnKind(t bcsv.ColumnType) valueKind {
	switch t {
	case bcsv.ColumnBool:
		return kindBool
	case bcsv.ColumnFloat, bcsv.ColumnDouble:
		return kindFloat
	case bcsv.ColumnString:
		return kindStr
	default:
		return kindInt
	}
}

// describe renders a node for error messages, naming cell references the
// way they were written.
func describe(e expr) string {
	switch n := e.(type) {
	case *cellExpr:
		if n.byName {
			return fmt.Sprintf("X[%d][%q]", n.rowOff, n.colName)
		}
		return fmt.Sprintf("X[%d][%d]", n.rowOff, n.colIndex)
	case *litExpr:
		return n.val.String()
	default:
		return "expression"
	}
}

func isNumeric(k valueKind) bool { return k == kindInt || k == kindFloat }

// typeOf checks e and returns its result kind. Arithmetic promotes int to
// double when mixed; strings support only == and !=; mixing string and
// numeric is an error.
func (c *compiler) typeOf(e expr) (valueKind, error) {
	switch n := e.(type) {
	case *litExpr:
		return n.val.kind, nil
	case *cellExpr:
		return n.kind, nil
	case *unaryExpr:
		k, err := c.typeOf(n.x)
		if err != nil {
			return 0, err
		}
		switch n.op {
		case tokMinus:
			if !isNumeric(k) {
				return 0, xerrors.Errorf("operator -: operand %s is %s, not numeric", describe(n.x), k)
			}
			return k, nil
		case tokBang:
			if k != kindBool {
				return 0, xerrors.Errorf("operator !: operand %s is %s, not bool", describe(n.x), k)
			}
			return kindBool, nil
		case tokTilde:
			if k != kindInt {
				return 0, xerrors.Errorf("operator ~: operand %s is %s, not integer", describe(n.x), k)
			}
			return kindInt, nil
		}
		return 0, xerrors.Errorf("unhandled unary operator %s", n.op)
	case *binaryExpr:
		lk, err := c.typeOf(n.l)
		if err != nil {
			return 0, err
		}
		rk, err := c.typeOf(n.r)
		if err != nil {
			return 0, err
		}
		switch n.op {
		case tokOrOr, tokAndAnd:
			if lk != kindBool || rk != kindBool {
				return 0, xerrors.Errorf("operator %s requires boolean operands, found %s and %s", n.op, lk, rk)
			}
			return kindBool, nil
		case tokEq, tokNe:
			if lk == kindStr || rk == kindStr {
				if lk != rk {
					return 0, xerrors.Errorf("operator %s: cannot compare %s (%s) with %s (%s)", n.op, describe(n.l), lk, describe(n.r), rk)
				}
				return kindBool, nil
			}
			if lk == kindBool || rk == kindBool {
				if lk != rk {
					return 0, xerrors.Errorf("operator %s: cannot compare %s (%s) with %s (%s)", n.op, describe(n.l), lk, describe(n.r), rk)
				}
				return kindBool, nil
			}
			return kindBool, nil
		case tokLt, tokLe, tokGt, tokGe:
			if !isNumeric(lk) {
				return 0, xerrors.Errorf("operator %s: operand %s is %s, not numeric", n.op, describe(n.l), lk)
			}
			if !isNumeric(rk) {
				return 0, xerrors.Errorf("operator %s: operand %s is %s, not numeric", n.op, describe(n.r), rk)
			}
			return kindBool, nil
		case tokPipe, tokCaret, tokAmp, tokShl, tokShr, tokPercent:
			if lk != kindInt {
				return 0, xerrors.Errorf("operator %s: operand %s is %s, not integer", n.op, describe(n.l), lk)
			}
			if rk != kindInt {
				return 0, xerrors.Errorf("operator %s: operand %s is %s, not integer", n.op, describe(n.r), rk)
			}
			return kindInt, nil
		case tokPlus, tokMinus, tokStar, tokSlash:
			if !isNumeric(lk) {
				return 0, xerrors.Errorf("operator %s: operand %s is %s, not numeric", n.op, describe(n.l), lk)
			}
			if !isNumeric(rk) {
				return 0, xerrors.Errorf("operator %s: operand %s is %s, not numeric", n.op, describe(n.r), rk)
			}
			if lk == kindFloat || rk == kindFloat {
				return kindFloat, nil
			}
			return kindInt, nil
		}
		return 0, xerrors.Errorf("unhandled binary operator %s", n.op)
	}
	return 0, xerrors.Errorf("unhandled expression node %T", e)
}

// fold evaluates constant sub-expressions at compile time. Its main job is
// surfacing integer division by zero as a compile error instead of a
// runtime one.
func fold(e expr) (expr, error) {
	switch n := e.(type) {
	case *unaryExpr:
		x, err := fold(n.x)
		if err != nil {
			return nil, err
		}
		n.x = x
		if lit, ok := x.(*litExpr); ok {
			switch n.op {
			case tokMinus:
				if lit.val.kind == kindInt {
					return &litExpr{val: intValue(-lit.val.i)}, nil
				}
				return &litExpr{val: floatValue(-lit.val.f)}, nil
			case tokBang:
				return &litExpr{val: boolValue(!lit.val.b)}, nil
			case tokTilde:
				return &litExpr{val: intValue(^lit.val.i)}, nil
			}
		}
		return n, nil
	case *binaryExpr:
		l, err := fold(n.l)
		if err != nil {
			return nil, err
		}
		r, err := fold(n.r)
		if err != nil {
			return nil, err
		}
		n.l, n.r = l, r
		ll, lok := l.(*litExpr)
		rl, rok := r.(*litExpr)
		if !lok || !rok {
			return n, nil
		}
		return foldBinary(n.op, ll.val, rl.val)
	default:
		return e, nil
	}
}

func foldBinary(op tokKind, l, r value) (expr, error) {
	bothInt := l.kind == kindInt && r.kind == kindInt
	toF := func(v value) float64 {
		if v.kind == kindInt {
			return float64(v.i)
		}
		return v.f
	}
	switch op {
	case tokSlash:
		if bothInt {
			if r.i == 0 {
				return nil, xerrors.New("division by zero in constant expression")
			}
			return &litExpr{val: intValue(l.i / r.i)}, nil
		}
		return &litExpr{val: floatValue(toF(l) / toF(r))}, nil
	case tokPercent:
		if r.i == 0 {
			return nil, xerrors.New("modulo by zero in constant expression")
		}
		return &litExpr{val: intValue(l.i % r.i)}, nil
	case tokPlus:
		if bothInt {
			return &litExpr{val: intValue(l.i + r.i)}, nil
		}
		return &litExpr{val: floatValue(toF(l) + toF(r))}, nil
	case tokMinus:
		if bothInt {
			return &litExpr{val: intValue(l.i - r.i)}, nil
		}
		return &litExpr{val: floatValue(toF(l) - toF(r))}, nil
	case tokStar:
		if bothInt {
			return &litExpr{val: intValue(l.i * r.i)}, nil
		}
		return &litExpr{val: floatValue(toF(l) * toF(r))}, nil
	default:
		// Comparisons, logic and bit operations on constants are rare
		// enough to leave to the VM.
		return &binaryExpr{op: op, l: &litExpr{val: l}, r: &litExpr{val: r}}, nil
	}
}

func (c *compiler) emit(in instr) int {
	c.prog.code = append(c.prog.code, in)
	return len(c.prog.code) - 1
}

func (c *compiler) addConst(v value) int {
	c.prog.consts = append(c.prog.consts, v)
	return len(c.prog.consts) - 1
}

func (c *compiler) gen(e expr) error {
	switch n := e.(type) {
	case *litExpr:
		c.emit(instr{op: opLoadConst, a: c.addConst(n.val)})
		return nil
	case *cellExpr:
		c.emit(instr{op: opLoadCell, a: n.rowOff, b: n.col, c: int(n.kind)})
		return nil
	case *unaryExpr:
		if err := c.gen(n.x); err != nil {
			return err
		}
		k, _ := c.typeOf(n.x)
		switch n.op {
		case tokMinus:
			if k == kindFloat {
				c.emit(instr{op: opNegF})
			} else {
				c.emit(instr{op: opNegI})
			}
		case tokBang:
			c.emit(instr{op: opNot})
		case tokTilde:
			c.emit(instr{op: opBitNot})
		}
		return nil
	case *binaryExpr:
		switch n.op {
		case tokAndAnd:
			if err := c.gen(n.l); err != nil {
				return err
			}
			j := c.emit(instr{op: opJz})
			if err := c.gen(n.r); err != nil {
				return err
			}
			c.prog.code[j].a = len(c.prog.code)
			return nil
		case tokOrOr:
			if err := c.gen(n.l); err != nil {
				return err
			}
			j := c.emit(instr{op: opJnz})
			if err := c.gen(n.r); err != nil {
				return err
			}
			c.prog.code[j].a = len(c.prog.code)
			return nil
		}

		lk, _ := c.typeOf(n.l)
		rk, _ := c.typeOf(n.r)
		operand := lk
		if isNumeric(lk) && isNumeric(rk) && (lk == kindFloat || rk == kindFloat) {
			operand = kindFloat
		}
		if err := c.gen(n.l); err != nil {
			return err
		}
		if operand == kindFloat && lk == kindInt {
			c.emit(instr{op: opI2F})
		}
		if err := c.gen(n.r); err != nil {
			return err
		}
		if operand == kindFloat && rk == kindInt {
			c.emit(instr{op: opI2F})
		}
		op, err := binaryOp(n.op, operand)
		if err != nil {
			return err
		}
		c.emit(instr{op: op})
		return nil
	}
	return xerrors.Errorf("unhandled expression node %T", e)
}

func binaryOp(op tokKind, operand valueKind) (opcode, error) {
	type key struct {
		op tokKind
		k  valueKind
	}
	table := map[key]opcode{
		{tokPlus, kindInt}: opAddI, {tokPlus, kindFloat}: opAddF,
		{tokMinus, kindInt}: opSubI, {tokMinus, kindFloat}: opSubF,
		{tokStar, kindInt}: opMulI, {tokStar, kindFloat}: opMulF,
		{tokSlash, kindInt}: opDivI, {tokSlash, kindFloat}: opDivF,
		{tokPercent, kindInt}: opModI,
		{tokPipe, kindInt}:    opBitOr,
		{tokCaret, kindInt}:   opBitXor,
		{tokAmp, kindInt}:     opBitAnd,
		{tokShl, kindInt}:     opShl,
		{tokShr, kindInt}:     opShr,
		{tokEq, kindInt}:      opEqI, {tokEq, kindFloat}: opEqF, {tokEq, kindStr}: opEqS, {tokEq, kindBool}: opEqB,
		{tokNe, kindInt}: opNeI, {tokNe, kindFloat}: opNeF, {tokNe, kindStr}: opNeS, {tokNe, kindBool}: opNeB,
		{tokLt, kindInt}: opLtI, {tokLt, kindFloat}: opLtF,
		{tokLe, kindInt}: opLeI, {tokLe, kindFloat}: opLeF,
		{tokGt, kindInt}: opGtI, {tokGt, kindFloat}: opGtF,
		{tokGe, kindInt}: opGeI, {tokGe, kindFloat}: opGeF,
	}
	if o, ok := table[key{op, operand}]; ok {
		return o, nil
	}
	return 0, xerrors.Errorf("operator %s not defined for %s operands", op, operand)
}
