package sampler

import "golang.org/x/xerrors"

// expr is a parsed expression node. Types are attached during the check
// pass (compile.go), not while parsing.
type expr interface{ exprNode() }

type litExpr struct {
	val value
}

// cellExpr is a window cell reference X[rowOff][col]. Exactly one of
// colName ("quoted name") and colIndex (integer) is given in the source;
// the check pass resolves both to col and records the column's value kind.
type cellExpr struct {
	rowOff   int
	colName  string
	colIndex int
	byName   bool

	col  int
	kind valueKind
}

type unaryExpr struct {
	op tokKind
	x  expr
}

type binaryExpr struct {
	op   tokKind
	l, r expr
}

func (*litExpr) exprNode()    {}
func (*cellExpr) exprNode()   {}
func (*unaryExpr) exprNode()  {}
func (*binaryExpr) exprNode() {}

type parser struct {
	lex lexer
	tok token
}

func newParser(src string) (*parser, error) {
	p := &parser{lex: lexer{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expect(k tokKind) error {
	if p.tok.kind != k {
		return xerrors.Errorf("position %d: expected %s, found %s", p.tok.pos, k, p.tok.kind)
	}
	return p.advance()
}

// parseExpr parses a single complete expression and requires it to consume
// the whole input.
func parseExpr(src string) (expr, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, xerrors.Errorf("position %d: trailing %s after expression", p.tok.pos, p.tok.kind)
	}
	return e, nil
}

// parseExprList parses a comma-separated list of expressions (a selection).
func parseExprList(src string) ([]expr, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	var out []expr
	for {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if p.tok.kind == tokEOF {
			return out, nil
		}
		if err := p.expect(tokComma); err != nil {
			return nil, err
		}
	}
}

// Precedence low to high: || && cmp | ^ & shift add mul unary.

func (p *parser) parseOr() (expr, error) {
	return p.parseBinaryLevel(0)
}

var precLevels = [][]tokKind{
	{tokOrOr},
	{tokAndAnd},
	{tokEq, tokNe, tokLt, tokLe, tokGt, tokGe},
	{tokPipe},
	{tokCaret},
	{tokAmp},
	{tokShl, tokShr},
	{tokPlus, tokMinus},
	{tokStar, tokSlash, tokPercent},
}

func (p *parser) parseBinaryLevel(level int) (expr, error) {
	if level == len(precLevels) {
		return p.parseUnary()
	}
	l, err := p.parseBinaryLevel(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op := p.tok.kind
		match := false
		for _, k := range precLevels[level] {
			if op == k {
				match = true
				break
			}
		}
		if !match {
			return l, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		r, err := p.parseBinaryLevel(level + 1)
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{op: op, l: l, r: r}
	}
}

func (p *parser) parseUnary() (expr, error) {
	switch p.tok.kind {
	case tokMinus, tokBang, tokTilde:
		op := p.tok.kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: op, x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (expr, error) {
	switch p.tok.kind {
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return e, nil
	case tokInt:
		v := p.tok.i
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &litExpr{val: intValue(v)}, nil
	case tokFloat:
		v := p.tok.f
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &litExpr{val: floatValue(v)}, nil
	case tokStr:
		v := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &litExpr{val: strValue(v)}, nil
	case tokIdent:
		switch p.tok.text {
		case "true":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &litExpr{val: boolValue(true)}, nil
		case "false":
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &litExpr{val: boolValue(false)}, nil
		case "X":
			return p.parseCellRef()
		default:
			return nil, xerrors.Errorf("position %d: unknown identifier %q", p.tok.pos, p.tok.text)
		}
	}
	return nil, xerrors.Errorf("position %d: unexpected %s", p.tok.pos, p.tok.kind)
}

// parseCellRef parses X[rowOffset][column]. The row offset is a signed
// integer (0 = current row, negative = lookbehind, positive = lookahead);
// the column is an integer index or a quoted column name.
func (p *parser) parseCellRef() (expr, error) {
	if err := p.advance(); err != nil { // consume X
		return nil, err
	}
	if err := p.expect(tokLBracket); err != nil {
		return nil, err
	}
	sign := int64(1)
	switch p.tok.kind {
	case tokMinus:
		sign = -1
		if err := p.advance(); err != nil {
			return nil, err
		}
	case tokPlus:
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.tok.kind != tokInt {
		return nil, xerrors.Errorf("position %d: expected integer row offset, found %s", p.tok.pos, p.tok.kind)
	}
	rowOff := int(sign * p.tok.i)
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(tokRBracket); err != nil {
		return nil, err
	}
	if err := p.expect(tokLBracket); err != nil {
		return nil, err
	}

	cell := &cellExpr{rowOff: rowOff}
	switch p.tok.kind {
	case tokInt:
		cell.colIndex = int(p.tok.i)
	case tokStr:
		cell.colName = p.tok.text
		cell.byName = true
	default:
		return nil, xerrors.Errorf("position %d: expected column index or quoted column name, found %s", p.tok.pos, p.tok.kind)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(tokRBracket); err != nil {
		return nil, err
	}
	return cell, nil
}
