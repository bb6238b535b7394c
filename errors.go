package bcsv

import "golang.org/x/xerrors"

// ErrorKind classifies the flat error taxonomy the package exposes. Callers
// that need to react differently to, say, a checksum failure than to a
// state violation should switch on Kind() rather than match error strings.
type ErrorKind int

const (
	// KindIO wraps an underlying stream failure: short read/write, file not
	// found, seek past the end of a truncated file.
	KindIO ErrorKind = iota
	// KindFormat covers bad magic, unsupported version, unknown codec ID or
	// a malformed layout serialization.
	KindFormat
	// KindChecksum covers header, packet, chain, or footer checksum
	// mismatches.
	KindChecksum
	// KindState covers operations forbidden in the current Writer/Reader
	// state (write after close, re-open without close, access before open).
	KindState
	// KindRange covers column index out of bounds, a bulk write overflowing
	// the layout, or a typed cell access against the wrong column type.
	KindRange
	// KindExpression covers Sampler compile failures: unknown column,
	// out-of-range column index, type mismatch, constant division by zero.
	KindExpression
	// KindRecovery reports that a file was read without a valid footer and
	// recovered from its packet stream; an open that finds nothing
	// recoverable also fails with this kind.
	KindRecovery
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindFormat:
		return "format"
	case KindChecksum:
		return "checksum"
	case KindState:
		return "state"
	case KindRange:
		return "range"
	case KindExpression:
		return "expression"
	case KindRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by this package. It carries a
// Kind so callers can branch without string matching, while still behaving
// like a normal wrapped error for %w/errors.Is/errors.As.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: xerrors.Errorf(format, args...).Error()}
}

func wrapErr(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: xerrors.Errorf(format, args...).Error(), Err: err}
}
