package vm

import (
	"fmt"
)

type ErrorKind int

const (
	TypeMismatch ErrorKind = iota
	ArityMismatch
	UndefinedVariable
	OutOfRangeConstant
	Internal
	Native
	StackOverflow
	ZeroDivision
	Raised
	CompileError
	Overflow
)

func (k ErrorKind) String() string {
	switch k {
	case TypeMismatch:
		return "TypeMismatch"
	case ArityMismatch:
		return "ArityMismatch"
	case UndefinedVariable:
		return "UndefinedVariable"
	case OutOfRangeConstant:
		return "OutOfRangeConstant"
	case Internal:
		return "Internal"
	case Native:
		return "Native"
	case StackOverflow:
		return "StackOverflow"
	case ZeroDivision:
		return "ZeroDivision"
	case Raised:
		return "Raised"
	case CompileError:
		return "CompileError"
	case Overflow:
		return "Overflow"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ReportHint is attached to every error that means the toolchain itself is
// broken rather than the user's program.
const ReportHint = "report this error to the developer."

// Error is a fatal diagnostic carrying the source address it was raised at.
type Error struct {
	Kind ErrorKind
	Addr Address
	Text string
	Hint string
}

func (e *Error) Error() string {
	if e.Addr.IsUnknown() {
		return fmt.Sprintf("%s: %s", e.Kind, e.Text)
	}
	return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Text, e.Addr)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrTypeMismatch)
// works regardless of text or address.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrTypeMismatch       = &Error{Kind: TypeMismatch}
	ErrArityMismatch      = &Error{Kind: ArityMismatch}
	ErrUndefinedVariable  = &Error{Kind: UndefinedVariable}
	ErrOutOfRangeConstant = &Error{Kind: OutOfRangeConstant}
	ErrInternal           = &Error{Kind: Internal}
	ErrNative             = &Error{Kind: Native}
	ErrStackOverflow      = &Error{Kind: StackOverflow}
	ErrZeroDivision       = &Error{Kind: ZeroDivision}
	ErrRaised             = &Error{Kind: Raised}
	ErrCompile            = &Error{Kind: CompileError}
	ErrOverflow           = &Error{Kind: Overflow}
)

func Errorf(kind ErrorKind, addr Address, format string, args ...any) *Error {
	e := &Error{
		Kind: kind,
		Addr: addr,
		Text: fmt.Sprintf(format, args...),
	}
	switch kind {
	case Internal, OutOfRangeConstant:
		e.Hint = ReportHint
	}
	return e
}

func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

func TypeMismatchError(addr Address, expected string, got Value) *Error {
	return Errorf(TypeMismatch, addr, "expected %s, got %s", expected, kindOf(got))
}

func InternalError(addr Address, format string, args ...any) *Error {
	return Errorf(Internal, addr, format, args...)
}

func kindOf(v Value) string {
	if v == nil {
		return "nothing"
	}
	return v.Kind().String()
}
