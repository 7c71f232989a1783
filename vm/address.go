package vm

import "fmt"

// Span is a half-open column range on a single source line. Columns are
// 1-based.
type Span struct {
	Start int
	End   int
}

// Address attributes an opcode or error to a place in the source.
type Address struct {
	File string
	Line int
	Span Span
}

func Unknown() Address {
	return Address{}
}

func (a Address) IsUnknown() bool {
	return a.File == "" && a.Line == 0
}

func (a Address) String() string {
	if a.IsUnknown() {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", a.File, a.Line, a.Span.Start)
}
