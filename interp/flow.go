package interp

import (
	"fmt"

	"github.com/viper-lang/viper/vm"
)

type FlowKind int

const (
	FlowNormal FlowKind = iota
	FlowReturn
	FlowBreak
	FlowContinue
	FlowError
)

func (k FlowKind) String() string {
	switch k {
	case FlowNormal:
		return "Normal"
	case FlowReturn:
		return "Return"
	case FlowBreak:
		return "Break"
	case FlowContinue:
		return "Continue"
	case FlowError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Flow is the result of executing an opcode or a chunk. Anything other than
// FlowNormal unwinds until a LOOP (break, continue), a CALL (return) or the
// top level (everything else) handles it.
type Flow struct {
	Kind  FlowKind
	Value vm.Value
	Err   error
}

func Normal() Flow {
	return Flow{Kind: FlowNormal}
}

func Return(v vm.Value) Flow {
	return Flow{Kind: FlowReturn, Value: v}
}

func Break() Flow {
	return Flow{Kind: FlowBreak}
}

func Continue() Flow {
	return Flow{Kind: FlowContinue}
}

func Raise(err error) Flow {
	return Flow{Kind: FlowError, Err: err}
}

func (f Flow) IsError() bool {
	return f.Kind == FlowError
}
