package interp

import (
	"fmt"

	"github.com/viper-lang/viper/vm"
)

// Frame is one active call: its operand stack, the chunk being executed, the
// program counter into it and the active scope table.
type Frame struct {
	Name  string
	Stack []vm.Value
	Chunk *vm.Chunk
	PC    int
	Scope *Scope
	Addr  vm.Address // address of the opcode being executed
}

type Frames []*Frame

func (s *Frames) PopFrame() *Frame {
	f := s.Current()
	*s = (*s)[:len(*s)-1]
	return f
}

func (s *Frames) Append(f *Frame) {
	*s = append(*s, f)
}

func (s Frames) Current() *Frame {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

type State int

const (
	Running State = iota
	Halted
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Halted:
		return "Halted"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}
