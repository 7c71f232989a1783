package interp

import (
	"github.com/rs/zerolog/log"
	"github.com/viper-lang/viper/vm"
)

// Run executes chunk from its first opcode in a fresh root frame bound to
// globals, or to the VM's own global table when globals is nil. A top-level
// return ends the program normally and its value is carried in the result.
func (m *VM) Run(chunk *vm.Chunk, globals *Scope) Flow {
	if m.state == Halted {
		return Raise(vm.InternalError(vm.Unknown(), "run on a VM that has been cleaned up"))
	}
	if globals != nil {
		m.globals = globals
	}
	root := &Frame{Name: chunk.Name, Scope: m.globals}
	m.frames.Append(root)
	fl := m.execChunk(root, chunk)
	m.frames.PopFrame()

	switch fl.Kind {
	case FlowNormal:
		return fl
	case FlowReturn:
		return Flow{Kind: FlowNormal, Value: fl.Value}
	case FlowBreak, FlowContinue:
		return Raise(vm.InternalError(root.Addr, "control flow leak: %s escaped to the top level", fl.Kind))
	default:
		log.Debug().Err(fl.Err).Msg("run: uncaught error")
		return fl
	}
}

// RunToEnd runs chunk against the VM's global table and converts the final
// flow into a value and an error.
func RunToEnd(m *VM, chunk *vm.Chunk) (vm.Value, error) {
	fl := m.Run(chunk, nil)
	if fl.Kind == FlowError {
		return nil, fl.Err
	}
	if fl.Value == nil {
		return vm.None, nil
	}
	return fl.Value, nil
}
