package interp

import (
	"github.com/rs/zerolog/log"
	"github.com/viper-lang/viper/heap"
	"github.com/viper-lang/viper/vm"
)

// Closure is a function together with the scope it was defined in.
type Closure struct {
	Fn    *vm.Function
	Scope *Scope
}

func (c *Closure) Trace(mark func(heap.Handle)) {
	c.Scope.trace(mark, nil)
}

func (m *VM) makeFunction(f *Frame, op vm.Op) Flow {
	fn, err := f.Chunk.Function(op.Arg, op.Addr)
	if err != nil {
		return Raise(err)
	}
	f.Push(m.Alloc(heap.TagFunction, &Closure{Fn: fn, Scope: f.Scope}))
	return Normal()
}

// call pops the callee and then op.Arg arguments, and runs the callee's body
// in a new frame whose scope is a child of the closure's defining scope.
func (m *VM) call(f *Frame, op vm.Op) Flow {
	callee, err := f.Pop()
	if err != nil {
		return Raise(err)
	}
	handle, ok := callee.(vm.AnyValue)
	if !ok {
		return Raise(vm.TypeMismatchError(op.Addr, "function", callee))
	}
	tag, obj, err := m.heap.Get(handle.Handle)
	if err != nil {
		return Raise(vm.InternalError(op.Addr, "calling through a dead handle: %v", err))
	}
	closure, ok := obj.(*Closure)
	if !ok || tag != heap.TagFunction {
		return Raise(vm.Errorf(vm.TypeMismatch, op.Addr, "expected function, got %s", tag))
	}
	fn := closure.Fn
	if op.Arg != len(fn.Params) {
		return Raise(vm.Errorf(vm.ArityMismatch, op.Addr, "%s takes %d arguments, got %d", fn.Name, len(fn.Params), op.Arg))
	}
	if len(f.Stack) < op.Arg {
		return Raise(vm.InternalError(op.Addr, "operand stack holds %d values, call needs %d", len(f.Stack), op.Arg))
	}
	if len(m.frames) >= m.settings.MaxCallDepth {
		return Raise(vm.Errorf(vm.StackOverflow, op.Addr, "maximum call depth of %d exceeded calling %s", m.settings.MaxCallDepth, fn.Name).
			WithHint("check for unbounded recursion."))
	}

	scope := NewScope(closure.Scope)
	args := f.Stack[len(f.Stack)-op.Arg:]
	for i, p := range fn.Params {
		scope.Define(p, args[i])
	}
	f.truncate(len(f.Stack) - op.Arg)

	frame := &Frame{Name: fn.Name, Scope: scope}
	m.frames.Append(frame)
	log.Trace().Str("function", fn.Name).Int("depth", len(m.frames)).Msg("  CALL")
	fl := m.execChunk(frame, fn.Body)
	m.frames.PopFrame()

	switch fl.Kind {
	case FlowNormal:
		f.Push(vm.None)
	case FlowReturn:
		f.Push(fl.Value)
	case FlowBreak, FlowContinue:
		return Raise(vm.InternalError(op.Addr, "control flow leak: %s escaped %s", fl.Kind, fn.Name))
	default:
		return fl
	}
	return Normal()
}
