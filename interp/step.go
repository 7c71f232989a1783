package interp

import (
	"github.com/rs/zerolog/log"
	"github.com/viper-lang/viper/vm"
)

// execChunk runs c on f's operand stack from its first opcode until it runs
// off the end or an opcode returns anything but FlowNormal. f's chunk and
// program counter are restored afterwards, so LOOP bodies can run on the
// frame that owns the loop.
func (m *VM) execChunk(f *Frame, c *vm.Chunk) Flow {
	prevChunk, prevPC := f.Chunk, f.PC
	f.Chunk, f.PC = c, 0
	defer func() {
		f.Chunk, f.PC = prevChunk, prevPC
	}()

	for f.PC < len(c.Ops) {
		op := c.Ops[f.PC]
		f.PC++
		f.Addr = op.Addr

		log.Trace().
			Str("chunk", c.Name).
			Int("pc", f.PC-1).
			Str("opcode", op.Code.String()).
			Int("arg", op.Arg).
			Int("stack_depth", len(f.Stack)).
			Msg("step")

		if fl := m.step(f, op); fl.Kind != FlowNormal {
			return fl
		}
	}
	return Normal()
}

func (m *VM) step(f *Frame, op vm.Op) Flow {
	switch op.Code {
	case vm.NOP:
	case vm.POP:
		if _, err := f.Pop(); err != nil {
			return Raise(err)
		}
	case vm.DUP:
		v, err := f.Peek()
		if err != nil {
			return Raise(err)
		}
		f.Push(v)
	case vm.SWAP:
		a, b, err := f.pop2()
		if err != nil {
			return Raise(err)
		}
		f.Push(b)
		f.Push(a)
	case vm.PUSH:
		v, err := f.Chunk.Constant(op.Arg, op.Addr)
		if err != nil {
			return Raise(err)
		}
		f.Push(v)

	case vm.ADD, vm.SUBTRACT, vm.MULTIPLY, vm.DIVIDE, vm.MODULO, vm.FLOOR_DIVIDE, vm.POWER:
		a, b, err := f.pop2()
		if err != nil {
			return Raise(err)
		}
		v, err := arith(op.Code, a, b, op.Addr)
		if err != nil {
			log.Trace().Str("op", op.Code.String()).Interface("a", a).Interface("b", b).Err(err).Msg("  arith: error")
			return Raise(err)
		}
		f.Push(v)
	case vm.NEGATE:
		a, err := f.Pop()
		if err != nil {
			return Raise(err)
		}
		switch v := a.(type) {
		case vm.IntValue:
			n, ok := negInt(int64(v))
			if !ok {
				return Raise(overflow(op.Addr, op.Code))
			}
			f.Push(vm.IntValue(n))
		case vm.FloatValue:
			f.Push(-v)
		default:
			return Raise(vm.TypeMismatchError(op.Addr, "int or float", a))
		}
	case vm.EQ, vm.NEQ:
		a, b, err := f.pop2()
		if err != nil {
			return Raise(err)
		}
		eq := vm.Equal(a, b)
		f.Push(vm.BoolValue(eq == (op.Code == vm.EQ)))
	case vm.LT, vm.LTE, vm.GT, vm.GTE:
		a, b, err := f.pop2()
		if err != nil {
			return Raise(err)
		}
		v, err := compare(op.Code, a, b, op.Addr)
		if err != nil {
			return Raise(err)
		}
		f.Push(v)
	case vm.NOT:
		a, err := f.Pop()
		if err != nil {
			return Raise(err)
		}
		f.Push(vm.BoolValue(!a.AsBool()))

	case vm.JMP:
		return m.jump(f, op)
	case vm.JFALSE:
		cond, err := f.Pop()
		if err != nil {
			return Raise(err)
		}
		if !cond.AsBool() {
			return m.jump(f, op)
		}

	case vm.LOOP:
		return m.loop(f, op)
	case vm.BREAK:
		return Break()
	case vm.CONTINUE:
		return Continue()
	case vm.RETURN:
		v, err := f.Pop()
		if err != nil {
			return Raise(err)
		}
		return Return(v)
	case vm.RAISE:
		msg, err := f.Pop()
		if err != nil {
			return Raise(err)
		}
		return Raise(vm.Errorf(vm.Raised, op.Addr, "%s", msg.String()))

	case vm.MAKE_FN:
		return m.makeFunction(f, op)
	case vm.CALL:
		return m.call(f, op)
	case vm.CALL_NATIVE:
		return m.callNative(f, op)

	case vm.LOAD_GLOBAL:
		name, err := f.Chunk.NameAt(op.Arg, op.Addr)
		if err != nil {
			return Raise(err)
		}
		v, err := m.globals.Resolve(name, op.Addr)
		if err != nil {
			return Raise(err)
		}
		f.Push(v)
	case vm.STORE_GLOBAL:
		name, err := f.Chunk.NameAt(op.Arg, op.Addr)
		if err != nil {
			return Raise(err)
		}
		v, err := f.Pop()
		if err != nil {
			return Raise(err)
		}
		m.globals.Define(name, v)
	case vm.LOAD_LOCAL:
		name, err := f.Chunk.NameAt(op.Arg, op.Addr)
		if err != nil {
			return Raise(err)
		}
		v, err := f.Scope.Resolve(name, op.Addr)
		if err != nil {
			return Raise(err)
		}
		f.Push(v)
	case vm.STORE_LOCAL:
		name, err := f.Chunk.NameAt(op.Arg, op.Addr)
		if err != nil {
			return Raise(err)
		}
		v, err := f.Pop()
		if err != nil {
			return Raise(err)
		}
		if !f.Scope.Assign(name, v) {
			f.Scope.Define(name, v)
		}
	case vm.DEFINE:
		name, err := f.Chunk.NameAt(op.Arg, op.Addr)
		if err != nil {
			return Raise(err)
		}
		v, err := f.Pop()
		if err != nil {
			return Raise(err)
		}
		f.Scope.Define(name, v)
	case vm.NEW_SCOPE:
		f.Scope = NewScope(f.Scope)
	case vm.POP_SCOPE:
		if f.Scope.Parent() == nil {
			return Raise(vm.InternalError(op.Addr, "POP_SCOPE on the root scope"))
		}
		f.Scope = f.Scope.Parent()

	default:
		return Raise(vm.InternalError(op.Addr, "unhandled opcode %s", op.Code))
	}
	return Normal()
}

func (m *VM) jump(f *Frame, op vm.Op) Flow {
	if op.Arg < 0 || op.Arg > len(f.Chunk.Ops) {
		return Raise(vm.InternalError(op.Addr, "jump target %d outside chunk %q", op.Arg, f.Chunk.Name))
	}
	f.PC = op.Arg
	return Normal()
}

// loop runs the body until it breaks. The post chunk runs after every
// iteration, including one cut short by continue. Each iteration starts from
// the scope and stack height the loop was entered with.
func (m *VM) loop(f *Frame, op vm.Op) Flow {
	if op.Body == nil {
		return Raise(vm.InternalError(op.Addr, "LOOP without a body"))
	}
	scope := f.Scope
	base := len(f.Stack)
	defer func() {
		f.Scope = scope
	}()

	iterations := 0
	for {
		fl := m.execChunk(f, op.Body)
		f.Scope = scope
		switch fl.Kind {
		case FlowBreak:
			f.truncate(base)
			log.Trace().Int("iterations", iterations).Msg("  LOOP: break")
			return Normal()
		case FlowReturn, FlowError:
			return fl
		}
		f.truncate(base)
		iterations++
		if op.Post != nil {
			if fl := m.execChunk(f, op.Post); fl.Kind != FlowNormal {
				if fl.Kind == FlowError {
					return fl
				}
				return Raise(vm.InternalError(op.Addr, "loop step ended with %s", fl.Kind))
			}
			f.Scope = scope
		}
	}
}
