package interp

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/viper-lang/viper/heap"
	"github.com/viper-lang/viper/vm"
)

// NativeFunc implements a native. It must pop exactly its declared arity,
// most recently pushed first, and push one result only when shouldPush is
// set.
type NativeFunc func(m *VM, addr vm.Address, shouldPush bool, scope *Scope) Flow

type native struct {
	name  string
	arity int
	fn    NativeFunc
	addr  vm.Address
}

// Provide registers fn under its qualified name ("ns@fn"). addr is where the
// library was provided from and is used to report a clashing name.
func Provide(m *VM, addr vm.Address, arity int, name string, fn NativeFunc) error {
	if _, ok := m.natives[name]; ok {
		return vm.Errorf(vm.Native, addr, "native %s is already provided", name).
			WithHint("give the native a different name.")
	}
	if arity < 0 {
		return vm.InternalError(addr, "native %s declares negative arity %d", name, arity)
	}
	m.natives[name] = &native{name: name, arity: arity, fn: fn, addr: addr}
	log.Trace().Str("native", name).Int("arity", arity).Msg("provide")
	return nil
}

// HasNative reports whether name has been provided.
func (m *VM) HasNative(name string) bool {
	_, ok := m.natives[name]
	return ok
}

func (m *VM) callNative(f *Frame, op vm.Op) Flow {
	name, err := f.Chunk.NameAt(op.Arg, op.Addr)
	if err != nil {
		return Raise(err)
	}
	n, ok := m.natives[name]
	if !ok {
		return Raise(vm.Errorf(vm.UndefinedVariable, op.Addr, "native %s is not defined", name))
	}
	if op.Argc != n.arity {
		return Raise(vm.Errorf(vm.ArityMismatch, op.Addr, "%s takes %d arguments, %d given", name, n.arity, op.Argc).
			WithHint(fmt.Sprintf("call %s with %d arguments.", name, n.arity)))
	}
	before := len(f.Stack)
	if before < n.arity {
		return Raise(vm.Errorf(vm.ArityMismatch, op.Addr, "%s takes %d arguments, %d on the stack", name, n.arity, before))
	}

	// Arguments stay rooted for the whole call even once the native has
	// popped them.
	pinBase := len(m.pins)
	m.pins = append(m.pins, f.Stack[before-n.arity:]...)
	m.inNative++
	defer func() {
		m.inNative--
		clear(m.pins[pinBase:])
		m.pins = m.pins[:pinBase]
	}()

	log.Trace().Stringer("native", n).Bool("push", op.Push).Msg("  CALL_NATIVE")
	fl := n.fn(m, op.Addr, op.Push, f.Scope)
	if fl.Kind != FlowNormal {
		return fl
	}

	want := before - n.arity
	if op.Push {
		want++
	}
	if got := len(f.Stack); got != want {
		return Raise(vm.InternalError(op.Addr, "native %s left %d values on the stack, expected %d", name, got, want))
	}
	return Normal()
}

// ExpectString converts v or reports a TypeMismatch at addr.
func ExpectString(addr vm.Address, v vm.Value) (string, error) {
	s, ok := v.(vm.StrValue)
	if !ok {
		return "", vm.TypeMismatchError(addr, "string", v)
	}
	return string(s), nil
}

func ExpectInt(addr vm.Address, v vm.Value) (int64, error) {
	i, ok := v.(vm.IntValue)
	if !ok {
		return 0, vm.TypeMismatchError(addr, "int", v)
	}
	return int64(i), nil
}

func ExpectAny(addr vm.Address, v vm.Value) (vm.AnyValue, error) {
	a, ok := v.(vm.AnyValue)
	if !ok {
		return vm.AnyValue{}, vm.TypeMismatchError(addr, "any", v)
	}
	return a, nil
}

// Object resolves v to the heap object behind it. A wrong tag or Go type is
// an internal-consistency error, not a user error.
func Object[T any](m *VM, addr vm.Address, v vm.Value, tag heap.TypeTag) (T, error) {
	var zero T
	a, err := ExpectAny(addr, v)
	if err != nil {
		return zero, err
	}
	obj, err := heap.Downcast[T](m.heap, a.Handle, tag)
	if err != nil {
		return zero, vm.InternalError(addr, "%s handle: %v", tag, err)
	}
	return obj, nil
}

// PopString pops the top operand as a string.
func (m *VM) PopString(addr vm.Address) (string, error) {
	v, err := m.Pop()
	if err != nil {
		return "", err
	}
	return ExpectString(addr, v)
}

func (m *VM) PopInt(addr vm.Address) (int64, error) {
	v, err := m.Pop()
	if err != nil {
		return 0, err
	}
	return ExpectInt(addr, v)
}

// PushIf pushes v when shouldPush is set. Natives use it as their last step.
func (m *VM) PushIf(shouldPush bool, v vm.Value) Flow {
	if !shouldPush {
		return Normal()
	}
	if err := m.Push(v); err != nil {
		return Raise(err)
	}
	return Normal()
}

func (n *native) String() string {
	return fmt.Sprintf("%s/%d", n.name, n.arity)
}
