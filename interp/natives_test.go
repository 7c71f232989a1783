package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viper-lang/viper/heap"
	"github.com/viper-lang/viper/vm"
)

const tagBox heap.TypeTag = "test.box"

func provideBox(t *testing.T, m *VM) {
	t.Helper()
	at := vm.Address{File: "natives_test.go"}
	require.NoError(t, Provide(m, at, 1, "t@make", func(m *VM, addr vm.Address, push bool, _ *Scope) Flow {
		n, err := m.PopInt(addr)
		if err != nil {
			return Raise(err)
		}
		return m.PushIf(push, m.Alloc(tagBox, &box{n: int(n)}))
	}))
	require.NoError(t, Provide(m, at, 1, "t@read", func(m *VM, addr vm.Address, push bool, _ *Scope) Flow {
		v, err := m.Pop()
		if err != nil {
			return Raise(err)
		}
		b, err := Object[*box](m, addr, v, tagBox)
		if err != nil {
			return Raise(err)
		}
		return m.PushIf(push, vm.IntValue(b.n))
	}))
}

func TestNativeCall(t *testing.T) {
	m := New(DefaultSettings())
	provideBox(t, m)
	assert.True(t, m.HasNative("t@make"))
	assert.False(t, m.HasNative("t@missing"))

	fl := runSource(t, m, "b = t.make(41)\nn = t.read(b) + 1\n")
	require.Equal(t, FlowNormal, fl.Kind, "%v", fl.Err)
	assert.Equal(t, vm.IntValue(42), global(t, m, "n"))
	assert.Equal(t, 1, m.Heap().Live())

	m.Globals().Define("b", vm.None)
	m.Collect()
	assert.Equal(t, 0, m.Heap().Live())
}

func TestNativeStatementDoesNotPush(t *testing.T) {
	m := New(DefaultSettings())
	calls := 0
	require.NoError(t, Provide(m, vm.Unknown(), 1, "t@log", func(m *VM, addr vm.Address, push bool, _ *Scope) Flow {
		calls++
		if _, err := m.Pop(); err != nil {
			return Raise(err)
		}
		assert.False(t, push)
		return m.PushIf(push, vm.BoolTrue)
	}))
	fl := runSource(t, m, "t.log(\"a\")\nt.log(\"b\")\n")
	require.Equal(t, FlowNormal, fl.Kind, "%v", fl.Err)
	assert.Equal(t, 2, calls)
}

func TestProvideDuplicate(t *testing.T) {
	m := New(DefaultSettings())
	noop := func(m *VM, addr vm.Address, push bool, _ *Scope) Flow { return m.PushIf(push, vm.None) }
	require.NoError(t, Provide(m, vm.Unknown(), 0, "t@noop", noop))
	err := Provide(m, vm.Address{File: "lib.vp", Line: 3}, 0, "t@noop", noop)
	require.ErrorIs(t, err, vm.ErrNative)
	assert.Contains(t, err.Error(), "t@noop")
}

func TestUnknownNative(t *testing.T) {
	fl := runSource(t, New(DefaultSettings()), "x = t.nothing()\n")
	verr := requireKind(t, fl, vm.ErrUndefinedVariable)
	assert.Contains(t, verr.Text, "t@nothing")
}

func TestNativeArityShortStack(t *testing.T) {
	m := New(DefaultSettings())
	provideBox(t, m)
	c := newBuilder("short").native("t@make", 1, true).c
	fl := m.Run(c, nil)
	requireKind(t, fl, vm.ErrArityMismatch)
}

func TestNativeStackContract(t *testing.T) {
	m := New(DefaultSettings())
	require.NoError(t, Provide(m, vm.Unknown(), 1, "t@greedy", func(m *VM, addr vm.Address, push bool, _ *Scope) Flow {
		// leaves its argument behind and pushes a result on top
		return m.PushIf(push, vm.IntValue(1))
	}))
	fl := runSource(t, m, "x = t.greedy(1)\n")
	verr := requireKind(t, fl, vm.ErrInternal)
	assert.Contains(t, verr.Text, "t@greedy")
}

func TestNativeArgumentsStayPinned(t *testing.T) {
	m := New(DefaultSettings())
	provideBox(t, m)
	var during int
	require.NoError(t, Provide(m, vm.Unknown(), 1, "t@inspect", func(m *VM, addr vm.Address, push bool, _ *Scope) Flow {
		v, err := m.Pop()
		if err != nil {
			return Raise(err)
		}
		m.Collect()
		during = m.Heap().Live()
		b, err := Object[*box](m, addr, v, tagBox)
		if err != nil {
			return Raise(err)
		}
		return m.PushIf(push, vm.IntValue(b.n))
	}))

	fl := runSource(t, m, "n = t.inspect(t.make(9))\n")
	require.Equal(t, FlowNormal, fl.Kind, "%v", fl.Err)
	assert.Equal(t, 1, during)
	assert.Equal(t, vm.IntValue(9), global(t, m, "n"))

	m.Collect()
	assert.Equal(t, 0, m.Heap().Live())
}

func TestKeepRootsUntilReturn(t *testing.T) {
	m := New(DefaultSettings())
	var during int
	require.NoError(t, Provide(m, vm.Unknown(), 0, "t@scratch", func(m *VM, addr vm.Address, push bool, _ *Scope) Flow {
		tmp := m.Alloc(tagBox, &box{n: 1})
		if err := m.Keep(tmp); err != nil {
			return Raise(err)
		}
		m.Collect()
		during = m.Heap().Live()
		return m.PushIf(push, vm.None)
	}))
	fl := runSource(t, m, "t.scratch()\n")
	require.Equal(t, FlowNormal, fl.Kind, "%v", fl.Err)
	assert.Equal(t, 1, during)

	m.Collect()
	assert.Equal(t, 0, m.Heap().Live())
}

func TestKeepOutsideNativeCall(t *testing.T) {
	m := New(DefaultSettings())
	err := m.Keep(vm.IntValue(1))
	require.ErrorIs(t, err, vm.ErrInternal)

	m.Collect()
	assert.Equal(t, 0, m.Heap().Live())
}

func TestNativeArityAtCallSite(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"too many", "x = t.echo(\"a\", \"b\")\n"},
		{"too many as statement", "t.echo(\"a\", \"b\")\n"},
		{"too few inside expression", "x = \"left\" + t.echo()\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(DefaultSettings())
			calls := 0
			require.NoError(t, Provide(m, vm.Unknown(), 1, "t@echo", func(m *VM, addr vm.Address, push bool, _ *Scope) Flow {
				calls++
				v, err := m.Pop()
				if err != nil {
					return Raise(err)
				}
				return m.PushIf(push, v)
			}))
			fl := runSource(t, m, tt.code)
			verr := requireKind(t, fl, vm.ErrArityMismatch)
			assert.Contains(t, verr.Text, "t@echo takes 1 arguments")
			assert.Equal(t, 1, verr.Addr.Line)
			assert.Zero(t, calls)
		})
	}
}

func TestNativeArityFromBundle(t *testing.T) {
	m := New(DefaultSettings())
	provideBox(t, m)
	c := newBuilder("wide").push(vm.IntValue(1)).push(vm.IntValue(2)).native("t@make", 2, true).c
	requireKind(t, m.Run(c, nil), vm.ErrArityMismatch)
	assert.Equal(t, 0, m.Heap().Live())
}

func TestObjectTagMismatch(t *testing.T) {
	m := New(DefaultSettings())
	provideBox(t, m)
	fl := runSource(t, m, "def f():\n    pass\nx = t.read(f)\n")
	requireKind(t, fl, vm.ErrInternal)

	fl = runSource(t, m, "x = t.read(3)\n")
	requireKind(t, fl, vm.ErrTypeMismatch)
}

func TestNativeErrorPropagates(t *testing.T) {
	m := New(DefaultSettings())
	provideBox(t, m)
	fl := runSource(t, m, "def f():\n    return t.make(\"x\")\nf()\n")
	verr := requireKind(t, fl, vm.ErrTypeMismatch)
	assert.Equal(t, 2, verr.Addr.Line)
	assert.Equal(t, 0, m.Depth())
}
