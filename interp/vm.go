package interp

import (
	"github.com/rs/zerolog/log"
	"github.com/viper-lang/viper/heap"
	"github.com/viper-lang/viper/vm"
)

const DefaultMaxCallDepth = 1 << 16

type Settings struct {
	GC           heap.Settings
	MaxCallDepth int
}

func DefaultSettings() Settings {
	return Settings{
		GC:           heap.DefaultSettings(),
		MaxCallDepth: DefaultMaxCallDepth,
	}
}

// VM executes chunks. A VM owns its heap, global table, call stack and native
// registry; nothing is shared between instances, and a VM must only be used
// from one goroutine.
type VM struct {
	settings Settings
	heap     *heap.Heap
	globals  *Scope
	frames   Frames
	pins     []vm.Value
	inNative int
	natives  map[string]*native
	state    State
}

func New(s Settings) *VM {
	if s.MaxCallDepth <= 0 {
		s.MaxCallDepth = DefaultMaxCallDepth
	}
	return &VM{
		settings: s,
		heap:     heap.New(s.GC),
		globals:  NewScope(nil),
		natives:  make(map[string]*native),
	}
}

func (m *VM) Globals() *Scope {
	return m.globals
}

func (m *VM) Heap() *heap.Heap {
	return m.heap
}

func (m *VM) State() State {
	return m.state
}

// Depth is the current call-stack depth.
func (m *VM) Depth() int {
	return len(m.frames)
}

// Roots marks every handle the running program can still reach: operand
// stacks, scope chains of live frames, the global table and values pinned by
// in-flight native calls.
func (m *VM) Roots(mark func(heap.Handle)) {
	seen := make(map[*Scope]bool)
	for _, f := range m.frames {
		for _, v := range f.Stack {
			markValue(v, mark)
		}
		if f.Scope != nil {
			f.Scope.trace(mark, seen)
		}
	}
	m.globals.trace(mark, seen)
	for _, v := range m.pins {
		markValue(v, mark)
	}
}

// Alloc stores obj on the heap. The allocation is a collection checkpoint:
// anything obj references must already be rooted.
func (m *VM) Alloc(tag heap.TypeTag, obj any) vm.AnyValue {
	m.heap.MaybeCollect(m)
	return vm.AnyValue{Handle: m.heap.Alloc(tag, obj)}
}

// Collect forces a collection pass.
func (m *VM) Collect() heap.Stats {
	return m.heap.Collect(m)
}

// Cleanup frees every heap object and drops the call stack. It may be called
// more than once.
func (m *VM) Cleanup() {
	if m.state == Halted {
		return
	}
	freed := m.heap.Release()
	m.frames = nil
	m.pins = nil
	m.state = Halted
	log.Debug().Int("freed", freed).Msg("vm cleanup")
}

func (m *VM) current() (*Frame, error) {
	f := m.frames.Current()
	if f == nil {
		return nil, vm.InternalError(vm.Unknown(), "no active frame")
	}
	return f, nil
}

// Pop removes the top operand of the current frame.
func (m *VM) Pop() (vm.Value, error) {
	f, err := m.current()
	if err != nil {
		return nil, err
	}
	return f.Pop()
}

// Push pushes v onto the current frame's operand stack.
func (m *VM) Push(v vm.Value) error {
	f, err := m.current()
	if err != nil {
		return err
	}
	f.Push(v)
	return nil
}

// Keep pins v as a root until the native call in progress returns. Only
// natives may call it.
func (m *VM) Keep(v vm.Value) error {
	if m.inNative == 0 {
		return vm.InternalError(vm.Unknown(), "Keep called outside a native call")
	}
	m.pins = append(m.pins, v)
	return nil
}
