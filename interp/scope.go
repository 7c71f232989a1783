package interp

import (
	"github.com/viper-lang/viper/heap"
	"github.com/viper-lang/viper/vm"
)

// Scope is one table of a lexical scope chain. The chain always ends at the
// VM's global table.
type Scope struct {
	parent *Scope
	vars   map[string]vm.Value
}

func NewScope(parent *Scope) *Scope {
	return &Scope{
		parent: parent,
		vars:   make(map[string]vm.Value),
	}
}

func (s *Scope) Parent() *Scope {
	return s.parent
}

// Depth is the number of tables between s and the root, which has depth 0.
func (s *Scope) Depth() int {
	d := 0
	for p := s.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Lookup walks outward from s until name is found.
func (s *Scope) Lookup(name string) (vm.Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Resolve is Lookup reporting UndefinedVariable at addr.
func (s *Scope) Resolve(name string, addr vm.Address) (vm.Value, error) {
	v, ok := s.Lookup(name)
	if !ok {
		return nil, vm.Errorf(vm.UndefinedVariable, addr, "%s is not defined", name)
	}
	return v, nil
}

// Define binds name in s itself, shadowing any outer binding.
func (s *Scope) Define(name string, v vm.Value) {
	s.vars[name] = v
}

// Assign rebinds the nearest existing binding of name. It reports false if
// there is none.
func (s *Scope) Assign(name string, v vm.Value) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = v
			return true
		}
	}
	return false
}

// Has reports whether name is bound in s itself.
func (s *Scope) Has(name string) bool {
	_, ok := s.vars[name]
	return ok
}

func (s *Scope) Len() int {
	return len(s.vars)
}

// Each calls fn for every binding in s itself. The collector uses it to mark
// scope tables.
func (s *Scope) Each(fn func(name string, v vm.Value)) {
	for k, v := range s.vars {
		fn(k, v)
	}
}

// trace marks every handle held by s and its ancestors. seen stops the walk
// at tables already visited during this pass.
func (s *Scope) trace(mark func(heap.Handle), seen map[*Scope]bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if seen != nil {
			if seen[cur] {
				return
			}
			seen[cur] = true
		}
		cur.Each(func(_ string, v vm.Value) {
			markValue(v, mark)
		})
	}
}

func markValue(v vm.Value, mark func(heap.Handle)) {
	if a, ok := v.(vm.AnyValue); ok {
		mark(a.Handle)
	}
}
