package interp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/viper-lang/viper/vm"
)

func (f *Frame) Pop() (vm.Value, error) {
	if len(f.Stack) == 0 {
		return nil, vm.InternalError(f.Addr, "operand stack underflow in %s", f.Name)
	}
	v := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return v, nil
}

// pop2 pops the right operand, then the left one.
func (f *Frame) pop2() (vm.Value, vm.Value, error) {
	b, err := f.Pop()
	if err != nil {
		return nil, nil, err
	}
	a, err := f.Pop()
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (f *Frame) Push(v vm.Value) {
	f.Stack = append(f.Stack, v)
}

// truncate drops operands above height n.
func (f *Frame) truncate(n int) {
	if len(f.Stack) > n {
		f.Stack = f.Stack[:n]
	}
}

func (f *Frame) Peek() (vm.Value, error) {
	if len(f.Stack) == 0 {
		return nil, vm.InternalError(f.Addr, "operand stack underflow in %s", f.Name)
	}
	return f.Stack[len(f.Stack)-1], nil
}

// FormatValue formats a value for display; strings are quoted.
func FormatValue(v vm.Value) string {
	switch val := v.(type) {
	case vm.StrValue:
		return fmt.Sprintf("%q", string(val))
	case vm.NoneValue:
		return "None"
	case nil:
		return "<nil>"
	default:
		return val.String()
	}
}

// PrettyPrint lists the variables bound in s itself, sorted by name.
func (s *Scope) PrettyPrint() string {
	keys := make([]string, 0, len(s.vars))
	for k := range s.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	if len(keys) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s = %s\n", k, FormatValue(s.vars[k]))
	}
	return b.String()
}
