package natives

import (
	"fmt"
	"io"

	"github.com/viper-lang/viper/interp"
	"github.com/viper-lang/viper/vm"
)

// ProvideIO registers io@print and io@println, both writing to w.
func ProvideIO(m *interp.VM, addr vm.Address, w io.Writer) error {
	return provideEach(m, addr, []entry{
		{"io@print", 1, printer(w, "")},
		{"io@println", 1, printer(w, "\n")},
	})
}

func printer(w io.Writer, suffix string) interp.NativeFunc {
	return func(m *interp.VM, addr vm.Address, push bool, _ *interp.Scope) interp.Flow {
		v, err := m.Pop()
		if err != nil {
			return interp.Raise(err)
		}
		if _, err := fmt.Fprint(w, v.String(), suffix); err != nil {
			return interp.Raise(vm.Errorf(vm.Native, addr, "write failed: %v", err))
		}
		return m.PushIf(push, vm.None)
	}
}
