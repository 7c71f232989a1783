package natives

import (
	"github.com/viper-lang/viper/interp"
	"github.com/viper-lang/viper/vm"
)

// ProvideGC registers gc@collect, which forces a pass and yields the number
// of objects it freed, and gc@live, which yields the live object count.
func ProvideGC(m *interp.VM, addr vm.Address) error {
	return provideEach(m, addr, []entry{
		{"gc@collect", 0, func(m *interp.VM, addr vm.Address, push bool, _ *interp.Scope) interp.Flow {
			st := m.Collect()
			return m.PushIf(push, vm.IntValue(st.Collected))
		}},
		{"gc@live", 0, func(m *interp.VM, addr vm.Address, push bool, _ *interp.Scope) interp.Flow {
			return m.PushIf(push, vm.IntValue(m.Heap().Live()))
		}},
	})
}
