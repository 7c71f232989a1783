// Package natives holds the native libraries a viper program can call through
// CALL_NATIVE. Each library registers its functions under a "namespace@name"
// key with interp.Provide.
package natives

import (
	"io"

	"github.com/viper-lang/viper/interp"
	"github.com/viper-lang/viper/vm"
)

// BuiltinFile is the file name reported for errors raised while providing
// the standard libraries.
const BuiltinFile = "<builtin>"

// Builtin is the address natives are provided from.
func Builtin() vm.Address {
	return vm.Address{File: BuiltinFile}
}

// ProvideAll registers every standard library. io natives write to w.
func ProvideAll(m *interp.VM, addr vm.Address, w io.Writer) error {
	if err := ProvideIO(m, addr, w); err != nil {
		return err
	}
	if err := ProvideGC(m, addr); err != nil {
		return err
	}
	return ProvideNet(m, addr, nil)
}

type entry struct {
	name  string
	arity int
	fn    interp.NativeFunc
}

func provideEach(m *interp.VM, addr vm.Address, entries []entry) error {
	for _, e := range entries {
		if err := interp.Provide(m, addr, e.arity, e.name, e.fn); err != nil {
			return err
		}
	}
	return nil
}
