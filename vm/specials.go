package vm

import (
	"slices"

	"go.starlark.net/syntax"
)

// Special names are lowered straight to opcodes instead of being called.
type Special string

const (
	Fail  Special = "fail"
	Pow   Special = "pow"
	Range Special = "range"
)

var allSpecials = []Special{
	Fail,
	Pow,
	Range,
}

// NativeName is the qualified registry name of ns.fn.
func NativeName(ns, fn string) string {
	return ns + "@" + fn
}

func (cc *compileContext) specialCall(call *syntax.CallExpr, push bool) (bool, error) {
	fn, ok := call.Fn.(*syntax.Ident)
	if !ok {
		return false, nil
	}
	if !slices.Contains(allSpecials, Special(fn.Name)) {
		return false, nil
	}
	at := cc.addrOf(call)
	switch Special(fn.Name) {
	case Fail:
		if len(call.Args) != 1 {
			return true, cc.errorf(call, "%s takes exactly one message argument", fn.Name)
		}
		if err := cc.callArg(call.Args[0]); err != nil {
			return true, err
		}
		cc.emit(at, RAISE, 0)
	case Pow:
		if len(call.Args) != 2 {
			return true, cc.errorf(call, "%s takes exactly two arguments", fn.Name)
		}
		for _, a := range call.Args {
			if err := cc.callArg(a); err != nil {
				return true, err
			}
		}
		cc.emit(at, POWER, 0)
		if !push {
			cc.emit(at, POP, 0)
		}
	case Range:
		return true, cc.errorf(call, "%s can only be iterated by a for loop", fn.Name)
	default:
		return true, cc.errorf(call, "unhandled special: %s", fn.Name)
	}
	return true, nil
}
