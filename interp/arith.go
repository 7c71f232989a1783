package interp

import (
	"math"
	"strings"

	"github.com/viper-lang/viper/vm"
)

// MaxStringLen caps the length of a string built by repetition.
const MaxStringLen = 1 << 28

// arith applies a binary arithmetic opcode. Two ints stay int except for
// true division; any float operand promotes the result to float.
func arith(op vm.Opcode, a, b vm.Value, addr vm.Address) (vm.Value, error) {
	if as, ok := a.(vm.StrValue); ok {
		bs, ok := b.(vm.StrValue)
		switch {
		case op == vm.ADD && ok:
			return as + bs, nil
		case op == vm.MULTIPLY:
			if n, ok := b.(vm.IntValue); ok {
				return repeat(as, int64(n), addr)
			}
		}
		if op == vm.ADD {
			return nil, vm.TypeMismatchError(addr, "string", b)
		}
		return nil, vm.TypeMismatchError(addr, "int or float", a)
	}

	ai, aInt := a.(vm.IntValue)
	bi, bInt := b.(vm.IntValue)
	if aInt && bInt {
		return intOp(op, int64(ai), int64(bi), addr)
	}
	af, ok := toFloat(a)
	if !ok {
		return nil, vm.TypeMismatchError(addr, "int or float", a)
	}
	bf, ok := toFloat(b)
	if !ok {
		return nil, vm.TypeMismatchError(addr, "int or float", b)
	}
	return floatOp(op, af, bf, addr)
}

func repeat(s vm.StrValue, n int64, addr vm.Address) (vm.Value, error) {
	if n <= 0 || len(s) == 0 {
		return vm.StrValue(""), nil
	}
	if n > MaxStringLen/int64(len(s)) {
		return nil, vm.Errorf(vm.Overflow, addr, "repeating a string of length %d %d times exceeds %d bytes", len(s), n, MaxStringLen).
			WithHint("repeat the string fewer times.")
	}
	return vm.StrValue(strings.Repeat(string(s), int(n))), nil
}

func toFloat(v vm.Value) (float64, bool) {
	switch n := v.(type) {
	case vm.IntValue:
		return float64(n), true
	case vm.FloatValue:
		return float64(n), true
	}
	return 0, false
}

func zeroDivision(addr vm.Address, op vm.Opcode) error {
	return vm.Errorf(vm.ZeroDivision, addr, "%s by zero", strings.ToLower(op.String()))
}

func overflow(addr vm.Address, op vm.Opcode) error {
	return vm.Errorf(vm.Overflow, addr, "integer overflow in %s", strings.ToLower(op.String())).
		WithHint("the result does not fit in 64 bits, use a float.")
}

func addInt(a, b int64) (int64, bool) {
	c := a + b
	return c, (c > a) == (b > 0)
}

func subInt(a, b int64) (int64, bool) {
	c := a - b
	return c, (c < a) == (b > 0)
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return c, false
	}
	return c, c/b == a
}

func negInt(a int64) (int64, bool) {
	return -a, a != math.MinInt64
}

func intOp(op vm.Opcode, a, b int64, addr vm.Address) (vm.Value, error) {
	var (
		c  int64
		ok bool
	)
	switch op {
	case vm.ADD:
		c, ok = addInt(a, b)
	case vm.SUBTRACT:
		c, ok = subInt(a, b)
	case vm.MULTIPLY:
		c, ok = mulInt(a, b)
	case vm.DIVIDE:
		if b == 0 {
			return nil, zeroDivision(addr, op)
		}
		return vm.FloatValue(float64(a) / float64(b)), nil
	case vm.FLOOR_DIVIDE:
		if b == 0 {
			return nil, zeroDivision(addr, op)
		}
		if a == math.MinInt64 && b == -1 {
			return nil, overflow(addr, op)
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return vm.IntValue(q), nil
	case vm.MODULO:
		if b == 0 {
			return nil, zeroDivision(addr, op)
		}
		r := a % b
		if r != 0 && ((r < 0) != (b < 0)) {
			r += b
		}
		return vm.IntValue(r), nil
	case vm.POWER:
		if b < 0 {
			return vm.FloatValue(math.Pow(float64(a), float64(b))), nil
		}
		c, ok = powInt(a, b)
	default:
		return nil, vm.InternalError(addr, "%s is not an arithmetic opcode", op)
	}
	if !ok {
		return nil, overflow(addr, op)
	}
	return vm.IntValue(c), nil
}

// powInt raises a to a non-negative power by squaring.
func powInt(a, b int64) (int64, bool) {
	result := int64(1)
	base := a
	for b > 0 {
		var ok bool
		if b&1 == 1 {
			if result, ok = mulInt(result, base); !ok {
				return 0, false
			}
		}
		b >>= 1
		if b == 0 {
			break
		}
		if base, ok = mulInt(base, base); !ok {
			return 0, false
		}
	}
	return result, true
}

func floatOp(op vm.Opcode, a, b float64, addr vm.Address) (vm.Value, error) {
	switch op {
	case vm.ADD:
		return vm.FloatValue(a + b), nil
	case vm.SUBTRACT:
		return vm.FloatValue(a - b), nil
	case vm.MULTIPLY:
		return vm.FloatValue(a * b), nil
	case vm.DIVIDE:
		if b == 0 {
			return nil, zeroDivision(addr, op)
		}
		return vm.FloatValue(a / b), nil
	case vm.FLOOR_DIVIDE:
		if b == 0 {
			return nil, zeroDivision(addr, op)
		}
		return vm.FloatValue(math.Floor(a / b)), nil
	case vm.MODULO:
		if b == 0 {
			return nil, zeroDivision(addr, op)
		}
		r := math.Mod(a, b)
		if r != 0 && ((r < 0) != (b < 0)) {
			r += b
		}
		return vm.FloatValue(r), nil
	case vm.POWER:
		return vm.FloatValue(math.Pow(a, b)), nil
	}
	return nil, vm.InternalError(addr, "%s is not an arithmetic opcode", op)
}

// compare orders two numbers or two strings.
func compare(op vm.Opcode, a, b vm.Value, addr vm.Address) (vm.Value, error) {
	var c int
	if as, ok := a.(vm.StrValue); ok {
		bs, ok := b.(vm.StrValue)
		if !ok {
			return nil, vm.TypeMismatchError(addr, "string", b)
		}
		c = strings.Compare(string(as), string(bs))
	} else {
		af, ok := toFloat(a)
		if !ok {
			return nil, vm.TypeMismatchError(addr, "int or float", a)
		}
		bf, ok := toFloat(b)
		if !ok {
			return nil, vm.TypeMismatchError(addr, "int or float", b)
		}
		ai, aInt := a.(vm.IntValue)
		bi, bInt := b.(vm.IntValue)
		switch {
		case aInt && bInt:
			c = cmpInt(int64(ai), int64(bi))
		case af < bf:
			c = -1
		case af > bf:
			c = 1
		}
	}
	switch op {
	case vm.LT:
		return vm.BoolValue(c < 0), nil
	case vm.LTE:
		return vm.BoolValue(c <= 0), nil
	case vm.GT:
		return vm.BoolValue(c > 0), nil
	case vm.GTE:
		return vm.BoolValue(c >= 0), nil
	}
	return nil, vm.InternalError(addr, "%s is not a comparison opcode", op)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
