package vm

import (
	"strconv"

	"github.com/viper-lang/viper/heap"
)

type Kind int

const (
	KindNone Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindAny:
		return "any"
	}
	return "unknown"
}

// Value is a runtime value. Primitives are copied by value; AnyValue is a
// handle into the VM heap and is never deep copied.
type Value interface {
	isValue()
	Kind() Kind
	AsBool() bool
	String() string
}

type BoolValue bool

func (BoolValue) isValue()   {}
func (BoolValue) Kind() Kind { return KindBool }

var (
	BoolTrue  = BoolValue(true)
	BoolFalse = BoolValue(false)
)

func (b BoolValue) AsBool() bool {
	return bool(b)
}

func (b BoolValue) String() string {
	if b {
		return "true"
	}
	return "false"
}

type StrValue string

func (StrValue) isValue()   {}
func (StrValue) Kind() Kind { return KindString }
func (s StrValue) AsBool() bool {
	return s != ""
}

func (s StrValue) String() string {
	return string(s)
}

type IntValue int64

func (IntValue) isValue()   {}
func (IntValue) Kind() Kind { return KindInt }
func (i IntValue) AsBool() bool {
	return i != 0
}

func (i IntValue) String() string {
	return strconv.FormatInt(int64(i), 10)
}

type FloatValue float64

func (FloatValue) isValue()   {}
func (FloatValue) Kind() Kind { return KindFloat }
func (f FloatValue) AsBool() bool {
	return f != 0
}

func (f FloatValue) String() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

type NoneValue struct{}

func (NoneValue) isValue()     {}
func (NoneValue) Kind() Kind   { return KindNone }
func (NoneValue) AsBool() bool { return false }
func (NoneValue) String() string {
	return "none"
}

var None = NoneValue{}

// AnyValue is an opaque handle to a natively typed heap object.
type AnyValue struct {
	Handle heap.Handle
}

func (AnyValue) isValue()     {}
func (AnyValue) Kind() Kind   { return KindAny }
func (AnyValue) AsBool() bool { return true }
func (a AnyValue) String() string {
	return "<any " + a.Handle.String() + ">"
}

// Equal compares two values. Ints and floats compare numerically; handles
// compare by identity.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case IntValue:
		switch bv := b.(type) {
		case IntValue:
			return av == bv
		case FloatValue:
			return FloatValue(av) == bv
		}
	case FloatValue:
		switch bv := b.(type) {
		case IntValue:
			return av == FloatValue(bv)
		case FloatValue:
			return av == bv
		}
	}
	return a == b
}
