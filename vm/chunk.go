package vm

import (
	"fmt"
	"io"
	"strings"
)

type Op struct {
	Code Opcode
	Arg  int
	Argc int // CALL_NATIVE: arguments pushed by the call site
	Push bool
	Body *Chunk // LOOP body
	Post *Chunk // LOOP post-iteration step, may be nil
	Addr Address
}

func (o Op) String() string {
	switch {
	case o.Code == CALL_NATIVE && !o.Push:
		return fmt.Sprintf("%s %d argc=%d nopush", o.Code, o.Arg, o.Argc)
	case o.Code == CALL_NATIVE:
		return fmt.Sprintf("%s %d argc=%d", o.Code, o.Arg, o.Argc)
	case o.Code == LOOP, o.Code.takesNoArg():
		return o.Code.String()
	}
	return fmt.Sprintf("%s %d", o.Code, o.Arg)
}

func (o Opcode) takesNoArg() bool {
	switch o {
	case NOP, POP, DUP, SWAP, ADD, SUBTRACT, MULTIPLY, DIVIDE, MODULO, FLOOR_DIVIDE,
		POWER, NEGATE, EQ, NEQ, LT, LTE, GT, GTE, NOT, BREAK, CONTINUE, RETURN, RAISE,
		NEW_SCOPE, POP_SCOPE:
		return true
	}
	return false
}

type Function struct {
	Name   string
	Params []string
	Body   *Chunk
}

// Chunk is a compiled unit: an opcode sequence, its constant pool and the
// functions it defines. A chunk is never mutated once the compiler hands it
// over.
type Chunk struct {
	Name      string
	Ops       []Op
	Constants []Value
	Functions []*Function
}

func NewChunk(name string) *Chunk {
	return &Chunk{Name: name}
}

// AddConstant returns the pool index of v, appending it if no equal constant
// of the same kind exists yet.
func (c *Chunk) AddConstant(v Value) int {
	for i, k := range c.Constants {
		if k == v {
			return i
		}
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

func (c *Chunk) Constant(i int, addr Address) (Value, error) {
	if i < 0 || i >= len(c.Constants) {
		return nil, Errorf(OutOfRangeConstant, addr, "constant %d out of range in chunk %q (%d constants)", i, c.Name, len(c.Constants))
	}
	return c.Constants[i], nil
}

// NameAt resolves a constant that must be a string, as used by the variable
// and native opcodes.
func (c *Chunk) NameAt(i int, addr Address) (string, error) {
	v, err := c.Constant(i, addr)
	if err != nil {
		return "", err
	}
	s, ok := v.(StrValue)
	if !ok {
		return "", InternalError(addr, "constant %d is a %s, expected a name", i, v.Kind())
	}
	return string(s), nil
}

func (c *Chunk) Function(i int, addr Address) (*Function, error) {
	if i < 0 || i >= len(c.Functions) {
		return nil, InternalError(addr, "function %d out of range in chunk %q", i, c.Name)
	}
	return c.Functions[i], nil
}

func (c *Chunk) Dump(w io.Writer, indent int) {
	pad := strings.Repeat("  ", indent)
	fmt.Fprintf(w, "%s== %s ==\n", pad, c.Name)
	if len(c.Constants) > 0 {
		fmt.Fprintf(w, "%sconstants:\n", pad)
		for i, k := range c.Constants {
			fmt.Fprintf(w, "%s  [%d] %s %q\n", pad, i, k.Kind(), k.String())
		}
	}
	for i, op := range c.Ops {
		fmt.Fprintf(w, "%s%03d: %s", pad, i, op)
		if op.Code.HasConstantArg() && op.Arg >= 0 && op.Arg < len(c.Constants) {
			fmt.Fprintf(w, " (%s)", c.Constants[op.Arg])
		}
		if op.Code == MAKE_FN && op.Arg >= 0 && op.Arg < len(c.Functions) {
			fmt.Fprintf(w, " (%s)", c.Functions[op.Arg].Name)
		}
		fmt.Fprintln(w)
		if op.Code == LOOP {
			if op.Body != nil {
				op.Body.Dump(w, indent+1)
			}
			if op.Post != nil {
				op.Post.Dump(w, indent+1)
			}
		}
	}
	for _, f := range c.Functions {
		fmt.Fprintf(w, "%sfn %s(%s):\n", pad, f.Name, strings.Join(f.Params, ", "))
		f.Body.Dump(w, indent+1)
	}
}
