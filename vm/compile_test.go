package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(ops []Op) []Opcode {
	var out []Opcode
	for _, op := range ops {
		out = append(out, op.Code)
	}
	return out
}

func TestCompileAssignment(t *testing.T) {
	c, err := CompileSource("assign.vp", "a = 1\n")
	require.NoError(t, err)
	assert.Equal(t, []Opcode{PUSH, STORE_GLOBAL}, codes(c.Ops))
	v, err := c.Constant(c.Ops[0].Arg, Unknown())
	require.NoError(t, err)
	assert.Equal(t, IntValue(1), v)
	name, err := c.NameAt(c.Ops[1].Arg, Unknown())
	require.NoError(t, err)
	assert.Equal(t, "a", name)
	assert.Equal(t, 1, c.Ops[0].Addr.Line)
}

func TestCompileWhile(t *testing.T) {
	src := "a = 1\nwhile a < 3:\n    a += 1\n"
	c, err := CompileSource("while.vp", src)
	require.NoError(t, err)
	require.Equal(t, []Opcode{PUSH, STORE_GLOBAL, LOOP}, codes(c.Ops))

	body := c.Ops[2].Body
	require.NotNil(t, body)
	assert.Nil(t, c.Ops[2].Post)
	assert.Equal(t, []Opcode{
		LOAD_GLOBAL, PUSH, LT, NOT, JFALSE, BREAK,
		LOAD_GLOBAL, PUSH, ADD, STORE_GLOBAL,
	}, codes(body.Ops))
	assert.Equal(t, 6, body.Ops[4].Arg)
}

func TestCompileForRange(t *testing.T) {
	src := "t = 0\nfor i in range(10, 0, -2):\n    t += i\n"
	c, err := CompileSource("for.vp", src)
	require.NoError(t, err)
	require.Equal(t, []Opcode{PUSH, STORE_GLOBAL, NEW_SCOPE, PUSH, PUSH, DEFINE, DEFINE, LOOP, POP_SCOPE}, codes(c.Ops))

	loop := c.Ops[7]
	require.NotNil(t, loop.Post)
	assert.Equal(t, GT, loop.Body.Ops[2].Code)
	// Loop variables go through the scope chain, globals do not.
	assert.Equal(t, []Opcode{LOAD_LOCAL, LOAD_LOCAL, GT, NOT, JFALSE, BREAK, LOAD_GLOBAL, LOAD_LOCAL, ADD, STORE_GLOBAL}, codes(loop.Body.Ops))
	assert.Equal(t, []Opcode{LOAD_LOCAL, PUSH, ADD, STORE_LOCAL}, codes(loop.Post.Ops))
	step, err := loop.Post.Constant(loop.Post.Ops[1].Arg, Unknown())
	require.NoError(t, err)
	assert.Equal(t, IntValue(-2), step)
}

func TestCompileFunction(t *testing.T) {
	src := `
def add(x, y):
    z = x + y
    return z

r = add(1, 2)
`
	c, err := CompileSource("fn.vp", src)
	require.NoError(t, err)
	require.Len(t, c.Functions, 1)
	fn := c.Functions[0]
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []string{"x", "y"}, fn.Params)
	assert.Equal(t, []Opcode{PUSH, DEFINE, LOAD_LOCAL, LOAD_LOCAL, ADD, STORE_LOCAL, LOAD_LOCAL, RETURN}, codes(fn.Body.Ops))
	assert.Equal(t, []Opcode{MAKE_FN, STORE_GLOBAL, PUSH, PUSH, LOAD_GLOBAL, CALL, STORE_GLOBAL}, codes(c.Ops))
	assert.Equal(t, 2, c.Ops[5].Arg)
}

func TestCompileNativeCall(t *testing.T) {
	c, err := CompileSource("native.vp", "io.println(\"hi\")\nx = gc.live()\n")
	require.NoError(t, err)
	require.Equal(t, []Opcode{PUSH, CALL_NATIVE, CALL_NATIVE, STORE_GLOBAL}, codes(c.Ops))
	assert.False(t, c.Ops[1].Push)
	assert.True(t, c.Ops[2].Push)
	assert.Equal(t, 1, c.Ops[1].Argc)
	assert.Equal(t, 0, c.Ops[2].Argc)
	assert.Equal(t, "CALL_NATIVE 2 argc=0", c.Ops[2].String())
	name, err := c.NameAt(c.Ops[1].Arg, Unknown())
	require.NoError(t, err)
	assert.Equal(t, "io@println", name)
}

func TestCompileSpecials(t *testing.T) {
	c, err := CompileSource("special.vp", "x = pow(2, 8)\nfail(\"boom\")\n")
	require.NoError(t, err)
	assert.Equal(t, []Opcode{PUSH, PUSH, POWER, STORE_GLOBAL, PUSH, RAISE}, codes(c.Ops))

	_, err = CompileSource("range.vp", "x = range(3)\n")
	require.ErrorIs(t, err, ErrCompile)
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		line int
	}{
		{"break outside loop", "x = 1\nbreak\n", 2},
		{"continue in def", "while True:\n    def f():\n        continue\n", 3},
		{"assign to True", "True = 1\n", 1},
		{"keyword args", "def f(a):\n    pass\nf(a=1)\n", 3},
		{"tuple assignment", "a, b = 1, 2\n", 1},
		{"syntax error", "x = 1\ny = = 2\n", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompileSource("bad.vp", tc.src)
			require.Error(t, err)
			var verr *Error
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, CompileError, verr.Kind)
			assert.Equal(t, tc.line, verr.Addr.Line)
			assert.Equal(t, "bad.vp", verr.Addr.File)
		})
	}
}

func TestAddConstantDedup(t *testing.T) {
	c := NewChunk("t")
	a := c.AddConstant(IntValue(1))
	b := c.AddConstant(IntValue(1))
	f := c.AddConstant(FloatValue(1))
	s := c.AddConstant(StrValue("1"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, f)
	assert.NotEqual(t, f, s)
	assert.Len(t, c.Constants, 3)
}

func TestConstantOutOfRange(t *testing.T) {
	c := NewChunk("t")
	c.AddConstant(IntValue(1))
	_, err := c.Constant(5, Address{File: "x.vp", Line: 3})
	require.ErrorIs(t, err, ErrOutOfRangeConstant)
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ReportHint, verr.Hint)
	assert.Equal(t, 3, verr.Addr.Line)

	_, err = c.Constant(-1, Unknown())
	assert.ErrorIs(t, err, ErrOutOfRangeConstant)
}

func TestDumpIndentsNestedChunks(t *testing.T) {
	src := "def f(n):\n    return n\nfor i in range(3):\n    f(i)\n"
	c, err := CompileSource("dump.vp", src)
	require.NoError(t, err)
	var buf bytes.Buffer
	c.Dump(&buf, 0)
	out := buf.String()
	assert.Contains(t, out, "== main ==")
	assert.Contains(t, out, "\n  == main.for ==")
	assert.Contains(t, out, "\n  == main.step ==")
	assert.Contains(t, out, "fn f(n):")
	assert.Contains(t, out, "\n  == f ==")
	assert.True(t, strings.Contains(out, "LOOP"))
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := TypeMismatchError(Address{File: "a.vp", Line: 1}, "int", StrValue("x"))
	assert.True(t, errors.Is(err, ErrTypeMismatch))
	assert.False(t, errors.Is(err, ErrArityMismatch))
	assert.Equal(t, "expected int, got string", err.Text)
	assert.Contains(t, err.Error(), "a.vp:1")
}
