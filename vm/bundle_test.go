package vm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bundleSrc = `
def fib(n):
    if n < 2:
        return n
    return fib(n - 1) + fib(n - 2)

total = 0.5
for i in range(5):
    total += fib(i)
io.println("done")
`

func TestBundleRoundTrip(t *testing.T) {
	c, err := CompileSource("fib.vp", bundleSrc)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Serialize(&buf))

	out := &Chunk{}
	require.NoError(t, out.Deserialize(bytes.NewReader(buf.Bytes())))

	var want, got bytes.Buffer
	c.Dump(&want, 0)
	out.Dump(&got, 0)
	assert.Equal(t, want.String(), got.String())
	assert.Equal(t, c.Ops[len(c.Ops)-1].Addr, out.Ops[len(out.Ops)-1].Addr)

	fa, err := c.Fingerprint()
	require.NoError(t, err)
	fb, err := out.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}

func TestBundleRejectsCorruption(t *testing.T) {
	c, err := CompileSource("small.vp", "a = 1\n")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, c.Serialize(&buf))

	data := buf.Bytes()
	data[len(data)-1] ^= 0xff
	err = (&Chunk{}).Deserialize(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrBadBundle)

	err = (&Chunk{}).Deserialize(bytes.NewReader([]byte("not a bundle")))
	require.ErrorIs(t, err, ErrBadBundle)
}

func TestBundleRejectsHandles(t *testing.T) {
	c := NewChunk("bad")
	c.Constants = append(c.Constants, AnyValue{})
	var buf bytes.Buffer
	assert.Error(t, c.Serialize(&buf))
}
