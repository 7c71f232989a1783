package heap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type box struct {
	n int
}

// pair references two other heap objects.
type pair struct {
	left, right Handle
}

func (p *pair) Trace(mark func(Handle)) {
	mark(p.left)
	mark(p.right)
}

func rootsOf(handles ...Handle) RootSet {
	return RootFunc(func(mark func(Handle)) {
		for _, h := range handles {
			mark(h)
		}
	})
}

func TestCollectUnrooted(t *testing.T) {
	h := New(Settings{Threshold: 1000, GrowFactor: 2})
	for i := 0; i < 50; i++ {
		h.Alloc("box", &box{n: i})
	}
	require.Equal(t, 50, h.Live())

	st := h.Collect(nil)
	assert.Equal(t, 50, st.Before)
	assert.Equal(t, 50, st.Collected)
	assert.Equal(t, 0, st.After)
	assert.Equal(t, 0, h.Live())
}

func TestCollectRetainsRoots(t *testing.T) {
	h := New(Settings{Threshold: 1000, GrowFactor: 2})
	var kept []Handle
	for i := 0; i < 20; i++ {
		handle := h.Alloc("box", &box{n: i})
		if i%2 == 0 {
			kept = append(kept, handle)
		}
	}
	st := h.Collect(rootsOf(kept...))
	assert.Equal(t, 10, st.Collected)
	assert.Equal(t, 10, h.Live())
	for _, handle := range kept {
		b, err := Downcast[*box](h, handle, "box")
		require.NoError(t, err)
		assert.Equal(t, 0, b.n%2)
	}
}

func TestCollectTracesTransitively(t *testing.T) {
	h := New(DefaultSettings())
	left := h.Alloc("box", &box{n: 1})
	right := h.Alloc("box", &box{n: 2})
	p := h.Alloc("pair", &pair{left: left, right: right})
	h.Alloc("box", &box{n: 3})

	st := h.Collect(rootsOf(p))
	assert.Equal(t, 1, st.Collected)
	assert.True(t, h.Contains(left))
	assert.True(t, h.Contains(right))
	assert.True(t, h.Contains(p))
}

func TestCycleIsCollected(t *testing.T) {
	h := New(DefaultSettings())
	a := h.Alloc("pair", &pair{})
	b := h.Alloc("pair", &pair{left: a, right: a})
	pa, err := Downcast[*pair](h, a, "pair")
	require.NoError(t, err)
	pa.left, pa.right = b, b

	h.Collect(nil)
	assert.Equal(t, 0, h.Live())
}

func TestStaleHandle(t *testing.T) {
	h := New(DefaultSettings())
	handle := h.Alloc("box", &box{})
	h.Collect(nil)

	_, _, err := h.Get(handle)
	require.ErrorIs(t, err, ErrStaleHandle)

	// The slot is reused with a new generation; the old handle stays stale.
	fresh := h.Alloc("box", &box{n: 7})
	assert.Equal(t, handle.Index, fresh.Index)
	assert.NotEqual(t, handle.Gen, fresh.Gen)
	assert.False(t, h.Contains(handle))
	assert.True(t, h.Contains(fresh))
}

func TestDowncastTagMismatch(t *testing.T) {
	h := New(DefaultSettings())
	handle := h.Alloc(TagBytes, Bytes("abc"))

	_, err := Downcast[*box](h, handle, "box")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTypeTag))

	_, err = Downcast[*box](h, handle, TagBytes)
	require.ErrorIs(t, err, ErrTypeTag)

	b, err := Downcast[Bytes](h, handle, TagBytes)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))
}

func TestThresholdGrowth(t *testing.T) {
	h := New(Settings{Threshold: 4, GrowFactor: 3})
	var kept []Handle
	for i := 0; i < 4; i++ {
		kept = append(kept, h.Alloc("box", &box{}))
	}
	require.True(t, h.ShouldCollect())

	st, ran := h.MaybeCollect(rootsOf(kept...))
	require.True(t, ran)
	assert.True(t, st.Grew)
	assert.Equal(t, 12, h.Threshold())
	assert.False(t, h.ShouldCollect())
}

func TestThresholdKeptWhenPassIsEffective(t *testing.T) {
	h := New(Settings{Threshold: 4, GrowFactor: 2})
	for i := 0; i < 4; i++ {
		h.Alloc("box", &box{})
	}
	st, ran := h.MaybeCollect(nil)
	require.True(t, ran)
	assert.False(t, st.Grew)
	assert.Equal(t, 4, h.Threshold())
	assert.Equal(t, 1, h.Passes())
	assert.Equal(t, 4, h.LastStats().Collected)
}

func TestMaybeCollectBelowThreshold(t *testing.T) {
	h := New(Settings{Threshold: 10, GrowFactor: 2})
	h.Alloc("box", &box{})
	st, ran := h.MaybeCollect(nil)
	assert.False(t, ran)
	assert.Nil(t, st)
	assert.Equal(t, 1, h.Live())
	assert.Equal(t, 1, h.Allocated())
}

func TestLiveBytes(t *testing.T) {
	h := New(DefaultSettings())
	keep := h.Alloc(TagBytes, Bytes("hello"))
	h.Alloc(TagBytes, Bytes("world!"))
	assert.Equal(t, 11, h.LiveBytes())

	st := h.Collect(rootsOf(keep))
	assert.Equal(t, 5, st.LiveBytes)
	assert.Equal(t, 5, h.LiveBytes())
}

func TestReleaseIsIdempotent(t *testing.T) {
	h := New(DefaultSettings())
	handle := h.Alloc("box", &box{})
	h.Alloc("box", &box{})

	assert.Equal(t, 2, h.Release())
	assert.Equal(t, 0, h.Live())
	assert.False(t, h.Contains(handle))
	assert.Equal(t, 0, h.Release())
}

func TestNewAppliesDefaults(t *testing.T) {
	h := New(Settings{})
	assert.Equal(t, DefaultThreshold, h.Threshold())
	assert.Equal(t, DefaultGrowFactor, h.GrowFactor())
}
