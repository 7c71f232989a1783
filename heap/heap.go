package heap

import (
	"errors"
	"fmt"
)

// Handle is a non-owning reference to a heap slot. The generation detects
// handles that outlived the object they pointed to.
type Handle struct {
	Index uint32
	Gen   uint32
}

func (h Handle) String() string {
	return fmt.Sprintf("#%d.%d", h.Index, h.Gen)
}

var (
	ErrStaleHandle = errors.New("stale heap handle")
	ErrTypeTag     = errors.New("heap object has unexpected type tag")
)

// Tracer is implemented by heap objects that hold handles to other heap
// objects. Trace must call mark for every handle the object references.
type Tracer interface {
	Trace(mark func(Handle))
}

// Sizer lets an object report its approximate size for live byte accounting.
type Sizer interface {
	Size() int
}

type slot struct {
	tag    TypeTag
	value  any
	gen    uint32
	size   int
	live   bool
	marked bool
}

type Settings struct {
	Threshold  int
	GrowFactor int
	Debug      bool
}

const (
	DefaultThreshold  = 200
	DefaultGrowFactor = 2
)

func DefaultSettings() Settings {
	return Settings{
		Threshold:  DefaultThreshold,
		GrowFactor: DefaultGrowFactor,
	}
}

// Heap owns every object reachable through an Any handle. It is not safe for
// concurrent use; the VM that owns it is single threaded.
type Heap struct {
	slots      []slot
	free       []uint32
	live       int
	liveBytes  int
	allocated  int // allocations since the last pass
	threshold  int
	growFactor int
	debug      bool
	passes     int
	last       *Stats
}

func New(s Settings) *Heap {
	if s.Threshold <= 0 {
		s.Threshold = DefaultThreshold
	}
	if s.GrowFactor < 1 {
		s.GrowFactor = DefaultGrowFactor
	}
	return &Heap{
		threshold:  s.Threshold,
		growFactor: s.GrowFactor,
		debug:      s.Debug,
	}
}

// Alloc stores value under tag and returns its handle. Alloc never collects;
// callers run MaybeCollect first so the new object is not swept before it is
// rooted.
func (h *Heap) Alloc(tag TypeTag, value any) Handle {
	size := 0
	if s, ok := value.(Sizer); ok {
		size = s.Size()
	}
	var idx uint32
	if n := len(h.free); n > 0 {
		idx = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		h.slots = append(h.slots, slot{})
		idx = uint32(len(h.slots) - 1)
	}
	s := &h.slots[idx]
	s.tag = tag
	s.value = value
	s.size = size
	s.live = true
	s.marked = false
	h.live++
	h.liveBytes += size
	h.allocated++
	return Handle{Index: idx, Gen: s.gen}
}

// Get returns the tag and value behind handle.
func (h *Heap) Get(handle Handle) (TypeTag, any, error) {
	s, err := h.slot(handle)
	if err != nil {
		return "", nil, err
	}
	return s.tag, s.value, nil
}

// Contains reports whether handle still refers to a live object.
func (h *Heap) Contains(handle Handle) bool {
	_, err := h.slot(handle)
	return err == nil
}

func (h *Heap) slot(handle Handle) (*slot, error) {
	if int(handle.Index) >= len(h.slots) {
		return nil, fmt.Errorf("%w: %s out of range", ErrStaleHandle, handle)
	}
	s := &h.slots[handle.Index]
	if !s.live || s.gen != handle.Gen {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, handle)
	}
	return s, nil
}

func (h *Heap) freeSlot(idx uint32) {
	s := &h.slots[idx]
	h.live--
	h.liveBytes -= s.size
	s.value = nil
	s.tag = ""
	s.size = 0
	s.live = false
	s.marked = false
	s.gen++
	h.free = append(h.free, idx)
}

// Live returns the number of live objects.
func (h *Heap) Live() int {
	return h.live
}

// LiveBytes returns the summed Size of live objects that implement Sizer.
func (h *Heap) LiveBytes() int {
	return h.liveBytes
}

// Threshold returns the live count at which the next pass triggers.
func (h *Heap) Threshold() int {
	return h.threshold
}

func (h *Heap) GrowFactor() int {
	return h.growFactor
}

// Allocated returns the number of allocations since the last pass.
func (h *Heap) Allocated() int {
	return h.allocated
}

// Passes returns how many collection passes have run.
func (h *Heap) Passes() int {
	return h.passes
}

// LastStats returns statistics of the most recent pass, or nil.
func (h *Heap) LastStats() *Stats {
	return h.last
}

// Release frees every object. Calling it again is a no-op.
func (h *Heap) Release() int {
	freed := 0
	for i := range h.slots {
		if h.slots[i].live {
			h.freeSlot(uint32(i))
			freed++
		}
	}
	h.allocated = 0
	return freed
}
