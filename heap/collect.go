package heap

import (
	"time"

	"github.com/rs/zerolog/log"
)

// RootSet enumerates the handles that must survive a pass.
type RootSet interface {
	Roots(mark func(Handle))
}

// RootFunc adapts a function to RootSet.
type RootFunc func(mark func(Handle))

func (f RootFunc) Roots(mark func(Handle)) {
	f(mark)
}

// Stats describes a single collection pass.
type Stats struct {
	Before    int
	After     int
	Collected int
	LiveBytes int
	Threshold int // threshold in effect after the pass
	Grew      bool
	Duration  time.Duration
}

// ShouldCollect reports whether the live count has reached the threshold.
func (h *Heap) ShouldCollect() bool {
	return h.live >= h.threshold
}

// MaybeCollect runs a pass if the threshold has been reached. It is the
// checkpoint every allocation site goes through.
func (h *Heap) MaybeCollect(roots RootSet) (*Stats, bool) {
	if !h.ShouldCollect() {
		return nil, false
	}
	st := h.Collect(roots)
	return &st, true
}

// Collect marks everything reachable from roots and frees the rest. The
// caller is paused for the whole pass.
func (h *Heap) Collect(roots RootSet) Stats {
	start := time.Now()
	st := Stats{Before: h.live}

	var work []Handle
	mark := func(handle Handle) {
		s, err := h.slot(handle)
		if err != nil || s.marked {
			return
		}
		s.marked = true
		work = append(work, handle)
	}
	if roots != nil {
		roots.Roots(mark)
	}
	for len(work) > 0 {
		next := work[len(work)-1]
		work = work[:len(work)-1]
		if t, ok := h.slots[next.Index].value.(Tracer); ok {
			t.Trace(mark)
		}
	}

	for i := range h.slots {
		s := &h.slots[i]
		if !s.live {
			continue
		}
		if s.marked {
			s.marked = false
			continue
		}
		h.freeSlot(uint32(i))
		st.Collected++
	}

	if h.live >= h.threshold {
		h.threshold *= h.growFactor
		st.Grew = true
	}
	h.allocated = 0
	h.passes++

	st.After = h.live
	st.LiveBytes = h.liveBytes
	st.Threshold = h.threshold
	st.Duration = time.Since(start)
	h.last = &st

	if h.debug {
		log.Info().
			Int("pass", h.passes).
			Int("before", st.Before).
			Int("after", st.After).
			Int("collected", st.Collected).
			Int("live_bytes", st.LiveBytes).
			Int("threshold", st.Threshold).
			Bool("grew", st.Grew).
			Dur("pause", st.Duration).
			Msg("gc pass")
	}
	return st
}
