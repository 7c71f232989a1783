package pipeline

import (
	"fmt"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
)

// phase runs fn and, when bench is set, reports its wall time on Diag in
// milliseconds.
func (r *Runner) phase(name string, bench bool, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	log.Debug().Str("phase", name).Dur("elapsed", elapsed).Err(err).Msg("pipeline: phase done")
	if bench {
		ms := float64(elapsed.Nanoseconds()) / float64(time.Millisecond)
		fmt.Fprintln(r.Diag, color.Cyan.Sprintf("benchmark '%s', elapsed %.3f", name, ms))
	}
	return err
}
