package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-isatty"
	"github.com/viper-lang/viper/vm"
)

// ColorEnabled reports whether diagnostics written to f should be coloured.
func ColorEnabled(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// FormatError renders err as a fatal report: the message, the offending
// source line with a caret under the span, and the hint. src is the text of
// the file the error points into and may be nil.
func FormatError(err error, src []byte) string {
	var verr *vm.Error
	if !errors.As(err, &verr) {
		return fmt.Sprintf("┌─ %s %s\n", color.Red.Sprint("panic:"), err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "┌─ %s %s\n", color.Red.Sprint("panic:"), verr.Text)
	b.WriteString("│\n")

	file := "-"
	if verr.Addr.File != "" {
		file = filepath.Base(verr.Addr.File)
	}
	fmt.Fprintf(&b, "│ %s:\n", color.Cyan.Sprint(file))

	line := sourceLine(src, verr.Addr.Line)
	lineNo := "-"
	if verr.Addr.Line > 0 {
		lineNo = strconv.Itoa(verr.Addr.Line)
	}
	fmt.Fprintf(&b, "│ %s %s\n", color.Gray.Sprint(lineNo), line)
	if verr.Addr.Span.Start > 0 && line != "-" {
		width := verr.Addr.Span.End - verr.Addr.Span.Start
		if width < 1 {
			width = 1
		}
		pad := strings.Repeat(" ", len(lineNo)+verr.Addr.Span.Start+1)
		fmt.Fprintf(&b, "│%s%s\n", pad, color.Red.Sprint(strings.Repeat("^", width)))
	}
	b.WriteString("│\n")

	hint := verr.Hint
	if hint == "" {
		hint = "-"
	}
	fmt.Fprintf(&b, "│ %s: %s\n", color.Cyan.Sprint("hint"), hint)
	return b.String()
}

func sourceLine(src []byte, n int) string {
	if src == nil || n <= 0 {
		return "-"
	}
	lines := strings.Split(string(src), "\n")
	if n > len(lines) {
		return "-"
	}
	return strings.TrimRight(lines[n-1], "\r")
}

// Report writes the fatal report for err to w, using the source this runner
// read for the file the error points into.
func (r *Runner) Report(w io.Writer, err error) {
	var src []byte
	var verr *vm.Error
	if errors.As(err, &verr) {
		src, _ = r.Source(verr.Addr.File)
	}
	fmt.Fprint(w, FormatError(err, src))
}
