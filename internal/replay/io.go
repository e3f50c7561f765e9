package replay

import (
	"fmt"
	"io"
)

// IO handles command output with LLM-friendly warning visibility: warnings
// are buffered and, once any output happens (or at Finish), flushed to
// stderr, so a warning is visible whether the caller reads stdout greedily
// or truncates it.
type IO struct {
	out      io.Writer
	errOut   io.Writer
	warnings []string
	started  bool
}

// NewIO constructs an IO writing normal output to out and warnings/errors
// to errOut.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// WarnLLM records an actionable warning: issue is what went wrong, action
// is what the caller should do about it. Warnings do not suppress normal
// output and do not stop execution; they cause [IO.Finish] to return a
// non-zero exit code.
func (o *IO) WarnLLM(issue, action string) {
	o.warnings = append(o.warnings, fmt.Sprintf("%s: %s", issue, action))
}

// Println writes to stdout, satisfying [internal/router.Printer].
func (o *IO) Println(a ...any) {
	o.flushWarningsStart()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout, satisfying
// [internal/router.Printer].
func (o *IO) Printf(format string, a ...any) {
	o.flushWarningsStart()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr, used for command usage/error output that
// should not interleave with the warning-flush ordering of Println.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish flushes any remaining warnings to stderr and returns the process
// exit code: 1 if any warning was recorded, 0 otherwise.
func (o *IO) Finish() int {
	o.flushWarningsStart()

	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}

	if len(o.warnings) > 0 {
		return 1
	}

	return 0
}

func (o *IO) flushWarningsStart() {
	if !o.started && len(o.warnings) > 0 {
		for _, w := range o.warnings {
			_, _ = fmt.Fprintln(o.errOut, "warning:", w)
		}

		o.started = true
	}
}
