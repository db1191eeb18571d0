package build

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mgutz/ansi"
	"github.com/pkg/errors"
)

// numSteps is how many banner steps a full build prints.
const numSteps = 4

// Status renders build progress. Color should be off when Out is not a
// terminal.
type Status struct {
	Out   io.Writer
	Color bool
}

func (s *Status) paint(text, style string) string {
	if !s.Color {
		return text
	}
	return ansi.Color(text, style)
}

// Step prints a numbered step banner.
func (s *Status) Step(n int, name string) {
	fmt.Fprintf(s.Out, "%s %s\n",
		s.paint(fmt.Sprintf("[%d/%d]", n, numSteps), "default+b"),
		s.paint(name, "cyan+b"))
}

// Title prints a bold summary heading.
func (s *Status) Title(text string) {
	fmt.Fprintln(s.Out, s.paint(text, "default+b"))
}

// Printf prints a plain progress line.
func (s *Status) Printf(format string, args ...interface{}) {
	fmt.Fprintf(s.Out, format, args...)
}

// Done prints the success banner.
func (s *Status) Done() {
	fmt.Fprintln(s.Out, s.paint("Done!", "green+b"))
}

// HookError is a failure anchored to a hook declaration. File and Line
// point at the declaring source.
type HookError struct {
	File string
	Line int
	Msg  string
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// PrintError renders a build failure. Hook errors point at their
// declaration and echo the offending source line, anything else prints
// as a fatal message.
func (s *Status) PrintError(err error) {
	he, ok := errors.Cause(err).(*HookError)
	if !ok {
		fmt.Fprintln(s.Out, s.paint(err.Error(), "red+b"))
		return
	}
	fmt.Fprintf(s.Out, "%s %s %s\n",
		s.paint(fmt.Sprintf("%s:%d:", he.File, he.Line), "default+b"),
		s.paint("error:", "red+b"), he.Msg)
	if text, ok := sourceLine(he.File, he.Line); ok {
		fmt.Fprintf(s.Out, "    %d | %s\n", he.Line, text)
	}
}

func sourceLine(path string, n int) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for i := 1; scanner.Scan(); i++ {
		if i == n {
			return scanner.Text(), true
		}
	}
	return "", false
}
