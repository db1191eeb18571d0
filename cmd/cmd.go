package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/xyproto/env/v2"

	"github.com/RicBent/magwi/build"
)

// Cmd carries the flag set and output settings shared by the magwi
// tools.
type Cmd struct {
	Flags *flag.FlagSet

	NoColor bool
	Verbose bool
}

// New returns a launcher with the shared flags registered. Color
// defaults off when the NO_COLOR variable is set.
func New(name string) *Cmd {
	c := &Cmd{Flags: flag.NewFlagSet(name, flag.ExitOnError)}
	c.Flags.BoolVar(&c.NoColor, "no-color", env.Has("NO_COLOR"), "disable colored output")
	c.Flags.BoolVar(&c.Verbose, "v", false, "verbose output")
	return c
}

// Status returns a build printer honoring the color flag.
func (c *Cmd) Status() *build.Status {
	return &build.Status{Out: os.Stdout, Color: !c.NoColor}
}

// Fail prints err and exits nonzero. With -v set, a stack trace
// recorded by pkg/errors is printed as well.
func (c *Cmd) Fail(st *build.Status, err error) {
	st.PrintError(err)
	if c.Verbose {
		PrintStackTrace(os.Stderr, err)
	}
	os.Exit(1)
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// PrintStackTrace prints the stack trace attached to err, if any, as a
// path/line/method table.
func PrintStackTrace(w io.Writer, err error) {
	tracer, ok := err.(stackTracer)
	if !ok {
		return
	}
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	// parse full path and method name for each stack frame
	var frames [][]string
	for _, f := range tracer.StackTrace() {
		fullpath := ""
		fileline := fmt.Sprintf("%s:%d", f, f)
		method := fmt.Sprintf("%n", f)

		frame := fmt.Sprintf("%+s", f)
		tmp := strings.SplitN(frame, "\n", 3)
		if len(tmp) == 2 {
			pathsplit := strings.Split(tmp[0], "/")
			method = pathsplit[len(pathsplit)-1]
			fullpath = strings.TrimSpace(tmp[1])
		}
		frames = append(frames, []string{fullpath, fileline, method})
		if method == "main.main" {
			break
		}
	}
	// calculate column widths
	widths := make([]int, 3)
	for _, f := range frames {
		for i, s := range f {
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}
	// print pretty stacktrace
	for _, f := range frames {
		method := f[2]
		for i := 0; i < 2; i++ {
			if widths[i] > 0 {
				pad := strings.Repeat(" ", widths[i]-len(f[i]))
				fmt.Fprintf(w, "%s%s | ", f[i], pad)
			}
		}
		fmt.Fprintf(w, "%s()\n", method)
	}
}
