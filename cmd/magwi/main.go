package main

import (
	"fmt"
	"os"

	"github.com/RicBent/magwi/build"
	"github.com/RicBent/magwi/cmd"
)

const version = "0.1.0"

func main() {
	c := cmd.New("magwi")
	fs := c.Flags
	force := fs.Bool("f", false, "rebuild every source file")
	jobs := fs.Int("j", 0, "parallel compile jobs (0 = cpu count)")
	record := fs.String("record", "", "also write a patch record to `file`")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [project]\n\nOptions:\n", os.Args[0])
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])
	if fs.NArg() > 1 {
		fs.Usage()
		os.Exit(1)
	}

	st := c.Status()
	st.Title(fmt.Sprintf("magwi v%s", version))
	opts := build.Options{
		Force:   *force,
		Jobs:    *jobs,
		Record:  *record,
		Verbose: c.Verbose,
	}
	if err := build.Make(fs.Arg(0), st, opts); err != nil {
		c.Fail(st, err)
	}
}
