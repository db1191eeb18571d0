package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/RicBent/magwi/cmd"
	"github.com/RicBent/magwi/gen"
)

func main() {
	c := cmd.New("mwgen")
	fs := c.Flags
	out := fs.String("o", "include/magwi.h", "write the hook header to `file`")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\nOptions:\n", os.Args[0])
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])
	if fs.NArg() != 0 {
		fs.Usage()
		os.Exit(1)
	}

	st := c.Status()
	if err := write(*out); err != nil {
		c.Fail(st, err)
	}
	st.Printf("wrote %s\n", *out)
}

func write(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating %s failed", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s failed", path)
	}
	err = gen.WriteHeader(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
