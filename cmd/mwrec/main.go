package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/pkg/errors"

	"github.com/RicBent/magwi/build"
	"github.com/RicBent/magwi/cmd"
	"github.com/RicBent/magwi/image"
	"github.com/RicBent/magwi/record"
)

func main() {
	c := cmd.New("mwrec")
	fs := c.Flags
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <record>\n\nOptions:\n", os.Args[0])
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	st := c.Status()
	if err := dump(st, fs.Arg(0)); err != nil {
		c.Fail(st, err)
	}
}

func dump(st *build.Status, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s failed", path)
	}
	r, err := record.NewReader(f)
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "reading %s failed", path)
	}
	defer r.Close()

	var writes []*record.OpWrite
	var extras []*record.OpExtra
	var end uint32
	for {
		op, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "reading %s failed", path)
		}
		switch o := op.(type) {
		case *record.OpWrite:
			writes = append(writes, o)
		case *record.OpExtra:
			extras = append(extras, o)
		case *record.OpResize:
			end = o.End
		}
	}

	st.Title("Image:")
	st.Printf("     base: 0x%08x\n", r.Header.Base)
	st.Printf("     size: 0x%08x\n", r.Header.Size)
	if end != 0 {
		st.Printf("  resized: 0x%08x\n", end)
	}

	sort.SliceStable(writes, func(i, j int) bool {
		return writes[i].Addr < writes[j].Addr
	})
	st.Title("Writes:")
	for _, o := range writes {
		st.Printf("  0x%08x %5d  %s\n", o.Addr, len(o.Data), o.Reason)
	}

	if len(extras) > 0 {
		st.Title("Extra blocks:")
		for _, o := range extras {
			st.Printf("  0x%08x %5d  %s\n", o.Addr, o.Size, image.ExtraPos(o.Pos))
		}
	}

	byReason := make(map[string]*reasonStat)
	for _, o := range writes {
		s := byReason[o.Reason]
		if s == nil {
			s = &reasonStat{reason: o.Reason}
			byReason[o.Reason] = s
		}
		s.writes++
		s.bytes += len(o.Data)
	}
	var stats reasonStats
	for _, s := range byReason {
		stats = append(stats, *s)
	}
	sort.Sort(stats)
	st.Title("Summary:")
	for _, s := range stats {
		st.Printf("  %4d write(s) %6d byte(s)  %s\n", s.writes, s.bytes, s.reason)
	}
	return nil
}

type reasonStat struct {
	reason string
	writes int
	bytes  int
}

type reasonStats []reasonStat

func (r reasonStats) Len() int           { return len(r) }
func (r reasonStats) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r reasonStats) Less(i, j int) bool { return sortorder.NaturalLess(r[i].reason, r[j].reason) }
