package build

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/RicBent/magwi/exheader"
	"github.com/RicBent/magwi/image"
	"github.com/RicBent/magwi/objfile"
	"github.com/RicBent/magwi/record"
)

// project layout, relative to the project root
const (
	origCodePath     = "original/code.bin"
	origExheaderPath = "original/exheader.bin"
	sourceDir        = "source"
	objDir           = "build/obj"
	depDir           = "build/dep"
	hooksDir         = "hooks"
	symbolsScript    = "symbols.ld"
	linkerScript     = "build/linker.ld"
	mapPath          = "build/out.map"
	elfPath          = "build/out.elf"
	outCodePath      = "build/code.bin"
	outExheaderPath  = "build/exheader.bin"
)

// ImageBase is where 3DS application code is mapped.
const ImageBase = 0x100000

// Options tune a build run.
type Options struct {
	Force   bool   // rebuild everything
	Jobs    int    // parallel compiles, detected when 0
	Record  string // also write a patch record here
	Verbose bool   // echo compiler command lines
}

// Make builds the project at dir end to end: compile, generate the
// hook linker script, link, apply hooks and write the patched image.
// It chdirs into dir so diagnostics stay project relative.
func Make(dir string, st *Status, opts Options) error {
	if dir != "" {
		if err := os.Chdir(dir); err != nil {
			return errors.Wrapf(err, "entering %s failed", dir)
		}
	}

	orig, err := os.ReadFile(origCodePath)
	if err != nil {
		return errors.Wrapf(err, "reading %s failed", origCodePath)
	}
	w := image.New(ImageBase, orig)

	ehf, err := os.Open(origExheaderPath)
	if err != nil {
		return errors.Wrapf(err, "reading %s failed", origExheaderPath)
	}
	eh, err := exheader.Read(ehf)
	ehf.Close()
	if err != nil {
		return err
	}

	lay := Layout{
		LoaderAddr:     eh.LoaderAddr(),
		LoaderMax:      eh.LoaderMax(),
		CustomTextAddr: eh.CustomTextAddr(),
	}

	jobs, err := FindJobs(sourceDir, objDir, depDir, true)
	if err != nil {
		return err
	}
	if !opts.Force {
		for _, job := range jobs {
			job.UpdateReason()
		}
	}

	tc := NewToolchain()

	st.Step(1, "Compiling...")
	if err := compileAll(tc, jobs, st, opts); err != nil {
		return err
	}

	st.Step(2, "Section hooks...")
	replaces, err := ScanObjects(jobs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(linkerScript), 0755); err != nil {
		return errors.Wrap(err, "creating build directory failed")
	}
	lf, err := os.Create(linkerScript)
	if err != nil {
		return errors.Wrapf(err, "creating %s failed", linkerScript)
	}
	err = WriteLinkerScript(lf, replaces, lay.LoaderAddr, lay.CustomTextAddr)
	if cerr := lf.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	st.Step(3, "Linking...")
	objs := make([]string, len(jobs))
	for i, job := range jobs {
		objs[i] = job.Obj
	}
	diag, err := tc.Link(objs)
	if diag != "" {
		st.Printf("%s\n", diag)
	}
	if err != nil {
		return err
	}
	f, err := objfile.Open(elfPath)
	if err != nil {
		return err
	}

	st.Step(4, "Symbol hooks...")
	linked, err := ScanLinked(f, lay.CustomTextAddr)
	if err != nil {
		return err
	}
	patches, err := ReadHooks(hooksDir, linked.Symbols, linked.Plan)
	if err != nil {
		return err
	}
	if err := linked.Plan.Finalize(); err != nil {
		return err
	}
	if err := Apply(w, st, lay, linked, patches); err != nil {
		return err
	}

	if err := os.WriteFile(outCodePath, w.Data(), 0644); err != nil {
		return errors.Wrapf(err, "writing %s failed", outCodePath)
	}
	if opts.Record != "" {
		if err := writeRecord(opts.Record, w, uint32(len(orig))); err != nil {
			return err
		}
	}

	eh.Patch(w.End())
	ef, err := os.Create(outExheaderPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s failed", outExheaderPath)
	}
	err = eh.Write(ef)
	if cerr := ef.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	st.Done()
	return nil
}

func compileAll(tc *Toolchain, jobs []*Job, st *Status, opts Options) error {
	var todo []*Job
	for _, job := range jobs {
		if job.Rebuild() {
			todo = append(todo, job)
		}
	}
	if len(todo) == 0 {
		return nil
	}

	workers := opts.Jobs
	if workers <= 0 {
		workers = DefaultJobs()
	}
	if workers > len(todo) {
		workers = len(todo)
	}

	var mu sync.Mutex
	done := 0
	pool := NewPool(workers)
	for _, job := range todo {
		job := job
		ok := pool.Submit(func() error {
			if opts.Verbose {
				mu.Lock()
				st.Printf("%s %s\n", tc.Compiler[job.Kind], strings.Join(tc.compileArgs(job), " "))
				mu.Unlock()
			}
			diag, err := tc.Compile(job)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				st.Printf("%s\n", err)
				return errors.New("compilation failed")
			}
			done++
			st.Printf("[%d/%d] %s\n", done, len(todo), job.Src)
			if diag != "" {
				st.Printf("%s", diag)
			}
			return nil
		})
		if !ok {
			break
		}
	}
	return pool.Wait()
}

// writeRecord dumps everything done to the image as a patch record.
// Loader blocks already show up as spans, only tail blocks need their
// data emitted separately.
func writeRecord(path string, w *image.Writer, origSize uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s failed", path)
	}
	rw, err := record.NewWriter(f, w.Base(), origSize)
	if err != nil {
		f.Close()
		return err
	}

	pack := func() error {
		if err := rw.Pack(&record.OpResize{End: w.End()}); err != nil {
			return err
		}
		for _, s := range w.Spans() {
			data := make([]byte, s.Size)
			if err := w.Read(s.Addr, data); err != nil {
				return err
			}
			if err := rw.Pack(&record.OpWrite{Addr: s.Addr, Data: data, Reason: s.Reason}); err != nil {
				return err
			}
		}
		for _, b := range w.Blocks() {
			if b.Pos != image.Tail {
				continue
			}
			data := make([]byte, b.Size)
			if err := w.Read(b.Addr, data); err != nil {
				return err
			}
			if err := rw.Pack(&record.OpWrite{Addr: b.Addr, Data: data, Reason: b.Reason}); err != nil {
				return err
			}
		}
		for _, b := range w.Blocks() {
			if err := rw.Pack(&record.OpExtra{Pos: uint8(b.Pos), Addr: b.Addr, Size: b.Size}); err != nil {
				return err
			}
		}
		return nil
	}

	err = pack()
	if cerr := rw.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "writing record %s failed", path)
}
