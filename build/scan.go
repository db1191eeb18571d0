package build

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
	"github.com/pkg/errors"

	"github.com/RicBent/magwi/hook"
	"github.com/RicBent/magwi/objfile"
)

// ScanObjects collects replace hooks from the section names of the
// compiled objects. Their payloads are placed by the linker script and
// written back after linking.
func ScanObjects(jobs []*Job) ([]Replace, error) {
	var replaces []Replace
	for _, job := range jobs {
		f, err := objfile.Open(job.Obj)
		if err != nil {
			return nil, err
		}
		for _, sec := range f.Sections() {
			d, err := hook.ParseSection(sec.Name)
			if err != nil {
				if errors.Cause(err) == hook.ErrBadPrefix {
					continue
				}
				return nil, errors.Wrapf(err, "%s", job.Src)
			}
			if d.Kind.Class != hook.ClassReplace {
				return nil, &HookError{
					File: hook.UnitPath(d.Unit), Line: d.Line,
					Msg: "invalid hook kind for section hook",
				}
			}
			addr, err := hook.ParseAddress(d.Target)
			if err != nil {
				return nil, &HookError{File: hook.UnitPath(d.Unit), Line: d.Line, Msg: err.Error()}
			}
			replaces = append(replaces, Replace{Name: sec.Name, Addr: addr})
		}
	}
	return replaces, nil
}

// SecData is a section payload lifted out of the linked ELF.
type SecData struct {
	Name string
	Addr uint32
	Data []byte
}

// Linked is everything the hook passes need from the linked output.
type Linked struct {
	Symbols    map[string]uint32
	Plan       *hook.Plan
	Loader     *SecData
	CustomText *SecData
	HookSecs   []SecData
}

// NewLinked returns an empty index. ScanLinked fills one from an ELF.
func NewLinked(customTextAddr uint32) *Linked {
	return &Linked{
		Symbols: make(map[string]uint32),
		Plan:    hook.NewPlan(customTextAddr),
	}
}

// fileSymbol indexes one symbol under its raw and demangled names and
// files it under the plan when the name is a hook.
func (l *Linked) fileSymbol(name string, addr uint32) error {
	l.Symbols[name] = addr
	if dem, err := demangle.ToString(name); err == nil {
		l.Symbols[dem] = addr
	}

	d, err := hook.ParseSymbol(name)
	if err != nil {
		if errors.Cause(err) == hook.ErrBadPrefix {
			return nil
		}
		return err
	}
	if d.Kind.Class == hook.ClassReplace {
		return &HookError{
			File: hook.UnitPath(d.Unit), Line: d.Line,
			Msg: "invalid hook kind for symbol hook",
		}
	}
	return l.Plan.AddSymbol(hook.SymbolHook{Desc: d, Addr: addr})
}

// ScanLinked indexes the linked ELF: the symbol table, every symbol
// hook, and the special sections the image pass writes out.
func ScanLinked(f *objfile.File, customTextAddr uint32) (*Linked, error) {
	l := NewLinked(customTextAddr)

	secData := func(sec *objfile.Section) (*SecData, error) {
		data, err := sec.Data()
		if err != nil {
			return nil, err
		}
		return &SecData{Name: sec.Name, Addr: sec.Addr, Data: data}, nil
	}

	for _, sec := range f.Sections() {
		switch {
		case sec.Name == hook.LoaderSection:
			sd, err := secData(sec)
			if err != nil {
				return nil, err
			}
			l.Loader = sd
		case sec.Name == ".text":
			sd, err := secData(sec)
			if err != nil {
				return nil, err
			}
			l.CustomText = sd
		case strings.HasPrefix(sec.Name, hook.SectionPrefix):
			// already validated when the linker script was generated
			sd, err := secData(sec)
			if err != nil {
				return nil, err
			}
			l.HookSecs = append(l.HookSecs, *sd)
		}
	}

	syms, err := f.Symbols()
	if err != nil {
		return nil, err
	}
	for _, sym := range syms {
		if err := l.fileSymbol(sym.Name, sym.Addr); err != nil {
			return nil, err
		}
	}
	return l, nil
}
