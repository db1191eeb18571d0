package build

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/RicBent/magwi/arm"
	"github.com/RicBent/magwi/exheader"
	"github.com/RicBent/magwi/hks"
	"github.com/RicBent/magwi/hook"
	"github.com/RicBent/magwi/image"
)

// Patch is raw bytes declared in a sidecar hook file.
type Patch struct {
	Addr   uint32
	Data   []byte
	Reason string
}

// Layout fixes where generated code lands in the patched image.
type Layout struct {
	LoaderAddr     uint32
	LoaderMax      uint32
	CustomTextAddr uint32
}

// ReadHooks parses every .hks file in dir and files the declared hooks
// under the plan. Raw data patches come back separately since they
// bypass planning. A missing dir just means no sidecar hooks.
func ReadHooks(dir string, symbols map[string]uint32, plan *hook.Plan) ([]Patch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s failed", dir)
	}
	var patches []Patch
	seq := 0
	for _, de := range entries {
		if !de.Type().IsRegular() || filepath.Ext(de.Name()) != ".hks" {
			continue
		}
		ps, err := readHookFile(filepath.Join(dir, de.Name()), symbols, plan, &seq)
		if err != nil {
			return nil, err
		}
		patches = append(patches, ps...)
	}
	return patches, nil
}

func readHookFile(path string, symbols map[string]uint32, plan *hook.Plan, seq *int) ([]Patch, error) {
	r, err := hks.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var patches []Patch
	for {
		e, err := r.Next()
		if err == io.EOF {
			return patches, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s", path)
		}
		p, err := fileEntry(e, path, symbols, plan, seq)
		if err != nil {
			return nil, err
		}
		if p != nil {
			patches = append(patches, *p)
		}
	}
}

// resolveTarget reads where a sidecar hook points: a symbol by name or
// a literal destination address.
func resolveTarget(e *hks.Entry, symbols map[string]uint32, path string) (uint32, error) {
	if e.Has("func") {
		sym, err := e.Get("func")
		if err != nil {
			return 0, &HookError{File: path, Line: e.Line, Msg: err.Error()}
		}
		addr, ok := symbols[sym]
		if !ok {
			return 0, &HookError{File: path, Line: e.Line, Msg: fmt.Sprintf("symbol %#v not found", sym)}
		}
		return addr, nil
	}
	addr, err := e.GetAddress("dest")
	if err != nil {
		return 0, &HookError{File: path, Line: e.Line, Msg: err.Error()}
	}
	return addr, nil
}

func fileEntry(e *hks.Entry, path string, symbols map[string]uint32, plan *hook.Plan, seq *int) (*Patch, error) {
	fail := func(msg string) error {
		return &HookError{File: path, Line: e.Line, Msg: msg}
	}

	addr, err := e.GetAddress("addr")
	if err != nil {
		return nil, fail(err.Error())
	}
	typ, err := e.Get("type")
	if err != nil {
		return nil, fail(err.Error())
	}

	var patch *Patch
	switch typ {
	case "branch":
		link, err := e.GetBool("link")
		if err != nil {
			return nil, fail(err.Error())
		}
		to, err := resolveTarget(e, symbols, path)
		if err != nil {
			return nil, err
		}
		name := "b"
		if link {
			name = "bl"
		}
		d := &hook.Descriptor{
			Kind:   hook.Kind{Name: name, Class: hook.ClassBranch, Cond: arm.AL, Link: link},
			Target: fmt.Sprintf("0x%x", addr),
			Unit:   path,
			Line:   e.Line,
			Seq:    *seq,
		}
		*seq++
		if err := plan.AddSymbol(hook.SymbolHook{Desc: d, Addr: to}); err != nil {
			return nil, err
		}

	case "softbranch", "soft_branch":
		pos, err := e.Get("opcode")
		if err != nil {
			return nil, fail(err.Error())
		}
		to, err := resolveTarget(e, symbols, path)
		if err != nil {
			return nil, err
		}
		// the opcode position names where the original instruction
		// runs relative to the hook call
		var pre bool
		switch pos {
		case "pre":
			pre = false
		case "post":
			pre = true
		default:
			return nil, fail(fmt.Sprintf("invalid opcode position %#v", pos))
		}
		if err := plan.AddSidecarCall(addr, to, pre, path, e.Line); err != nil {
			return nil, err
		}

	case "patch":
		s, err := e.Get("data")
		if err != nil {
			return nil, fail(err.Error())
		}
		clean := strings.ReplaceAll(s, " ", "")
		if len(clean)%2 != 0 {
			return nil, fail(fmt.Sprintf("invalid patch data %#v: must be a multiple of 2 hex characters", clean))
		}
		data, err := hex.DecodeString(clean)
		if err != nil {
			if ib, ok := err.(hex.InvalidByteError); ok {
				return nil, fail(fmt.Sprintf("invalid patch data %#v: invalid hex character at index %d",
					clean, strings.IndexByte(clean, byte(ib))))
			}
			return nil, fail(fmt.Sprintf("invalid patch data %#v", clean))
		}
		patch = &Patch{Addr: addr, Data: data, Reason: fmt.Sprintf("patch (%s:%d)", path, e.Line)}

	case "asm":
		code, err := e.Get("asm")
		if err != nil {
			return nil, fail(err.Error())
		}
		thumb := false
		if e.Has("thumb") {
			if thumb, err = e.GetBool("thumb"); err != nil {
				return nil, fail(err.Error())
			}
		}
		a := &arm.Assembler{Thumb: thumb}
		if err := a.Open(); err != nil {
			return nil, errors.Wrap(err, "opening assembler failed")
		}
		defer a.Close()
		data, err := a.Asm(code, uint64(addr))
		if err != nil {
			return nil, fail(err.Error())
		}
		patch = &Patch{Addr: addr, Data: data, Reason: fmt.Sprintf("asm patch (%s:%d)", path, e.Line)}

	case "symbol", "symptr", "sym_ptr":
		sym, err := e.Get("sym")
		if err != nil {
			return nil, fail(err.Error())
		}
		to, ok := symbols[sym]
		if !ok {
			return nil, fail(fmt.Sprintf("symbol %#v not found", sym))
		}
		d := &hook.Descriptor{
			Kind:   hook.Kind{Name: "symptr", Class: hook.ClassSymptr},
			Target: fmt.Sprintf("0x%x", addr),
			Unit:   path,
			Line:   e.Line,
			Seq:    *seq,
		}
		*seq++
		if err := plan.AddSymbol(hook.SymbolHook{Desc: d, Addr: to}); err != nil {
			return nil, err
		}

	default:
		return nil, fail(fmt.Sprintf("invalid hook type %#v", typ))
	}

	if !e.Done() {
		keys := e.Remaining()
		quoted := make([]string, len(keys))
		for i, k := range keys {
			quoted[i] = strconv.Quote(k)
		}
		return nil, fail("unused keys: " + strings.Join(quoted, ", "))
	}
	return patch, nil
}

// Apply writes everything into the image: hook section payloads,
// branch and symptr patches, raw patches, the loader and custom text
// sections, and finally the trampolines.
func Apply(w *image.Writer, st *Status, lay Layout, linked *Linked, patches []Patch) error {
	if linked.Loader != nil {
		w.SetLoaderCursor(linked.Loader.Addr + uint32(len(linked.Loader.Data)))
	}

	for _, sec := range linked.HookSecs {
		if len(sec.Data) == 0 {
			continue
		}
		if err := w.Write(sec.Addr, sec.Data, sec.Name); err != nil {
			return errors.Wrap(err, "writing hook section failed")
		}
	}

	for _, b := range linked.Plan.Branches {
		ins, err := arm.EncodeBranch(b.Desc.Kind.Link, b.Target, b.Hook, b.Desc.Kind.Cond)
		if err != nil {
			return &HookError{File: hook.UnitPath(b.Desc.Unit), Line: b.Desc.Line, Msg: err.Error()}
		}
		if err := w.WriteWord(b.Target, ins, b.Desc.String()); err != nil {
			return errors.Wrap(err, "writing branch hook failed")
		}
	}

	for _, sp := range linked.Plan.Symptrs {
		if err := w.WriteWord(sp.Target, sp.Hook, sp.Desc.String()); err != nil {
			return errors.Wrap(err, "writing symptr hook failed")
		}
	}

	for _, p := range patches {
		if err := w.Write(p.Addr, p.Data, p.Reason); err != nil {
			return errors.Wrap(err, "writing patch failed")
		}
	}

	st.Title("Loader:")
	if linked.Loader == nil {
		st.Printf("  no loader section found\n")
	} else {
		size := uint32(len(linked.Loader.Data))
		st.Printf("  address: 0x%08x\n", lay.LoaderAddr)
		st.Printf(" max size: 0x%08x\n", lay.LoaderMax)
		st.Printf("     size: 0x%08x (%.2f%%)\n", size, float64(size)/float64(lay.LoaderMax)*100)
		if size > lay.LoaderMax {
			return errors.New("loader size exceeds maximum size")
		}
		if size > 0 {
			if err := w.Write(lay.LoaderAddr, linked.Loader.Data, hook.LoaderSection+" section"); err != nil {
				return errors.Wrap(err, "writing loader failed")
			}
		}
	}

	if linked.CustomText == nil {
		return errors.New("custom text section not found")
	}
	size := uint32(len(linked.CustomText.Data))
	st.Title("Custom text:")
	st.Printf("  address: 0x%08x\n", lay.CustomTextAddr)
	st.Printf("     size: 0x%08x\n", size)
	end := exheader.RoundToPage(lay.CustomTextAddr + size)
	if err := w.Resize(end); err != nil {
		return errors.Wrap(err, "resizing for custom text failed")
	}
	if size > 0 {
		if err := w.Write(lay.CustomTextAddr, linked.CustomText.Data, ".text section"); err != nil {
			return errors.Wrap(err, "writing custom text failed")
		}
	}

	// TODO: tail trampolines land past __mw_text_end, so the loader's
	// reprotection range misses them; the symbol needs patching to the
	// final image end
	for _, g := range linked.Plan.Groups() {
		if err := writeTrampoline(w, g); err != nil {
			return err
		}
	}
	return nil
}

// writeTrampoline redirects the group's target instruction into a
// generated block that runs the pre hooks, the relocated original
// instruction, the post hooks, and jumps back.
func writeTrampoline(w *image.Writer, g *hook.Group) error {
	orig, err := w.ReadWord(g.Target)
	if err != nil {
		return errors.Wrap(err, "reading hooked instruction failed")
	}
	pos := image.Tail
	if g.Loader {
		pos = image.Loader
	}
	reason := fmt.Sprintf("trampoline for 0x%x", g.Target)
	err = w.Extra(pos, reason, func(x *image.Writer) error {
		jump, err := arm.EncodeBranch(false, g.Target, x.Base(), arm.AL)
		if err != nil {
			return err
		}
		if err := w.WriteWord(g.Target, jump, reason); err != nil {
			return err
		}
		for _, c := range g.Pre {
			if err := appendCall(x, c); err != nil {
				return err
			}
		}
		moved, err := arm.Relocate(orig, g.Target, x.End())
		if err != nil {
			return err
		}
		x.AppendWord(moved)
		for _, c := range g.Post {
			if err := appendCall(x, c); err != nil {
				return err
			}
		}
		back, err := arm.EncodeBranch(false, x.End(), g.Target+4, arm.AL)
		if err != nil {
			return err
		}
		x.AppendWord(back)
		return nil
	})
	return errors.Wrapf(err, "trampoline for 0x%x failed", g.Target)
}

// appendCall emits one hook invocation: save the caller registers,
// call the hook, restore.
func appendCall(x *image.Writer, c hook.Call) error {
	x.AppendWord(arm.Push(arm.RegsCallerSaved, arm.AL))
	bl, err := arm.EncodeBranch(true, x.End(), c.Hook, arm.AL)
	if err != nil {
		return errors.Wrapf(err, "%s", c.Location())
	}
	x.AppendWord(bl)
	x.AppendWord(arm.Pop(arm.RegsCallerSaved, arm.AL))
	return nil
}
