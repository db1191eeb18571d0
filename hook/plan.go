package hook

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseAddress parses a textual address, hex with an 0x prefix or
// decimal otherwise.
func ParseAddress(s string) (uint32, error) {
	digits, base := s, 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits, base = s[2:], 16
	}
	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, errors.Errorf("invalid address: %#v", s)
	}
	return uint32(v), nil
}

// SymbolHook pairs a parsed descriptor with the address its symbol
// resolved to.
type SymbolHook struct {
	Desc *Descriptor
	Addr uint32
}

// BranchPatch replaces the instruction at Target with a branch to Hook.
type BranchPatch struct {
	Desc   *Descriptor
	Target uint32
	Hook   uint32
}

// SymptrPatch writes Hook, the hook symbol's address, into the data
// slot at Target.
type SymptrPatch struct {
	Desc   *Descriptor
	Target uint32
	Hook   uint32
}

// Call is one hook invocation inside a trampoline group. Sidecar calls
// have no descriptor; Unit and Line name their file position instead.
type Call struct {
	Hook uint32
	Unit string
	Line int
	Seq  int
}

// Location renders where the call was declared.
func (c Call) Location() string {
	return fmt.Sprintf("%s:%d", UnitPath(c.Unit), c.Line)
}

func (c Call) less(o Call) bool {
	if c.Unit != o.Unit {
		return c.Unit < o.Unit
	}
	if c.Line != o.Line {
		return c.Line < o.Line
	}
	return c.Seq < o.Seq
}

func (d *Descriptor) less(o *Descriptor) bool {
	if d.Unit != o.Unit {
		return d.Unit < o.Unit
	}
	if d.Line != o.Line {
		return d.Line < o.Line
	}
	return d.Seq < o.Seq
}

// Group is all pre/post hooks sharing one target instruction. One
// trampoline is generated per group.
type Group struct {
	Target uint32
	Loader bool // trampoline goes to the loader region, else the image tail
	Pre    []Call
	Post   []Call
}

// ConflictError reports two branch hooks claiming the same target
// instruction.
type ConflictError struct {
	Target uint32
	A, B   *Descriptor
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting branch hooks at 0x%x: %s and %s", e.Target, e.A, e.B)
}

// Plan aggregates hooks from the symbol and sidecar scans into
// deterministically ordered patches. Ordering never depends on
// discovery order.
type Plan struct {
	Branches []BranchPatch
	Symptrs  []SymptrPatch

	customText uint32
	groups     map[uint32]*Group
	ordered    []*Group
	seq        int
}

// NewPlan returns an empty plan. customText is where relinked code
// starts; trampolines for targets below it go to the loader region.
func NewPlan(customText uint32) *Plan {
	return &Plan{customText: customText, groups: make(map[uint32]*Group)}
}

// AddSymbol files one symbol hook under its patch semantics.
func (p *Plan) AddSymbol(h SymbolHook) error {
	d := h.Desc
	target, err := ParseAddress(d.Target)
	if err != nil {
		return errors.Wrapf(err, "%s", d.Location())
	}
	c := Call{Hook: h.Addr, Unit: d.Unit, Line: d.Line, Seq: d.Seq}
	switch d.Kind.Class {
	case ClassBranch:
		p.Branches = append(p.Branches, BranchPatch{Desc: d, Target: target, Hook: h.Addr})
	case ClassPre:
		return p.addCall(target, target, c, true, d.Location())
	case ClassPost:
		return p.addCall(target, target, c, false, d.Location())
	case ClassSymptr:
		p.Symptrs = append(p.Symptrs, SymptrPatch{Desc: d, Target: target, Hook: h.Addr})
	default:
		return errors.Errorf("%s: %s hook cannot be a symbol hook", d.Location(), d.Kind.Name)
	}
	return nil
}

// AddSidecarCall files a pre or post call declared in a sidecar hook
// file. Placement follows the hook destination, which is where new code
// normally lives.
func (p *Plan) AddSidecarCall(target, hook uint32, pre bool, file string, line int) error {
	c := Call{Hook: hook, Unit: file, Line: line, Seq: p.seq}
	p.seq++
	return p.addCall(target, hook, c, pre, fmt.Sprintf("%s:%d", file, line))
}

func (p *Plan) addCall(target, placed uint32, c Call, pre bool, origin string) error {
	loader := placed < p.customText
	g := p.groups[target]
	if g == nil {
		g = &Group{Target: target, Loader: loader}
		p.groups[target] = g
	} else if g.Loader != loader {
		return errors.Errorf("%s: pre/post hooks at 0x%x land in different regions", origin, target)
	}
	if pre {
		g.Pre = append(g.Pre, c)
	} else {
		g.Post = append(g.Post, c)
	}
	return nil
}

// Finalize orders every patch list and rejects conflicting hooks. Call
// it once after all hooks are added.
func (p *Plan) Finalize() error {
	sort.SliceStable(p.Branches, func(i, j int) bool {
		a, b := p.Branches[i], p.Branches[j]
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Desc.less(b.Desc)
	})
	for i := 1; i < len(p.Branches); i++ {
		a, b := p.Branches[i-1], p.Branches[i]
		if a.Target == b.Target {
			return &ConflictError{Target: a.Target, A: a.Desc, B: b.Desc}
		}
	}

	sort.SliceStable(p.Symptrs, func(i, j int) bool {
		a, b := p.Symptrs[i], p.Symptrs[j]
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Desc.less(b.Desc)
	})

	p.ordered = make([]*Group, 0, len(p.groups))
	for _, g := range p.groups {
		sort.SliceStable(g.Pre, func(i, j int) bool { return g.Pre[i].less(g.Pre[j]) })
		sort.SliceStable(g.Post, func(i, j int) bool { return g.Post[i].less(g.Post[j]) })
		p.ordered = append(p.ordered, g)
	}
	sort.Slice(p.ordered, func(i, j int) bool { return p.ordered[i].Target < p.ordered[j].Target })
	return nil
}

// Groups returns the trampoline groups in ascending target order.
// Valid after Finalize.
func (p *Plan) Groups() []*Group {
	return p.ordered
}
