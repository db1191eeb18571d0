package hook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// SymbolPrefix starts every symbol-encoded hook name.
	SymbolPrefix = "__mw_hook_"
	// SectionPrefix starts every section-encoded hook name.
	SectionPrefix = ".__mw_hook_"
	// LoaderSection collects bootstrap code across all units.
	LoaderSection = ".mw_loader_text"

	// Version is the trailing tag on symbol hooks, reserved for grammar
	// changes.
	Version = 0
)

// ErrBadPrefix marks a name that is not a hook name at all. Scanners
// skip those instead of failing.
var ErrBadPrefix = errors.New("not a hook name")

// Descriptor identifies a single hook invocation. Target stays textual
// here; planning resolves it to an address.
type Descriptor struct {
	Kind   Kind
	Target string
	Unit   string
	Line   int
	Seq    int
}

// Symbol renders the name used for label hooks.
func (d Descriptor) Symbol() string {
	return fmt.Sprintf("%s%s$%s$%s$%d$%d@%d",
		SymbolPrefix, d.Kind.Name, d.Target, d.Unit, d.Line, d.Seq, Version)
}

// Section renders the name used for payload hooks. Section names carry
// no version tag.
func (d Descriptor) Section() string {
	return fmt.Sprintf("%s%s$%s$%s$%d$%d",
		SectionPrefix, d.Kind.Name, d.Target, d.Unit, d.Line, d.Seq)
}

// Location renders the declaring source position for diagnostics.
func (d Descriptor) Location() string {
	return fmt.Sprintf("%s:%d", UnitPath(d.Unit), d.Line)
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s$%s (%s)", d.Kind.Name, d.Target, d.Location())
}

var fieldNames = []string{"kind", "target", "unit", "line", "seq"}

func parseDescriptor(s string) (*Descriptor, error) {
	if s == "" {
		return nil, errors.New("missing kind field")
	}
	fields := strings.Split(s, "$")
	if len(fields) < len(fieldNames) {
		return nil, errors.Errorf("missing %s field", fieldNames[len(fields)])
	}
	if len(fields) > len(fieldNames) {
		return nil, errors.New("too many fields")
	}

	kind, err := ParseKind(fields[0])
	if err != nil {
		return nil, err
	}
	line, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return nil, errors.Errorf("invalid line: %#v", fields[3])
	}
	seq, err := strconv.ParseUint(fields[4], 10, 32)
	if err != nil {
		return nil, errors.Errorf("invalid seq: %#v", fields[4])
	}

	return &Descriptor{
		Kind:   kind,
		Target: fields[1],
		Unit:   fields[2],
		Line:   int(line),
		Seq:    int(seq),
	}, nil
}

// ParseSymbol parses a hook descriptor from a symbol name. Everything
// from the last @ on is the version tag and is ignored.
func ParseSymbol(name string) (*Descriptor, error) {
	if !strings.HasPrefix(name, SymbolPrefix) {
		return nil, ErrBadPrefix
	}
	s := name[len(SymbolPrefix):]
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[:i]
	}
	d, err := parseDescriptor(s)
	if err != nil {
		return nil, errors.Wrapf(err, "bad hook symbol %#v", name)
	}
	return d, nil
}

// ParseSection parses a hook descriptor from a section name.
func ParseSection(name string) (*Descriptor, error) {
	if !strings.HasPrefix(name, SectionPrefix) {
		return nil, ErrBadPrefix
	}
	d, err := parseDescriptor(name[len(SectionPrefix):])
	if err != nil {
		return nil, errors.Wrapf(err, "bad hook section %#v", name)
	}
	return d, nil
}
