package hook

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/RicBent/magwi/arm"
)

// Class groups hook kinds by their patching semantics.
type Class int

const (
	// ClassBranch replaces the instruction at the target with a branch
	// to the hook code.
	ClassBranch Class = iota
	// ClassPre calls the hook before the original instruction runs.
	ClassPre
	// ClassPost calls the hook after the original instruction runs.
	ClassPost
	// ClassSymptr writes the hook symbol's address into the target slot.
	ClassSymptr
	// ClassReplace carries replacement bytes as section content.
	ClassReplace
)

// Kind is one member of the hook taxonomy. Branch kinds carry the
// condition and link bit of the instruction they patch in.
type Kind struct {
	Name  string
	Class Class
	Cond  arm.Cond
	Link  bool
}

// ParseKind parses a kind field. Anything that is not one of the named
// kinds must be a branch mnemonic.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(s)
	switch name {
	case "pre":
		return Kind{Name: name, Class: ClassPre}, nil
	case "post":
		return Kind{Name: name, Class: ClassPost}, nil
	case "symptr":
		return Kind{Name: name, Class: ClassSymptr}, nil
	case "replace":
		return Kind{Name: name, Class: ClassReplace}, nil
	}
	b, err := arm.ParseBranch(name, 0)
	if err != nil {
		return Kind{}, errors.Errorf("invalid hook kind: %#v", s)
	}
	return Kind{Name: name, Class: ClassBranch, Cond: b.Cond, Link: b.Link}, nil
}

// LabelKinds lists every kind the front-end emits as a symbol hook, in
// the order the include header declares them.
func LabelKinds() []Kind {
	conds := []arm.Cond{
		arm.EQ, arm.NE, arm.CS, arm.CC, arm.MI, arm.PL, arm.VS,
		arm.VC, arm.HI, arm.LS, arm.GE, arm.LT, arm.GT, arm.LE,
	}
	kinds := make([]Kind, 0, 2*(len(conds)+1)+3)
	for _, link := range []bool{false, true} {
		name := "b"
		if link {
			name = "bl"
		}
		kinds = append(kinds, Kind{Name: name, Class: ClassBranch, Cond: arm.AL, Link: link})
		for _, cond := range conds {
			kinds = append(kinds, Kind{
				Name:  name + cond.String(),
				Class: ClassBranch,
				Cond:  cond,
				Link:  link,
			})
		}
	}
	return append(kinds,
		Kind{Name: "pre", Class: ClassPre},
		Kind{Name: "post", Class: ClassPost},
		Kind{Name: "symptr", Class: ClassSymptr},
	)
}
