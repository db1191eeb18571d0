package hook

import (
	"testing"

	"github.com/RicBent/magwi/arm"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		s    string
		kind Kind
	}{
		{"pre", Kind{Name: "pre", Class: ClassPre}},
		{"post", Kind{Name: "post", Class: ClassPost}},
		{"symptr", Kind{Name: "symptr", Class: ClassSymptr}},
		{"replace", Kind{Name: "replace", Class: ClassReplace}},
		{"b", Kind{Name: "b", Class: ClassBranch, Cond: arm.AL}},
		{"bl", Kind{Name: "bl", Class: ClassBranch, Cond: arm.AL, Link: true}},
		{"bleq", Kind{Name: "bleq", Class: ClassBranch, Cond: arm.EQ, Link: true}},
		{"blt", Kind{Name: "blt", Class: ClassBranch, Cond: arm.LT}},
		{"Post", Kind{Name: "post", Class: ClassPost}},
	}
	for _, test := range tests {
		kind, err := ParseKind(test.s)
		if err != nil {
			t.Errorf("ParseKind(%#v) failed: %v", test.s, err)
		} else if kind != test.kind {
			t.Errorf("ParseKind(%#v) = %+v", test.s, kind)
		}
	}
	for _, s := range []string{"", "xyz", "br", "preq"} {
		if _, err := ParseKind(s); err == nil {
			t.Errorf("ParseKind(%#v) should fail", s)
		}
	}
}

func TestLabelKinds(t *testing.T) {
	kinds := LabelKinds()
	if len(kinds) != 33 {
		t.Fatal("want 33 label kinds, got", len(kinds))
	}
	if kinds[0].Name != "b" || kinds[15].Name != "bl" || kinds[32].Name != "symptr" {
		t.Errorf("unexpected order: %v %v %v", kinds[0].Name, kinds[15].Name, kinds[32].Name)
	}
	seen := make(map[string]bool)
	for _, kind := range kinds {
		if seen[kind.Name] {
			t.Error("duplicate kind:", kind.Name)
		}
		seen[kind.Name] = true
		parsed, err := ParseKind(kind.Name)
		if err != nil {
			t.Errorf("ParseKind(%#v) failed: %v", kind.Name, err)
		} else if parsed != kind {
			t.Errorf("ParseKind(%#v) = %+v, want %+v", kind.Name, parsed, kind)
		}
	}
}
