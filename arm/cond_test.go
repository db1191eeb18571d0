package arm

import "testing"

func TestParseCond(t *testing.T) {
	valid := map[string]Cond{
		"eq": EQ, "ne": NE,
		"cs": CS, "hs": CS,
		"cc": CC, "lo": CC,
		"mi": MI, "pl": PL, "vs": VS, "vc": VC,
		"hi": HI, "ls": LS, "ge": GE, "lt": LT,
		"gt": GT, "le": LE, "al": AL, "nv": NV,
		"": AL,
		// case insensitive
		"EQ": EQ, "Ne": NE, "cS": CS,
	}
	for s, want := range valid {
		cond, err := ParseCond(s)
		if err != nil {
			t.Errorf("ParseCond(%#v) failed: %v", s, err)
		} else if cond != want {
			t.Errorf("ParseCond(%#v) = %v, want %v", s, cond, want)
		}
	}
	for _, s := range []string{"xyz", "e", "eqx"} {
		if _, err := ParseCond(s); err == nil {
			t.Errorf("ParseCond(%#v) should fail", s)
		}
	}
}

func TestCondString(t *testing.T) {
	if EQ.String() != "eq" || AL.String() != "al" || NV.String() != "nv" {
		t.Error("bad condition names")
	}
	if Cond(0x20).String() != "??" {
		t.Error("out of range condition should print ??")
	}
}
