package arm

import (
	"encoding/binary"
	"testing"

	"golang.org/x/arch/arm/armasm"
)

func TestParseBranch(t *testing.T) {
	tests := []struct {
		mnemonic string
		cond     Cond
		link     bool
	}{
		{"b", AL, false},
		{"bl", AL, true},
		{"beq", EQ, false},
		{"bne", NE, false},
		{"bhs", CS, false},
		{"blo", CC, false},
		// length decides the split: blt is b.lt, bllt is bl.lt
		{"blt", LT, false},
		{"bllt", LT, true},
		{"bleq", EQ, true},
		{"blle", LE, true},
		{"B", AL, false},
		{"BlEq", EQ, true},
	}
	for _, test := range tests {
		b, err := ParseBranch(test.mnemonic, 0x1000)
		if err != nil {
			t.Errorf("ParseBranch(%#v) failed: %v", test.mnemonic, err)
			continue
		}
		if b.Cond != test.cond || b.Link != test.link || b.From != 0x1000 {
			t.Errorf("ParseBranch(%#v) = %+v", test.mnemonic, b)
		}
	}
	for _, s := range []string{"", "x", "blltx", "mov", "bxx"} {
		if _, err := ParseBranch(s, 0); err == nil {
			t.Errorf("ParseBranch(%#v) should fail", s)
		}
	}
}

func TestEncodeBranch(t *testing.T) {
	tests := []struct {
		name     string
		link     bool
		from, to uint32
		cond     Cond
		ins      uint32
	}{
		{"b 0x2000", false, 0x1000, 0x2000, AL, 0xEA0003FE},
		{"bl 0x2000", true, 0x1000, 0x2000, AL, 0xEB0003FE},
		{"beq self", false, 0x4000, 0x4000, EQ, 0x0AFFFFFE},
		{"b backward", false, 0x2000, 0x1000, AL, 0xEAFFFBFE},
		{"blne 0x1008", true, 0x1000, 0x1008, NE, 0x1B000000},
	}
	for _, test := range tests {
		ins, err := EncodeBranch(test.link, test.from, test.to, test.cond)
		if err != nil {
			t.Errorf("%s: %v", test.name, err)
		} else if ins != test.ins {
			t.Errorf("%s: got 0x%08X, want 0x%08X", test.name, ins, test.ins)
		}
	}

	// range limits
	if _, err := EncodeBranch(false, 0, 0x4000000, AL); err != nil {
		t.Error("forward limit should encode:", err)
	}
	if _, err := EncodeBranch(false, 0, 0x4000008, AL); err == nil {
		t.Error("past forward limit should fail")
	}
	if _, err := EncodeBranch(false, 0x3FFFFF8, 0, AL); err != nil {
		t.Error("backward limit should encode:", err)
	}
	if _, err := EncodeBranch(false, 0x4000000, 0, AL); err == nil {
		t.Error("past backward limit should fail")
	}
}

// decode our encodings with an independent disassembler
func TestEncodeBranchDecode(t *testing.T) {
	tests := []struct {
		link     bool
		from, to uint32
		cond     Cond
		op       string
	}{
		{false, 0x1000, 0x2000, AL, "B"},
		{true, 0x1000, 0x2000, AL, "BL"},
		{false, 0x1000, 0x2000, EQ, "B.EQ"},
		{true, 0x1000, 0x800, LT, "BL.LT"},
		{false, 0x1000, 0x1000, NE, "B.NE"},
	}
	for _, test := range tests {
		word, err := EncodeBranch(test.link, test.from, test.to, test.cond)
		if err != nil {
			t.Fatalf("encode %s: %v", test.op, err)
		}
		var code [4]byte
		binary.LittleEndian.PutUint32(code[:], word)
		inst, err := armasm.Decode(code[:], armasm.ModeARM)
		if err != nil {
			t.Errorf("decode 0x%08X: %v", word, err)
			continue
		}
		if inst.Op.String() != test.op {
			t.Errorf("0x%08X decoded as %v, want %s", word, inst.Op, test.op)
		}
		// armasm PCRel is relative to the instruction address plus 8
		want := armasm.PCRel(int32(test.to) - int32(test.from) - 8)
		if len(inst.Args) == 0 || inst.Args[0] != want {
			t.Errorf("0x%08X decoded args %v, want %v", word, inst.Args, want)
		}
	}
}

func TestPushPop(t *testing.T) {
	if ins := Push(RegsCallerSaved, AL); ins != 0xE92D5FFF { // push {r0-r12, lr}
		t.Errorf("push: got 0x%08X", ins)
	}
	if ins := Pop(RegsCallerSaved, AL); ins != 0xE8BD5FFF { // pop {r0-r12, lr}
		t.Errorf("pop: got 0x%08X", ins)
	}
	if ins := Push(0x4000, EQ); ins != 0x092D4000 { // pusheq {lr}
		t.Errorf("pusheq: got 0x%08X", ins)
	}
}

func TestRelocate(t *testing.T) {
	// non-branch words pass through
	mov := uint32(0xE1A00000) // mov r0, r0
	if ins, err := Relocate(mov, 0x1000, 0x9000); err != nil || ins != mov {
		t.Errorf("mov relocated to 0x%08X, err %v", ins, err)
	}

	// moving a branch re-aims it at the original destination
	b, _ := EncodeBranch(false, 0x1000, 0x2000, AL)
	moved, err := Relocate(b, 0x1000, 0x3000)
	if err != nil {
		t.Fatal("relocate failed:", err)
	}
	want, _ := EncodeBranch(false, 0x3000, 0x2000, AL)
	if moved != want {
		t.Errorf("relocated to 0x%08X, want 0x%08X", moved, want)
	}

	// link and condition bits survive
	bl, _ := EncodeBranch(true, 0x1000, 0x2000, EQ)
	moved, err = Relocate(bl, 0x1000, 0x1800)
	if err != nil {
		t.Fatal("relocate failed:", err)
	}
	want, _ = EncodeBranch(true, 0x1800, 0x2000, EQ)
	if moved != want {
		t.Errorf("relocated to 0x%08X, want 0x%08X", moved, want)
	}

	// backward branch moved forward
	self, _ := EncodeBranch(false, 0x1000, 0x1000, AL) // 0xEAFFFFFE
	moved, err = Relocate(self, 0x1000, 0x1010)
	if err != nil {
		t.Fatal("relocate failed:", err)
	}
	if moved != 0xEAFFFFFA {
		t.Errorf("relocated to 0x%08X, want 0xEAFFFFFA", moved)
	}

	// out of range
	near, _ := EncodeBranch(false, 0, 0x10, AL)
	if _, err := Relocate(near, 0, 0x4000010); err == nil {
		t.Error("far relocation should fail")
	}
}
