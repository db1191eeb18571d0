package arm

import (
	"strings"

	"github.com/pkg/errors"
)

// RegsCallerSaved is r0-r12 and lr, the set preserved around injected calls.
const RegsCallerSaved = 0x5FFF

// Branch describes a b/bl instruction placed at From.
type Branch struct {
	Cond Cond
	Link bool
	From uint32
}

// ParseBranch parses a branch mnemonic ("b", "bl", "beq", "bllt", ...).
// Length decides the split: 1/3 chars is b+cond, 2/4 chars is bl+cond,
// so "blt" is b.lt and "bllt" is bl.lt.
func ParseBranch(mnemonic string, from uint32) (Branch, error) {
	s := strings.ToLower(mnemonic)
	switch len(s) {
	case 1, 3:
		if strings.HasPrefix(s, "b") {
			cond, err := ParseCond(s[1:])
			if err != nil {
				return Branch{}, err
			}
			return Branch{Cond: cond, Link: false, From: from}, nil
		}
	case 2, 4:
		if strings.HasPrefix(s, "bl") {
			cond, err := ParseCond(s[2:])
			if err != nil {
				return Branch{}, err
			}
			return Branch{Cond: cond, Link: true, From: from}, nil
		}
	}
	return Branch{}, errors.Errorf("invalid branch: %#v", mnemonic)
}

// Encode builds the instruction word for a branch to the given address.
// The 24-bit offset is in words and accounts for the two-word prefetch.
func (b Branch) Encode(to uint32) (uint32, error) {
	offset := int64(to)/4 - int64(b.From)/4 - 2
	if offset < -0x1000000 || offset > 0xFFFFFF {
		return 0, errors.Errorf("branch from 0x%x to 0x%x is out of range", b.From, to)
	}
	ins := uint32(0b101) << 25
	ins |= uint32(b.Cond) << 28
	if b.Link {
		ins |= 1 << 24
	}
	ins |= uint32(offset) & 0xFFFFFF
	return ins, nil
}

// EncodeBranch is Branch{...}.Encode in one call.
func EncodeBranch(link bool, from, to uint32, cond Cond) (uint32, error) {
	return Branch{Cond: cond, Link: link, From: from}.Encode(to)
}

// Push encodes push {regs} (stmdb sp!, {regs}).
func Push(regs uint16, cond Cond) uint32 {
	return 0x092D0000 | uint32(cond)<<28 | uint32(regs)
}

// Pop encodes pop {regs} (ldmia sp!, {regs}).
func Pop(regs uint16, cond Cond) uint32 {
	return 0x08BD0000 | uint32(cond)<<28 | uint32(regs)
}

// Relocate adjusts an instruction word moved from src to dst. Only b/bl
// words (top nybble 0xA/0xB after the condition) are position dependent;
// anything else passes through unchanged.
func Relocate(ins, src, dst uint32) (uint32, error) {
	nybble := (ins >> 24) & 0xF
	if nybble != 0xA && nybble != 0xB {
		return ins, nil
	}
	oldOffset := (int64(ins&0xFFFFFF) + 2) * 4
	dest := int64(src) + oldOffset
	newOffset := dest/4 - int64(dst)/4 - 2
	if newOffset < -0x1000000 || newOffset > 0xFFFFFF {
		return 0, errors.Errorf("relocating branch from 0x%x to 0x%x puts 0x%x out of range", src, dst, dest)
	}
	return ins&0xFF000000 | uint32(newOffset)&0xFFFFFF, nil
}
