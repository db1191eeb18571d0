package arm

import (
	"strings"

	"github.com/pkg/errors"
)

// Cond is an ARM condition code as encoded in bits 28-31 of an instruction.
type Cond uint8

const (
	EQ Cond = 0x0
	NE Cond = 0x1
	CS Cond = 0x2
	CC Cond = 0x3
	MI Cond = 0x4
	PL Cond = 0x5
	VS Cond = 0x6
	VC Cond = 0x7
	HI Cond = 0x8
	LS Cond = 0x9
	GE Cond = 0xA
	LT Cond = 0xB
	GT Cond = 0xC
	LE Cond = 0xD
	AL Cond = 0xE
	NV Cond = 0xF
)

var condNames = map[Cond]string{
	EQ: "eq", NE: "ne", CS: "cs", CC: "cc",
	MI: "mi", PL: "pl", VS: "vs", VC: "vc",
	HI: "hi", LS: "ls", GE: "ge", LT: "lt",
	GT: "gt", LE: "le", AL: "al", NV: "nv",
}

// includes the hs/lo aliases and the bare suffix for AL
var condValues = map[string]Cond{
	"eq": EQ, "ne": NE,
	"cs": CS, "hs": CS,
	"cc": CC, "lo": CC,
	"mi": MI, "pl": PL, "vs": VS, "vc": VC,
	"hi": HI, "ls": LS, "ge": GE, "lt": LT,
	"gt": GT, "le": LE, "al": AL, "nv": NV,
	"": AL,
}

func (c Cond) String() string {
	if s, ok := condNames[c]; ok {
		return s
	}
	return "??"
}

func ParseCond(s string) (Cond, error) {
	if c, ok := condValues[strings.ToLower(s)]; ok {
		return c, nil
	}
	return AL, errors.Errorf("invalid condition: %#v", s)
}
