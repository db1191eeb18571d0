package hook

import (
	"encoding/base32"
	"unicode/utf8"
)

var unitEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// UnitID encodes a source path as a symbol-safe unit identifier.
func UnitID(path string) string {
	return unitEncoding.EncodeToString([]byte(path))
}

// UnitPath decodes a unit identifier back to the path it was built
// from. Ids that do not decode come back unchanged, so hand-written
// units still display.
func UnitPath(id string) string {
	data, err := unitEncoding.DecodeString(id)
	if err != nil || !utf8.Valid(data) {
		return id
	}
	return string(data)
}

// Unit tracks per-unit emission state. The counter advances on every
// hook regardless of kind, so two hooks on one line never share a name.
type Unit struct {
	ID   string
	next int
}

// NewUnit returns emission state for one compilation unit.
func NewUnit(path string) *Unit {
	return &Unit{ID: UnitID(path)}
}

// Hook emits the next descriptor for this unit.
func (u *Unit) Hook(kind Kind, target string, line int) *Descriptor {
	d := &Descriptor{Kind: kind, Target: target, Unit: u.ID, Line: line, Seq: u.next}
	u.next++
	return d
}
