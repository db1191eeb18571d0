package exheader

import (
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// PageSize is the mapping granularity of code sections.
const PageSize = 0x1000

// Size is the on-disk size of an extended header.
const Size = 0x800

var strucOptions = &struc.Options{Order: binary.LittleEndian}

// CodeSection locates one region of the code binary.
type CodeSection struct {
	Addr  uint32
	Pages uint32
	Size  uint32
}

// SCI is the system control info half of the header: process name,
// code section layout and save data sizes.
type SCI struct {
	Name         [8]byte
	Flags        [6]byte
	Remaster     uint16
	Text         CodeSection
	StackSize    uint32
	Rodata       CodeSection
	Reserved1    [4]byte
	Data         CodeSection
	BssSize      uint32
	Dependencies [48]uint64
	SaveDataSize uint64
	JumpID       uint64
	Reserved2    [48]byte
}

// ACI is an access control blob. Patching never touches it.
type ACI struct {
	Raw [0x200]byte
}

// AccessDesc is the signed access descriptor.
type AccessDesc struct {
	Signature   [0x100]byte
	NCCHModulus [0x100]byte
	ACI         ACI
}

// Exheader is a 3DS extended header.
type Exheader struct {
	SCI        SCI
	ACI        ACI
	AccessDesc AccessDesc
}

// Read parses an extended header.
func Read(r io.Reader) (*Exheader, error) {
	eh := &Exheader{}
	if err := struc.UnpackWithOptions(r, eh, strucOptions); err != nil {
		return nil, errors.Wrap(err, "unpacking exheader failed")
	}
	return eh, nil
}

// Write serializes the header.
func (eh *Exheader) Write(w io.Writer) error {
	return errors.Wrap(struc.PackWithOptions(w, eh, strucOptions), "packing exheader failed")
}

// LoaderAddr is where loader code goes, right after the original text.
func (eh *Exheader) LoaderAddr() uint32 {
	return eh.SCI.Text.Addr + eh.SCI.Text.Size
}

// LoaderMax is how many bytes fit between the text end and the end of
// its last mapped page.
func (eh *Exheader) LoaderMax() uint32 {
	return eh.SCI.Text.Pages*PageSize - eh.SCI.Text.Size
}

// CustomTextAddr is where newly linked code starts, past the mapped
// data pages and the bss.
func (eh *Exheader) CustomTextAddr() uint32 {
	return eh.SCI.Data.Addr + eh.SCI.Data.Pages*PageSize + eh.SCI.BssSize
}

// Patch updates the header for a built image ending at end. The text
// section rounds out to its mapped pages, the data section absorbs
// everything up to end, and the bss folds into data.
func (eh *Exheader) Patch(end uint32) {
	eh.SCI.Text.Size = eh.SCI.Text.Pages * PageSize
	eh.SCI.Data.Size = end - eh.SCI.Data.Addr
	eh.SCI.Data.Pages = PageCount(eh.SCI.Data.Size)
	eh.SCI.BssSize = 0
}

// RoundToPage rounds v up to the next page boundary.
func RoundToPage(v uint32) uint32 {
	return (v + PageSize - 1) &^ (PageSize - 1)
}

// PageCount returns the pages needed to hold v bytes.
func PageCount(v uint32) uint32 {
	return RoundToPage(v) / PageSize
}
