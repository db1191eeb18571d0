package objfile

import (
	"bytes"
	"debug/elf"
	"io"
	"os"

	"github.com/pkg/errors"
)

var elfMagic = []byte{0x7f, 0x45, 0x4c, 0x46}

// Match reports whether r starts with an ELF header.
func Match(r io.ReaderAt) bool {
	magic := make([]byte, 4)
	if _, err := r.ReadAt(magic, 0); err != nil {
		return false
	}
	return bytes.Equal(magic, elfMagic)
}

// Section is one named section of the file.
type Section struct {
	Name string
	Addr uint32
	Size uint32

	sec *elf.Section
}

// Data returns the section contents.
func (s *Section) Data() ([]byte, error) {
	data, err := s.sec.Data()
	return data, errors.Wrapf(err, "reading section %s failed", s.Name)
}

// Symbol is one symbol table entry.
type Symbol struct {
	Name string
	Addr uint32
}

// File wraps an object file or linked executable for scanning. Only
// little endian 32-bit ARM files are accepted, which is everything the
// cross toolchain emits.
type File struct {
	file *elf.File
}

// New parses an ELF file from memory.
func New(r io.ReaderAt) (*File, error) {
	file, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing ELF failed")
	}
	if file.Class != elf.ELFCLASS32 {
		return nil, errors.Errorf("unsupported ELF class: %s", file.Class)
	}
	if file.Data != elf.ELFDATA2LSB {
		return nil, errors.Errorf("unsupported byte order: %s", file.Data)
	}
	if file.Machine != elf.EM_ARM {
		return nil, errors.Errorf("unsupported machine: %s", file.Machine)
	}
	return &File{file: file}, nil
}

// Open reads and parses the file at path.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s failed", path)
	}
	f, err := New(bytes.NewReader(data))
	return f, errors.Wrapf(err, "%s", path)
}

// Sections lists every section in file order.
func (f *File) Sections() []*Section {
	out := make([]*Section, 0, len(f.file.Sections))
	for _, sec := range f.file.Sections {
		out = append(out, &Section{
			Name: sec.Name,
			Addr: uint32(sec.Addr),
			Size: uint32(sec.Size),
			sec:  sec,
		})
	}
	return out
}

// Section returns the named section, or nil when absent.
func (f *File) Section(name string) *Section {
	for _, sec := range f.Sections() {
		if sec.Name == name {
			return sec
		}
	}
	return nil
}

// Symbols returns the named entries of the symbol table.
func (f *File) Symbols() ([]Symbol, error) {
	syms, err := f.file.Symbols()
	if err != nil {
		return nil, errors.Wrap(err, "reading symbol table failed")
	}
	out := make([]Symbol, 0, len(syms))
	for _, sym := range syms {
		if sym.Name == "" {
			continue
		}
		out = append(out, Symbol{Name: sym.Name, Addr: uint32(sym.Value)})
	}
	return out, nil
}
