package image

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// ExtraPos picks where a new code block lands.
type ExtraPos int

const (
	// Loader places the block in the reserved loader region.
	Loader ExtraPos = iota
	// Tail appends the block to the image.
	Tail
)

func (p ExtraPos) String() string {
	if p == Loader {
		return "loader"
	}
	return "tail"
}

// Span is one recorded absolute write.
type Span struct {
	Addr   uint32
	Size   uint32
	Reason string
}

// Block is one placed extra code block.
type Block struct {
	Pos    ExtraPos
	Addr   uint32
	Size   uint32
	Reason string
}

// BoundsError reports an access outside the image.
type BoundsError struct {
	Write bool
	Addr  uint32
	Size  int
}

func (e *BoundsError) Error() string {
	op := "read"
	if e.Write {
		op = "write"
	}
	return fmt.Sprintf("out of bounds %s at 0x%x with size 0x%x", op, e.Addr, e.Size)
}

// DuplicateError reports two writes touching the same bytes. Reason
// names the rejected write, Prev the one already applied.
type DuplicateError struct {
	Addr   uint32
	Size   int
	Reason string
	Prev   string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate write at 0x%x with size 0x%x: %s collides with %s",
		e.Addr, e.Size, e.Reason, e.Prev)
}

// ResizeError reports a resize below the image base.
type ResizeError struct {
	Addr uint32
}

func (e *ResizeError) Error() string {
	return fmt.Sprintf("resize below base address: 0x%x", e.Addr)
}

// ErrNoLoaderCursor means a loader block was requested before the
// loader region was located.
var ErrNoLoaderCursor = errors.New("loader extra address not set")

// Writer patches a code image held in memory. Absolute writes are
// bounds checked and recorded, so two patches fighting over the same
// bytes surface as an error instead of silently losing one.
type Writer struct {
	base uint32
	buf  []byte

	loader    uint32
	hasLoader bool

	spans  []Span // sorted by Addr
	blocks []Block
}

// New wraps an image loaded at base.
func New(base uint32, data []byte) *Writer {
	return &Writer{base: base, buf: data}
}

// Base returns the image load address.
func (w *Writer) Base() uint32 {
	return w.base
}

// End returns the address one past the image.
func (w *Writer) End() uint32 {
	return w.base + uint32(len(w.buf))
}

// Data returns the image contents.
func (w *Writer) Data() []byte {
	return w.buf
}

// Spans returns every recorded write in ascending address order.
func (w *Writer) Spans() []Span {
	return w.spans
}

// Blocks returns every placed extra block in placement order.
func (w *Writer) Blocks() []Block {
	return w.blocks
}

// SetLoaderCursor sets where the next loader block goes.
func (w *Writer) SetLoaderCursor(addr uint32) {
	w.loader = addr
	w.hasLoader = true
}

// Read copies len(p) bytes at addr into p.
func (w *Writer) Read(addr uint32, p []byte) error {
	if addr < w.base || uint64(addr-w.base)+uint64(len(p)) > uint64(len(w.buf)) {
		return &BoundsError{Addr: addr, Size: len(p)}
	}
	copy(p, w.buf[addr-w.base:])
	return nil
}

// ReadWord reads a little endian word at addr.
func (w *Writer) ReadWord(addr uint32) (uint32, error) {
	var p [4]byte
	if err := w.Read(addr, p[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p[:]), nil
}

func (w *Writer) overlap(addr, size uint32) *Span {
	// the only candidate is the last span starting below addr+size
	i := sort.Search(len(w.spans), func(i int) bool {
		return w.spans[i].Addr >= addr+size
	})
	if i > 0 {
		s := &w.spans[i-1]
		if s.Addr+s.Size > addr {
			return s
		}
	}
	return nil
}

func (w *Writer) insertSpan(s Span) {
	i := sort.Search(len(w.spans), func(i int) bool {
		return w.spans[i].Addr >= s.Addr
	})
	w.spans = append(w.spans, Span{})
	copy(w.spans[i+1:], w.spans[i:])
	w.spans[i] = s
}

// Write patches len(p) bytes at addr and records the span under reason.
func (w *Writer) Write(addr uint32, p []byte, reason string) error {
	if addr < w.base || uint64(addr-w.base)+uint64(len(p)) > uint64(len(w.buf)) {
		return &BoundsError{Write: true, Addr: addr, Size: len(p)}
	}
	if prev := w.overlap(addr, uint32(len(p))); prev != nil {
		return &DuplicateError{Addr: addr, Size: len(p), Reason: reason, Prev: prev.Reason}
	}
	copy(w.buf[addr-w.base:], p)
	w.insertSpan(Span{Addr: addr, Size: uint32(len(p)), Reason: reason})
	return nil
}

// WriteWord patches a little endian word at addr.
func (w *Writer) WriteWord(addr, word uint32, reason string) error {
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], word)
	return w.Write(addr, p[:], reason)
}

// Append adds data at the image end.
func (w *Writer) Append(p []byte) {
	w.buf = append(w.buf, p...)
}

// AppendWord adds a little endian word at the image end.
func (w *Writer) AppendWord(word uint32) {
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], word)
	w.Append(p[:])
}

// Extra builds a block of new code and places it. The block writer's
// base is the block's final address, so branches can be encoded against
// it while building. Loader blocks are written at the loader cursor and
// advance it; tail blocks append to the image.
func (w *Writer) Extra(pos ExtraPos, reason string, fn func(x *Writer) error) error {
	var addr uint32
	switch pos {
	case Loader:
		if !w.hasLoader {
			return ErrNoLoaderCursor
		}
		addr = w.loader
	case Tail:
		addr = w.End()
	}

	x := New(addr, nil)
	if err := fn(x); err != nil {
		return err
	}

	switch pos {
	case Loader:
		if err := w.Write(addr, x.buf, reason); err != nil {
			return err
		}
		w.loader = addr + uint32(len(x.buf))
	case Tail:
		w.Append(x.buf)
	}
	w.blocks = append(w.blocks, Block{Pos: pos, Addr: addr, Size: uint32(len(x.buf)), Reason: reason})
	return nil
}

// Resize grows or shrinks the image to end at the given address. New
// bytes are zero.
func (w *Writer) Resize(end uint32) error {
	if end < w.base {
		return &ResizeError{Addr: end}
	}
	size := int(end - w.base)
	if size <= len(w.buf) {
		w.buf = w.buf[:size]
		return nil
	}
	w.buf = append(w.buf, make([]byte, size-len(w.buf))...)
	return nil
}
