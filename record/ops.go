package record

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

var order = binary.LittleEndian

const (
	OP_NOP = iota
	OP_WRITE
	OP_EXTRA
	OP_RESIZE
)

type Op interface {
	Pack(w io.Writer) (int, error)
	Unpack(r io.Reader) (int, error)
}

func Pack(w io.Writer, op Op) (int, error) {
	var tmp [1]byte
	switch op.(type) {
	case *OpNop:
		tmp[0] = OP_NOP
	case *OpWrite:
		tmp[0] = OP_WRITE
	case *OpExtra:
		tmp[0] = OP_EXTRA
	case *OpResize:
		tmp[0] = OP_RESIZE
	default:
		return 0, errors.Errorf("unknown op type: %T", op)
	}
	total, err := w.Write(tmp[:])
	if err != nil {
		return total, err
	}
	n, err := op.Pack(w)
	return total + n, err
}

func Unpack(r io.Reader) (Op, int, error) {
	var tmp [1]byte
	if _, err := r.Read(tmp[:]); err != nil {
		return nil, 0, err
	}
	var op Op
	switch tmp[0] {
	case OP_NOP:
		op = &OpNop{}
	case OP_WRITE:
		op = &OpWrite{}
	case OP_EXTRA:
		op = &OpExtra{}
	case OP_RESIZE:
		op = &OpResize{}
	default:
		return nil, 0, errors.Errorf("unknown op: %d", tmp[0])
	}
	n, err := op.Unpack(r)
	return op, n + 1, err
}

type OpNop struct{}

func (o *OpNop) Pack(w io.Writer) (int, error)   { return 0, nil }
func (o *OpNop) Unpack(r io.Reader) (int, error) { return 0, nil }

// OpWrite is one patched span in the base image.
type OpWrite struct {
	Addr   uint32
	Data   []byte
	Reason string
}

func (o *OpWrite) Pack(w io.Writer) (int, error) {
	reason := []byte(o.Reason)
	var tmp [4 + 4 + 2]byte
	order.PutUint32(tmp[:], o.Addr)
	order.PutUint32(tmp[4:], uint32(len(o.Data)))
	order.PutUint16(tmp[8:], uint16(len(reason)))
	total, err := w.Write(tmp[:])
	if err != nil {
		return total, err
	}
	if n, err := w.Write(o.Data); err != nil {
		return total + n, err
	} else {
		total += n
	}
	n, err := w.Write(reason)
	return total + n, err
}

func (o *OpWrite) Unpack(r io.Reader) (int, error) {
	var tmp [4 + 4 + 2]byte
	total, err := io.ReadFull(r, tmp[:])
	if err == nil {
		o.Addr = order.Uint32(tmp[:])
		dlen := order.Uint32(tmp[4:])
		rlen := order.Uint16(tmp[8:])
		o.Data = make([]byte, dlen)
		if n, err := io.ReadFull(r, o.Data); err != nil {
			return total + n, err
		} else {
			total += n
		}
		buf := make([]byte, rlen)
		n, err := io.ReadFull(r, buf)
		total += n
		if err != nil {
			return total, err
		}
		o.Reason = string(buf)
	}
	return total, err
}

// OpExtra is a block placed outside the original image. Pos matches
// image.ExtraPos.
type OpExtra struct {
	Pos  uint8
	Addr uint32
	Size uint32
}

func (o *OpExtra) Pack(w io.Writer) (int, error) {
	var tmp [1 + 4 + 4]byte
	tmp[0] = o.Pos
	order.PutUint32(tmp[1:], o.Addr)
	order.PutUint32(tmp[5:], o.Size)
	return w.Write(tmp[:])
}

func (o *OpExtra) Unpack(r io.Reader) (int, error) {
	var tmp [1 + 4 + 4]byte
	n, err := io.ReadFull(r, tmp[:])
	if err == nil {
		o.Pos = tmp[0]
		o.Addr = order.Uint32(tmp[1:])
		o.Size = order.Uint32(tmp[5:])
	}
	return n, err
}

// OpResize is the final end address of the code image.
type OpResize struct {
	End uint32
}

func (o *OpResize) Pack(w io.Writer) (int, error) {
	var tmp [4]byte
	order.PutUint32(tmp[:], o.End)
	return w.Write(tmp[:])
}

func (o *OpResize) Unpack(r io.Reader) (int, error) {
	var tmp [4]byte
	n, err := io.ReadFull(r, tmp[:])
	if err == nil {
		o.End = order.Uint32(tmp[:])
	}
	return n, err
}
