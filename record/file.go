package record

import (
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

var RECORD_MAGIC = "MWPR"

var strucOptions = &struc.Options{Order: binary.LittleEndian}

type Header struct {
	// MAGIC ("MWPR")
	Magic string `struc:"[4]byte"`
	// file format version
	Version uint32

	// base address and size of the original code image
	Base uint32
	Size uint32
}

type Writer struct {
	w, zw io.WriteCloser
}

func NewWriter(w io.WriteCloser, base, size uint32) (*Writer, error) {
	header := &Header{
		Magic:   RECORD_MAGIC,
		Version: 1,
		Base:    base,
		Size:    size,
	}
	if err := struc.PackWithOptions(w, header, strucOptions); err != nil {
		return nil, errors.Wrap(err, "failed to pack header")
	}
	zw := snappy.NewBufferedWriter(w)
	return &Writer{w: w, zw: zw}, nil
}

// write an op at a time
func (t *Writer) Pack(op Op) error {
	_, err := Pack(t.zw, op)
	return err
}

func (t *Writer) Close() error {
	if err := t.zw.Close(); err != nil {
		t.w.Close()
		return err
	}
	return t.w.Close()
}

type Reader struct {
	r      io.ReadCloser
	zr     *snappy.Reader
	Header Header
}

func NewReader(r io.ReadCloser) (*Reader, error) {
	t := &Reader{r: r}
	if err := struc.UnpackWithOptions(r, &t.Header, strucOptions); err != nil {
		return nil, errors.Wrap(err, "failed to unpack header")
	}
	if t.Header.Magic != RECORD_MAGIC {
		return nil, errors.New("invalid record file magic")
	}
	t.zr = snappy.NewReader(r)
	return t, nil
}

func (t *Reader) Next() (Op, error) {
	op, _, err := Unpack(t.zr)
	return op, err
}

func (t *Reader) Close() {
	t.zr.Reset(nil)
	t.r.Close()
}
