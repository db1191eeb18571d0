package record

import (
	"bytes"
	"io"
	"reflect"
	"testing"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func TestFileRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(nopCloser{&buf}, 0x100000, 0x1E000)
	if err != nil {
		t.Fatal(err)
	}
	for _, op := range testOps {
		if err := w.Pack(op); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(io.NopCloser(bytes.NewReader(buf.Bytes())))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Header.Version != 1 || r.Header.Base != 0x100000 || r.Header.Size != 0x1E000 {
		t.Fatalf("bad header: %+v", r.Header)
	}
	for i, want := range testOps {
		op, err := r.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(op, want) {
			t.Errorf("op %d: got %#v, want %#v", i, op, want)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected EOF at end of stream, got %v", err)
	}
}

func TestBadMagic(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(nopCloser{&buf}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	w.Close()
	blob := buf.Bytes()
	copy(blob, "UCIR")
	if _, err := NewReader(io.NopCloser(bytes.NewReader(blob))); err == nil {
		t.Error("expected an error for a bad magic")
	}
}
