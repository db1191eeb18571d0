package exheader

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// testBlob lays out a plausible header by hand, so field offsets are
// checked against the format and not against our own codec.
func testBlob() []byte {
	blob := make([]byte, Size)
	le := binary.LittleEndian

	copy(blob[0:], "patchme")
	blob[8] = 1                               // flags
	le.PutUint16(blob[14:], 2)                // remaster version
	le.PutUint32(blob[16:], 0x100000)         // text addr
	le.PutUint32(blob[20:], 0x10)             // text pages
	le.PutUint32(blob[24:], 0xF800)           // text size
	le.PutUint32(blob[28:], 0x8000)           // stack size
	le.PutUint32(blob[32:], 0x110000)         // rodata addr
	le.PutUint32(blob[36:], 4)                // rodata pages
	le.PutUint32(blob[40:], 0x3210)           // rodata size
	le.PutUint32(blob[48:], 0x114000)         // data addr
	le.PutUint32(blob[52:], 8)                // data pages
	le.PutUint32(blob[56:], 0x7C00)           // data size
	le.PutUint32(blob[60:], 0x1800)           // bss size
	le.PutUint64(blob[64:], 0x0004013000008002) // first dependency
	le.PutUint64(blob[448:], 0x80000)         // save data size
	le.PutUint64(blob[456:], 0x0004000000030800) // jump id
	for i := 0x200; i < Size; i++ {
		blob[i] = byte(i)
	}
	return blob
}

func TestRead(t *testing.T) {
	eh, err := Read(bytes.NewReader(testBlob()))
	if err != nil {
		t.Fatal("read failed:", err)
	}
	sci := &eh.SCI
	if got := string(sci.Name[:7]); got != "patchme" {
		t.Errorf("bad name: %#v", got)
	}
	if sci.Remaster != 2 || sci.StackSize != 0x8000 {
		t.Errorf("bad scalars: %+v", sci)
	}
	if sci.Text != (CodeSection{Addr: 0x100000, Pages: 0x10, Size: 0xF800}) {
		t.Errorf("bad text section: %+v", sci.Text)
	}
	if sci.Rodata != (CodeSection{Addr: 0x110000, Pages: 4, Size: 0x3210}) {
		t.Errorf("bad rodata section: %+v", sci.Rodata)
	}
	if sci.Data != (CodeSection{Addr: 0x114000, Pages: 8, Size: 0x7C00}) {
		t.Errorf("bad data section: %+v", sci.Data)
	}
	if sci.BssSize != 0x1800 || sci.Dependencies[0] != 0x0004013000008002 {
		t.Errorf("bad fields: %+v", sci)
	}
	if sci.SaveDataSize != 0x80000 || sci.JumpID != 0x0004000000030800 {
		t.Errorf("bad fields: %+v", sci)
	}
	if eh.ACI.Raw[0] != 0x00 || eh.ACI.Raw[1] != 0x01 {
		t.Errorf("ACI misaligned: % x", eh.ACI.Raw[:4])
	}
	if eh.AccessDesc.Signature[0] != 0x00 {
		t.Errorf("access desc misaligned: % x", eh.AccessDesc.Signature[:4])
	}
}

func TestDerivedAddresses(t *testing.T) {
	eh, err := Read(bytes.NewReader(testBlob()))
	if err != nil {
		t.Fatal("read failed:", err)
	}
	if addr := eh.LoaderAddr(); addr != 0x10F800 {
		t.Errorf("loader addr 0x%x", addr)
	}
	if max := eh.LoaderMax(); max != 0x800 {
		t.Errorf("loader max 0x%x", max)
	}
	if addr := eh.CustomTextAddr(); addr != 0x11D800 {
		t.Errorf("custom text addr 0x%x", addr)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	blob := testBlob()
	eh, err := Read(bytes.NewReader(blob))
	if err != nil {
		t.Fatal("read failed:", err)
	}
	var out bytes.Buffer
	if err := eh.Write(&out); err != nil {
		t.Fatal("write failed:", err)
	}
	if !bytes.Equal(out.Bytes(), blob) {
		t.Error("write is not byte identical")
	}
}

func TestPatch(t *testing.T) {
	eh, err := Read(bytes.NewReader(testBlob()))
	if err != nil {
		t.Fatal("read failed:", err)
	}
	eh.Patch(0x120000)
	if eh.SCI.Text.Size != 0x10000 {
		t.Errorf("text size 0x%x", eh.SCI.Text.Size)
	}
	if eh.SCI.Data.Size != 0xC000 || eh.SCI.Data.Pages != 0xC {
		t.Errorf("data section %+v", eh.SCI.Data)
	}
	if eh.SCI.BssSize != 0 {
		t.Errorf("bss size 0x%x", eh.SCI.BssSize)
	}
	// everything else stays put
	if eh.SCI.Rodata != (CodeSection{Addr: 0x110000, Pages: 4, Size: 0x3210}) {
		t.Errorf("rodata changed: %+v", eh.SCI.Rodata)
	}
	var out bytes.Buffer
	if err := eh.Write(&out); err != nil {
		t.Fatal("write failed:", err)
	}
	if !bytes.Equal(out.Bytes()[0x200:], testBlob()[0x200:]) {
		t.Error("patch leaked outside the SCI")
	}
}

func TestPageMath(t *testing.T) {
	rounds := map[uint32]uint32{
		0:      0,
		1:      0x1000,
		0x1000: 0x1000,
		0x1001: 0x2000,
		0xFFF:  0x1000,
	}
	for v, want := range rounds {
		if got := RoundToPage(v); got != want {
			t.Errorf("RoundToPage(0x%x) = 0x%x, want 0x%x", v, got, want)
		}
	}
	counts := map[uint32]uint32{
		0:      0,
		1:      1,
		0x1000: 1,
		0x1001: 2,
	}
	for v, want := range counts {
		if got := PageCount(v); got != want {
			t.Errorf("PageCount(0x%x) = %d, want %d", v, got, want)
		}
	}
}
