package arm

import (
	ks "github.com/keystone-engine/keystone/bindings/go/keystone"
	"github.com/pkg/errors"
)

// Assembler wraps keystone for textual patches. Thumb selects the
// instruction set; the engine is opened lazily on first use.
type Assembler struct {
	Thumb bool
	ks    *ks.Keystone
}

func (a *Assembler) Open() (err error) {
	mode := ks.MODE_ARM
	if a.Thumb {
		mode = ks.MODE_THUMB
	}
	a.ks, err = ks.New(ks.ARCH_ARM, mode)
	return errors.Wrap(err, "ks.New() failed")
}

func (a *Assembler) Asm(asm string, addr uint64) ([]byte, error) {
	if a.ks == nil {
		if err := a.Open(); err != nil {
			return nil, err
		}
	}
	out, _, ok := a.ks.Assemble(asm, addr)
	if !ok {
		return nil, errors.Wrap(a.ks.LastError(), "ks.Assemble() failed")
	}
	return out, nil
}

func (a *Assembler) Close() error {
	if a.ks != nil {
		err := a.ks.Close()
		a.ks = nil
		return err
	}
	return nil
}
