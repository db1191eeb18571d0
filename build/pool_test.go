package build

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
)

func TestPool(t *testing.T) {
	p := NewPool(2)
	var mu sync.Mutex
	ran := 0
	for i := 0; i < 8; i++ {
		ok := p.Submit(func() error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
		if !ok {
			t.Fatalf("submit %d refused", i)
		}
	}
	if err := p.Wait(); err != nil {
		t.Fatal(err)
	}
	if ran != 8 {
		t.Fatalf("ran %d tasks, want 8", ran)
	}
}

func TestPoolFail(t *testing.T) {
	p := NewPool(1)
	ran := 0
	if !p.Submit(func() error { ran++; return nil }) {
		t.Fatal("first submit refused")
	}
	boom := errors.New("boom")
	if !p.Submit(func() error { ran++; return boom }) {
		t.Fatal("second submit refused")
	}
	// the lone worker died on the error, so this cannot be accepted
	if p.Submit(func() error { ran++; return nil }) {
		t.Fatal("submit after failure accepted")
	}
	if err := p.Wait(); err != boom {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if ran != 2 {
		t.Fatalf("ran %d tasks, want 2", ran)
	}
}
