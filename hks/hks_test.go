package hks

import (
	"io"
	"reflect"
	"strings"
	"testing"
)

func mustNext(t *testing.T, r *Reader) *Entry {
	t.Helper()
	e, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func mustGet(t *testing.T, e *Entry, key string) string {
	t.Helper()
	v, err := e.Get(key)
	if err != nil {
		t.Fatalf("%s: %v", key, err)
	}
	return v
}

func TestRead(t *testing.T) {
	r := NewReader(strings.NewReader(`test:
    a: 1
    b: 2
    c: 3

test2:
    a: 1
test3:
    b: 1:2:3
`))

	e := mustNext(t, r)
	if e.Title != "test" || e.Line != 1 {
		t.Fatalf("bad entry: %q line %d", e.Title, e.Line)
	}
	if v := mustGet(t, e, "a"); v != "1" {
		t.Errorf("a = %q", v)
	}
	if v := mustGet(t, e, "b"); v != "2" {
		t.Errorf("b = %q", v)
	}
	if v := mustGet(t, e, "c"); v != "3" {
		t.Errorf("c = %q", v)
	}
	if !e.Done() {
		t.Errorf("leftover keys: %v", e.Remaining())
	}

	e = mustNext(t, r)
	if e.Title != "test2" || e.Line != 6 {
		t.Fatalf("bad entry: %q line %d", e.Title, e.Line)
	}
	if v := mustGet(t, e, "a"); v != "1" {
		t.Errorf("a = %q", v)
	}

	// values keep their colons, only the first one splits
	e = mustNext(t, r)
	if e.Title != "test3" || e.Line != 8 {
		t.Fatalf("bad entry: %q line %d", e.Title, e.Line)
	}
	if v := mustGet(t, e, "b"); v != "1:2:3" {
		t.Errorf("b = %q", v)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReadComments(t *testing.T) {
	r := NewReader(strings.NewReader(`# leading comment
test: # trailing
    a: 1 # value comment
    # whole line
    b: 2
`))
	e := mustNext(t, r)
	if e.Title != "test" || e.Line != 2 {
		t.Fatalf("bad entry: %q line %d", e.Title, e.Line)
	}
	if v := mustGet(t, e, "a"); v != "1" {
		t.Errorf("a = %q", v)
	}
	if v := mustGet(t, e, "b"); v != "2" {
		t.Errorf("b = %q", v)
	}
}

func TestReadBareTitle(t *testing.T) {
	// no trailing colon, mixed-case keys fold to lowercase
	r := NewReader(strings.NewReader("bare\n    Addr: 0x4000\n"))
	e := mustNext(t, r)
	if e.Title != "bare" {
		t.Fatalf("bad title: %q", e.Title)
	}
	if !e.Has("addr") {
		t.Fatal("addr key missing")
	}
	addr, err := e.GetAddress("addr")
	if err != nil {
		t.Fatal(err)
	}
	if addr != 0x4000 {
		t.Errorf("addr = 0x%x", addr)
	}
}

func TestReadErrors(t *testing.T) {
	for _, tc := range []struct {
		input string
		line  int
		msg   string
	}{
		{" a: 1", 1, "invalid title"},
		{"test:\n a\n", 2, "invalid property syntax"},
		{"test:\n :a\n", 2, "missing property key"},
		{"test:\n a:\n", 2, "missing property value"},
		{"test:\n a: 1\n a: 2\n", 3, `duplicate property key "a"`},
	} {
		_, err := NewReader(strings.NewReader(tc.input)).Next()
		pe, ok := err.(*ParseError)
		if !ok {
			t.Errorf("%q: expected a parse error, got %v", tc.input, err)
			continue
		}
		if pe.Line != tc.line || pe.Msg != tc.msg {
			t.Errorf("%q: got line %d %q, want line %d %q",
				tc.input, pe.Line, pe.Msg, tc.line, tc.msg)
		}
	}
}

func TestEntryGetters(t *testing.T) {
	r := NewReader(strings.NewReader(`test:
    link: true
    soft: false
    addr: 0x1234
    dest: 4096
    name: some_func
    junk: x
    bad: maybe
`))
	e := mustNext(t, r)

	if v, err := e.GetBool("link"); err != nil || v != true {
		t.Errorf("link = %v, %v", v, err)
	}
	if v, err := e.GetBool("soft"); err != nil || v != false {
		t.Errorf("soft = %v, %v", v, err)
	}
	if _, err := e.GetBool("bad"); err == nil {
		t.Error("expected an error for a non-bool value")
	}
	if v, err := e.GetAddress("addr"); err != nil || v != 0x1234 {
		t.Errorf("addr = 0x%x, %v", v, err)
	}
	if v, err := e.GetAddress("dest"); err != nil || v != 4096 {
		t.Errorf("dest = 0x%x, %v", v, err)
	}
	if _, err := e.GetAddress("name"); err == nil {
		t.Error("expected an error for a non-address value")
	}
	if _, err := e.Get("missing"); err == nil {
		t.Error("expected an error for a missing key")
	}

	// getters consume even on a type error, remaining keys come back sorted
	if e.Done() {
		t.Fatal("entry should not be done")
	}
	want := []string{"junk"}
	if got := e.Remaining(); !reflect.DeepEqual(got, want) {
		t.Errorf("remaining = %v, want %v", got, want)
	}
}
