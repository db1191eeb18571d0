// Package hks reads hook sidecar files: unindented entry titles with an
// optional trailing colon, indented key/value properties, and '#' comments.
package hks

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/RicBent/magwi/hook"
)

// ParseError is a malformed line, numbered from 1.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Entry is one titled block of properties. Getters consume keys so the
// caller can reject leftovers with Remaining.
type Entry struct {
	Title string
	Line  int
	kv    map[string]string
}

func (e *Entry) Done() bool {
	return len(e.kv) == 0
}

func (e *Entry) Remaining() []string {
	keys := make([]string, 0, len(e.kv))
	for k := range e.kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *Entry) Has(key string) bool {
	_, ok := e.kv[key]
	return ok
}

func (e *Entry) Get(key string) (string, error) {
	if v, ok := e.kv[key]; ok {
		delete(e.kv, key)
		return v, nil
	}
	return "", errors.Errorf("missing key: %s", key)
}

func (e *Entry) GetBool(key string) (bool, error) {
	v, err := e.Get(key)
	if err != nil {
		return false, err
	}
	switch v {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, errors.Errorf("invalid bool value: %#v", v)
}

func (e *Entry) GetAddress(key string) (uint32, error) {
	v, err := e.Get(key)
	if err != nil {
		return 0, err
	}
	addr, err := hook.ParseAddress(v)
	if err != nil {
		return 0, errors.Errorf("invalid address value: %#v", v)
	}
	return addr, nil
}

type Reader struct {
	s    *bufio.Scanner
	c    io.Closer
	line int

	// title pushed back by the property loop
	nextTitle string
	nextLine  int
	pending   bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{s: bufio.NewScanner(r)}
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewReader(f)
	r.c = f
	return r, nil
}

func (r *Reader) Close() error {
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}

func (r *Reader) scan() (string, bool) {
	if !r.s.Scan() {
		return "", false
	}
	r.line++
	return r.s.Text(), true
}

func stripLine(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimRightFunc(line, unicode.IsSpace)
}

func indented(line string) bool {
	c, _ := utf8.DecodeRuneInString(line)
	return unicode.IsSpace(c)
}

// Next returns the next entry, or io.EOF at the end of the stream.
func (r *Reader) Next() (*Entry, error) {
	if !r.pending {
		for {
			line, ok := r.scan()
			if !ok {
				break
			}
			line = stripLine(line)
			if line == "" {
				continue
			}
			if indented(line) {
				return nil, &ParseError{r.line, "invalid title"}
			}
			r.nextTitle = strings.TrimSuffix(line, ":")
			r.nextLine = r.line
			r.pending = true
			break
		}
	}
	if !r.pending {
		if err := r.s.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	entry := &Entry{Title: r.nextTitle, Line: r.nextLine, kv: make(map[string]string)}
	r.pending = false

	for {
		line, ok := r.scan()
		if !ok {
			break
		}
		line = stripLine(line)
		if line == "" {
			continue
		}
		if !indented(line) {
			r.nextTitle = strings.TrimSuffix(line, ":")
			r.nextLine = r.line
			r.pending = true
			break
		}
		i := strings.IndexByte(line, ':')
		if i < 0 {
			return nil, &ParseError{r.line, "invalid property syntax"}
		}
		key := strings.ToLower(strings.TrimSpace(line[:i]))
		value := strings.TrimSpace(line[i+1:])
		if key == "" {
			return nil, &ParseError{r.line, "missing property key"}
		}
		if value == "" {
			return nil, &ParseError{r.line, "missing property value"}
		}
		if _, ok := entry.kv[key]; ok {
			return nil, &ParseError{r.line, fmt.Sprintf("duplicate property key %#v", key)}
		}
		entry.kv[key] = value
	}
	if err := r.s.Err(); err != nil {
		return nil, err
	}
	return entry, nil
}
