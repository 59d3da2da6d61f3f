// Package lineio wraps line-oriented readers with position bookkeeping so
// parse errors in grammar, fragment, and constraint files can name the
// offending line.
package lineio

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Reader scans lines from an underlying stream and remembers how many have
// been delivered. Errors surfaced through Err are annotated with the
// element name and line number.
type Reader struct {
	name    string
	scanner *bufio.Scanner
	lineno  int
	line    string
	err     error
}

// NewReader wraps r. The name labels the element type in error messages,
// conventionally "line" for plain text files.
func NewReader(name string, r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{name: name, scanner: sc}
}

// Open opens path and returns a reader plus a close function.
func Open(name, path string) (*Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("lineio: open %s: %w", path, err)
	}
	return NewReader(name, f), f.Close, nil
}

// Scan advances to the next line, returning false at end of input or on
// error. Check Err after the loop.
func (r *Reader) Scan() bool {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			r.err = r.wrap(err)
		}
		return false
	}
	r.lineno++
	r.line = r.scanner.Text()
	return true
}

// Text returns the current line.
func (r *Reader) Text() string {
	return r.line
}

// Lineno returns the 1-based number of the current line, 0 before the
// first Scan.
func (r *Reader) Lineno() int {
	return r.lineno
}

// Err returns the first error encountered, annotated with position.
func (r *Reader) Err() error {
	return r.err
}

// Errorf builds an error annotated with the current position, for callers
// rejecting the content of a line they just read.
func (r *Reader) Errorf(format string, args ...any) error {
	return r.wrap(fmt.Errorf(format, args...))
}

func (r *Reader) wrap(err error) error {
	return fmt.Errorf("at %s %d: %w", r.name, r.lineno, err)
}
