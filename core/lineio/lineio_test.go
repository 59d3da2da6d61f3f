package lineio

import (
	"strings"
	"testing"
)

func TestScanCountsLines(t *testing.T) {
	r := NewReader("line", strings.NewReader("a\nb\nc\n"))

	var lines []string
	for r.Scan() {
		lines = append(lines, r.Text())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if r.Lineno() != 3 {
		t.Errorf("Lineno() = %d, want 3", r.Lineno())
	}
}

func TestErrorfIncludesPosition(t *testing.T) {
	r := NewReader("rule", strings.NewReader("ok\nbroken\n"))

	r.Scan()
	r.Scan()
	err := r.Errorf("unparseable field %q", "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "at rule 2:"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q missing %q", err, want)
	}
}

func TestEmptyInput(t *testing.T) {
	r := NewReader("line", strings.NewReader(""))
	if r.Scan() {
		t.Error("Scan() = true on empty input")
	}
	if r.Lineno() != 0 {
		t.Errorf("Lineno() = %d, want 0", r.Lineno())
	}
}
