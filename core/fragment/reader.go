// ===== Bracket reader =====

package fragment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forester-mt/forester/core/vocab"
)

// ErrMalformedTree reports bracket notation that does not parse.
var ErrMalformedTree = errors.New("fragment: malformed tree")

// Parse reads one tree in bracket notation. Double-quoted leaves become
// terminals, bare leaves open nonterminal slots.
func Parse(v *vocab.Table, s string) (*Tree, error) {
	p := &parser{v: v, src: s}
	p.skipSpace()
	t, err := p.tree()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("%w: trailing input at offset %d", ErrMalformedTree, p.pos)
	}
	return t, nil
}

type parser struct {
	v   *vocab.Table
	src string
	pos int
}

func (p *parser) tree() (*Tree, error) {
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("%w: unexpected end of input", ErrMalformedTree)
	}
	if p.src[p.pos] != '(' {
		word, quoted, err := p.atom()
		if err != nil {
			return nil, err
		}
		return &Tree{Label: p.v.ID(word), Terminal: quoted}, nil
	}

	p.pos++
	p.skipSpace()
	at := p.pos
	label, quoted, err := p.atom()
	if err != nil {
		return nil, err
	}
	if quoted {
		return nil, fmt.Errorf("%w: quoted label at offset %d", ErrMalformedTree, at)
	}
	node := &Tree{Label: p.v.ID(label)}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("%w: missing ')'", ErrMalformedTree)
		}
		if p.src[p.pos] == ')' {
			p.pos++
			return node, nil
		}
		child, err := p.tree()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
}

func (p *parser) atom() (string, bool, error) {
	if p.pos >= len(p.src) {
		return "", false, fmt.Errorf("%w: unexpected end of input", ErrMalformedTree)
	}
	if p.src[p.pos] == '"' {
		rest := p.src[p.pos+1:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return "", false, fmt.Errorf("%w: unterminated quote at offset %d", ErrMalformedTree, p.pos)
		}
		if end == 0 {
			return "", false, fmt.Errorf("%w: empty terminal at offset %d", ErrMalformedTree, p.pos)
		}
		word := rest[:end]
		p.pos += end + 2
		return word, true, nil
	}
	start := p.pos
	for p.pos < len(p.src) && !isDelim(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", false, fmt.Errorf("%w: unexpected %q at offset %d", ErrMalformedTree, p.src[p.pos], p.pos)
	}
	return p.src[start:p.pos], false, nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '"', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
