package pattern

import (
	"errors"
	"fmt"
)

// ErrStartOutOfRange is returned when the start position lies outside the input.
var ErrStartOutOfRange = errors.New("start position out of range")

// Match is one node of a match tree. Positions are 1-based byte offsets into
// the full input; E is the position just past the last matched byte.
type Match struct {
	Type string   `json:"type"`
	S    int      `json:"s"`
	E    int      `json:"e"`
	Data string   `json:"data"`
	Subs []*Match `json:"subs,omitempty"`
}

// Match runs the pattern against input anchored at the 1-based start
// position. It returns the match tree, or nil when the input does not match,
// and the number of input bytes after the match (all remaining bytes on a
// failed match).
//
// The input length is taken from the slice; zero bytes carry no meaning.
func (p *Pattern) Match(input []byte, start int) (*Match, int, error) {
	if start < 1 || start > len(input)+1 {
		return nil, 0, fmt.Errorf("%w: %d (input length %d)", ErrStartOutOfRange, start, len(input))
	}
	m, end := p.matchAt(input, start-1)
	if m == nil {
		return nil, len(input) - (start - 1), nil
	}
	return m, len(input) - end, nil
}

// matchAt matches at the 0-based offset and returns the tree with the
// offset just past the match.
func (p *Pattern) matchAt(input []byte, offset int) (*Match, int) {
	re := p.re
	if offset > 0 && p.late != nil {
		re = p.late
	}
	subject := input[offset:]
	loc := re.FindSubmatchIndex(subject)
	if loc == nil {
		return nil, offset
	}

	root := &Match{
		Type: p.top,
		S:    offset + loc[0] + 1,
		E:    offset + loc[1] + 1,
		Data: string(subject[loc[0]:loc[1]]),
	}

	nodes := make([]*Match, len(p.captures)+1)
	nodes[0] = root
	for i, c := range p.captures {
		idx := i + 1
		if 2*idx+1 >= len(loc) {
			break
		}
		s, e := loc[2*idx], loc[2*idx+1]
		if s < 0 {
			continue
		}

		parent := c.parent
		for parent > 0 && nodes[parent] == nil {
			parent = p.captures[parent-1].parent
		}
		if c.body != nil {
			nodes[parent].Subs = append(nodes[parent].Subs, c.body.iterations(input[:offset+e], offset+s)...)
			continue
		}

		m := &Match{
			Type: c.name,
			S:    offset + s + 1,
			E:    offset + e + 1,
			Data: string(subject[s:e]),
		}
		nodes[idx] = m
		nodes[parent].Subs = append(nodes[parent].Subs, m)
	}

	return root, offset + loc[1]
}

// iterations matches a repetition body again and again from pos, collecting
// the sub-matches of every iteration. It stops at the first failed or empty
// iteration.
func (p *Pattern) iterations(span []byte, pos int) []*Match {
	var subs []*Match
	for pos < len(span) {
		m, end := p.matchAt(span, pos)
		if m == nil || end == pos {
			break
		}
		subs = append(subs, m.Subs...)
		pos = end
	}
	return subs
}
