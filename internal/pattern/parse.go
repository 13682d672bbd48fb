package pattern

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrUnsupported is returned for syntax the RE2 back end cannot express.
	ErrUnsupported = errors.New("unsupported pattern syntax")

	// ErrUndefined is returned when an expression references an unknown name.
	ErrUndefined = errors.New("undefined identifier")

	// ErrRecursive is returned when a definition refers back to itself.
	ErrRecursive = errors.New("recursive definition")
)

// SyntaxError reports a parse failure with its byte offset in the expression.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s (in %q)", e.Pos, e.Msg, e.Expr)
}

// node is a parsed expression.
type node interface{}

type (
	seqNode    []node
	choiceNode []node
	litNode    string
	classNode  string // rendered RE2 character class
	anyNode    struct{}
	anchorNode byte // '^' or '$'
	refNode    string
	groupNode  struct{ sub node }
	repNode    struct {
		sub      node
		min, max int // max < 0 means unbounded
	}
)

type parser struct {
	src string
	pos int
}

// parse turns an expression into a node tree.
func parse(expr string) (node, error) {
	p := &parser{src: expr}
	n, err := p.choice()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.peek())
	}
	if seq, ok := n.(seqNode); ok && len(seq) == 0 {
		return nil, p.errorf("empty expression")
	}
	return n, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Expr: p.src, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	return r
}

func (p *parser) next() rune {
	r, size := utf8.DecodeRuneInString(p.src[p.pos:])
	p.pos += size
	return r
}

func (p *parser) skipSpace() {
	for !p.eof() {
		if strings.HasPrefix(p.src[p.pos:], "--") {
			if nl := strings.IndexByte(p.src[p.pos:], '\n'); nl >= 0 {
				p.pos += nl + 1
				continue
			}
			p.pos = len(p.src)
			return
		}
		r := p.peek()
		if !unicode.IsSpace(r) {
			return
		}
		p.next()
	}
}

func (p *parser) choice() (node, error) {
	first, err := p.seq()
	if err != nil {
		return nil, err
	}
	alts := []node{first}
	for {
		p.skipSpace()
		if p.peek() != '/' {
			break
		}
		p.next()
		alt, err := p.seq()
		if err != nil {
			return nil, err
		}
		if s, ok := alt.(seqNode); ok && len(s) == 0 {
			return nil, p.errorf("empty alternative")
		}
		alts = append(alts, alt)
	}
	if len(alts) == 1 {
		return first, nil
	}
	if s, ok := first.(seqNode); ok && len(s) == 0 {
		return nil, p.errorf("empty alternative")
	}
	return choiceNode(alts), nil
}

func (p *parser) seq() (node, error) {
	var items seqNode
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		switch p.peek() {
		case '/', ')', '}':
			return flatten(items), nil
		}
		n, err := p.postfix()
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return flatten(items), nil
}

func flatten(items seqNode) node {
	if len(items) == 1 {
		return items[0]
	}
	return items
}

func (p *parser) postfix() (node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for !p.eof() {
		switch p.peek() {
		case '*':
			p.next()
			n = repNode{sub: n, min: 0, max: -1}
		case '+':
			p.next()
			n = repNode{sub: n, min: 1, max: -1}
		case '?':
			p.next()
			n = repNode{sub: n, min: 0, max: 1}
		case '{':
			min, max, ok, err := p.bounds()
			if err != nil {
				return nil, err
			}
			if !ok {
				return n, nil
			}
			n = repNode{sub: n, min: min, max: max}
		default:
			return n, nil
		}
	}
	return n, nil
}

// bounds parses a {n,m} repetition at the current position. It reports
// ok=false, consuming nothing, when the braces open a group instead.
func (p *parser) bounds() (min, max int, ok bool, err error) {
	end := strings.IndexByte(p.src[p.pos:], '}')
	if end < 0 {
		return 0, 0, false, nil
	}
	body := strings.TrimSpace(p.src[p.pos+1 : p.pos+end])
	if body == "" || body == "," {
		return 0, 0, false, nil
	}
	for _, r := range body {
		if r != ',' && r != ' ' && (r < '0' || r > '9') {
			return 0, 0, false, nil
		}
	}

	lo, hi, hasComma := strings.Cut(body, ",")
	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	if strings.Contains(hi, ",") {
		return 0, 0, false, p.errorf("malformed repetition {%s}", body)
	}

	min = 0
	if lo != "" {
		if min, err = strconv.Atoi(lo); err != nil {
			return 0, 0, false, p.errorf("malformed repetition {%s}", body)
		}
	}
	switch {
	case !hasComma:
		max = min
	case hi == "":
		max = -1
	default:
		if max, err = strconv.Atoi(hi); err != nil {
			return 0, 0, false, p.errorf("malformed repetition {%s}", body)
		}
		if max < min {
			return 0, 0, false, p.errorf("repetition {%s} has max below min", body)
		}
	}
	if min > maxRepeat || max > maxRepeat {
		return 0, 0, false, p.errorf("repetition {%s} exceeds %d", body, maxRepeat)
	}
	p.pos += end + 1
	return min, max, true, nil
}

// maxRepeat is the largest counted repetition RE2 accepts.
const maxRepeat = 1000

func (p *parser) primary() (node, error) {
	switch r := p.peek(); {
	case r == '"':
		return p.literal()
	case r == '[':
		return p.bracket()
	case r == '.':
		p.next()
		return anyNode{}, nil
	case r == '^' || r == '$':
		p.next()
		return anchorNode(byte(r)), nil
	case r == '(' || r == '{':
		open := p.next()
		closer := ')'
		if open == '{' {
			closer = '}'
		}
		inner, err := p.choice()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != closer {
			return nil, p.errorf("expected %q", closer)
		}
		p.next()
		if s, ok := inner.(seqNode); ok && len(s) == 0 {
			return nil, p.errorf("empty group")
		}
		return groupNode{sub: inner}, nil
	case r == '!' || r == '>' || r == '<':
		return nil, fmt.Errorf("%w: predicate %q at offset %d", ErrUnsupported, r, p.pos)
	case r == '~':
		return nil, fmt.Errorf("%w: token boundary '~' at offset %d", ErrUnsupported, p.pos)
	case isIdentStart(r):
		return p.ident(), nil
	default:
		return nil, p.errorf("unexpected %q", r)
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (p *parser) ident() node {
	start := p.pos
	for !p.eof() {
		r := p.peek()
		if isIdentPart(r) {
			p.next()
			continue
		}
		if r == '.' && p.pos+1 < len(p.src) {
			nr, _ := utf8.DecodeRuneInString(p.src[p.pos+1:])
			if isIdentStart(nr) {
				p.next()
				continue
			}
		}
		break
	}
	return refNode(p.src[start:p.pos])
}

func (p *parser) literal() (node, error) {
	p.next() // opening quote
	var b strings.Builder
	for {
		if p.eof() {
			return nil, p.errorf("unterminated string literal")
		}
		r := p.next()
		switch r {
		case '"':
			return litNode(b.String()), nil
		case '\\':
			if p.eof() {
				return nil, p.errorf("unterminated escape")
			}
			esc := p.next()
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\\':
				b.WriteRune(esc)
			default:
				return nil, p.errorf("unknown escape \\%c", esc)
			}
		default:
			b.WriteRune(r)
		}
	}
}

// bracket parses a character set and renders it as one RE2 class.
func (p *parser) bracket() (node, error) {
	items, negated, err := p.bracketBody(0)
	if err != nil {
		return nil, err
	}
	if items == "" {
		return nil, p.errorf("empty character set")
	}
	if negated {
		return classNode("[^" + items + "]"), nil
	}
	return classNode("[" + items + "]"), nil
}

// bracketBody consumes one [...] and returns the class items without the
// outer brackets.
func (p *parser) bracketBody(depth int) (string, bool, error) {
	if depth > 8 {
		return "", false, p.errorf("character set nested too deeply")
	}
	p.next() // '['

	if p.peek() == ':' {
		name, err := p.namedClass()
		return name, false, err
	}

	negated := false
	if p.peek() == '^' {
		negated = true
		p.next()
	}

	var b strings.Builder
	for {
		if p.eof() {
			return "", false, p.errorf("unterminated character set")
		}
		r := p.peek()
		switch {
		case r == ']':
			p.next()
			return b.String(), negated, nil
		case r == '[':
			inner, innerNeg, err := p.bracketBody(depth + 1)
			if err != nil {
				return "", false, err
			}
			if innerNeg {
				return "", false, p.errorf("complemented set inside a union")
			}
			b.WriteString(inner)
		default:
			lo, err := p.setChar()
			if err != nil {
				return "", false, err
			}
			if p.peek() == '-' && p.pos+1 < len(p.src) && p.src[p.pos+1] != ']' {
				p.next()
				hi, err := p.setChar()
				if err != nil {
					return "", false, err
				}
				if hi < lo {
					return "", false, p.errorf("invalid range %c-%c", lo, hi)
				}
				b.WriteString(escapeClassRune(lo))
				b.WriteByte('-')
				b.WriteString(escapeClassRune(hi))
				continue
			}
			b.WriteString(escapeClassRune(lo))
		}
	}
}

func (p *parser) setChar() (rune, error) {
	r := p.next()
	if r != '\\' {
		return r, nil
	}
	if p.eof() {
		return 0, p.errorf("unterminated escape")
	}
	switch esc := p.next(); esc {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	default:
		return esc, nil
	}
}

var posixClasses = map[string]bool{
	"alnum": true, "alpha": true, "ascii": true, "blank": true,
	"cntrl": true, "digit": true, "graph": true, "lower": true,
	"print": true, "punct": true, "space": true, "upper": true,
	"word": true, "xdigit": true,
}

// namedClass consumes ":name:]" after an opening bracket.
func (p *parser) namedClass() (string, error) {
	start := p.pos + 1
	end := strings.Index(p.src[start:], ":]")
	if end < 0 {
		return "", p.errorf("unterminated named character class")
	}
	name := p.src[start : start+end]
	negated := strings.HasPrefix(name, "^")
	name = strings.TrimPrefix(name, "^")
	if !posixClasses[name] {
		return "", p.errorf("unknown character class %q", name)
	}
	p.pos = start + end + 2
	if negated {
		return "[:^" + name + ":]", nil
	}
	return "[:" + name + ":]", nil
}

func escapeClassRune(r rune) string {
	switch r {
	case '\\', ']', '[', '^', '-':
		return `\` + string(r)
	case '\n':
		return `\n`
	case '\t':
		return `\t`
	case '\r':
		return `\r`
	}
	return string(r)
}
