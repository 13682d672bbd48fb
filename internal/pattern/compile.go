package pattern

import (
	"fmt"
	"strconv"
	"strings"

	re2 "github.com/wasilibs/go-re2"
)

// maxTranslated bounds the size of the generated RE2 source. Definitions
// referencing each other can otherwise expand exponentially.
const maxTranslated = 1 << 20

// AnonymousType is the match type reported for expressions that are not a
// single reference to a named definition.
const AnonymousType = "*"

// anyByte matches one character, or one byte where the input is not valid
// UTF-8.
const anyByte = `(?s:.|\C)`

// neverMatch stands in for ^ when matching starts past the first byte.
const neverMatch = `\b\B`

// capture is one RE2 group of a compiled pattern. A named capture becomes a
// node of the match tree. A repetition capture (body != nil) marks the span
// of a repetition whose body reports sub-matches; the body is re-run across
// that span so every iteration contributes its own sub-matches.
type capture struct {
	name   string
	parent int // enclosing capture index, 0 for the root
	body   *Pattern
}

type translator struct {
	env      *Env
	b        strings.Builder
	captures []capture
	parent   int
	stack    []string
	parsed   map[string]node

	// late translates for a match window that does not begin the input.
	late bool
	// caret is set once ^ has been emitted.
	caret bool
	// inRep counts enclosing repetitions already handled by a body pattern.
	inRep int
}

// Pattern is a compiled expression ready for matching.
//
// A Pattern is immutable and safe for concurrent use.
type Pattern struct {
	top      string
	re       *re2.Regexp
	late     *re2.Regexp // nil unless the expression uses ^
	captures []capture
}

// Compile translates expr against env and compiles it.
// References are resolved at compile time; later changes to env do not
// affect the returned Pattern.
func Compile(expr string, env *Env) (*Pattern, error) {
	if env == nil {
		env = NewEnv()
	}
	root, err := parse(expr)
	if err != nil {
		return nil, err
	}

	top, pkg := AnonymousType, ""
	var stack []string
	if ref, ok := root.(refNode); ok {
		if d, found := env.Lookup(string(ref), ""); found && !d.Alias {
			// A bare reference to a named definition reports that definition
			// as the match itself rather than as a lone sub-match.
			body, err := parseDefinition(d)
			if err != nil {
				return nil, err
			}
			top, root, pkg, stack = d.Name, body, d.Package, []string{d.Name}
		}
	}

	p, err := compileNode(root, env, pkg, stack)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	p.top = top
	return p, nil
}

func compileNode(root node, env *Env, pkg string, stack []string) (*Pattern, error) {
	t := newTranslator(env, stack, false)
	if err := t.emit(root, pkg); err != nil {
		return nil, err
	}
	re, err := compileRE(t.b.String(), len(t.captures))
	if err != nil {
		return nil, err
	}
	p := &Pattern{top: AnonymousType, re: re, captures: t.captures}

	if t.caret {
		lt := newTranslator(env, stack, true)
		if err := lt.emit(root, pkg); err != nil {
			return nil, err
		}
		if p.late, err = compileRE(lt.b.String(), len(t.captures)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func newTranslator(env *Env, stack []string, late bool) *translator {
	return &translator{
		env:    env,
		stack:  append([]string(nil), stack...),
		parsed: make(map[string]node),
		late:   late,
	}
}

func compileRE(src string, captures int) (*re2.Regexp, error) {
	re, err := re2.Compile(`\A(?:` + src + `)`)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() != captures {
		return nil, fmt.Errorf("expected %d captures, got %d", captures, re.NumSubexp())
	}
	return re, nil
}

// Type returns the match type reported at the root of every match.
func (p *Pattern) Type() string {
	return p.top
}

func parseDefinition(d Definition) (node, error) {
	n, err := parse(d.Expr)
	if err != nil {
		return nil, fmt.Errorf("definition %s: %w", d.Name, err)
	}
	return n, nil
}

func (t *translator) definitionBody(d Definition) (node, error) {
	if n, ok := t.parsed[d.Name]; ok {
		return n, nil
	}
	n, err := parseDefinition(d)
	if err != nil {
		return nil, err
	}
	t.parsed[d.Name] = n
	return n, nil
}

func (t *translator) emit(n node, pkg string) error {
	if t.b.Len() > maxTranslated {
		return fmt.Errorf("%w: expression expands beyond %d bytes", ErrUnsupported, maxTranslated)
	}

	switch v := n.(type) {
	case seqNode:
		for _, item := range v {
			if err := t.emit(item, pkg); err != nil {
				return err
			}
		}
	case choiceNode:
		t.b.WriteString("(?:")
		for i, alt := range v {
			if i > 0 {
				t.b.WriteByte('|')
			}
			if err := t.emit(alt, pkg); err != nil {
				return err
			}
		}
		t.b.WriteByte(')')
	case litNode:
		t.b.WriteString(re2.QuoteMeta(string(v)))
	case classNode:
		t.b.WriteString(string(v))
	case anyNode:
		t.b.WriteString(anyByte)
	case anchorNode:
		switch {
		case v == '$':
			t.b.WriteString(`\z`)
		case t.late:
			t.b.WriteString(neverMatch)
		default:
			t.caret = true
			t.b.WriteString(`\A`)
		}
	case groupNode:
		t.b.WriteString("(?:")
		if err := t.emit(v.sub, pkg); err != nil {
			return err
		}
		t.b.WriteByte(')')
	case repNode:
		if t.inRep == 0 {
			reports, err := t.reports(v.sub, pkg, nil)
			if err != nil {
				return err
			}
			if reports {
				return t.emitReportingRep(v, pkg)
			}
		}
		t.b.WriteString("(?:")
		if err := t.emit(v.sub, pkg); err != nil {
			return err
		}
		t.b.WriteByte(')')
		t.b.WriteString(quantifier(v.min, v.max))
	case refNode:
		return t.emitRef(string(v), pkg)
	default:
		return fmt.Errorf("unexpected node %T", n)
	}
	return nil
}

// emitReportingRep wraps a repetition in a group that records its span and
// compiles the body on its own, so each iteration can be matched again.
// Inside the group, definitions are emitted without captures.
func (t *translator) emitReportingRep(v repNode, pkg string) error {
	c := capture{parent: t.parent}
	if !t.late {
		body, err := compileNode(v.sub, t.env, pkg, t.stack)
		if err != nil {
			return err
		}
		c.body = body
	}
	t.captures = append(t.captures, c)

	t.inRep++
	t.b.WriteString("((?:")
	err := t.emit(v.sub, pkg)
	t.b.WriteString(")" + quantifier(v.min, v.max) + ")")
	t.inRep--
	return err
}

// reports tells whether n reaches a non-alias definition, which would
// produce a sub-match.
func (t *translator) reports(n node, pkg string, seen map[string]bool) (bool, error) {
	switch v := n.(type) {
	case seqNode:
		return t.reportsAny(v, pkg, seen)
	case choiceNode:
		return t.reportsAny(v, pkg, seen)
	case groupNode:
		return t.reports(v.sub, pkg, seen)
	case repNode:
		return t.reports(v.sub, pkg, seen)
	case refNode:
		d, ok := t.env.Lookup(string(v), pkg)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUndefined, string(v))
		}
		if !d.Alias {
			return true, nil
		}
		if seen[d.Name] {
			return false, nil
		}
		if seen == nil {
			seen = make(map[string]bool)
		}
		seen[d.Name] = true
		body, err := t.definitionBody(d)
		if err != nil {
			return false, err
		}
		return t.reports(body, d.Package, seen)
	}
	return false, nil
}

func (t *translator) reportsAny(items []node, pkg string, seen map[string]bool) (bool, error) {
	for _, item := range items {
		ok, err := t.reports(item, pkg, seen)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

func (t *translator) emitRef(name, pkg string) error {
	d, ok := t.env.Lookup(name, pkg)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUndefined, name)
	}
	for _, active := range t.stack {
		if active == d.Name {
			return fmt.Errorf("%w: %s", ErrRecursive, strings.Join(append(t.stack, d.Name), " -> "))
		}
	}
	body, err := t.definitionBody(d)
	if err != nil {
		return err
	}

	t.stack = append(t.stack, d.Name)
	defer func() { t.stack = t.stack[:len(t.stack)-1] }()

	if d.Alias || t.inRep > 0 {
		t.b.WriteString("(?:")
		if err := t.emit(body, d.Package); err != nil {
			return err
		}
		t.b.WriteByte(')')
		return nil
	}

	t.captures = append(t.captures, capture{name: d.Name, parent: t.parent})
	idx := len(t.captures)
	saved := t.parent
	t.parent = idx
	t.b.WriteByte('(')
	err = t.emit(body, d.Package)
	t.b.WriteByte(')')
	t.parent = saved
	return err
}

func quantifier(min, max int) string {
	switch {
	case min == 0 && max < 0:
		return "*"
	case min == 1 && max < 0:
		return "+"
	case min == 0 && max == 1:
		return "?"
	case max < 0:
		return "{" + strconv.Itoa(min) + ",}"
	case min == max:
		return "{" + strconv.Itoa(min) + "}"
	default:
		return "{" + strconv.Itoa(min) + "," + strconv.Itoa(max) + "}"
	}
}
