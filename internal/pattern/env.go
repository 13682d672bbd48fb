package pattern

import (
	"fmt"
	"sort"
	"strings"
)

// Definition binds a name to an expression.
//
// Non-alias definitions appear as sub-matches when referenced; aliases are
// inlined and leave no trace in the match tree.
type Definition struct {
	// Name is the fully qualified name, e.g. "net.ipv4" or "digits".
	Name string `json:"name"`

	// Expr is the expression source.
	Expr string `json:"expr"`

	// Alias marks a definition whose matches are not reported.
	Alias bool `json:"alias,omitempty"`

	// Package is the namespace the definition was declared in, if any.
	Package string `json:"package,omitempty"`

	// Source names the file the definition came from.
	Source string `json:"source,omitempty"`
}

func isLocalName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Qualify builds a fully qualified definition name and validates its parts.
func Qualify(pkg, name string) (string, error) {
	if !isLocalName(name) {
		return "", fmt.Errorf("invalid definition name %q", name)
	}
	if pkg == "" {
		return name, nil
	}
	if !isLocalName(pkg) {
		return "", fmt.Errorf("invalid package name %q", pkg)
	}
	return pkg + "." + name, nil
}

// Env is a set of definitions visible to expressions.
//
// Env values are treated as immutable once shared; use Clone before Define
// when the original must stay untouched.
type Env struct {
	defs map[string]Definition
}

// NewEnv creates an empty environment.
func NewEnv() *Env {
	return &Env{defs: make(map[string]Definition)}
}

// Clone returns an independent copy.
func (e *Env) Clone() *Env {
	c := &Env{defs: make(map[string]Definition, len(e.defs))}
	for k, v := range e.defs {
		c.defs[k] = v
	}
	return c
}

// Define adds or replaces a definition.
func (e *Env) Define(d Definition) {
	e.defs[d.Name] = d
}

// Lookup resolves name as seen from inside pkg. A bare name is first tried
// within pkg, then globally.
func (e *Env) Lookup(name, pkg string) (Definition, bool) {
	if pkg != "" && !strings.Contains(name, ".") {
		if d, ok := e.defs[pkg+"."+name]; ok {
			return d, true
		}
	}
	d, ok := e.defs[name]
	return d, ok
}

// Len returns the number of definitions.
func (e *Env) Len() int {
	return len(e.defs)
}

// Names returns every definition name in sorted order.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.defs))
	for k := range e.defs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
