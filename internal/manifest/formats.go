package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rosie/internal/pattern"
)

// document is the structured manifest shape shared by CUE and YAML files.
type document struct {
	Namespace string            `yaml:"namespace"`
	Patterns  map[string]string `yaml:"patterns"`
	Aliases   map[string]string `yaml:"aliases"`
}

func (d document) definitions(path string) ([]pattern.Definition, error) {
	var defs []pattern.Definition
	add := func(fields map[string]string, alias bool) error {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			full, err := pattern.Qualify(d.Namespace, name)
			if err != nil {
				return &Error{File: path, Err: err}
			}
			defs = append(defs, pattern.Definition{
				Name:    full,
				Expr:    fields[name],
				Alias:   alias,
				Package: d.Namespace,
				Source:  path,
			})
		}
		return nil
	}
	if err := add(d.Aliases, true); err != nil {
		return nil, err
	}
	if err := add(d.Patterns, false); err != nil {
		return nil, err
	}
	return defs, nil
}

func parseYAML(path string, data []byte) ([]pattern.Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Error{File: path, Err: errors.New("empty manifest document")}
		}
		return nil, &Error{File: path, Err: err}
	}
	return doc.definitions(path)
}

func parseCUE(path string, data []byte) ([]pattern.Definition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, &Error{File: path, Err: err}
	}

	var doc document
	if ns := v.LookupPath(cue.ParsePath("namespace")); ns.Exists() {
		s, err := ns.String()
		if err != nil {
			return nil, &Error{File: path, Err: fmt.Errorf("namespace: %w", err)}
		}
		doc.Namespace = s
	}

	var err error
	if doc.Patterns, err = cueStrings(v, "patterns"); err != nil {
		return nil, &Error{File: path, Err: err}
	}
	if doc.Aliases, err = cueStrings(v, "aliases"); err != nil {
		return nil, &Error{File: path, Err: err}
	}
	return doc.definitions(path)
}

// cueStrings reads a struct of string fields. A missing field yields nil.
func cueStrings(v cue.Value, field string) (map[string]string, error) {
	sv := v.LookupPath(cue.ParsePath(field))
	if !sv.Exists() {
		return nil, nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	out := make(map[string]string)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", field, iter.Label(), err)
		}
		out[iter.Label()] = s
	}
	return out, nil
}

// parseRPL reads text definitions. A line that does not start a statement
// continues the previous definition.
func parseRPL(path string, data []byte) ([]pattern.Definition, error) {
	var (
		defs    []pattern.Definition
		pkg     string
		current *pattern.Definition
	)
	flush := func() {
		if current != nil {
			current.Expr = strings.TrimSpace(current.Expr)
			defs = append(defs, *current)
			current = nil
		}
	}

	for i, raw := range strings.Split(string(data), "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(stripComment(raw))
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "rpl", "import":
			flush()
			continue
		case "package":
			flush()
			if len(fields) != 2 {
				return nil, &Error{File: path, Line: lineNo, Err: errors.New("malformed package declaration")}
			}
			if len(defs) > 0 {
				return nil, &Error{File: path, Line: lineNo, Err: errors.New("package declaration must precede definitions")}
			}
			pkg = fields[1]
			continue
		}

		lhs, rhs, isDef := strings.Cut(line, "=")
		if isDef {
			alias, name, ok := parseLHS(lhs)
			if ok {
				flush()
				full, err := pattern.Qualify(pkg, name)
				if err != nil {
					return nil, &Error{File: path, Line: lineNo, Err: err}
				}
				current = &pattern.Definition{
					Name:    full,
					Expr:    rhs,
					Alias:   alias,
					Package: pkg,
					Source:  path,
				}
				continue
			}
		}

		if current == nil {
			return nil, &Error{File: path, Line: lineNo, Err: fmt.Errorf("expected a definition, got %q", line)}
		}
		current.Expr += " " + line
	}
	flush()

	for _, d := range defs {
		if d.Expr == "" {
			return nil, &Error{File: path, Err: fmt.Errorf("definition %s has an empty expression", d.Name)}
		}
	}
	return defs, nil
}

// parseLHS recognizes "[local] [alias] name" on the left of '='.
func parseLHS(lhs string) (alias bool, name string, ok bool) {
	words := strings.Fields(lhs)
	if len(words) == 0 {
		return false, "", false
	}
	if words[0] == "local" {
		words = words[1:]
	}
	if len(words) > 0 && words[0] == "alias" {
		alias = true
		words = words[1:]
	}
	if len(words) != 1 {
		return false, "", false
	}
	if _, err := pattern.Qualify("", words[0]); err != nil {
		return false, "", false
	}
	return alias, words[0], true
}
