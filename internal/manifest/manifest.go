// Package manifest resolves manifest references and loads the pattern
// definitions they name.
//
// A reference is a filesystem path or a symbolic alias. The alias $sys
// names the engine home directory, so "$sys/MANIFEST" is the home
// directory's MANIFEST file.
//
// The file format is chosen by name:
//
//	*.cue         CUE document: namespace, patterns {name: expr}, aliases {name: expr}
//	*.yaml *.yml  the same document in YAML
//	*.rpl         text definitions: "package p", "[alias] name = expr", "--" comments
//	anything else a list of further references, one per line, relative to the file
//
// Loading never touches engine state; callers merge the returned
// definitions themselves.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/rosie/internal/pattern"
)

// SysAlias is the reference prefix that names the engine home directory.
const SysAlias = "$sys"

const (
	maxDepth    = 16
	maxFileSize = 4 << 20
)

var (
	// ErrUnresolved is returned when a reference does not name a readable file.
	ErrUnresolved = errors.New("manifest reference does not resolve")

	// ErrCycle is returned when manifests include each other.
	ErrCycle = errors.New("manifest include cycle")

	// ErrTooDeep is returned when includes nest beyond the supported depth.
	ErrTooDeep = errors.New("manifest includes nested too deeply")
)

// Error locates a problem inside a manifest file.
type Error struct {
	File string
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result holds everything loaded for one reference.
type Result struct {
	// Definitions in load order. Later definitions of the same name win.
	Definitions []pattern.Definition

	// Files lists every file read, in load order.
	Files []string
}

// Resolve maps a reference to a regular file path.
func Resolve(ref, home string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("%w: empty reference", ErrUnresolved)
	}

	path := ref
	if strings.HasPrefix(ref, "$") {
		rest, ok := strings.CutPrefix(ref, SysAlias)
		if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
			return "", fmt.Errorf("%w: unknown alias in %q", ErrUnresolved, ref)
		}
		if home == "" {
			return "", fmt.Errorf("%w: %s has no home directory", ErrUnresolved, SysAlias)
		}
		path = filepath.Join(home, filepath.FromSlash(rest))
	}
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnresolved, ref, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q is not a regular file", ErrUnresolved, ref)
	}
	return path, nil
}

// Load resolves ref and loads it together with everything it includes.
func Load(ref, home string) (*Result, error) {
	path, err := Resolve(ref, home)
	if err != nil {
		return nil, err
	}
	l := &loader{home: home, active: make(map[string]bool), result: &Result{}}
	if err := l.load(path, 0); err != nil {
		return nil, err
	}
	return l.result, nil
}

type loader struct {
	home   string
	active map[string]bool
	result *Result
}

func (l *loader) load(path string, depth int) error {
	if depth > maxDepth {
		return &Error{File: path, Err: ErrTooDeep}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if l.active[abs] {
		return &Error{File: path, Err: ErrCycle}
	}
	l.active[abs] = true
	defer delete(l.active, abs)

	data, err := readFile(path)
	if err != nil {
		return err
	}
	l.result.Files = append(l.result.Files, path)

	var defs []pattern.Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		defs, err = parseCUE(path, data)
	case ".yaml", ".yml":
		defs, err = parseYAML(path, data)
	case ".rpl":
		defs, err = parseRPL(path, data)
	default:
		return l.loadList(path, data, depth)
	}
	if err != nil {
		return err
	}
	l.result.Definitions = append(l.result.Definitions, defs...)
	return nil
}

func (l *loader) loadList(path string, data []byte, depth int) error {
	dir := filepath.Dir(path)
	for i, line := range strings.Split(string(data), "\n") {
		entry := strings.TrimSpace(stripComment(line))
		if entry == "" {
			continue
		}
		ref := entry
		if !strings.HasPrefix(ref, "$") && !filepath.IsAbs(ref) {
			ref = filepath.Join(dir, filepath.FromSlash(ref))
		}
		target, err := Resolve(ref, l.home)
		if err != nil {
			return &Error{File: path, Line: i + 1, Err: err}
		}
		if err := l.load(target, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{File: path, Err: err}
	}
	if info.Size() > maxFileSize {
		return nil, &Error{File: path, Err: fmt.Errorf("file exceeds %d bytes", maxFileSize)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{File: path, Err: err}
	}
	return data, nil
}

// stripComment cuts a "--" comment, ignoring dashes inside string literals.
func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case inString && c == '\\':
			i++
		case c == '"':
			inString = !inString
		case !inString && c == '-' && i+1 < len(line) && line[i+1] == '-':
			return line[:i]
		}
	}
	return line
}
