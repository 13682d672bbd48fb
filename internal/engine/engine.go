package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/rosie/internal/config"
	"github.com/roach88/rosie/internal/encoder"
	"github.com/roach88/rosie/internal/manifest"
	"github.com/roach88/rosie/internal/pattern"
)

// RuntimeDir is the directory every engine home must contain.
const RuntimeDir = "rpl"

// Engine is one matching-engine instance.
type Engine struct {
	mu     sync.Mutex
	id     string
	home   string
	clock  *Clock
	logger *slog.Logger
	idGen  IDGenerator

	env     *pattern.Env
	cfg     config.Config
	pat     *pattern.Pattern
	enc     encoder.Encoder
	files   []string
	closed  bool
	matches int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator sets the engine id source.
//
// Default: UUIDv7Generator. Use NewSequentialGenerator for golden tests.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.idGen = g
		}
	}
}

// WithClock sets the logical clock that stamps operations.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// New validates home and creates a Ready engine.
//
// On success the returned diagnostics describe the new engine. On failure
// the engine is nil, the error is an *Error with code INIT_FAILED and the
// diagnostics describe the cause.
func New(home string, opts ...Option) (*Engine, []string, error) {
	e := &Engine{
		home:   home,
		clock:  NewClock(),
		logger: slog.New(slog.DiscardHandler),
		idGen:  UUIDv7Generator{},
		env:    pattern.NewEnv(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := checkHome(home); err != nil {
		ee := newError(ErrCodeInitFailed, "", "cannot initialize engine", err)
		ee.Diagnostics = []string{fmt.Sprintf("home directory: %q", home)}
		e.logger.Warn("engine initialization failed", "home", home, "error", err)
		return nil, ee.Lines(), ee
	}

	enc, err := encoder.Lookup(encoder.Default)
	if err != nil {
		ee := newError(ErrCodeInitFailed, "", "default encoder unavailable", err)
		return nil, ee.Lines(), ee
	}
	e.enc = enc
	e.home = filepath.Clean(home)
	e.id = e.idGen.Generate()

	e.logger = e.logger.With("engine", e.id)
	e.logger.Info("engine initialized", "home", e.home, "seq", e.clock.Next())

	return e, []string{
		"engine " + e.id,
		"home " + e.home,
	}, nil
}

func checkHome(home string) error {
	if home == "" {
		return errors.New("home directory not given")
	}
	info, err := os.Stat(home)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", home)
	}
	rt := filepath.Join(home, RuntimeDir)
	info, err = os.Stat(rt)
	if err != nil {
		return fmt.Errorf("missing runtime directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", rt)
	}
	return nil
}

// ID returns the engine identifier.
func (e *Engine) ID() string {
	return e.id
}

// Configure applies a JSON configuration patch.
//
// The payload is decoded, its expression (if present) compiled and its
// encoder resolved before anything changes. On any error the engine keeps
// its previous configuration.
func (e *Engine) Configure(raw []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return err
	}
	seq := e.clock.Next()

	p, err := config.Decode(raw)
	if err != nil {
		e.logger.Debug("configure rejected", "seq", seq, "error", err)
		return newError(ErrCodeConfigInvalid, e.id, "invalid configuration", err)
	}

	next := p.Apply(e.cfg)
	enc, err := encoder.Lookup(next.Encode)
	if err != nil {
		return newError(ErrCodeConfigInvalid, e.id, "invalid configuration", err)
	}

	pat := e.pat
	if p.Expression != nil {
		pat, err = pattern.Compile(next.Expression, e.env)
		if err != nil {
			e.logger.Debug("expression rejected", "seq", seq, "error", err)
			return newError(ErrCodeCompileFailed, e.id, "expression does not compile", err)
		}
	}

	e.cfg = next
	e.pat = pat
	e.enc = enc
	e.logger.Info("engine configured",
		"seq", seq,
		"expression", next.Expression,
		"encode", enc.Name(),
	)
	return nil
}

// Snapshot is the read-only view returned by Inspect.
type Snapshot struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Expression  string   `json:"expression,omitempty"`
	Encode      string   `json:"encode"`
	Type        string   `json:"type,omitempty"`
	Definitions int      `json:"definitions"`
	Manifests   []string `json:"manifests,omitempty"`
}

// Inspect describes the current configuration.
func (e *Engine) Inspect() (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{
		ID:          e.id,
		Name:        e.cfg.Name,
		Expression:  e.cfg.Expression,
		Encode:      e.enc.Name(),
		Definitions: e.env.Len(),
	}
	if e.pat != nil {
		s.Type = e.pat.Type()
	}
	if len(e.files) > 0 {
		s.Manifests = append([]string(nil), e.files...)
	}
	return s, nil
}

// Definitions lists every loaded definition in name order.
func (e *Engine) Definitions() ([]pattern.Definition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	names := e.env.Names()
	out := make([]pattern.Definition, 0, len(names))
	for _, n := range names {
		d, _ := e.env.Lookup(n, "")
		out = append(out, d)
	}
	return out, nil
}

// LoadManifest loads the definitions ref names and returns the files read.
//
// Every new definition is compiled against the merged environment before
// the environment is replaced. The configured pattern keeps the definitions
// it was compiled with; reconfigure to pick up redefinitions.
func (e *Engine) LoadManifest(ref string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	seq := e.clock.Next()

	res, err := manifest.Load(ref, e.home)
	if err != nil {
		e.logger.Debug("manifest rejected", "seq", seq, "ref", ref, "error", err)
		return nil, newError(ErrCodeManifestFailed, e.id, fmt.Sprintf("cannot load manifest %q", ref), err)
	}

	env := e.env.Clone()
	for _, d := range res.Definitions {
		env.Define(d)
	}
	for _, d := range res.Definitions {
		if _, err := pattern.Compile(d.Name, env); err != nil {
			return nil, newError(ErrCodeManifestFailed, e.id,
				fmt.Sprintf("cannot load manifest %q", ref),
				fmt.Errorf("%s (%s): %w", d.Name, d.Source, err))
		}
	}

	e.env = env
	e.files = append(e.files, res.Files...)
	e.logger.Info("manifest loaded",
		"seq", seq,
		"ref", ref,
		"files", len(res.Files),
		"definitions", len(res.Definitions),
	)
	return res.Files, nil
}

// Result is the outcome of a match call.
type Result struct {
	// Matched reports whether the pattern matched.
	Matched bool

	// Payload is the encoded match, empty when nothing matched.
	Payload []byte

	// Leftover is the number of input bytes after the match.
	Leftover int
}

// Match runs the configured pattern against input starting at the 1-based
// byte position start. A start of 0 means 1.
func (e *Engine) Match(input []byte, start int) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return Result{}, err
	}
	seq := e.clock.Next()

	if e.pat == nil {
		return Result{}, newError(ErrCodeNotConfigured, e.id, "no expression configured", nil)
	}
	if start == 0 {
		start = 1
	}

	m, leftover, err := e.pat.Match(input, start)
	if err != nil {
		return Result{}, newError(ErrCodeMatchFailed, e.id, "match failed", err)
	}
	e.matches++
	if m == nil {
		e.logger.Debug("no match", "seq", seq, "input_len", len(input))
		return Result{Leftover: leftover}, nil
	}

	payload, err := e.enc.Encode(m, input)
	if err != nil {
		return Result{}, newError(ErrCodeMatchFailed, e.id, "cannot encode match", err)
	}
	e.logger.Debug("matched",
		"seq", seq,
		"input_len", len(input),
		"type", m.Type,
		"leftover", leftover,
	)
	return Result{Matched: true, Payload: payload, Leftover: leftover}, nil
}

// Close finalizes the engine. Closing twice returns a FINALIZED error.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return err
	}
	e.closed = true
	e.env = pattern.NewEnv()
	e.pat = nil
	e.files = nil
	e.logger.Info("engine finalized", "seq", e.clock.Next(), "matches", e.matches)
	return nil
}

// Drop finalizes the engine when it leaves a handle table.
func (e *Engine) Drop() {
	_ = e.Close()
}

// Seq returns the engine's current logical time.
func (e *Engine) Seq() int64 {
	return e.clock.Current()
}

func (e *Engine) checkOpen() error {
	if e.closed {
		return newError(ErrCodeFinalized, e.id, "engine is finalized", nil)
	}
	return nil
}
