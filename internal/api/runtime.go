// Package api is the boundary contract of the matching engine.
//
// Every operation takes and returns plain descriptors: abi.Buffer inputs and
// engine-owned *abi.Array results. Errors never escape as Go errors or
// panics from the engine operations; they are reported as data. Position 0
// of every result array is the status token "true" or "false":
//
//	Initialize    ["true", diagnostics...]            ["false", diagnostics...] and handle 0
//	Configure     ["true"]                            ["false", diagnostics...]
//	Inspect       ["true", config-json]               ["false", diagnostics...]
//	LoadManifest  ["true", files...]                  ["false", diagnostics...]
//	Match         ["true", payload, leftover, matched] ["false", reason...]
//
// A match that finds nothing still succeeds: the payload is empty and
// matched is "false". Free and Finalize are the only operations that return
// errors, because they report caller bugs (double free, stale handle)
// rather than engine conditions.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/rosie/internal/abi"
	"github.com/roach88/rosie/internal/canonical"
	"github.com/roach88/rosie/internal/engine"
	"github.com/roach88/rosie/internal/handle"
	"github.com/roach88/rosie/internal/journal"
)

// Status tokens.
const (
	StatusTrue  = "true"
	StatusFalse = "false"
)

// Operation names, as recorded in the journal.
const (
	OpInitialize   = "initialize"
	OpConfigure    = "configure"
	OpInspect      = "inspect"
	OpLoadManifest = "load_manifest"
	OpMatch        = "match"
	OpFinalize     = "finalize"
)

// Runtime owns every engine created through it and every array it issued.
//
// Runtime is safe for concurrent use. Calls on one engine are serialized
// by that engine; calls on different engines run independently.
type Runtime struct {
	engines    *handle.Table[*engine.Engine]
	ledger     *abi.Ledger
	journal    *journal.Journal
	logger     *slog.Logger
	engineOpts []engine.Option
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used by the runtime and its engines.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithJournal records every call in j. The runtime does not close j.
func WithJournal(j *journal.Journal) Option {
	return func(r *Runtime) {
		r.journal = j
	}
}

// WithEngineOptions passes opts to every engine the runtime creates.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(r *Runtime) {
		r.engineOpts = append(r.engineOpts, opts...)
	}
}

// New creates a Runtime with no engines.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		engines: handle.NewTable[*engine.Engine](),
		ledger:  abi.NewLedger(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.engines.Subscribe(func(ev handle.Event) {
		r.logger.Debug("engine handle", "handle", ev.Handle.String(), "event", ev.Type.String())
	})
	return r
}

// Initialize creates an engine rooted at the home directory named by path.
func (r *Runtime) Initialize(path abi.Buffer) (handle.Handle, *abi.Array) {
	opts := append([]engine.Option{engine.WithLogger(r.logger)}, r.engineOpts...)

	e, diags, err := engine.New(path.String(), opts...)
	if err != nil {
		arr := r.issue(StatusFalse, diags...)
		r.record("", OpInitialize, path.Bytes(), arr, err)
		return handle.Zero, arr
	}

	h, err := r.engines.Insert(e)
	if err != nil {
		_ = e.Close()
		arr := r.fail(err)
		r.record(e.ID(), OpInitialize, path.Bytes(), arr, err)
		return handle.Zero, arr
	}

	arr := r.issue(StatusTrue, diags...)
	r.record(e.ID(), OpInitialize, path.Bytes(), arr, nil)
	return h, arr
}

// Configure applies a JSON configuration payload.
func (r *Runtime) Configure(h handle.Handle, cfg abi.Buffer) *abi.Array {
	e, err := r.engine(h)
	if err != nil {
		return r.failed("", OpConfigure, cfg.Bytes(), err)
	}
	if err := e.Configure(cfg.Bytes()); err != nil {
		return r.failed(e.ID(), OpConfigure, cfg.Bytes(), err)
	}
	arr := r.issue(StatusTrue)
	r.record(e.ID(), OpConfigure, cfg.Bytes(), arr, nil)
	return arr
}

// Inspect describes the engine's configuration as canonical JSON.
func (r *Runtime) Inspect(h handle.Handle) *abi.Array {
	e, err := r.engine(h)
	if err != nil {
		return r.failed("", OpInspect, nil, err)
	}
	snap, err := e.Inspect()
	if err != nil {
		return r.failed(e.ID(), OpInspect, nil, err)
	}
	data, err := canonical.MarshalJSONVerbatim(snap)
	if err != nil {
		return r.failed(e.ID(), OpInspect, nil, fmt.Errorf("encode configuration: %w", err))
	}
	arr := r.issue(StatusTrue, string(data))
	r.record(e.ID(), OpInspect, nil, arr, nil)
	return arr
}

// LoadManifest loads the manifest named by ref into the engine.
func (r *Runtime) LoadManifest(h handle.Handle, ref abi.Buffer) *abi.Array {
	e, err := r.engine(h)
	if err != nil {
		return r.failed("", OpLoadManifest, ref.Bytes(), err)
	}
	files, err := e.LoadManifest(ref.String())
	if err != nil {
		return r.failed(e.ID(), OpLoadManifest, ref.Bytes(), err)
	}
	arr := r.issue(StatusTrue, files...)
	r.record(e.ID(), OpLoadManifest, ref.Bytes(), arr, nil)
	return arr
}

// Match runs the configured pattern against input. extra, when present and
// non-empty, is the 1-based start position as a decimal string.
func (r *Runtime) Match(h handle.Handle, input abi.Buffer, extra *abi.Buffer) *abi.Array {
	e, err := r.engine(h)
	if err != nil {
		return r.failed("", OpMatch, input.Bytes(), err)
	}

	start, err := parseStart(extra)
	if err != nil {
		return r.failed(e.ID(), OpMatch, input.Bytes(), err)
	}

	res, err := e.Match(input.Bytes(), start)
	if err != nil {
		return r.failed(e.ID(), OpMatch, input.Bytes(), err)
	}

	arr := r.ledger.Issue(
		[]byte(StatusTrue),
		res.Payload,
		[]byte(strconv.Itoa(res.Leftover)),
		[]byte(strconv.FormatBool(res.Matched)),
	)
	r.record(e.ID(), OpMatch, input.Bytes(), arr, nil)
	return arr
}

func parseStart(extra *abi.Buffer) (int, error) {
	if extra == nil || extra.Len() == 0 {
		return 0, nil
	}
	s := strings.TrimSpace(extra.String())
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid start position %q", s)
	}
	return n, nil
}

// Free releases an array issued by this runtime.
//
// Freeing twice returns abi.ErrDoubleFree; freeing an array from another
// runtime returns abi.ErrForeignArray. Neither changes any state.
func (r *Runtime) Free(arr *abi.Array) error {
	if err := r.ledger.Release(arr); err != nil {
		r.logger.Warn("rejected free", "error", err)
		return err
	}
	return nil
}

// Finalize destroys the engine behind h. Every later call with h fails.
func (r *Runtime) Finalize(h handle.Handle) error {
	e, err := r.engines.Remove(h)
	if err != nil {
		r.logger.Warn("rejected finalize", "handle", h.String(), "error", err)
		r.record("", OpFinalize, nil, nil, err)
		return fmt.Errorf("finalize: %w", err)
	}
	r.record(e.ID(), OpFinalize, nil, nil, nil)
	return nil
}

// Close finalizes every engine and releases every outstanding array.
func (r *Runtime) Close() error {
	engines := r.engines.Len()
	if err := r.engines.Close(); err != nil {
		return err
	}
	released := r.ledger.ReleaseAll()
	r.logger.Info("runtime closed", "engines", engines, "released_arrays", released)
	return nil
}

// Outstanding reports live arrays and their payload bytes.
func (r *Runtime) Outstanding() (arrays, bytes int) {
	return r.ledger.Outstanding()
}

// Engines reports the number of live engines.
func (r *Runtime) Engines() int {
	return r.engines.Len()
}

func (r *Runtime) engine(h handle.Handle) (*engine.Engine, error) {
	e, err := r.engines.Get(h)
	if err != nil {
		return nil, fmt.Errorf("invalid engine handle: %w", err)
	}
	return e, nil
}

func (r *Runtime) issue(status string, items ...string) *abi.Array {
	return r.ledger.IssueStrings(append([]string{status}, items...)...)
}

// fail renders err as a failure array.
func (r *Runtime) fail(err error) *abi.Array {
	return r.issue(StatusFalse, Diagnostics(err)...)
}

func (r *Runtime) failed(id, op string, input []byte, err error) *abi.Array {
	r.logger.Debug("call failed", "op", op, "engine", id, "error", err)
	arr := r.fail(err)
	r.record(id, op, input, arr, err)
	return arr
}

// Diagnostics renders err as result-array lines.
func Diagnostics(err error) []string {
	var ee *engine.Error
	if errors.As(err, &ee) {
		return ee.Lines()
	}
	return []string{err.Error()}
}

func (r *Runtime) record(id, op string, input []byte, arr *abi.Array, cause error) {
	if r.journal == nil {
		return
	}
	call := journal.Call{
		EngineID: id,
		Op:       op,
		Input:    input,
		Status:   cause == nil,
	}
	if arr != nil {
		call.Items = arr.Len()
		call.Bytes = arr.Size()
	}
	if cause != nil {
		call.Detail = string(engine.CodeOf(cause))
		if call.Detail == "" {
			call.Detail = cause.Error()
		}
	}
	// The boundary has no caller context; journal failures are logged and
	// the call result stands.
	if _, err := r.journal.Record(context.Background(), call); err != nil {
		r.logger.Error("journal write failed", "op", op, "engine", id, "error", err)
	}
}
