package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/rosie/internal/abi"
	"github.com/roach88/rosie/internal/api"
	"github.com/roach88/rosie/internal/engine"
	"github.com/roach88/rosie/internal/handle"
	"github.com/roach88/rosie/internal/journal"
)

// HomePlaceholder replaces the home directory in inputs and traces.
const HomePlaceholder = "<home>"

// Harness executes one scenario against a fresh runtime.
type Harness struct {
	rt      *api.Runtime
	journal *journal.Journal
	clock   *engine.Clock
	home    string

	handles   map[string]handle.Handle
	engineIDs map[string]string
	last      *abi.Array
}

// Run executes a scenario and returns the result.
//
// Each run gets its own runtime and in-memory journal. A non-nil error
// means the harness itself could not run; scenario failures are reported in
// Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	rt := api.New(
		api.WithJournal(j),
		api.WithLogger(slog.New(slog.DiscardHandler)),
		api.WithEngineOptions(engine.WithIDGenerator(engine.NewSequentialGenerator("engine"))),
	)

	h := &Harness{
		rt:        rt,
		journal:   j,
		clock:     engine.NewClock(),
		home:      scenario.Home,
		handles:   make(map[string]handle.Handle),
		engineIDs: make(map[string]string),
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(i, step, result); err != nil {
			err = fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
			if cerr := rt.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("failed to close runtime: %w", cerr))
			}
			return nil, err
		}
	}
	result.Outstanding, _ = rt.Outstanding()

	actx := &AssertionContext{
		Ctx:       context.Background(),
		Journal:   j,
		EngineIDs: h.engineIDs,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	if err := rt.Close(); err != nil {
		return nil, fmt.Errorf("failed to close runtime: %w", err)
	}
	return result, nil
}

func (h *Harness) execute(index int, step Step, result *Result) error {
	alias := step.Engine
	if alias == "" {
		alias = DefaultEngine
	}
	input := h.expand(step.Input)

	ev := TraceEvent{
		Seq:    h.clock.Next(),
		Op:     step.Op,
		Engine: alias,
		Input:  h.scrub(input),
		Extra:  step.Extra,
	}

	var arr *abi.Array
	var callErr error
	switch step.Op {
	case api.OpInitialize:
		if input == "" {
			input = h.home
			ev.Input = HomePlaceholder
		}
		var hd handle.Handle
		hd, arr = h.rt.Initialize(abi.NewBuffer(input))
		if hd != handle.Zero {
			h.handles[alias] = hd
		}
	case api.OpConfigure:
		arr = h.rt.Configure(h.handles[alias], abi.NewBuffer(input))
	case api.OpInspect:
		arr = h.rt.Inspect(h.handles[alias])
	case api.OpLoadManifest:
		arr = h.rt.LoadManifest(h.handles[alias], abi.NewBuffer(input))
	case api.OpMatch:
		var extra *abi.Buffer
		if step.Extra != nil {
			b := abi.NewBuffer(*step.Extra)
			extra = &b
		}
		arr = h.rt.Match(h.handles[alias], abi.NewBuffer(input), extra)
	case OpFree:
		if h.last == nil {
			return fmt.Errorf("no result array to free")
		}
		callErr = h.rt.Free(h.last)
	case api.OpFinalize:
		callErr = h.rt.Finalize(h.handles[alias])
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if callErr != nil {
		ev.Error = h.scrub(callErr.Error())
	}
	if arr != nil {
		items, err := arr.Strings()
		if err != nil {
			return fmt.Errorf("read result array: %w", err)
		}
		if len(items) == 0 {
			return fmt.Errorf("empty result array")
		}
		ev.Status = items[0]
		for _, it := range items[1:] {
			ev.Items = append(ev.Items, h.scrub(it))
		}
		if step.Op == api.OpInitialize && ev.Status == api.StatusTrue {
			h.engineIDs[alias] = strings.TrimPrefix(items[1], "engine ")
		}

		h.last = arr
		if !step.Keep {
			if err := h.rt.Free(arr); err != nil {
				return fmt.Errorf("free result array: %w", err)
			}
		}
	}

	result.AddEvent(ev)
	for _, msg := range checkExpect(step, ev) {
		result.AddError(fmt.Sprintf("steps[%d] %s: %s", index, step.Op, msg))
	}
	return nil
}

func (h *Harness) expand(s string) string {
	if h.home == "" {
		return s
	}
	return strings.ReplaceAll(s, "{home}", h.home)
}

func (h *Harness) scrub(s string) string {
	if h.home == "" {
		return s
	}
	return strings.ReplaceAll(s, h.home, HomePlaceholder)
}

// checkExpect compares a recorded event with the step's expectation.
func checkExpect(step Step, ev TraceEvent) []string {
	exp := step.Expect
	if exp == nil {
		return nil
	}
	var errs []string

	switch exp.Error {
	case "":
	case "none":
		if ev.Error != "" {
			errs = append(errs, fmt.Sprintf("expected no error, got %q", ev.Error))
		}
	default:
		if !strings.Contains(ev.Error, exp.Error) {
			errs = append(errs, fmt.Sprintf("expected error containing %q, got %q", exp.Error, ev.Error))
		}
	}

	if exp.Status != "" && ev.Status != exp.Status {
		errs = append(errs, fmt.Sprintf("expected status %q, got %q (items %q)", exp.Status, ev.Status, ev.Items))
	}
	if exp.Items != nil && !slices.Equal(exp.Items, ev.Items) {
		errs = append(errs, fmt.Sprintf("expected items %q, got %q", exp.Items, ev.Items))
	}
	for _, want := range exp.Contains {
		found := slices.ContainsFunc(ev.Items, func(it string) bool {
			return strings.Contains(it, want)
		})
		if !found {
			errs = append(errs, fmt.Sprintf("expected an item containing %q, got %q", want, ev.Items))
		}
	}
	return errs
}
