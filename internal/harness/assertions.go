package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/rosie/internal/journal"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", ev.Seq, ev.Op, ev.Engine, ev.Status)
		}
	}
	return buf.String()
}

// AssertionContext carries what journal assertions need.
type AssertionContext struct {
	Ctx       context.Context
	Journal   *journal.Journal
	EngineIDs map[string]string
}

func eventMatches(ev TraceEvent, a Assertion) bool {
	if ev.Op != a.Op {
		return false
	}
	if a.Engine != "" && ev.Engine != a.Engine {
		return false
	}
	if a.Status != "" && ev.Status != a.Status {
		return false
	}
	return true
}

// assertTraceContains checks that some step matches the op, engine and
// status of the assertion.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if eventMatches(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the ops appear in
// order. Other steps may run in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if _, seen := positions[ev.Op]; !seen {
			positions[ev.Op] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count steps match.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if eventMatches(ev, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertJournalCount counts journal entries for the op. Engine filters by
// the engine the alias was bound to at initialize.
func assertJournalCount(actx *AssertionContext, a Assertion) error {
	f := journal.Filter{Op: a.Op}
	if a.Engine != "" {
		id, ok := actx.EngineIDs[a.Engine]
		if !ok {
			return fmt.Errorf("journal_count: engine %q was never initialized", a.Engine)
		}
		f.EngineID = id
	}

	entries, err := actx.Journal.Entries(actx.Ctx, f)
	if err != nil {
		return fmt.Errorf("journal_count: %w", err)
	}

	count := 0
	for _, e := range entries {
		if a.Status != "" && fmt.Sprint(e.Status) != a.Status {
			continue
		}
		count++
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d journal entries for %s", a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d entries", count),
		}
	}
	return nil
}

func describe(a Assertion) string {
	s := a.Op
	if a.Engine != "" {
		s += " on " + a.Engine
	}
	if a.Status != "" {
		s += " with status " + a.Status
	}
	return s
}

// EvaluateAssertions evaluates all assertions against the result and
// returns a message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertJournalCount:
			if actx == nil || actx.Journal == nil {
				err = fmt.Errorf("assertion[%d]: journal_count requires a journal", i)
			} else {
				err = assertJournalCount(actx, a)
			}
		case AssertOutstanding:
			if result.Outstanding != a.Count {
				err = &AssertionError{
					Type:     AssertOutstanding,
					Expected: fmt.Sprintf("%d live arrays", a.Count),
					Actual:   fmt.Sprintf("%d live arrays", result.Outstanding),
				}
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
