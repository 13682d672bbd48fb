package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rosie/internal/api"
)

// OpFree is the step op that releases the most recent result array.
const OpFree = "free"

// DefaultEngine is the engine alias used by steps that do not name one.
const DefaultEngine = "main"

// Ops lists the step ops a scenario may use.
var Ops = []string{
	api.OpInitialize,
	api.OpConfigure,
	api.OpInspect,
	api.OpLoadManifest,
	api.OpMatch,
	OpFree,
	api.OpFinalize,
}

// Scenario is a conformance scenario: a sequence of boundary calls and the
// assertions that must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Home is the engine home directory. LoadScenario resolves it relative
	// to the scenario file.
	Home string `yaml:"home,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the journal after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one boundary call.
type Step struct {
	Op     string  `yaml:"op"`
	Engine string  `yaml:"engine,omitempty"`
	Input  string  `yaml:"input,omitempty"`
	Extra  *string `yaml:"extra,omitempty"`

	// Keep leaves the result array live for a later free step.
	Keep bool `yaml:"keep,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step. Unset fields are not
// checked.
type Expect struct {
	// Status is the expected status token.
	Status string `yaml:"status,omitempty"`

	// Items are the exact elements expected after the status token.
	Items []string `yaml:"items,omitempty"`

	// Contains lists substrings that must each appear in some element.
	Contains []string `yaml:"contains,omitempty"`

	// Error is a substring of the error a free or finalize step must
	// return. "none" requires that it returns no error.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the journal.
type Assertion struct {
	Type   string   `yaml:"type"`
	Op     string   `yaml:"op,omitempty"`
	Engine string   `yaml:"engine,omitempty"`
	Status string   `yaml:"status,omitempty"`
	Ops    []string `yaml:"ops,omitempty"`
	Count  int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertJournalCount  = "journal_count"
	AssertOutstanding   = "outstanding"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Home != "" && !filepath.IsAbs(s.Home) {
		s.Home = filepath.Join(filepath.Dir(path), s.Home)
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Op == "" {
			return fmt.Errorf("steps[%d]: op is required", i)
		}
		if !slices.Contains(Ops, step.Op) {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Expect == nil {
			continue
		}
		switch step.Op {
		case OpFree, api.OpFinalize:
			if step.Expect.Status != "" || len(step.Expect.Items) > 0 || len(step.Expect.Contains) > 0 {
				return fmt.Errorf("steps[%d]: %s returns no result array; expect only error", i, step.Op)
			}
		default:
			if step.Expect.Error != "" {
				return fmt.Errorf("steps[%d]: expect.error applies only to free and finalize", i)
			}
			if err := validateStatus(step.Expect.Status); err != nil {
				return fmt.Errorf("steps[%d].expect: %w", i, err)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStatus(s string) error {
	switch s {
	case "", api.StatusTrue, api.StatusFalse:
		return nil
	default:
		return fmt.Errorf("status must be %q or %q, got %q", api.StatusTrue, api.StatusFalse, s)
	}
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount, AssertJournalCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertOutstanding:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outstanding", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if err := validateStatus(a.Status); err != nil {
		return fmt.Errorf("assertions[%d]: %w", index, err)
	}
	return nil
}
