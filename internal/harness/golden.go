package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rosie/internal/canonical"
)

// TraceSnapshot is the golden form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Outstanding  int          `json:"outstanding"`
	Trace        []TraceEvent `json:"trace"`
}

// Snapshot renders result as canonical JSON.
func Snapshot(name string, result *Result) ([]byte, error) {
	return canonical.MarshalJSON(TraceSnapshot{
		ScenarioName: name,
		Outstanding:  result.Outstanding,
		Trace:        result.Trace,
	})
}

// RunWithGolden executes a scenario and compares its trace with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass as well.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
