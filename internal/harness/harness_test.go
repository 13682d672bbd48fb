package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rosie/internal/testutil"
)

func ptr(s string) *string { return &s }

func TestRun_DigitsScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "digits.yaml"))
	require.NoError(t, err)
	s.Home = testutil.NewHome(t)

	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Trace, 13)
	assert.Equal(t, 0, result.Outstanding)
}

func TestRun_ReportsExpectationFailures(t *testing.T) {
	s := &Scenario{
		Name:        "wrong_expectations",
		Description: "expectations that do not hold",
		Home:        testutil.NewHome(t),
		Steps: []Step{
			{Op: "initialize"},
			{Op: "match", Input: "123", Expect: &Expect{Status: "true"}},
			{Op: "configure", Input: `{"expression":"[:digit:]+"}`, Expect: &Expect{Status: "false"}},
			{Op: "match", Input: "123", Expect: &Expect{Items: []string{"x"}, Contains: []string{"nothing-like-this"}}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], `steps[1] match: expected status "true", got "false"`)
	assert.Contains(t, result.Errors[1], `steps[2] configure: expected status "false"`)
	assert.Contains(t, result.Errors[2], "expected items")
	assert.Contains(t, result.Errors[3], "nothing-like-this")
}

func TestRun_InitializeFailureScrubsHome(t *testing.T) {
	s := &Scenario{
		Name:        "bad_home",
		Description: "initialize on a missing directory",
		Home:        testutil.NewHome(t),
		Steps: []Step{
			{Op: "initialize", Input: "{home}/missing", Expect: &Expect{Status: "false"}},
			{Op: "configure", Input: `{"expression":"x"}`, Expect: &Expect{Status: "false", Contains: []string{"invalid engine handle"}}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	ev := result.Trace[0]
	assert.Equal(t, "<home>/missing", ev.Input)
	assert.Contains(t, ev.Items, `home directory: "<home>/missing"`)
}

func TestRun_KeepLeavesArraysOutstanding(t *testing.T) {
	s := &Scenario{
		Name:        "keep",
		Description: "kept arrays stay live",
		Home:        testutil.NewHome(t),
		Steps: []Step{
			{Op: "initialize", Keep: true},
			{Op: "inspect", Keep: true},
		},
		Assertions: []Assertion{{Type: AssertOutstanding, Count: 2}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 2, result.Outstanding)
}

func TestRun_IndependentEngines(t *testing.T) {
	s := &Scenario{
		Name:        "two_engines",
		Description: "two aliases, two configurations",
		Home:        testutil.NewHome(t),
		Steps: []Step{
			{Op: "initialize", Engine: "a"},
			{Op: "initialize", Engine: "b"},
			{Op: "configure", Engine: "a", Input: `{"expression":"[:digit:]+","encode":"matches"}`},
			{Op: "configure", Engine: "b", Input: `{"expression":"[:alpha:]+","encode":"matches"}`},
			{Op: "match", Engine: "a", Input: "42abc", Expect: &Expect{Items: []string{"42", "3", "true"}}},
			{Op: "match", Engine: "b", Input: "abc42", Expect: &Expect{Items: []string{"abc", "2", "true"}}},
			{Op: "finalize", Engine: "a", Expect: &Expect{Error: "none"}},
			{Op: "match", Engine: "b", Input: "xyz", Extra: ptr("2"), Expect: &Expect{Items: []string{"yz", "0", "true"}}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Op: "initialize", Count: 2},
			{Type: AssertJournalCount, Op: "match", Engine: "b", Count: 2},
			{Type: AssertJournalCount, Op: "configure", Engine: "a", Count: 1},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FreeWithoutArray(t *testing.T) {
	s := &Scenario{
		Name:        "free_first",
		Description: "free before any call",
		Steps:       []Step{{Op: "free"}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[0] free: ")
	assert.Contains(t, err.Error(), "no result array to free")
	assert.NotContains(t, err.Error(), "failed to close runtime", "a clean close adds nothing")
}

func TestRun_AssertionFailuresAreReported(t *testing.T) {
	s := &Scenario{
		Name:        "failing_assertions",
		Description: "assertions that do not hold",
		Home:        testutil.NewHome(t),
		Steps:       []Step{{Op: "initialize"}},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Op: "match"},
			{Type: AssertJournalCount, Op: "initialize", Count: 2},
			{Type: AssertJournalCount, Op: "initialize", Engine: "ghost", Count: 1},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "trace_contains")
	assert.Contains(t, result.Errors[1], "1 entries")
	assert.Contains(t, result.Errors[2], `engine "ghost" was never initialized`)
}
