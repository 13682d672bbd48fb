package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Op: "initialize", Engine: "main", Status: "true"},
		{Seq: 2, Op: "configure", Engine: "main", Status: "false"},
		{Seq: 3, Op: "configure", Engine: "main", Status: "true"},
		{Seq: 4, Op: "match", Engine: "main", Status: "true"},
		{Seq: 5, Op: "match", Engine: "other", Status: "false"},
		{Seq: 6, Op: "finalize", Engine: "main"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: "configure", Status: "false"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: "match", Engine: "other"}))

	err := assertTraceContains(trace, Assertion{Op: "inspect"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), "[4] match main true")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{"initialize", "match", "finalize"}}))

	err := assertTraceOrder(trace, Assertion{Ops: []string{"match", "configure"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match (pos 4) should be before configure (pos 2)")

	err = assertTraceOrder(trace, Assertion{Ops: []string{"initialize", "load_manifest"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing op: load_manifest")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "configure", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "match", Engine: "main", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "inspect", Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: "match", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	for _, ev := range sampleTrace() {
		result.AddEvent(ev)
	}
	result.Outstanding = 1

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Op: "initialize", Count: 1},
		{Type: AssertOutstanding, Count: 0},
		{Type: AssertJournalCount, Op: "match", Count: 1},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "1 live arrays")
	assert.Contains(t, errs[1], "requires a journal")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
