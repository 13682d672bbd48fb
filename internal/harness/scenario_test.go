package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "digits.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "digits", s.Name)
	assert.Empty(t, s.Home)
	assert.Len(t, s.Steps, 13)
	assert.Equal(t, "initialize", s.Steps[0].Op)
	require.NotNil(t, s.Steps[6].Extra)
	assert.Equal(t, "2", *s.Steps[6].Extra)
	assert.True(t, s.Steps[3].Keep)
	assert.Len(t, s.Assertions, 7)
}

func TestLoadScenario_HomeRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "s.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := `
name: rel
description: "home resolves next to the file"
home: ../home
steps:
  - op: initialize
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "home"), s.Home)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps:\n  - op: initialize\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps:\n  - op: initialize\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: n\ndescription: d\nsteps:\n  - op: explode\n",
			wantErr: `unknown op "explode"`,
		},
		{
			name:    "unknown field",
			yaml:    "name: n\ndescription: d\nstep:\n  - op: initialize\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "bad status",
			yaml:    "name: n\ndescription: d\nsteps:\n  - op: match\n    expect: { status: yes }\n",
			wantErr: "status must be",
		},
		{
			name:    "status on finalize",
			yaml:    "name: n\ndescription: d\nsteps:\n  - op: finalize\n    expect: { status: \"true\" }\n",
			wantErr: "expect only error",
		},
		{
			name:    "error on match",
			yaml:    "name: n\ndescription: d\nsteps:\n  - op: match\n    expect: { error: boom }\n",
			wantErr: "expect.error applies only",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nsteps:\n  - op: initialize\nassertions:\n  - type: final_state\n",
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "trace_order without ops",
			yaml:    "name: n\ndescription: d\nsteps:\n  - op: initialize\nassertions:\n  - type: trace_order\n",
			wantErr: "ops list is required",
		},
		{
			name:    "journal_count without op",
			yaml:    "name: n\ndescription: d\nsteps:\n  - op: initialize\nassertions:\n  - type: journal_count\n    count: 1\n",
			wantErr: "op is required for journal_count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
