package config

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_SampleConfig(t *testing.T) {
	p, err := Decode([]byte(`{"expression" : "[:digit:]+", "encode" : "json"}`))
	require.NoError(t, err)

	require.NotNil(t, p.Expression)
	require.NotNil(t, p.Encode)
	assert.Nil(t, p.Name)
	assert.Equal(t, "[:digit:]+", *p.Expression)
	assert.Equal(t, "json", *p.Encode)
}

func TestDecode_NameOnly(t *testing.T) {
	p, err := Decode([]byte(`{"name":"Ruby engine"}`))
	require.NoError(t, err)
	require.NotNil(t, p.Name)
	assert.Equal(t, "Ruby engine", *p.Name)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"not json", "This is NOT valid json", ""},
		{"empty", "", ""},
		{"array", `["expression"]`, ""},
		{"string", `"expression"`, ""},
		{"truncated", `{"expression": "[:digit:]+"`, ""},
		{"unknown key", `{"expresion": "x"}`, ""},
		{"trailing", `{"encode":"json"} {}`, ""},
		{"wrong type", `{"expression": 5}`, ""},
		{"bad encoder", `{"encode":"color"}`, "encode"},
		{"empty expression", `{"expression":""}`, "expression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			require.Error(t, err)

			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestDecode_TooLarge(t *testing.T) {
	raw := `{"name":"` + strings.Repeat("x", MaxPayload) + `"}`
	_, err := Decode([]byte(raw))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestPatch_Apply(t *testing.T) {
	base := Config{Name: "engine", Expression: "[:digit:]+", Encode: "json"}

	p, err := Decode([]byte(`{"encode":"matches"}`))
	require.NoError(t, err)

	got := p.Apply(base)
	assert.Equal(t, Config{Name: "engine", Expression: "[:digit:]+", Encode: "matches"}, got)
	assert.Equal(t, "json", base.Encode, "Apply must not mutate its input")
}

func TestPatch_Empty(t *testing.T) {
	p, err := Decode([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, Patch{}, p)
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var s map[string]any
	require.NoError(t, json.Unmarshal(data, &s))

	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "expression")
	assert.Contains(t, props, "encode")
	assert.Contains(t, props, "name")
	assert.Equal(t, false, s["additionalProperties"])
}
