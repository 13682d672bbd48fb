package engine

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rosie/internal/pattern"
	"github.com/roach88/rosie/internal/testutil"
)

const digitsConfig = `{"expression" : "[:digit:]+", "encode" : "json"}`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, diags, err := New(testutil.NewHome(t), WithIDGenerator(NewSequentialGenerator("engine")))
	require.NoError(t, err)
	require.NotEmpty(t, diags)
	t.Cleanup(e.Drop)
	return e
}

func TestNew_Diagnostics(t *testing.T) {
	home := testutil.NewHome(t)
	e, diags, err := New(home, WithIDGenerator(NewSequentialGenerator("engine")))
	require.NoError(t, err)
	defer e.Drop()

	assert.Equal(t, "engine-1", e.ID())
	assert.Equal(t, []string{"engine engine-1", "home " + filepath.Clean(home)}, diags)
}

func TestNew_Failures(t *testing.T) {
	file := testutil.WriteFile(t, t.TempDir(), "plain", "x")
	noRuntime := t.TempDir()
	runtimeIsFile := t.TempDir()
	testutil.WriteFile(t, runtimeIsFile, RuntimeDir, "not a dir")

	tests := []struct {
		name string
		home string
	}{
		{"empty", ""},
		{"missing", filepath.Join(t.TempDir(), "absent")},
		{"not a directory", file},
		{"no runtime dir", noRuntime},
		{"runtime is a file", runtimeIsFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, diags, err := New(tt.home)
			require.Error(t, err)
			assert.Nil(t, e)
			assert.Equal(t, ErrCodeInitFailed, CodeOf(err))
			assert.NotEmpty(t, diags, "a failed initialize still describes the cause")
		})
	}
}

func TestConfigure_ThenInspect(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.Configure([]byte(digitsConfig)))

	s, err := e.Inspect()
	require.NoError(t, err)
	assert.Equal(t, "[:digit:]+", s.Expression)
	assert.Equal(t, "json", s.Encode)
	assert.Equal(t, pattern.AnonymousType, s.Type)
	assert.Equal(t, "engine-1", s.ID)
}

func TestConfigure_Patch(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.Configure([]byte(`{"name":"Ruby engine"}`)))
	require.NoError(t, e.Configure([]byte(digitsConfig)))
	require.NoError(t, e.Configure([]byte(`{"encode":"matches"}`)))

	s, err := e.Inspect()
	require.NoError(t, err)
	assert.Equal(t, "Ruby engine", s.Name)
	assert.Equal(t, "[:digit:]+", s.Expression)
	assert.Equal(t, "matches", s.Encode)
}

func TestConfigure_FailureKeepsState(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Configure([]byte(digitsConfig)))

	before, err := e.Inspect()
	require.NoError(t, err)

	bad := []string{
		"This is NOT valid json",
		`{"expression": "[:digit:"}`,
		`{"expression": "undefined_name"}`,
		`{"encode": "color"}`,
		`{"expression": "[:alpha:]+", "colour": "red"}`,
		`{"expression": "!x"}`,
	}
	for _, raw := range bad {
		err := e.Configure([]byte(raw))
		require.Error(t, err, raw)
		assert.True(t, IsConfigError(err), "%s: %v", raw, err)

		after, err := e.Inspect()
		require.NoError(t, err)
		assert.Equal(t, before, after, raw)
	}

	res, err := e.Match([]byte("1239999999"), 0)
	require.NoError(t, err)
	assert.True(t, res.Matched)
}

func TestConfigure_CompileErrorCode(t *testing.T) {
	e := newTestEngine(t)

	err := e.Configure([]byte(`{"expression": "undefined_name"}`))
	assert.Equal(t, ErrCodeCompileFailed, CodeOf(err))

	err = e.Configure([]byte(`not json`))
	assert.Equal(t, ErrCodeConfigInvalid, CodeOf(err))
}

func TestMatch_NotConfigured(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Match([]byte("123"), 0)
	require.Error(t, err)
	assert.True(t, IsNotConfigured(err))
}

func TestMatch_DigitsJSON(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Configure([]byte(digitsConfig)))

	res, err := e.Match([]byte("1239999999"), 0)
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, 0, res.Leftover)

	var m pattern.Match
	require.NoError(t, json.Unmarshal(res.Payload, &m))
	assert.Equal(t, "1239999999", m.Data)
	assert.Equal(t, 1, m.S)
	assert.Equal(t, 11, m.E)
}

func TestMatch_LongInput(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Configure([]byte(digitsConfig)))

	input := "123" + strings.Repeat("9", 97)
	res, err := e.Match([]byte(input), 0)
	require.NoError(t, err)

	var m pattern.Match
	require.NoError(t, json.Unmarshal(res.Payload, &m))
	assert.Equal(t, input, m.Data)
	assert.Equal(t, len(input)+1, m.E)
}

func TestMatch_EmbeddedZeroBytes(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Configure([]byte(`{"expression": ".*", "encode": "matches"}`)))

	input := []byte("12\x0034\x00")
	res, err := e.Match(input, 0)
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, input, res.Payload, "all %d bytes are read", len(input))
}

func TestMatch_NoMatch(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Configure([]byte(digitsConfig)))

	res, err := e.Match([]byte(digitsConfig), 0)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Empty(t, res.Payload)
	assert.Equal(t, len(digitsConfig), res.Leftover)
}

func TestMatch_StartPosition(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Configure([]byte(`{"expression":"[:digit:]+","encode":"matches"}`)))

	res, err := e.Match([]byte("abc123def"), 4)
	require.NoError(t, err)
	assert.Equal(t, "123", string(res.Payload))
	assert.Equal(t, 3, res.Leftover)

	_, err = e.Match([]byte("abc"), 10)
	assert.Equal(t, ErrCodeMatchFailed, CodeOf(err))
}

func TestLoadManifest_Sys(t *testing.T) {
	e := newTestEngine(t)

	files, err := e.LoadManifest("$sys/MANIFEST")
	require.NoError(t, err)
	assert.Len(t, files, 4)

	s, err := e.Inspect()
	require.NoError(t, err)
	assert.Equal(t, 10, s.Definitions)
	assert.Equal(t, files, s.Manifests)

	require.NoError(t, e.Configure([]byte(`{"expression":"net.ipv4"}`)))
	res, err := e.Match([]byte("10.0.0.254:80"), 0)
	require.NoError(t, err)
	require.True(t, res.Matched)

	var m pattern.Match
	require.NoError(t, json.Unmarshal(res.Payload, &m))
	assert.Equal(t, "net.ipv4", m.Type)
	assert.Equal(t, "10.0.0.254", m.Data)
	assert.Equal(t, 3, res.Leftover)
}

func TestLoadManifest_SubMatches(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.LoadManifest("$sys/MANIFEST")
	require.NoError(t, err)

	require.NoError(t, e.Configure([]byte(`{"expression":"num.decimal","encode":"subs"}`)))
	res, err := e.Match([]byte("-3.14"), 0)
	require.NoError(t, err)
	assert.Equal(t, "-3\n.14", string(res.Payload))
}

func TestLoadManifest_FailureKeepsState(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.LoadManifest("$sys/MANIFEST")
	require.NoError(t, err)
	require.NoError(t, e.Configure([]byte(digitsConfig)))

	before, err := e.Inspect()
	require.NoError(t, err)
	defsBefore, err := e.Definitions()
	require.NoError(t, err)

	bad := testutil.WriteFile(t, t.TempDir(), "bad.rpl", "broken = num.int undefined_thing\n")

	for _, ref := range []string{"1239999999", "$sys/NOPE", "$home/MANIFEST", bad} {
		_, err := e.LoadManifest(ref)
		require.Error(t, err, ref)
		assert.True(t, IsManifestError(err), ref)

		after, err := e.Inspect()
		require.NoError(t, err)
		assert.Equal(t, before, after, ref)

		defsAfter, err := e.Definitions()
		require.NoError(t, err)
		assert.Equal(t, defsBefore, defsAfter, ref)
	}
}

func TestLoadManifest_RecursiveDefinitionRejected(t *testing.T) {
	e := newTestEngine(t)
	path := testutil.WriteFile(t, t.TempDir(), "loop.rpl", "a = \"x\" b?\nb = a\n")

	_, err := e.LoadManifest(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, pattern.ErrRecursive)
}

func TestLoadManifest_ConfiguredPatternUnchanged(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	first := testutil.WriteFile(t, dir, "first.rpl", "d = [:digit:]+\n")
	second := testutil.WriteFile(t, dir, "second.rpl", "d = [:alpha:]+\n")

	_, err := e.LoadManifest(first)
	require.NoError(t, err)
	require.NoError(t, e.Configure([]byte(`{"expression":"d","encode":"matches"}`)))

	_, err = e.LoadManifest(second)
	require.NoError(t, err)

	res, err := e.Match([]byte("42"), 0)
	require.NoError(t, err)
	assert.Equal(t, "42", string(res.Payload))

	require.NoError(t, e.Configure([]byte(`{"expression":"d"}`)))
	res, err = e.Match([]byte("42"), 0)
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestClose_FinalizesEverything(t *testing.T) {
	e, _, err := New(testutil.NewHome(t))
	require.NoError(t, err)
	require.NoError(t, e.Configure([]byte(digitsConfig)))

	require.NoError(t, e.Close())

	err = e.Close()
	assert.True(t, IsFinalized(err))

	assert.True(t, IsFinalized(e.Configure([]byte(digitsConfig))))
	_, err = e.Inspect()
	assert.True(t, IsFinalized(err))
	_, err = e.LoadManifest("$sys/MANIFEST")
	assert.True(t, IsFinalized(err))
	_, err = e.Match([]byte("1"), 0)
	assert.True(t, IsFinalized(err))
	_, err = e.Definitions()
	assert.True(t, IsFinalized(err))
}

func TestEngine_ClockAdvances(t *testing.T) {
	e, _, err := New(testutil.NewHome(t), WithClock(NewClockAt(100)))
	require.NoError(t, err)
	defer e.Drop()

	assert.Equal(t, int64(101), e.Seq())
	require.NoError(t, e.Configure([]byte(digitsConfig)))
	_, err = e.Match([]byte("1"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(103), e.Seq())
}

func TestError_Lines(t *testing.T) {
	err := &Error{
		Code:        ErrCodeManifestFailed,
		Message:     "cannot load",
		Err:         assert.AnError,
		Diagnostics: []string{"more"},
	}
	assert.Equal(t, []string{"cannot load: " + assert.AnError.Error(), "more"}, err.Lines())
	assert.Contains(t, err.Error(), "MANIFEST_FAILED")
	assert.ErrorIs(t, err, assert.AnError)
}
