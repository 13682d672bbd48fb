// Package encoder renders match results in the output formats an engine
// can be configured with.
package encoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/roach88/rosie/internal/pattern"
)

// Default is the encoder used when no encoding has been configured.
const Default = "json"

// ErrUnknownEncoder is returned by Lookup for unregistered names.
var ErrUnknownEncoder = errors.New("unknown encoder")

// Encoder turns a successful match into a payload. Encoders are only called
// with a non-nil match; a failed match always yields an empty payload.
type Encoder interface {
	Name() string
	Encode(m *pattern.Match, input []byte) ([]byte, error)
}

type encoderFunc struct {
	name string
	fn   func(m *pattern.Match, input []byte) ([]byte, error)
}

func (e encoderFunc) Name() string { return e.name }

func (e encoderFunc) Encode(m *pattern.Match, input []byte) ([]byte, error) {
	return e.fn(m, input)
}

var registry = map[string]Encoder{
	"json":    encoderFunc{"json", encodeJSON},
	"line":    encoderFunc{"line", encodeLine},
	"matches": encoderFunc{"matches", encodeMatches},
	"subs":    encoderFunc{"subs", encodeSubs},
	"bool":    encoderFunc{"bool", encodeBool},
}

// Names lists the registered encoder names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the encoder registered under name. An empty name selects Default.
func Lookup(name string) (Encoder, error) {
	if name == "" {
		name = Default
	}
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoder, name)
	}
	return e, nil
}

// jsonMatch is the json form of a match node. JSON strings cannot carry
// invalid UTF-8, so such data is sent with replacement characters and the
// exact bytes follow in raw, base64 encoded.
type jsonMatch struct {
	Type string       `json:"type"`
	S    int          `json:"s"`
	E    int          `json:"e"`
	Data string       `json:"data"`
	Raw  []byte       `json:"raw,omitempty"`
	Subs []*jsonMatch `json:"subs,omitempty"`
}

func toJSONMatch(m *pattern.Match) *jsonMatch {
	out := &jsonMatch{Type: m.Type, S: m.S, E: m.E, Data: m.Data}
	if !utf8.ValidString(m.Data) {
		out.Data = strings.ToValidUTF8(m.Data, "\uFFFD")
		out.Raw = []byte(m.Data)
	}
	for _, sub := range m.Subs {
		out.Subs = append(out.Subs, toJSONMatch(sub))
	}
	return out
}

func encodeJSON(m *pattern.Match, _ []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(toJSONMatch(m)); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func encodeLine(_ *pattern.Match, input []byte) ([]byte, error) {
	return input, nil
}

func encodeMatches(m *pattern.Match, _ []byte) ([]byte, error) {
	return []byte(m.Data), nil
}

func encodeSubs(m *pattern.Match, _ []byte) ([]byte, error) {
	var buf bytes.Buffer
	for i, s := range m.Subs {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(s.Data)
	}
	return buf.Bytes(), nil
}

func encodeBool(*pattern.Match, []byte) ([]byte, error) {
	return nil, nil
}
