// Package config decodes and validates engine configuration payloads.
//
// A payload is a JSON object. Recognized keys:
//
//	expression  the pattern to compile and use for subsequent matches
//	encode      output encoding for match results (json, line, matches, subs, bool)
//	name        a free-form label for the engine
//
// Payloads are patches: keys that are present replace the current value,
// absent keys leave it alone. Unknown keys, trailing data and anything that
// is not a single JSON object are rejected.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

// MaxPayload bounds the size of a configuration payload.
const MaxPayload = 1 << 20

// Config is the effective configuration of an engine.
type Config struct {
	Name       string `json:"name,omitempty"`
	Expression string `json:"expression,omitempty"`
	Encode     string `json:"encode,omitempty"`
}

// Patch is a decoded configuration payload. Nil fields were absent.
type Patch struct {
	Name       *string `json:"name,omitempty" validate:"omitnil,max=256" jsonschema:"description=Engine label"`
	Expression *string `json:"expression,omitempty" validate:"omitnil,min=1,max=65536" jsonschema:"description=Pattern expression to compile"`
	Encode     *string `json:"encode,omitempty" validate:"omitnil,oneof=json line matches subs bool" jsonschema:"enum=json,enum=line,enum=matches,enum=subs,enum=bool"`
}

// Apply returns c with the fields present in p replaced.
func (p Patch) Apply(c Config) Config {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Expression != nil {
		c.Expression = *p.Expression
	}
	if p.Encode != nil {
		c.Encode = *p.Encode
	}
	return c
}

// Error describes a rejected payload.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrNotObject is returned when the payload is not a single JSON object.
	ErrNotObject = errors.New("payload must be a single JSON object")

	// ErrTooLarge is returned for payloads above MaxPayload.
	ErrTooLarge = errors.New("payload too large")
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			return name
		})
	})
	return validate
}

// Decode parses and validates a configuration payload.
func Decode(raw []byte) (Patch, error) {
	if len(raw) > MaxPayload {
		return Patch{}, &Error{Err: fmt.Errorf("%w: %d bytes", ErrTooLarge, len(raw))}
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Patch{}, &Error{Err: ErrNotObject}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var p Patch
	if err := dec.Decode(&p); err != nil {
		return Patch{}, &Error{Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Patch{}, &Error{Err: fmt.Errorf("%w: trailing data", ErrNotObject)}
	}

	if err := getValidator().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Patch{}, &Error{Field: fe.Field(), Err: fmt.Errorf("failed %q validation", fe.Tag())}
		}
		return Patch{}, &Error{Err: err}
	}
	return p, nil
}

// Schema returns the JSON Schema describing configuration payloads.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	s := r.Reflect(&Patch{})
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal config schema: %w", err)
	}
	return data, nil
}
