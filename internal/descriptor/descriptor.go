package descriptor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ConcreteRequestMarker is the type name the Relay compiler writes into
// every request artifact. Files without it carry no operation.
const ConcreteRequestMarker = "ConcreteRequest"

var (
	// ErrNoDescriptor reports that the content holds no request descriptor.
	// It is an expected outcome, not a failure.
	ErrNoDescriptor = errors.New("descriptor: no descriptor found")

	// ErrUnknownStrategy is returned by ParseStrategy for unrecognised names.
	ErrUnknownStrategy = errors.New("descriptor: unknown extraction strategy")
)

// Descriptor is the operation extracted from one generated file.
//
// Only Name and Text take part in signing. The remaining fields are filled
// by the textual strategy when the params object carries them.
type Descriptor struct {
	Name string `json:"name"`
	Text string `json:"text"`

	ID            *string         `json:"id,omitempty"`
	CacheID       string          `json:"cacheID,omitempty"`
	OperationKind string          `json:"operationKind,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Extractor pulls a Descriptor out of the content of a generated file.
//
// Extract returns ErrNoDescriptor when the content holds no descriptor and
// an *Error when the content could not be parsed.
type Extractor interface {
	Extract(ctx context.Context, content []byte) (*Descriptor, error)
}

// Error is a parse failure inside a single file.
type Error struct {
	Strategy Strategy
	// Line and Column are 1-based; zero when unknown.
	Line   int
	Column int
	Err    error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s extraction: %d:%d: %v", e.Strategy, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("%s extraction: %v", e.Strategy, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Strategy selects an Extractor. It is fixed once at startup.
type Strategy int

const (
	Structural Strategy = iota
	Textual
)

func (s Strategy) String() string {
	switch s {
	case Structural:
		return "structural"
	case Textual:
		return "textual"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a configuration value to a Strategy. The names "swc"
// and "manual" are accepted for compatibility with older build scripts.
// An empty name selects Structural.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "structural", "swc":
		return Structural, nil
	case "textual", "manual":
		return Textual, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownStrategy, name)
	}
}

// Extractor returns a new extractor implementing s.
func (s Strategy) Extractor() Extractor {
	if s == Textual {
		return NewTextual()
	}
	return NewStructural()
}
