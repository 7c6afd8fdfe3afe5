package descriptor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

var paramsKey = []byte(`"params": {`)

// TextualExtractor scans the pretty-printed request object of a generated
// file without parsing the TypeScript around it.
//
// The params object is located by its key line and delimited by balancing
// braces, so the extractor does not depend on how the file is indented.
type TextualExtractor struct{}

func NewTextual() *TextualExtractor { return &TextualExtractor{} }

// Extract implements Extractor.
func (t *TextualExtractor) Extract(_ context.Context, content []byte) (*Descriptor, error) {
	at := bytes.Index(content, []byte(ConcreteRequestMarker))
	if at < 0 {
		return nil, ErrNoDescriptor
	}
	rest := content[at:]
	open := findParamsOpen(rest)
	if open < 0 {
		return nil, ErrNoDescriptor
	}
	end := matchBrace(rest, open)
	if end < 0 {
		return nil, ErrNoDescriptor
	}
	d, off, err := decodeParams(rest[open : end+1])
	if err != nil {
		e := &Error{Strategy: Textual, Err: err}
		if off >= 0 {
			e.Line, e.Column = position(content, at+open+off)
		} else {
			e.Line, e.Column = position(content, at+open)
		}
		return nil, e
	}
	return d, nil
}

// findParamsOpen returns the offset of the opening brace on the first line
// whose trimmed form starts with the params key, or -1.
func findParamsOpen(b []byte) int {
	start := 0
	for start < len(b) {
		end := bytes.IndexByte(b[start:], '\n')
		if end < 0 {
			end = len(b)
		} else {
			end += start
		}
		line := b[start:end]
		if bytes.HasPrefix(bytes.TrimSpace(line), paramsKey) {
			return start + bytes.Index(line, paramsKey) + len(paramsKey) - 1
		}
		start = end + 1
	}
	return -1
}

// matchBrace returns the offset of the brace closing the one at open, or -1.
// Braces inside double-quoted strings are ignored.
func matchBrace(b []byte, open int) int {
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(b); i++ {
		c := b[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

type rawParams struct {
	Name          *string         `json:"name"`
	Text          *string         `json:"text"`
	ID            *string         `json:"id"`
	CacheID       string          `json:"cacheID"`
	OperationKind string          `json:"operationKind"`
	Metadata      json.RawMessage `json:"metadata"`
}

var (
	errMissingName = errors.New(`params: missing string field "name"`)
	errMissingText = errors.New(`params: missing string field "text"`)
	errEmptyName   = errors.New(`params: empty "name"`)
)

// decodeParams parses the params object. On failure it also returns the
// offset of the syntax error within fragment, or -1.
func decodeParams(fragment []byte) (*Descriptor, int, error) {
	var p rawParams
	if err := json.Unmarshal(fragment, &p); err != nil {
		var se *json.SyntaxError
		if errors.As(err, &se) {
			return nil, int(se.Offset), err
		}
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return nil, int(te.Offset), err
		}
		return nil, -1, err
	}
	switch {
	case p.Name == nil:
		return nil, -1, errMissingName
	case p.Text == nil:
		return nil, -1, errMissingText
	case *p.Name == "":
		return nil, -1, errEmptyName
	}
	return &Descriptor{
		Name:          *p.Name,
		Text:          *p.Text,
		ID:            p.ID,
		CacheID:       p.CacheID,
		OperationKind: p.OperationKind,
		Metadata:      p.Metadata,
	}, 0, nil
}

// position converts a byte offset into a 1-based line and column.
func position(content []byte, off int) (line, col int) {
	if off > len(content) {
		off = len(content)
	}
	line = 1 + bytes.Count(content[:off], []byte{'\n'})
	col = off - bytes.LastIndexByte(content[:off], '\n')
	return line, col
}
