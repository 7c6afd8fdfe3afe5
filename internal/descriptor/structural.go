package descriptor

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var errSyntax = errors.New("typescript syntax error")

// StructuralExtractor parses the file as TypeScript and reads the request
// params from the syntax tree.
type StructuralExtractor struct {
	lang *sitter.Language
}

func NewStructural() *StructuralExtractor {
	return &StructuralExtractor{lang: typescript.GetLanguage()}
}

// Extract implements Extractor. Malformed TypeScript is reported as an
// *Error positioned at the first erroneous node.
func (s *StructuralExtractor) Extract(ctx context.Context, content []byte) (*Descriptor, error) {
	// Parsers are not safe for concurrent use; one per call.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(s.lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, &Error{Strategy: Structural, Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		e := &Error{Strategy: Structural, Err: errSyntax}
		if bad := firstError(root); bad != nil {
			p := bad.StartPoint()
			e.Line, e.Column = int(p.Row)+1, int(p.Column)+1
		}
		return nil, e
	}

	w := paramsWalker{src: content}
	w.visit(root)
	if w.err != nil {
		return nil, w.err
	}
	if w.state == notInParams || w.name == nil || w.text == nil {
		return nil, ErrNoDescriptor
	}
	if *w.name == "" {
		return nil, &Error{Strategy: Structural, Err: errEmptyName}
	}
	return &Descriptor{Name: *w.name, Text: *w.text}, nil
}

type walkState int

const (
	notInParams walkState = iota
	inParams
	done
)

// paramsWalker is a depth-first visitor over object literal pairs.
type paramsWalker struct {
	src   []byte
	state walkState
	name  *string
	text  *string
	err   error
}

func (w *paramsWalker) visit(n *sitter.Node) {
	if n.Type() == "pair" {
		w.pair(n)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if w.state == done || w.err != nil {
			return
		}
		w.visit(n.NamedChild(i))
	}
}

func (w *paramsWalker) pair(n *sitter.Node) {
	key := n.ChildByFieldName("key")
	value := n.ChildByFieldName("value")
	if key == nil || value == nil || key.Type() != "string" {
		return
	}
	k := key.Content(w.src)

	if w.state == notInParams {
		if k == `"params"` && value.Type() == "object" {
			w.state = inParams
		}
		return
	}

	var slot **string
	switch k {
	case `"name"`:
		slot = &w.name
	case `"text"`:
		slot = &w.text
	default:
		return
	}
	if *slot != nil || value.Type() != "string" {
		return
	}
	s, err := unquoteJS(value.Content(w.src))
	if err != nil {
		p := value.StartPoint()
		w.err = &Error{
			Strategy: Structural,
			Line:     int(p.Row) + 1,
			Column:   int(p.Column) + 1,
			Err:      fmt.Errorf("%s value: %w", k, err),
		}
		return
	}
	*slot = &s
	if w.name != nil && w.text != nil {
		w.state = done
	}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !(c.HasError() || c.IsMissing()) {
			continue
		}
		if bad := firstError(c); bad != nil {
			return bad
		}
	}
	return nil
}
