// Package language inspects GraphQL documents carried by request
// descriptors. It never validates a document against a schema.
package language

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

var ErrNoOperation = errors.New("language: document has no operation")

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// OperationKind returns the kind ("query", "mutation" or "subscription") of
// the operation called name in source. An empty name, or a document with a
// single operation, selects the first operation.
func OperationKind(source, name string) (Operation, error) {
	doc, err := ParseQuery(source)
	if err != nil {
		return "", err
	}
	op := findOperation(doc, name)
	if op == nil {
		return "", fmt.Errorf("%w %q", ErrNoOperation, name)
	}
	return op.Operation, nil
}

func findOperation(doc *QueryDocument, name string) *OperationDefinition {
	if len(doc.Operations) == 0 {
		return nil
	}
	if name == "" || len(doc.Operations) == 1 {
		return doc.Operations[0]
	}
	return doc.Operations.ForName(name)
}
