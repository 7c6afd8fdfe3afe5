// Package descriptor extracts GraphQL request descriptors from the
// TypeScript artifacts written by the Relay compiler.
//
// A generated file looks roughly like this:
//
//	const node: ConcreteRequest = {
//	  "fragment": { ... },
//	  "kind": "Request",
//	  "operation": { ... },
//	  "params": {
//	    "cacheID": "c1",
//	    "id": null,
//	    "metadata": {},
//	    "name": "FooQuery",
//	    "operationKind": "query",
//	    "text": "query FooQuery { x }"
//	  }
//	};
//
// Two strategies read the params object. Structural parses the whole file
// with a TypeScript grammar and walks the syntax tree; Textual locates the
// object by its key and decodes it as JSON. Both agree on well-formed
// compiler output.
package descriptor
