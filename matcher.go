package mockinspect

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// matcher decides whether an intercepted request belongs to a mock.  There
// is one implementation per RequestKind, chosen at registration.
type matcher interface {
	match(req *InterceptedRequest) bool
	kind() RequestKind
	String() string
}

type restMatcher struct {
	method  string
	pattern Pattern
}

func (m restMatcher) match(req *InterceptedRequest) bool {
	return req.Method == m.method && m.pattern.Match(req.URL)
}

func (restMatcher) kind() RequestKind { return KindREST }

func (m restMatcher) String() string {
	return m.method + " " + m.pattern.String()
}

// graphQLMatcher matches by operation type and name, and by pattern if one
// was given.  Two mocks sharing a URL are told apart by operation name.
type graphQLMatcher struct {
	operation ast.Operation
	name      string
	pattern   Pattern
}

func (m graphQLMatcher) match(req *InterceptedRequest) bool {
	if !m.pattern.Match(req.URL) {
		return false
	}
	op, ok := ParseOperation(req.Method, req.URL, req.Body)
	if !ok {
		return false
	}
	return op.Type == m.operation && op.Name == m.name
}

func (graphQLMatcher) kind() RequestKind { return KindGraphQL }

func (m graphQLMatcher) String() string {
	return fmt.Sprintf("graphql %s %s %s", m.operation, m.name, m.pattern)
}

func newMatcher(opts *MockOptions, method string) matcher {
	pattern := patternFor(opts)
	switch {
	case opts.GraphQLQueryName != "":
		return graphQLMatcher{operation: ast.Query, name: opts.GraphQLQueryName, pattern: pattern}
	case opts.GraphQLMutationName != "":
		return graphQLMatcher{operation: ast.Mutation, name: opts.GraphQLMutationName, pattern: pattern}
	default:
		return restMatcher{method: method, pattern: pattern}
	}
}
