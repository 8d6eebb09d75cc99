package mockinspect

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/ansel1/merry"
	"github.com/tidwall/gjson"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

// Operation identifies the GraphQL operation carried by a request.
type Operation struct {
	// Type is "query", "mutation" or "subscription".
	Type ast.Operation
	Name string
}

// GraphQLRequest is the decoded form of a GraphQL request payload.
type GraphQLRequest struct {
	Query         string
	OperationName string
	Variables     map[string]interface{}

	// InvalidVariables holds the raw variables query parameter of a GET
	// request when it doesn't decode as a JSON object.
	InvalidVariables string
}

// ParseGraphQLRequest reads a GraphQL request from a POST body or, for GET
// requests, from the query string.  ok is false if the request doesn't
// carry a query.
func ParseGraphQLRequest(method string, u *url.URL, body []byte) (req GraphQLRequest, ok bool) {
	if strings.EqualFold(method, http.MethodGet) || len(bytes.TrimSpace(body)) == 0 {
		if u == nil {
			return req, false
		}
		q := u.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				req.Variables = nil
				req.InvalidVariables = v
			}
		}
		return req, req.Query != ""
	}

	if !gjson.ValidBytes(body) {
		return req, false
	}
	req.Query = gjson.GetBytes(body, "query").String()
	req.OperationName = gjson.GetBytes(body, "operationName").String()
	if vars, ok := gjson.GetBytes(body, "variables").Value().(map[string]interface{}); ok {
		req.Variables = vars
	}
	return req, req.Query != ""
}

// ParseOperation returns the operation a GraphQL request executes.  If the
// query holds several operations, operationName selects one; otherwise the
// first is used.
func ParseOperation(method string, u *url.URL, body []byte) (Operation, bool) {
	req, ok := ParseGraphQLRequest(method, u, body)
	if !ok {
		return Operation{}, false
	}
	doc, err := parser.ParseQuery(&ast.Source{Input: req.Query})
	if err != nil {
		return Operation{}, false
	}
	for _, op := range doc.Operations {
		if req.OperationName == "" || op.Name == req.OperationName {
			return Operation{Type: op.Operation, Name: op.Name}, true
		}
	}
	return Operation{}, false
}

// canonicalQuery reformats a GraphQL document so that queries differing
// only in whitespace compare equal.
func canonicalQuery(query string) (string, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return "", merry.Prepend(err, "parsing graphql query")
	}
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(doc)
	return buf.String(), nil
}

// graphQLPayload is the comparable form of a GraphQL request.
type graphQLPayload struct {
	Query     string
	Variables map[string]interface{}
}

// toGraphQLPayload converts a request body, in any of the forms accepted as
// a payload, into its comparable form.  Bodies which don't parse as GraphQL
// are kept verbatim in Query, so they still compare by content.
func toGraphQLPayload(body interface{}) graphQLPayload {
	b, err := payloadBytes(body)
	if err != nil || len(b) == 0 {
		return graphQLPayload{}
	}
	req, ok := ParseGraphQLRequest(http.MethodPost, nil, b)
	if !ok {
		return graphQLPayload{Query: string(b)}
	}
	p := graphQLPayload{Query: req.Query, Variables: req.Variables}
	if q, err := canonicalQuery(req.Query); err == nil {
		p.Query = q
	}
	return p
}
