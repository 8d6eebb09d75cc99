package mockinspect

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ansel1/merry"
)

// MatchInput holds the expectations of ExpectMadeMatching.  Unset fields
// aren't checked.
type MatchInput struct {
	// Payload is compared to the request body.  Bodies which are valid JSON
	// compare by value, so a string of JSON matches the equivalent map or
	// struct.  An empty payload isn't checked.
	Payload interface{}

	// Headers must all be present in the request, compared without regard
	// to case.  Other request headers are ignored.
	Headers map[string]string

	// Query holds expected query parameters, as url.Values,
	// map[string][]string, map[string]string, a query string, or a struct
	// with `url` tags.  Other parameters are ignored.
	Query interface{}
}

// RequestInfo is what Inspect reports about the request made.
type RequestInfo struct {
	// Body is the raw request body, "" if there was none.
	Body string

	// Headers maps lower case header names to their first value, lower cased.
	Headers map[string]string
}

// MockedRequest is returned by the Mocker's Mock functions, and checks
// the requests made against the mock.
//
// Errors returned by its methods have their stack set to the caller, and
// RegisteredAt(err) returns where the mock was registered.  Assertion
// failures match ErrAssertion.
type MockedRequest struct {
	mocker   *Mocker
	ref      Reference
	kind     RequestKind
	contract *Contract
	site     callSite
}

// Reference returns the registry key of the mock.
func (r *MockedRequest) Reference() Reference {
	return r.ref
}

// Kind returns whether this is a REST or a GraphQL mock.
func (r *MockedRequest) Kind() RequestKind {
	return r.kind
}

// Contract returns the contract the mock was created from, or nil.
func (r *MockedRequest) Contract() *Contract {
	return r.contract
}

// RegisteredAt returns the file:line where the mock was registered.
func (r *MockedRequest) RegisteredAt() string {
	return r.site.String()
}

// ExpectMade returns an error if no request matched the mock.
func (r *MockedRequest) ExpectMade() error {
	_, err := r.expectMade(true)
	return r.fail(err)
}

// ExpectNotMade returns an error if a request matched the mock.
func (r *MockedRequest) ExpectNotMade() error {
	_, err := r.expectMade(false)
	return r.fail(err)
}

// ExpectMadeMatching checks that a request was made, and that it matched
// the expectations in the input.
func (r *MockedRequest) ExpectMadeMatching(in MatchInput) error {
	return r.fail(r.expectMadeMatching(in))
}

// ExpectMadeMatchingContract checks the request made against a contract:
// protocol, host name and path, then either the GraphQL query and variables,
// or the body and the query string.
//
// If the mock was created with MockFromContract, call it without arguments.
// Otherwise, pass exactly one contract.
func (r *MockedRequest) ExpectMadeMatchingContract(contracts ...*Contract) error {
	return r.fail(r.expectMadeMatchingContract(contracts))
}

// Inspect returns the body and headers of the request made.  Returns an
// error if no request was made.
func (r *MockedRequest) Inspect() (RequestInfo, error) {
	e, err := r.expectMade(true)
	if err != nil {
		return RequestInfo{}, r.fail(err)
	}
	return RequestInfo{
		Body:    e.Request.Body,
		Headers: NormalizeHeaders(e.Request.Header),
	}, nil
}

func (r *MockedRequest) entry() (Entry, error) {
	return r.mocker.registry.Get(r.ref)
}

func (r *MockedRequest) expectMade(expected bool) (Entry, error) {
	e, err := r.entry()
	if err != nil {
		return e, err
	}
	return e, compareRequestMadeStatusAgainstExpectation(e.Called, expected)
}

func (r *MockedRequest) expectMadeMatching(in MatchInput) error {
	e, err := r.expectMade(true)
	if err != nil {
		return err
	}
	// an empty payload expects nothing about the body
	if normalizeBody(in.Payload) != nil {
		if err := compareRequestBodies(e.Request.Body, in.Payload); err != nil {
			return err
		}
	}
	if in.Headers != nil {
		if err := checkRequestContainedDesiredHeaders(e.Request.Header, in.Headers); err != nil {
			return err
		}
	}
	if in.Query != nil {
		want, err := queryValues(in.Query)
		if err != nil {
			return merry.WithMessage(merry.Here(ErrConfiguration), err.Error())
		}
		if err := checkRequestContainedDesiredQuery(e.Request.URL, want); err != nil {
			return err
		}
	}
	return nil
}

const (
	msgContractAlreadyBound = `You cannot use the method "expectRequestMadeMatchingContract" like this. It looks like this mocked request was created from a contract; in that case, you cannot pass in a contract to expectRequestMadeMatchingContract(). Just call it without any arguments, we will do the rest for you!`
	msgContractMissing      = `You cannot use the method "expectRequestMadeMatchingContract" like this. It looks like this mocked request was not created from a contract - if you don't create a network request from a contract, please pass in a contract into expectRequestMadeMatchingContract() manually so that we know what to assert against.`
)

// contractFor resolves the contract to check against.  A bound mock must be
// checked against its own contract, an unbound one needs exactly one.
func (r *MockedRequest) contractFor(passed []*Contract) (*Contract, error) {
	switch {
	case len(passed) > 1:
		return nil, configurationError("expectRequestMadeMatchingContract() takes at most one contract.")
	case r.contract != nil && len(passed) == 1 && passed[0] != nil:
		return nil, configurationError(msgContractAlreadyBound)
	case r.contract != nil:
		return r.contract, nil
	case len(passed) == 0 || passed[0] == nil:
		return nil, configurationError(msgContractMissing)
	default:
		return passed[0], nil
	}
}

func (r *MockedRequest) expectMadeMatchingContract(passed []*Contract) error {
	contract, err := r.contractFor(passed)
	if err != nil {
		return err
	}
	e, err := r.expectMade(true)
	if err != nil {
		return err
	}

	want, err := contract.requestURL()
	if err != nil {
		return err
	}
	made, err := url.Parse(e.Request.URL)
	if err != nil {
		return merry.Prependf(err, "parsing requested url %q", e.Request.URL)
	}

	if err := compareProtocols(made.Scheme, want.Scheme); err != nil {
		return err
	}
	if err := compareHostNames(made.Hostname(), want.Hostname()); err != nil {
		return err
	}
	if err := compareEndpointPaths(made.Path, want.Path); err != nil {
		return err
	}

	if r.kind == KindGraphQL || strings.Contains(made.Path, "graphql") {
		var actual interface{} = e.Request.Body
		if strings.TrimSpace(e.Request.Body) == "" {
			// operations sent with GET
			if gq, ok := ParseGraphQLRequest(http.MethodGet, made, nil); ok {
				if gq.InvalidVariables != "" {
					return assertionError(fmt.Sprintf(
						"The variables the app sent in the query string of this GraphQL request are not a JSON object.\nVariables used by your code: %s",
						gq.InvalidVariables,
					))
				}
				actual =map[string]interface{}{"query": gq.Query, "variables": gq.Variables}
			}
		}
		return compareGraphQLQueries(actual, contract.Request.Payload)
	}
	if err := compareRequestBodies(e.Request.Body, contract.Request.Payload); err != nil {
		return err
	}
	return compareQueryParameters(made.RawQuery, want.RawQuery)
}

// fail sets the stack of err to the caller of the public method which
// returns it, and records where the mock was registered.
func (r *MockedRequest) fail(err error) error {
	if err == nil {
		return nil
	}
	if !r.mocker.preserveStacks {
		// 0 is fail, 1 the public method
		err = merry.HereSkipping(err, 2)
	}
	return merry.WithValue(err, registeredAtKey, r.site)
}
