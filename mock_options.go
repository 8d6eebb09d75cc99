package mockinspect

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/ansel1/merry"
)

// MockOptions declares one mocked request and its canned response.
//
// A mock is a GraphQL mock if GraphQLQueryName or GraphQLMutationName is set,
// and a REST mock otherwise.  REST mocks need a RequestPattern or
// RequestRegexp.  GraphQL mocks may add one to only answer a particular API.
type MockOptions struct {
	// RequestPattern is either an absolute URL, matched exactly (ignoring
	// the query string), or a path fragment, matched anywhere in the
	// request path.  See URLPattern.
	RequestPattern string

	// RequestRegexp is matched against the request URL without its query
	// string.  Mutually exclusive with RequestPattern.
	RequestRegexp *regexp.Regexp

	// RequestMethod defaults to "GET".  Ignored by GraphQL mocks, which
	// answer operations sent with either GET or POST.
	RequestMethod string

	// ResponseStatus defaults to 200.
	ResponseStatus int

	// ResponseBody can be a string, []byte, or any value the Mocker's
	// Marshaler can encode (JSON by default).
	ResponseBody interface{}

	ResponseHeaders map[string]string

	// Persistent mocks answer every matching request until the Mocker is
	// reset.  Otherwise the mock is used up by the first matching request.
	Persistent bool

	GraphQLQueryName    string
	GraphQLMutationName string

	// GraphQLAutoMocking generates the response from a schema when no
	// ResponseBody is given.  Requires an AutoMocker (see WithAutoMocker).
	GraphQLAutoMocking *GraphQLAutoMocking
}

// GraphQLAutoMocking configures generated GraphQL responses.
type GraphQLAutoMocking struct {
	Schema            string
	CustomTypes       map[string]func() interface{}
	FixedArrayLengths map[string]ArrayLength
}

// ArrayLength fixes the length of generated arrays, or bounds it if Max is
// greater than Min.
type ArrayLength struct {
	Min, Max int
}

// RequestKind distinguishes REST from GraphQL mocks.
type RequestKind int

// Request kinds.
const (
	KindREST RequestKind = iota
	KindGraphQL
)

func (k RequestKind) String() string {
	if k == KindGraphQL {
		return "graphql"
	}
	return "rest"
}

// supportedMethods are the methods the Interceptor can answer.
// nolint:gochecknoglobals
var supportedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

const (
	msgBothGraphQLNames = "You passed graphQLMutationName AND graphQLQueryName into the mock options - please pick one, you can't have both."
	msgNotEnoughOptions = "Not enough options passed. When mocking REST requests, we need to know of the `requestPattern` property. When mocking graphQL requests, we need to know of the `graphQLQueryName` OR `graphQLMutationName` property. (With graphQL, you can optionally also pass a requestPattern though to make the mock more specific.)"
	msgBothPatterns     = "You passed requestPattern AND requestRegexp into the mock options - please pick one, you can't have both."
)

func (o *MockOptions) validate() error {
	if o.GraphQLMutationName != "" && o.GraphQLQueryName != "" {
		return configurationError(msgBothGraphQLNames)
	}
	if o.GraphQLMutationName == "" && o.GraphQLQueryName == "" && o.RequestPattern == "" && o.RequestRegexp == nil {
		return configurationError(msgNotEnoughOptions)
	}
	if o.RequestPattern != "" && o.RequestRegexp != nil {
		return configurationError(msgBothPatterns)
	}
	if am := o.GraphQLAutoMocking; am != nil {
		if o.kind() != KindGraphQL {
			return configurationError("graphQLAutoMocking can only be used when mocking graphQL requests.")
		}
		if strings.TrimSpace(am.Schema) == "" {
			return configurationError("graphQLAutoMocking needs a schema to generate responses from.")
		}
	}
	return nil
}

func (o *MockOptions) kind() RequestKind {
	if o.GraphQLQueryName != "" || o.GraphQLMutationName != "" {
		return KindGraphQL
	}
	return KindREST
}

func (o *MockOptions) statusCode() int {
	if o.ResponseStatus == 0 {
		return http.StatusOK
	}
	return o.ResponseStatus
}

func (o *MockOptions) method() (string, error) {
	m := strings.ToUpper(strings.TrimSpace(o.RequestMethod))
	if m == "" {
		m = http.MethodGet
	}
	if !supportedMethods[m] {
		return "", merry.WithMessagef(merry.Here(ErrUnsupportedMethod),
			"The HTTP method %q is not supported by the underlying mocking framework we are using, sorry.", o.RequestMethod)
	}
	return m, nil
}

// responseBody encodes the declared body.  Strings and byte slices are used
// as-is; other values are marshaled and the marshaler's content type is
// returned.
func (o *MockOptions) responseBody(m Marshaler) (body []byte, contentType string, err error) {
	switch v := o.ResponseBody.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(v), "", nil
	case []byte:
		return v, "", nil
	default:
		if m == nil {
			m = DefaultMarshaler
		}
		body, contentType, err = m.Marshal(v)
		if err != nil {
			return nil, "", merry.Prepend(err, "encoding response body")
		}
		return body, contentType, nil
	}
}
