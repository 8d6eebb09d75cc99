package mockinspect

// AutoMockRequest is passed to an AutoMocker to generate the response to a
// GraphQL operation.
type AutoMockRequest struct {
	Schema    string
	Query     string
	Variables map[string]interface{}

	// CustomTypes maps type names to value generators.  Used for custom
	// scalars and to override generated values.
	CustomTypes map[string]func() interface{}

	// FixedArrayLengths maps "Type.field" to the length of generated lists.
	FixedArrayLengths map[string]ArrayLength

	// Used is true if the mock has already answered a request.  Generators
	// may use it to vary repeated responses.
	Used bool
}

// AutoMocker generates GraphQL responses from a schema.  The result is
// JSON encoded into the mocked response body.
type AutoMocker interface {
	GenerateResponse(req AutoMockRequest) (interface{}, error)
}

// AutoMockerFunc adapts a function to the AutoMocker interface.
type AutoMockerFunc func(req AutoMockRequest) (interface{}, error)

// GenerateResponse implements AutoMocker.
func (f AutoMockerFunc) GenerateResponse(req AutoMockRequest) (interface{}, error) {
	return f(req)
}

// Apply implements Option.  An AutoMockerFunc can be passed directly to New.
func (f AutoMockerFunc) Apply(m *Mocker) error {
	m.autoMocker = f
	return nil
}

func newAutoMockRequest(opts *GraphQLAutoMocking, req *InterceptedRequest, used bool) AutoMockRequest {
	gq, _ := ParseGraphQLRequest(req.Method, req.URL, req.Body)
	return AutoMockRequest{
		Schema:            opts.Schema,
		Query:             gq.Query,
		Variables:         gq.Variables,
		CustomTypes:       opts.CustomTypes,
		FixedArrayLengths: opts.FixedArrayLengths,
		Used:              used,
	}
}
