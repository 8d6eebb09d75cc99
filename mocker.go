package mockinspect

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/ansel1/merry"
	"github.com/kr/pretty"

	"github.com/ThalesGroup/mockinspect/httpclient"
)

// Mocker registers mocked requests and keeps the record of what was
// requested from them.
//
// A Mocker is usually created once per test (or per suite, calling Reset
// between tests), and its Client handed to the code under test:
//
//     m := mockinspect.MustNew()
//     todo, _ := m.Mock(mockinspect.MockOptions{
//         RequestPattern: "/todos/1",
//         ResponseBody:   map[string]string{"message": "ok"},
//     })
//     client, _ := m.Client()
//     // ... run code using client ...
//     require.NoError(t, todo.ExpectMade())
//
// Mocker is safe for concurrent use.
type Mocker struct {
	registry       *Registry
	transport      Transport
	logger         *slog.Logger
	marshaler      Marshaler
	autoMocker     AutoMocker
	passthrough    Doer
	middleware     []Middleware
	preserveStacks bool
}

// New creates a Mocker.  By default, it has a new Registry and records into
// a new Interceptor.
func New(opts ...Option) (*Mocker, error) {
	m := &Mocker{}
	if err := m.apply(opts...); err != nil {
		return nil, err
	}
	if m.registry == nil {
		m.registry = NewRegistry()
	}
	if m.transport == nil {
		m.transport = NewInterceptor()
	}
	if m.logger == nil {
		m.logger = discardLogger()
	}
	if m.marshaler == nil {
		m.marshaler = DefaultMarshaler
	}
	if i, ok := m.transport.(*Interceptor); ok {
		i.SetLogger(m.logger)
		i.Use(m.middleware...)
		if m.passthrough != nil {
			i.SetPassthrough(m.passthrough)
		}
	}
	return m, nil
}

// MustNew is like New, but panics on errors.
func MustNew(opts ...Option) *Mocker {
	m, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Mock registers a mocked request.  The returned MockedRequest is used to
// check the request made after the code under test has run.
func (m *Mocker) Mock(opts MockOptions) (*MockedRequest, error) {
	return m.register(opts, nil, captureCallSite(1))
}

// MockFromContract mocks the contract's response to the contract's request.
// The returned MockedRequest is bound to the contract:
// ExpectMadeMatchingContract must then be called without arguments.
func (m *Mocker) MockFromContract(c Contract) (*MockedRequest, error) {
	site := captureCallSite(1)
	if _, err := c.requestURL(); err != nil {
		return nil, m.attribute(err, site, 0)
	}
	return m.register(c.mockOptions(), &c, site)
}

// MockFromExample mocks the example's response to the example's request.
// Unlike MockFromContract, the returned MockedRequest isn't bound.
func (m *Mocker) MockFromExample(ex Example) (*MockedRequest, error) {
	c := Contract(ex)
	return m.register(c.mockOptions(), nil, captureCallSite(1))
}

// Registry returns the registry the Mocker records into.
func (m *Mocker) Registry() *Registry {
	return m.registry
}

// DumpAll returns a snapshot of every registered mock.
func (m *Mocker) DumpAll() map[Reference]Entry {
	return m.registry.Dump()
}

// LogMockedRequests logs every registered mock at info level, in creation
// order.
func (m *Mocker) LogMockedRequests() {
	entries := make([]Entry, 0, m.registry.Len())
	for _, e := range m.registry.Dump() {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Created < entries[j].Created })
	for _, e := range entries {
		m.logger.Info("mocked request",
			"reference", string(e.Reference),
			"kind", e.Kind.String(),
			"called", e.Called,
			"entry", pretty.Sprint(e),
		)
	}
}

// Reset forgets every mock: the registry is cleared and, if the transport
// supports it, installed rules are removed.  MockedRequests created before
// the reset fail with ErrNotFound.
func (m *Mocker) Reset() {
	m.registry.Reset()
	if r, ok := m.transport.(interface{ Reset() }); ok {
		r.Reset()
	}
	m.logger.Debug("reset mocks")
}

// Interceptor returns the Mocker's Interceptor, or nil if it was created
// with a different Transport.
func (m *Mocker) Interceptor() *Interceptor {
	i, _ := m.transport.(*Interceptor)
	return i
}

// Client returns an http.Client which sends its requests to the
// Interceptor.  The Interceptor is the client's transport, so options which
// set or configure a transport, like httpclient.SkipVerify, are rejected.
// Configure the Passthrough Doer instead.
func (m *Mocker) Client(opts ...httpclient.Option) (*http.Client, error) {
	i := m.Interceptor()
	if i == nil {
		return nil, configurationError("the mocker's transport is not an Interceptor")
	}
	c, err := httpclient.New(opts...)
	if err != nil {
		return nil, err
	}
	if c.Transport != nil {
		return nil, configurationError("transport options can't be applied to the mocker's client, the Interceptor is its transport")
	}
	return c, httpclient.Apply(c, httpclient.RoundTripper(i))
}

func (m *Mocker) register(opts MockOptions, contract *Contract, site callSite) (*MockedRequest, error) {
	mr, err := m.install(opts, contract, site)
	if err != nil {
		// register is always called directly from a public method
		return nil, m.attribute(err, site, 1)
	}
	return mr, nil
}

func (m *Mocker) install(opts MockOptions, contract *Contract, site callSite) (*MockedRequest, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.GraphQLAutoMocking != nil && m.autoMocker == nil {
		return nil, configurationError("graphQLAutoMocking needs an AutoMocker, see WithAutoMocker.")
	}

	kind := opts.kind()
	method := ""
	if kind == KindREST {
		var err error
		if method, err = opts.method(); err != nil {
			return nil, err
		}
	}

	body, contentType, err := opts.responseBody(m.marshaler)
	if err != nil {
		return nil, err
	}

	var headers map[string]string
	if len(opts.ResponseHeaders) > 0 {
		headers = make(map[string]string, len(opts.ResponseHeaders))
		for k, v := range opts.ResponseHeaders {
			headers[k] = v
		}
	}

	ref := m.registry.Create(kind, DeclaredResponse{
		StatusCode:       opts.statusCode(),
		Body:             body,
		Headers:          headers,
		GraphQLQueryName: opts.GraphQLQueryName,
	})

	mt := newMatcher(&opts, method)
	m.transport.Install(Rule{
		Name:    mt.String(),
		Match:   mt.match,
		Once:    !opts.Persistent,
		Respond: m.responder(ref, opts.GraphQLAutoMocking, contentType),
	})

	m.logger.Debug("registered mock",
		"reference", string(ref),
		"kind", kind.String(),
		"match", mt.String(),
		"persistent", opts.Persistent,
		"registeredAt", site.String(),
	)

	return &MockedRequest{
		mocker:   m,
		ref:      ref,
		kind:     kind,
		contract: contract,
		site:     site,
	}, nil
}

// responder builds the response callback of a mock.  The declared response
// is read back from the registry entry.
func (m *Mocker) responder(ref Reference, autoMocking *GraphQLAutoMocking, contentType string) ResponseFunc {
	return func(req *InterceptedRequest, resp *Response) error {
		e, err := m.registry.Get(ref)
		if err != nil {
			return err
		}

		body, ct := e.Response.Body, contentType
		if body == nil && autoMocking != nil {
			v, err := m.autoMocker.GenerateResponse(newAutoMockRequest(autoMocking, req, e.GraphQLUsed))
			if err != nil {
				return merry.Prepend(err, "generating graphql response")
			}
			if body, ct, err = (&JSONMarshaler{}).Marshal(v); err != nil {
				return merry.Prepend(err, "encoding generated graphql response")
			}
		}

		resp.StatusCode = e.Response.StatusCode
		resp.Body = body
		if ct != "" {
			resp.Header.Set("Content-Type", ct)
		}
		for k, v := range e.Response.Headers {
			resp.Header.Set(k, v)
		}
		// recorded contracts carry the length of the recorded body
		resp.Header.Del("Content-Length")
		resp.Header.Del(HeaderPoweredBy)

		return m.registry.Update(ref, ObservedRequest{
			Body:   string(req.Body),
			Header: req.Header,
			URL:    req.URL.String(),
		})
	}
}

// attribute points err at the test code.  skip counts the frames between
// the caller of attribute and the public method the test called.
func (m *Mocker) attribute(err error, site callSite, skip int) error {
	if err == nil {
		return nil
	}
	if !m.preserveStacks {
		err = merry.HereSkipping(err, skip+2)
	}
	return merry.WithValue(err, registeredAtKey, site)
}
