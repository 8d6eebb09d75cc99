package mockinspect

import (
	"bytes"
	"errors"
	"io/ioutil"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ansel1/merry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThalesGroup/mockinspect/httpclient"
)

func newClient(t *testing.T, m *Mocker) *http.Client {
	t.Helper()
	c, err := m.Client()
	require.NoError(t, err)
	return c
}

func send(c *http.Client, method, rawURL, body string, headers map[string]string) (*http.Response, string, error) {
	req, err := http.NewRequest(method, rawURL, strings.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	b, err := ioutil.ReadAll(resp.Body)
	return resp, string(b), err
}

func mustSend(t *testing.T, c *http.Client, method, rawURL, body string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	resp, b, err := send(c, method, rawURL, body, headers)
	require.NoError(t, err)
	return resp, b
}

func isUnmocked(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue) && merry.Is(ue.Err, ErrUnmockedRequest)
}

func TestMock_configurationErrors(t *testing.T) {
	m := MustNew()

	_, err := m.Mock(MockOptions{ResponseBody: "x"})
	require.Error(t, err)
	assert.True(t, merry.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "Not enough options passed")

	_, err = m.Mock(MockOptions{GraphQLQueryName: "A", GraphQLMutationName: "B"})
	require.Error(t, err)
	assert.True(t, merry.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "you can't have both")

	_, err = m.Mock(MockOptions{RequestPattern: "/a", RequestMethod: "CONNECT"})
	require.Error(t, err)
	assert.True(t, merry.Is(err, ErrUnsupportedMethod))

	_, err = m.Mock(MockOptions{GraphQLQueryName: "A", GraphQLAutoMocking: &GraphQLAutoMocking{Schema: "type Query { a: String }"}})
	require.Error(t, err)
	assert.True(t, merry.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "WithAutoMocker")

	// failed registrations leave nothing behind
	assert.Empty(t, m.DumpAll())
	assert.Zero(t, m.Interceptor().Pending())
}

func TestMock_endToEnd(t *testing.T) {
	m := MustNew()
	c := newClient(t, m)

	todo, err := m.Mock(MockOptions{
		RequestPattern: "/todos/1",
		RequestMethod:  "GET",
		ResponseBody:   map[string]string{"message": "ok"},
	})
	require.NoError(t, err)

	resp, body := mustSend(t, c, http.MethodGet, "https://jsonplaceholder.typicode.com/todos/1", "", nil)
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"message":"ok"}`, body)
	assert.Equal(t, MediaTypeJSON, resp.Header.Get("Content-Type"))

	require.NoError(t, todo.ExpectMade())
	assert.Error(t, todo.ExpectNotMade())
}

func TestMock_oneShot(t *testing.T) {
	m := MustNew()
	c := newClient(t, m)

	unused, err := m.Mock(MockOptions{RequestPattern: "/unused"})
	require.NoError(t, err)
	err = unused.ExpectMade()
	require.Error(t, err)
	assert.True(t, merry.Is(err, ErrAssertion))
	assert.Equal(t, "You expected that the request has been made, but it was not.", err.Error())
	require.NoError(t, unused.ExpectNotMade())

	once, err := m.Mock(MockOptions{RequestPattern: "/once", ResponseStatus: 204})
	require.NoError(t, err)

	resp, _ := mustSend(t, c, http.MethodGet, "http://api.com/once", "", nil)
	assert.Equal(t, 204, resp.StatusCode)
	require.NoError(t, once.ExpectMade())
	err = once.ExpectNotMade()
	require.Error(t, err)
	assert.Equal(t, "You expected that the request has not been made, but it was.", err.Error())

	// a second request is unmocked
	_, _, err = send(c, http.MethodGet, "http://api.com/once", "", nil)
	require.Error(t, err)
	assert.True(t, isUnmocked(err))
}

func TestMock_persistent(t *testing.T) {
	m := MustNew()
	c := newClient(t, m)

	mr, err := m.Mock(MockOptions{RequestPattern: "/always", ResponseBody: "yes", Persistent: true})
	require.NoError(t, err)

	for n := 0; n < 3; n++ {
		_, body := mustSend(t, c, http.MethodGet, "http://api.com/always?n="+strconv.Itoa(n), "", nil)
		assert.Equal(t, "yes", body)
		require.NoError(t, mr.ExpectMade())
	}

	// the last request is recorded
	require.NoError(t, mr.ExpectMadeMatching(MatchInput{Query: "n=2"}))
}

func TestMock_methodMatters(t *testing.T) {
	m := MustNew()
	c := newClient(t, m)

	post, err := m.Mock(MockOptions{RequestPattern: "/things", RequestMethod: "post", ResponseStatus: 201})
	require.NoError(t, err)

	_, _, err = send(c, http.MethodGet, "http://api.com/things", "", nil)
	assert.True(t, isUnmocked(err))
	require.NoError(t, post.ExpectNotMade())

	resp, _ := mustSend(t, c, http.MethodPost, "http://api.com/things", `{"a":1}`, nil)
	assert.Equal(t, 201, resp.StatusCode)
	require.NoError(t, post.ExpectMade())
}

func TestMock_responseHeaders(t *testing.T) {
	m := MustNew()
	c := newClient(t, m)

	_, err := m.Mock(MockOptions{
		RequestPattern: "https://api.com/users",
		ResponseBody:   map[string]string{"a": "b"},
		ResponseHeaders: map[string]string{
			"Content-Type":   "application/vnd.api+json",
			"X-Request-Id":   "42",
			"X-Powered-By":   "Express",
			"Content-Length": "168",
		},
	})
	require.NoError(t, err)

	resp, body := mustSend(t, c, http.MethodGet, "https://api.com/users", "", nil)
	assert.Equal(t, "application/vnd.api+json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "42", resp.Header.Get("X-Request-Id"))
	assert.Empty(t, resp.Header.Get("X-Powered-By"))
	assert.Empty(t, resp.Header.Get("Content-Length"))
	assert.Equal(t, int64(len(body)), resp.ContentLength)
}

func TestMock_graphQL(t *testing.T) {
	m := MustNew()
	c := newClient(t, m)

	first, err := m.Mock(MockOptions{
		RequestPattern:   "https://api.com/graphql",
		GraphQLQueryName: "GetFirstThings",
		ResponseBody:     map[string]interface{}{"data": map[string]interface{}{"things": []string{"first"}}},
	})
	require.NoError(t, err)
	second, err := m.Mock(MockOptions{
		RequestPattern:   "https://api.com/graphql",
		GraphQLQueryName: "GetSecondThings",
		ResponseBody:     map[string]interface{}{"data": map[string]interface{}{"things": []string{"second"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, KindGraphQL, second.Kind())

	_, body := mustSend(t, c, http.MethodPost, "https://api.com/graphql",
		`{"query":"query GetSecondThings { things }"}`, map[string]string{"Content-Type": "application/json"})
	assert.JSONEq(t, `{"data":{"things":["second"]}}`, body)

	require.NoError(t, second.ExpectMade())
	require.Error(t, first.ExpectMade())

	// operations sent with GET match too
	q := url.Values{"query": {"query GetFirstThings { things }"}}
	_, body = mustSend(t, c, http.MethodGet, "https://api.com/graphql?"+q.Encode(), "", nil)
	assert.JSONEq(t, `{"data":{"things":["first"]}}`, body)
	require.NoError(t, first.ExpectMade())

	e, err := m.Registry().Get(first.Reference())
	require.NoError(t, err)
	assert.True(t, e.GraphQLUsed)
}

func TestMock_graphQLMutation(t *testing.T) {
	m := MustNew()
	c := newClient(t, m)

	add, err := m.Mock(MockOptions{GraphQLMutationName: "AddThing", ResponseBody: `{"data":{"add":true}}`})
	require.NoError(t, err)
	query, err := m.Mock(MockOptions{GraphQLQueryName: "AddThing"})
	require.NoError(t, err)

	_, body := mustSend(t, c, http.MethodPost, "https://anywhere.com/api/graphql",
		`{"query":"mutation AddThing { add }"}`, nil)
	assert.Equal(t, `{"data":{"add":true}}`, body)
	require.NoError(t, add.ExpectMade())
	require.NoError(t, query.ExpectNotMade())
}

func TestMock_newestWins(t *testing.T) {
	m := MustNew()
	c := newClient(t, m)

	old, err := m.Mock(MockOptions{RequestPattern: "/a", ResponseBody: "old"})
	require.NoError(t, err)
	newer, err := m.Mock(MockOptions{RequestPattern: "/a", ResponseBody: "new"})
	require.NoError(t, err)

	_, body := mustSend(t, c, http.MethodGet, "http://api.com/a", "", nil)
	assert.Equal(t, "new", body)
	require.NoError(t, newer.ExpectMade())
	require.NoError(t, old.ExpectNotMade())
}

func TestMock_autoMocking(t *testing.T) {
	var requests []AutoMockRequest
	m := MustNew(WithAutoMocker(AutoMockerFunc(func(req AutoMockRequest) (interface{}, error) {
		requests = append(requests, req)
		return map[string]interface{}{"data": map[string]interface{}{"hello": "world"}}, nil
	})))
	c := newClient(t, m)

	hello, err := m.Mock(MockOptions{
		GraphQLQueryName: "Hello",
		Persistent:       true,
		GraphQLAutoMocking: &GraphQLAutoMocking{
			Schema:            "type Query { hello(name: String): String }",
			FixedArrayLengths: map[string]ArrayLength{"Query.users": {Min: 5, Max: 5}},
		},
	})
	require.NoError(t, err)

	body := `{"query":"query Hello($name: String) { hello(name: $name) }","variables":{"name":"bob"}}`
	resp, got := mustSend(t, c, http.MethodPost, "https://api.com/graphql", body, nil)
	assert.JSONEq(t, `{"data":{"hello":"world"}}`, got)
	assert.Equal(t, MediaTypeJSON, resp.Header.Get("Content-Type"))
	mustSend(t, c, http.MethodPost, "https://api.com/graphql", body, nil)

	require.Len(t, requests, 2)
	assert.Equal(t, "type Query { hello(name: String): String }", requests[0].Schema)
	assert.Equal(t, "query Hello($name: String) { hello(name: $name) }", requests[0].Query)
	assert.Equal(t, map[string]interface{}{"name": "bob"}, requests[0].Variables)
	assert.Equal(t, ArrayLength{Min: 5, Max: 5}, requests[0].FixedArrayLengths["Query.users"])
	assert.False(t, requests[0].Used)
	assert.True(t, requests[1].Used)
	require.NoError(t, hello.ExpectMade())

	// a fixed body wins over the generator
	_, err = m.Mock(MockOptions{
		GraphQLQueryName:   "Fixed",
		ResponseBody:       `{"data":{"fixed":true}}`,
		GraphQLAutoMocking: &GraphQLAutoMocking{Schema: "type Query { fixed: Boolean }"},
	})
	require.NoError(t, err)
	_, got = mustSend(t, c, http.MethodPost, "https://api.com/graphql", `{"query":"query Fixed { fixed }"}`, nil)
	assert.Equal(t, `{"data":{"fixed":true}}`, got)
	assert.Len(t, requests, 2)
}

func TestMock_autoMockingError(t *testing.T) {
	fail := true
	m := MustNew(WithAutoMocker(AutoMockerFunc(func(AutoMockRequest) (interface{}, error) {
		if fail {
			return nil, merry.New("schema is broken")
		}
		return map[string]interface{}{"data": map[string]interface{}{"hello": "world"}}, nil
	})))
	c := newClient(t, m)

	hello, err := m.Mock(MockOptions{
		GraphQLQueryName:   "Hello",
		GraphQLAutoMocking: &GraphQLAutoMocking{Schema: "type Query { hello: String }"},
	})
	require.NoError(t, err)

	body := `{"query":"query Hello { hello }"}`
	_, _, err = send(c, http.MethodPost, "https://api.com/graphql", body, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema is broken")
	assert.Equal(t, 1, m.Interceptor().Pending())
	require.Error(t, hello.ExpectMade())

	// the mock wasn't used up by the failed response
	fail = false
	_, got := mustSend(t, c, http.MethodPost, "https://api.com/graphql", body, nil)
	assert.JSONEq(t, `{"data":{"hello":"world"}}`, got)
	require.NoError(t, hello.ExpectMade())
	assert.Equal(t, 0, m.Interceptor().Pending())
}

func TestMocker_Reset(t *testing.T) {
	m := MustNew()
	c := newClient(t, m)

	mr, err := m.Mock(MockOptions{RequestPattern: "/a", Persistent: true})
	require.NoError(t, err)

	m.Reset()
	assert.Empty(t, m.DumpAll())
	assert.Zero(t, m.Interceptor().Pending())

	err = mr.ExpectNotMade()
	require.Error(t, err)
	assert.True(t, merry.Is(err, ErrNotFound))

	_, _, err = send(c, http.MethodGet, "http://api.com/a", "", nil)
	assert.True(t, isUnmocked(err))
}

func TestMocker_DumpAll(t *testing.T) {
	m := MustNew()
	a, err := m.Mock(MockOptions{RequestPattern: "/a", ResponseStatus: 404})
	require.NoError(t, err)
	b, err := m.Mock(MockOptions{GraphQLQueryName: "B"})
	require.NoError(t, err)

	d := m.DumpAll()
	require.Len(t, d, 2)
	assert.Equal(t, 404, d[a.Reference()].Response.StatusCode)
	assert.Equal(t, 1, d[a.Reference()].Created)
	assert.Equal(t, "B", d[b.Reference()].Response.GraphQLQueryName)
	assert.Equal(t, 200, d[b.Reference()].Response.StatusCode)
	assert.Equal(t, 2, d[b.Reference()].Created)
}

func TestMocker_logging(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := MustNew(WithLogger(logger))
	c := newClient(t, m)

	mr, err := m.Mock(MockOptions{RequestPattern: "/logged"})
	require.NoError(t, err)
	mustSend(t, c, http.MethodGet, "http://api.com/logged", "", nil)
	_, _, _ = send(c, http.MethodGet, "http://api.com/unlogged", "", nil)

	assert.Contains(t, buf.String(), "registered mock")
	assert.Contains(t, buf.String(), "matched request")
	assert.Contains(t, buf.String(), "unmatched request")

	buf.Reset()
	m.LogMockedRequests()
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "mocked request")
	assert.Contains(t, buf.String(), string(mr.Reference()))
	assert.Contains(t, buf.String(), "called=true")
}

func TestMocker_options(t *testing.T) {
	t.Run("registry", func(t *testing.T) {
		r := NewRegistry()
		m := MustNew(WithRegistry(r))
		mr, err := m.Mock(MockOptions{RequestPattern: "/a"})
		require.NoError(t, err)
		_, err = r.Get(mr.Reference())
		require.NoError(t, err)
		assert.Equal(t, r, m.Registry())

		_, err = New(WithRegistry(nil))
		assert.True(t, merry.Is(err, ErrConfiguration))
	})

	t.Run("transport", func(t *testing.T) {
		var rules []Rule
		m := MustNew(WithTransport(transportFunc(func(r Rule) { rules = append(rules, r) })))
		_, err := m.Mock(MockOptions{RequestPattern: "/a", Persistent: true})
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.False(t, rules[0].Once)
		assert.Equal(t, "GET /a", rules[0].Name)

		assert.Nil(t, m.Interceptor())
		_, err = m.Client()
		assert.True(t, merry.Is(err, ErrConfiguration))

		_, err = New(WithTransport(nil))
		assert.Error(t, err)
	})


	t.Run("option errors", func(t *testing.T) {
		_, err := New(OptionFunc(func(*Mocker) error { return merry.New("boom") }))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.Panics(t, func() {
			MustNew(OptionFunc(func(*Mocker) error { return merry.New("boom") }))
		})
	})

	t.Run("passthrough", func(t *testing.T) {
		upstream := DoerFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: 299, Body: http.NoBody, Request: req}, nil
		})
		m := MustNew(Passthrough(upstream))
		resp, _ := mustSend(t, newClient(t, m), http.MethodGet, "http://api.com/real", "", nil)
		assert.Equal(t, 299, resp.StatusCode)
	})

	t.Run("middleware", func(t *testing.T) {
		buf := &bytes.Buffer{}
		m := MustNew(Use(Dump(buf)))
		_, err := m.Mock(MockOptions{RequestPattern: "/dumped", RequestMethod: "POST", ResponseBody: "pong"})
		require.NoError(t, err)

		_, body := mustSend(t, newClient(t, m), http.MethodPost, "http://api.com/dumped", "ping", nil)
		assert.Equal(t, "pong", body)
		assert.Contains(t, buf.String(), "POST /dumped HTTP/1.1")
		assert.Contains(t, buf.String(), "ping")
		assert.Contains(t, buf.String(), "HTTP/1.1 200 OK")
		assert.Contains(t, buf.String(), "pong")
	})

	t.Run("client options", func(t *testing.T) {
		m := MustNew()
		c, err := m.Client(httpclient.Timeout(5 * time.Second))
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, c.Timeout)
		assert.Equal(t, m.Interceptor(), c.Transport)

		// the Interceptor is the transport
		_, err = m.Client(httpclient.SkipVerify(true))
		require.Error(t, err)
		assert.True(t, merry.Is(err, ErrConfiguration))

		_, err = m.Client(httpclient.RoundTripper(http.DefaultTransport))
		assert.True(t, merry.Is(err, ErrConfiguration))
	})

	t.Run("preserve stacks", func(t *testing.T) {
		m := MustNew(PreserveStacks())
		assert.True(t, m.preserveStacks)
	})
}

type transportFunc func(Rule)

func (f transportFunc) Install(r Rule) { f(r) }
