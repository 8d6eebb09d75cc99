/*
Package mockinspect mocks the REST and GraphQL requests made by code under test,
and checks afterwards whether, and how, they were made.

A test registers the requests it expects with a Mocker, hands the Mocker's
http.Client to the code under test, then asserts on the returned MockedRequests:

```go
m := mockinspect.MustNew()

todo, err := m.Mock(mockinspect.MockOptions{
    RequestPattern: "/todos/1",
    ResponseBody:   map[string]string{"message": "ok"},
})
require.NoError(t, err)

client, _ := m.Client()
fetchTodo(client)

require.NoError(t, todo.ExpectMade())
require.NoError(t, todo.ExpectMadeMatching(mockinspect.MatchInput{
    Headers: map[string]string{"Accept": "application/json"},
}))
```

Matching

REST mocks match on method and URL.  RequestPattern is either an absolute URL,
which matches that scheme, host and path, or a path fragment, which is compiled
as a regular expression and searched for in the request path.  Query strings are
ignored when matching.

GraphQL mocks set GraphQLQueryName or GraphQLMutationName, and match requests
carrying that operation, whether sent as a POST body or a GET query string.
Two GraphQL mocks on the same URL are told apart by operation name.

Mocks are used up by the first request they match, unless they are Persistent.
When several mocks match, the one registered last wins.  Requests no mock matches
fail with ErrUnmockedRequest, or are sent to the Doer given with Passthrough().

Assertions

MockedRequest methods return errors instead of failing the test themselves, so
they work with any test framework.  Failed expectations match ErrAssertion, and
the message names both the expected and the actual value.  The stack of the error
points at the calling test, and RegisteredAt(err) returns where the mock was
registered.

Contracts

A Contract describes a request and its response.  MockFromContract mocks the
response, and ExpectMadeMatchingContract() later compares the request made with
the contract's request: protocol, host, path, and then either the GraphQL query
and variables, or the body and the query string.  Contracts can be loaded from
JSON or YAML files with LoadContract.

Serving mocks

The Interceptor holding the rules is also an http.Handler.  Code which can only
be configured with a base URL can be pointed at a test server started with
httptestutil.Serve.
*/
package mockinspect
