// Package httptestutil serves mocks from an httptest.Server, and captures
// the traffic to and from test servers.
//
// Serve is for code under test which can't be given an http.Client, only a
// base URL:
//
//     m := mockinspect.MustNew()
//     ts := httptestutil.Serve(m)
//     defer ts.Close()
//
//     m.Mock(mockinspect.MockOptions{RequestPattern: "/todos/1"})
//     // point the code under test at ts.URL
package httptestutil

import (
	"net/http/httptest"

	"github.com/ThalesGroup/mockinspect"
)

// Serve starts a test server answering from the Mocker's Interceptor.
// Unmatched requests get a 501 response.  Panics if the Mocker was created
// with a different Transport.
func Serve(m *mockinspect.Mocker) *httptest.Server {
	i := m.Interceptor()
	if i == nil {
		panic("httptestutil: the mocker's transport is not an Interceptor")
	}
	return httptest.NewServer(i)
}

// Inspect installs and returns an Inspector, which captures the exchanges
// with the test server.
//
// Inspect wraps and replaces the server's Handler.  It should be called after
// the real Handler has been installed.
func Inspect(ts *httptest.Server) *Inspector {
	i := NewInspector(0)
	ts.Config.Handler = i.Wrap(ts.Config.Handler)
	return i
}
