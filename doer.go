package mockinspect

import "net/http"

// Doer executes http requests.  It is implemented by *http.Client and by
// the Interceptor.  Doers can be wrapped in layers of Middleware.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to implement Doer
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do implements the Doer interface
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}
