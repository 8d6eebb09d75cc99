package mockinspect

import (
	"io"
	"net/http"
	"net/http/httputil"
	"os"
)

// Middleware wraps the Interceptor's dispatch of client requests:
//
//     loggingMiddleware := func(next Doer) Doer {
//         return DoerFunc(func(req *http.Request) (*http.Response, error) {
//             logRequest(req)
//             return next.Do(req)
//         })
//     }
//
// Middleware is installed with the Use() option:
//
//     m, err := mockinspect.New(mockinspect.Use(loggingMiddleware))
//
// Middleware itself is an Option, so it can also be applied directly.
type Middleware func(Doer) Doer

// Apply implements Option
func (mw Middleware) Apply(m *Mocker) error {
	m.middleware = append(m.middleware, mw)
	return nil
}

// Wrap applies a set of middleware to a Doer.  The returned Doer will invoke
// the middleware in the order of the arguments.
func Wrap(d Doer, m ...Middleware) Doer {
	for i := len(m) - 1; i > -1; i-- {
		d = m[i](d)
	}
	return d
}

// Dump dumps intercepted requests and the mocked responses to a writer.
// Requests no mock matched are reported with the dispatch error.  Just
// intended for debugging.
func Dump(w io.Writer) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			writeDump(w, "request", func() ([]byte, error) { return httputil.DumpRequestOut(req, true) })
			resp, err := next.Do(req)
			switch {
			case resp != nil:
				writeDump(w, "response", func() ([]byte, error) { return httputil.DumpResponse(resp, true) })
			case err != nil:
				io.WriteString(w, "No response: "+err.Error()+"\n")
			}
			return resp, err
		})
	}
}

// writeDump sends each dump in a single Write() call, so a logger receives
// the whole message at once.
func writeDump(w io.Writer, what string, dump func() ([]byte, error)) {
	b, err := dump()
	if err != nil {
		io.WriteString(w, "Error dumping "+what+": "+err.Error()+"\n")
		return
	}
	io.WriteString(w, string(b)+"\n")
}

// DumpToStdout dumps requests and responses to os.Stdout.
func DumpToStdout() Middleware {
	return Dump(os.Stdout)
}

type logFunc func(a ...interface{})

func (f logFunc) Write(p []byte) (n int, err error) {
	f(string(p))
	return len(p), nil
}

// DumpToLog dumps the request and response to a logging function.
// logf is compatible with fmt.Print(), testing.T.Log, or log.XXX()
// functions.
//
// Request and response will be logged separately.  Though logf
// takes a variadic arg, it will only be called with one string
// arg at a time.
func DumpToLog(logf func(a ...interface{})) Middleware {
	return Dump(logFunc(logf))
}
