package httptestutil

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httputil"

	"github.com/felixge/httpsnoop"
)

// DumpTo wraps a handler, dumping each request and response to writer.
// Useful to see what a test server, such as one started by Serve, is
// answering.
func DumpTo(handler http.Handler, writer io.Writer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dump, err := httputil.DumpRequest(r, true)
		if err != nil {
			fmt.Fprintf(writer, "error dumping request: %v\n", err)
		} else {
			_, _ = writer.Write(append(dump, "\r\n"...))
		}

		ex := Exchange{}
		handler.ServeHTTP(httpsnoop.Wrap(w, hooks(w, &ex)), r)
		if ex.StatusCode == 0 {
			// nothing was written
			ex.StatusCode = http.StatusOK
		}

		resp := http.Response{
			Proto:         r.Proto,
			ProtoMajor:    r.ProtoMajor,
			ProtoMinor:    r.ProtoMinor,
			StatusCode:    ex.StatusCode,
			Header:        ex.Header,
			Body:          ioutil.NopCloser(bytes.NewReader(ex.ResponseBody.Bytes())),
			ContentLength: int64(ex.ResponseBody.Len()),
		}
		d, err := httputil.DumpResponse(&resp, true)
		if err != nil {
			fmt.Fprintf(writer, "error dumping response: %v\n", err)
		} else {
			_, _ = writer.Write(append(d, "\r\n"...))
		}
	})
}
