package httptestutil

import (
	"bytes"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/felixge/httpsnoop"
)

// Exchange is a snapshot of one request/response exchange with the server.
type Exchange struct {
	Request     *http.Request
	RequestBody *bytes.Buffer

	StatusCode   int
	Header       http.Header
	ResponseBody *bytes.Buffer
}

// Inspector is server-side middleware which captures exchanges in a buffered
// channel.  Once the buffer is full, further exchanges are dropped.
type Inspector struct {
	Exchanges chan Exchange
}

// NewInspector creates an Inspector buffering size exchanges, or 50 if size
// is 0.
func NewInspector(size int) *Inspector {
	if size == 0 {
		size = 50
	}
	return &Inspector{Exchanges: make(chan Exchange, size)}
}

// NextExchange returns the oldest captured exchange, or nil.  It does not
// block.
func (b *Inspector) NextExchange() *Exchange {
	select {
	case e := <-b.Exchanges:
		return &e
	default:
		return nil
	}
}

// LastExchange returns the newest captured exchange, or nil, and discards
// the rest.  It does not block.
func (b *Inspector) LastExchange() *Exchange {
	var last *Exchange
	for _, e := range b.Drain() {
		e := e
		last = &e
	}
	return last
}

// Drain returns and removes every captured exchange, oldest first.
func (b *Inspector) Drain() []Exchange {
	var all []Exchange
	for {
		select {
		case e := <-b.Exchanges:
			all = append(all, e)
		default:
			return all
		}
	}
}

// Clear discards every captured exchange.
func (b *Inspector) Clear() {
	if b == nil {
		return
	}
	b.Drain()
}

// Wrap installs the inspector in front of a handler.  A nil handler is
// http.DefaultServeMux.
func (b *Inspector) Wrap(next http.Handler) http.Handler {
	if next == nil {
		next = http.DefaultServeMux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ex := Exchange{Request: r}
		if r.Body != nil && r.Body != http.NoBody {
			ex.RequestBody = &bytes.Buffer{}
			if _, err := ex.RequestBody.ReadFrom(r.Body); err != nil {
				panic(err)
			}
			_ = r.Body.Close()
			r.Body = ioutil.NopCloser(bytes.NewReader(ex.RequestBody.Bytes()))
		}

		next.ServeHTTP(httpsnoop.Wrap(w, hooks(w, &ex)), r)

		select {
		case b.Exchanges <- ex:
		default:
		}
	})
}

// hooks records the response written through w into ex.
func hooks(w http.ResponseWriter, ex *Exchange) httpsnoop.Hooks {
	ex.ResponseBody = &bytes.Buffer{}
	return httpsnoop.Hooks{
		Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return func(b []byte) (int, error) {
				if ex.StatusCode == 0 {
					ex.StatusCode = http.StatusOK
					ex.Header = w.Header().Clone()
				}
				ex.ResponseBody.Write(b)
				return next(b)
			}
		},
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				next(code)
				if ex.StatusCode == 0 {
					ex.StatusCode = code
					ex.Header = w.Header().Clone()
				}
			}
		},
		ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
			return func(src io.Reader) (int64, error) {
				if ex.StatusCode == 0 {
					ex.StatusCode = http.StatusOK
					ex.Header = w.Header().Clone()
				}
				start := ex.ResponseBody.Len()
				if _, err := ex.ResponseBody.ReadFrom(src); err != nil {
					return 0, err
				}
				return next(bytes.NewReader(ex.ResponseBody.Bytes()[start:]))
			}
		},
	}
}
