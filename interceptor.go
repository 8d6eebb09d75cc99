package mockinspect

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/ansel1/merry"
	"github.com/felixge/httpsnoop"
)

// HeaderPoweredBy identifies the server framework.  It is removed from every
// mocked response.
const HeaderPoweredBy = "X-Powered-By"

// Transport is where a Mocker installs the rules it registers.  The
// Interceptor is the default implementation.
type Transport interface {
	Install(rule Rule)
}

// MatchFunc reports whether a rule applies to a request.
type MatchFunc func(req *InterceptedRequest) bool

// ResponseFunc fills in the mocked response to a matched request.  resp
// starts out as an empty 200 response.  A non-nil error aborts the exchange.
type ResponseFunc func(req *InterceptedRequest, resp *Response) error

// Rule pairs a matcher with a response callback.
type Rule struct {
	// Name is only used in logs.
	Name    string
	Match   MatchFunc
	Respond ResponseFunc

	// Once rules are consumed by their first match.
	Once bool
}

// InterceptedRequest is a snapshot of an intercepted request.  URL is always
// absolute, even in handler mode.
type InterceptedRequest struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// Response is the mocked response under construction.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type installedRule struct {
	Rule
	consumed bool
}

// Interceptor answers http requests from installed Rules.  It can be used
// as the Transport of an http.Client, as a Doer, or as the http.Handler of a
// test server.
//
// Rules are consulted newest first.  A request no rule matches is sent to
// the passthrough Doer, if one is set.  Otherwise RoundTrip and Do fail with
// ErrUnmockedRequest, and ServeHTTP replies 501.
//
// An Interceptor is safe for concurrent use.
type Interceptor struct {
	mu          sync.Mutex
	rules       []*installedRule
	passthrough Doer
	middleware  []Middleware
	logger      *slog.Logger
}

// NewInterceptor returns an Interceptor with no rules.
func NewInterceptor() *Interceptor {
	return &Interceptor{logger: discardLogger()}
}

// Install implements Transport.
func (i *Interceptor) Install(rule Rule) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.rules = append(i.rules, &installedRule{Rule: rule})
}

// Reset removes all rules.  Middleware and passthrough are kept.
func (i *Interceptor) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.rules = nil
}

// Pending returns the number of rules which can still match.
func (i *Interceptor) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, r := range i.rules {
		if !r.consumed {
			n++
		}
	}
	return n
}

// Use appends middleware to the client side of the Interceptor.  Middleware
// is not applied in handler mode.
func (i *Interceptor) Use(mw ...Middleware) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.middleware = append(i.middleware, mw...)
}

// SetPassthrough sets the Doer unmatched client requests are sent to.  nil
// disables passthrough.
func (i *Interceptor) SetPassthrough(d Doer) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.passthrough = d
}

// SetLogger sets the logger.  nil discards.
func (i *Interceptor) SetLogger(l *slog.Logger) {
	if l == nil {
		l = discardLogger()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.logger = l
}

func (i *Interceptor) log() *slog.Logger {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.logger == nil {
		return discardLogger()
	}
	return i.logger
}

// RoundTrip implements http.RoundTripper.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	i.mu.Lock()
	mw := append([]Middleware(nil), i.middleware...)
	i.mu.Unlock()
	return Wrap(DoerFunc(i.dispatch), mw...).Do(req)
}

// Do implements Doer.
func (i *Interceptor) Do(req *http.Request) (*http.Response, error) {
	return i.RoundTrip(req)
}

func (i *Interceptor) dispatch(req *http.Request) (*http.Response, error) {
	body, err := readBody(req.Body)
	if err != nil {
		return nil, merry.Prepend(err, "reading request body")
	}

	ireq := &InterceptedRequest{
		Method: req.Method,
		URL:    req.URL,
		Header: req.Header.Clone(),
		Body:   body,
	}
	if ireq.Header == nil {
		ireq.Header = http.Header{}
	}

	resp, matched, err := i.serve(ireq)
	if err != nil {
		return nil, err
	}
	if matched {
		return resp.toHTTP(req), nil
	}

	i.mu.Lock()
	passthrough := i.passthrough
	i.mu.Unlock()

	if passthrough == nil {
		return nil, merry.WithMessagef(merry.Here(ErrUnmockedRequest), "no mock matched %s %s", req.Method, req.URL)
	}
	out := req.Clone(req.Context())
	out.Body = ioutil.NopCloser(bytes.NewReader(body))
	return passthrough.Do(out)
}

// ServeHTTP implements http.Handler.
func (i *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	header := w.Header()
	w = httpsnoop.Wrap(w, httpsnoop.Hooks{
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				header.Del(HeaderPoweredBy)
				next(code)
			}
		},
	})

	body, err := readBody(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}

	resp, matched, err := i.serve(&InterceptedRequest{
		Method: r.Method,
		URL:    &u,
		Header: r.Header.Clone(),
		Body:   body,
	})
	switch {
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	case !matched:
		http.Error(w, fmt.Sprintf("no mock matched %s %s", r.Method, u.String()), http.StatusNotImplemented)
		return
	}

	for k, v := range resp.Header {
		header[k] = v
	}
	header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		_, _ = w.Write(resp.Body)
	}
}

// serve finds the newest live rule matching req and runs its callback.
func (i *Interceptor) serve(req *InterceptedRequest) (*Response, bool, error) {
	rule := i.take(req)
	log := i.log()
	if rule == nil {
		log.Debug("unmatched request", "method", req.Method, "url", req.URL.String())
		return nil, false, nil
	}
	log.Debug("matched request", "rule", rule.Name, "method", req.Method, "url", req.URL.String(), "once", rule.Once)

	resp := &Response{StatusCode: http.StatusOK, Header: http.Header{}}
	if rule.Respond != nil {
		if err := rule.Respond(req, resp); err != nil {
			i.restore(rule)
			return nil, false, err
		}
	}
	resp.Header.Del(HeaderPoweredBy)
	return resp, true, nil
}

func (i *Interceptor) take(req *InterceptedRequest) *installedRule {
	i.mu.Lock()
	defer i.mu.Unlock()
	for n := len(i.rules) - 1; n >= 0; n-- {
		r := i.rules[n]
		if r.consumed || r.Match == nil || !r.Match(req) {
			continue
		}
		if r.Once {
			r.consumed = true
		}
		return r
	}
	return nil
}

// restore puts back a Once rule whose response failed, so the request
// can be retried.
func (i *Interceptor) restore(r *installedRule) {
	if !r.Once {
		return
	}
	i.mu.Lock()
	r.consumed = false
	i.mu.Unlock()
}

func (r *Response) toHTTP(req *http.Request) *http.Response {
	code := r.StatusCode
	if code == 0 {
		code = http.StatusOK
	}
	body := r.Body
	if req.Method == http.MethodHead {
		body = nil
	}
	return &http.Response{
		Status:        strconv.Itoa(code) + " " + http.StatusText(code),
		StatusCode:    code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        r.Header.Clone(),
		Body:          ioutil.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

func readBody(rc io.ReadCloser) ([]byte, error) {
	if rc == nil || rc == http.NoBody {
		return nil, nil
	}
	defer rc.Close()
	b, err := ioutil.ReadAll(rc)
	return b, merry.Wrap(err)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
