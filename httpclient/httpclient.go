// Package httpclient builds the http.Clients handed to code under test.
//
// Clients are created with New, which takes a set of Options.  A Mocker
// installs its Interceptor with the RoundTripper option:
//
//     c, err := httpclient.New(httpclient.Timeout(5 * time.Second), httpclient.RoundTripper(interceptor))
//
// Clients used as a passthrough for unmocked requests can be configured with
// the transport options, like SkipVerify or ProxyURL.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/ansel1/merry"
)

// Option configures an http.Client.
type Option interface {

	// Apply makes some configuration change to the client, which will
	// never be nil.
	Apply(*http.Client) error
}

// OptionFunc adapts a function to the Option interface.
type OptionFunc func(*http.Client) error

// Apply implements Option.
func (f OptionFunc) Apply(c *http.Client) error {
	return f(c)
}

// New builds a new *http.Client.  With no options, it behaves like
// http.DefaultClient, but shares no state with it.
func New(opts ...Option) (*http.Client, error) {
	c := &http.Client{}
	return c, Apply(c, opts...)
}

// Apply applies options to an existing client.
func Apply(c *http.Client, opts ...Option) error {
	for _, opt := range opts {
		if err := opt.Apply(c); err != nil {
			return merry.Prepend(err, "applying client options")
		}
	}
	return nil
}

// RoundTripper replaces the client's transport.
func RoundTripper(rt http.RoundTripper) Option {
	return OptionFunc(func(c *http.Client) error {
		c.Transport = rt
		return nil
	})
}

// TransportOption configures the client's *http.Transport, creating one
// like http.DefaultTransport if the client has none.  It fails if the client
// has some other RoundTripper, such as an Interceptor.
type TransportOption func(t *http.Transport) error

// Apply implements Option.
func (f TransportOption) Apply(c *http.Client) error {
	switch t := c.Transport.(type) {
	case nil:
		tr := newTransport()
		c.Transport = tr
		return f(tr)
	case *http.Transport:
		return f(t)
	default:
		return merry.Errorf("client transport is a %T, not a *http.Transport", c.Transport)
	}
}

// TLSOption configures the TLS settings of the client's transport.
type TLSOption func(c *tls.Config) error

// Apply implements Option.
func (f TLSOption) Apply(c *http.Client) error {
	return TransportOption(func(t *http.Transport) error {
		if t.TLSClientConfig == nil {
			t.TLSClientConfig = &tls.Config{}
		}
		return f(t.TLSClientConfig)
	}).Apply(c)
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
