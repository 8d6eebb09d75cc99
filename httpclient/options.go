package httpclient

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/ansel1/merry"
)

// Timeout sets the client's Timeout.
func Timeout(d time.Duration) Option {
	return OptionFunc(func(c *http.Client) error {
		c.Timeout = d
		return nil
	})
}

// NoRedirects makes the client return redirect responses instead of
// following them.
func NoRedirects() Option {
	return OptionFunc(func(c *http.Client) error {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		return nil
	})
}

// MaxRedirects limits the number of redirects the client follows.
func MaxRedirects(max int) Option {
	return OptionFunc(func(c *http.Client) error {
		c.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= max {
				return merry.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		}
		return nil
	})
}

// CookieJar gives the client a new cookie jar.  opts may be nil.
func CookieJar(opts *cookiejar.Options) Option {
	return OptionFunc(func(c *http.Client) error {
		jar, err := cookiejar.New(opts)
		if err != nil {
			return merry.Wrap(err)
		}
		c.Jar = jar
		return nil
	})
}

// ProxyURL sends all requests through a proxy.
func ProxyURL(proxyURL string) Option {
	return TransportOption(func(t *http.Transport) error {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return merry.Prepend(err, "invalid proxy url")
		}
		t.Proxy = http.ProxyURL(u)
		return nil
	})
}

// SkipVerify sets the TLS config's InsecureSkipVerify flag.
func SkipVerify(skip bool) Option {
	return TLSOption(func(c *tls.Config) error {
		c.InsecureSkipVerify = skip
		return nil
	})
}
