package mockinspect

import (
	"net"
	"net/url"
	"regexp"
	"strings"
)

// Pattern decides whether a request URL is covered by a mock.
type Pattern interface {
	Match(u *url.URL) bool
	String() string
}

// anyURL matches every request.  GraphQL mocks without a request pattern
// use it.
type anyURL struct{}

func (anyURL) Match(*url.URL) bool { return true }
func (anyURL) String() string      { return "*" }

// exactURL matches scheme, host and path.  Query strings are ignored on
// both sides.
type exactURL struct {
	u *url.URL
}

func (p exactURL) Match(u *url.URL) bool {
	return strings.EqualFold(p.u.Scheme, u.Scheme) &&
		strings.EqualFold(hostPort(p.u), hostPort(u)) &&
		trimSlash(p.u.Path) == trimSlash(u.Path)
}

func (p exactURL) String() string {
	return p.u.Scheme + "://" + p.u.Host + p.u.Path
}

// hostPort returns host:port, with the scheme's default port when the URL
// has none.
func hostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

func trimSlash(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		return strings.TrimSuffix(p, "/")
	}
	return p
}

// pathRegexp matches the request path anywhere.
type pathRegexp struct {
	re *regexp.Regexp
}

func (p pathRegexp) Match(u *url.URL) bool {
	return p.re.MatchString(u.Path)
}

func (p pathRegexp) String() string {
	return p.re.String()
}

// urlRegexp matches the request URL, minus query and fragment.
type urlRegexp struct {
	re *regexp.Regexp
}

func (p urlRegexp) Match(u *url.URL) bool {
	return p.re.MatchString(withoutQuery(u))
}

func (p urlRegexp) String() string {
	return p.re.String()
}

func withoutQuery(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.ForceQuery = false
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

// URLPattern normalizes a string request pattern.
//
// An absolute URL, like "https://api.com/todos", matches exactly that
// scheme, host and path.  Anything else is treated as a path fragment:
// a trailing query string is dropped, and the remainder matches any
// request whose path contains it.  Path fragments are compiled as regular
// expressions, so "/todos/[0-9]+" works; strings which aren't valid
// regular expressions are matched literally.
func URLPattern(s string) Pattern {
	if u, err := url.Parse(s); err == nil && u.IsAbs() && u.Host != "" {
		return exactURL{u: u}
	}
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	re, err := regexp.Compile(s)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(s))
	}
	return pathRegexp{re: re}
}

// RegexpPattern matches the request URL (without its query string) against re.
func RegexpPattern(re *regexp.Regexp) Pattern {
	return urlRegexp{re: re}
}

func patternFor(opts *MockOptions) Pattern {
	switch {
	case opts.RequestRegexp != nil:
		return RegexpPattern(opts.RequestRegexp)
	case opts.RequestPattern != "":
		return URLPattern(opts.RequestPattern)
	default:
		return anyURL{}
	}
}
