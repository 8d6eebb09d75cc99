package mockinspect

import (
	"log/slog"

	"github.com/ansel1/merry"
)

// Option configures a Mocker.  Options are passed to New.
type Option interface {

	// Apply modifies the Mocker argument.  The Mocker pointer will never be nil.
	// Returning an error will stop applying the rest of the Options, and the error
	// will float up to the caller of New.
	Apply(*Mocker) error
}

// OptionFunc adapts a function to the Option interface.
type OptionFunc func(*Mocker) error

// Apply implements Option.
func (f OptionFunc) Apply(m *Mocker) error {
	return f(m)
}

func (m *Mocker) apply(opts ...Option) error {
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.Apply(m); err != nil {
			return merry.Prepend(err, "applying options")
		}
	}
	return nil
}

// WithLogger sets the structured logger.  By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return OptionFunc(func(m *Mocker) error {
		m.logger = l
		return nil
	})
}

// WithRegistry makes the Mocker record into an existing Registry.
func WithRegistry(r *Registry) Option {
	return OptionFunc(func(m *Mocker) error {
		if r == nil {
			return configurationError("registry must not be nil")
		}
		m.registry = r
		return nil
	})
}

// WithTransport installs mocks into t instead of a new Interceptor.  Client
// and Interceptor are unavailable unless t is an *Interceptor.
func WithTransport(t Transport) Option {
	return OptionFunc(func(m *Mocker) error {
		if t == nil {
			return configurationError("transport must not be nil")
		}
		m.transport = t
		return nil
	})
}

// WithAutoMocker sets the generator for mocks declaring GraphQLAutoMocking.
func WithAutoMocker(a AutoMocker) Option {
	return OptionFunc(func(m *Mocker) error {
		m.autoMocker = a
		return nil
	})
}

// WithMarshaler sets the Marshaler used to encode response bodies which
// aren't strings or byte slices.
func WithMarshaler(mar Marshaler) Option {
	return OptionFunc(func(m *Mocker) error {
		m.marshaler = mar
		return nil
	})
}

// PreserveStacks leaves the stacks of returned errors where the error was
// raised.  By default, errors from MockedRequest methods carry the stack of
// the calling test.
func PreserveStacks() Option {
	return OptionFunc(func(m *Mocker) error {
		m.preserveStacks = true
		return nil
	})
}

// Passthrough sends requests which match no mock to d, for example
// http.DefaultClient.  Only applies to the Mocker's Interceptor.
func Passthrough(d Doer) Option {
	return OptionFunc(func(m *Mocker) error {
		m.passthrough = d
		return nil
	})
}

// Use appends middleware to the Interceptor's client side.
func Use(mw ...Middleware) Option {
	return OptionFunc(func(m *Mocker) error {
		m.middleware = append(m.middleware, mw...)
		return nil
	})
}
