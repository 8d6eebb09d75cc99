package mockinspect

import (
	"errors"
	"strconv"

	"github.com/ansel1/merry"
)

// Error kinds.  Every error returned by this package derives from one of
// these, so callers can classify failures with merry.Is:
//
//     if merry.Is(err, mockinspect.ErrAssertion) { ... }
//
var (
	// ErrConfiguration is returned for malformed mock options and misuse of
	// contract binding.
	ErrConfiguration = merry.New("invalid mock configuration")

	// ErrUnsupportedMethod is returned when a mock names an HTTP method
	// which can't be intercepted.
	ErrUnsupportedMethod = merry.New("unsupported http method")

	// ErrAssertion is returned when an expectation about a mocked request
	// does not hold.  This is the normal failure mode of a test.
	ErrAssertion = merry.New("assertion failed")

	// ErrNotFound is returned when a reference is not in the registry, e.g.
	// because the registry was reset after the handle was created.
	ErrNotFound = merry.New("mocked request not found")

	// ErrUnmockedRequest is returned by the Interceptor when no rule matches
	// a request and no passthrough is configured.
	ErrUnmockedRequest = merry.New("no mock matched the request")
)

type errorKey int

const registeredAtKey errorKey = iota

// configurationError and assertionError capture the stack at their caller,
// not at the sentinel's declaration.
func configurationError(msg string) error {
	return merry.WithMessage(merry.HereSkipping(ErrConfiguration, 1), msg)
}

func assertionError(msg string) error {
	return merry.WithMessage(merry.HereSkipping(ErrAssertion, 1), msg)
}

// callSite is the location of the test code which registered a mock.
type callSite struct {
	file  string
	line  int
	stack string
}

func (c callSite) String() string {
	if c.file == "" {
		return ""
	}
	return c.file + ":" + strconv.Itoa(c.line)
}

var errRegistered = errors.New("mock registered")

// captureCallSite records the caller's location.  skip is the number of
// frames between the caller of captureCallSite and the code to attribute.
func captureCallSite(skip int) callSite {
	e := merry.WrapSkipping(errRegistered, skip+1)
	file, line := merry.Location(e)
	return callSite{file: file, line: line, stack: merry.Stacktrace(e)}
}

// RegisteredAt returns the file:line of the mock registration which produced
// err, or "" if err did not come from a MockedRequest.
func RegisteredAt(err error) string {
	if site, ok := merry.Value(err, registeredAtKey).(callSite); ok {
		return site.String()
	}
	return ""
}

// RegistrationStack returns the full stack captured when the mock which
// produced err was registered.
func RegistrationStack(err error) string {
	if site, ok := merry.Value(err, registeredAtKey).(callSite); ok {
		return site.stack
	}
	return ""
}
