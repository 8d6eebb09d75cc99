package mockinspect

import (
	"net/http"
	"sync"

	"github.com/ansel1/merry"
	"github.com/google/uuid"
	"github.com/kr/pretty"
)

// Reference is the opaque key of one registered mock in a Registry.
type Reference string

// DeclaredResponse is the response a mock was registered with.
type DeclaredResponse struct {
	StatusCode       int
	Body             []byte
	Headers          map[string]string
	GraphQLQueryName string
}

// ObservedRequest is the most recent request which matched a mock.
type ObservedRequest struct {
	// Body is the raw request body.  Empty if the request had none.
	Body string

	// Header holds the request headers.  Lookups with Header.Get are
	// case-insensitive.
	Header http.Header

	// URL is the full URL of the request, or "" if the mock was never used.
	URL string
}

// Entry is the state of one mock.  Entries returned by the Registry are
// copies; mutating them has no effect on the registry.
type Entry struct {
	Reference Reference
	Kind      RequestKind
	Response  DeclaredResponse
	Request   ObservedRequest
	Called    bool

	// GraphQLUsed is set once a GraphQL mock has served a response.
	GraphQLUsed bool

	// Created is the creation order of the entry within its registry.
	Created int
}

// String implements fmt.Stringer.
func (e Entry) String() string {
	return pretty.Sprint(e)
}

// Registry holds the state of every mock registered with a Mocker.  The
// registry only grows until Reset is called.
//
// A Registry is safe for concurrent use: the Interceptor records requests
// from whichever goroutine the code under test sends them on.
type Registry struct {
	mu      sync.RWMutex
	entries map[Reference]*Entry
	created int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[Reference]*Entry{}}
}

// Create inserts a new entry with no observed request and returns its
// reference.
func (r *Registry) Create(kind RequestKind, resp DeclaredResponse) Reference {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = map[Reference]*Entry{}
	}
	r.created++
	ref := Reference(uuid.New().String())
	r.entries[ref] = &Entry{
		Reference: ref,
		Kind:      kind,
		Response:  resp,
		Request:   ObservedRequest{Header: http.Header{}},
		Created:   r.created,
	}
	return ref
}

// Get returns a copy of the entry for ref.  Returns an error matching
// ErrNotFound if ref is unknown.
func (r *Registry) Get(ref Reference) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[ref]
	if !ok {
		return Entry{}, merry.WithMessagef(merry.Here(ErrNotFound), "no mocked request with reference %q", ref)
	}
	return copyEntry(e), nil
}

// Update overwrites the observed request of ref and marks it called.
func (r *Registry) Update(ref Reference, req ObservedRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[ref]
	if !ok {
		return merry.WithMessagef(merry.Here(ErrNotFound), "no mocked request with reference %q", ref)
	}
	e.Request = ObservedRequest{
		Body:   req.Body,
		Header: req.Header.Clone(),
		URL:    req.URL,
	}
	e.Called = true
	if e.Kind == KindGraphQL {
		e.GraphQLUsed = true
	}
	return nil
}

// Dump returns a snapshot of every entry.
func (r *Registry) Dump() map[Reference]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m := make(map[Reference]Entry, len(r.entries))
	for ref, e := range r.entries {
		m[ref] = copyEntry(e)
	}
	return m
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Reset removes all entries.  Handles created before the reset will fail
// with ErrNotFound.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = map[Reference]*Entry{}
}

func copyEntry(e *Entry) Entry {
	c := *e
	c.Request.Header = e.Request.Header.Clone()
	if e.Response.Headers != nil {
		c.Response.Headers = make(map[string]string, len(e.Response.Headers))
		for k, v := range e.Response.Headers {
			c.Response.Headers[k] = v
		}
	}
	return c
}
