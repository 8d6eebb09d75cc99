package mockinspect

import (
	"encoding/json"
	"encoding/xml"

	"github.com/ansel1/merry"
)

// Mocked response bodies which aren't strings or byte slices are encoded
// with a Marshaler.  The DefaultMarshaler encodes JSON.  Install another
// with the WithMarshaler Option.

// DefaultMarshaler is used by a Mocker if no Marshaler was configured.
// nolint:gochecknoglobals
var DefaultMarshaler Marshaler = &JSONMarshaler{}

// Media types.
const (
	MediaTypeJSON = "application/json"
	MediaTypeXML  = "application/xml"
)

// Marshaler marshals values into a []byte.
//
// If the content type returned is not empty, it
// will be used in the mocked response's Content-Type header.
type Marshaler interface {
	Marshal(v interface{}) (data []byte, contentType string, err error)
}

// MarshalFunc adapts a function to the Marshaler interface.
type MarshalFunc func(v interface{}) ([]byte, string, error)

// Apply implements Option.  MarshalFunc can be applied as a Mocker option,
// which installs itself as the Marshaler.
func (f MarshalFunc) Apply(m *Mocker) error {
	m.marshaler = f
	return nil
}

// Marshal implements the Marshaler interface.
func (f MarshalFunc) Marshal(v interface{}) ([]byte, string, error) {
	return f(v)
}

// JSONMarshaler implements Marshaler.  If Indent is true, marshaled JSON
// will be indented.
type JSONMarshaler struct {
	Indent bool
}

// Marshal implements Marshaler.
func (m *JSONMarshaler) Marshal(v interface{}) (data []byte, contentType string, err error) {
	if m.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	return data, MediaTypeJSON, merry.Wrap(err)
}

// Apply implements Option.
func (m *JSONMarshaler) Apply(mk *Mocker) error {
	mk.marshaler = m
	return nil
}

// XMLMarshaler implements Marshaler.  If Indent is true, marshaled XML will
// be indented.
type XMLMarshaler struct {
	Indent bool
}

// Marshal implements Marshaler.
func (m *XMLMarshaler) Marshal(v interface{}) (data []byte, contentType string, err error) {
	if m.Indent {
		data, err = xml.MarshalIndent(v, "", "  ")
	} else {
		data, err = xml.Marshal(v)
	}
	return data, MediaTypeXML, merry.Wrap(err)
}

// Apply implements Option.
func (m *XMLMarshaler) Apply(mk *Mocker) error {
	mk.marshaler = m
	return nil
}
