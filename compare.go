package mockinspect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/ansel1/merry"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	goquery "github.com/google/go-querystring/query"
)

// Comparators used by the assertion methods.  Each returns nil when actual
// satisfies expected, or an error matching ErrAssertion which names both
// values.

// payloadBytes renders a body value as bytes.  Strings, byte slices and
// readers are taken as-is.  Anything else is JSON encoded.
func payloadBytes(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	case json.RawMessage:
		return t, nil
	case io.Reader:
		b, err := ioutil.ReadAll(t)
		return b, merry.Wrap(err)
	default:
		b, err := json.Marshal(t)
		return b, merry.Prepend(err, "encoding payload")
	}
}

// normalizeBody turns a body into a value suitable for deep comparison.
// Bodies which parse as JSON compare as their parsed form, so `{"a":1}` and
// map[string]interface{}{"a": 1} are equal.  nil and the empty string are
// both "no body".
func normalizeBody(v interface{}) interface{} {
	b, err := payloadBytes(v)
	if err != nil {
		return v
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	var parsed interface{}
	if err := json.Unmarshal(b, &parsed); err == nil {
		return parsed
	}
	return string(b)
}

func renderBody(v interface{}) string {
	b, err := payloadBytes(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func bodiesEqual(actual, expected interface{}) bool {
	return cmp.Equal(normalizeBody(actual), normalizeBody(expected))
}

// compareRequestBodies checks a request body used by the code under test
// against the expected body.
func compareRequestBodies(actual, expected interface{}) error {
	if bodiesEqual(actual, expected) {
		return nil
	}
	return assertionError(fmt.Sprintf(
		"The network request has been made, but the body with which the request was made does not match the expectations.\nRequest body used by your code: %s\nExpected request body: %s",
		renderBody(actual), renderBody(expected),
	))
}

// NormalizeHeaders lower-cases header names and values and keeps only the
// first value of multi-valued headers.
func NormalizeHeaders(h http.Header) map[string]string {
	m := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		m[strings.ToLower(k)] = strings.ToLower(v[0])
	}
	return m
}

func normalizeHeaderMap(h map[string]string) map[string]string {
	m := make(map[string]string, len(h))
	for k, v := range h {
		m[strings.ToLower(k)] = strings.ToLower(v)
	}
	return m
}

func renderJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// checkRequestContainedDesiredHeaders checks that every expected header is
// present with the expected value.  Names and values are compared without
// regard to case.  Extra headers on the request are ignored.
func checkRequestContainedDesiredHeaders(actual http.Header, expected map[string]string) error {
	used := NormalizeHeaders(actual)
	for k, v := range normalizeHeaderMap(expected) {
		if got, ok := used[k]; !ok || got != v {
			return assertionError(fmt.Sprintf(
				"The network request has been made, but the headers with which the request was made don't contain all the headers that were expected.\nExpected headers: %s\nActual headers: %s",
				renderJSON(expected), renderJSON(used),
			))
		}
	}
	return nil
}

// compareRequestMadeStatusAgainstExpectation checks whether a request was
// made.
func compareRequestMadeStatusAgainstExpectation(made, expected bool) error {
	if made == expected {
		return nil
	}
	if expected {
		return assertionError("You expected that the request has been made, but it was not.")
	}
	return assertionError("You expected that the request has not been made, but it was.")
}

func compareProtocols(actual, expected string) error {
	if strings.EqualFold(strings.TrimSuffix(actual, ":"), strings.TrimSuffix(expected, ":")) {
		return nil
	}
	return assertionError(fmt.Sprintf(
		"The protocol used in this request doesn't match the expectations from the contract.\nProtocol used by your code: %s\nExpected protocol: %s",
		actual, expected,
	))
}

func compareHostNames(actual, expected string) error {
	if strings.EqualFold(actual, expected) {
		return nil
	}
	return assertionError(fmt.Sprintf(
		"The hostname used in this request doesn't match the expectations from the contract.\nHostname used by your code: %s\nExpected hostname: %s",
		actual, expected,
	))
}

func compareEndpointPaths(actual, expected string) error {
	if actual == expected {
		return nil
	}
	return assertionError(fmt.Sprintf(
		"The request path does not match the contracts.\nPath requested by your code: %s\nExpected path to be called: %s",
		actual, expected,
	))
}

var sortStrings = cmpopts.SortSlices(func(a, b string) bool { return a < b })

// compareQueryParameters compares two raw query strings as sets of
// key/value pairs.  Order and repeated pairs don't matter.  An empty expected query requires
// an empty actual query.
func compareQueryParameters(actual, expected string) error {
	actual = strings.TrimPrefix(actual, "?")
	expected = strings.TrimPrefix(expected, "?")

	if expected == "" {
		if actual == "" {
			return nil
		}
		return assertionError(fmt.Sprintf(
			"The query parameters the app is using for the request should have been empty.\nQuery parameters used by your code: %s",
			actual,
		))
	}

	av, aerr := url.ParseQuery(actual)
	ev, eerr := url.ParseQuery(expected)
	if aerr == nil && eerr == nil && cmp.Equal(distinct(av), distinct(ev), sortStrings, cmpopts.EquateEmpty()) {
		return nil
	}
	return assertionError(fmt.Sprintf(
		"The query parameters the app used do not match the query parameters expected by the contracts.\nQuery parameters used by your code: %s\nExpected query parameters: %s",
		actual, expected,
	))
}

func distinct(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for key, values := range v {
		seen := make(map[string]bool, len(values))
		for _, value := range values {
			if !seen[value] {
				seen[value] = true
				out[key] = append(out[key], value)
			}
		}
	}
	return out
}

// queryValues converts the accepted forms of expected query parameters into
// url.Values.  Structs are encoded using their `url` tags.
func queryValues(v interface{}) (url.Values, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return t, nil
	case map[string][]string:
		return url.Values(t), nil
	case map[string]string:
		values := url.Values{}
		for key, value := range t {
			values.Set(key, value)
		}
		return values, nil
	case string:
		values, err := url.ParseQuery(strings.TrimPrefix(t, "?"))
		return values, merry.Prepend(err, "invalid query string")
	default:
		values, err := goquery.Values(v)
		if err != nil {
			return nil, merry.Prepend(err, "invalid query struct")
		}
		return values, nil
	}
}

// checkRequestContainedDesiredQuery checks that every expected query
// parameter was sent with all of its expected values.  Extra parameters are
// ignored.
func checkRequestContainedDesiredQuery(rawURL string, expected url.Values) error {
	var used url.Values
	if u, err := url.Parse(rawURL); err == nil {
		used = u.Query()
	}
	for key, want := range expected {
		got := append([]string(nil), used[key]...)
		want = append([]string(nil), want...)
		sort.Strings(got)
		sort.Strings(want)
		if !cmp.Equal(got, want, cmpopts.EquateEmpty()) {
			return assertionError(fmt.Sprintf(
				"The network request has been made, but the query parameters with which the request was made don't contain all the parameters that were expected.\nExpected query parameters: %s\nActual query parameters: %s",
				expected.Encode(), used.Encode(),
			))
		}
	}
	return nil
}

// compareGraphQLQueries compares two GraphQL payloads by their parsed query
// and variables.
func compareGraphQLQueries(actual, expected interface{}) error {
	made := toGraphQLPayload(actual)
	want := toGraphQLPayload(expected)
	if cmp.Equal(made, want, cmpopts.EquateEmpty()) {
		return nil
	}
	return assertionError(fmt.Sprintf(
		"It looks like the query that has been made doesn't match the expectations from the contract.\n%s",
		cmp.Diff(want, made, cmpopts.EquateEmpty()),
	))
}
