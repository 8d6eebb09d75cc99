package mockinspect

import (
	"io/ioutil"
	"net/url"
	"strings"

	"github.com/ansel1/merry"
	"gopkg.in/yaml.v3"
)

// Contract describes a request and the response it gets.  A mock created
// from a contract answers with the contract's response, and the request
// made can later be checked against the contract's request.
//
// Contracts are usually recorded from real traffic and stored as JSON or
// YAML files; see LoadContract.
type Contract struct {
	Request  ContractRequest  `json:"request" yaml:"request"`
	Response ContractResponse `json:"response" yaml:"response"`
	Metadata *Metadata        `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ContractRequest is the request half of a Contract.
type ContractRequest struct {
	// URL must be absolute.
	URL     string            `json:"url" yaml:"url"`
	Method  string            `json:"method" yaml:"method"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Payload interface{}       `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// ContractResponse is the response half of a Contract.
type ContractResponse struct {
	StatusCode int               `json:"statusCode" yaml:"statusCode"`
	Body       interface{}       `json:"body,omitempty" yaml:"body,omitempty"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Metadata records where a contract or example came from.
type Metadata struct {
	TestName string `json:"testName,omitempty" yaml:"testName,omitempty"`
	Date     string `json:"date" yaml:"date"`
}

// Example has the shape of a Contract, but is only used to set up mocks.
// Mocks created from examples can't be checked against them.
type Example Contract

func (c *Contract) mockOptions() MockOptions {
	return MockOptions{
		RequestPattern:  c.Request.URL,
		RequestMethod:   c.Request.Method,
		ResponseStatus:  c.Response.StatusCode,
		ResponseBody:    c.Response.Body,
		ResponseHeaders: c.Response.Headers,
	}
}

func (c *Contract) requestURL() (*url.URL, error) {
	u, err := url.Parse(c.Request.URL)
	if err != nil {
		return nil, merry.WithMessagef(merry.Here(ErrConfiguration), "contract url %q is invalid: %v", c.Request.URL, err)
	}
	if !u.IsAbs() {
		return nil, merry.WithMessagef(merry.Here(ErrConfiguration), "contract url %q is not absolute", c.Request.URL)
	}
	return u, nil
}

// ParseContract decodes a contract from JSON or YAML.
func ParseContract(data []byte) (*Contract, error) {
	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, merry.Prepend(err, "decoding contract")
	}
	if strings.TrimSpace(c.Request.URL) == "" {
		return nil, merry.WithMessage(merry.Here(ErrConfiguration), "contract has no request url")
	}
	return &c, nil
}

// LoadContract reads a contract from a JSON or YAML file.
func LoadContract(path string) (*Contract, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, merry.Prependf(err, "reading contract %s", path)
	}
	c, err := ParseContract(data)
	return c, merry.Prependf(err, "in %s", path)
}

// ParseExample decodes an example from JSON or YAML.
func ParseExample(data []byte) (*Example, error) {
	c, err := ParseContract(data)
	if err != nil {
		return nil, merry.Prepend(err, "decoding example")
	}
	return (*Example)(c), nil
}

// LoadExample reads an example from a JSON or YAML file.
func LoadExample(path string) (*Example, error) {
	c, err := LoadContract(path)
	if err != nil {
		return nil, err
	}
	return (*Example)(c), nil
}
