// Package httparchive stores HTTP responses keyed by the logical identity of
// the request that produced them. The archive is the unit of persistence for
// a recording session: record mode fills it, replay mode serves from it.
package httparchive

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// Request is the archive lookup key: method, host, path (including query)
// and body. Request headers are carried for inspection and diffing but do
// not participate in identity. Immutable once constructed.
type Request struct {
	Method  string            `json:"method"`
	Host    string            `json:"host"`
	Path    string            `json:"path"`
	Body    []byte            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// NewRequest builds a Request. The headers map is copied so later mutation
// by the caller cannot leak into archive keys.
func NewRequest(method, host, path string, body []byte, headers map[string]string) *Request {
	var h map[string]string
	if len(headers) > 0 {
		h = make(map[string]string, len(headers))
		for k, v := range headers {
			h[k] = v
		}
	}
	return &Request{
		Method:  method,
		Host:    host,
		Path:    path,
		Body:    body,
		Headers: h,
	}
}

// Key returns the identity string used for archive lookups.
func (r *Request) Key() string {
	if len(r.Body) == 0 {
		return fmt.Sprintf("%s %s %s", r.Method, r.Host, r.Path)
	}
	sum := sha256.Sum256(r.Body)
	return fmt.Sprintf("%s %s %s %x", r.Method, r.Host, r.Path, sum[:8])
}

// Summary returns "METHOD path", the form used for similarity matching.
func (r *Request) Summary() string {
	return r.Method + " " + r.Path
}

func (r *Request) String() string {
	return fmt.Sprintf("%s %s%s", r.Method, r.Host, r.Path)
}

// Verbose renders the request one field per line, headers sorted, for
// diagnostic output and diffs.
func (r *Request) Verbose() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s%s\n", r.Method, r.Host, r.Path)
	names := make([]string, 0, len(r.Headers))
	for name := range r.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\n", name, r.Headers[name])
	}
	if len(r.Body) > 0 {
		fmt.Fprintf(&b, "body: %d bytes\n", len(r.Body))
	}
	return b.String()
}
