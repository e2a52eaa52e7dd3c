package handler

import (
	"encoding/json"
	"maps"
	"net/http"
	"net/url"
)

// Request is the immutable view of an inbound HTTP request or WebSocket
// upgrade handed to handlers and middleware.
type Request struct {
	// Method is the upper-case HTTP method.
	Method string

	// Path is the canonical request path, always starting with "/".
	Path string

	// Params holds path parameters extracted from the matched pattern.
	Params map[string]string

	// Query holds decoded query parameters.
	Query url.Values

	// Header holds request headers with canonical keys. Values for a
	// key keep their arrival order.
	Header http.Header

	// Body is the fully read request body.
	Body []byte

	RemoteAddr string
	Host       string

	// Conn identifies the WebSocket connection the request arrived on.
	// It is zero for plain HTTP requests.
	Conn ConnID

	// Identity is set by authentication middleware.
	Identity *Identity

	values map[any]any
}

// Param returns the named path parameter, or "" when absent.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// QueryValue returns the first value of the named query parameter.
func (r *Request) QueryValue(name string) string {
	return r.Query.Get(name)
}

// Text returns the body as a string.
func (r *Request) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Request) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Value returns a value attached with WithValue.
func (r *Request) Value(key any) any {
	return r.values[key]
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	c := *r
	c.Params = maps.Clone(r.Params)
	if r.Query != nil {
		c.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	c.Header = r.Header.Clone()
	c.values = maps.Clone(r.values)
	return &c
}

// WithHeader returns a copy of r with header key set to value.
func (r *Request) WithHeader(key, value string) *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	c.Header.Set(key, value)
	return &c
}

// WithValue returns a copy of r carrying value under key.
func (r *Request) WithValue(key, value any) *Request {
	c := *r
	c.values = make(map[any]any, len(r.values)+1)
	maps.Copy(c.values, r.values)
	c.values[key] = value
	return &c
}

// WithBody returns a copy of r with a replaced body.
func (r *Request) WithBody(body []byte) *Request {
	c := *r
	c.Body = body
	return &c
}

// WithIdentity returns a copy of r with the given identity.
func (r *Request) WithIdentity(id *Identity) *Request {
	c := *r
	c.Identity = id
	return &c
}

// WithParams returns a copy of r with the given path parameters.
func (r *Request) WithParams(params map[string]string) *Request {
	c := *r
	c.Params = params
	return &c
}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	Subject string
	Claims  map[string]string
}

// Claim returns a single claim value.
func (i *Identity) Claim(name string) string {
	if i == nil {
		return ""
	}
	return i.Claims[name]
}
