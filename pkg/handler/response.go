package handler

import (
	"encoding/json"
	"io"
	"net/http"
)

// Response is what a handler or middleware hands back to the core.
//
// Body and Stream are mutually exclusive; when Stream is set it is copied to
// the connection and closed afterwards if it implements io.Closer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Stream io.Reader

	// Close asks the server to close the connection after the response.
	Close bool
}

// Status returns an empty response with the given status code.
func Status(code int) *Response {
	return &Response{Status: code, Header: make(http.Header)}
}

// Text returns a plain text response.
func Text(code int, body string) *Response {
	return Bytes(code, "text/plain; charset=utf-8", []byte(body))
}

// HTML returns an HTML response.
func HTML(code int, body string) *Response {
	return Bytes(code, "text/html; charset=utf-8", []byte(body))
}

// Bytes returns a response with the given content type and body.
func Bytes(code int, contentType string, body []byte) *Response {
	h := make(http.Header)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &Response{Status: code, Header: h, Body: body}
}

// JSON encodes v and returns it as an application/json response.
func JSON(code int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Bytes(code, "application/json", body), nil
}

// Stream returns a response whose body is copied from r.
func Stream(code int, contentType string, r io.Reader) *Response {
	res := Bytes(code, contentType, nil)
	res.Stream = r
	return res
}

// Redirect returns a redirect to location.
func Redirect(code int, location string) *Response {
	res := Status(code)
	res.Header.Set("Location", location)
	return res
}

// StatusCode returns the status, defaulting to 200.
func (r *Response) StatusCode() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

// Clone returns a copy of r with its own header map. The body slice is
// shared; callers treat it as read-only.
func (r *Response) Clone() *Response {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	return &c
}

// WithHeader returns a copy of r with header key set to value.
func (r *Response) WithHeader(key, value string) *Response {
	c := r.Clone()
	c.Header.Set(key, value)
	return c
}

// WithStatus returns a copy of r with a different status.
func (r *Response) WithStatus(code int) *Response {
	c := r.Clone()
	c.Status = code
	return c
}
