package wire

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/tern-dev/tern/pkg/handler"
	"github.com/tern-dev/tern/pkg/routepath"
)

// Error is a request that cannot be handed to a handler.
type Error struct {
	Status int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("wire: %d %s: %v", e.Status, http.StatusText(e.Status), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode returns the response status for the error.
func (e *Error) StatusCode() int { return e.Status }

// ErrBodyTooLarge is wrapped by Error when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("wire: request body too large")

// ReadRequest builds a handler.Request from r. The body is read in full, up
// to maxBody bytes when maxBody is positive.
func ReadRequest(w http.ResponseWriter, r *http.Request, maxBody int64) (*handler.Request, error) {
	path, err := routepath.Canonicalize(r.URL.EscapedPath())
	if err != nil {
		return nil, &Error{Status: http.StatusBadRequest, Err: err}
	}

	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		if maxBody > 0 {
			if r.ContentLength > maxBody {
				return nil, &Error{Status: http.StatusRequestEntityTooLarge, Err: ErrBodyTooLarge}
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		body, err = io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, &Error{Status: http.StatusRequestEntityTooLarge, Err: ErrBodyTooLarge}
			}
			return nil, &Error{Status: http.StatusBadRequest, Err: err}
		}
	}

	return &handler.Request{
		Method:     r.Method,
		Path:       path,
		Query:      r.URL.Query(),
		Header:     r.Header.Clone(),
		Body:       body,
		RemoteAddr: r.RemoteAddr,
		Host:       r.Host,
	}, nil
}

// ErrorResponse renders err as a plain text response. Errors exposing a
// StatusCode method keep their status; anything else becomes a 500.
func ErrorResponse(err error) *handler.Response {
	status := http.StatusInternalServerError
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}
	return handler.Text(status, http.StatusText(status))
}

// WriteResponse writes res to w. Streaming bodies are flushed as they are
// copied and closed afterwards.
func WriteResponse(w http.ResponseWriter, r *http.Request, res *handler.Response) error {
	if res.Stream != nil {
		if c, ok := res.Stream.(io.Closer); ok {
			defer c.Close()
		}
	}

	h := w.Header()
	for k, v := range res.Header {
		h[k] = append([]string(nil), v...)
	}
	if res.Close {
		h.Set("Connection", "close")
	}
	if res.Stream == nil && h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(res.Body)))
	}
	w.WriteHeader(res.StatusCode())

	if r.Method == http.MethodHead || !bodyAllowed(res.StatusCode()) {
		return nil
	}

	if res.Stream == nil {
		_, err := w.Write(res.Body)
		return err
	}

	_, err := io.Copy(flushWriter{w: w, f: flusher(w)}, res.Stream)
	return err
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

func flusher(w http.ResponseWriter) http.Flusher {
	if f, ok := w.(http.Flusher); ok {
		return f
	}
	return nil
}

type flushWriter struct {
	w io.Writer
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}
