package static

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/tern-dev/tern/pkg/handler"
)

// Options configures Handler.
type Options struct {
	// Param names the wildcard parameter holding the file path.
	// Default: "path".
	Param string

	// Index is served for the root and for names ending in "/".
	// Default: "index.html".
	Index string

	// CacheControl is set on every file response when non-empty.
	CacheControl string

	// Headers are added to every file response.
	Headers map[string]string
}

// Handler returns an offloaded handler serving the object named by the
// wildcard parameter. Missing objects and unsafe names get 404.
func Handler(src Source, opts Options) handler.Handler {
	if opts.Param == "" {
		opts.Param = "path"
	}
	if opts.Index == "" {
		opts.Index = "index.html"
	}

	return handler.Offload(func(ctx context.Context, req *handler.Request) (*handler.Response, error) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			return handler.Text(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed)).
				WithHeader("Allow", "GET, HEAD"), nil
		}

		name, ok := relPath(req.Param(opts.Param), opts.Index)
		if !ok {
			return notFound(), nil
		}

		obj, err := src.Open(ctx, name)
		if errors.Is(err, ErrNotFound) {
			return notFound(), nil
		}
		if err != nil {
			return nil, err
		}

		if notModified(req, obj) {
			obj.Body.Close()
			resp := handler.Status(http.StatusNotModified)
			setValidators(resp.Header, obj)
			return resp, nil
		}

		contentType := obj.ContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(path.Ext(name))
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		resp := handler.Stream(http.StatusOK, contentType, obj.Body)
		if obj.Size >= 0 {
			resp.Header.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
		}
		setValidators(resp.Header, obj)
		if opts.CacheControl != "" {
			resp.Header.Set("Cache-Control", opts.CacheControl)
		}
		for k, v := range opts.Headers {
			resp.Header.Set(k, v)
		}
		return resp, nil
	})
}

func notFound() *handler.Response {
	return handler.Text(http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

// relPath turns the captured wildcard into a name relative to the source
// root. Dot segments, backslashes, NUL bytes and absolute names are
// rejected.
func relPath(name, index string) (string, bool) {
	if name == "" || strings.HasSuffix(name, "/") {
		name += index
	}
	if strings.IndexByte(name, 0) != -1 || strings.Contains(name, "\\") || strings.HasPrefix(name, "/") {
		return "", false
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
	}
	return name, true
}

func setValidators(h http.Header, obj *Object) {
	if obj.ETag != "" {
		h.Set("ETag", obj.ETag)
	}
	if !obj.ModTime.IsZero() {
		h.Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
	}
}

func notModified(req *handler.Request, obj *Object) bool {
	if inm := req.Header.Get("If-None-Match"); inm != "" {
		if obj.ETag == "" {
			return false
		}
		for _, tag := range strings.Split(inm, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "*" || strings.TrimPrefix(tag, "W/") == strings.TrimPrefix(obj.ETag, "W/") {
				return true
			}
		}
		return false
	}
	ims := req.Header.Get("If-Modified-Since")
	if ims == "" || obj.ModTime.IsZero() {
		return false
	}
	t, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	return !obj.ModTime.Truncate(time.Second).After(t)
}
