package handler

import (
	"net/http"
	"strings"
)

// Methods lists the HTTP methods routes can be registered for.
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
	http.MethodConnect,
	http.MethodTrace,
}

// NormalizeMethod upper-cases m and reports whether it is a known method.
func NormalizeMethod(m string) (string, bool) {
	m = strings.ToUpper(strings.TrimSpace(m))
	for _, known := range Methods {
		if m == known {
			return m, true
		}
	}
	return m, false
}
