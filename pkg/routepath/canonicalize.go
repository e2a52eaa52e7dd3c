// Package routepath turns raw request paths into the canonical form the
// router matches against.
package routepath

import (
	"errors"
	"net/url"
	"strings"
)

// Canonicalization errors. All of them mean the request is malformed.
var (
	ErrBackslash     = errors.New("routepath: path contains backslash")
	ErrNullByte      = errors.New("routepath: path contains null byte")
	ErrInvalidEscape = errors.New("routepath: invalid percent escape")
	ErrEscapesRoot   = errors.New("routepath: path escapes root via ..")
	ErrEncodedSlash  = errors.New("routepath: encoded slash in path segment")
)

// Canonicalize converts an escaped request path into its canonical decoded
// form:
//   - a leading "/" is ensured and a trailing "/" removed (except for root)
//   - empty and "." segments are dropped, ".." pops the previous segment
//   - every segment is percent-decoded
//
// Backslashes, NUL bytes, malformed escapes, ".." above the root and
// segments that decode to contain "/" are rejected.
func Canonicalize(escaped string) (string, error) {
	segments, err := Segments(escaped)
	if err != nil {
		return "", err
	}
	return Join(segments), nil
}

// Segments canonicalizes escaped and returns the decoded segments.
func Segments(escaped string) ([]string, error) {
	if strings.ContainsRune(escaped, '\\') {
		return nil, ErrBackslash
	}
	if strings.ContainsRune(escaped, 0) {
		return nil, ErrNullByte
	}
	if strings.Contains(escaped, "%") {
		if err := checkEscapes(escaped); err != nil {
			return nil, err
		}
	}

	var out []string
	for _, seg := range strings.Split(escaped, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) == 0 {
				return nil, ErrEscapesRoot
			}
			out = out[:len(out)-1]
			continue
		}

		decoded, err := DecodeSegment(seg)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

// DecodeSegment percent-decodes a single path segment.
func DecodeSegment(seg string) (string, error) {
	if !strings.Contains(seg, "%") {
		return seg, nil
	}
	decoded, err := url.PathUnescape(seg)
	if err != nil {
		return "", ErrInvalidEscape
	}
	if strings.ContainsRune(decoded, 0) {
		return "", ErrNullByte
	}
	if strings.ContainsRune(decoded, '/') {
		return "", ErrEncodedSlash
	}
	return decoded, nil
}

// Split returns the segments of an already canonical path.
func Split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Join builds a canonical path from segments.
func Join(segments []string) string {
	return "/" + strings.Join(segments, "/")
}

func checkEscapes(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			continue
		}
		if i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2]) {
			return ErrInvalidEscape
		}
		i += 2
	}
	return nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
