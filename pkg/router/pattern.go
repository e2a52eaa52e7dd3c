package router

import (
	"strings"
)

type segmentKind uint8

const (
	segLiteral segmentKind = iota
	segParam
	segWildcard
)

// wildcardParam is the parameter name used by an unnamed wildcard.
const wildcardParam = "*"

type segment struct {
	kind  segmentKind
	value string // literal text or parameter name
}

// Pattern is a compiled route pattern.
type Pattern struct {
	raw      string
	segments []segment
}

// ParsePattern compiles a route pattern.
func ParsePattern(pattern string) (Pattern, error) {
	return parsePattern("", pattern)
}

func parsePattern(method, raw string) (Pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return Pattern{}, malformed(method, raw, "pattern must start with /")
	}
	if strings.ContainsAny(raw, "?#\\") {
		return Pattern{}, malformed(method, raw, "pattern contains a reserved character")
	}

	trimmed := strings.TrimSuffix(raw[1:], "/")
	p := Pattern{raw: raw}
	if trimmed == "" {
		return p, nil
	}

	parts := strings.Split(trimmed, "/")
	seen := make(map[string]bool, len(parts))
	for i, part := range parts {
		switch {
		case part == "":
			return Pattern{}, malformed(method, raw, "empty segment at position %d", i)

		case part[0] == ':':
			name := part[1:]
			if name == "" {
				return Pattern{}, malformed(method, raw, "parameter at position %d has no name", i)
			}
			if strings.ContainsAny(name, ":*") {
				return Pattern{}, malformed(method, raw, "invalid parameter name %q", name)
			}
			if seen[name] {
				return Pattern{}, malformed(method, raw, "duplicate parameter %q", name)
			}
			seen[name] = true
			p.segments = append(p.segments, segment{kind: segParam, value: name})

		case part[0] == '*':
			if i != len(parts)-1 {
				return Pattern{}, malformed(method, raw, "wildcard must be the last segment")
			}
			name := part[1:]
			if name == "" {
				name = wildcardParam
			}
			if strings.ContainsAny(name, ":*") && name != wildcardParam {
				return Pattern{}, malformed(method, raw, "invalid wildcard name %q", name)
			}
			if seen[name] {
				return Pattern{}, malformed(method, raw, "duplicate parameter %q", name)
			}
			p.segments = append(p.segments, segment{kind: segWildcard, value: name})

		default:
			if part == "." || part == ".." {
				return Pattern{}, malformed(method, raw, "dot segment at position %d", i)
			}
			p.segments = append(p.segments, segment{kind: segLiteral, value: part})
		}
	}
	return p, nil
}

// String returns the pattern as registered.
func (p Pattern) String() string { return p.raw }

// Key returns the normalized pattern: parameter names become ":" and the
// wildcard becomes "*". Patterns with equal keys match exactly the same paths.
func (p Pattern) Key() string {
	if len(p.segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range p.segments {
		b.WriteByte('/')
		switch s.kind {
		case segParam:
			b.WriteByte(':')
		case segWildcard:
			b.WriteByte('*')
		default:
			b.WriteString(s.value)
		}
	}
	return b.String()
}

// ParamNames returns parameter names in positional order.
func (p Pattern) ParamNames() []string {
	var names []string
	for _, s := range p.segments {
		if s.kind != segLiteral {
			names = append(names, s.value)
		}
	}
	return names
}

// LiteralPrefix counts literal segments before the first parameter or
// wildcard.
func (p Pattern) LiteralPrefix() int {
	n := 0
	for _, s := range p.segments {
		if s.kind != segLiteral {
			break
		}
		n++
	}
	return n
}
