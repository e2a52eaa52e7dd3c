package router

import "strings"

// node is one position in a method's route tree.
type node struct {
	// segment is the literal text matched by this node.
	segment string

	children []*node
	param    *node
	wildcard *node

	// entry is set when a pattern ends at this node.
	entry *RouteEntry
}

func (n *node) findChild(segment string) *node {
	for _, child := range n.children {
		if child.segment == segment {
			return child
		}
	}
	return nil
}

func (n *node) addChild(segment string) *node {
	if child := n.findChild(segment); child != nil {
		return child
	}
	child := &node{segment: segment}
	n.children = append(n.children, child)
	return child
}

// insert places entry at the node addressed by its pattern. An entry already
// there is replaced.
func (n *node) insert(p Pattern, entry *RouteEntry) {
	current := n
	for _, seg := range p.segments {
		switch seg.kind {
		case segParam:
			if current.param == nil {
				current.param = &node{}
			}
			current = current.param
		case segWildcard:
			if current.wildcard == nil {
				current.wildcard = &node{}
			}
			current = current.wildcard
		default:
			current = current.addChild(seg.value)
		}
	}
	current.entry = entry
}

// match walks the tree depth first, preferring literal children over the
// parameter child and the wildcard. values collects captured parameter
// values in positional order and is truncated on backtrack.
func (n *node) match(segments []string, values []string) (*RouteEntry, []string) {
	if len(segments) == 0 {
		if n.entry != nil {
			return n.entry, values
		}
		return nil, values
	}

	head, rest := segments[0], segments[1:]

	if child := n.findChild(head); child != nil {
		if entry, vals := child.match(rest, values); entry != nil {
			return entry, vals
		}
	}

	var (
		pentry *RouteEntry
		pvals  []string
	)
	if n.param != nil && head != "" {
		pentry, pvals = n.param.match(rest, append(values, head))
	}

	// A parameter and a wildcard matching at the same position are equally
	// specific; the one registered first wins.
	if n.wildcard != nil && n.wildcard.entry != nil {
		if wild := n.wildcard.entry; pentry == nil || wild.seq < pentry.seq {
			return wild, append(values, strings.Join(segments, "/"))
		}
	}
	if pentry != nil {
		return pentry, pvals
	}

	return nil, values
}
