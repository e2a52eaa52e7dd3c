package router

import (
	"reflect"
	"testing"
)

func mustPattern(t *testing.T, s string) Pattern {
	t.Helper()
	p, err := ParsePattern(s)
	if err != nil {
		t.Fatalf("ParsePattern(%q) error = %v", s, err)
	}
	return p
}

func TestNodeAddChild(t *testing.T) {
	root := &node{}
	a := root.addChild("users")
	b := root.addChild("users")
	if a != b {
		t.Error("addChild should return the existing child")
	}
	if len(root.children) != 1 {
		t.Errorf("len(children) = %d, want 1", len(root.children))
	}
	if root.findChild("projects") != nil {
		t.Error("findChild(projects) found a node")
	}
}

func TestNodeMatchBacktracks(t *testing.T) {
	root := &node{}
	literal := &RouteEntry{}
	param := &RouteEntry{}
	// /a/b/c can only be served by the parameter route, even though the
	// literal child "b" exists.
	root.insert(mustPattern(t, "/a/b/x"), literal)
	root.insert(mustPattern(t, "/a/:p/c"), param)

	entry, values := root.match([]string{"a", "b", "c"}, nil)
	if entry != param {
		t.Fatalf("match returned %p, want parameter entry", entry)
	}
	if !reflect.DeepEqual(values, []string{"b"}) {
		t.Errorf("values = %v, want [b]", values)
	}

	entry, values = root.match([]string{"a", "b", "x"}, nil)
	if entry != literal {
		t.Fatalf("match returned %p, want literal entry", entry)
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want none", values)
	}
}

func TestNodeWildcardNeedsSegment(t *testing.T) {
	root := &node{}
	wild := &RouteEntry{}
	root.insert(mustPattern(t, "/static/*path"), wild)

	if entry, _ := root.match([]string{"static"}, nil); entry != nil {
		t.Error("wildcard matched an empty remainder")
	}
	entry, values := root.match([]string{"static", "css", "site.css"}, nil)
	if entry != wild {
		t.Fatal("wildcard did not match")
	}
	if !reflect.DeepEqual(values, []string{"css/site.css"}) {
		t.Errorf("values = %v", values)
	}
}

func TestNodeParameterWildcardTie(t *testing.T) {
	root := &node{}
	wild := &RouteEntry{seq: 1}
	param := &RouteEntry{seq: 2}
	root.insert(mustPattern(t, "/files/*path"), wild)
	root.insert(mustPattern(t, "/files/:name"), param)

	entry, values := root.match([]string{"files", "a.txt"}, nil)
	if entry != wild {
		t.Fatal("earlier wildcard lost the tie")
	}
	if !reflect.DeepEqual(values, []string{"a.txt"}) {
		t.Errorf("values = %v, want [a.txt]", values)
	}

	wild.seq = 3
	entry, values = root.match([]string{"files", "a.txt"}, nil)
	if entry != param {
		t.Fatal("earlier parameter lost the tie")
	}
	if !reflect.DeepEqual(values, []string{"a.txt"}) {
		t.Errorf("values = %v, want [a.txt]", values)
	}
}
