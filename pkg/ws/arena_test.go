package ws

import "testing"

func TestArenaGenerations(t *testing.T) {
	var a arena
	c1, c2 := &Conn{}, &Conn{}

	id1 := a.acquire(c1)
	if id1.IsZero() {
		t.Fatal("acquire returned the zero ID")
	}
	if got, ok := a.lookup(id1); !ok || got != c1 {
		t.Fatalf("lookup(id1) = %p, %v", got, ok)
	}

	if !a.release(id1) {
		t.Fatal("release(id1) = false")
	}
	if a.release(id1) {
		t.Error("second release(id1) = true")
	}

	id2 := a.acquire(c2)
	if id2.Index() != id1.Index() {
		t.Fatalf("slot not reused: %v then %v", id1, id2)
	}
	if id2.Generation() == id1.Generation() {
		t.Fatal("reused slot kept its generation")
	}
	if _, ok := a.lookup(id1); ok {
		t.Error("stale ID resolved to the new connection")
	}
	if got, ok := a.lookup(id2); !ok || got != c2 {
		t.Errorf("lookup(id2) = %p, %v", got, ok)
	}
	if a.count() != 1 {
		t.Errorf("count() = %d, want 1", a.count())
	}
	if _, ok := a.lookup(0); ok {
		t.Error("zero ID resolved")
	}
}
