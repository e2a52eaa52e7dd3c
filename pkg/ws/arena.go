package ws

import (
	"sync"

	"github.com/tern-dev/tern/pkg/handler"
)

// arena hands out generation-checked connection IDs.
type arena struct {
	mu    sync.RWMutex
	slots []slot
	free  []uint32
	live  int
}

type slot struct {
	gen  uint32
	conn *Conn
}

// acquire stores c in a free slot and returns its ID.
func (a *arena) acquire(c *Conn) handler.ConnID {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{gen: 1})
	}
	a.slots[idx].conn = c
	a.live++
	return handler.NewConnID(idx, a.slots[idx].gen)
}

// release frees the slot of id if id is still current. The generation is
// bumped so that id never resolves again.
func (a *arena) release(id handler.ConnID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.get(id)
	if s == nil {
		return false
	}
	s.conn = nil
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	a.free = append(a.free, id.Index())
	a.live--
	return true
}

// lookup returns the connection for id.
func (a *arena) lookup(id handler.ConnID) (*Conn, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.get(id)
	if s == nil {
		return nil, false
	}
	return s.conn, true
}

func (a *arena) get(id handler.ConnID) *slot {
	idx := id.Index()
	if id.IsZero() || int(idx) >= len(a.slots) {
		return nil
	}
	s := &a.slots[idx]
	if s.gen != id.Generation() || s.conn == nil {
		return nil
	}
	return s
}

// all returns the live connections.
func (a *arena) all() []*Conn {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Conn, 0, a.live)
	for _, s := range a.slots {
		if s.conn != nil {
			out = append(out, s.conn)
		}
	}
	return out
}

func (a *arena) count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}
