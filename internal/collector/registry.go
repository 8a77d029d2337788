package collector

import "sync"

// registry - tracks live handlers by client id. Guarded by its own lock,
// distinct from the queue lock: the accept loop adds entries while
// terminating handlers remove their own.
type registry struct {
	mu     sync.RWMutex
	sealed bool
	list   map[uint64]*handler
}

func newRegistry() *registry {
	return &registry{
		list: make(map[uint64]*handler),
	}
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.list)
}

// add - tracks the handler unless the registry was sealed by joinAll or
// the id is already known.
func (r *registry) add(id uint64, h *handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return false
	}
	if _, ok := r.list[id]; ok {
		return false
	}
	r.list[id] = h
	return true
}

// delete - removes registry entry. Called only after the handler's read
// loop has fully finished, so the entry never dangles while joinAll may
// still need it.
func (r *registry) delete(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.list, id)
}

func (r *registry) snapshot() []*handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handlers := make([]*handler, 0, len(r.list))
	for _, h := range r.list {
		handlers = append(handlers, h)
	}
	return handlers
}

// joinAll - seals the registry against late registrations, closes every
// tracked connection and waits until each handler has fully stopped.
// Handlers remove their own entries on the way out, so the registry is
// empty when joinAll returns. Called by the Server only, never from a
// handler goroutine.
func (r *registry) joinAll() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
	handlers := r.snapshot()
	for _, h := range handlers {
		h.stop()
	}
	for _, h := range handlers {
		h.wait()
	}
}
