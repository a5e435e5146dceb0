package passthrough

import (
	"sync"
	"sync/atomic"
)

// Handle identifies one open file session. The zero Handle is never issued.
type Handle uint64

// session owns one backend descriptor from Open/Create until Release.
type session struct {
	// mu is held shared for the duration of every I/O call on fd and
	// exclusively by release, so fd is never closed under an in-flight call.
	mu     sync.RWMutex
	path   string
	fd     int
	closed bool
}

type handleTable struct {
	mu       sync.RWMutex
	sessions map[Handle]*session
	next     atomic.Uint64
}

func newHandleTable() *handleTable {
	return &handleTable{sessions: make(map[Handle]*session)}
}

// bind takes ownership of fd and returns the handle of the new session.
func (t *handleTable) bind(path string, fd int) Handle {
	h := Handle(t.next.Add(1))

	t.mu.Lock()
	t.sessions[h] = &session{path: path, fd: fd}
	t.mu.Unlock()

	return h
}

func (t *handleTable) lookup(h Handle) (*session, bool) {
	t.mu.RLock()
	s, ok := t.sessions[h]
	t.mu.RUnlock()
	return s, ok
}

// remove detaches a session from the table. Only one caller can remove a
// given handle, which makes it the one that closes the descriptor.
func (t *handleTable) remove(h Handle) (*session, bool) {
	t.mu.Lock()
	s, ok := t.sessions[h]
	if ok {
		delete(t.sessions, h)
	}
	t.mu.Unlock()
	return s, ok
}

func (t *handleTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
