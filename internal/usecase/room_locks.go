package usecase

import "sync"

// roomLocks serializes lifecycle operations on the same room within one
// process. The backing store offers no transactions, so without this two
// concurrent read-modify-write cycles on a room could silently lose an
// update. Multi-process deployments additionally need conditional writes
// at the store (see DESIGN.md).
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*roomLock)}
}

// Acquire blocks until the room is free and returns the release func.
func (l *roomLocks) Acquire(roomID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[roomID]
	if !ok {
		entry = &roomLock{}
		l.locks[roomID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, roomID)
		}
		l.mu.Unlock()
	}
}
