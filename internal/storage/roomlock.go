package storage

import "sync"

// roomLocks is a keyed mutex. Entries are dropped once nobody holds or waits
// on them.
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

func (l *roomLocks) lock(roomID string) func() {
	l.mu.Lock()
	rl, ok := l.locks[roomID]
	if !ok {
		rl = &roomLock{}
		l.locks[roomID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			rl.mu.Unlock()

			l.mu.Lock()
			rl.refs--
			if rl.refs == 0 {
				delete(l.locks, roomID)
			}
			l.mu.Unlock()
		})
	}
}

func (l *roomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
