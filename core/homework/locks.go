package homework

import "sync"

type pairKey struct {
	studentID    int
	assignmentID int
}

// pairLocks serialises work on a (student, assignment) pair within this process.
type pairLocks struct {
	mu    sync.Mutex
	locks map[pairKey]*pairLock
}

type pairLock struct {
	sync.Mutex
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[pairKey]*pairLock)}
}

// lock blocks until the pair is free and returns its unlock func.
func (l *pairLocks) lock(studentID, assignmentID int) func() {
	key := pairKey{studentID: studentID, assignmentID: assignmentID}

	l.mu.Lock()
	pl, ok := l.locks[key]
	if !ok {
		pl = new(pairLock)
		l.locks[key] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.Lock()
	return func() {
		pl.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *pairLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
