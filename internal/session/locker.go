package session

import "sync"

// Locker hands out one mutex per user id.
type Locker struct {
	mu sync.Map // int64 -> *sync.Mutex
}

func (l *Locker) get(id int64) *sync.Mutex {
	mu, _ := l.mu.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Lock blocks until id's mutex is held and returns the unlock func.
func (l *Locker) Lock(id int64) func() {
	mu := l.get(id)
	mu.Lock()
	return mu.Unlock
}

// LockPair locks two users in ascending id order so concurrent transfers in
// opposite directions cannot deadlock.
func (l *Locker) LockPair(a, b int64) func() {
	if a == b {
		return l.Lock(a)
	}
	if a > b {
		a, b = b, a
	}
	ua := l.Lock(a)
	ub := l.Lock(b)
	return func() {
		ub()
		ua()
	}
}
