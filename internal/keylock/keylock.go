// Package keylock provides in-process mutual exclusion keyed by composite identifiers.
package keylock

import (
	"fmt"
	"sync"
)

// Key identifies a critical section. Two keys are the same section only when
// all fields are equal.
type Key struct {
	Namespace string
	ContestID int
	SubjectID int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%d", k.Namespace, k.ContestID, k.SubjectID)
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker serializes bodies sharing a key and lets different keys run concurrently.
// Locks are not re-entrant: acquiring a key already held by the same call chain
// blocks forever.
type Locker struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{entries: make(map[Key]*entry)}
}

// Lock blocks until key is free and returns the function releasing it.
// The returned function must be called exactly once.
func (l *Locker) Lock(key Key) (unlock func()) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			l.mu.Lock()
			defer l.mu.Unlock()
			e.refs--
			if e.refs == 0 {
				delete(l.entries, key)
			}
		})
	}
}

// Do runs body while holding key. The lock is released when body returns
// or panics; body's error is returned unchanged.
func (l *Locker) Do(key Key, body func() error) error {
	unlock := l.Lock(key)
	defer unlock()
	return body()
}

// Len reports how many keys are currently held or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RunExclusive runs body while holding key and returns its result.
func RunExclusive[T any](l *Locker, key Key, body func() (T, error)) (T, error) {
	unlock := l.Lock(key)
	defer unlock()
	return body()
}
