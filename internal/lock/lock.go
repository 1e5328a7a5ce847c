// Package lock serializes writers on a named resource (a quotation id or a
// numbering partition), in process and optionally across replicas via Redis.
package lock

import (
	"context"
	"sync"

	"github.com/diewo77/go-quotations/internal/apperr"
)

// Locker acquires an exclusive lock on key. The returned release func must be
// called exactly once. Acquisition honours ctx cancellation and deadlines.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// KeyedMutex is an in-process Locker with one mutex per key. Entries are
// dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done. A ctx error is reported as a
// ConcurrencyConflictError.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.unref(key, s)
		return nil, &apperr.ConcurrencyConflictError{Resource: key, Err: ctx.Err()}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.unref(key, s)
		})
	}, nil
}

func (k *KeyedMutex) unref(key string, s *slot) {
	k.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
}

// size reports the number of live keys.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

// Chain acquires every locker in order and releases them in reverse.
// If one fails, those already held are released.
func Chain(lockers ...Locker) Locker {
	return chain(lockers)
}

type chain []Locker

func (c chain) Lock(ctx context.Context, key string) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, l := range c {
		if l == nil {
			continue
		}
		release, err := l.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
