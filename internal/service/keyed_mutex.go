package service

import (
	"context"
	"sync"
)

// KeyedMutex serializes work per key. Waiters on the same key are admitted in
// the order they called Lock; different keys never block each other.
type KeyedMutex struct {
	mu   sync.Mutex
	keys map[string]*keyQueue
}

type keyQueue struct {
	waiters []chan struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{keys: make(map[string]*keyQueue)}
}

// Lock blocks until key is held by the caller or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	q, held := k.keys[key]
	if !held {
		k.keys[key] = &keyQueue{}
		k.mu.Unlock()
		return k.unlocker(key), nil
	}
	ch := make(chan struct{})
	q.waiters = append(q.waiters, ch)
	k.mu.Unlock()

	select {
	case <-ch:
		return k.unlocker(key), nil
	case <-ctx.Done():
		k.mu.Lock()
		for i, w := range q.waiters {
			if w == ch {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				k.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		k.mu.Unlock()
		// The key was handed to us while we were giving up; pass it on.
		k.unlock(key)
		return nil, ctx.Err()
	}
}

func (k *KeyedMutex) unlocker(key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { k.unlock(key) })
	}
}

func (k *KeyedMutex) unlock(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	q, ok := k.keys[key]
	if !ok {
		return
	}
	if len(q.waiters) == 0 {
		delete(k.keys, key)
		return
	}
	next := q.waiters[0]
	q.waiters = q.waiters[1:]
	close(next)
}

// Len reports how many keys are currently held.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}
