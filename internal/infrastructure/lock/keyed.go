// Package lock implementa inventory.UnitLocker: exclusión por clave dentro del proceso
// y, para varias réplicas, exclusión distribuida sobre Redis.
package lock

import (
	"context"
	"sync"

	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
)

var _ inventory.UnitLocker = (*KeyedMutex)(nil)

// KeyedMutex un semáforo por clave. Las claves llegan ordenadas desde el motor, lo que
// evita interbloqueos entre operaciones con claves en común.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex construye el locker en proceso.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: map[string]*slot{}}
}

// Lock adquiere las claves en el orden recibido. Si ctx termina antes libera las ya
// tomadas y devuelve ctx.Err().
func (k *KeyedMutex) Lock(ctx context.Context, keys []string) (func(), error) {
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		s := k.acquireSlot(key)
		select {
		case s.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			k.releaseSlot(key, false)
			k.unlock(held)
			return nil, ctx.Err()
		}
	}
	var once sync.Once
	return func() { once.Do(func() { k.unlock(held) }) }, nil
}

func (k *KeyedMutex) unlock(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		k.releaseSlot(keys[i], true)
	}
}

func (k *KeyedMutex) acquireSlot(key string) *slot {
	k.mu.Lock()
	defer k.mu.Unlock()
	s := k.slots[key]
	if s == nil {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	return s
}

func (k *KeyedMutex) releaseSlot(key string, held bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s := k.slots[key]
	if held {
		<-s.ch
	}
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}
