package mutations

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// collectionWeight is the weight a bulk mutation takes; single-entity mutations take 1.
const collectionWeight = 1 << 20

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

// locker serializes mutations per entity. Bulk mutations hold their collection exclusively, so they wait for every
// in-flight single-entity mutation of that collection and block new ones.
type locker struct {
	mu          sync.Mutex
	collections map[string]*semaphore.Weighted
	keys        map[lockKey]*keyLock
}

func newLocker() *locker {
	return &locker{
		collections: make(map[string]*semaphore.Weighted),
		keys:        make(map[lockKey]*keyLock),
	}
}

func (l *locker) collection(name string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.collections[name]
	if !ok {
		sem = semaphore.NewWeighted(collectionWeight)
		l.collections[name] = sem
	}
	return sem
}

func (l *locker) ref(k lockKey) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.keys[k]
	if !ok {
		kl = &keyLock{sem: semaphore.NewWeighted(1)}
		l.keys[k] = kl
	}
	kl.refs++
	return kl
}

func (l *locker) unref(k lockKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if kl, ok := l.keys[k]; ok {
		kl.refs--
		if kl.refs == 0 {
			delete(l.keys, k)
		}
	}
}

// acquire takes every lock in keys, collections first, in a fixed order. The returned func releases them.
func (l *locker) acquire(ctx context.Context, keys []lockKey) (func(), error) {
	keys = append([]lockKey(nil), keys...)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].collection != keys[j].collection {
			return keys[i].collection < keys[j].collection
		}
		return keys[i].key < keys[j].key
	})

	var undo []func()
	release := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	weights := make(map[string]int64)
	var order []string
	for _, k := range keys {
		w := int64(1)
		if k.key == "" {
			w = collectionWeight
		}
		if _, ok := weights[k.collection]; !ok {
			order = append(order, k.collection)
		}
		weights[k.collection] = max(weights[k.collection], w)
	}
	for _, name := range order {
		sem, w := l.collection(name), weights[name]
		if err := sem.Acquire(ctx, w); err != nil {
			release()
			return nil, err
		}
		undo = append(undo, func() { sem.Release(w) })
	}

	for _, k := range keys {
		if k.key == "" {
			continue
		}
		kl := l.ref(k)
		if err := kl.sem.Acquire(ctx, 1); err != nil {
			l.unref(k)
			release()
			return nil, err
		}
		undo = append(undo, func() {
			kl.sem.Release(1)
			l.unref(k)
		})
	}
	return release, nil
}
