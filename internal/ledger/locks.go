package ledger

import "sync"

// ItemLocks serializes every operation touching the same item. Entries are
// reference counted and dropped once no goroutine holds or waits on them.
type ItemLocks struct {
	mu    sync.Mutex
	items map[ItemKey]*itemLock
}

type itemLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock func.
func (l *ItemLocks) Lock(key ItemKey) (unlock func()) {
	l.mu.Lock()
	if l.items == nil {
		l.items = make(map[ItemKey]*itemLock)
	}
	il, ok := l.items[key]
	if !ok {
		il = &itemLock{}
		l.items[key] = il
	}
	il.refs++
	l.mu.Unlock()

	il.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			il.mu.Unlock()
			l.mu.Lock()
			il.refs--
			if il.refs == 0 {
				delete(l.items, key)
			}
			l.mu.Unlock()
		})
	}
}

func (l *ItemLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
