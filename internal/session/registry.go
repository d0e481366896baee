package session

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Factory builds a fresh session for a client.
type Factory func(clientID string) *Session

// Registry keeps one live session per client, evicting the least recently
// used one when full and any session idle for longer than ttl. An evicted
// client gets a new session and hydrates again, as after a page reload.
type Registry struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	factory Factory

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type registryItem struct {
	clientID string
	session  *Session
	lastSeen time.Time
}

func NewRegistry(factory Factory, maxSize int, ttl time.Duration) *Registry {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Registry{
		maxSize:     maxSize,
		ttl:         ttl,
		items:       make(map[string]*list.Element),
		lru:         list.New(),
		factory:     factory,
		stopCleanup: make(chan struct{}),
	}
}

// Acquire returns the session for clientID, creating it and starting its
// hydration in the background when none is live.
func (r *Registry) Acquire(ctx context.Context, clientID string) *Session {
	r.mu.Lock()
	now := time.Now()
	if elem, ok := r.items[clientID]; ok {
		item := elem.Value.(*registryItem)
		if r.ttl <= 0 || now.Sub(item.lastSeen) <= r.ttl {
			item.lastSeen = now
			r.lru.MoveToFront(elem)
			r.mu.Unlock()
			return item.session
		}
		r.removeElement(elem)
	}

	s := r.factory(clientID)
	r.items[clientID] = r.lru.PushFront(&registryItem{clientID: clientID, session: s, lastSeen: now})
	if r.lru.Len() > r.maxSize {
		if oldest := r.lru.Back(); oldest != nil {
			r.removeElement(oldest)
		}
	}
	r.mu.Unlock()

	go s.Hydrate(context.WithoutCancel(ctx))
	return s
}

// Forget drops the session for clientID, if any.
func (r *Registry) Forget(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.items[clientID]; ok {
		r.removeElement(elem)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

func (r *Registry) removeElement(elem *list.Element) {
	item := elem.Value.(*registryItem)
	delete(r.items, item.clientID)
	r.lru.Remove(elem)
}

// CleanExpired removes every idle session and returns how many were removed.
func (r *Registry) CleanExpired() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.ttl)
	removed := 0
	// The list is ordered by recency, so idle entries sit at the back.
	for elem := r.lru.Back(); elem != nil; {
		item := elem.Value.(*registryItem)
		if item.lastSeen.After(cutoff) {
			break
		}
		prev := elem.Prev()
		r.removeElement(elem)
		removed++
		elem = prev
	}
	return removed
}

// StartCleanup sweeps idle sessions every interval until Close is called.
func (r *Registry) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.CleanExpired()
			case <-r.stopCleanup:
				return
			}
		}
	}()
}

func (r *Registry) Close() {
	r.shutdownOnce.Do(func() {
		close(r.stopCleanup)
	})
}
