// Package memory implements store.DocumentStore with in-process maps and
// live snapshot fan-out. It backs tests and DEV_MODE; the production
// store lives in the sibling dynamo package.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skydrive/skydrive/internal/store"
)

// Store is an in-memory document store. Every mutation delivers a fresh
// full-collection snapshot to all subscribers of that collection.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	subs        map[int]*subscription
	nextSubID   int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]any),
		subs:        make(map[int]*subscription),
	}
}

func (s *Store) collection(name string) map[string]map[string]any {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]map[string]any)
		s.collections[name] = c
	}
	return c
}

// Create implements store.DocumentStore.
func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.New().String()

	s.mu.Lock()
	s.collection(collection)[id] = store.ResolveTimestamps(fields, time.Now())
	s.broadcastLocked(collection)
	s.mu.Unlock()

	return id, nil
}

// Update implements store.DocumentStore. Fields are merged into the
// existing document.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collection(collection)[id]
	if !ok {
		return store.ErrNotFound
	}
	for k, v := range store.ResolveTimestamps(fields, time.Now()) {
		doc[k] = v
	}
	s.broadcastLocked(collection)
	return nil
}

// Delete implements store.DocumentStore. Deleting an absent document is
// a no-op.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	if _, ok := c[id]; !ok {
		return nil
	}
	delete(c, id)
	s.broadcastLocked(collection)
	return nil
}

// List implements store.DocumentStore.
func (s *Store) List(ctx context.Context, collection, orderField string, descending bool) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(collection, orderField, descending), nil
}

// Subscribe implements store.DocumentStore. The initial snapshot is
// delivered immediately.
func (s *Store) Subscribe(ctx context.Context, collection, orderField string, descending bool) (store.Subscription, error) {
	sub := &subscription{
		ctx:        ctx,
		collection: collection,
		orderField: orderField,
		descending: descending,
		out:        make(chan store.Snapshot),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = sub
	sub.cancelFn = func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	sub.deliver(store.Snapshot{
		Collection: collection,
		Docs:       s.snapshotLocked(collection, orderField, descending),
	})
	s.mu.Unlock()

	go sub.run()
	return sub, nil
}

// broadcastLocked queues a fresh snapshot for every subscriber of the
// collection. Caller holds s.mu.
func (s *Store) broadcastLocked(collection string) {
	for _, sub := range s.subs {
		if sub.collection != collection {
			continue
		}
		sub.deliver(store.Snapshot{
			Collection: collection,
			Docs:       s.snapshotLocked(collection, sub.orderField, sub.descending),
		})
	}
}

// snapshotLocked copies a collection into delivery order. Caller holds
// s.mu (read or write).
func (s *Store) snapshotLocked(collection, orderField string, descending bool) []store.Document {
	c := s.collections[collection]
	docs := make([]store.Document, 0, len(c))
	for id, fields := range c {
		copied := make(map[string]any, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		docs = append(docs, store.Document{ID: id, Fields: copied})
	}
	sort.Slice(docs, func(i, j int) bool {
		if descending {
			return docLess(docs[j], docs[i], orderField)
		}
		return docLess(docs[i], docs[j], orderField)
	})
	return docs
}

func docLess(a, b store.Document, orderField string) bool {
	ta, aok := a.Fields[orderField].(time.Time)
	tb, bok := b.Fields[orderField].(time.Time)
	if aok && bok && !ta.Equal(tb) {
		return ta.Before(tb)
	}
	if aok != bok {
		return !aok // documents without the field sort first
	}
	return a.ID < b.ID
}

// subscription coalesces snapshots: if the consumer lags, intermediate
// snapshots are dropped and only the latest is delivered.
type subscription struct {
	ctx        context.Context
	collection string
	orderField string
	descending bool

	out    chan store.Snapshot
	notify chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	latest *store.Snapshot

	once     sync.Once
	cancelFn func()
}

func (sub *subscription) deliver(snap store.Snapshot) {
	sub.mu.Lock()
	sub.latest = &snap
	sub.mu.Unlock()

	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

func (sub *subscription) run() {
	defer close(sub.out)
	for {
		select {
		case <-sub.done:
			return
		case <-sub.ctx.Done():
			sub.Cancel()
			return
		case <-sub.notify:
		}

		sub.mu.Lock()
		snap := sub.latest
		sub.latest = nil
		sub.mu.Unlock()
		if snap == nil {
			continue
		}

		select {
		case sub.out <- *snap:
		case <-sub.done:
			return
		case <-sub.ctx.Done():
			sub.Cancel()
			return
		}
	}
}

// Snapshots implements store.Subscription.
func (sub *subscription) Snapshots() <-chan store.Snapshot { return sub.out }

// Err implements store.Subscription. The memory store has no terminal
// failure mode.
func (sub *subscription) Err() error { return nil }

// Cancel implements store.Subscription.
func (sub *subscription) Cancel() {
	sub.once.Do(func() {
		sub.cancelFn()
		close(sub.done)
	})
}
