package beacon

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// durableQueue is an ordered buffer of pending records persisted as a
// single JSON array. Every mutation rewrites the whole array before
// returning. The in-memory copy keeps a mutation even when the write
// fails, so the current process can still deliver it.
type durableQueue[T any] struct {
	mu    sync.Mutex
	store Storage
	key   string
	items []T
}

// loadQueue reads the queue stored under key. A missing key yields an
// empty queue; malformed JSON yields an empty queue and an error. A failed
// read yields a nil queue, since persisting over it would drop records.
func loadQueue[T any](store Storage, key string) (*durableQueue[T], error) {
	q := &durableQueue[T]{store: store, key: key}

	data, err := store.Get(key)
	if errors.Is(err, ErrNotFound) {
		return q, nil
	}
	if err != nil {
		return nil, &readError{key: key, err: err}
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return q, fmt.Errorf("failed to decode queue %s: %w", key, err)
	}
	q.items = items
	return q, nil
}

// persistLocked writes the full queue. Callers hold q.mu.
func (q *durableQueue[T]) persistLocked() error {
	items := q.items
	if items == nil {
		items = []T{}
	}
	return storeJSON(q.store, q.key, items)
}

// Append adds rec to the tail of the queue.
func (q *durableQueue[T]) Append(rec T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, rec)
	return q.persistLocked()
}

// Snapshot returns a copy of the queue in delivery order.
func (q *durableQueue[T]) Snapshot() []T {
	return q.Head(-1)
}

// Head returns a copy of at most n records from the front of the queue.
// A negative n returns the whole queue.
func (q *durableQueue[T]) Head(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n < 0 || n > len(q.items) {
		n = len(q.items)
	}
	out := make([]T, n)
	copy(out, q.items[:n])
	return out
}

// RemoveMatching drops every record for which match returns true and
// reports how many were removed.
func (q *durableQueue[T]) RemoveMatching(match func(T) bool) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	removed := 0
	for _, rec := range q.items {
		if match(rec) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	if removed == 0 {
		return 0, nil
	}
	// Zero the tail so dropped records can be collected.
	var zero T
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = zero
	}
	q.items = kept
	return removed, q.persistLocked()
}

// RemoveFront drops the first n records.
func (q *durableQueue[T]) RemoveFront(n int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if n > len(q.items) {
		n = len(q.items)
	}
	q.items = append([]T(nil), q.items[n:]...)
	return q.persistLocked()
}

// Len returns the number of pending records.
func (q *durableQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
