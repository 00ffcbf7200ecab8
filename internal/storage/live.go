package storage

import (
	"log/slog"
	"sync"
)

const defaultFeedCapacity = 16

// Subscription is a live query result stream. Updates receives the full
// result set at subscription time and again after every committed mutation
// that may change it. The channel is closed by Close or when the Store closes.
type Subscription[T any] struct {
	Updates <-chan []T
	cancel  func()
}

// Close terminates the subscription. No update is delivered after Close
// returns, including updates already buffered but not yet received.
func (s Subscription[T]) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

type liveQuery interface {
	reads(table string) bool
	refresh() error
	close()
}

// liveSet tracks the active live queries of a Store.
type liveSet struct {
	mu      sync.Mutex
	nextID  int
	queries map[int]liveQuery
}

func newLiveSet() *liveSet {
	return &liveSet{queries: map[int]liveQuery{}}
}

func (l *liveSet) add(q liveQuery) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.queries[l.nextID] = q
	return l.nextID
}

func (l *liveSet) remove(id int) {
	l.mu.Lock()
	q, ok := l.queries[id]
	delete(l.queries, id)
	l.mu.Unlock()
	if ok {
		q.close()
	}
}

func (l *liveSet) closeAll() {
	l.mu.Lock()
	queries := l.queries
	l.queries = map[int]liveQuery{}
	l.mu.Unlock()
	for _, q := range queries {
		q.close()
	}
}

func (l *liveSet) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queries)
}

// refresh re-runs every live query that reads one of tables. Callers hold the
// Store write lock.
func (l *liveSet) refresh(logger *slog.Logger, tables ...string) {
	l.mu.Lock()
	affected := make([]liveQuery, 0, len(l.queries))
	for _, q := range l.queries {
		for _, t := range tables {
			if q.reads(t) {
				affected = append(affected, q)
				break
			}
		}
	}
	l.mu.Unlock()

	for _, q := range affected {
		if err := q.refresh(); err != nil {
			logger.Error("live query refresh failed", "tables", tables, "error", err)
		}
	}
}

type watcher[T any] struct {
	tables []string
	query  func() ([]T, error)
	feed   *feed[T]
}

func (w *watcher[T]) reads(table string) bool {
	for _, t := range w.tables {
		if t == table {
			return true
		}
	}
	return false
}

func (w *watcher[T]) refresh() error {
	result, err := w.query()
	if err != nil {
		return err
	}
	w.feed.deliver(result)
	return nil
}

func (w *watcher[T]) close() {
	w.feed.close()
}

// watch registers a live query over tables. The initial result is computed
// under the write lock so no mutation can slip between the snapshot and the
// registration.
func watch[T any](s *Store, tables []string, query func() ([]T, error)) (Subscription[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	initial, err := query()
	if err != nil {
		return Subscription[T]{}, err
	}

	w := &watcher[T]{tables: tables, query: query, feed: newFeed[T](defaultFeedCapacity)}
	w.feed.deliver(initial)
	id := s.live.add(w)

	return Subscription[T]{
		Updates: w.feed.ch,
		cancel:  func() { s.live.remove(id) },
	}, nil
}

// feed is a bounded, never-blocking delivery channel. When the buffer is
// full the oldest snapshot is discarded; every snapshot is a complete result
// so the newest one supersedes it.
type feed[T any] struct {
	mu     sync.Mutex
	ch     chan []T
	closed bool
}

func newFeed[T any](capacity int) *feed[T] {
	if capacity <= 0 {
		capacity = defaultFeedCapacity
	}
	return &feed[T]{ch: make(chan []T, capacity)}
}

func (f *feed[T]) deliver(v []T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- v:
		return
	default:
	}
	select {
	case <-f.ch:
	default:
	}
	f.ch <- v
}

func (f *feed[T]) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for {
		select {
		case <-f.ch:
			continue
		default:
		}
		break
	}
	close(f.ch)
}
