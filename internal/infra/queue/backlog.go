package queue

import "sync"

// backlog is an unbounded work list drained by a single consumer goroutine.
// Items sharing a key collapse into the latest one, so its size is bounded by
// the number of distinct keys waiting. Keys are handed out in first-push order.
type backlog[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	key     func(T) string
	order   []string
	pending map[string]T
	closed  bool
}

func newBacklog[T any](key func(T) string) *backlog[T] {
	b := &backlog[T]{key: key, pending: make(map[string]T)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// push never blocks. It reports false once the backlog is closed.
func (b *backlog[T]) push(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	k := b.key(item)
	if _, queued := b.pending[k]; !queued {
		b.order = append(b.order, k)
	}
	b.pending[k] = item
	b.cond.Signal()
	return true
}

// next blocks until items are waiting and takes all of them. ok is false
// after close, once everything pushed before it was handed out.
func (b *backlog[T]) next() (items []T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.order) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.order) == 0 {
		return nil, false
	}
	items = make([]T, 0, len(b.order))
	for _, k := range b.order {
		items = append(items, b.pending[k])
	}
	b.order = nil
	clear(b.pending)
	return items, true
}

func (b *backlog[T]) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

func (b *backlog[T]) close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// run hands every batch to apply until the backlog is closed and empty.
func (b *backlog[T]) run(done chan<- struct{}, apply func(T)) {
	defer close(done)
	for {
		items, ok := b.next()
		if !ok {
			return
		}
		for _, it := range items {
			apply(it)
		}
	}
}
