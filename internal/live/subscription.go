package live

import (
	"context"
	"sync"
)

// QueryFunc produces the current result of a live query.
type QueryFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is one emission of a live query. Err is set when the query failed;
// Data then holds the zero value. Seq starts at 1 and grows by one per emission.
type Snapshot[T any] struct {
	Data T
	Err  error
	Seq  uint64
}

// Subscription delivers snapshots of one query on C.
//
// C has room for a single snapshot. When the reader falls behind, an unread
// snapshot is replaced by the newer one, so readers always see the latest
// state rather than a backlog. C is closed by Close.
type Subscription[T any] struct {
	C <-chan Snapshot[T]

	hub    *Hub
	tables []string
	query  QueryFunc[T]

	ch       chan Snapshot[T]
	wakeCh   chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	closeOne sync.Once

	mu   sync.Mutex
	seq  uint64
	last *Snapshot[T]
}

// Subscribe registers query against tables and runs it once before returning,
// so the first snapshot is already waiting on C. Later writes to any of the
// tables (reported through Hub.Notify) re-run the query.
//
// The subscription lives until Close is called or ctx is cancelled.
func Subscribe[T any](ctx context.Context, h *Hub, tables []string, query QueryFunc[T]) *Subscription[T] {
	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Snapshot[T], 1)
	s := &Subscription[T]{
		C:      ch,
		hub:    h,
		tables: append([]string(nil), tables...),
		query:  query,
		ch:     ch,
		wakeCh: make(chan struct{}, 1),
		ctx:    subCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// Register before the first run so a write racing with it is not missed.
	h.register(s, s.tables)
	s.run()
	go s.loop()
	return s
}

// Current returns the most recent snapshot. ok is false while the first
// query has not produced a result yet.
func (s *Subscription[T]) Current() (snap Snapshot[T], ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return snap, false
	}
	return *s.last, true
}

// Close unregisters the subscription, waits for an in-flight query to finish
// and closes C. Nothing is delivered after Close returns. Safe to call twice.
func (s *Subscription[T]) Close() {
	s.closeOne.Do(func() {
		s.hub.unregister(s, s.tables)
		s.cancel()
	})
	<-s.done
}

// Done is closed once the subscription has shut down.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription[T]) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
		// a re-run is already pending; it will observe this write too
	}
}

func (s *Subscription[T]) loop() {
	defer close(s.done)
	defer close(s.ch)
	defer s.hub.unregister(s, s.tables)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wakeCh:
		}
		if !s.run() {
			return
		}
	}
}

// run executes the query and publishes the result. It reports false when
// the subscription was cancelled meanwhile.
func (s *Subscription[T]) run() bool {
	data, err := s.query(s.ctx)
	if s.ctx.Err() != nil {
		return false
	}

	s.mu.Lock()
	s.seq++
	snap := Snapshot[T]{Data: data, Err: err, Seq: s.seq}
	if err != nil {
		var zero T
		snap.Data = zero
	}
	s.last = &snap
	s.mu.Unlock()

	for {
		select {
		case s.ch <- snap:
			return true
		default:
		}
		// drop the stale snapshot the reader has not picked up
		select {
		case <-s.ch:
		default:
		}
	}
}
