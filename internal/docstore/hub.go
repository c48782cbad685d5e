package docstore

import (
	"context"
	"sync"
)

type fetchFunc func(ctx context.Context) ([]Snapshot, error)

// hub fans change signals out to subscriptions by collection.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func newHub() *hub { return &hub{subs: make(map[string]map[*Subscription]struct{})} }

func (h *hub) add(coll string, s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[coll]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[coll] = set
	}
	set[s] = struct{}{}
}

func (h *hub) remove(coll string, s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[coll]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, coll)
		}
	}
}

func (h *hub) notify(coll string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[coll] {
		s.poke()
	}
}

func (h *hub) notifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for s := range set {
			s.poke()
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// Subscription delivers the current result of a document or query read, first
// immediately and then after every change to the watched collection. Delivery
// is lossy: a slow reader only sees the latest state. C is closed once the
// subscription ends.
type Subscription struct {
	out    chan []Snapshot
	signal chan struct{}
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func newSubscription(parent context.Context, h *hub, coll string, fetch fetchFunc) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	s := &Subscription{
		out:    make(chan []Snapshot, 1),
		signal: make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.add(coll, s)
	go s.run(ctx, h, coll, fetch)
	return s
}

func (s *Subscription) C() <-chan []Snapshot { return s.out }

// Close stops the subscription and waits for its goroutine. Safe to call twice.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Err returns the last fetch error, if the most recent refresh failed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) poke() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) run(ctx context.Context, h *hub, coll string, fetch fetchFunc) {
	defer close(s.done)
	defer close(s.out)
	defer h.remove(coll, s)

	for {
		snaps, err := fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		if err == nil {
			select {
			case <-s.out:
			default:
			}
			s.out <- snaps
		}

		select {
		case <-ctx.Done():
			return
		case <-s.signal:
		}
	}
}
