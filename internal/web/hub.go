package web

import (
	"sync"
)

type resourceHub struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newResourceHub() *resourceHub {
	return &resourceHub{subs: map[chan struct{}]struct{}{}}
}

func (h *resourceHub) subscribe() (ch chan struct{}, cancel func()) {
	ch = make(chan struct{}, 8)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// broadcast never blocks; a subscriber with a full buffer already has a render pending.
func (h *resourceHub) broadcast() {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

// broadcaster fans service events out to one hub per collection.
type broadcaster struct {
	mu   sync.Mutex
	hubs map[string]*resourceHub

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{
		hubs:   map[string]*resourceHub{},
		stopCh: make(chan struct{}),
	}
}

func (b *broadcaster) hubFor(collection string) *resourceHub {
	b.mu.Lock()
	h := b.hubs[collection]
	if h == nil {
		h = newResourceHub()
		b.hubs[collection] = h
	}
	b.mu.Unlock()
	return h
}

func (b *broadcaster) broadcastAll() {
	b.mu.Lock()
	hubs := make([]*resourceHub, 0, len(b.hubs))
	for _, h := range b.hubs {
		hubs = append(hubs, h)
	}
	b.mu.Unlock()
	for _, h := range hubs {
		h.broadcast()
	}
}

func (b *broadcaster) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

func (b *broadcaster) done() <-chan struct{} { return b.stopCh }
