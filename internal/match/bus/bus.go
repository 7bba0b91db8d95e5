// Package bus is a match-scoped, synchronous event bus.
//
// Handlers run on the publishing goroutine, in registration order. The match
// runtime is the only publisher during play, so handlers observe events in the
// order the host dispatched them.
package bus

import (
	"fmt"
	"log"
	"sync"
)

type Topic string

type Event interface {
	Topic() Topic
}

type Handler func(Event)

// Subscription identifies one registered handler.
type Subscription struct {
	topic Topic
	id    uint64
}

type entry struct {
	id uint64
	h  Handler
}

type Bus struct {
	log *log.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[Topic][]entry
}

func New(logger *log.Logger) *Bus {
	return &Bus{
		log:  logger,
		subs: map[Topic][]entry{},
	}
}

func (b *Bus) Subscribe(t Topic, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[t] = append(b.subs[t], entry{id: b.nextID, h: h})
	return Subscription{topic: t, id: b.nextID}
}

// Unsubscribe removes the handler. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[s.topic]
	for i, e := range list {
		if e.id != s.id {
			continue
		}
		out := make([]entry, 0, len(list)-1)
		out = append(out, list[:i]...)
		out = append(out, list[i+1:]...)
		if len(out) == 0 {
			delete(b.subs, s.topic)
		} else {
			b.subs[s.topic] = out
		}
		return
	}
}

// Publish dispatches ev to every handler of its topic. A panicking handler is
// logged and does not stop the remaining handlers.
func (b *Bus) Publish(ev Event) {
	if ev == nil {
		return
	}
	b.mu.Lock()
	list := append([]entry(nil), b.subs[ev.Topic()]...)
	b.mu.Unlock()

	for _, e := range list {
		if err := call(e.h, ev); err != nil && b.log != nil {
			b.log.Printf("bus: %s handler %d: %v", ev.Topic(), e.id, err)
		}
	}
}

func (b *Bus) HandlerCount(t Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[t])
}

func call(h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	h(ev)
	return nil
}

// Group collects subscriptions so a module can drop all of them in one call.
type Group struct {
	bus *Bus

	mu     sync.Mutex
	subs   []Subscription
	closed bool
}

func (b *Bus) NewGroup() *Group { return &Group{bus: b} }

// Subscribe registers h unless the group was already closed.
func (g *Group) Subscribe(t Topic, h Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.subs = append(g.subs, g.bus.Subscribe(t, h))
}

// Close unsubscribes every handler of the group. Safe to call more than once.
func (g *Group) Close() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	for _, s := range g.subs {
		g.bus.Unsubscribe(s)
	}
	g.subs = nil
}
