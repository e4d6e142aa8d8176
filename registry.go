package gridsocket

import (
	"sort"
	"sync"
)

// Handler receives broadcasts for one topic.
type Handler interface {
	HandleEvent(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

// HandleEvent calls f(ev).
func (f HandlerFunc) HandleEvent(ev Event) {
	f(ev)
}

// registry maps a topic to its single handler.
type registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func newRegistry() *registry {
	return &registry{handlers: make(map[string]Handler)}
}

func (r *registry) set(topic string, h Handler) {
	r.mu.Lock()
	r.handlers[topic] = h
	r.mu.Unlock()
}

func (r *registry) remove(topic string) {
	r.mu.Lock()
	delete(r.handlers, topic)
	r.mu.Unlock()
}

func (r *registry) lookup(topic string) (Handler, bool) {
	r.mu.RLock()
	h, ok := r.handlers[topic]
	r.mu.RUnlock()
	return h, ok
}

func (r *registry) topics() []string {
	r.mu.RLock()
	topics := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		topics = append(topics, t)
	}
	r.mu.RUnlock()
	sort.Strings(topics)
	return topics
}
