// Package chat holds the types shared between the transport, the outbound
// queue and the dispatcher.
package chat

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Event is a raw inbound chat line as delivered by the transport.
type Event struct {
	RawText   string
	Source    string
	Component *Component
}

// Transport sends raw lines to the game server and publishes inbound events.
type Transport interface {
	Send(ctx context.Context, line string) error
	Subscribe(handler func(Event)) (unsubscribe func())
}

// Component is a node in a structured chat message tree.
type Component struct {
	Text       string       `json:"text,omitempty"`
	Extra      []*Component `json:"extra,omitempty"`
	ClickEvent *ClickEvent  `json:"clickEvent,omitempty"`
}

// ClickEvent is the action attached to a clickable chat component.
type ClickEvent struct {
	Action string `json:"action"`
	Value  string `json:"value"`
}

// PlainText flattens the tree into the text a player would see.
func (c *Component) PlainText() string {
	if c == nil {
		return ""
	}
	var sb strings.Builder
	c.writeText(&sb)
	return sb.String()
}

func (c *Component) writeText(sb *strings.Builder) {
	sb.WriteString(c.Text)
	for _, part := range c.Extra {
		if part != nil {
			part.writeText(sb)
		}
	}
}

// ClickUsername walks the tree depth-first and returns the player name from
// the first "suggest_command" click event carrying one ("/msg Steve " -> "Steve").
func (c *Component) ClickUsername() string {
	if c == nil {
		return ""
	}
	if name := c.ClickEvent.username(); name != "" {
		return name
	}
	for _, part := range c.Extra {
		if name := part.ClickUsername(); name != "" {
			return name
		}
	}
	return ""
}

func (e *ClickEvent) username() string {
	if e == nil || e.Action != "suggest_command" {
		return ""
	}
	fields := strings.Fields(e.Value)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

// Hub fans inbound events out to subscribers. The zero value is ready to use.
type Hub struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]func(Event)
}

// Subscribe registers handler and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (h *Hub) Subscribe(handler func(Event)) func() {
	h.mu.Lock()
	if h.handlers == nil {
		h.handlers = make(map[uint64]func(Event))
	}
	h.nextID++
	id := h.nextID
	h.handlers[id] = handler
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.handlers, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers ev to every current subscriber, in subscription order.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.handlers))
	for id := range h.handlers {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	slices.Sort(ids)

	for _, id := range ids {
		h.mu.RLock()
		handler, ok := h.handlers[id]
		h.mu.RUnlock()
		if ok {
			handler(ev)
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers)
}
