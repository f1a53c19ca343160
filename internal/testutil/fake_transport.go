package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/blockmindJS/blockmind/internal/chat"
)

// SentLine is one line recorded by FakeTransport.
type SentLine struct {
	Line string
	At   time.Time
}

// FakeTransport records outbound lines and lets tests inject inbound events.
type FakeTransport struct {
	hub chat.Hub

	mu     sync.Mutex
	sent   []SentLine
	fail   map[string]error
	onSend func(line string)
}

// NewFakeTransport returns an empty FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{fail: make(map[string]error)}
}

// Send records line, or returns the error registered for it with FailOn.
func (f *FakeTransport) Send(_ context.Context, line string) error {
	f.mu.Lock()
	err := f.fail[line]
	f.sent = append(f.sent, SentLine{Line: line, At: time.Now()})
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook(line)
	}
	return err
}

func (f *FakeTransport) Subscribe(handler func(chat.Event)) func() {
	return f.hub.Subscribe(handler)
}

// Emit publishes an inbound event to every subscriber.
func (f *FakeTransport) Emit(ev chat.Event) {
	f.hub.Publish(ev)
}

// EmitText publishes a plain inbound line.
func (f *FakeTransport) EmitText(text string) {
	f.hub.Publish(chat.Event{RawText: text, Source: "test"})
}

// FailOn makes every Send of line return err.
func (f *FakeTransport) FailOn(line string, err error) {
	f.mu.Lock()
	f.fail[line] = err
	f.mu.Unlock()
}

// OnSend installs a hook called after each Send, outside the lock.
func (f *FakeTransport) OnSend(hook func(line string)) {
	f.mu.Lock()
	f.onSend = hook
	f.mu.Unlock()
}

// Sent returns a copy of every recorded send.
func (f *FakeTransport) Sent() []SentLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentLine, len(f.sent))
	copy(out, f.sent)
	return out
}

// Lines returns only the text of every recorded send.
func (f *FakeTransport) Lines() []string {
	sent := f.Sent()
	out := make([]string, len(sent))
	for i, s := range sent {
		out[i] = s.Line
	}
	return out
}

// Subscribers returns the number of live subscriptions.
func (f *FakeTransport) Subscribers() int {
	return f.hub.Len()
}

var _ chat.Transport = (*FakeTransport)(nil)
