package outbox

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockmindJS/blockmind/internal/chat"
	"github.com/blockmindJS/blockmind/internal/types"
)

var (
	// ErrReplyTimeout is returned by SendAndAwaitReply when no inbound event
	// matched before the deadline.
	ErrReplyTimeout = errors.New("reply timeout")
	// ErrUnknownChannelKind is returned for operations on an unregistered kind.
	ErrUnknownChannelKind = errors.New("unknown channel kind")
	// ErrAlreadyRunning is returned when a second Run is attempted.
	ErrAlreadyRunning = errors.New("outbox already draining")
)

// DefaultReplyTimeout is used when SendAndAwaitReply is given no timeout.
const DefaultReplyTimeout = 10 * time.Second

// Message is one queued outbound send. Lines go out in order, each followed
// by the pace delay.
type Message struct {
	Kind   types.ChannelKind
	Lines  []string
	Target string
	// Pace overrides the kind's pace when set.
	Pace *time.Duration
}

// NewMessage builds a Message for kind with the given lines.
func NewMessage(kind types.ChannelKind, lines ...string) *Message {
	return &Message{Kind: kind, Lines: lines}
}

// To sets the target user, used by kinds that address a player.
func (m *Message) To(user string) *Message {
	m.Target = user
	return m
}

// WithPace sets a pace override.
func (m *Message) WithPace(d time.Duration) *Message {
	m.Pace = &d
	return m
}

// Reply is the inbound event that satisfied a SendAndAwaitReply call.
type Reply struct {
	ID      string
	Event   chat.Event
	Pattern int      // index into the caller's patterns
	Match   []string // submatches of the winning pattern
}

// Outbox serializes every outbound line through a single worker and paces
// them per channel kind.
type Outbox struct {
	transport chat.Transport
	logger    *slog.Logger

	mu       sync.Mutex
	queue    []*Message
	kinds    map[types.ChannelKind]Kind
	pending  map[string]time.Time // reply id -> deadline
	draining bool

	wake chan struct{}
}

// New creates an Outbox sending through transport, seeded with kinds.
func New(transport chat.Transport, kinds []Kind, logger *slog.Logger) *Outbox {
	o := &Outbox{
		transport: transport,
		logger:    logger,
		kinds:     make(map[types.ChannelKind]Kind, len(kinds)),
		pending:   make(map[string]time.Time),
		wake:      make(chan struct{}, 1),
	}
	for _, k := range kinds {
		o.kinds[k.Name] = k
	}
	return o
}

// Enqueue appends msg to the tail of the queue and wakes the worker.
// It never fails; messages for unknown kinds are dropped when drained.
func (o *Outbox) Enqueue(msg *Message) {
	if msg == nil || len(msg.Lines) == 0 {
		return
	}
	cp := *msg
	cp.Lines = slices.Clone(msg.Lines)
	if msg.Pace != nil {
		p := *msg.Pace
		cp.Pace = &p
	}

	o.mu.Lock()
	o.queue = append(o.queue, &cp)
	depth := len(o.queue)
	o.mu.Unlock()

	o.logger.Debug("enqueued message", "kind", cp.Kind, "lines", len(cp.Lines), "depth", depth)

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Send is shorthand for Enqueue(NewMessage(kind, lines...).To(target)).
func (o *Outbox) Send(kind types.ChannelKind, target string, lines ...string) {
	o.Enqueue(NewMessage(kind, lines...).To(target))
}

// Len returns the number of messages waiting to be drained.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Run drains the queue until ctx is cancelled. Only one Run may be active.
func (o *Outbox) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	o.draining = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.draining = false
		o.mu.Unlock()
	}()

	for {
		msg := o.pop()
		if msg == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-o.wake:
				continue
			}
		}
		if err := o.deliver(ctx, msg); err != nil {
			return nil
		}
	}
}

func (o *Outbox) pop() *Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return nil
	}
	msg := o.queue[0]
	o.queue[0] = nil
	o.queue = o.queue[1:]
	return msg
}

// deliver sends every line of msg. It only returns an error when ctx ends.
func (o *Outbox) deliver(ctx context.Context, msg *Message) error {
	kind, ok := o.Kind(msg.Kind)
	if !ok {
		o.logger.Error("dropping message", "error", fmt.Errorf("%w: %q", ErrUnknownChannelKind, msg.Kind), "lines", len(msg.Lines))
		return nil
	}
	pace := kind.Pace
	if msg.Pace != nil {
		pace = *msg.Pace
	}

	for _, line := range msg.Lines {
		framed := kind.Frame(line, msg.Target)
		if err := o.transport.Send(ctx, framed); err != nil {
			o.logger.Warn("sending line", "error", err, "kind", msg.Kind)
		} else {
			o.logger.Debug("sent line", "kind", msg.Kind, "target", msg.Target, "line", types.TruncateString(framed, 120))
		}
		if err := sleep(ctx, pace); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SendAndAwaitReply sends text as a command and waits for the first inbound
// event matching any of patterns. Patterns are tried in order; the first one
// that matches wins. The subscription and timer are released on return,
// whichever of match, timeout or ctx cancellation came first.
func (o *Outbox) SendAndAwaitReply(ctx context.Context, text string, patterns []*regexp.Regexp, timeout time.Duration) (*Reply, error) {
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	id := uuid.NewString()

	matched := make(chan Reply, 1)
	var once sync.Once
	unsubscribe := o.transport.Subscribe(func(ev chat.Event) {
		for i, p := range patterns {
			m := p.FindStringSubmatch(ev.RawText)
			if m == nil {
				continue
			}
			once.Do(func() {
				matched <- Reply{ID: id, Event: ev, Pattern: i, Match: m}
			})
			return
		}
	})
	defer unsubscribe()

	o.mu.Lock()
	o.pending[id] = time.Now().Add(timeout)
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.pending, id)
		o.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	o.Enqueue(NewMessage(types.ChannelCommand, text))

	select {
	case r := <-matched:
		return &r, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no reply to %q within %s", ErrReplyTimeout, text, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PendingReplies returns the number of SendAndAwaitReply calls still waiting.
func (o *Outbox) PendingReplies() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// AddChannelKind registers a kind, replacing any existing one with that name.
func (o *Outbox) AddChannelKind(name types.ChannelKind, template string, pace time.Duration) {
	if pace < 0 {
		pace = DefaultPace
	}
	o.mu.Lock()
	o.kinds[name] = Kind{Name: name, Template: template, Pace: pace}
	o.mu.Unlock()
	o.logger.Info("channel kind registered", "kind", name, "pace", pace)
}

// SetPace changes the pace of an existing kind.
func (o *Outbox) SetPace(name types.ChannelKind, pace time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	k, ok := o.kinds[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannelKind, name)
	}
	if pace < 0 {
		return fmt.Errorf("negative pace %s for %q", pace, name)
	}
	k.Pace = pace
	o.kinds[name] = k
	return nil
}

// Kind returns the registered kind with the given name.
func (o *Outbox) Kind(name types.ChannelKind) (Kind, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	k, ok := o.kinds[name]
	return k, ok
}

// Kinds returns every registered kind sorted by name.
func (o *Outbox) Kinds() []Kind {
	o.mu.Lock()
	out := make([]Kind, 0, len(o.kinds))
	for _, k := range o.kinds {
		out = append(out, k)
	}
	o.mu.Unlock()
	slices.SortFunc(out, func(a, b Kind) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
