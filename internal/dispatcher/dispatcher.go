// Package dispatcher routes inbound chat events to commands.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blockmindJS/blockmind/internal/chat"
	"github.com/blockmindJS/blockmind/internal/classifier"
	"github.com/blockmindJS/blockmind/internal/command"
	"github.com/blockmindJS/blockmind/internal/db"
)

// DefaultPrefix marks chat text as a command.
const DefaultPrefix = "@"

// UserStore fetches the invoking user. db.Store satisfies it.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*db.User, error)
}

// Lookup resolves commands by name. *command.Registry satisfies it.
type Lookup interface {
	Lookup(name string) (*command.Entry, bool)
}

// Executor runs a resolved command. *command.Pipeline satisfies it.
type Executor interface {
	Execute(ctx context.Context, entry *command.Entry, call *command.Call) *command.Rejection
}

// Dispatcher turns inbound events into command invocations.
type Dispatcher struct {
	classifier classifier.Classifier
	commands   Lookup
	users      UserStore
	executor   Executor
	out        command.Enqueuer
	prefix     string
	logger     *slog.Logger

	wg sync.WaitGroup
}

// Options configures a Dispatcher.
type Options struct {
	Classifier classifier.Classifier
	Commands   Lookup
	Users      UserStore
	Executor   Executor
	Out        command.Enqueuer
	Prefix     string
	Logger     *slog.Logger
}

// New creates a Dispatcher. An empty prefix uses DefaultPrefix.
func New(opts Options) *Dispatcher {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Dispatcher{
		classifier: opts.Classifier,
		commands:   opts.Commands,
		users:      opts.Users,
		executor:   opts.Executor,
		out:        opts.Out,
		prefix:     prefix,
		logger:     opts.Logger,
	}
}

// Attach subscribes the dispatcher to transport. Each event is handled on
// its own goroutine so a slow handler never blocks the transport reader.
// The returned function unsubscribes.
func (d *Dispatcher) Attach(ctx context.Context, transport chat.Transport) func() {
	return transport.Subscribe(func(ev chat.Event) {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			err := d.Handle(ctx, ev)
			switch {
			case IsLookupFailure(err):
				d.logger.Error("registry lookup failure", "error", err)
			case err != nil:
				d.logger.Warn("dispatching event", "error", err)
			}
		}()
	})
}

// Wait blocks until every in-flight event handled through Attach is done.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Handle classifies ev and runs the command it names, if any. Events that
// are not commands are dropped silently. The only error returned is a user
// lookup failure wrapping command.ErrLookupFailure.
func (d *Dispatcher) Handle(ctx context.Context, ev chat.Event) error {
	msg, ok := d.classifier.Classify(ev)
	if !ok {
		return nil
	}
	name, rest, ok := SplitCommand(msg.Text, d.prefix)
	if !ok {
		return nil
	}

	entry, ok := d.commands.Lookup(name)
	if !ok {
		d.logger.Info("unknown command", "command", name, "user", msg.Sender, "channel", msg.Channel)
		return nil
	}

	user, err := d.users.GetUser(ctx, msg.Sender)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", command.ErrLookupFailure, msg.Sender, err)
	}

	d.logger.Debug("executing command", "command", entry.Spec.Name, "user", user.Username, "channel", msg.Channel)
	call := &command.Call{
		Channel: msg.Channel,
		User:    user,
		Args:    Tokenize(rest),
		Out:     d.out,
	}
	d.executor.Execute(ctx, entry, call)
	return nil
}

// IsLookupFailure reports whether err came from the user store.
func IsLookupFailure(err error) bool {
	return errors.Is(err, command.ErrLookupFailure)
}
