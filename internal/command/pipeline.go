package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blockmindJS/blockmind/internal/permission"
)

// Cooldowns tracks per-user command usage. *cooldown.Tracker satisfies it.
type Cooldowns interface {
	Check(command, user string, window time.Duration) (bool, time.Duration)
	RecordUse(command, user string, window time.Duration)
}

// Notifier is told the outcome of every invocation that reached the pipeline.
type Notifier interface {
	Rejected(ctx context.Context, call *Call, r *Rejection)
	Executed(ctx context.Context, call *Call)
}

// Pipeline runs the ordered gates in front of a command handler.
type Pipeline struct {
	cooldowns Cooldowns
	notifier  Notifier
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(cooldowns Cooldowns, notifier Notifier, logger *slog.Logger) *Pipeline {
	return &Pipeline{cooldowns: cooldowns, notifier: notifier, logger: logger}
}

// Execute checks arity, channel, permission, blacklist, activation and
// cooldown in that order, then runs the handler. The first failure is
// reported to the notifier and returned; nil means the handler succeeded.
// Handler errors and panics never escape.
func (p *Pipeline) Execute(ctx context.Context, entry *Entry, call *Call) *Rejection {
	spec := entry.Spec
	call.Spec = spec
	user := call.Username()

	if r := p.gate(call); r != nil {
		p.logger.Info("command rejected", "command", spec.Name, "user", user, "channel", call.Channel, "reason", r.Reason)
		p.notifier.Rejected(ctx, call, r)
		return r
	}

	if err := p.run(ctx, entry.Handler, call); err != nil {
		r := &Rejection{Reason: HandlerError, Command: spec.Name, Cause: err}
		p.logger.Error("command failed", "command", spec.Name, "user", user, "error", err)
		p.notifier.Rejected(ctx, call, r)
		return r
	}

	p.cooldowns.RecordUse(spec.Name, user, spec.Cooldown)
	p.logger.Debug("command executed", "command", spec.Name, "user", user, "channel", call.Channel)
	p.notifier.Executed(ctx, call)
	return nil
}

func (p *Pipeline) gate(call *Call) *Rejection {
	spec := call.Spec
	reject := func(reason Reason) *Rejection {
		return &Rejection{Reason: reason, Command: spec.Name}
	}

	if len(call.Args) < spec.RequiredArgs {
		return reject(InvalidArguments)
	}
	if !spec.AllowsChannel(call.Channel) {
		return reject(InvalidChatType)
	}
	if call.User == nil || !permission.Has(call.User.PermissionSet(), spec.Permission) {
		return reject(InsufficientPermissions)
	}
	if call.User.Blacklisted {
		return reject(Blacklisted)
	}
	if !spec.Active {
		return reject(NotActive)
	}
	if on, remaining := p.cooldowns.Check(spec.Name, call.Username(), spec.Cooldown); on {
		r := reject(OnCooldown)
		r.Remaining = remaining
		return r
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, handler Handler, call *Call) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return handler(ctx, call)
}
