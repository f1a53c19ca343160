package command

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Messages holds the user-facing text for each rejection. "{command}" is
// replaced with the command name, "{seconds}" with the remaining cooldown
// and "{error}" with the handler error.
type Messages struct {
	InvalidArguments        string `json:"invalid_arguments"`
	InvalidChatType         string `json:"invalid_chat_type"`
	InsufficientPermissions string `json:"insufficient_permissions"`
	Blacklisted             string `json:"blacklisted"`
	NotActive               string `json:"not_active"`
	OnCooldown              string `json:"on_cooldown"`
	HandlerError            string `json:"handler_error"`
}

// DefaultMessages returns the stock rejection texts.
func DefaultMessages() Messages {
	return Messages{
		InvalidArguments:        "Недостаточно параметров для команды {command}",
		InvalidChatType:         "Команда {command} не поддерживается в данном чате",
		InsufficientPermissions: "У вас нет прав для выполнения команды {command}",
		Blacklisted:             "Вы заблокированы и не можете использовать команды.",
		NotActive:               "Команда {command} не активна",
		OnCooldown:              "Команда {command} будет доступна через {seconds} сек.",
		HandlerError:            "Ошибка при выполнении команды {command}: {error}",
	}
}

func (m Messages) template(reason Reason) string {
	switch reason {
	case InvalidArguments:
		return m.InvalidArguments
	case InvalidChatType:
		return m.InvalidChatType
	case InsufficientPermissions:
		return m.InsufficientPermissions
	case Blacklisted:
		return m.Blacklisted
	case NotActive:
		return m.NotActive
	case OnCooldown:
		return m.OnCooldown
	case HandlerError:
		return m.HandlerError
	}
	return ""
}

// Render formats the message for r. An empty template renders "".
func (m Messages) Render(r *Rejection) string {
	tmpl := m.template(r.Reason)
	if tmpl == "" {
		return ""
	}
	seconds := int(math.Ceil(r.Remaining.Seconds()))
	return strings.NewReplacer(
		"{command}", r.Command,
		"{seconds}", fmt.Sprint(seconds),
		"{error}", r.Message(),
	).Replace(tmpl)
}

// ChatNotifier answers rejections in chat on the channel the command came from.
type ChatNotifier struct {
	out               Enqueuer
	messages          Messages
	notifyBlacklisted bool
	logger            *slog.Logger
}

// NewChatNotifier creates a ChatNotifier. When notifyBlacklisted is false,
// blacklisted users get no answer at all.
func NewChatNotifier(out Enqueuer, messages Messages, notifyBlacklisted bool, logger *slog.Logger) *ChatNotifier {
	return &ChatNotifier{out: out, messages: messages, notifyBlacklisted: notifyBlacklisted, logger: logger}
}

func (n *ChatNotifier) Rejected(_ context.Context, call *Call, r *Rejection) {
	if r.Reason == Blacklisted && !n.notifyBlacklisted {
		return
	}
	text := n.messages.Render(r)
	if text == "" {
		n.logger.Debug("no message for rejection", "reason", r.Reason, "command", r.Command)
		return
	}
	replyTo(n.out, call, text)
}

func (n *ChatNotifier) Executed(context.Context, *Call) {}

func replyTo(out Enqueuer, call *Call, text string) {
	c := *call
	c.Out = out
	c.Reply(text)
}

// NotifierFunc adapts a function into a Notifier that only sees rejections.
type NotifierFunc func(ctx context.Context, call *Call, r *Rejection)

func (f NotifierFunc) Rejected(ctx context.Context, call *Call, r *Rejection) { f(ctx, call, r) }

func (f NotifierFunc) Executed(context.Context, *Call) {}
