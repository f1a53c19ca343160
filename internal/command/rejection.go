package command

import (
	"errors"
	"fmt"
	"time"
)

// ErrLookupFailure wraps user store errors hit while dispatching a command.
var ErrLookupFailure = errors.New("user lookup failed")

// Reason identifies why the pipeline refused or failed an invocation.
type Reason int

const (
	InvalidArguments Reason = iota + 1
	InvalidChatType
	InsufficientPermissions
	Blacklisted
	NotActive
	OnCooldown
	HandlerError
)

func (r Reason) String() string {
	switch r {
	case InvalidArguments:
		return "invalid_arguments"
	case InvalidChatType:
		return "invalid_chat_type"
	case InsufficientPermissions:
		return "insufficient_permissions"
	case Blacklisted:
		return "blacklisted"
	case NotActive:
		return "not_active"
	case OnCooldown:
		return "on_cooldown"
	case HandlerError:
		return "handler_error"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Rejection is the outcome of a gate failure or a failed handler.
type Rejection struct {
	Reason    Reason
	Command   string
	Remaining time.Duration // set for OnCooldown
	Cause     error         // set for HandlerError
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case OnCooldown:
		return fmt.Sprintf("%s: %s (%s remaining)", r.Command, r.Reason, r.Remaining)
	case HandlerError:
		return fmt.Sprintf("%s: %s: %v", r.Command, r.Reason, r.Cause)
	default:
		return fmt.Sprintf("%s: %s", r.Command, r.Reason)
	}
}

func (r *Rejection) Unwrap() error {
	return r.Cause
}

// Message returns the handler error text, or "" for gate rejections.
func (r *Rejection) Message() string {
	if r.Cause == nil {
		return ""
	}
	return r.Cause.Error()
}
