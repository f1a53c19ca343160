// Package command holds command definitions, the registry that resolves
// them by name or alias, and the gated pipeline that executes them.
package command

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/blockmindJS/blockmind/internal/db"
	"github.com/blockmindJS/blockmind/internal/outbox"
	"github.com/blockmindJS/blockmind/internal/types"
)

// Spec is the immutable definition of a command. Reloading a command
// registers a new Spec; calls already running keep the one they started with.
type Spec struct {
	Name         string              `json:"name"`
	Aliases      []string            `json:"aliases,omitempty"`
	Description  string              `json:"description,omitempty"`
	RequiredArgs int                 `json:"required_args"`
	Permission   string              `json:"permission,omitempty"`
	Channels     []types.ChannelKind `json:"channels"`
	Cooldown     time.Duration       `json:"cooldown"`
	Active       bool                `json:"active"`
	// Source is the definition file a command was loaded from. Built-in
	// commands leave it empty.
	Source string `json:"source,omitempty"`
}

// AllowsChannel reports whether the command may be invoked from kind.
func (s *Spec) AllowsChannel(kind types.ChannelKind) bool {
	return slices.Contains(s.Channels, kind)
}

// Names returns the lowercased primary name followed by every alias.
func (s *Spec) Names() []string {
	names := make([]string, 0, len(s.Aliases)+1)
	names = append(names, normalize(s.Name))
	for _, a := range s.Aliases {
		if n := normalize(a); n != "" && !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	return names
}

func (s Spec) clone() Spec {
	s.Aliases = slices.Clone(s.Aliases)
	s.Channels = slices.Clone(s.Channels)
	return s
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Handler runs a command after every gate has passed.
type Handler func(ctx context.Context, call *Call) error

// Enqueuer accepts outbound messages. *outbox.Outbox satisfies it.
type Enqueuer interface {
	Enqueue(msg *outbox.Message)
}

// Call is a single invocation of a command.
type Call struct {
	Spec    *Spec
	Channel types.ChannelKind
	User    *db.User
	Args    []string
	Out     Enqueuer
}

// Username returns the invoking user's name.
func (c *Call) Username() string {
	if c.User == nil {
		return ""
	}
	return c.User.Username
}

// Reply sends lines back on the channel the command came from. Whispers go
// to the invoking user.
func (c *Call) Reply(lines ...string) {
	if c.Out == nil || len(lines) == 0 {
		return
	}
	c.Out.Enqueue(outbox.NewMessage(c.Channel, lines...).To(c.Username()))
}

// Arg returns the i-th argument or "" when absent.
func (c *Call) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}
