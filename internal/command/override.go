package command

import (
	"time"

	"github.com/blockmindJS/blockmind/internal/types"
)

// Override adjusts selected fields of a Spec. Nil fields keep the current
// value. It is the shape of both config.json command overrides and admin
// API patches.
type Override struct {
	Aliases      []string `json:"aliases"`
	RequiredArgs *int     `json:"required_args"`
	Permission   *string  `json:"permission"`
	Channels     []string `json:"channels"`
	CooldownMs   *int64   `json:"cooldown_ms"`
	Active       *bool    `json:"active"`
}

// Empty reports whether the override changes nothing.
func (o Override) Empty() bool {
	return o.Aliases == nil && o.RequiredArgs == nil && o.Permission == nil &&
		o.Channels == nil && o.CooldownMs == nil && o.Active == nil
}

// Apply returns spec with the override's fields applied.
func (o Override) Apply(spec Spec) Spec {
	if o.Aliases != nil {
		spec.Aliases = o.Aliases
	}
	if o.RequiredArgs != nil {
		spec.RequiredArgs = *o.RequiredArgs
	}
	if o.Permission != nil {
		spec.Permission = *o.Permission
	}
	if o.Channels != nil {
		spec.Channels = make([]types.ChannelKind, 0, len(o.Channels))
		for _, c := range o.Channels {
			spec.Channels = append(spec.Channels, types.ParseChannelKind(c))
		}
	}
	if o.CooldownMs != nil {
		spec.Cooldown = time.Duration(*o.CooldownMs) * time.Millisecond
	}
	if o.Active != nil {
		spec.Active = *o.Active
	}
	return spec
}
