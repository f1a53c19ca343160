package outbox

import (
	"strings"
	"time"

	"github.com/blockmindJS/blockmind/internal/types"
)

// TargetPlaceholder is replaced with the message's target user when framing.
const TargetPlaceholder = "{target}"

// DefaultPace applies to kinds registered without a pace.
const DefaultPace = 4 * time.Second

// Kind describes how lines for a channel kind are framed and paced.
type Kind struct {
	Name     types.ChannelKind `json:"name"`
	Template string            `json:"template"`
	Pace     time.Duration     `json:"pace"`
}

// Frame renders a body line for this kind.
func (k Kind) Frame(line, target string) string {
	return strings.ReplaceAll(k.Template, TargetPlaceholder, target) + line
}

// DefaultKinds returns the channel kinds every deployment starts with.
func DefaultKinds() []Kind {
	return []Kind{
		{Name: types.ChannelCommand, Template: "", Pace: 400 * time.Millisecond},
		{Name: types.ChannelGlobal, Template: "!", Pace: 4 * time.Second},
		{Name: types.ChannelLocal, Template: "", Pace: 4 * time.Second},
		{Name: types.ChannelWhisper, Template: "/msg " + TargetPlaceholder + " ", Pace: 4 * time.Second},
		{Name: types.ChannelFaction, Template: "/cc ", Pace: 355 * time.Millisecond},
	}
}
