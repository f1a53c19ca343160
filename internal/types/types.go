package types

import "strings"

// ChannelKind names a class of chat destination (or source) on the game server.
type ChannelKind string

const (
	ChannelLocal   ChannelKind = "local"
	ChannelGlobal  ChannelKind = "global"
	ChannelWhisper ChannelKind = "whisper"
	ChannelFaction ChannelKind = "faction"
	// ChannelCommand is outbound only: the line is sent verbatim, e.g. "/list".
	ChannelCommand ChannelKind = "command"
)

// ChatKinds are the kinds an inbound chat line can be classified as.
var ChatKinds = []ChannelKind{ChannelLocal, ChannelGlobal, ChannelWhisper, ChannelFaction}

// ParseChannelKind normalizes s into a ChannelKind. Legacy names used by older
// deployments ("private", "clan") are mapped onto their current kinds.
func ParseChannelKind(s string) ChannelKind {
	switch k := strings.ToLower(strings.TrimSpace(s)); k {
	case "private", "msg":
		return ChannelWhisper
	case "clan":
		return ChannelFaction
	default:
		return ChannelKind(k)
	}
}

// TruncateString collapses newlines and truncates s to maxLen characters,
// appending "..." if truncated.
func TruncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
