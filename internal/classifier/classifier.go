// Package classifier turns raw server chat lines into (channel, sender, text)
// triples. Each server network formats chat differently, so rules are kept
// per dialect.
package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/blockmindJS/blockmind/internal/chat"
	"github.com/blockmindJS/blockmind/internal/types"
)

// ErrUnknownServer is returned by ForHost for a host without a dialect.
var ErrUnknownServer = errors.New("unknown server")

// Classified is a recognized player chat line.
type Classified struct {
	Channel types.ChannelKind
	Sender  string
	Text    string
}

// Classifier recognizes player chat in inbound events.
type Classifier interface {
	Classify(ev chat.Event) (Classified, bool)
}

// Func adapts a function into a Classifier.
type Func func(ev chat.Event) (Classified, bool)

func (f Func) Classify(ev chat.Event) (Classified, bool) { return f(ev) }

var (
	heartRe   = regexp.MustCompile(`❤\s?`)
	factionRe = regexp.MustCompile(`КЛАН:\s*(.+?):\s*(.*)`)
	vanillaRe = regexp.MustCompile(`^<([A-Za-z0-9_]{1,16})> (.*)$`)

	defaultPrivateRe   = regexp.MustCompile(`\[(.*?)\s+->\s+я\]\s+(.+)`)
	cheatminePrivateRe = regexp.MustCompile(`\[\*\] \[(.*?)\s+([^\[\]\s]+) -> я\] (.+)`)
)

const (
	localMarker   = "[ʟ]"
	globalMarker  = "[ɢ]"
	factionPrefix = "КЛАН:"
)

// Dialect holds the chat rules of one server network.
type Dialect struct {
	Host string
	// Arrow separates the sender decoration from the message body.
	Arrow string
	// Private matches an incoming private message; PrivateText is the
	// submatch index holding the message body.
	Private     *regexp.Regexp
	PrivateText int
	// PrivateNick is the submatch index holding the sender when the chat
	// component carries no click event. Zero means the last word of group 1.
	PrivateNick int
	// RawPrivate matches private messages against the uncleaned line and
	// only when it contains "я]".
	RawPrivate bool
}

var dialects = map[string]Dialect{
	"mc.mineblaze.net": {
		Host:        "mc.mineblaze.net",
		Arrow:       "→",
		Private:     defaultPrivateRe,
		PrivateText: 2,
	},
	"mc.masedworld.net": {
		Host:        "mc.masedworld.net",
		Arrow:       "⇨",
		Private:     defaultPrivateRe,
		PrivateText: 2,
	},
	"mc.cheatmine.net": {
		Host:        "mc.cheatmine.net",
		Arrow:       "⇨",
		Private:     cheatminePrivateRe,
		PrivateText: 3,
		PrivateNick: 2,
		RawPrivate:  true,
	},
}

// Hosts returns every host with a built-in dialect, sorted.
func Hosts() []string {
	out := make([]string, 0, len(dialects))
	for h := range dialects {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// ForHost returns the classifier for a server host. An empty host selects
// the vanilla "<name> text" format.
func ForHost(host string) (Classifier, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" || host == "vanilla" {
		return Func(Vanilla), nil
	}
	d, ok := dialects[host]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownServer, host, strings.Join(Hosts(), ", "))
	}
	return d, nil
}

// Classify applies the dialect's rules in order: private, local, global, faction.
func (d Dialect) Classify(ev chat.Event) (Classified, bool) {
	raw := eventText(ev)
	cleaned := strings.TrimSpace(heartRe.ReplaceAllString(raw, ""))

	if d.RawPrivate {
		if strings.Contains(raw, "я]") {
			if c, ok := d.private(raw, ev); ok {
				return c, true
			}
		}
	} else if c, ok := d.private(cleaned, ev); ok {
		return c, true
	}

	switch {
	case strings.Contains(cleaned, localMarker):
		return d.afterArrow(types.ChannelLocal, cleaned, ev)
	case strings.Contains(cleaned, globalMarker):
		return d.afterArrow(types.ChannelGlobal, cleaned, ev)
	case strings.HasPrefix(cleaned, factionPrefix):
		return faction(cleaned)
	}
	return Classified{}, false
}

func (d Dialect) private(text string, ev chat.Event) (Classified, bool) {
	m := d.Private.FindStringSubmatch(text)
	if m == nil || d.PrivateText >= len(m) {
		return Classified{}, false
	}
	nick := ev.Component.ClickUsername()
	if nick == "" {
		if d.PrivateNick > 0 && d.PrivateNick < len(m) {
			nick = m[d.PrivateNick]
		} else {
			nick = lastWord(m[1])
		}
	}
	if nick == "" {
		return Classified{}, false
	}
	return Classified{Channel: types.ChannelWhisper, Sender: nick, Text: strings.TrimSpace(m[d.PrivateText])}, true
}

func (d Dialect) afterArrow(kind types.ChannelKind, text string, ev chat.Event) (Classified, bool) {
	_, body, ok := strings.Cut(text, d.Arrow)
	if !ok {
		return Classified{}, false
	}
	nick := ev.Component.ClickUsername()
	if nick == "" {
		return Classified{}, false
	}
	return Classified{Channel: kind, Sender: nick, Text: strings.TrimSpace(body)}, true
}

func faction(text string) (Classified, bool) {
	m := factionRe.FindStringSubmatch(text)
	if m == nil {
		return Classified{}, false
	}
	nick := lastWord(m[1])
	if nick == "" {
		return Classified{}, false
	}
	return Classified{Channel: types.ChannelFaction, Sender: nick, Text: m[2]}, true
}

// Vanilla recognizes the stock "<name> message" chat format as local chat.
func Vanilla(ev chat.Event) (Classified, bool) {
	m := vanillaRe.FindStringSubmatch(strings.TrimSpace(eventText(ev)))
	if m == nil {
		return Classified{}, false
	}
	return Classified{Channel: types.ChannelLocal, Sender: m[1], Text: m[2]}, true
}

func eventText(ev chat.Event) string {
	if ev.RawText != "" {
		return ev.RawText
	}
	return ev.Component.PlainText()
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
