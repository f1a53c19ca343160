package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/blockmindJS/blockmind/internal/chat"
	"github.com/blockmindJS/blockmind/internal/types"
)

type ClassifierSuite struct {
	suite.Suite
}

func TestClassifierSuite(t *testing.T) {
	suite.Run(t, new(ClassifierSuite))
}

func clicked(text, nick string) chat.Event {
	return chat.Event{
		RawText: text,
		Component: &chat.Component{
			Extra: []*chat.Component{
				{Text: "[rank] "},
				{Text: nick, ClickEvent: &chat.ClickEvent{Action: "suggest_command", Value: "/msg " + nick + " "}},
				{Text: text},
			},
		},
	}
}

func (s *ClassifierSuite) classify(host string, ev chat.Event) (Classified, bool) {
	c, err := ForHost(host)
	require.NoError(s.T(), err)
	return c.Classify(ev)
}

func (s *ClassifierSuite) TestLocal() {
	got, ok := s.classify("mc.mineblaze.net", clicked("[ʟ] [Игрок] Steve → @ping now", "Steve"))
	require.True(s.T(), ok)
	require.Equal(s.T(), Classified{Channel: types.ChannelLocal, Sender: "Steve", Text: "@ping now"}, got)
}

func (s *ClassifierSuite) TestGlobalUsesDialectArrow() {
	got, ok := s.classify("mc.masedworld.net", clicked("[ɢ] Steve ⇨ hello", "Steve"))
	require.True(s.T(), ok)
	require.Equal(s.T(), types.ChannelGlobal, got.Channel)
	require.Equal(s.T(), "hello", got.Text)

	_, ok = s.classify("mc.masedworld.net", clicked("[ɢ] Steve → hello", "Steve"))
	require.False(s.T(), ok, "wrong arrow for dialect")
}

func (s *ClassifierSuite) TestLocalNeedsClickEvent() {
	_, ok := s.classify("mc.mineblaze.net", chat.Event{RawText: "[ʟ] Steve → hi"})
	require.False(s.T(), ok)
}

func (s *ClassifierSuite) TestPrivate() {
	got, ok := s.classify("mc.mineblaze.net", clicked("[Steve -> я] @help me", "Steve"))
	require.True(s.T(), ok)
	require.Equal(s.T(), Classified{Channel: types.ChannelWhisper, Sender: "Steve", Text: "@help me"}, got)
}

func (s *ClassifierSuite) TestPrivateHeartStrippedAndNickFallback() {
	got, ok := s.classify("mc.mineblaze.net", chat.Event{RawText: "❤ [VIP Steve -> я] hi"})
	require.True(s.T(), ok)
	require.Equal(s.T(), "Steve", got.Sender)
	require.Equal(s.T(), "hi", got.Text)
}

func (s *ClassifierSuite) TestCheatminePrivate() {
	got, ok := s.classify("mc.cheatmine.net", chat.Event{RawText: "[*] [Игрок Steve -> я] @ping"})
	require.True(s.T(), ok)
	require.Equal(s.T(), Classified{Channel: types.ChannelWhisper, Sender: "Steve", Text: "@ping"}, got)

	got, ok = s.classify("mc.cheatmine.net", clicked("[*] [Игрок Steve -> я] @ping", "Alex"))
	require.True(s.T(), ok)
	require.Equal(s.T(), "Alex", got.Sender, "click event wins")
}

func (s *ClassifierSuite) TestCheatmineLocal() {
	got, ok := s.classify("mc.cheatmine.net", clicked("[ʟ] Steve ⇨ @ping", "Steve"))
	require.True(s.T(), ok)
	require.Equal(s.T(), types.ChannelLocal, got.Channel)
}

func (s *ClassifierSuite) TestFaction() {
	got, ok := s.classify("mc.masedworld.net", chat.Event{RawText: "КЛАН: [Рыцарь] Steve: @online"})
	require.True(s.T(), ok)
	require.Equal(s.T(), Classified{Channel: types.ChannelFaction, Sender: "Steve", Text: "@online"}, got)
}

func (s *ClassifierSuite) TestUnrecognized() {
	for _, text := range []string{"Welcome to the server!", "", "КЛАН без двоеточия"} {
		_, ok := s.classify("mc.mineblaze.net", chat.Event{RawText: text})
		require.False(s.T(), ok, text)
	}
}

func (s *ClassifierSuite) TestTextFromComponent() {
	ev := clicked("", "Steve")
	ev.Component.Extra[2].Text = "[ʟ] Steve → @ping"
	ev.Component.Extra[0].Text = ""
	ev.Component.Extra[1].Text = ""
	got, ok := s.classify("mc.mineblaze.net", ev)
	require.True(s.T(), ok)
	require.Equal(s.T(), "@ping", got.Text)
}

func (s *ClassifierSuite) TestVanilla() {
	got, ok := s.classify("", chat.Event{RawText: "<Steve> @ping"})
	require.True(s.T(), ok)
	require.Equal(s.T(), Classified{Channel: types.ChannelLocal, Sender: "Steve", Text: "@ping"}, got)

	_, ok = s.classify("vanilla", chat.Event{RawText: "Steve joined the game"})
	require.False(s.T(), ok)
}

func (s *ClassifierSuite) TestForHost() {
	_, err := ForHost("  MC.MineBlaze.net ")
	require.NoError(s.T(), err)

	_, err = ForHost("example.org")
	require.ErrorIs(s.T(), err, ErrUnknownServer)
	require.Contains(s.T(), err.Error(), "mc.cheatmine.net")

	require.Equal(s.T(), []string{"mc.cheatmine.net", "mc.masedworld.net", "mc.mineblaze.net"}, Hosts())
}

func (s *ClassifierSuite) TestFunc() {
	f := Func(func(chat.Event) (Classified, bool) { return Classified{Sender: "x"}, true })
	got, ok := f.Classify(chat.Event{})
	require.True(s.T(), ok)
	require.Equal(s.T(), "x", got.Sender)
}
