package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/blockmindJS/blockmind/internal/logging"
	"github.com/blockmindJS/blockmind/internal/types"
)

type RegistrySuite struct {
	suite.Suite
	reg *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.reg = NewRegistry(logging.Discard())
}

func noop(context.Context, *Call) error { return nil }

func (s *RegistrySuite) TestRegisterAndLookupCaseInsensitive() {
	require.NoError(s.T(), s.reg.Register(Spec{Name: "Online", Aliases: []string{"ON", "list"}}, noop))

	for _, name := range []string{"online", "ONLINE", "on", "List", " list "} {
		e, ok := s.reg.Lookup(name)
		require.True(s.T(), ok, name)
		require.Equal(s.T(), "Online", e.Spec.Name)
	}
	_, ok := s.reg.Lookup("missing")
	require.False(s.T(), ok)
}

func (s *RegistrySuite) TestRegisterValidation() {
	require.ErrorIs(s.T(), s.reg.Register(Spec{Name: " "}, noop), ErrInvalidSpec)
	require.ErrorIs(s.T(), s.reg.Register(Spec{Name: "x"}, nil), ErrInvalidSpec)
	require.ErrorIs(s.T(), s.reg.Register(Spec{Name: "x", RequiredArgs: -1}, noop), ErrInvalidSpec)
}

func (s *RegistrySuite) TestUnregisterRemovesEveryAlias() {
	require.NoError(s.T(), s.reg.Register(Spec{Name: "online", Aliases: []string{"on", "list"}}, noop))
	require.NoError(s.T(), s.reg.Register(Spec{Name: "ping"}, noop))

	require.Equal(s.T(), 1, s.reg.Unregister("LIST"))

	for _, name := range []string{"online", "on", "list"} {
		_, ok := s.reg.Lookup(name)
		require.False(s.T(), ok, name)
	}
	_, ok := s.reg.Lookup("ping")
	require.True(s.T(), ok)
	require.Zero(s.T(), s.reg.Unregister("online"))
}

func (s *RegistrySuite) TestUnregisterSeveral() {
	require.NoError(s.T(), s.reg.Register(Spec{Name: "a", Aliases: []string{"aa"}}, noop))
	require.NoError(s.T(), s.reg.Register(Spec{Name: "b"}, noop))

	require.Equal(s.T(), 2, s.reg.Unregister("aa", "a", "b", "c"))
	require.Empty(s.T(), s.reg.All())
}

func (s *RegistrySuite) TestAliasConflictRejectedAtomically() {
	require.NoError(s.T(), s.reg.Register(Spec{Name: "online", Aliases: []string{"on"}}, noop))

	err := s.reg.Register(Spec{Name: "onward", Aliases: []string{"fwd", "ON"}}, noop)
	require.ErrorIs(s.T(), err, ErrAliasConflict)

	_, ok := s.reg.Lookup("onward")
	require.False(s.T(), ok)
	_, ok = s.reg.Lookup("fwd")
	require.False(s.T(), ok)
	e, ok := s.reg.Lookup("on")
	require.True(s.T(), ok)
	require.Equal(s.T(), "online", e.Spec.Name)
}

func (s *RegistrySuite) TestReplaceSwapsSpecWholesale() {
	require.NoError(s.T(), s.reg.Register(Spec{Name: "online", Aliases: []string{"on", "list"}, Active: true}, noop))
	before, _ := s.reg.Lookup("online")

	require.NoError(s.T(), s.reg.Register(Spec{Name: "online", Aliases: []string{"who"}}, noop))

	_, ok := s.reg.Lookup("on")
	require.False(s.T(), ok)
	after, ok := s.reg.Lookup("who")
	require.True(s.T(), ok)
	require.False(s.T(), after.Spec.Active)
	require.True(s.T(), before.Spec.Active, "earlier snapshot must stay intact")
	require.Len(s.T(), s.reg.All(), 1)
}

func (s *RegistrySuite) TestRegisterCopiesSlices() {
	aliases := []string{"on"}
	channels := []types.ChannelKind{types.ChannelLocal}
	require.NoError(s.T(), s.reg.Register(Spec{Name: "online", Aliases: aliases, Channels: channels}, noop))
	aliases[0] = "changed"
	channels[0] = types.ChannelGlobal

	e, _ := s.reg.Lookup("online")
	require.Equal(s.T(), []string{"on"}, e.Spec.Aliases)
	require.True(s.T(), e.Spec.AllowsChannel(types.ChannelLocal))
}

func (s *RegistrySuite) TestAllSorted() {
	for _, n := range []string{"zeta", "alpha", "mid"} {
		require.NoError(s.T(), s.reg.Register(Spec{Name: n}, noop))
	}
	var names []string
	for _, e := range s.reg.All() {
		names = append(names, e.Spec.Name)
	}
	require.Equal(s.T(), []string{"alpha", "mid", "zeta"}, names)
}

func (s *RegistrySuite) TestUpdate() {
	require.NoError(s.T(), s.reg.Register(Spec{Name: "ping", Active: true}, noop))
	old, _ := s.reg.Lookup("ping")

	spec, err := s.reg.Update("PING", func(sp Spec) Spec {
		sp.Active = false
		return sp
	})
	require.NoError(s.T(), err)
	require.False(s.T(), spec.Active)
	require.True(s.T(), old.Spec.Active)

	_, err = s.reg.Update("missing", func(sp Spec) Spec { return sp })
	require.ErrorIs(s.T(), err, ErrUnknownCommand)

	_, err = s.reg.Update("ping", func(sp Spec) Spec {
		sp.Name = "pong"
		return sp
	})
	require.ErrorIs(s.T(), err, ErrInvalidSpec)
}

func (s *RegistrySuite) TestUpdateKeepsSource() {
	require.NoError(s.T(), s.reg.Register(Spec{Name: "greet", Source: "/cmds/fun.json"}, noop))

	spec, err := s.reg.Update("greet", func(sp Spec) Spec {
		sp.Cooldown = time.Minute
		return sp
	})
	require.NoError(s.T(), err)
	require.Equal(s.T(), "/cmds/fun.json", spec.Source)
}

func (s *RegistrySuite) TestCooldown() {
	require.NoError(s.T(), s.reg.Register(Spec{Name: "tp", Aliases: []string{"tpa"}, Cooldown: 10 * time.Second}, noop))

	window, ok := s.reg.Cooldown("TPA")
	require.True(s.T(), ok)
	require.Equal(s.T(), 10*time.Second, window)

	_, ok = s.reg.Cooldown("missing")
	require.False(s.T(), ok)
}

func (s *RegistrySuite) TestSpecNamesDeduplicated() {
	spec := Spec{Name: "Ping", Aliases: []string{"ping", "P", "", "p"}}
	require.Equal(s.T(), []string{"ping", "p"}, spec.Names())
}
