package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockmindJS/blockmind/internal/types"
)

func TestOverrideApply(t *testing.T) {
	args := 1
	perm := "user.online"
	cooldown := int64(30000)
	active := false
	o := Override{
		Aliases:      []string{"who"},
		RequiredArgs: &args,
		Permission:   &perm,
		Channels:     []string{"global", "private"},
		CooldownMs:   &cooldown,
		Active:       &active,
	}
	require.False(t, o.Empty())

	base := Spec{Name: "online", Aliases: []string{"онлайн"}, Cooldown: 10 * time.Second, Active: true}
	got := o.Apply(base)
	require.Equal(t, "online", got.Name)
	require.Equal(t, []string{"who"}, got.Aliases)
	require.Equal(t, 1, got.RequiredArgs)
	require.Equal(t, "user.online", got.Permission)
	require.Equal(t, []types.ChannelKind{types.ChannelGlobal, types.ChannelWhisper}, got.Channels)
	require.Equal(t, 30*time.Second, got.Cooldown)
	require.False(t, got.Active)

	require.Equal(t, []string{"онлайн"}, base.Aliases)
}

func TestOverrideEmptyKeepsSpec(t *testing.T) {
	o := Override{}
	require.True(t, o.Empty())

	base := Spec{Name: "ping", Cooldown: 3 * time.Second, Active: true}
	require.Equal(t, base, o.Apply(base))
}
