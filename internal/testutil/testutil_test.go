package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/blockmindJS/blockmind/internal/chat"
	"github.com/blockmindJS/blockmind/internal/db"
)

type TestutilSuite struct {
	suite.Suite
	ctx context.Context
}

func TestTestutilSuite(t *testing.T) {
	suite.Run(t, new(TestutilSuite))
}

func (s *TestutilSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *TestutilSuite) TestFakeTransportRecordsAndFails() {
	tr := NewFakeTransport()
	boom := errors.New("boom")
	tr.FailOn("bad", boom)

	require.NoError(s.T(), tr.Send(s.ctx, "good"))
	require.ErrorIs(s.T(), tr.Send(s.ctx, "bad"), boom)
	require.Equal(s.T(), []string{"good", "bad"}, tr.Lines())
}

func (s *TestutilSuite) TestFakeTransportEmit() {
	tr := NewFakeTransport()
	var got []string
	unsubscribe := tr.Subscribe(func(ev chat.Event) { got = append(got, ev.RawText) })
	require.Equal(s.T(), 1, tr.Subscribers())

	tr.EmitText("hello")
	unsubscribe()
	tr.EmitText("ignored")

	require.Equal(s.T(), []string{"hello"}, got)
	require.Zero(s.T(), tr.Subscribers())
}

func (s *TestutilSuite) TestFakeTransportOnSend() {
	tr := NewFakeTransport()
	var hooked string
	tr.OnSend(func(line string) { hooked = line })
	require.NoError(s.T(), tr.Send(s.ctx, "/list"))
	require.Equal(s.T(), "/list", hooked)
}

func (s *TestutilSuite) TestMockStore() {
	store := new(MockStore)
	user := &db.User{Username: "Steve"}
	store.On("GetUser", s.ctx, "Steve").Return(user, nil)
	store.On("GetUser", s.ctx, "ghost").Return(nil, errors.New("down"))
	store.On("SetBlacklist", s.ctx, "Steve", true).Return(nil)
	store.On("ListBlacklisted", s.ctx).Return([]string{"Steve"}, nil)
	store.On("ListGroups", s.ctx).Return(nil, errors.New("down"))
	store.On("EnsureGroup", s.ctx, "admin").Return(nil)
	store.On("AddUserToGroup", s.ctx, "Steve", "admin").Return(nil)
	store.On("RemoveUserFromGroup", s.ctx, "Steve", "admin").Return(nil)
	store.On("GrantPermission", s.ctx, "admin", "admin.*").Return(nil)
	store.On("RevokePermission", s.ctx, "admin", "admin.*").Return(nil)
	store.On("Close").Return(nil)

	got, err := store.GetUser(s.ctx, "Steve")
	require.NoError(s.T(), err)
	require.Same(s.T(), user, got)
	_, err = store.GetUser(s.ctx, "ghost")
	require.Error(s.T(), err)
	require.NoError(s.T(), store.SetBlacklist(s.ctx, "Steve", true))
	names, err := store.ListBlacklisted(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), []string{"Steve"}, names)
	_, err = store.ListGroups(s.ctx)
	require.Error(s.T(), err)
	require.NoError(s.T(), store.EnsureGroup(s.ctx, "admin"))
	require.NoError(s.T(), store.AddUserToGroup(s.ctx, "Steve", "admin"))
	require.NoError(s.T(), store.RemoveUserFromGroup(s.ctx, "Steve", "admin"))
	require.NoError(s.T(), store.GrantPermission(s.ctx, "admin", "admin.*"))
	require.NoError(s.T(), store.RevokePermission(s.ctx, "admin", "admin.*"))
	require.NoError(s.T(), store.Close())
	store.AssertExpectations(s.T())
}
