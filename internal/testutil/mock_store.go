package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/blockmindJS/blockmind/internal/db"
)

// MockStore implements the db.Store interface for testing.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetUser(ctx context.Context, username string) (*db.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.User), args.Error(1)
}

func (m *MockStore) SetBlacklist(ctx context.Context, username string, blacklisted bool) error {
	return m.Called(ctx, username, blacklisted).Error(0)
}

func (m *MockStore) ListBlacklisted(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) EnsureGroup(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockStore) ListGroups(ctx context.Context) ([]*db.Group, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*db.Group), args.Error(1)
}

func (m *MockStore) AddUserToGroup(ctx context.Context, username, group string) error {
	return m.Called(ctx, username, group).Error(0)
}

func (m *MockStore) RemoveUserFromGroup(ctx context.Context, username, group string) error {
	return m.Called(ctx, username, group).Error(0)
}

func (m *MockStore) GrantPermission(ctx context.Context, group, perm string) error {
	return m.Called(ctx, group, perm).Error(0)
}

func (m *MockStore) RevokePermission(ctx context.Context, group, perm string) error {
	return m.Called(ctx, group, perm).Error(0)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}

var _ db.Store = (*MockStore)(nil)
