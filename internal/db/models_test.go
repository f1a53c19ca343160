package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ModelsSuite struct {
	suite.Suite
}

func TestModelsSuite(t *testing.T) {
	suite.Run(t, new(ModelsSuite))
}

func (s *ModelsSuite) TestPermissionSet() {
	u := &User{Permissions: []string{"admin.*", "user.say"}}
	set := u.PermissionSet()
	require.True(s.T(), set.Contains("admin.*"))
	require.True(s.T(), set.Contains("user.say"))
	require.False(s.T(), set.Contains("user.kick"))
}

func (s *ModelsSuite) TestPermissionSetNilUser() {
	var u *User
	require.Empty(s.T(), u.PermissionSet())
}

func (s *ModelsSuite) TestInGroup() {
	u := &User{Groups: []string{"admin", "vip"}}
	require.True(s.T(), u.InGroup("vip"))
	require.False(s.T(), u.InGroup("mod"))

	var nilUser *User
	require.False(s.T(), nilUser.InGroup("admin"))
}
