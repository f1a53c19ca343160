package db

import (
	"time"

	"github.com/blockmindJS/blockmind/internal/permission"
)

// User is a player known to the bot. Permissions is the union of every
// permission held by the user's groups.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Blacklisted bool      `json:"blacklisted"`
	Groups      []string  `json:"groups"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PermissionSet returns the user's permissions as a lookup set.
func (u *User) PermissionSet() permission.Set {
	if u == nil {
		return permission.NewSet()
	}
	return permission.NewSet(u.Permissions...)
}

// InGroup reports whether the user belongs to the named group.
func (u *User) InGroup(name string) bool {
	if u == nil {
		return false
	}
	for _, g := range u.Groups {
		if g == name {
			return true
		}
	}
	return false
}

// Group bundles permissions granted to its members.
type Group struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}
