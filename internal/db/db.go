package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

// ErrGroupNotFound is returned when an operation names a group that does not exist.
var ErrGroupNotFound = errors.New("group not found")

// Store defines all database operations.
type Store interface {
	// GetUser returns the user, creating a record on first lookup.
	GetUser(ctx context.Context, username string) (*User, error)
	SetBlacklist(ctx context.Context, username string, blacklisted bool) error
	ListBlacklisted(ctx context.Context) ([]string, error)
	EnsureGroup(ctx context.Context, name string) error
	ListGroups(ctx context.Context) ([]*Group, error)
	AddUserToGroup(ctx context.Context, username, group string) error
	RemoveUserFromGroup(ctx context.Context, username, group string) error
	GrantPermission(ctx context.Context, group, perm string) error
	RevokePermission(ctx context.Context, group, perm string) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// sqlOpenFunc is a package-level variable to allow testing sql.Open failures.
var sqlOpenFunc = sql.Open

// NewSQLiteStore opens a SQLite database and returns a new SQLiteStore.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sqlOpenFunc("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := initDB(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &SQLiteStore{db: sqlDB}, nil
}

// initDB configures pragmas and runs migrations on an open database connection.
func initDB(sqlDB *sql.DB) error {
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := RunMigrations(context.Background(), sqlDB); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// NewSQLiteStoreFromDB creates a SQLiteStore from an existing *sql.DB connection.
func NewSQLiteStoreFromDB(sqlDB *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: sqlDB}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*User, error) {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, blacklist, created_at, updated_at) VALUES (?, 0, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		username, now, now,
	); err != nil {
		return nil, fmt.Errorf("creating user %q: %w", username, err)
	}

	u := &User{}
	var blacklist int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, blacklist, created_at, updated_at FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &blacklist, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("loading user %q: %w", username, err)
	}
	u.Blacklisted = blacklist == 1

	if u.Groups, err = s.queryStrings(ctx,
		`SELECT g.name FROM groups g
		 JOIN user_groups ug ON ug.group_id = g.id
		 WHERE ug.user_id = ? ORDER BY g.name`, u.ID); err != nil {
		return nil, fmt.Errorf("loading groups for %q: %w", username, err)
	}
	if u.Permissions, err = s.queryStrings(ctx,
		`SELECT DISTINCT p.name FROM permissions p
		 JOIN group_permissions gp ON gp.permission_id = p.id
		 JOIN user_groups ug ON ug.group_id = gp.group_id
		 WHERE ug.user_id = ? ORDER BY p.name`, u.ID); err != nil {
		return nil, fmt.Errorf("loading permissions for %q: %w", username, err)
	}
	return u, nil
}

func (s *SQLiteStore) SetBlacklist(ctx context.Context, username string, blacklisted bool) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, blacklist, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET
		   blacklist = excluded.blacklist,
		   updated_at = excluded.updated_at`,
		username, boolToInt(blacklisted), now, now,
	)
	return err
}

func (s *SQLiteStore) ListBlacklisted(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT username FROM users WHERE blacklist = 1 ORDER BY username`)
}

func (s *SQLiteStore) EnsureGroup(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.name, COALESCE(p.name, '') FROM groups g
		 LEFT JOIN group_permissions gp ON gp.group_id = g.id
		 LEFT JOIN permissions p ON p.id = gp.permission_id
		 ORDER BY g.name, p.name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*Group)
	var groups []*Group
	for rows.Next() {
		var id int64
		var name, perm string
		if err := rows.Scan(&id, &name, &perm); err != nil {
			return nil, err
		}
		g, ok := byName[name]
		if !ok {
			g = &Group{ID: id, Name: name}
			byName[name] = g
			groups = append(groups, g)
		}
		if perm != "" {
			g.Permissions = append(g.Permissions, perm)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

func (s *SQLiteStore) AddUserToGroup(ctx context.Context, username, group string) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, blacklist, created_at, updated_at) VALUES (?, 0, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		username, now, now,
	); err != nil {
		return fmt.Errorf("creating user %q: %w", username, err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_groups (user_id, group_id)
		 SELECT u.id, g.id FROM users u, groups g WHERE u.username = ? AND g.name = ?`,
		username, group,
	)
	if err != nil {
		return fmt.Errorf("adding %q to %q: %w", username, group, err)
	}
	return s.requireGroupIfUnchanged(ctx, result, group)
}

func (s *SQLiteStore) RemoveUserFromGroup(ctx context.Context, username, group string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_groups
		 WHERE user_id = (SELECT id FROM users WHERE username = ?)
		   AND group_id = (SELECT id FROM groups WHERE name = ?)`,
		username, group,
	)
	return err
}

func (s *SQLiteStore) GrantPermission(ctx context.Context, group, perm string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO permissions (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, perm,
	); err != nil {
		return fmt.Errorf("creating permission %q: %w", perm, err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_permissions (group_id, permission_id)
		 SELECT g.id, p.id FROM groups g, permissions p WHERE g.name = ? AND p.name = ?`,
		group, perm,
	)
	if err != nil {
		return fmt.Errorf("granting %q to %q: %w", perm, group, err)
	}
	return s.requireGroupIfUnchanged(ctx, result, group)
}

func (s *SQLiteStore) RevokePermission(ctx context.Context, group, perm string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM group_permissions
		 WHERE group_id = (SELECT id FROM groups WHERE name = ?)
		   AND permission_id = (SELECT id FROM permissions WHERE name = ?)`,
		group, perm,
	)
	return err
}

// requireGroupIfUnchanged distinguishes "already present" from "no such
// group" when an INSERT OR IGNORE affected no rows.
func (s *SQLiteStore) requireGroupIfUnchanged(ctx context.Context, result sql.Result, group string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM groups WHERE name = ?`, group).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %q", ErrGroupNotFound, group)
	}
	return nil
}

func (s *SQLiteStore) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Seed makes sure every configured group exists with its permissions and
// that the listed members belong to it. Existing grants are left alone.
func Seed(ctx context.Context, store Store, groups map[string][]string, members map[string][]string) error {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	for name := range members {
		if _, ok := groups[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := store.EnsureGroup(ctx, name); err != nil {
			return fmt.Errorf("seeding group %q: %w", name, err)
		}
		for _, perm := range groups[name] {
			if err := store.GrantPermission(ctx, name, perm); err != nil {
				return fmt.Errorf("seeding permission %q for %q: %w", perm, name, err)
			}
		}
		for _, user := range members[name] {
			if err := store.AddUserToGroup(ctx, user, name); err != nil {
				return fmt.Errorf("seeding member %q of %q: %w", user, name, err)
			}
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
