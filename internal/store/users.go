package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// User is the identity row used to resolve catalog ownership.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Active       bool
}

// OwnerID returns the user id in the form prompt rows carry.
func (u User) OwnerID() string {
	return strconv.FormatInt(u.ID, 10)
}

// UserByUsername looks up a user by login name.
func (s *SQLStore) UserByUsername(ctx context.Context, username string) (User, error) {
	row := s.queryRow(ctx, `SELECT id, username, COALESCE(password, ''), is_active FROM users WHERE username = ?`, username)
	return scanUser(row, "user "+username)
}

// UserByID looks up a user by id.
func (s *SQLStore) UserByID(ctx context.Context, id int64) (User, error) {
	row := s.queryRow(ctx, `SELECT id, username, COALESCE(password, ''), is_active FROM users WHERE id = ?`, id)
	return scanUser(row, fmt.Sprintf("user %d", id))
}

func scanUser(row *sql.Row, what string) (User, error) {
	var (
		u      User
		active any
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return u, fmt.Errorf("load %s: %w", what, err)
	}
	u.Active = active == nil || asBool(active)
	return u, nil
}
