// Package registry is the narrow view of the external user service this core
// consumes: an existence check, used only during account creation.
package registry

import (
	"context"
	"database/sql"
	"fmt"
)

type UserRegistry interface {
	// Exists reports whether a user with the given id is known.
	Exists(ctx context.Context, userID int64) (bool, error)
}

// PostgresUserRegistry checks the users table owned by the user service.
type PostgresUserRegistry struct {
	db *sql.DB
}

func NewPostgresUserRegistry(db *sql.DB) *PostgresUserRegistry {
	return &PostgresUserRegistry{db: db}
}

func (r *PostgresUserRegistry) Exists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

// StaticUserRegistry answers from a fixed set of user ids. Used in tests and
// in development mode where no user service is running.
type StaticUserRegistry struct {
	users map[int64]bool
}

func NewStaticUserRegistry(userIDs ...int64) *StaticUserRegistry {
	users := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		users[id] = true
	}
	return &StaticUserRegistry{users: users}
}

func (r *StaticUserRegistry) Exists(ctx context.Context, userID int64) (bool, error) {
	return r.users[userID], nil
}
