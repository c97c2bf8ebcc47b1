package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cofund/cofund/internal/shared"
)

// Repository provides PostgreSQL backed access to the identity directory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, role, parent_id, status, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Role, &u.ParentID, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUser returns one account by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("directory: user %d: %w", id, shared.ErrNotFound)
		}
		return User{}, err
	}
	return u, nil
}

// FindFirstActiveByRole returns any active holder of the role, or
// shared.ErrNotFound when the org chart has none.
func (r *Repository) FindFirstActiveByRole(ctx context.Context, role Role) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE role=$1 AND status=$2 ORDER BY id LIMIT 1`, role, StatusActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("directory: no active %s: %w", role, shared.ErrNotFound)
		}
		return User{}, err
	}
	return u, nil
}
