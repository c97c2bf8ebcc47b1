package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cofund/cofund/internal/shared"
)

// Repository provides PostgreSQL backed access to the product registry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProduct returns one product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, creator_id, factory_id, crowdfunding_status, created_at, updated_at
FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.CreatorID, &p.FactoryID, &p.CrowdfundingStatus, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("products: product %d: %w", id, shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}
