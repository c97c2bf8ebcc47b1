package periods

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cofund/cofund/internal/platform/db"
	"github.com/cofund/cofund/internal/shared"
)

// Repository describes persistence operations used by the Service.
type Repository interface {
	FindByYearWeek(ctx context.Context, year, week int) (Period, error)
	GetByID(ctx context.Context, id int64) (Period, error)
	List(ctx context.Context, limit, offset int) ([]Period, int, error)
	OpenWeek(ctx context.Context, period Period) (Period, error)
	RepointInProgressCampaigns(ctx context.Context, periodID int64) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const periodColumns = `id, number, year, week_of_year, start_at, end_at, status, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Number, &p.Year, &p.WeekOfYear, &p.StartAt, &p.EndAt, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// FindByYearWeek returns the period covering (year, week).
func (r *PGRepository) FindByYearWeek(ctx context.Context, year, week int) (Period, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx,
		`SELECT `+periodColumns+` FROM periods WHERE year=$1 AND week_of_year=$2`, year, week))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, fmt.Errorf("periods: week %d/%d: %w", year, week, shared.ErrNotFound)
		}
		return Period{}, err
	}
	return p, nil
}

// GetByID returns one period.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (Period, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx,
		`SELECT `+periodColumns+` FROM periods WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, fmt.Errorf("periods: period %d: %w", id, shared.ErrNotFound)
		}
		return Period{}, err
	}
	return p, nil
}

// List returns periods newest first plus the total count.
func (r *PGRepository) List(ctx context.Context, limit, offset int) ([]Period, int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+periodColumns+` FROM periods ORDER BY number DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM periods`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// OpenWeek atomically closes the active period and opens a new one
// numbered one past the current maximum. A concurrent opener losing the
// (year, week) uniqueness race gets shared.ErrConflict and must re-read
// the winner's row.
func (r *PGRepository) OpenWeek(ctx context.Context, period Period) (Period, error) {
	created := period
	created.Status = StatusActive
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM periods`).Scan(&created.Number); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE periods SET status=$1, updated_at=NOW() WHERE status=$2`,
			StatusClosed, StatusActive); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `INSERT INTO periods (number, year, week_of_year, start_at, end_at, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING id, created_at, updated_at`,
			created.Number, created.Year, created.WeekOfYear, created.StartAt, created.EndAt, created.Status).
			Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Period{}, fmt.Errorf("periods: week %d/%d already opened: %w", created.Year, created.WeekOfYear, shared.ErrConflict)
		}
		return Period{}, err
	}
	return created, nil
}

// RepointInProgressCampaigns moves all in-flight campaigns to the period.
func (r *PGRepository) RepointInProgressCampaigns(ctx context.Context, periodID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET current_period_id=$1, updated_at=NOW() WHERE status='in_progress'`, periodID)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
