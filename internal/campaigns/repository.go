package campaigns

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cofund/cofund/internal/platform/db"
	"github.com/cofund/cofund/internal/products"
	"github.com/cofund/cofund/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListFilter narrows campaign listings.
type ListFilter struct {
	Title     string
	Status    Status
	PeriodID  int64
	CreatorID int64
	Limit     int
	Offset    int
}

// ContributionDetail is a contribution joined with display fields of the
// contributor.
type ContributionDetail struct {
	Contribution
	ContributorName string
	ContributorRole string
}

const campaignColumns = `id, product_id, title, description, target_amount, min_contribution, total_amount,
status, deadline, start_period_id, current_period_id, creator_id, winner_id,
succeeded_at, cancelled_at, cancelled_by, failed_at, failed_by, created_at, updated_at`

func scanCampaign(row pgx.Row) (Campaign, error) {
	var c Campaign
	err := row.Scan(&c.ID, &c.ProductID, &c.Title, &c.Description, &c.TargetAmount, &c.MinContribution,
		&c.TotalAmount, &c.Status, &c.Deadline, &c.StartPeriodID, &c.CurrentPeriodID, &c.CreatorID,
		&c.WinnerID, &c.SucceededAt, &c.CancelledAt, &c.CancelledBy, &c.FailedAt, &c.FailedBy,
		&c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetCampaign returns one campaign.
func (r *Repository) GetCampaign(ctx context.Context, id int64) (Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, fmt.Errorf("campaigns: campaign %d: %w", id, shared.ErrNotFound)
		}
		return Campaign{}, err
	}
	return c, nil
}

// ListCampaigns returns filtered campaigns newest first plus the total count.
func (r *Repository) ListCampaigns(ctx context.Context, filter ListFilter) ([]Campaign, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if filter.Title != "" {
		add("title ILIKE ", "%"+filter.Title+"%")
	}
	if filter.Status != "" {
		add("status=", filter.Status)
	}
	if filter.PeriodID != 0 {
		add("current_period_id=", filter.PeriodID)
	}
	if filter.CreatorID != 0 {
		add("creator_id=", filter.CreatorID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListContributions returns contributions on a campaign newest first,
// with contributor display fields resolved.
func (r *Repository) ListContributions(ctx context.Context, campaignID int64) ([]ContributionDetail, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.id, c.campaign_id, c.contributor_id, c.amount, c.kind, c.period_id, c.created_at,
u.username, u.role
FROM contributions c JOIN users u ON u.id = c.contributor_id
WHERE c.campaign_id=$1 ORDER BY c.created_at DESC, c.id DESC`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []ContributionDetail
	for rows.Next() {
		var d ContributionDetail
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.ContributorID, &d.Amount, &d.Kind, &d.PeriodID,
			&d.CreatedAt, &d.ContributorName, &d.ContributorRole); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// CountContributions returns the number of ledger entries on a campaign.
func (r *Repository) CountContributions(ctx context.Context, campaignID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contributions WHERE campaign_id=$1`, campaignID).Scan(&n)
	return n, err
}

const supplierContributionQuery = `SELECT c.contributor_id, u.role, u.parent_id, c.amount,
COALESCE(p.username, u.username)
FROM contributions c
JOIN users u ON u.id = c.contributor_id
LEFT JOIN users p ON p.id = u.parent_id AND u.role = 'supplier_sub'
WHERE c.campaign_id=$1 AND u.role IN ('supplier', 'supplier_sub')
ORDER BY c.created_at ASC, c.id ASC`

func collectSupplierContributions(rows pgx.Rows) ([]SupplierContribution, error) {
	defer rows.Close()
	var list []SupplierContribution
	for rows.Next() {
		var sc SupplierContribution
		if err := rows.Scan(&sc.ContributorID, &sc.Role, &sc.ParentID, &sc.Amount, &sc.OwnerName); err != nil {
			return nil, err
		}
		list = append(list, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// ListSupplierContributions returns supplier-family contributions in
// posting order, with the owning supplier's name resolved for
// sub-accounts.
func (r *Repository) ListSupplierContributions(ctx context.Context, campaignID int64) ([]SupplierContribution, error) {
	rows, err := r.pool.Query(ctx, supplierContributionQuery, campaignID)
	if err != nil {
		return nil, err
	}
	return collectSupplierContributions(rows)
}

// HasInitialContribution reports whether the contributor already posted
// an initial entry on the campaign.
func (r *Repository) HasInitialContribution(ctx context.Context, campaignID, contributorID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM contributions WHERE campaign_id=$1 AND contributor_id=$2 AND kind=$3)`,
		campaignID, contributorID, KindInitial).Scan(&exists)
	return exists, err
}

// HasContribution reports whether the contributor posted any entry on
// the campaign.
func (r *Repository) HasContribution(ctx context.Context, campaignID, contributorID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM contributions WHERE campaign_id=$1 AND contributor_id=$2)`,
		campaignID, contributorID).Scan(&exists)
	return exists, err
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateCampaign(ctx context.Context, c Campaign) (Campaign, error)
	GetCampaignForUpdate(ctx context.Context, id int64) (Campaign, error)
	InsertContribution(ctx context.Context, c Contribution) (Contribution, error)
	UpdateTotal(ctx context.Context, id int64, total decimal.Decimal) error
	FinalizeSuccess(ctx context.Context, id int64, total decimal.Decimal, winnerID *int64, at time.Time) error
	MarkCancelled(ctx context.Context, id, actorID int64, at time.Time) error
	MarkFailed(ctx context.Context, id, actorID int64, at time.Time) error
	ListSupplierContributions(ctx context.Context, campaignID int64) ([]SupplierContribution, error)
	SetProductStatus(ctx context.Context, productID int64, status products.CrowdfundingStatus) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (t *txRepo) CreateCampaign(ctx context.Context, c Campaign) (Campaign, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO campaigns (product_id, title, description, target_amount, min_contribution,
total_amount, status, deadline, start_period_id, current_period_id, creator_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
RETURNING id, created_at, updated_at`,
		c.ProductID, c.Title, c.Description, c.TargetAmount, c.MinContribution, c.TotalAmount,
		c.Status, c.Deadline, c.StartPeriodID, c.CurrentPeriodID, c.CreatorID).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Campaign{}, err
	}
	return c, nil
}

func (t *txRepo) GetCampaignForUpdate(ctx context.Context, id int64) (Campaign, error) {
	c, err := scanCampaign(t.tx.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, fmt.Errorf("campaigns: campaign %d: %w", id, shared.ErrNotFound)
		}
		return Campaign{}, err
	}
	return c, nil
}

func (t *txRepo) InsertContribution(ctx context.Context, c Contribution) (Contribution, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO contributions (campaign_id, contributor_id, amount, kind, period_id, created_at)
VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id, created_at`,
		c.CampaignID, c.ContributorID, c.Amount, c.Kind, c.PeriodID).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Contribution{}, fmt.Errorf("campaigns: initial contribution already posted: %w", shared.ErrConflict)
		}
		return Contribution{}, err
	}
	return c, nil
}

func (t *txRepo) UpdateTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `UPDATE campaigns SET total_amount=$2, updated_at=NOW() WHERE id=$1`, id, total)
	return err
}

func (t *txRepo) FinalizeSuccess(ctx context.Context, id int64, total decimal.Decimal, winnerID *int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE campaigns SET total_amount=$2, status=$3, winner_id=$4, succeeded_at=$5, updated_at=NOW()
WHERE id=$1`, id, total, StatusSuccess, winnerID, at)
	return err
}

func (t *txRepo) MarkCancelled(ctx context.Context, id, actorID int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE campaigns SET status=$2, cancelled_at=$3, cancelled_by=$4, updated_at=NOW() WHERE id=$1`,
		id, StatusCancelled, at, actorID)
	return err
}

func (t *txRepo) MarkFailed(ctx context.Context, id, actorID int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE campaigns SET status=$2, failed_at=$3, failed_by=$4, updated_at=NOW() WHERE id=$1`,
		id, StatusFailed, at, actorID)
	return err
}

func (t *txRepo) ListSupplierContributions(ctx context.Context, campaignID int64) ([]SupplierContribution, error) {
	rows, err := t.tx.Query(ctx, supplierContributionQuery, campaignID)
	if err != nil {
		return nil, err
	}
	return collectSupplierContributions(rows)
}

func (t *txRepo) SetProductStatus(ctx context.Context, productID int64, status products.CrowdfundingStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE products SET crowdfunding_status=$2, updated_at=NOW() WHERE id=$1`, productID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("campaigns: product %d: %w", productID, shared.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
