package funds

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cofund/cofund/internal/platform/db"
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

// ListFilter narrows application listings. ViewerID scopes the result
// to rows the viewer applied for or currently approves; zero disables
// the scope.
type ListFilter struct {
	PeriodID    int64
	Status      Status
	ApplicantID int64
	ViewerID    int64
	Limit       int
	Offset      int
}

// ApplicationDetail is an application joined with display fields.
type ApplicationDetail struct {
	Application
	ApplicantName string
	ApplicantRole string
	CampaignTitle string
	ApproverName  *string
	ApproverRole  *string
	Approvals     []ApprovalDetail
}

// ApprovalDetail is a decision record with the approver resolved.
type ApprovalDetail struct {
	Approval
	ApproverName string
	ApproverRole string
}

const applicationColumns = `id, applicant_id, campaign_id, period_id, amount, reason, status,
current_approver_id, created_at, updated_at`

const applicationDetailQuery = `SELECT a.id, a.applicant_id, a.campaign_id, a.period_id, a.amount, a.reason,
a.status, a.current_approver_id, a.created_at, a.updated_at,
u.username, u.role, c.title, ap.username, ap.role
FROM fund_applications a
JOIN users u ON u.id = a.applicant_id
JOIN campaigns c ON c.id = a.campaign_id
LEFT JOIN users ap ON ap.id = a.current_approver_id`

func scanApplication(row pgx.Row) (Application, error) {
	var a Application
	err := row.Scan(&a.ID, &a.ApplicantID, &a.CampaignID, &a.PeriodID, &a.Amount, &a.Reason,
		&a.Status, &a.CurrentApproverID, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func scanApplicationDetail(row pgx.Row) (ApplicationDetail, error) {
	var d ApplicationDetail
	err := row.Scan(&d.ID, &d.ApplicantID, &d.CampaignID, &d.PeriodID, &d.Amount, &d.Reason,
		&d.Status, &d.CurrentApproverID, &d.CreatedAt, &d.UpdatedAt,
		&d.ApplicantName, &d.ApplicantRole, &d.CampaignTitle, &d.ApproverName, &d.ApproverRole)
	return d, err
}

// GetApplication returns one application without display fields.
func (r *Repository) GetApplication(ctx context.Context, id int64) (Application, error) {
	a, err := scanApplication(r.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM fund_applications WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, fmt.Errorf("funds: application %d: %w", id, shared.ErrNotFound)
		}
		return Application{}, err
	}
	return a, nil
}

// GetDetail returns one application with display fields and its
// decision log.
func (r *Repository) GetDetail(ctx context.Context, id int64) (ApplicationDetail, error) {
	d, err := scanApplicationDetail(r.pool.QueryRow(ctx, applicationDetailQuery+` WHERE a.id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ApplicationDetail{}, fmt.Errorf("funds: application %d: %w", id, shared.ErrNotFound)
		}
		return ApplicationDetail{}, err
	}
	if err := r.attachApprovals(ctx, []*ApplicationDetail{&d}); err != nil {
		return ApplicationDetail{}, err
	}
	return d, nil
}

// ListApplications returns filtered applications newest first plus the
// total count.
func (r *Repository) ListApplications(ctx context.Context, filter ListFilter) ([]ApplicationDetail, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if filter.PeriodID != 0 {
		add("a.period_id=", filter.PeriodID)
	}
	if filter.Status != "" {
		add("a.status=", filter.Status)
	}
	if filter.ApplicantID != 0 {
		add("a.applicant_id=", filter.ApplicantID)
	}
	if filter.ViewerID != 0 {
		args = append(args, filter.ViewerID)
		n := strconv.Itoa(len(args))
		conds = append(conds, "(a.applicant_id=$"+n+" OR a.current_approver_id=$"+n+")")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM fund_applications a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := applicationDetailQuery + where +
		` ORDER BY a.created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	list, err := r.queryDetails(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListPending returns applications awaiting the given approver, oldest
// first.
func (r *Repository) ListPending(ctx context.Context, approverID int64) ([]ApplicationDetail, error) {
	return r.queryDetails(ctx,
		applicationDetailQuery+` WHERE a.current_approver_id=$1 AND a.status=$2 ORDER BY a.created_at ASC`,
		approverID, StatusPending)
}

func (r *Repository) queryDetails(ctx context.Context, query string, args ...any) ([]ApplicationDetail, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []ApplicationDetail
	for rows.Next() {
		d, err := scanApplicationDetail(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	refs := make([]*ApplicationDetail, len(list))
	for i := range list {
		refs[i] = &list[i]
	}
	if err := r.attachApprovals(ctx, refs); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *Repository) attachApprovals(ctx context.Context, apps []*ApplicationDetail) error {
	if len(apps) == 0 {
		return nil
	}
	ids := make([]int64, len(apps))
	byID := make(map[int64]*ApplicationDetail, len(apps))
	for i, a := range apps {
		ids[i] = a.ID
		byID[a.ID] = a
	}
	rows, err := r.pool.Query(ctx, `SELECT v.id, v.application_id, v.approver_id, v.action, v.comment, v.created_at,
u.username, u.role
FROM approvals v JOIN users u ON u.id = v.approver_id
WHERE v.application_id = ANY($1) ORDER BY v.created_at ASC, v.id ASC`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var d ApprovalDetail
		if err := rows.Scan(&d.ID, &d.ApplicationID, &d.ApproverID, &d.Action, &d.Comment,
			&d.CreatedAt, &d.ApproverName, &d.ApproverRole); err != nil {
			return err
		}
		app := byID[d.ApplicationID]
		app.Approvals = append(app.Approvals, d)
	}
	return rows.Err()
}

// SumSuccessTotals sums the raised total of success campaigns whose
// current period matches.
func (r *Repository) SumSuccessTotals(ctx context.Context, periodID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0) FROM campaigns WHERE status=$1 AND current_period_id=$2`,
		"success", periodID).Scan(&sum)
	return sum, err
}

// SumApprovedAmounts sums approved application amounts in the period.
func (r *Repository) SumApprovedAmounts(ctx context.Context, periodID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM fund_applications WHERE status=$1 AND period_id=$2`,
		StatusApproved, periodID).Scan(&sum)
	return sum, err
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateApplication(ctx context.Context, a Application) (Application, error)
	GetApplicationForUpdate(ctx context.Context, id int64) (Application, error)
	InsertApproval(ctx context.Context, a Approval) (Approval, error)
	SetDecision(ctx context.Context, id int64, status Status, approverID *int64) error
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

func (t *txRepo) CreateApplication(ctx context.Context, a Application) (Application, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO fund_applications (applicant_id, campaign_id, period_id, amount, reason,
status, current_approver_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
RETURNING id, created_at, updated_at`,
		a.ApplicantID, a.CampaignID, a.PeriodID, a.Amount, a.Reason, a.Status, a.CurrentApproverID).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Application{}, err
	}
	return a, nil
}

func (t *txRepo) GetApplicationForUpdate(ctx context.Context, id int64) (Application, error) {
	a, err := scanApplication(t.tx.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM fund_applications WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, fmt.Errorf("funds: application %d: %w", id, shared.ErrNotFound)
		}
		return Application{}, err
	}
	return a, nil
}

func (t *txRepo) InsertApproval(ctx context.Context, a Approval) (Approval, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO approvals (application_id, approver_id, action, comment, created_at)
VALUES ($1, $2, $3, $4, NOW()) RETURNING id, created_at`,
		a.ApplicationID, a.ApproverID, a.Action, a.Comment).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return Approval{}, err
	}
	return a, nil
}

func (t *txRepo) SetDecision(ctx context.Context, id int64, status Status, approverID *int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE fund_applications SET status=$2, current_approver_id=$3, updated_at=NOW() WHERE id=$1`,
		id, status, approverID)
	return err
}
