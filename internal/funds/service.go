package funds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cofund/cofund/internal/directory"
	"github.com/cofund/cofund/internal/periods"
	"github.com/cofund/cofund/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetApplication(ctx context.Context, id int64) (Application, error)
	GetDetail(ctx context.Context, id int64) (ApplicationDetail, error)
	ListApplications(ctx context.Context, filter ListFilter) ([]ApplicationDetail, int, error)
	ListPending(ctx context.Context, approverID int64) ([]ApplicationDetail, error)
	SumSuccessTotals(ctx context.Context, periodID int64) (decimal.Decimal, error)
	SumApprovedAmounts(ctx context.Context, periodID int64) (decimal.Decimal, error)
}

// DirectoryPort exposes the identity lookups the approval chain needs.
type DirectoryPort interface {
	GetUser(ctx context.Context, id int64) (directory.User, error)
	FindFirstActiveByRole(ctx context.Context, role directory.Role) (directory.User, error)
}

// PeriodPort resolves accounting buckets.
type PeriodPort interface {
	Current(ctx context.Context) (periods.Period, error)
	Get(ctx context.Context, id int64) (periods.Period, error)
}

// LedgerPort checks the applicant's stake in the referenced campaign.
type LedgerPort interface {
	HasContribution(ctx context.Context, campaignID, userID int64) (bool, error)
}

// AuditPort records mutating operations, fire-and-forget.
type AuditPort interface {
	Record(ctx context.Context, event shared.AuditEvent) error
}

// Service routes fund applications through the role-keyed approval
// chain.
type Service struct {
	repo      RepositoryPort
	directory DirectoryPort
	periods   PeriodPort
	ledger    LedgerPort
	cache     *OverviewCache
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the funds service. cache may be nil.
func NewService(repo RepositoryPort, dir DirectoryPort, periodSvc PeriodPort, ledger LedgerPort, cache *OverviewCache, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		directory: dir,
		periods:   periodSvc,
		ledger:    ledger,
		cache:     cache,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateInput describes a new fund application.
type CreateInput struct {
	CampaignID int64
	Amount     decimal.Decimal
	Reason     string
}

// Create files an application and resolves its first approver. An
// applicant whose chain yields no human approver is approved outright
// so that a pending application always has one.
func (s *Service) Create(ctx context.Context, input CreateInput, actor shared.Actor) (ApplicationDetail, error) {
	if !input.Amount.IsPositive() {
		return ApplicationDetail{}, fmt.Errorf("funds: amount must be positive: %w", shared.ErrPolicyViolation)
	}

	contributed, err := s.ledger.HasContribution(ctx, input.CampaignID, actor.ID)
	if err != nil {
		return ApplicationDetail{}, err
	}
	if !contributed {
		return ApplicationDetail{}, fmt.Errorf("funds: applicant has no contribution on campaign %d: %w",
			input.CampaignID, shared.ErrForbidden)
	}

	applicant, err := s.directory.GetUser(ctx, actor.ID)
	if err != nil {
		return ApplicationDetail{}, err
	}
	period, err := s.periods.Current(ctx)
	if err != nil {
		return ApplicationDetail{}, err
	}
	approverID, err := s.resolveApprover(ctx, applicant)
	if err != nil {
		return ApplicationDetail{}, err
	}

	application := Application{
		ApplicantID:       actor.ID,
		CampaignID:        input.CampaignID,
		PeriodID:          period.ID,
		Amount:            input.Amount,
		Reason:            input.Reason,
		Status:            StatusPending,
		CurrentApproverID: approverID,
	}
	if approverID == nil {
		application.Status = StatusApproved
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.CreateApplication(ctx, application)
		if err != nil {
			return err
		}
		application = created
		return nil
	})
	if err != nil {
		return ApplicationDetail{}, err
	}
	if application.Status == StatusApproved {
		s.cache.Invalidate(ctx, application.PeriodID)
	}

	s.recordAudit(ctx, actor.ID, "fund_application.create", application.ID, map[string]any{
		"campaignId": application.CampaignID,
		"amount":     application.Amount.String(),
	})
	return s.repo.GetDetail(ctx, application.ID)
}

// Decide applies an approve or reject verdict. Only the current
// approver may decide, except super_admin who may decide any pending
// application. Approve advances the chain keyed by the acting
// approver's role; reject terminates immediately.
func (s *Service) Decide(ctx context.Context, applicationID int64, action Action, comment string, actor shared.Actor) (ApplicationDetail, error) {
	if action != ActionApprove && action != ActionReject {
		return ApplicationDetail{}, fmt.Errorf("funds: unknown action %q: %w", action, shared.ErrPolicyViolation)
	}

	application, err := s.repo.GetApplication(ctx, applicationID)
	if err != nil {
		return ApplicationDetail{}, err
	}
	if application.Status != StatusPending {
		return ApplicationDetail{}, fmt.Errorf("funds: application %d is %s: %w",
			applicationID, application.Status, shared.ErrInvalidState)
	}
	role := directory.Role(actor.Role)
	if role != directory.RoleSuperAdmin &&
		(application.CurrentApproverID == nil || *application.CurrentApproverID != actor.ID) {
		return ApplicationDetail{}, fmt.Errorf("funds: user %d is not the current approver: %w",
			actor.ID, shared.ErrForbidden)
	}

	acting, err := s.directory.GetUser(ctx, actor.ID)
	if err != nil {
		return ApplicationDetail{}, err
	}

	finalStatus := StatusPending
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetApplicationForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if locked.Status != StatusPending {
			return fmt.Errorf("funds: application %d is %s: %w", applicationID, locked.Status, shared.ErrInvalidState)
		}

		if _, err := tx.InsertApproval(ctx, Approval{
			ApplicationID: applicationID,
			ApproverID:    actor.ID,
			Action:        action,
			Comment:       comment,
		}); err != nil {
			return err
		}

		if action == ActionReject {
			finalStatus = StatusRejected
			return tx.SetDecision(ctx, applicationID, StatusRejected, nil)
		}
		nextID, err := s.resolveApprover(ctx, acting)
		if err != nil {
			return err
		}
		if nextID == nil {
			finalStatus = StatusApproved
			return tx.SetDecision(ctx, applicationID, StatusApproved, nil)
		}
		return tx.SetDecision(ctx, applicationID, StatusPending, nextID)
	})
	if err != nil {
		return ApplicationDetail{}, err
	}
	if finalStatus == StatusApproved {
		s.cache.Invalidate(ctx, application.PeriodID)
	}

	s.recordAudit(ctx, actor.ID, "fund_application."+string(action), applicationID, map[string]any{
		"comment": comment,
	})
	return s.repo.GetDetail(ctx, applicationID)
}

// Cancel withdraws a pending application. Only the applicant may
// cancel.
func (s *Service) Cancel(ctx context.Context, applicationID int64, actor shared.Actor) error {
	application, err := s.repo.GetApplication(ctx, applicationID)
	if err != nil {
		return err
	}
	if application.ApplicantID != actor.ID {
		return fmt.Errorf("funds: only the applicant may cancel: %w", shared.ErrForbidden)
	}
	if application.Status != StatusPending {
		return fmt.Errorf("funds: application %d is %s: %w", applicationID, application.Status, shared.ErrInvalidState)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetApplicationForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if locked.Status != StatusPending {
			return fmt.Errorf("funds: application %d is %s: %w", applicationID, locked.Status, shared.ErrInvalidState)
		}
		return tx.SetDecision(ctx, applicationID, StatusCancelled, nil)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actor.ID, "fund_application.cancel", applicationID, nil)
	return nil
}

// Get returns one application with its decision log, scoped like List.
func (s *Service) Get(ctx context.Context, applicationID int64, actor shared.Actor) (ApplicationDetail, error) {
	detail, err := s.repo.GetDetail(ctx, applicationID)
	if err != nil {
		return ApplicationDetail{}, err
	}
	role := directory.Role(actor.Role)
	if role != directory.RoleSuperAdmin && detail.ApplicantID != actor.ID &&
		(detail.CurrentApproverID == nil || *detail.CurrentApproverID != actor.ID) {
		return ApplicationDetail{}, fmt.Errorf("funds: application %d: %w", applicationID, shared.ErrForbidden)
	}
	return detail, nil
}

// List returns filtered applications newest first. Callers below
// super_admin only see rows they applied for or currently approve.
func (s *Service) List(ctx context.Context, filter ListFilter, page, pageSize int, actor shared.Actor) ([]ApplicationDetail, shared.Pagination, error) {
	if directory.Role(actor.Role) != directory.RoleSuperAdmin {
		filter.ViewerID = actor.ID
	}
	p := shared.NewPagination(page, pageSize, 0)
	filter.Limit = p.PerPage
	filter.Offset = p.Offset()
	list, total, err := s.repo.ListApplications(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// PendingForMe returns applications awaiting the caller, oldest first.
func (s *Service) PendingForMe(ctx context.Context, actor shared.Actor) ([]ApplicationDetail, error) {
	return s.repo.ListPending(ctx, actor.ID)
}

// Overview reports raised versus consumed amounts for a period,
// defaulting to the current one.
func (s *Service) Overview(ctx context.Context, periodID int64) (periods.Period, Overview, error) {
	var period periods.Period
	var err error
	if periodID == 0 {
		period, err = s.periods.Current(ctx)
	} else {
		period, err = s.periods.Get(ctx, periodID)
	}
	if err != nil {
		return periods.Period{}, Overview{}, err
	}

	if cached, ok := s.cache.Get(ctx, period.ID); ok {
		return period, cached, nil
	}

	total, err := s.repo.SumSuccessTotals(ctx, period.ID)
	if err != nil {
		return periods.Period{}, Overview{}, err
	}
	used, err := s.repo.SumApprovedAmounts(ctx, period.ID)
	if err != nil {
		return periods.Period{}, Overview{}, err
	}

	rate := decimal.Zero
	if total.IsPositive() {
		rate = used.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
	}
	overview := Overview{
		PeriodID:        period.ID,
		TotalAmount:     total,
		UsedAmount:      used,
		RemainingAmount: total.Sub(used),
		UsageRate:       rate,
	}
	s.cache.Set(ctx, period.ID, overview)
	return period, overview, nil
}

// resolveApprover finds who signs off after the given user: the chain
// role for the user's own role, filled by the user's organizational
// parent when present, else the first active holder of that role. Nil
// means the chain is exhausted.
func (s *Service) resolveApprover(ctx context.Context, user directory.User) (*int64, error) {
	nextRole, ok := NextRole(user.Role)
	if !ok {
		return nil, nil
	}
	if user.ParentID != nil {
		return user.ParentID, nil
	}
	approver, err := s.directory.FindFirstActiveByRole(ctx, nextRole)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &approver.ID, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	event := shared.AuditEvent{
		ActorID:  actorID,
		Action:   action,
		Entity:   "fund_application",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
