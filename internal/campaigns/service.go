package campaigns

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cofund/cofund/internal/directory"
	"github.com/cofund/cofund/internal/periods"
	"github.com/cofund/cofund/internal/products"
	"github.com/cofund/cofund/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetCampaign(ctx context.Context, id int64) (Campaign, error)
	ListCampaigns(ctx context.Context, filter ListFilter) ([]Campaign, int, error)
	ListContributions(ctx context.Context, campaignID int64) ([]ContributionDetail, error)
	CountContributions(ctx context.Context, campaignID int64) (int, error)
	ListSupplierContributions(ctx context.Context, campaignID int64) ([]SupplierContribution, error)
	HasInitialContribution(ctx context.Context, campaignID, contributorID int64) (bool, error)
	HasContribution(ctx context.Context, campaignID, contributorID int64) (bool, error)
}

// PeriodPort resolves the active accounting bucket.
type PeriodPort interface {
	Current(ctx context.Context) (periods.Period, error)
}

// DirectoryPort exposes the identity directory lookups the ledger needs.
type DirectoryPort interface {
	GetUser(ctx context.Context, id int64) (directory.User, error)
}

// ProductPort exposes the product registry reads.
type ProductPort interface {
	GetProduct(ctx context.Context, id int64) (products.Product, error)
}

// AuditPort records mutating operations, fire-and-forget.
type AuditPort interface {
	Record(ctx context.Context, event shared.AuditEvent) error
}

// Service orchestrates the investment ledger and campaign lifecycle.
type Service struct {
	repo      RepositoryPort
	periods   PeriodPort
	directory DirectoryPort
	products  ProductPort
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the campaign service.
func NewService(repo RepositoryPort, periodSvc PeriodPort, dir DirectoryPort, productSvc ProductPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		periods:   periodSvc,
		directory: dir,
		products:  productSvc,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateInput describes a new campaign.
type CreateInput struct {
	ProductID       int64
	Title           string
	Description     string
	TargetAmount    decimal.Decimal
	MinContribution decimal.Decimal
	Deadline        *time.Time
}

// Create starts a campaign for a product without an in-flight one.
func (s *Service) Create(ctx context.Context, input CreateInput, actor shared.Actor) (Campaign, error) {
	role := directory.Role(actor.Role)
	if !createRoles[role] {
		return Campaign{}, fmt.Errorf("campaigns: role %s may not start a campaign: %w", role, shared.ErrForbidden)
	}
	if !input.TargetAmount.IsPositive() {
		return Campaign{}, fmt.Errorf("campaigns: target amount must be positive: %w", shared.ErrPolicyViolation)
	}
	minContribution := input.MinContribution
	if minContribution.IsZero() {
		minContribution = defaultMinContribution
	}
	if minContribution.IsNegative() {
		return Campaign{}, fmt.Errorf("campaigns: minimum contribution must not be negative: %w", shared.ErrPolicyViolation)
	}

	product, err := s.products.GetProduct(ctx, input.ProductID)
	if err != nil {
		return Campaign{}, err
	}
	if product.CrowdfundingStatus == products.CrowdfundingInProgress {
		return Campaign{}, fmt.Errorf("campaigns: product %d already has an in-flight campaign: %w", product.ID, shared.ErrConflict)
	}
	if role == directory.RoleProductDev && product.CreatorID != actor.ID {
		return Campaign{}, fmt.Errorf("campaigns: product_dev may only fund own products: %w", shared.ErrForbidden)
	}

	period, err := s.periods.Current(ctx)
	if err != nil {
		return Campaign{}, err
	}

	campaign := Campaign{
		ProductID:       input.ProductID,
		Title:           input.Title,
		Description:     input.Description,
		TargetAmount:    input.TargetAmount,
		MinContribution: minContribution,
		TotalAmount:     decimal.Zero,
		Status:          StatusInProgress,
		Deadline:        input.Deadline,
		StartPeriodID:   period.ID,
		CurrentPeriodID: period.ID,
		CreatorID:       actor.ID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.CreateCampaign(ctx, campaign)
		if err != nil {
			return err
		}
		campaign = created
		return tx.SetProductStatus(ctx, campaign.ProductID, products.CrowdfundingInProgress)
	})
	if err != nil {
		return Campaign{}, err
	}

	s.recordAudit(ctx, actor.ID, "campaign.create", campaign.ID, map[string]any{
		"productId": campaign.ProductID,
		"target":    campaign.TargetAmount.String(),
	})
	return campaign, nil
}

// Contribute posts a ledger entry. The initial entry must meet the
// campaign minimum; top-ups must meet the fixed floor. Crossing the
// target flips the campaign to success, selects the winning supplier
// group and mirrors the product status, all in one transaction.
func (s *Service) Contribute(ctx context.Context, campaignID int64, amount decimal.Decimal, topUp bool, actor shared.Actor) (ContributionDetail, error) {
	role := directory.Role(actor.Role)
	if !contributeRoles[role] {
		return ContributionDetail{}, fmt.Errorf("campaigns: role %s may not contribute: %w", role, shared.ErrForbidden)
	}

	campaign, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return ContributionDetail{}, err
	}
	if campaign.Status != StatusInProgress {
		return ContributionDetail{}, fmt.Errorf("campaigns: campaign %d is %s: %w", campaignID, campaign.Status, shared.ErrInvalidState)
	}

	hasInitial, err := s.repo.HasInitialContribution(ctx, campaignID, actor.ID)
	if err != nil {
		return ContributionDetail{}, err
	}
	kind := KindInitial
	if topUp {
		kind = KindAdditional
		if amount.LessThan(topUpFloor) {
			return ContributionDetail{}, fmt.Errorf("campaigns: top-up below floor %s: %w", topUpFloor, shared.ErrPolicyViolation)
		}
		if !hasInitial {
			return ContributionDetail{}, fmt.Errorf("campaigns: no initial contribution to top up: %w", shared.ErrConflict)
		}
	} else {
		if amount.LessThan(campaign.MinContribution) {
			return ContributionDetail{}, fmt.Errorf("campaigns: amount below campaign minimum %s: %w", campaign.MinContribution, shared.ErrPolicyViolation)
		}
		if hasInitial {
			return ContributionDetail{}, fmt.Errorf("campaigns: initial contribution already posted: %w", shared.ErrConflict)
		}
	}

	user, err := s.directory.GetUser(ctx, actor.ID)
	if err != nil {
		return ContributionDetail{}, err
	}
	if role.IsSupplierFamily() {
		if err := s.validateSupplierBid(ctx, campaignID, user, amount); err != nil {
			return ContributionDetail{}, err
		}
	}

	period, err := s.periods.Current(ctx)
	if err != nil {
		return ContributionDetail{}, err
	}

	var created Contribution
	var succeeded bool
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetCampaignForUpdate(ctx, campaignID)
		if err != nil {
			return err
		}
		if locked.Status != StatusInProgress {
			return fmt.Errorf("campaigns: campaign %d is %s: %w", campaignID, locked.Status, shared.ErrInvalidState)
		}

		created, err = tx.InsertContribution(ctx, Contribution{
			CampaignID:    campaignID,
			ContributorID: actor.ID,
			Amount:        amount,
			Kind:          kind,
			PeriodID:      period.ID,
		})
		if err != nil {
			return err
		}

		newTotal := locked.TotalAmount.Add(amount)
		if newTotal.GreaterThanOrEqual(locked.TargetAmount) {
			rows, err := tx.ListSupplierContributions(ctx, campaignID)
			if err != nil {
				return err
			}
			var winnerID *int64
			if ranking := Rank(rows); len(ranking) > 0 {
				winnerID = &ranking[0].SupplierID
			}
			if err := tx.FinalizeSuccess(ctx, campaignID, newTotal, winnerID, s.now()); err != nil {
				return err
			}
			if err := tx.SetProductStatus(ctx, locked.ProductID, products.CrowdfundingSuccess); err != nil {
				return err
			}
			succeeded = true
			return nil
		}
		return tx.UpdateTotal(ctx, campaignID, newTotal)
	})
	if err != nil {
		return ContributionDetail{}, err
	}

	s.recordAudit(ctx, actor.ID, "campaign.contribute", campaignID, map[string]any{
		"amount":    amount.String(),
		"kind":      string(kind),
		"succeeded": succeeded,
	})

	return ContributionDetail{
		Contribution:    created,
		ContributorName: user.Username,
		ContributorRole: string(user.Role),
	}, nil
}

// Cancel withdraws an in-flight campaign. Amounts are virtual ledger
// entries, so no refund bookkeeping happens.
func (s *Service) Cancel(ctx context.Context, campaignID int64, actor shared.Actor) error {
	return s.terminate(ctx, campaignID, actor, StatusCancelled)
}

// Fail marks an in-flight campaign as having missed its target.
func (s *Service) Fail(ctx context.Context, campaignID int64, actor shared.Actor) error {
	return s.terminate(ctx, campaignID, actor, StatusFailed)
}

func (s *Service) terminate(ctx context.Context, campaignID int64, actor shared.Actor, target Status) error {
	campaign, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != StatusInProgress {
		return fmt.Errorf("campaigns: campaign %d is %s: %w", campaignID, campaign.Status, shared.ErrInvalidState)
	}
	role := directory.Role(actor.Role)
	if campaign.CreatorID != actor.ID && !role.IsAdministrative() {
		return fmt.Errorf("campaigns: only the creator or an administrator may end a campaign: %w", shared.ErrForbidden)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetCampaignForUpdate(ctx, campaignID)
		if err != nil {
			return err
		}
		if locked.Status != StatusInProgress {
			return fmt.Errorf("campaigns: campaign %d is %s: %w", campaignID, locked.Status, shared.ErrInvalidState)
		}
		switch target {
		case StatusCancelled:
			if err := tx.MarkCancelled(ctx, campaignID, actor.ID, s.now()); err != nil {
				return err
			}
			return tx.SetProductStatus(ctx, locked.ProductID, products.CrowdfundingCancelled)
		case StatusFailed:
			if err := tx.MarkFailed(ctx, campaignID, actor.ID, s.now()); err != nil {
				return err
			}
			return tx.SetProductStatus(ctx, locked.ProductID, products.CrowdfundingFailed)
		default:
			return fmt.Errorf("campaigns: transition to %s: %w", target, shared.ErrInvalidState)
		}
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actor.ID, "campaign."+string(target), campaignID, nil)
	return nil
}

// Ranking aggregates supplier bids into descending rank order. Calling
// it twice without new contributions yields identical results.
func (s *Service) Ranking(ctx context.Context, campaignID int64) ([]SupplierRank, error) {
	if _, err := s.repo.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListSupplierContributions(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return Rank(rows), nil
}

// Detail aggregates everything the campaign view exposes.
type Detail struct {
	Campaign      Campaign
	Contributions []ContributionDetail
	Ranking       []SupplierRank
	InvestorCount int
}

// Get returns the campaign detail with ranking and investor count.
func (s *Service) Get(ctx context.Context, campaignID int64) (Detail, error) {
	campaign, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return Detail{}, err
	}
	contributions, err := s.repo.ListContributions(ctx, campaignID)
	if err != nil {
		return Detail{}, err
	}
	rows, err := s.repo.ListSupplierContributions(ctx, campaignID)
	if err != nil {
		return Detail{}, err
	}
	count, err := s.repo.CountContributions(ctx, campaignID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{
		Campaign:      campaign,
		Contributions: contributions,
		Ranking:       Rank(rows),
		InvestorCount: count,
	}, nil
}

// List returns filtered campaigns newest first.
func (s *Service) List(ctx context.Context, filter ListFilter, page, pageSize int) ([]Campaign, shared.Pagination, error) {
	p := shared.NewPagination(page, pageSize, 0)
	filter.Limit = p.PerPage
	filter.Offset = p.Offset()
	list, total, err := s.repo.ListCampaigns(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// HasContribution reports whether the user funded the campaign at all.
// The funds module uses it as the application precondition.
func (s *Service) HasContribution(ctx context.Context, campaignID, userID int64) (bool, error) {
	if _, err := s.repo.GetCampaign(ctx, campaignID); err != nil {
		return false, err
	}
	return s.repo.HasContribution(ctx, campaignID, userID)
}

// validateSupplierBid rejects a posting whose prospective group total
// would tie another supplier group's current total. The read happens
// before the commit transaction; two concurrent bidders can both pass
// and land on equal totals. Known limitation, not closed with a
// stronger isolation level.
func (s *Service) validateSupplierBid(ctx context.Context, campaignID int64, user directory.User, amount decimal.Decimal) error {
	rows, err := s.repo.ListSupplierContributions(ctx, campaignID)
	if err != nil {
		return err
	}
	ranking := Rank(rows)
	ownerID := GroupOwnerID(user.ID, user.Role, user.ParentID)
	newTotal := GroupTotal(ranking, ownerID).Add(amount)
	for _, r := range ranking {
		if r.SupplierID != ownerID && r.Total.Equal(newTotal) {
			return fmt.Errorf("campaigns: group total %s would tie supplier %d: %w", newTotal, r.SupplierID, shared.ErrConflict)
		}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	event := shared.AuditEvent{
		ActorID:  actorID,
		Action:   action,
		Entity:   "campaign",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
