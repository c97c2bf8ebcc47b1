package campaigns

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// CreateCampaignRequest is the payload for starting a campaign.
type CreateCampaignRequest struct {
	ProductID       string          `json:"productId" validate:"required"`
	Title           string          `json:"title" validate:"required,max=200"`
	Description     string          `json:"description"`
	TargetAmount    decimal.Decimal `json:"targetAmount" validate:"required"`
	MinContribution decimal.Decimal `json:"minInvestment"`
	Deadline        *time.Time      `json:"deadline"`
}

// ContributeRequest is the payload for posting a ledger entry.
type ContributeRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// View is the serialized shape of a campaign. Identifier-to-string
// conversion happens here, at the serialization boundary.
type View struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"productId"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	TargetAmount    decimal.Decimal `json:"targetAmount"`
	MinContribution decimal.Decimal `json:"minInvestment"`
	TotalAmount     decimal.Decimal `json:"currentAmount"`
	Status          Status          `json:"status"`
	Deadline        *time.Time      `json:"deadline,omitempty"`
	StartPeriodID   string          `json:"startPeriodId"`
	CurrentPeriodID string          `json:"currentPeriodId"`
	CreatorID       string          `json:"creatorId"`
	WinnerID        *string         `json:"winnerSupplierId,omitempty"`
	SucceededAt     *time.Time      `json:"successAt,omitempty"`
	CancelledAt     *time.Time      `json:"cancelledAt,omitempty"`
	FailedAt        *time.Time      `json:"failedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ContributionView is the serialized shape of a ledger entry.
type ContributionView struct {
	ID            string          `json:"id"`
	CampaignID    string          `json:"campaignId"`
	ContributorID string          `json:"userId"`
	Contributor   string          `json:"username,omitempty"`
	Role          string          `json:"role,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          Kind            `json:"investmentType"`
	PeriodID      string          `json:"periodId"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// RankView is one serialized supplier ranking row.
type RankView struct {
	Rank       int             `json:"rank"`
	SupplierID string          `json:"supplierId"`
	Name       string          `json:"supplierName"`
	Total      decimal.Decimal `json:"totalAmount"`
}

// DetailView is the campaign detail response.
type DetailView struct {
	View
	Contributions []ContributionView `json:"investments"`
	Ranking       []RankView         `json:"supplierRanking"`
	InvestorCount int                `json:"investorCount"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatIDPtr(id *int64) *string {
	if id == nil {
		return nil
	}
	s := formatID(*id)
	return &s
}

// NewView maps a campaign to its API shape.
func NewView(c Campaign) View {
	return View{
		ID:              formatID(c.ID),
		ProductID:       formatID(c.ProductID),
		Title:           c.Title,
		Description:     c.Description,
		TargetAmount:    c.TargetAmount,
		MinContribution: c.MinContribution,
		TotalAmount:     c.TotalAmount,
		Status:          c.Status,
		Deadline:        c.Deadline,
		StartPeriodID:   formatID(c.StartPeriodID),
		CurrentPeriodID: formatID(c.CurrentPeriodID),
		CreatorID:       formatID(c.CreatorID),
		WinnerID:        formatIDPtr(c.WinnerID),
		SucceededAt:     c.SucceededAt,
		CancelledAt:     c.CancelledAt,
		FailedAt:        c.FailedAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// NewViews maps a campaign slice.
func NewViews(list []Campaign) []View {
	views := make([]View, len(list))
	for i, c := range list {
		views[i] = NewView(c)
	}
	return views
}

// NewContributionView maps a contribution with display fields.
func NewContributionView(d ContributionDetail) ContributionView {
	return ContributionView{
		ID:            formatID(d.ID),
		CampaignID:    formatID(d.CampaignID),
		ContributorID: formatID(d.ContributorID),
		Contributor:   d.ContributorName,
		Role:          d.ContributorRole,
		Amount:        d.Amount,
		Kind:          d.Kind,
		PeriodID:      formatID(d.PeriodID),
		CreatedAt:     d.CreatedAt,
	}
}

// NewRankViews maps a ranking.
func NewRankViews(ranking []SupplierRank) []RankView {
	views := make([]RankView, len(ranking))
	for i, r := range ranking {
		views[i] = RankView{
			Rank:       r.Rank,
			SupplierID: formatID(r.SupplierID),
			Name:       r.Name,
			Total:      r.Total,
		}
	}
	return views
}

// NewDetailView maps the full campaign detail.
func NewDetailView(d Detail) DetailView {
	contributions := make([]ContributionView, len(d.Contributions))
	for i, c := range d.Contributions {
		contributions[i] = NewContributionView(c)
	}
	return DetailView{
		View:          NewView(d.Campaign),
		Contributions: contributions,
		Ranking:       NewRankViews(d.Ranking),
		InvestorCount: d.InvestorCount,
	}
}
