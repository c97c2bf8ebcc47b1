package funds

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cofund/cofund/internal/periods"
)

// CreateApplicationRequest is the payload for filing an application.
type CreateApplicationRequest struct {
	CampaignID string          `json:"crowdfundingId" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	Reason     string          `json:"reason" validate:"required,max=1000"`
}

// DecisionRequest is the payload for an approve/reject verdict.
type DecisionRequest struct {
	Action  Action `json:"action" validate:"required,oneof=approve reject"`
	Comment string `json:"comment" validate:"max=1000"`
}

// PartyView is a compact user reference embedded in responses.
type PartyView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// ApprovalView is one serialized decision record.
type ApprovalView struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"applicationId"`
	Action        Action     `json:"action"`
	Comment       string     `json:"comment,omitempty"`
	Approver      PartyView  `json:"approver"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// ApplicationView is the serialized shape of a fund application.
type ApplicationView struct {
	ID                string          `json:"id"`
	ApplicantID       string          `json:"applicantId"`
	CampaignID        string          `json:"crowdfundingId"`
	CampaignTitle     string          `json:"crowdfundingTitle"`
	PeriodID          string          `json:"periodId"`
	Amount            decimal.Decimal `json:"amount"`
	Reason            string          `json:"reason"`
	Status            Status          `json:"status"`
	Applicant         PartyView       `json:"applicant"`
	CurrentApproverID *string         `json:"currentApproverId,omitempty"`
	CurrentApprover   *PartyView      `json:"currentApprover,omitempty"`
	Approvals         []ApprovalView  `json:"approvals"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// OverviewView is the fund overview response.
type OverviewView struct {
	Period          periods.View    `json:"period"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	UsedAmount      decimal.Decimal `json:"usedAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	UsageRate       decimal.Decimal `json:"usageRate"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// NewApplicationView maps a detail row to its serialized shape.
func NewApplicationView(d ApplicationDetail) ApplicationView {
	v := ApplicationView{
		ID:            formatID(d.ID),
		ApplicantID:   formatID(d.ApplicantID),
		CampaignID:    formatID(d.CampaignID),
		CampaignTitle: d.CampaignTitle,
		PeriodID:      formatID(d.PeriodID),
		Amount:        d.Amount,
		Reason:        d.Reason,
		Status:        d.Status,
		Applicant: PartyView{
			ID:       formatID(d.ApplicantID),
			Username: d.ApplicantName,
			Role:     d.ApplicantRole,
		},
		Approvals: make([]ApprovalView, 0, len(d.Approvals)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.CurrentApproverID != nil {
		id := formatID(*d.CurrentApproverID)
		v.CurrentApproverID = &id
		if d.ApproverName != nil && d.ApproverRole != nil {
			v.CurrentApprover = &PartyView{ID: id, Username: *d.ApproverName, Role: *d.ApproverRole}
		}
	}
	for _, a := range d.Approvals {
		v.Approvals = append(v.Approvals, ApprovalView{
			ID:            formatID(a.ID),
			ApplicationID: formatID(a.ApplicationID),
			Action:        a.Action,
			Comment:       a.Comment,
			Approver: PartyView{
				ID:       formatID(a.ApproverID),
				Username: a.ApproverName,
				Role:     a.ApproverRole,
			},
			CreatedAt: a.CreatedAt,
		})
	}
	return v
}

// NewApplicationViews maps a detail slice.
func NewApplicationViews(list []ApplicationDetail) []ApplicationView {
	views := make([]ApplicationView, 0, len(list))
	for _, d := range list {
		views = append(views, NewApplicationView(d))
	}
	return views
}

// NewOverviewView maps a period and its overview figures.
func NewOverviewView(period periods.Period, o Overview) OverviewView {
	return OverviewView{
		Period:          periods.NewView(period),
		TotalAmount:     o.TotalAmount,
		UsedAmount:      o.UsedAmount,
		RemainingAmount: o.RemainingAmount,
		UsageRate:       o.UsageRate,
	}
}
