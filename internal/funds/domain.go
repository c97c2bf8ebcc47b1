package funds

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks the fund application lifecycle. Everything but pending
// is terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further decisions apply.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Action is an approver's verdict on a pending application.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Application is a request to spend against funds raised by a
// successful campaign. CurrentApproverID is set iff the application is
// pending.
type Application struct {
	ID                int64
	ApplicantID       int64
	CampaignID        int64
	PeriodID          int64
	Amount            decimal.Decimal
	Reason            string
	Status            Status
	CurrentApproverID *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Approval is one immutable decision record on an application.
type Approval struct {
	ID            int64
	ApplicationID int64
	ApproverID    int64
	Action        Action
	Comment       string
	CreatedAt     time.Time
}

// Overview summarizes how much a period's successful campaigns raised
// and how much approved applications have consumed of it.
type Overview struct {
	PeriodID        int64
	TotalAmount     decimal.Decimal
	UsedAmount      decimal.Decimal
	RemainingAmount decimal.Decimal
	UsageRate       decimal.Decimal
}
