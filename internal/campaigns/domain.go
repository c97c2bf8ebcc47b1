package campaigns

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cofund/cofund/internal/directory"
)

// Campaign lifecycle statuses. All states other than in_progress are
// terminal and mutually exclusive.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusCancelled || s == StatusFailed
}

// Contribution kinds.
type Kind string

const (
	KindInitial    Kind = "initial"
	KindAdditional Kind = "additional"
)

// Campaign represents one crowdfunding effort tied to one product.
type Campaign struct {
	ID              int64
	ProductID       int64
	Title           string
	Description     string
	TargetAmount    decimal.Decimal
	MinContribution decimal.Decimal
	TotalAmount     decimal.Decimal
	Status          Status
	Deadline        *time.Time
	StartPeriodID   int64
	CurrentPeriodID int64
	CreatorID       int64
	WinnerID        *int64
	SucceededAt     *time.Time
	CancelledAt     *time.Time
	CancelledBy     *int64
	FailedAt        *time.Time
	FailedBy        *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Contribution is one append-only funding entry against a campaign.
type Contribution struct {
	ID            int64
	CampaignID    int64
	ContributorID int64
	Amount        decimal.Decimal
	Kind          Kind
	PeriodID      int64
	CreatedAt     time.Time
}

// SupplierContribution is a contribution row joined with the contributor
// identity needed to roll sub-accounts up to their owning supplier.
type SupplierContribution struct {
	ContributorID int64
	Role          directory.Role
	ParentID      *int64
	Amount        decimal.Decimal
	OwnerName     string
}

// SupplierRank is one row of the aggregated supplier ranking.
type SupplierRank struct {
	Rank       int
	SupplierID int64
	Name       string
	Total      decimal.Decimal
}

// Roles allowed to start a campaign.
var createRoles = map[directory.Role]bool{
	directory.RoleSuperAdmin: true,
	directory.RoleAdmin:      true,
	directory.RoleProductDev: true,
	directory.RoleSales:      true,
	directory.RoleSupplier:   true,
}

// Roles allowed to contribute.
var contributeRoles = map[directory.Role]bool{
	directory.RoleSuperAdmin:  true,
	directory.RoleAdmin:       true,
	directory.RoleProductDev:  true,
	directory.RoleSales:       true,
	directory.RoleSupplier:    true,
	directory.RoleSupplierSub: true,
}

// topUpFloor is the fixed minimum for additional contributions,
// independent of the campaign's configured minimum.
var topUpFloor = decimal.NewFromInt(100)

// defaultMinContribution applies when a campaign is created without one.
var defaultMinContribution = decimal.NewFromInt(100)
