package products

import "time"

// CrowdfundingStatus mirrors the lifecycle of the product's campaign.
type CrowdfundingStatus string

const (
	CrowdfundingNone       CrowdfundingStatus = "none"
	CrowdfundingInProgress CrowdfundingStatus = "in_progress"
	CrowdfundingSuccess    CrowdfundingStatus = "success"
	CrowdfundingCancelled  CrowdfundingStatus = "cancelled"
	CrowdfundingFailed     CrowdfundingStatus = "failed"
)

// Product represents an entry in the product registry.
type Product struct {
	ID                 int64
	Name               string
	CreatorID          int64
	FactoryID          *int64
	CrowdfundingStatus CrowdfundingStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
