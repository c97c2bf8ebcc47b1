package campaigns

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cofund/cofund/internal/directory"
)

// GroupOwnerID resolves the bidding unit a contributor belongs to: a
// sub-account rolls up to its organizational parent, everyone else is
// their own group.
func GroupOwnerID(id int64, role directory.Role, parentID *int64) int64 {
	if role == directory.RoleSupplierSub && parentID != nil {
		return *parentID
	}
	return id
}

// Rank aggregates supplier-family contributions per owning supplier and
// orders groups by descending total. Sorting is stable, so groups with
// equal totals keep first-seen order; equal totals across groups are a
// precondition violation upstream and never expected here.
func Rank(rows []SupplierContribution) []SupplierRank {
	totals := make(map[int64]*SupplierRank)
	var order []int64

	for _, row := range rows {
		ownerID := GroupOwnerID(row.ContributorID, row.Role, row.ParentID)
		entry, ok := totals[ownerID]
		if !ok {
			entry = &SupplierRank{SupplierID: ownerID, Name: row.OwnerName, Total: decimal.Zero}
			totals[ownerID] = entry
			order = append(order, ownerID)
		}
		entry.Total = entry.Total.Add(row.Amount)
	}

	ranking := make([]SupplierRank, 0, len(order))
	for _, id := range order {
		ranking = append(ranking, *totals[id])
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Total.GreaterThan(ranking[j].Total)
	})
	for i := range ranking {
		ranking[i].Rank = i + 1
	}
	return ranking
}

// GroupTotal returns the aggregated total for one supplier group.
func GroupTotal(ranking []SupplierRank, supplierID int64) decimal.Decimal {
	for _, r := range ranking {
		if r.SupplierID == supplierID {
			return r.Total
		}
	}
	return decimal.Zero
}
