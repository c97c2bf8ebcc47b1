package campaigns

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cofund/cofund/internal/directory"
)

func amt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestRankRollsSubAccountsUpToParent(t *testing.T) {
	parent := int64(10)
	rows := []SupplierContribution{
		{ContributorID: 10, Role: directory.RoleSupplier, Amount: amt(200), OwnerName: "acme"},
		{ContributorID: 11, Role: directory.RoleSupplierSub, ParentID: &parent, Amount: amt(100), OwnerName: "acme"},
		{ContributorID: 20, Role: directory.RoleSupplier, Amount: amt(250), OwnerName: "globex"},
	}

	ranking := Rank(rows)
	require.Len(t, ranking, 2)
	require.Equal(t, int64(10), ranking[0].SupplierID)
	require.Equal(t, "acme", ranking[0].Name)
	require.True(t, ranking[0].Total.Equal(amt(300)))
	require.Equal(t, 1, ranking[0].Rank)
	require.Equal(t, int64(20), ranking[1].SupplierID)
	require.Equal(t, 2, ranking[1].Rank)
}

func TestRankStableOnEqualTotals(t *testing.T) {
	rows := []SupplierContribution{
		{ContributorID: 30, Role: directory.RoleSupplier, Amount: amt(500), OwnerName: "first"},
		{ContributorID: 40, Role: directory.RoleSupplier, Amount: amt(500), OwnerName: "second"},
	}

	ranking := Rank(rows)
	require.Equal(t, int64(30), ranking[0].SupplierID, "first-seen group wins the tie")
	require.Equal(t, int64(40), ranking[1].SupplierID)
}

func TestRankEmpty(t *testing.T) {
	require.Empty(t, Rank(nil))
}

func TestGroupOwnerID(t *testing.T) {
	parent := int64(7)
	require.Equal(t, int64(7), GroupOwnerID(8, directory.RoleSupplierSub, &parent))
	require.Equal(t, int64(8), GroupOwnerID(8, directory.RoleSupplierSub, nil))
	require.Equal(t, int64(8), GroupOwnerID(8, directory.RoleSupplier, &parent))
}

func TestGroupTotal(t *testing.T) {
	ranking := []SupplierRank{
		{SupplierID: 1, Total: amt(300)},
		{SupplierID: 2, Total: amt(100)},
	}
	require.True(t, GroupTotal(ranking, 2).Equal(amt(100)))
	require.True(t, GroupTotal(ranking, 99).IsZero())
}
