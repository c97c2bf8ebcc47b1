package funds

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cofund/cofund/internal/directory"
	"github.com/cofund/cofund/internal/periods"
	"github.com/cofund/cofund/internal/shared"
)

type memoryFundsRepo struct {
	applications  map[int64]Application
	approvals     []Approval
	users         map[int64]directory.User
	campaignTitle map[int64]string
	contributed   map[int64]map[int64]bool
	successTotals map[int64]decimal.Decimal
	nextID        int64
}

func newMemoryFundsRepo() *memoryFundsRepo {
	return &memoryFundsRepo{
		applications:  make(map[int64]Application),
		users:         make(map[int64]directory.User),
		campaignTitle: make(map[int64]string),
		contributed:   make(map[int64]map[int64]bool),
		successTotals: make(map[int64]decimal.Decimal),
	}
}

func (r *memoryFundsRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryFundsRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryFundsTx{repo: r})
}

func (r *memoryFundsRepo) GetApplication(ctx context.Context, id int64) (Application, error) {
	a, ok := r.applications[id]
	if !ok {
		return Application{}, fmt.Errorf("funds: application %d: %w", id, shared.ErrNotFound)
	}
	return a, nil
}

func (r *memoryFundsRepo) detail(a Application) ApplicationDetail {
	applicant := r.users[a.ApplicantID]
	d := ApplicationDetail{
		Application:   a,
		ApplicantName: applicant.Username,
		ApplicantRole: string(applicant.Role),
		CampaignTitle: r.campaignTitle[a.CampaignID],
	}
	if a.CurrentApproverID != nil {
		approver := r.users[*a.CurrentApproverID]
		name := approver.Username
		role := string(approver.Role)
		d.ApproverName = &name
		d.ApproverRole = &role
	}
	for _, v := range r.approvals {
		if v.ApplicationID != a.ID {
			continue
		}
		u := r.users[v.ApproverID]
		d.Approvals = append(d.Approvals, ApprovalDetail{
			Approval:     v,
			ApproverName: u.Username,
			ApproverRole: string(u.Role),
		})
	}
	return d
}

func (r *memoryFundsRepo) GetDetail(ctx context.Context, id int64) (ApplicationDetail, error) {
	a, err := r.GetApplication(ctx, id)
	if err != nil {
		return ApplicationDetail{}, err
	}
	return r.detail(a), nil
}

func (r *memoryFundsRepo) ListApplications(ctx context.Context, filter ListFilter) ([]ApplicationDetail, int, error) {
	var list []ApplicationDetail
	for _, a := range r.applications {
		if filter.PeriodID != 0 && a.PeriodID != filter.PeriodID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.ApplicantID != 0 && a.ApplicantID != filter.ApplicantID {
			continue
		}
		if filter.ViewerID != 0 {
			mine := a.ApplicantID == filter.ViewerID ||
				(a.CurrentApproverID != nil && *a.CurrentApproverID == filter.ViewerID)
			if !mine {
				continue
			}
		}
		list = append(list, r.detail(a))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, len(list), nil
}

func (r *memoryFundsRepo) ListPending(ctx context.Context, approverID int64) ([]ApplicationDetail, error) {
	var list []ApplicationDetail
	for _, a := range r.applications {
		if a.Status == StatusPending && a.CurrentApproverID != nil && *a.CurrentApproverID == approverID {
			list = append(list, r.detail(a))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *memoryFundsRepo) SumSuccessTotals(ctx context.Context, periodID int64) (decimal.Decimal, error) {
	if total, ok := r.successTotals[periodID]; ok {
		return total, nil
	}
	return decimal.Zero, nil
}

func (r *memoryFundsRepo) SumApprovedAmounts(ctx context.Context, periodID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, a := range r.applications {
		if a.PeriodID == periodID && a.Status == StatusApproved {
			sum = sum.Add(a.Amount)
		}
	}
	return sum, nil
}

type memoryFundsTx struct {
	repo *memoryFundsRepo
}

func (t *memoryFundsTx) CreateApplication(ctx context.Context, a Application) (Application, error) {
	a.ID = t.repo.id()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	t.repo.applications[a.ID] = a
	return a, nil
}

func (t *memoryFundsTx) GetApplicationForUpdate(ctx context.Context, id int64) (Application, error) {
	return t.repo.GetApplication(ctx, id)
}

func (t *memoryFundsTx) InsertApproval(ctx context.Context, a Approval) (Approval, error) {
	a.ID = t.repo.id()
	a.CreatedAt = time.Now()
	t.repo.approvals = append(t.repo.approvals, a)
	return a, nil
}

func (t *memoryFundsTx) SetDecision(ctx context.Context, id int64, status Status, approverID *int64) error {
	a := t.repo.applications[id]
	a.Status = status
	a.CurrentApproverID = approverID
	a.UpdatedAt = time.Now()
	t.repo.applications[id] = a
	return nil
}

type fundsDirectory struct {
	repo *memoryFundsRepo
}

func (f fundsDirectory) GetUser(ctx context.Context, id int64) (directory.User, error) {
	u, ok := f.repo.users[id]
	if !ok {
		return directory.User{}, fmt.Errorf("directory: user %d: %w", id, shared.ErrNotFound)
	}
	return u, nil
}

func (f fundsDirectory) FindFirstActiveByRole(ctx context.Context, role directory.Role) (directory.User, error) {
	ids := make([]int64, 0, len(f.repo.users))
	for id := range f.repo.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		u := f.repo.users[id]
		if u.Role == role && u.IsActive() {
			return u, nil
		}
	}
	return directory.User{}, fmt.Errorf("directory: no active %s: %w", role, shared.ErrNotFound)
}

type fundsPeriods struct {
	period periods.Period
}

func (f fundsPeriods) Current(ctx context.Context) (periods.Period, error) {
	return f.period, nil
}

func (f fundsPeriods) Get(ctx context.Context, id int64) (periods.Period, error) {
	if id != f.period.ID {
		return periods.Period{}, fmt.Errorf("periods: period %d: %w", id, shared.ErrNotFound)
	}
	return f.period, nil
}

type fundsLedger struct {
	repo *memoryFundsRepo
}

func (f fundsLedger) HasContribution(ctx context.Context, campaignID, userID int64) (bool, error) {
	if _, ok := f.repo.campaignTitle[campaignID]; !ok {
		return false, fmt.Errorf("campaigns: campaign %d: %w", campaignID, shared.ErrNotFound)
	}
	return f.repo.contributed[campaignID][userID], nil
}

type fundsAudit struct {
	events []shared.AuditEvent
}

func (f *fundsAudit) Record(ctx context.Context, event shared.AuditEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fundsFixture struct {
	repo    *memoryFundsRepo
	audit   *fundsAudit
	service *Service
}

func newFundsFixture() *fundsFixture {
	repo := newMemoryFundsRepo()
	audit := &fundsAudit{}
	svc := NewService(repo, fundsDirectory{repo: repo},
		fundsPeriods{period: periods.Period{ID: 1, Number: 1, Status: periods.StatusActive}},
		fundsLedger{repo: repo}, nil, audit, nil)
	return &fundsFixture{repo: repo, audit: audit, service: svc}
}

func (f *fundsFixture) addUser(id int64, name string, role directory.Role, parentID *int64) shared.Actor {
	f.repo.users[id] = directory.User{ID: id, Username: name, Role: role, ParentID: parentID, Status: directory.StatusActive}
	if id > f.repo.nextID {
		f.repo.nextID = id
	}
	return shared.Actor{ID: id, Name: name, Role: string(role)}
}

func (f *fundsFixture) addCampaign(id int64, title string, contributors ...int64) {
	f.repo.campaignTitle[id] = title
	f.repo.contributed[id] = make(map[int64]bool)
	for _, c := range contributors {
		f.repo.contributed[id][c] = true
	}
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestCreateResolvesParentAsFirstApprover(t *testing.T) {
	f := newFundsFixture()
	f.addUser(1, "boss", directory.RoleAdmin, nil)
	parent := int64(1)
	applicant := f.addUser(2, "rep", directory.RoleSales, &parent)
	f.addCampaign(10, "widget fund", 2)

	detail, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, applicant)
	require.NoError(t, err)
	require.Equal(t, StatusPending, detail.Status)
	require.NotNil(t, detail.CurrentApproverID)
	require.Equal(t, int64(1), *detail.CurrentApproverID)
}

func TestCreateFallsBackToActiveRoleHolder(t *testing.T) {
	f := newFundsFixture()
	f.addUser(1, "boss", directory.RoleAdmin, nil)
	applicant := f.addUser(2, "rep", directory.RoleSales, nil)
	f.addCampaign(10, "widget fund", 2)

	detail, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, applicant)
	require.NoError(t, err)
	require.Equal(t, StatusPending, detail.Status)
	require.Equal(t, int64(1), *detail.CurrentApproverID)
}

func TestCreateImplicitApprovalWhenChainEnds(t *testing.T) {
	f := newFundsFixture()
	applicant := f.addUser(1, "root", directory.RoleSuperAdmin, nil)
	f.addCampaign(10, "widget fund", 1)

	detail, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, applicant)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, detail.Status)
	require.Nil(t, detail.CurrentApproverID)
}

func TestCreateImplicitApprovalWhenNoApproverExists(t *testing.T) {
	f := newFundsFixture()
	applicant := f.addUser(1, "rep", directory.RoleSales, nil)
	f.addCampaign(10, "widget fund", 1)

	// No admin anywhere in the directory.
	detail, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, applicant)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, detail.Status)
	require.Nil(t, detail.CurrentApproverID)
}

func TestCreateRequiresContribution(t *testing.T) {
	f := newFundsFixture()
	f.addUser(1, "boss", directory.RoleAdmin, nil)
	applicant := f.addUser(2, "rep", directory.RoleSales, nil)
	f.addCampaign(10, "widget fund")

	_, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, applicant)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateUnknownCampaign(t *testing.T) {
	f := newFundsFixture()
	applicant := f.addUser(1, "rep", directory.RoleSales, nil)

	_, err := f.service.Create(context.Background(), CreateInput{CampaignID: 99, Amount: money(500), Reason: "samples"}, applicant)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApprovalAdvancesThroughChain(t *testing.T) {
	f := newFundsFixture()
	super := f.addUser(1, "root", directory.RoleSuperAdmin, nil)
	admin := f.addUser(2, "boss", directory.RoleAdmin, nil)
	adminID := int64(2)
	applicant := f.addUser(3, "rep", directory.RoleSales, &adminID)
	f.addCampaign(10, "widget fund", 3)

	detail, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, applicant)
	require.NoError(t, err)
	require.Equal(t, int64(2), *detail.CurrentApproverID)

	// Admin approves: the chain keyed by admin points at super_admin.
	detail, err = f.service.Decide(context.Background(), detail.ID, ActionApprove, "looks fine", admin)
	require.NoError(t, err)
	require.Equal(t, StatusPending, detail.Status)
	require.Equal(t, int64(1), *detail.CurrentApproverID)

	// Super admin approves: chain ends, application approved.
	detail, err = f.service.Decide(context.Background(), detail.ID, ActionApprove, "", super)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, detail.Status)
	require.Nil(t, detail.CurrentApproverID)
	require.Len(t, detail.Approvals, 2)
	require.Equal(t, "boss", detail.Approvals[0].ApproverName)
}

func TestApprovalImplicitWhenNextApproverMissing(t *testing.T) {
	f := newFundsFixture()
	admin := f.addUser(1, "boss", directory.RoleAdmin, nil)
	adminID := int64(1)
	applicant := f.addUser(2, "rep", directory.RoleSales, &adminID)
	f.addCampaign(10, "widget fund", 2)

	detail, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, applicant)
	require.NoError(t, err)

	// No super_admin exists, so the admin's approval exhausts the chain.
	detail, err = f.service.Decide(context.Background(), detail.ID, ActionApprove, "", admin)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, detail.Status)
	require.Nil(t, detail.CurrentApproverID)
}

func TestRejectTerminatesImmediately(t *testing.T) {
	f := newFundsFixture()
	admin := f.addUser(1, "boss", directory.RoleAdmin, nil)
	adminID := int64(1)
	applicant := f.addUser(2, "rep", directory.RoleSales, &adminID)
	f.addCampaign(10, "widget fund", 2)

	detail, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, applicant)
	require.NoError(t, err)

	detail, err = f.service.Decide(context.Background(), detail.ID, ActionReject, "over budget", admin)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, detail.Status)
	require.Nil(t, detail.CurrentApproverID)

	_, err = f.service.Decide(context.Background(), detail.ID, ActionApprove, "", admin)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestDecideOnlyByCurrentApprover(t *testing.T) {
	f := newFundsFixture()
	f.addUser(1, "boss", directory.RoleAdmin, nil)
	other := f.addUser(2, "other", directory.RoleAdmin, nil)
	adminID := int64(1)
	applicant := f.addUser(3, "rep", directory.RoleSales, &adminID)
	f.addCampaign(10, "widget fund", 3)

	detail, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, applicant)
	require.NoError(t, err)

	_, err = f.service.Decide(context.Background(), detail.ID, ActionApprove, "", other)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestSuperAdminOverridesApprover(t *testing.T) {
	f := newFundsFixture()
	super := f.addUser(1, "root", directory.RoleSuperAdmin, nil)
	f.addUser(2, "boss", directory.RoleAdmin, nil)
	adminID := int64(2)
	applicant := f.addUser(3, "rep", directory.RoleSales, &adminID)
	f.addCampaign(10, "widget fund", 3)

	detail, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, applicant)
	require.NoError(t, err)
	require.Equal(t, int64(2), *detail.CurrentApproverID)

	detail, err = f.service.Decide(context.Background(), detail.ID, ActionReject, "override", super)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, detail.Status)
}

func TestCancelPendingApplication(t *testing.T) {
	f := newFundsFixture()
	admin := f.addUser(1, "boss", directory.RoleAdmin, nil)
	adminID := int64(1)
	applicant := f.addUser(2, "rep", directory.RoleSales, &adminID)
	f.addCampaign(10, "widget fund", 2)

	detail, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, applicant)
	require.NoError(t, err)

	require.NoError(t, f.service.Cancel(context.Background(), detail.ID, applicant))
	cancelled, err := f.repo.GetApplication(context.Background(), detail.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Nil(t, cancelled.CurrentApproverID)

	// A decision on a cancelled application is rejected outright.
	_, err = f.service.Decide(context.Background(), detail.ID, ActionApprove, "", admin)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCancelOnlyByApplicant(t *testing.T) {
	f := newFundsFixture()
	admin := f.addUser(1, "boss", directory.RoleAdmin, nil)
	adminID := int64(1)
	applicant := f.addUser(2, "rep", directory.RoleSales, &adminID)
	f.addCampaign(10, "widget fund", 2)

	detail, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, applicant)
	require.NoError(t, err)
	require.ErrorIs(t, f.service.Cancel(context.Background(), detail.ID, admin), shared.ErrForbidden)
}

func TestListScopesToApplicantOrApprover(t *testing.T) {
	f := newFundsFixture()
	super := f.addUser(1, "root", directory.RoleSuperAdmin, nil)
	admin := f.addUser(2, "boss", directory.RoleAdmin, nil)
	adminID := int64(2)
	rep := f.addUser(3, "rep", directory.RoleSales, &adminID)
	outsider := f.addUser(4, "dev", directory.RoleProductDev, &adminID)
	f.addCampaign(10, "widget fund", 3)

	_, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(500), Reason: "samples"}, rep)
	require.NoError(t, err)

	mine, _, err := f.service.List(context.Background(), ListFilter{}, 1, 20, rep)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	toApprove, _, err := f.service.List(context.Background(), ListFilter{}, 1, 20, admin)
	require.NoError(t, err)
	require.Len(t, toApprove, 1)

	none, _, err := f.service.List(context.Background(), ListFilter{}, 1, 20, outsider)
	require.NoError(t, err)
	require.Empty(t, none)

	all, _, err := f.service.List(context.Background(), ListFilter{}, 1, 20, super)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestPendingForMeOldestFirst(t *testing.T) {
	f := newFundsFixture()
	admin := f.addUser(1, "boss", directory.RoleAdmin, nil)
	adminID := int64(1)
	rep := f.addUser(2, "rep", directory.RoleSales, &adminID)
	f.addCampaign(10, "widget fund", 2)
	f.addCampaign(11, "gadget fund", 2)

	first, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(100), Reason: "a"}, rep)
	require.NoError(t, err)
	second, err := f.service.Create(context.Background(), CreateInput{CampaignID: 11, Amount: money(200), Reason: "b"}, rep)
	require.NoError(t, err)

	pending, err := f.service.PendingForMe(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].ID)
	require.Equal(t, second.ID, pending[1].ID)
}

func TestOverviewRates(t *testing.T) {
	f := newFundsFixture()
	admin := f.addUser(1, "boss", directory.RoleAdmin, nil)
	adminID := int64(1)
	rep := f.addUser(2, "rep", directory.RoleSales, &adminID)
	f.addCampaign(10, "widget fund", 2)
	f.repo.successTotals[1] = money(4000)

	detail, err := f.service.Create(context.Background(), CreateInput{CampaignID: 10, Amount: money(1000), Reason: "samples"}, rep)
	require.NoError(t, err)
	_, err = f.service.Decide(context.Background(), detail.ID, ActionApprove, "", admin)
	require.NoError(t, err)

	period, overview, err := f.service.Overview(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), period.ID)
	require.True(t, overview.TotalAmount.Equal(money(4000)))
	require.True(t, overview.UsedAmount.Equal(money(1000)))
	require.True(t, overview.RemainingAmount.Equal(money(3000)))
	require.True(t, overview.UsageRate.Equal(money(25)))
}

func TestOverviewZeroTotal(t *testing.T) {
	f := newFundsFixture()

	_, overview, err := f.service.Overview(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, overview.UsageRate.IsZero())
	require.True(t, overview.RemainingAmount.IsZero())
}
