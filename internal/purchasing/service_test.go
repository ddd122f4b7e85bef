package purchasing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medichain-erp/medichain-erp/internal/approval"
	"github.com/medichain-erp/medichain-erp/internal/directory"
	"github.com/medichain-erp/medichain-erp/internal/ledger/journals"
	"github.com/medichain-erp/medichain-erp/internal/shared"
)

type memoryPORepo struct {
	nextID    int64
	orders    map[int64]*PurchaseOrder
	items     map[int64][]POItem
	approvals map[int64][]ApprovalRecord
	seq       map[string]int64
}

func newMemoryPORepo() *memoryPORepo {
	return &memoryPORepo{
		orders:    make(map[int64]*PurchaseOrder),
		items:     make(map[int64][]POItem),
		approvals: make(map[int64][]ApprovalRecord),
		seq:       make(map[string]int64),
	}
}

func (m *memoryPORepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryPORepo) GetPO(_ context.Context, id int64) (PurchaseOrder, []POItem, error) {
	po, ok := m.orders[id]
	if !ok {
		return PurchaseOrder{}, nil, shared.ErrNotFound
	}
	return *po, m.items[id], nil
}

func (m *memoryPORepo) ListApprovals(_ context.Context, poID int64) ([]ApprovalRecord, error) {
	return m.approvals[poID], nil
}

func (m *memoryPORepo) NextPONumber(_ context.Context, tenantID int64, period int) (string, error) {
	key := fmt.Sprintf("%d:%d", tenantID, period)
	m.seq[key]++
	return fmt.Sprintf("PO-%d-%04d", period, m.seq[key]), nil
}

func (m *memoryPORepo) InsertPO(_ context.Context, po PurchaseOrder) (int64, error) {
	m.nextID++
	po.ID = m.nextID
	m.orders[po.ID] = &po
	return po.ID, nil
}

func (m *memoryPORepo) InsertItem(_ context.Context, item POItem) error {
	m.items[item.POID] = append(m.items[item.POID], item)
	return nil
}

func (m *memoryPORepo) InsertApproval(_ context.Context, rec ApprovalRecord) error {
	rec.ID = int64(len(m.approvals[rec.POID]) + 1)
	m.approvals[rec.POID] = append(m.approvals[rec.POID], rec)
	return nil
}

func (m *memoryPORepo) GetPOForUpdate(_ context.Context, id int64) (PurchaseOrder, error) {
	po, ok := m.orders[id]
	if !ok {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	return *po, nil
}

func (m *memoryPORepo) UpdatePOState(_ context.Context, id int64, stage POStage, approverID *int64, level int, status POStatus) error {
	po, ok := m.orders[id]
	if !ok {
		return shared.ErrNotFound
	}
	po.Stage = stage
	po.CurrentApproverID = approverID
	po.ApprovalLevel = level
	po.Status = status
	return nil
}

func (m *memoryPORepo) SetApprovalStatus(_ context.Context, poID int64, level int, approverID int64, status ApprovalStatus, comments string, actedAt time.Time) error {
	records := m.approvals[poID]
	for i := range records {
		if records[i].Level == level && records[i].ApproverID == approverID && records[i].Status == ApprovalStatusPending {
			records[i].Status = status
			records[i].Comments = comments
			records[i].ActedAt = &actedAt
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memoryPORepo) SetExecuted(_ context.Context, poID, executorID int64) error {
	po, ok := m.orders[poID]
	if !ok {
		return shared.ErrNotFound
	}
	po.ExecutedBy = &executorID
	return nil
}

func (m *memoryPORepo) SetReceiptState(_ context.Context, poID int64, accountant, unit bool, status POStatus) error {
	po, ok := m.orders[poID]
	if !ok {
		return shared.ErrNotFound
	}
	po.AccountantConfirmed = accountant
	po.UnitConfirmed = unit
	po.Status = status
	return nil
}

type fakeResolver struct {
	manager    *directory.User
	accountant *directory.User
	authority  *directory.User
}

func (f *fakeResolver) ManagerOf(context.Context, int64) (directory.User, error) {
	if f.manager == nil {
		return directory.User{}, shared.ErrNoApprover
	}
	return *f.manager, nil
}

func (f *fakeResolver) AccountantFor(context.Context, int64, int64) (directory.User, error) {
	if f.accountant == nil {
		return directory.User{}, shared.ErrNoApprover
	}
	return *f.accountant, nil
}

func (f *fakeResolver) AuthorityFor(context.Context, int64, int64, float64) (directory.User, error) {
	if f.authority == nil {
		return directory.User{}, shared.ErrNoApprover
	}
	return *f.authority, nil
}

type capturePosting struct {
	calls []journals.SourceEventInput
	err   error
}

func (c *capturePosting) PostSourceEvent(_ context.Context, input journals.SourceEventInput) (journals.JournalEntry, error) {
	if c.err != nil {
		return journals.JournalEntry{}, c.err
	}
	c.calls = append(c.calls, input)
	return journals.JournalEntry{ID: int64(len(c.calls)), Status: journals.JournalStatusPosted}, nil
}

type captureEvents struct {
	events []approval.Event
}

func (c *captureEvents) Record(_ context.Context, evt approval.Event) error {
	c.events = append(c.events, evt)
	return nil
}

func fullResolver() *fakeResolver {
	return &fakeResolver{
		manager:    &directory.User{ID: 11, Role: directory.RoleBranchManager},
		accountant: &directory.User{ID: 22, Role: directory.RoleAccountant},
		authority:  &directory.User{ID: 33, Role: directory.RoleDirector},
	}
}

func newPOService(repo *memoryPORepo, resolver *fakeResolver, posting *capturePosting, events *captureEvents) *Service {
	var postingPort PostingPort
	if posting != nil {
		postingPort = posting
	}
	var eventPort EventPort
	if events != nil {
		eventPort = events
	}
	svc := NewService(repo, resolver, postingPort, eventPort, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) })
	return svc
}

type fakeIdem struct {
	keys    map[string]string
	deleted []string
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{keys: make(map[string]string)}
}

func (f *fakeIdem) CheckAndInsert(_ context.Context, key, module string) error {
	if _, ok := f.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = module
	return nil
}

func (f *fakeIdem) Delete(_ context.Context, key string) error {
	delete(f.keys, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func createInput() CreatePOInput {
	return CreatePOInput{
		TenantID:    1,
		BranchID:    2,
		RequesterID: 7,
		Vendor:      "Medika Supplies",
		Items: []ItemInput{
			{Description: "Reagent kit", Qty: 4, UnitPrice: 150},
			{Description: "Sample tubes", Qty: 100, UnitPrice: 1.5},
		},
	}
}

func TestCreateAssignsUnitManager(t *testing.T) {
	repo := newMemoryPORepo()
	events := &captureEvents{}
	svc := newPOService(repo, fullResolver(), nil, events)

	po, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)
	require.Equal(t, "PO-202603-0001", po.Number)
	require.Equal(t, 750.0, po.Total)
	require.Equal(t, StageUnitManagerReview, po.Stage)
	require.Equal(t, POStatusPending, po.Status)
	require.NotNil(t, po.CurrentApproverID)
	require.Equal(t, int64(11), *po.CurrentApproverID)
	require.Equal(t, 1, po.ApprovalLevel)

	records, err := svc.Approvals(context.Background(), po.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, ApprovalStatusPending, records[0].Status)
	require.Equal(t, int64(11), records[0].ApproverID)

	require.Len(t, events.events, 1)
	require.Equal(t, approval.ActionSubmit, events.events[0].Action)
}

func TestApproveFullChain(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newPOService(repo, fullResolver(), nil, &captureEvents{})

	po, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)

	// Unit manager, then accountant, then authority.
	decision, err := svc.Approve(context.Background(), po.ID, 11, "ok")
	require.NoError(t, err)
	require.Equal(t, StageAccountantReview, decision.Stage)
	require.Equal(t, int64(22), *decision.ApproverID)

	decision, err = svc.Approve(context.Background(), po.ID, 22, "budget ok")
	require.NoError(t, err)
	require.Equal(t, StageAuthorityReview, decision.Stage)
	require.Equal(t, int64(33), *decision.ApproverID)

	decision, err = svc.Approve(context.Background(), po.ID, 33, "approved")
	require.NoError(t, err)
	require.Equal(t, StageManagerExecution, decision.Stage)
	require.Equal(t, int64(11), *decision.ApproverID)

	// Manager execution concludes the chain.
	decision, err = svc.Approve(context.Background(), po.ID, 11, "purchased")
	require.NoError(t, err)
	require.Equal(t, StageDeliveryPending, decision.Stage)
	require.Equal(t, POStatusApproved, decision.Status)
	require.Nil(t, decision.ApproverID)

	got, _, err := svc.Get(context.Background(), po.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExecutedBy)
	require.Equal(t, int64(11), *got.ExecutedBy)
	require.Nil(t, got.CurrentApproverID)
}

func TestApproveWrongApprover(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newPOService(repo, fullResolver(), nil, nil)

	po, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), po.ID, 99, "")
	require.ErrorIs(t, err, shared.ErrNotAssigned)
}

func TestRejectIsTerminal(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newPOService(repo, fullResolver(), nil, &captureEvents{})

	po, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), po.ID, 11, "ok")
	require.NoError(t, err)

	require.NoError(t, svc.Reject(context.Background(), po.ID, 22, "over budget"))

	got, _, err := svc.Get(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusRejected, got.Status)
	require.Nil(t, got.CurrentApproverID)

	// No stage can act on a rejected order.
	_, err = svc.Approve(context.Background(), po.ID, 33, "")
	require.ErrorIs(t, err, shared.ErrInvalidState)
	err = svc.Reject(context.Background(), po.ID, 33, "")
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestMissingAccountantStageSkipped(t *testing.T) {
	repo := newMemoryPORepo()
	resolver := fullResolver()
	resolver.accountant = nil
	events := &captureEvents{}
	svc := newPOService(repo, resolver, nil, events)

	po, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)

	decision, err := svc.Approve(context.Background(), po.ID, 11, "ok")
	require.NoError(t, err)
	require.Equal(t, StageAuthorityReview, decision.Stage)
	require.Equal(t, int64(33), *decision.ApproverID)

	records, err := svc.Approvals(context.Background(), po.ID)
	require.NoError(t, err)
	var skipped bool
	for _, rec := range records {
		if rec.Stage == StageAccountantReview {
			require.Equal(t, ApprovalStatusSkipped, rec.Status)
			skipped = true
		}
	}
	require.True(t, skipped)
}

func TestNoApproversAutoApproves(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newPOService(repo, &fakeResolver{}, nil, &captureEvents{})

	po, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)
	require.Equal(t, POStatusApproved, po.Status)
	require.Equal(t, StageDeliveryPending, po.Stage)
	require.Nil(t, po.CurrentApproverID)

	records, err := svc.Approvals(context.Background(), po.ID)
	require.NoError(t, err)
	require.Len(t, records, 4)
	for _, rec := range records {
		require.Equal(t, ApprovalStatusSkipped, rec.Status)
	}
}

func TestReceiptConfirmationPostsOnceComplete(t *testing.T) {
	repo := newMemoryPORepo()
	posting := &capturePosting{}
	svc := newPOService(repo, fullResolver(), posting, &captureEvents{})

	po, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)
	for _, approver := range []int64{11, 22, 33, 11} {
		_, err = svc.Approve(context.Background(), po.ID, approver, "")
		require.NoError(t, err)
	}

	require.NoError(t, svc.ConfirmReceived(context.Background(), po.ID, 22, ReceiptSideAccountant))
	got, _, err := svc.Get(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusPartiallyReceived, got.Status)
	require.Empty(t, posting.calls)

	require.NoError(t, svc.ConfirmReceived(context.Background(), po.ID, 7, ReceiptSideUnit))
	got, _, err = svc.Get(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusCompleted, got.Status)

	require.Len(t, posting.calls, 1)
	require.Equal(t, journals.SourcePOReceipt, posting.calls[0].SourceType)
	require.Equal(t, 750.0, posting.calls[0].Amount)
	require.Equal(t, poRefID(po.ID), posting.calls[0].SourceID)
}

func TestReceiptReplayTolerated(t *testing.T) {
	repo := newMemoryPORepo()
	posting := &capturePosting{}
	svc := newPOService(repo, fullResolver(), posting, nil)

	po, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)
	for _, approver := range []int64{11, 22, 33, 11} {
		_, err = svc.Approve(context.Background(), po.ID, approver, "")
		require.NoError(t, err)
	}
	require.NoError(t, svc.ConfirmReceived(context.Background(), po.ID, 22, ReceiptSideAccountant))
	require.NoError(t, svc.ConfirmReceived(context.Background(), po.ID, 7, ReceiptSideUnit))

	// A second unit confirmation finds the order completed.
	err = svc.ConfirmReceived(context.Background(), po.ID, 7, ReceiptSideUnit)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// A duplicate ledger link from a retried commit is not an error.
	posting.err = shared.ErrSourceAlreadyLinked
	repo.orders[po.ID].Status = POStatusPartiallyReceived
	require.NoError(t, svc.ConfirmReceived(context.Background(), po.ID, 7, ReceiptSideUnit))
}

func TestReceiptConfirmationIdempotencyKey(t *testing.T) {
	repo := newMemoryPORepo()
	idem := newFakeIdem()
	svc := NewService(repo, fullResolver(), nil, nil, idem, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) })

	po, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)
	for _, approver := range []int64{11, 22, 33, 11} {
		_, err = svc.Approve(context.Background(), po.ID, approver, "")
		require.NoError(t, err)
	}

	require.NoError(t, svc.ConfirmReceived(context.Background(), po.ID, 22, ReceiptSideAccountant))

	// A retried accountant confirmation is refused before touching the order.
	err = svc.ConfirmReceived(context.Background(), po.ID, 22, ReceiptSideAccountant)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Equal(t, POStatusPartiallyReceived, repo.orders[po.ID].Status)

	// The other side carries its own key and proceeds.
	require.NoError(t, svc.ConfirmReceived(context.Background(), po.ID, 7, ReceiptSideUnit))

	// A confirmation that fails in the store releases its key for retry.
	po2, err := svc.Create(context.Background(), createInput())
	require.NoError(t, err)
	err = svc.ConfirmReceived(context.Background(), po2.ID, 22, ReceiptSideAccountant)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Contains(t, idem.deleted, fmt.Sprintf("PO-RECEIPT:%s:%s", po2.Number, ReceiptSideAccountant))
}

func TestCreateValidation(t *testing.T) {
	repo := newMemoryPORepo()
	svc := newPOService(repo, fullResolver(), nil, nil)

	input := createInput()
	input.Vendor = ""
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = createInput()
	input.Items = nil
	_, err = svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
}
