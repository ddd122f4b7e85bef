package pettycash

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medichain-erp/medichain-erp/internal/approval"
	"github.com/medichain-erp/medichain-erp/internal/ledger/journals"
	"github.com/medichain-erp/medichain-erp/internal/shared"
)

type memoryCashRepo struct {
	nextFundID    int64
	nextTxID      int64
	nextStepID    int64
	nextVoucherID int64
	funds         map[int64]*Fund
	transactions  map[int64]*Transaction
	steps         map[int64][]Step
	vouchers      map[int64]*Voucher
	seq           map[string]int64
	inTx          bool
}

func newMemoryCashRepo() *memoryCashRepo {
	return &memoryCashRepo{
		funds:        make(map[int64]*Fund),
		transactions: make(map[int64]*Transaction),
		steps:        make(map[int64][]Step),
		vouchers:     make(map[int64]*Voucher),
		seq:          make(map[string]int64),
	}
}

func (m *memoryCashRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.inTx = true
	defer func() { m.inTx = false }()
	return fn(ctx, m)
}

func (m *memoryCashRepo) GetFund(_ context.Context, id int64) (Fund, error) {
	fund, ok := m.funds[id]
	if !ok {
		return Fund{}, shared.ErrNotFound
	}
	return *fund, nil
}

func (m *memoryCashRepo) GetTransaction(_ context.Context, id int64) (Transaction, error) {
	txn, ok := m.transactions[id]
	if !ok {
		return Transaction{}, shared.ErrNotFound
	}
	return *txn, nil
}

func (m *memoryCashRepo) GetVoucher(_ context.Context, id int64) (Voucher, error) {
	voucher, ok := m.vouchers[id]
	if !ok {
		return Voucher{}, shared.ErrNotFound
	}
	return *voucher, nil
}

func (m *memoryCashRepo) GetVoucherByTransaction(_ context.Context, txID int64) (Voucher, error) {
	for _, voucher := range m.vouchers {
		if voucher.TransactionID == txID {
			return *voucher, nil
		}
	}
	return Voucher{}, shared.ErrNotFound
}

func (m *memoryCashRepo) ListSteps(_ context.Context, txID int64) ([]Step, error) {
	return m.steps[txID], nil
}

func (m *memoryCashRepo) FundMovementTotals(_ context.Context, fundID int64) (float64, float64, error) {
	if !m.inTx {
		return 0, 0, fmt.Errorf("movement totals read outside a transaction")
	}
	var replenished, disbursed float64
	for _, txn := range m.transactions {
		if txn.FundID != fundID || txn.Status != TxStatusDisbursed {
			continue
		}
		switch txn.Type {
		case TypeReplenishment:
			replenished += txn.Amount
		case TypeExpense:
			disbursed += txn.Amount
		}
	}
	return replenished, disbursed, nil
}

func (m *memoryCashRepo) NextNumber(_ context.Context, tenantID int64, kind string, period int) (int64, error) {
	key := fmt.Sprintf("%d:%s:%d", tenantID, kind, period)
	m.seq[key]++
	return m.seq[key], nil
}

func (m *memoryCashRepo) InsertFund(_ context.Context, fund Fund) (int64, error) {
	m.nextFundID++
	fund.ID = m.nextFundID
	m.funds[fund.ID] = &fund
	return fund.ID, nil
}

func (m *memoryCashRepo) InsertTransaction(_ context.Context, txn Transaction) (int64, error) {
	m.nextTxID++
	txn.ID = m.nextTxID
	m.transactions[txn.ID] = &txn
	return txn.ID, nil
}

func (m *memoryCashRepo) InsertStep(_ context.Context, step Step) error {
	m.nextStepID++
	step.ID = m.nextStepID
	m.steps[step.TransactionID] = append(m.steps[step.TransactionID], step)
	return nil
}

func (m *memoryCashRepo) InsertVoucher(_ context.Context, voucher Voucher) (int64, error) {
	m.nextVoucherID++
	voucher.ID = m.nextVoucherID
	m.vouchers[voucher.ID] = &voucher
	return voucher.ID, nil
}

func (m *memoryCashRepo) GetFundForUpdate(ctx context.Context, id int64) (Fund, error) {
	return m.GetFund(ctx, id)
}

func (m *memoryCashRepo) GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error) {
	return m.GetTransaction(ctx, id)
}

func (m *memoryCashRepo) GetVoucherForUpdate(ctx context.Context, id int64) (Voucher, error) {
	return m.GetVoucher(ctx, id)
}

func (m *memoryCashRepo) ListStepsForUpdate(ctx context.Context, txID int64) ([]Step, error) {
	return m.ListSteps(ctx, txID)
}

func (m *memoryCashRepo) SetStepStatus(_ context.Context, stepID int64, status StepStatus, comments string, actedAt time.Time) error {
	for _, steps := range m.steps {
		for i := range steps {
			if steps[i].ID == stepID && steps[i].Status == StepStatusPending {
				steps[i].Status = status
				steps[i].Comments = comments
				steps[i].ActedAt = &actedAt
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

func (m *memoryCashRepo) UpdateTransactionState(_ context.Context, id int64, status TxStatus, seq int, approverID *int64) error {
	txn, ok := m.transactions[id]
	if !ok {
		return shared.ErrNotFound
	}
	txn.Status = status
	txn.CurrentSeq = seq
	txn.CurrentApproverID = approverID
	return nil
}

func (m *memoryCashRepo) SetTransactionStatus(_ context.Context, id int64, from, to TxStatus) error {
	txn, ok := m.transactions[id]
	if !ok {
		return shared.ErrNotFound
	}
	if txn.Status != from {
		return fmt.Errorf("%w: transaction not in %s state", shared.ErrInvalidState, from)
	}
	txn.Status = to
	return nil
}

func (m *memoryCashRepo) AdjustFundBalance(_ context.Context, fundID int64, delta float64) error {
	fund, ok := m.funds[fundID]
	if !ok {
		return shared.ErrNotFound
	}
	fund.Balance += delta
	return nil
}

func (m *memoryCashRepo) MarkVoucherDisbursed(_ context.Context, id, disbursedBy int64, at time.Time) error {
	voucher, ok := m.vouchers[id]
	if !ok {
		return shared.ErrNotFound
	}
	if voucher.Status != VoucherStatusPrepared {
		return fmt.Errorf("%w: voucher not in prepared state", shared.ErrInvalidState)
	}
	voucher.Status = VoucherStatusDisbursed
	voucher.DisbursedBy = &disbursedBy
	voucher.DisbursedAt = &at
	return nil
}

func (m *memoryCashRepo) SetFundReconciled(_ context.Context, fundID int64, at time.Time) error {
	fund, ok := m.funds[fundID]
	if !ok {
		return shared.ErrNotFound
	}
	fund.LastReconciledAt = &at
	return nil
}

type fakeChain struct {
	steps []approval.ChainStep
}

func (f *fakeChain) Resolve(context.Context, int64, int64, int64, float64) ([]approval.ChainStep, error) {
	return f.steps, nil
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

type fakeLock struct {
	acquired int
	held     bool
}

func (f *fakeLock) Acquire(context.Context, int64) (func(), error) {
	if f.held {
		return nil, shared.ErrLockHeld
	}
	f.acquired++
	return func() {}, nil
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

func newCashService(repo *memoryCashRepo, chain ChainPort, posting *capturePosting, events *captureEvents, lock LockPort) *Service {
	var postingPort PostingPort
	if posting != nil {
		postingPort = posting
	}
	var eventPort EventPort
	if events != nil {
		eventPort = events
	}
	svc := NewService(repo, chain, postingPort, eventPort, lock, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) })
	return svc
}

func seedFund(t *testing.T, svc *Service, floatAmount float64) Fund {
	t.Helper()
	fund, err := svc.CreateFund(context.Background(), CreateFundInput{
		TenantID:    1,
		BranchID:    2,
		Name:        "Branch cash box",
		FloatAmount: floatAmount,
		ActorID:     5,
	})
	require.NoError(t, err)
	return fund
}

func TestSmallExpenseAutoApprovedWithVoucher(t *testing.T) {
	repo := newMemoryCashRepo()
	events := &captureEvents{}
	svc := newCashService(repo, &fakeChain{}, nil, events, nil)
	fund := seedFund(t, svc, 5000)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 500,
		Purpose: "courier fees", Category: "LOGISTICS", Payee: "City Couriers", Method: MethodCash,
	})
	require.NoError(t, err)
	require.Equal(t, "PC-2026-0001", txn.Number)
	require.Equal(t, TxStatusApproved, txn.Status)
	require.Nil(t, txn.CurrentApproverID)

	steps, err := svc.Steps(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Empty(t, steps)

	voucher, err := svc.GetVoucherByTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Equal(t, "DV-2026-0001", voucher.Number)
	require.Equal(t, VoucherStatusPrepared, voucher.Status)
	require.Equal(t, "City Couriers", voucher.Payee)
	require.Equal(t, 500.0, voucher.Amount)
	require.Equal(t, int64(7), voucher.PreparedBy)

	// Approval never moved the fund.
	got, err := svc.GetFund(context.Background(), fund.ID)
	require.NoError(t, err)
	require.Equal(t, 5000.0, got.Balance)
}

func TestExpenseChainSnapshotAndAdvance(t *testing.T) {
	repo := newMemoryCashRepo()
	chain := &fakeChain{steps: []approval.ChainStep{
		{Level: approval.LevelStaff, ApproverID: 21, AmountLimit: approval.ThresholdFinance},
		{Level: approval.LevelStaff, ApproverID: 22, AmountLimit: approval.ThresholdBranchManager},
		{Level: approval.LevelExecutive, ApproverID: 33, AmountLimit: approval.ThresholdDirector},
	}}
	svc := newCashService(repo, chain, nil, &captureEvents{}, nil)
	fund := seedFund(t, svc, 50000)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 15000, Purpose: "equipment repair",
	})
	require.NoError(t, err)
	require.Equal(t, TxStatusPending, txn.Status)
	require.Equal(t, 1, txn.CurrentSeq)
	require.Equal(t, int64(21), *txn.CurrentApproverID)

	steps, err := svc.Steps(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	// No voucher exists while the chain is still running.
	_, err = svc.GetVoucherByTransaction(context.Background(), txn.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	txn, err = svc.Approve(context.Background(), txn.ID, 21, "ok")
	require.NoError(t, err)
	require.Equal(t, 2, txn.CurrentSeq)
	require.Equal(t, int64(22), *txn.CurrentApproverID)

	txn, err = svc.Approve(context.Background(), txn.ID, 22, "ok")
	require.NoError(t, err)
	require.Equal(t, int64(33), *txn.CurrentApproverID)

	txn, err = svc.Approve(context.Background(), txn.ID, 33, "final")
	require.NoError(t, err)
	require.Equal(t, TxStatusApproved, txn.Status)
	require.Nil(t, txn.CurrentApproverID)

	// The final approval prepares the voucher.
	voucher, err := svc.GetVoucherByTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Equal(t, VoucherStatusPrepared, voucher.Status)
	require.Equal(t, int64(33), voucher.PreparedBy)
	require.Equal(t, 15000.0, voucher.Amount)
}

func TestApproveWrongApprover(t *testing.T) {
	repo := newMemoryCashRepo()
	chain := &fakeChain{steps: []approval.ChainStep{{Level: 1, ApproverID: 21, AmountLimit: approval.ThresholdFinance}}}
	svc := newCashService(repo, chain, nil, nil, nil)
	fund := seedFund(t, svc, 50000)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 6000, Purpose: "supplies",
	})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), txn.ID, 99, "")
	require.ErrorIs(t, err, shared.ErrNotAssigned)
}

func TestRejectIsTerminal(t *testing.T) {
	repo := newMemoryCashRepo()
	chain := &fakeChain{steps: []approval.ChainStep{
		{Level: 1, ApproverID: 21, AmountLimit: approval.ThresholdFinance},
		{Level: 2, ApproverID: 33, AmountLimit: approval.ThresholdDirector},
	}}
	svc := newCashService(repo, chain, nil, &captureEvents{}, nil)
	fund := seedFund(t, svc, 50000)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 12000, Purpose: "freezer parts",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Reject(context.Background(), txn.ID, 21, "no budget line"))

	got, err := svc.GetTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Equal(t, TxStatusRejected, got.Status)

	// The executive step never gets a turn.
	_, err = svc.Approve(context.Background(), txn.ID, 33, "")
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// Rejected transactions never produced a voucher to disburse.
	_, err = svc.GetVoucherByTransaction(context.Background(), txn.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDisburseMovesBalanceOnce(t *testing.T) {
	repo := newMemoryCashRepo()
	posting := &capturePosting{}
	events := &captureEvents{}
	lock := &fakeLock{}
	svc := newCashService(repo, &fakeChain{}, posting, events, lock)
	fund := seedFund(t, svc, 5000)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 800, Purpose: "cleaning",
	})
	require.NoError(t, err)
	require.Equal(t, TxStatusApproved, txn.Status)

	voucher, err := svc.GetVoucherByTransaction(context.Background(), txn.ID)
	require.NoError(t, err)

	out, err := svc.Disburse(context.Background(), voucher.ID, 5)
	require.NoError(t, err)
	require.Equal(t, VoucherStatusDisbursed, out.Status)
	require.Equal(t, int64(5), *out.DisbursedBy)
	require.NotNil(t, out.DisbursedAt)
	require.Equal(t, 1, lock.acquired)

	got, err := svc.GetFund(context.Background(), fund.ID)
	require.NoError(t, err)
	require.Equal(t, 4200.0, got.Balance)

	txnAfter, err := svc.GetTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Equal(t, TxStatusDisbursed, txnAfter.Status)

	require.Len(t, posting.calls, 1)
	require.Equal(t, journals.SourcePettyCashDisbursement, posting.calls[0].SourceType)
	require.Equal(t, 800.0, posting.calls[0].Amount)

	// Re-disbursing is refused and the balance holds.
	_, err = svc.Disburse(context.Background(), voucher.ID, 5)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	got, err = svc.GetFund(context.Background(), fund.ID)
	require.NoError(t, err)
	require.Equal(t, 4200.0, got.Balance)
}

func TestDisburseIdempotencyKey(t *testing.T) {
	repo := newMemoryCashRepo()
	idem := newFakeIdem()
	svc := NewService(repo, &fakeChain{}, nil, nil, nil, idem, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) })
	fund := seedFund(t, svc, 5000)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 800, Purpose: "cleaning",
	})
	require.NoError(t, err)
	voucher, err := svc.GetVoucherByTransaction(context.Background(), txn.ID)
	require.NoError(t, err)

	_, err = svc.Disburse(context.Background(), voucher.ID, 5)
	require.NoError(t, err)

	// A client retry is refused on the voucher key before the payout tx opens.
	_, err = svc.Disburse(context.Background(), voucher.ID, 5)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	got, err := svc.GetFund(context.Background(), fund.ID)
	require.NoError(t, err)
	require.Equal(t, 4200.0, got.Balance)

	// A payout that fails in the store releases its key for retry.
	txn2, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 9000, Purpose: "generator",
	})
	require.NoError(t, err)
	voucher2, err := svc.GetVoucherByTransaction(context.Background(), txn2.ID)
	require.NoError(t, err)
	_, err = svc.Disburse(context.Background(), voucher2.ID, 5)
	require.ErrorIs(t, err, shared.ErrInsufficientFunds)
	require.Contains(t, idem.deleted, fmt.Sprintf("DV:%s", voucher2.Number))

	// The retry goes through once the fund can cover it.
	repo.funds[fund.ID].Balance = 10000
	_, err = svc.Disburse(context.Background(), voucher2.ID, 5)
	require.NoError(t, err)
}

func TestDisburseInsufficientFunds(t *testing.T) {
	repo := newMemoryCashRepo()
	svc := newCashService(repo, &fakeChain{}, nil, nil, nil)
	fund := seedFund(t, svc, 500)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 800, Purpose: "cleaning",
	})
	require.NoError(t, err)

	voucher, err := svc.GetVoucherByTransaction(context.Background(), txn.ID)
	require.NoError(t, err)

	_, err = svc.Disburse(context.Background(), voucher.ID, 5)
	require.ErrorIs(t, err, shared.ErrInsufficientFunds)

	// Everything holds for a retry after replenishment.
	after, err := svc.GetVoucherByTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Equal(t, VoucherStatusPrepared, after.Status)
	fundAfter, err := svc.GetFund(context.Background(), fund.ID)
	require.NoError(t, err)
	require.Equal(t, 500.0, fundAfter.Balance)
}

func TestDisburseLockHeld(t *testing.T) {
	repo := newMemoryCashRepo()
	svc := newCashService(repo, &fakeChain{}, nil, nil, &fakeLock{held: true})
	fund := seedFund(t, svc, 5000)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 100, Purpose: "stamps",
	})
	require.NoError(t, err)

	voucher, err := svc.GetVoucherByTransaction(context.Background(), txn.ID)
	require.NoError(t, err)

	_, err = svc.Disburse(context.Background(), voucher.ID, 5)
	require.ErrorIs(t, err, shared.ErrLockHeld)
}

func TestReplenishmentAppliedOnApproval(t *testing.T) {
	repo := newMemoryCashRepo()
	posting := &capturePosting{}
	chain := &fakeChain{steps: []approval.ChainStep{{Level: 1, ApproverID: 21, AmountLimit: approval.ThresholdFinance}}}
	svc := newCashService(repo, chain, posting, &captureEvents{}, nil)
	fund := seedFund(t, svc, 5000)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeReplenishment, Amount: 900, Purpose: "monthly top-up",
	})
	require.NoError(t, err)
	require.Equal(t, TxStatusPending, txn.Status)

	txn, err = svc.Approve(context.Background(), txn.ID, 21, "ok")
	require.NoError(t, err)
	require.Equal(t, TxStatusDisbursed, txn.Status)

	got, err := svc.GetFund(context.Background(), fund.ID)
	require.NoError(t, err)
	require.Equal(t, 5900.0, got.Balance)

	require.Len(t, posting.calls, 1)
	require.Equal(t, journals.SourcePettyCashReplenishment, posting.calls[0].SourceType)
	require.Equal(t, 900.0, posting.calls[0].Amount)

	// Replenishments never get a voucher.
	_, err = svc.GetVoucherByTransaction(context.Background(), txn.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReconcileStampsCleanFund(t *testing.T) {
	repo := newMemoryCashRepo()
	svc := newCashService(repo, &fakeChain{}, &capturePosting{}, nil, nil)
	fund := seedFund(t, svc, 5000)

	txn, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 900, Purpose: "consumables",
	})
	require.NoError(t, err)
	voucher, err := svc.GetVoucherByTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	_, err = svc.Disburse(context.Background(), voucher.ID, 5)
	require.NoError(t, err)

	report, err := svc.Reconcile(context.Background(), fund.ID, 5)
	require.NoError(t, err)
	require.True(t, report.Clean)
	require.Equal(t, 4100.0, report.Expected)
	require.Equal(t, 4100.0, report.Actual)

	got, err := svc.GetFund(context.Background(), fund.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastReconciledAt)

	// A drifted balance reports the delta and skips the stamp.
	repo.funds[fund.ID].Balance = 4000
	repo.funds[fund.ID].LastReconciledAt = nil
	report, err = svc.Reconcile(context.Background(), fund.ID, 5)
	require.NoError(t, err)
	require.False(t, report.Clean)
	require.Equal(t, -100.0, report.Delta)
	got, err = svc.GetFund(context.Background(), fund.ID)
	require.NoError(t, err)
	require.Nil(t, got.LastReconciledAt)
}

func TestCreateTransactionValidation(t *testing.T) {
	repo := newMemoryCashRepo()
	svc := newCashService(repo, &fakeChain{}, nil, nil, nil)
	fund := seedFund(t, svc, 5000)

	_, err := svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 0, Purpose: "x",
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 100,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TxType("TRANSFER"), Amount: 100, Purpose: "x",
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Inactive funds take no new transactions.
	repo.funds[fund.ID].Active = false
	_, err = svc.CreateTransaction(context.Background(), CreateTransactionInput{
		FundID: fund.ID, RequesterID: 7, Type: TypeExpense, Amount: 100, Purpose: "x",
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}
