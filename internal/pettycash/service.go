package pettycash

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/medichain-erp/medichain-erp/internal/approval"
	"github.com/medichain-erp/medichain-erp/internal/ledger/journals"
	"github.com/medichain-erp/medichain-erp/internal/shared"
)

// RepositoryPort describes the store operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetFund(ctx context.Context, id int64) (Fund, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	GetVoucher(ctx context.Context, id int64) (Voucher, error)
	GetVoucherByTransaction(ctx context.Context, txID int64) (Voucher, error)
	ListSteps(ctx context.Context, txID int64) ([]Step, error)
}

// ChainPort resolves the approver chain for an amount.
type ChainPort interface {
	Resolve(ctx context.Context, tenantID, branchID, requesterID int64, amount float64) ([]approval.ChainStep, error)
}

// PostingPort converts cash movements into ledger entries.
type PostingPort interface {
	PostSourceEvent(ctx context.Context, input journals.SourceEventInput) (journals.JournalEntry, error)
}

// EventPort appends approval history events.
type EventPort interface {
	Record(ctx context.Context, evt approval.Event) error
}

// LockPort serialises balance mutation against the same fund.
type LockPort interface {
	Acquire(ctx context.Context, fundID int64) (func(), error)
}

// IdemPort guards voucher payout against client retries.
type IdemPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the petty cash workflow.
type Service struct {
	repo        RepositoryPort
	chain       ChainPort
	posting     PostingPort
	events      EventPort
	locks       LockPort
	idempotency IdemPort
	audit       AuditPort
	now         func() time.Time
}

// NewService constructs the petty cash service.
func NewService(repo RepositoryPort, chain ChainPort, posting PostingPort, events EventPort, locks LockPort, idempotency IdemPort, audit AuditPort) *Service {
	return &Service{repo: repo, chain: chain, posting: posting, events: events, locks: locks, idempotency: idempotency, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateFundInput describes a new fund.
type CreateFundInput struct {
	TenantID    int64
	BranchID    int64
	Name        string
	FloatAmount float64
	ActorID     int64
}

// CreateFund opens a fund with its starting balance equal to the float.
func (s *Service) CreateFund(ctx context.Context, input CreateFundInput) (Fund, error) {
	if input.TenantID == 0 || input.BranchID == 0 {
		return Fund{}, fmt.Errorf("%w: tenant and branch required", shared.ErrValidation)
	}
	if input.Name == "" {
		return Fund{}, fmt.Errorf("%w: fund name required", shared.ErrValidation)
	}
	if input.FloatAmount <= 0 {
		return Fund{}, fmt.Errorf("%w: float amount must be positive", shared.ErrValidation)
	}
	fund := Fund{
		TenantID:    input.TenantID,
		BranchID:    input.BranchID,
		Name:        input.Name,
		FloatAmount: input.FloatAmount,
		Balance:     input.FloatAmount,
		Active:      true,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertFund(ctx, fund)
		if err != nil {
			return err
		}
		fund.ID = id
		return nil
	})
	if err != nil {
		return Fund{}, err
	}
	s.recordAudit(ctx, input.ActorID, "pettycash.fund.create", fund.ID, map[string]any{"name": fund.Name, "float": fund.FloatAmount})
	return fund, nil
}

// CreateTransactionInput describes a new request against a fund.
type CreateTransactionInput struct {
	FundID      int64
	RequesterID int64
	Type        TxType
	Amount      float64
	Purpose     string
	Category    string
	Payee       string
	Method      PayMethod
}

// CreateTransaction snapshots the approver chain for the amount and opens
// the transaction. An empty chain auto-approves: expenses get their voucher
// immediately, replenishments are applied to the fund on the spot.
func (s *Service) CreateTransaction(ctx context.Context, input CreateTransactionInput) (Transaction, error) {
	if input.FundID == 0 || input.RequesterID == 0 {
		return Transaction{}, fmt.Errorf("%w: fund and requester required", shared.ErrValidation)
	}
	if input.Type != TypeExpense && input.Type != TypeReplenishment {
		return Transaction{}, fmt.Errorf("%w: unknown transaction type %q", shared.ErrValidation, input.Type)
	}
	if input.Amount <= 0 {
		return Transaction{}, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if input.Purpose == "" {
		return Transaction{}, fmt.Errorf("%w: purpose required", shared.ErrValidation)
	}
	if input.Method == "" {
		input.Method = MethodCash
	}

	fund, err := s.repo.GetFund(ctx, input.FundID)
	if err != nil {
		return Transaction{}, err
	}
	if !fund.Active {
		return Transaction{}, fmt.Errorf("%w: fund is inactive", shared.ErrInvalidState)
	}

	chain, err := s.chain.Resolve(ctx, fund.TenantID, fund.BranchID, input.RequesterID, input.Amount)
	if err != nil {
		return Transaction{}, err
	}

	txn := Transaction{
		TenantID:    fund.TenantID,
		BranchID:    fund.BranchID,
		FundID:      fund.ID,
		Type:        input.Type,
		RequesterID: input.RequesterID,
		Amount:      input.Amount,
		Purpose:     input.Purpose,
		Category:    input.Category,
		Status:      TxStatusPending,
	}
	if len(chain) == 0 {
		txn.Status = TxStatusApproved
	} else {
		txn.CurrentSeq = 1
		txn.CurrentApproverID = &chain[0].ApproverID
	}

	year := s.now().Year()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextNumber(ctx, fund.TenantID, "PC", year)
		if err != nil {
			return err
		}
		txn.Number = fmt.Sprintf("PC-%d-%04d", year, seq)
		id, err := tx.InsertTransaction(ctx, txn)
		if err != nil {
			return err
		}
		txn.ID = id
		for idx, step := range chain {
			if err := tx.InsertStep(ctx, Step{
				TransactionID: id,
				Seq:           idx + 1,
				Level:         step.Level,
				ApproverID:    step.ApproverID,
				AmountLimit:   step.AmountLimit,
				Status:        StepStatusPending,
			}); err != nil {
				return err
			}
		}
		if txn.Status == TxStatusApproved {
			return s.concludeApproval(ctx, tx, &txn, input.RequesterID, input.Payee, input.Method)
		}
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}

	if len(chain) == 0 {
		s.recordEvent(ctx, txn.ID, 0, input.RequesterID, approval.ActionApprove, "amount below approval thresholds, auto-approved")
	} else {
		s.recordEvent(ctx, txn.ID, chain[0].Level, input.RequesterID, approval.ActionSubmit,
			fmt.Sprintf("transaction %s submitted", txn.Number))
	}
	s.recordAudit(ctx, input.RequesterID, "pettycash.tx.create", txn.ID, map[string]any{"number": txn.Number, "type": string(txn.Type), "amount": txn.Amount})
	return txn, nil
}

// Approve marks the caller's pending step approved and advances the chain.
// Approving the final step concludes the approval: expenses get a prepared
// voucher, replenishments are applied to the fund. The fund balance never
// moves for an expense here.
func (s *Service) Approve(ctx context.Context, txID, approverID int64, comments string) (Transaction, error) {
	var out Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, err := tx.GetTransactionForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if txn.Status != TxStatusPending {
			return fmt.Errorf("%w: transaction is %s", shared.ErrInvalidState, txn.Status)
		}
		if txn.CurrentApproverID == nil || *txn.CurrentApproverID != approverID {
			return shared.ErrNotAssigned
		}
		steps, err := tx.ListStepsForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		current := stepAt(steps, txn.CurrentSeq)
		if current == nil {
			return fmt.Errorf("%w: chain step %d missing", shared.ErrInvalidState, txn.CurrentSeq)
		}
		actedAt := s.now()
		if err := tx.SetStepStatus(ctx, current.ID, StepStatusApproved, comments, actedAt); err != nil {
			return err
		}
		s.recordEvent(ctx, txID, current.Level, approverID, approval.ActionApprove, comments)

		if next := stepAt(steps, txn.CurrentSeq+1); next != nil {
			txn.CurrentSeq = next.Seq
			txn.CurrentApproverID = &next.ApproverID
			if err := tx.UpdateTransactionState(ctx, txn.ID, txn.Status, txn.CurrentSeq, txn.CurrentApproverID); err != nil {
				return err
			}
			out = txn
			return nil
		}

		txn.Status = TxStatusApproved
		txn.CurrentSeq = 0
		txn.CurrentApproverID = nil
		if err := tx.UpdateTransactionState(ctx, txn.ID, txn.Status, 0, nil); err != nil {
			return err
		}
		if err := s.concludeApproval(ctx, tx, &txn, approverID, "", MethodCash); err != nil {
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, approverID, "pettycash.tx.approve", txID, map[string]any{"status": string(out.Status)})
	return out, nil
}

// concludeApproval runs the post-approval step inside the caller's tx:
// expenses get a prepared voucher, replenishments are applied immediately.
func (s *Service) concludeApproval(ctx context.Context, tx TxRepository, txn *Transaction, actorID int64, payee string, method PayMethod) error {
	switch txn.Type {
	case TypeExpense:
		year := s.now().Year()
		seq, err := tx.NextNumber(ctx, txn.TenantID, "DV", year)
		if err != nil {
			return err
		}
		if payee == "" {
			payee = fmt.Sprintf("requester %d", txn.RequesterID)
		}
		voucher := Voucher{
			TransactionID: txn.ID,
			Number:        fmt.Sprintf("DV-%d-%04d", year, seq),
			Payee:         payee,
			Amount:        txn.Amount,
			Method:        method,
			Status:        VoucherStatusPrepared,
			PreparedBy:    actorID,
		}
		if _, err := tx.InsertVoucher(ctx, voucher); err != nil {
			return err
		}
		return nil
	case TypeReplenishment:
		return s.applyReplenishment(ctx, tx, txn, actorID)
	}
	return fmt.Errorf("%w: unknown transaction type %q", shared.ErrInvalidState, txn.Type)
}

// applyReplenishment adds the amount to the fund and posts the movement.
// The transaction goes straight to DISBURSED; there is no voucher.
func (s *Service) applyReplenishment(ctx context.Context, tx TxRepository, txn *Transaction, actorID int64) error {
	if _, err := tx.GetFundForUpdate(ctx, txn.FundID); err != nil {
		return err
	}
	if err := tx.AdjustFundBalance(ctx, txn.FundID, txn.Amount); err != nil {
		return err
	}
	if err := tx.SetTransactionStatus(ctx, txn.ID, TxStatusApproved, TxStatusDisbursed); err != nil {
		return err
	}
	txn.Status = TxStatusDisbursed
	if s.posting != nil {
		_, err := s.posting.PostSourceEvent(ctx, journals.SourceEventInput{
			TenantID:    txn.TenantID,
			BranchID:    txn.BranchID,
			SourceType:  journals.SourcePettyCashReplenishment,
			SourceID:    transactionRefID(txn.ID),
			Date:        s.now(),
			Description: fmt.Sprintf("Replenishment %s", txn.Number),
			Amount:      txn.Amount,
			ActorID:     actorID,
		})
		if err != nil && !errors.Is(err, shared.ErrSourceAlreadyLinked) {
			return err
		}
	}
	s.recordEvent(ctx, txn.ID, 0, actorID, approval.ActionDisburse, "replenishment applied")
	return nil
}

// Reject terminates the transaction at whatever level it sits. Later steps
// are never consulted.
func (s *Service) Reject(ctx context.Context, txID, approverID int64, comments string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, err := tx.GetTransactionForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if txn.Status != TxStatusPending {
			return fmt.Errorf("%w: transaction is %s", shared.ErrInvalidState, txn.Status)
		}
		if txn.CurrentApproverID == nil || *txn.CurrentApproverID != approverID {
			return shared.ErrNotAssigned
		}
		steps, err := tx.ListStepsForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		current := stepAt(steps, txn.CurrentSeq)
		if current == nil {
			return fmt.Errorf("%w: chain step %d missing", shared.ErrInvalidState, txn.CurrentSeq)
		}
		if err := tx.SetStepStatus(ctx, current.ID, StepStatusRejected, comments, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateTransactionState(ctx, txn.ID, TxStatusRejected, 0, nil); err != nil {
			return err
		}
		s.recordEvent(ctx, txID, current.Level, approverID, approval.ActionReject, comments)
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, approverID, "pettycash.tx.reject", txID, nil)
	return nil
}

// Disburse pays out a prepared voucher. The per-fund lock plus the row lock
// keep concurrent disbursements from overdrawing the same fund; this is the
// only path where an expense moves the balance.
func (s *Service) Disburse(ctx context.Context, voucherID, disbursedBy int64) (Voucher, error) {
	probe, err := s.repo.GetVoucher(ctx, voucherID)
	if err != nil {
		return Voucher{}, err
	}
	txnProbe, err := s.repo.GetTransaction(ctx, probe.TransactionID)
	if err != nil {
		return Voucher{}, err
	}
	if s.locks != nil {
		release, err := s.locks.Acquire(ctx, txnProbe.FundID)
		if err != nil {
			return Voucher{}, err
		}
		defer release()
	}

	idemKey := fmt.Sprintf("DV:%s", probe.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "pettycash.disburse"); err != nil {
			return Voucher{}, err
		}
		inserted = true
	}

	var out Voucher
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		voucher, err := tx.GetVoucherForUpdate(ctx, voucherID)
		if err != nil {
			return err
		}
		if voucher.Status != VoucherStatusPrepared {
			return fmt.Errorf("%w: voucher is %s", shared.ErrInvalidState, voucher.Status)
		}
		txn, err := tx.GetTransactionForUpdate(ctx, voucher.TransactionID)
		if err != nil {
			return err
		}
		if txn.Status != TxStatusApproved {
			return fmt.Errorf("%w: transaction is %s", shared.ErrInvalidState, txn.Status)
		}
		fund, err := tx.GetFundForUpdate(ctx, txn.FundID)
		if err != nil {
			return err
		}
		if fund.Balance-voucher.Amount < 0 {
			return fmt.Errorf("%w: fund %d balance %.2f cannot cover %.2f",
				shared.ErrInsufficientFunds, fund.ID, fund.Balance, voucher.Amount)
		}
		if err := tx.AdjustFundBalance(ctx, txn.FundID, -voucher.Amount); err != nil {
			return err
		}
		disbursedAt := s.now()
		if err := tx.MarkVoucherDisbursed(ctx, voucher.ID, disbursedBy, disbursedAt); err != nil {
			return err
		}
		if err := tx.SetTransactionStatus(ctx, txn.ID, TxStatusApproved, TxStatusDisbursed); err != nil {
			return err
		}
		voucher.Status = VoucherStatusDisbursed
		voucher.DisbursedBy = &disbursedBy
		voucher.DisbursedAt = &disbursedAt

		if s.posting != nil {
			_, err := s.posting.PostSourceEvent(ctx, journals.SourceEventInput{
				TenantID:    txn.TenantID,
				BranchID:    txn.BranchID,
				SourceType:  journals.SourcePettyCashDisbursement,
				SourceID:    transactionRefID(txn.ID),
				Date:        disbursedAt,
				Description: fmt.Sprintf("Petty cash disbursement %s for %s", voucher.Number, txn.Number),
				Amount:      voucher.Amount,
				ActorID:     disbursedBy,
			})
			if err != nil && !errors.Is(err, shared.ErrSourceAlreadyLinked) {
				return err
			}
		}
		s.recordEvent(ctx, txn.ID, 0, disbursedBy, approval.ActionDisburse, voucher.Number)
		out = voucher
		return nil
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return Voucher{}, err
	}
	s.recordAudit(ctx, disbursedBy, "pettycash.voucher.disburse", out.ID, map[string]any{"number": out.Number, "amount": out.Amount})
	return out, nil
}

// ReconcileReport is the outcome of a fund reconciliation.
type ReconcileReport struct {
	FundID   int64
	Expected float64
	Actual   float64
	Delta    float64
	Clean    bool
}

// Reconcile verifies that the fund balance equals float plus applied
// replenishments minus disbursed expenses, and stamps the reconciliation
// time when the identity holds.
func (s *Service) Reconcile(ctx context.Context, fundID, actorID int64) (ReconcileReport, error) {
	var report ReconcileReport
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		fund, err := tx.GetFundForUpdate(ctx, fundID)
		if err != nil {
			return err
		}
		// Totals must come from the same snapshot as the locked fund row.
		replenished, disbursed, err := tx.FundMovementTotals(ctx, fundID)
		if err != nil {
			return err
		}
		expected := fund.FloatAmount + replenished - disbursed
		report = ReconcileReport{
			FundID:   fundID,
			Expected: expected,
			Actual:   fund.Balance,
			Delta:    fund.Balance - expected,
			Clean:    math.Abs(fund.Balance-expected) <= journals.BalanceEpsilon,
		}
		if !report.Clean {
			return nil
		}
		return tx.SetFundReconciled(ctx, fundID, s.now())
	})
	if err != nil {
		return ReconcileReport{}, err
	}
	s.recordAudit(ctx, actorID, "pettycash.fund.reconcile", fundID, map[string]any{"clean": report.Clean, "delta": report.Delta})
	return report, nil
}

// GetFund loads a fund.
func (s *Service) GetFund(ctx context.Context, id int64) (Fund, error) {
	return s.repo.GetFund(ctx, id)
}

// GetTransaction loads a transaction.
func (s *Service) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// GetVoucherByTransaction loads the voucher attached to an expense.
func (s *Service) GetVoucherByTransaction(ctx context.Context, txID int64) (Voucher, error) {
	return s.repo.GetVoucherByTransaction(ctx, txID)
}

// Steps returns the snapshotted chain for a transaction.
func (s *Service) Steps(ctx context.Context, txID int64) ([]Step, error) {
	return s.repo.ListSteps(ctx, txID)
}

func stepAt(steps []Step, seq int) *Step {
	for i := range steps {
		if steps[i].Seq == seq {
			return &steps[i]
		}
	}
	return nil
}

func (s *Service) recordEvent(ctx context.Context, txID int64, level int, actorID int64, action approval.Action, note string) {
	if s.events == nil {
		return
	}
	_ = s.events.Record(ctx, approval.Event{
		Module:  "PETTY_CASH",
		RefID:   transactionRefID(txID),
		Level:   level,
		ActorID: actorID,
		Action:  action,
		Note:    note,
		At:      s.now(),
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, refID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "petty_cash",
		EntityID: fmt.Sprintf("%d", refID),
		Meta:     meta,
		At:       s.now(),
	})
}

func transactionRefID(txID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("PCT:%d", txID)))
}
