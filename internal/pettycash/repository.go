package pettycash

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichain-erp/medichain-erp/internal/platform/db"
	"github.com/medichain-erp/medichain-erp/internal/shared"
)

// TxRepository exposes the write operations available inside a transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, tenantID int64, kind string, period int) (int64, error)
	InsertFund(ctx context.Context, fund Fund) (int64, error)
	InsertTransaction(ctx context.Context, txn Transaction) (int64, error)
	InsertStep(ctx context.Context, step Step) error
	InsertVoucher(ctx context.Context, voucher Voucher) (int64, error)
	GetFundForUpdate(ctx context.Context, id int64) (Fund, error)
	GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error)
	GetVoucherForUpdate(ctx context.Context, id int64) (Voucher, error)
	ListStepsForUpdate(ctx context.Context, txID int64) ([]Step, error)
	SetStepStatus(ctx context.Context, stepID int64, status StepStatus, comments string, actedAt time.Time) error
	UpdateTransactionState(ctx context.Context, id int64, status TxStatus, seq int, approverID *int64) error
	SetTransactionStatus(ctx context.Context, id int64, from, to TxStatus) error
	AdjustFundBalance(ctx context.Context, fundID int64, delta float64) error
	MarkVoucherDisbursed(ctx context.Context, id, disbursedBy int64, at time.Time) error
	SetFundReconciled(ctx context.Context, fundID int64, at time.Time) error
	FundMovementTotals(ctx context.Context, fundID int64) (replenished, disbursed float64, err error)
}

// Repository is the pgx-backed petty cash store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const fundColumns = `id, tenant_id, branch_id, name, float_amount, balance, active, last_reconciled_at, created_at, updated_at`

const transactionColumns = `id, tenant_id, branch_id, fund_id, number, type, requester_id, amount, purpose, COALESCE(category, ''), status, current_seq, current_approver_id, created_at, updated_at`

const voucherColumns = `id, transaction_id, number, payee, amount, method, status, prepared_by, disbursed_by, disbursed_at, created_at`

func scanFund(row pgx.Row) (Fund, error) {
	var fund Fund
	err := row.Scan(&fund.ID, &fund.TenantID, &fund.BranchID, &fund.Name, &fund.FloatAmount, &fund.Balance,
		&fund.Active, &fund.LastReconciledAt, &fund.CreatedAt, &fund.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Fund{}, shared.ErrNotFound
		}
		return Fund{}, err
	}
	return fund, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var txn Transaction
	var txType, status string
	err := row.Scan(&txn.ID, &txn.TenantID, &txn.BranchID, &txn.FundID, &txn.Number, &txType, &txn.RequesterID,
		&txn.Amount, &txn.Purpose, &txn.Category, &status, &txn.CurrentSeq, &txn.CurrentApproverID,
		&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.ErrNotFound
		}
		return Transaction{}, err
	}
	txn.Type = TxType(txType)
	txn.Status = TxStatus(status)
	return txn, nil
}

func scanVoucher(row pgx.Row) (Voucher, error) {
	var voucher Voucher
	var method, status string
	err := row.Scan(&voucher.ID, &voucher.TransactionID, &voucher.Number, &voucher.Payee, &voucher.Amount,
		&method, &status, &voucher.PreparedBy, &voucher.DisbursedBy, &voucher.DisbursedAt, &voucher.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, shared.ErrNotFound
		}
		return Voucher{}, err
	}
	voucher.Method = PayMethod(method)
	voucher.Status = VoucherStatus(status)
	return voucher, nil
}

// GetFund loads a fund by id.
func (r *Repository) GetFund(ctx context.Context, id int64) (Fund, error) {
	return scanFund(r.pool.QueryRow(ctx, `SELECT `+fundColumns+` FROM petty_cash_funds WHERE id=$1`, id))
}

// GetTransaction loads a transaction by id.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM petty_cash_transactions WHERE id=$1`, id))
}

// GetVoucher loads a voucher by id.
func (r *Repository) GetVoucher(ctx context.Context, id int64) (Voucher, error) {
	return scanVoucher(r.pool.QueryRow(ctx, `SELECT `+voucherColumns+` FROM petty_cash_vouchers WHERE id=$1`, id))
}

// GetVoucherByTransaction loads the voucher attached to a transaction.
func (r *Repository) GetVoucherByTransaction(ctx context.Context, txID int64) (Voucher, error) {
	return scanVoucher(r.pool.QueryRow(ctx, `SELECT `+voucherColumns+` FROM petty_cash_vouchers WHERE transaction_id=$1`, txID))
}

// ListSteps returns the chain snapshot ordered by seq.
func (r *Repository) ListSteps(ctx context.Context, txID int64) ([]Step, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, transaction_id, seq, level, approver_id, amount_limit, status, COALESCE(comments, ''), acted_at
FROM petty_cash_steps WHERE transaction_id=$1 ORDER BY seq`, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSteps(rows)
}

func collectSteps(rows pgx.Rows) ([]Step, error) {
	var steps []Step
	for rows.Next() {
		var step Step
		var status string
		if err := rows.Scan(&step.ID, &step.TransactionID, &step.Seq, &step.Level, &step.ApproverID,
			&step.AmountLimit, &status, &step.Comments, &step.ActedAt); err != nil {
			return nil, err
		}
		step.Status = StepStatus(status)
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) NextNumber(ctx context.Context, tenantID int64, kind string, period int) (int64, error) {
	var value int64
	err := r.tx.QueryRow(ctx, `INSERT INTO doc_sequences (tenant_id, kind, period, value) VALUES ($1, $2, $3, 1)
ON CONFLICT (tenant_id, kind, period) DO UPDATE SET value = doc_sequences.value + 1
RETURNING value`, tenantID, kind, period).Scan(&value)
	return value, err
}

func (r *txRepository) InsertFund(ctx context.Context, fund Fund) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO petty_cash_funds (tenant_id, branch_id, name, float_amount, balance, active)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		fund.TenantID, fund.BranchID, fund.Name, toNumeric(fund.FloatAmount), toNumeric(fund.Balance), fund.Active).Scan(&id)
	return id, err
}

func (r *txRepository) InsertTransaction(ctx context.Context, txn Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO petty_cash_transactions
(tenant_id, branch_id, fund_id, number, type, requester_id, amount, purpose, category, status, current_seq, current_approver_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id`, txn.TenantID, txn.BranchID, txn.FundID, txn.Number, string(txn.Type), txn.RequesterID,
		toNumeric(txn.Amount), txn.Purpose, txn.Category, string(txn.Status), txn.CurrentSeq, txn.CurrentApproverID).Scan(&id)
	return id, err
}

func (r *txRepository) InsertStep(ctx context.Context, step Step) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO petty_cash_steps (transaction_id, seq, level, approver_id, amount_limit, status)
VALUES ($1, $2, $3, $4, $5, $6)`,
		step.TransactionID, step.Seq, step.Level, step.ApproverID, toNumeric(step.AmountLimit), string(step.Status))
	return err
}

func (r *txRepository) InsertVoucher(ctx context.Context, voucher Voucher) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO petty_cash_vouchers (transaction_id, number, payee, amount, method, status, prepared_by)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		voucher.TransactionID, voucher.Number, voucher.Payee, toNumeric(voucher.Amount),
		string(voucher.Method), string(voucher.Status), voucher.PreparedBy).Scan(&id)
	return id, err
}

func (r *txRepository) GetFundForUpdate(ctx context.Context, id int64) (Fund, error) {
	return scanFund(r.tx.QueryRow(ctx, `SELECT `+fundColumns+` FROM petty_cash_funds WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM petty_cash_transactions WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) GetVoucherForUpdate(ctx context.Context, id int64) (Voucher, error) {
	return scanVoucher(r.tx.QueryRow(ctx, `SELECT `+voucherColumns+` FROM petty_cash_vouchers WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) ListStepsForUpdate(ctx context.Context, txID int64) ([]Step, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, transaction_id, seq, level, approver_id, amount_limit, status, COALESCE(comments, ''), acted_at
FROM petty_cash_steps WHERE transaction_id=$1 ORDER BY seq FOR UPDATE`, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSteps(rows)
}

func (r *txRepository) SetStepStatus(ctx context.Context, stepID int64, status StepStatus, comments string, actedAt time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE petty_cash_steps SET status=$2, comments=$3, acted_at=$4 WHERE id=$1 AND status='PENDING'`,
		stepID, string(status), comments, actedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateTransactionState(ctx context.Context, id int64, status TxStatus, seq int, approverID *int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE petty_cash_transactions SET status=$2, current_seq=$3, current_approver_id=$4, updated_at=NOW() WHERE id=$1`,
		id, string(status), seq, approverID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetTransactionStatus(ctx context.Context, id int64, from, to TxStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE petty_cash_transactions SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`,
		id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction not in %s state", shared.ErrInvalidState, from)
	}
	return nil
}

func (r *txRepository) AdjustFundBalance(ctx context.Context, fundID int64, delta float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE petty_cash_funds SET balance = balance + $2, updated_at=NOW() WHERE id=$1`,
		fundID, toNumeric(delta))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) MarkVoucherDisbursed(ctx context.Context, id, disbursedBy int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE petty_cash_vouchers SET status='DISBURSED', disbursed_by=$2, disbursed_at=$3
WHERE id=$1 AND status='PREPARED'`, id, disbursedBy, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: voucher not in prepared state", shared.ErrInvalidState)
	}
	return nil
}

func (r *txRepository) SetFundReconciled(ctx context.Context, fundID int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE petty_cash_funds SET last_reconciled_at=$2 WHERE id=$1`, fundID, at)
	return err
}

// FundMovementTotals sums applied replenishments and disbursed expenses,
// read under the caller's transaction so the totals share the locked fund
// row's snapshot.
func (r *txRepository) FundMovementTotals(ctx context.Context, fundID int64) (float64, float64, error) {
	var replenished, disbursed float64
	err := r.tx.QueryRow(ctx, `SELECT
COALESCE(SUM(amount) FILTER (WHERE type='REPLENISHMENT' AND status='DISBURSED'), 0),
COALESCE(SUM(amount) FILTER (WHERE type='EXPENSE' AND status='DISBURSED'), 0)
FROM petty_cash_transactions WHERE fund_id=$1`, fundID).Scan(&replenished, &disbursed)
	return replenished, disbursed, err
}

func toNumeric(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
