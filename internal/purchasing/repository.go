package purchasing

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
	NextPONumber(ctx context.Context, tenantID int64, period int) (string, error)
	InsertPO(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertItem(ctx context.Context, item POItem) error
	InsertApproval(ctx context.Context, rec ApprovalRecord) error
	GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	UpdatePOState(ctx context.Context, id int64, stage POStage, approverID *int64, level int, status POStatus) error
	SetApprovalStatus(ctx context.Context, poID int64, level int, approverID int64, status ApprovalStatus, comments string, actedAt time.Time) error
	SetExecuted(ctx context.Context, poID, executorID int64) error
	SetReceiptState(ctx context.Context, poID int64, accountant, unit bool, status POStatus) error
}

// Repository is the pgx-backed purchasing store.
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

const poColumns = `id, tenant_id, branch_id, number, requester_id, vendor, total, stage, current_approver_id, approval_level, status, accountant_confirmed, unit_confirmed, executed_by, created_at, updated_at`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var stage, status string
	err := row.Scan(&po.ID, &po.TenantID, &po.BranchID, &po.Number, &po.RequesterID, &po.Vendor, &po.Total,
		&stage, &po.CurrentApproverID, &po.ApprovalLevel, &status, &po.AccountantConfirmed, &po.UnitConfirmed,
		&po.ExecutedBy, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, shared.ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	po.Stage = POStage(stage)
	po.Status = POStatus(status)
	return po, nil
}

// GetPO loads a purchase order and its items.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, []POItem, error) {
	po, err := scanPO(r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, po_id, description, qty, unit_price FROM po_items WHERE po_id=$1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	defer rows.Close()
	var items []POItem
	for rows.Next() {
		var item POItem
		if err := rows.Scan(&item.ID, &item.POID, &item.Description, &item.Qty, &item.UnitPrice); err != nil {
			return PurchaseOrder{}, nil, err
		}
		items = append(items, item)
	}
	return po, items, rows.Err()
}

// ListApprovals returns the approval trail in insertion order.
func (r *Repository) ListApprovals(ctx context.Context, poID int64) ([]ApprovalRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, po_id, COALESCE(approver_id, 0), level, stage, status, COALESCE(comments, ''), acted_at, created_at
FROM po_approvals WHERE po_id=$1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []ApprovalRecord
	for rows.Next() {
		var rec ApprovalRecord
		var stage, status string
		if err := rows.Scan(&rec.ID, &rec.POID, &rec.ApproverID, &rec.Level, &stage, &status, &rec.ActedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Stage = POStage(stage)
		rec.Status = ApprovalStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) NextPONumber(ctx context.Context, tenantID int64, period int) (string, error) {
	var value int64
	err := r.tx.QueryRow(ctx, `INSERT INTO doc_sequences (tenant_id, kind, period, value) VALUES ($1, 'PO', $2, 1)
ON CONFLICT (tenant_id, kind, period) DO UPDATE SET value = doc_sequences.value + 1
RETURNING value`, tenantID, period).Scan(&value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PO-%d-%04d", period, value), nil
}

func (r *txRepository) InsertPO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(tenant_id, branch_id, number, requester_id, vendor, total, stage, current_approver_id, approval_level, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`, po.TenantID, po.BranchID, po.Number, po.RequesterID, po.Vendor, toNumeric(po.Total),
		string(po.Stage), po.CurrentApproverID, po.ApprovalLevel, string(po.Status)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertItem(ctx context.Context, item POItem) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO po_items (po_id, description, qty, unit_price) VALUES ($1, $2, $3, $4)`,
		item.POID, item.Description, item.Qty, toNumeric(item.UnitPrice))
	return err
}

func (r *txRepository) InsertApproval(ctx context.Context, rec ApprovalRecord) error {
	var approverID *int64
	if rec.ApproverID != 0 {
		approverID = &rec.ApproverID
	}
	_, err := r.tx.Exec(ctx, `INSERT INTO po_approvals (po_id, approver_id, level, stage, status, comments, acted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.POID, approverID, rec.Level, string(rec.Stage), string(rec.Status), rec.Comments, rec.ActedAt)
	return err
}

func (r *txRepository) GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return scanPO(r.tx.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdatePOState(ctx context.Context, id int64, stage POStage, approverID *int64, level int, status POStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET stage=$2, current_approver_id=$3, approval_level=$4, status=$5, updated_at=NOW() WHERE id=$1`,
		id, string(stage), approverID, level, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetApprovalStatus(ctx context.Context, poID int64, level int, approverID int64, status ApprovalStatus, comments string, actedAt time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE po_approvals SET status=$4, comments=$5, acted_at=$6
WHERE po_id=$1 AND level=$2 AND approver_id=$3 AND status='PENDING'`,
		poID, level, approverID, string(status), comments, actedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetExecuted(ctx context.Context, poID, executorID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET executed_by=$2, updated_at=NOW() WHERE id=$1`, poID, executorID)
	return err
}

func (r *txRepository) SetReceiptState(ctx context.Context, poID int64, accountant, unit bool, status POStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET accountant_confirmed=$2, unit_confirmed=$3, status=$4, updated_at=NOW() WHERE id=$1`,
		poID, accountant, unit, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toNumeric(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
