package balances

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads materialised balance rows.
type Repository interface {
	List(ctx context.Context, tenantID, branchID int64, filters ListFilters) ([]AccountBalance, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, tenantID, branchID int64, filters ListFilters) ([]AccountBalance, error) {
	query := `SELECT id, account_id, tenant_id, branch_id, fiscal_year, fiscal_month,
opening_balance, debit_movements, credit_movements, closing_balance, created_at, updated_at
FROM account_balances WHERE tenant_id=$1 AND branch_id=$2`
	args := []any{tenantID, branchID}
	idx := 3
	if filters.AccountID != 0 {
		query += fmt.Sprintf(" AND account_id=$%d", idx)
		args = append(args, filters.AccountID)
		idx++
	}
	if filters.FiscalYear != 0 {
		query += fmt.Sprintf(" AND fiscal_year=$%d", idx)
		args = append(args, filters.FiscalYear)
		idx++
	}
	if filters.FiscalMonth != 0 {
		query += fmt.Sprintf(" AND fiscal_month=$%d", idx)
		args = append(args, filters.FiscalMonth)
		idx++
	}
	query += " ORDER BY fiscal_year ASC, fiscal_month ASC, account_id ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.ID, &b.AccountID, &b.TenantID, &b.BranchID, &b.FiscalYear, &b.FiscalMonth,
			&b.OpeningBalance, &b.DebitMovements, &b.CreditMovements, &b.ClosingBalance, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
