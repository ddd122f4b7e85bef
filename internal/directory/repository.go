package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichain-erp/medichain-erp/internal/shared"
)

// Repository exposes the user directory queries used by approval routing.
type Repository interface {
	// FirstByRole returns the first active user holding any of the roles
	// within the tenant/branch, ordered by id for determinism.
	FirstByRole(ctx context.Context, tenantID, branchID int64, roles ...string) (User, error)
	// Get loads a single user.
	Get(ctx context.Context, userID int64) (User, error)
	// ManagerOf resolves the approval_hierarchy manager back-reference.
	ManagerOf(ctx context.Context, userID int64) (User, error)
	// AuthorityFor returns the approver with the smallest max_approval_amount
	// covering the given amount.
	AuthorityFor(ctx context.Context, tenantID, branchID int64, amount float64) (User, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the directory repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const userColumns = `id, tenant_id, branch_id, role, manager_id, max_approval_amount`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.BranchID, &u.Role, &u.ManagerID, &u.MaxApprovalAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNoApprover
		}
		return User{}, err
	}
	return u, nil
}

func (r *repository) FirstByRole(ctx context.Context, tenantID, branchID int64, roles ...string) (User, error) {
	if len(roles) == 0 {
		return User{}, errors.New("directory: at least one role required")
	}
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users
WHERE tenant_id=$1 AND branch_id=$2 AND role = ANY($3) AND is_active
ORDER BY id ASC LIMIT 1`, tenantID, branchID, roles)
	return scanUser(row)
}

func (r *repository) Get(ctx context.Context, userID int64) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, shared.ErrNoApprover) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (r *repository) ManagerOf(ctx context.Context, userID int64) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT m.id, m.tenant_id, m.branch_id, m.role, m.manager_id, m.max_approval_amount
FROM approval_hierarchy h
JOIN users m ON m.id = h.manager_id
WHERE h.user_id=$1 AND m.is_active`, userID)
	return scanUser(row)
}

func (r *repository) AuthorityFor(ctx context.Context, tenantID, branchID int64, amount float64) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users
WHERE tenant_id=$1 AND branch_id=$2 AND max_approval_amount >= $3 AND is_active
ORDER BY max_approval_amount ASC, id ASC LIMIT 1`, tenantID, branchID, amount)
	return scanUser(row)
}
