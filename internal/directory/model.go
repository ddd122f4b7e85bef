// Package directory performs read-only lookups against externally owned
// user and approval hierarchy tables.
package directory

// Role values the approval workflows route on.
const (
	RoleCEO            = "CEO"
	RoleDirector       = "DIRECTOR"
	RoleFinanceManager = "FINANCE_MANAGER"
	RoleAccountant     = "ACCOUNTANT"
	RoleAdmin          = "ADMIN"
	RoleBranchManager  = "BRANCH_MANAGER"
)

// User mirrors the externally owned user record fields the resolver needs.
type User struct {
	ID                int64
	TenantID          int64
	BranchID          int64
	Role              string
	ManagerID         *int64
	MaxApprovalAmount *float64
}
