package accounts

import "time"

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Account models a chart of accounts node. Accounts referenced by posted
// journal lines are immutable; they are deactivated, never deleted.
type Account struct {
	ID        int64
	TenantID  int64
	Code      string
	Name      string
	Type      AccountType
	Subtype   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
