package balances

import "time"

// AccountBalance is the materialised per-period balance for one account.
// It is maintained additively by the posting engine; closing balance always
// equals opening + debit movements - credit movements.
type AccountBalance struct {
	ID              int64
	AccountID       int64
	TenantID        int64
	BranchID        int64
	FiscalYear      int
	FiscalMonth     int
	OpeningBalance  float64
	DebitMovements  float64
	CreditMovements float64
	ClosingBalance  float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ListFilters narrows a balance query.
type ListFilters struct {
	AccountID   int64
	FiscalYear  int
	FiscalMonth int
}
