package pettycash

import "time"

// Fund is a branch-scoped cash pool. Balance only moves when a voucher is
// disbursed or a replenishment is applied, never on approval.
type Fund struct {
	ID               int64
	TenantID         int64
	BranchID         int64
	Name             string
	FloatAmount      float64
	Balance          float64
	Active           bool
	LastReconciledAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TxType separates cash going out from cash coming back in.
type TxType string

const (
	TypeExpense       TxType = "EXPENSE"
	TypeReplenishment TxType = "REPLENISHMENT"
)

// TxStatus enumerates transaction lifecycle values. Replenishments jump from
// APPROVED to DISBURSED the moment they are applied to the fund.
type TxStatus string

const (
	TxStatusPending   TxStatus = "PENDING"
	TxStatusApproved  TxStatus = "APPROVED"
	TxStatusRejected  TxStatus = "REJECTED"
	TxStatusDisbursed TxStatus = "DISBURSED"
)

// StepStatus enumerates per-step approval states.
type StepStatus string

const (
	StepStatusPending  StepStatus = "PENDING"
	StepStatusApproved StepStatus = "APPROVED"
	StepStatusRejected StepStatus = "REJECTED"
)

// Transaction is a petty cash request against a fund. The approver chain is
// snapshotted at creation; CurrentSeq points at the step awaiting action.
type Transaction struct {
	ID                int64
	TenantID          int64
	BranchID          int64
	FundID            int64
	Number            string
	Type              TxType
	RequesterID       int64
	Amount            float64
	Purpose           string
	Category          string
	Status            TxStatus
	CurrentSeq        int
	CurrentApproverID *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Step is one snapshotted chain position. Seq is the 1-based ordinal within
// the transaction; two steps may share a level but never a seq.
type Step struct {
	ID            int64
	TransactionID int64
	Seq           int
	Level         int
	ApproverID    int64
	AmountLimit   float64
	Status        StepStatus
	Comments      string
	ActedAt       *time.Time
}

// PayMethod is how a voucher pays out.
type PayMethod string

const (
	MethodCash   PayMethod = "CASH"
	MethodCheque PayMethod = "CHEQUE"
	MethodBank   PayMethod = "BANK"
)

// VoucherStatus enumerates voucher lifecycle values.
type VoucherStatus string

const (
	VoucherStatusPrepared  VoucherStatus = "PREPARED"
	VoucherStatusDisbursed VoucherStatus = "DISBURSED"
)

// Voucher authorises the payout of an approved expense transaction. One
// voucher per transaction; replenishments never get one.
type Voucher struct {
	ID            int64
	TransactionID int64
	Number        string
	Payee         string
	Amount        float64
	Method        PayMethod
	Status        VoucherStatus
	PreparedBy    int64
	DisbursedBy   *int64
	DisbursedAt   *time.Time
	CreatedAt     time.Time
}
