package journals

import (
	"time"

	"github.com/google/uuid"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "DRAFT"
	JournalStatusPosted JournalStatus = "POSTED"
)

// BalanceEpsilon is the debit/credit tolerance for a balanced entry.
const BalanceEpsilon = 0.01

// JournalEntry captures one balanced accounting event.
type JournalEntry struct {
	ID          int64
	TenantID    int64
	BranchID    int64
	Number      string
	Date        time.Time
	Description string
	TotalDebit  float64
	TotalCredit float64
	Status      JournalStatus
	SourceType  string
	SourceID    uuid.UUID
	CreatedBy   int64
	PostedBy    *int64
	PostedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []JournalLine
}

// JournalLine stores a debit or credit amount for an account. Lines are
// created atomically with their entry and never mutated afterwards;
// corrections go through a reversing entry.
type JournalLine struct {
	ID          int64
	JournalID   int64
	AccountID   int64
	Description string
	Debit       float64
	Credit      float64
	CreatedAt   time.Time
}

// Source types for derived postings.
const (
	SourcePOReceipt              = "PO_RECEIPT"
	SourcePettyCashDisbursement  = "PETTY_CASH_DISBURSEMENT"
	SourcePettyCashReplenishment = "PETTY_CASH_REPLENISHMENT"
)
