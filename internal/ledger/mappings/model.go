package mappings

import "time"

// PostingMapping links a derived posting source type to the debit and
// credit accounts its two-line journal entry should hit.
type PostingMapping struct {
	TenantID        int64
	SourceType      string
	DebitAccountID  int64
	CreditAccountID int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
