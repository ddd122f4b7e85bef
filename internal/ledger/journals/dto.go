package journals

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/medichain-erp/medichain-erp/internal/shared"
)

// LineInput describes a journal line for a posting request.
type LineInput struct {
	AccountID   int64
	Description string
	Debit       float64
	Credit      float64
}

// DraftInput groups fields required to create a draft journal entry.
type DraftInput struct {
	TenantID    int64
	BranchID    int64
	Date        time.Time
	Description string
	SourceType  string
	SourceID    uuid.UUID
	CreatedBy   int64
	Lines       []LineInput
}

// Validate ensures the draft meets minimum criteria, including the balance
// invariant within BalanceEpsilon.
func (in DraftInput) Validate() error {
	if in.TenantID == 0 || in.BranchID == 0 {
		return fmt.Errorf("%w: tenant and branch required", shared.ErrValidation)
	}
	if len(in.Lines) < 2 {
		return fmt.Errorf("%w: journal requires at least two lines", shared.ErrValidation)
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("%w: line %d missing account", shared.ErrValidation, idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("%w: line %d negative amount", shared.ErrValidation, idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("%w: line %d cannot be both debit and credit", shared.ErrValidation, idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if math.Abs(round2(debit)-round2(credit)) > BalanceEpsilon {
		return shared.ErrUnbalanced
	}
	return nil
}

// SourceEventInput describes a derived posting for an approved financial
// event (PO receipt, petty cash disbursement or replenishment).
type SourceEventInput struct {
	TenantID    int64
	BranchID    int64
	SourceType  string
	SourceID    uuid.UUID
	Date        time.Time
	Description string
	Amount      float64
	ActorID     int64
}

// Validate checks the source event shape.
func (in SourceEventInput) Validate() error {
	if in.TenantID == 0 || in.BranchID == 0 {
		return fmt.Errorf("%w: tenant and branch required", shared.ErrValidation)
	}
	if in.SourceType == "" {
		return fmt.Errorf("%w: source type required", shared.ErrValidation)
	}
	if in.SourceID == uuid.Nil {
		return fmt.Errorf("%w: source id required", shared.ErrValidation)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	return nil
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID     int64
	ActorID     int64
	Description string
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
