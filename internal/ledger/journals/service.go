package journals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medichain-erp/medichain-erp/internal/ledger/mappings"
	"github.com/medichain-erp/medichain-erp/internal/shared"
)

// MappingPort resolves derived-posting account mappings.
type MappingPort interface {
	Get(ctx context.Context, tenantID int64, sourceType string) (mappings.PostingMapping, error)
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements the journal posting engine.
type Service struct {
	repo     Repository
	mappings MappingPort
	audit    AuditPort
	now      func() time.Time
}

// NewService constructs the journal service.
func NewService(repo Repository, mappings MappingPort, audit AuditPort) *Service {
	return &Service{repo: repo, mappings: mappings, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns entries for a tenant, newest first.
func (s *Service) List(ctx context.Context, tenantID int64) ([]JournalEntry, error) {
	return s.repo.List(ctx, tenantID)
}

// Get loads one entry with its lines.
func (s *Service) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	return s.repo.Get(ctx, entryID)
}

// CreateEntry validates and persists a draft entry with its lines as one
// atomic unit. The ledger never stores an unbalanced entry, draft or not.
func (s *Service) CreateEntry(ctx context.Context, input DraftInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if input.Date.IsZero() {
		input.Date = s.now()
	}
	var debit, credit float64
	for _, line := range input.Lines {
		debit += line.Debit
		credit += line.Credit
	}
	entry := JournalEntry{
		TenantID:    input.TenantID,
		BranchID:    input.BranchID,
		Date:        input.Date,
		Description: input.Description,
		TotalDebit:  round2(debit),
		TotalCredit: round2(credit),
		Status:      JournalStatusDraft,
		SourceType:  input.SourceType,
		SourceID:    input.SourceID,
		CreatedBy:   input.CreatedBy,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextEntryNumber(ctx, input.TenantID, input.Date.Year())
		if err != nil {
			return err
		}
		entry.Number = number
		inserted, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, input.Lines); err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = toJournalLines(entry.ID, input.Lines, s.now())
	s.recordAudit(ctx, input.CreatedBy, "journal.create", entry.ID, map[string]any{"number": entry.Number})
	return entry, nil
}

// PostEntry transitions a draft entry to posted and applies its movements to
// the account balances, all within one transaction. The status is re-read
// under a row lock so a concurrent double-post fails with ErrInvalidState.
func (s *Service) PostEntry(ctx context.Context, entryID, approverID int64) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, fmt.Errorf("%w: entry id required", shared.ErrValidation)
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != JournalStatusDraft {
			return fmt.Errorf("%w: entry %s is %s", shared.ErrInvalidState, current.Number, current.Status)
		}
		postedAt := s.now()
		if err := tx.MarkPosted(ctx, entryID, approverID, postedAt); err != nil {
			return err
		}
		lines, err := tx.GetLines(ctx, entryID)
		if err != nil {
			return err
		}
		if err := s.applyMovements(ctx, tx, current, lines); err != nil {
			return err
		}
		current.Status = JournalStatusPosted
		current.PostedBy = &approverID
		current.PostedAt = &postedAt
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, approverID, "journal.post", entry.ID, map[string]any{"number": entry.Number})
	return entry, nil
}

// PostSourceEvent converts an approved financial event into a balanced
// two-line entry, posted immediately. The unique source link makes replays
// fail with ErrSourceAlreadyLinked instead of double-posting.
func (s *Service) PostSourceEvent(ctx context.Context, input SourceEventInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	mapping, err := s.mappings.Get(ctx, input.TenantID, input.SourceType)
	if err != nil {
		return JournalEntry{}, err
	}
	if input.Date.IsZero() {
		input.Date = s.now()
	}
	amount := round2(input.Amount)
	lines := []LineInput{
		{AccountID: mapping.DebitAccountID, Description: input.Description, Debit: amount},
		{AccountID: mapping.CreditAccountID, Description: input.Description, Credit: amount},
	}
	postedAt := s.now()
	entry := JournalEntry{
		TenantID:    input.TenantID,
		BranchID:    input.BranchID,
		Date:        input.Date,
		Description: input.Description,
		TotalDebit:  amount,
		TotalCredit: amount,
		Status:      JournalStatusPosted,
		SourceType:  input.SourceType,
		SourceID:    input.SourceID,
		CreatedBy:   input.ActorID,
		PostedBy:    &input.ActorID,
		PostedAt:    &postedAt,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextEntryNumber(ctx, input.TenantID, input.Date.Year())
		if err != nil {
			return err
		}
		entry.Number = number
		inserted, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, lines); err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, input.SourceType, input.SourceID, inserted.ID); err != nil {
			return err
		}
		if err := s.applyMovements(ctx, tx, inserted, toJournalLines(inserted.ID, lines, postedAt)); err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = toJournalLines(entry.ID, lines, postedAt)
	s.recordAudit(ctx, input.ActorID, "journal.post_source", entry.ID, map[string]any{
		"number":      entry.Number,
		"source_type": input.SourceType,
		"source_id":   input.SourceID.String(),
	})
	return entry, nil
}

// ReverseEntry creates a balanced reversing entry for a posted one.
// Corrections never mutate existing lines.
func (s *Service) ReverseEntry(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, fmt.Errorf("%w: entry id required", shared.ErrValidation)
	}
	var reversal JournalEntry
	var reversedLines []LineInput
	postedAt := s.now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryForUpdate(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != JournalStatusPosted {
			return fmt.Errorf("%w: only posted entries can be reversed", shared.ErrInvalidState)
		}
		lines, err := tx.GetLines(ctx, input.EntryID)
		if err != nil {
			return err
		}
		reversedLines = reverseLines(lines)
		entry := JournalEntry{
			TenantID:    original.TenantID,
			BranchID:    original.BranchID,
			Date:        postedAt,
			Description: defaultReversalDescription(input.Description, original.Number),
			TotalDebit:  original.TotalCredit,
			TotalCredit: original.TotalDebit,
			Status:      JournalStatusPosted,
			SourceType:  original.SourceType + ":REVERSAL",
			SourceID:    uuid.New(),
			CreatedBy:   input.ActorID,
			PostedBy:    &input.ActorID,
			PostedAt:    &postedAt,
		}
		number, err := tx.NextEntryNumber(ctx, original.TenantID, postedAt.Year())
		if err != nil {
			return err
		}
		entry.Number = number
		inserted, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, reversedLines); err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, entry.SourceType, entry.SourceID, inserted.ID); err != nil {
			return err
		}
		if err := s.applyMovements(ctx, tx, inserted, toJournalLines(inserted.ID, reversedLines, postedAt)); err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	reversal.Lines = toJournalLines(reversal.ID, reversedLines, postedAt)
	s.recordAudit(ctx, input.ActorID, "journal.reverse", input.EntryID, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.Number,
	})
	return reversal, nil
}

// applyMovements increments the period balance row for every line of a
// posted entry. The additive semantics keep historical closings correct.
func (s *Service) applyMovements(ctx context.Context, tx TxRepository, entry JournalEntry, lines []JournalLine) error {
	period := shared.PeriodOf(entry.Date)
	for _, line := range lines {
		movement := BalanceMovement{
			AccountID:   line.AccountID,
			TenantID:    entry.TenantID,
			BranchID:    entry.BranchID,
			FiscalYear:  period.Year,
			FiscalMonth: period.Month,
			Debit:       line.Debit,
			Credit:      line.Credit,
		}
		if err := tx.UpsertBalanceMovement(ctx, movement); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entryID),
		Meta:     meta,
		At:       s.now(),
	})
}

func reverseLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       line.Credit,
			Credit:      line.Debit,
		})
	}
	return out
}

func toJournalLines(entryID int64, lines []LineInput, ts time.Time) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			JournalID:   entryID,
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       line.Debit,
			Credit:      line.Credit,
			CreatedAt:   ts,
		})
	}
	return out
}

func defaultReversalDescription(desc, number string) string {
	if desc != "" {
		return desc
	}
	return fmt.Sprintf("Reversal of %s", number)
}
