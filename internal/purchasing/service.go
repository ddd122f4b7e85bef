package purchasing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/medichain-erp/medichain-erp/internal/approval"
	"github.com/medichain-erp/medichain-erp/internal/directory"
	"github.com/medichain-erp/medichain-erp/internal/ledger/journals"
	"github.com/medichain-erp/medichain-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPO(ctx context.Context, id int64) (PurchaseOrder, []POItem, error)
	ListApprovals(ctx context.Context, poID int64) ([]ApprovalRecord, error)
}

// ResolverPort exposes the approver lookups the stage machine needs.
type ResolverPort interface {
	ManagerOf(ctx context.Context, userID int64) (directory.User, error)
	AccountantFor(ctx context.Context, tenantID, branchID int64) (directory.User, error)
	AuthorityFor(ctx context.Context, tenantID, branchID int64, amount float64) (directory.User, error)
}

// PostingPort converts a completed receipt into a ledger entry.
type PostingPort interface {
	PostSourceEvent(ctx context.Context, input journals.SourceEventInput) (journals.JournalEntry, error)
}

// EventPort appends approval history events.
type EventPort interface {
	Record(ctx context.Context, evt approval.Event) error
}

// IdemPort guards receipt confirmations against client retries.
type IdemPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the purchase order workflow.
type Service struct {
	repo        RepositoryPort
	resolver    ResolverPort
	posting     PostingPort
	events      EventPort
	idempotency IdemPort
	audit       AuditPort
	now         func() time.Time
}

// NewService constructs the purchasing service.
func NewService(repo RepositoryPort, resolver ResolverPort, posting PostingPort, events EventPort, idempotency IdemPort, audit AuditPort) *Service {
	return &Service{repo: repo, resolver: resolver, posting: posting, events: events, idempotency: idempotency, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ItemInput describes an ordered line.
type ItemInput struct {
	Description string
	Qty         float64
	UnitPrice   float64
}

// CreatePOInput describes the creation payload.
type CreatePOInput struct {
	TenantID    int64
	BranchID    int64
	RequesterID int64
	Vendor      string
	Total       float64
	Items       []ItemInput
}

// Decision reports where an approval moved the PO.
type Decision struct {
	Stage      POStage
	ApproverID *int64
	Status     POStatus
}

// Create generates a sequential PO number, assigns the first-stage approver
// (the requester's unit manager) and opens the approval trail. Stages whose
// role has no occupant are skipped with a SKIP event.
func (s *Service) Create(ctx context.Context, input CreatePOInput) (PurchaseOrder, error) {
	if input.TenantID == 0 || input.BranchID == 0 || input.RequesterID == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: tenant, branch and requester required", shared.ErrValidation)
	}
	if input.Vendor == "" {
		return PurchaseOrder{}, fmt.Errorf("%w: vendor required", shared.ErrValidation)
	}
	total := input.Total
	if total == 0 {
		for _, item := range input.Items {
			total += item.Qty * item.UnitPrice
		}
		total = round2(total)
	}
	if total <= 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: total must be positive", shared.ErrValidation)
	}

	po := PurchaseOrder{
		TenantID:    input.TenantID,
		BranchID:    input.BranchID,
		RequesterID: input.RequesterID,
		Vendor:      input.Vendor,
		Total:       total,
		Stage:       StageUnitManagerReview,
		Status:      POStatusPending,
	}
	period := shared.PeriodOf(s.now())
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextPONumber(ctx, po.TenantID, period.YearMonth())
		if err != nil {
			return err
		}
		po.Number = number
		poID, err := tx.InsertPO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = poID
		for _, item := range input.Items {
			if item.Qty <= 0 {
				return fmt.Errorf("%w: item qty must be positive", shared.ErrValidation)
			}
			if err := tx.InsertItem(ctx, POItem{POID: poID, Description: item.Description, Qty: item.Qty, UnitPrice: item.UnitPrice}); err != nil {
				return err
			}
		}
		assigned, err := s.assignFrom(ctx, tx, &po, StageUnitManagerReview)
		if err != nil {
			return err
		}
		if err := tx.UpdatePOState(ctx, po.ID, po.Stage, po.CurrentApproverID, po.ApprovalLevel, po.Status); err != nil {
			return err
		}
		if assigned {
			s.recordEvent(ctx, po.ID, po.ApprovalLevel, *po.CurrentApproverID, approval.ActionSubmit,
				fmt.Sprintf("PO %s submitted", po.Number))
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.RequesterID, "po.create", po.ID, map[string]any{"number": po.Number, "total": po.Total})
	return po, nil
}

// Approve advances the PO one stage. The caller must be the currently
// assigned approver; a generic permission is not sufficient.
func (s *Service) Approve(ctx context.Context, poID, approverID int64, comments string) (Decision, error) {
	var decision Decision
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		number = po.Number
		if po.Status != POStatusPending {
			return fmt.Errorf("%w: purchase order is %s", shared.ErrInvalidState, po.Status)
		}
		if levelOf(po.Stage) == 0 {
			return fmt.Errorf("%w: unrecognized stage %q", shared.ErrInvalidState, po.Stage)
		}
		if po.CurrentApproverID == nil || *po.CurrentApproverID != approverID {
			return shared.ErrNotAssigned
		}

		actedAt := s.now()
		if err := tx.SetApprovalStatus(ctx, poID, po.ApprovalLevel, approverID, ApprovalStatusApproved, comments, actedAt); err != nil {
			return err
		}
		s.recordEvent(ctx, poID, po.ApprovalLevel, approverID, approval.ActionApprove, comments)

		if po.Stage == StageManagerExecution {
			// Terminal transition: the chain concludes, the manager who
			// executed the purchase is recorded and delivery begins.
			po.Stage = StageDeliveryPending
			po.Status = POStatusApproved
			po.CurrentApproverID = nil
			po.ExecutedBy = &approverID
			if err := tx.UpdatePOState(ctx, poID, po.Stage, nil, po.ApprovalLevel, po.Status); err != nil {
				return err
			}
			if err := tx.SetExecuted(ctx, poID, approverID); err != nil {
				return err
			}
			decision = Decision{Stage: po.Stage, Status: po.Status}
			return nil
		}

		next := following(po.Stage)
		po.Stage = next
		if _, err := s.assignFrom(ctx, tx, &po, next); err != nil {
			return err
		}
		if err := tx.UpdatePOState(ctx, poID, po.Stage, po.CurrentApproverID, po.ApprovalLevel, po.Status); err != nil {
			return err
		}
		decision = Decision{Stage: po.Stage, ApproverID: po.CurrentApproverID, Status: po.Status}
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	s.recordAudit(ctx, approverID, "po.approve", poID, map[string]any{"number": number, "next_stage": string(decision.Stage)})
	return decision, nil
}

// Reject terminates the PO from any non-terminal stage. No roll-back to an
// earlier stage exists.
func (s *Service) Reject(ctx context.Context, poID, approverID int64, comments string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPOForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		if po.Status != POStatusPending {
			return fmt.Errorf("%w: purchase order is %s", shared.ErrInvalidState, po.Status)
		}
		if po.CurrentApproverID == nil || *po.CurrentApproverID != approverID {
			return shared.ErrNotAssigned
		}
		if err := tx.SetApprovalStatus(ctx, poID, po.ApprovalLevel, approverID, ApprovalStatusRejected, comments, s.now()); err != nil {
			return err
		}
		if err := tx.UpdatePOState(ctx, poID, po.Stage, nil, po.ApprovalLevel, POStatusRejected); err != nil {
			return err
		}
		s.recordEvent(ctx, poID, po.ApprovalLevel, approverID, approval.ActionReject, comments)
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, approverID, "po.reject", poID, nil)
	return nil
}

// ConfirmReceived records one side of the goods receipt reconciliation.
// Both the accountant side and the unit side must confirm before the PO is
// completed; completion posts the receipt to the ledger.
func (s *Service) ConfirmReceived(ctx context.Context, poID, confirmerID int64, side ReceiptSide) error {
	if side != ReceiptSideAccountant && side != ReceiptSideUnit {
		return fmt.Errorf("%w: unknown receipt side %q", shared.ErrValidation, side)
	}
	probe, _, err := s.repo.GetPO(ctx, poID)
	if err != nil {
		return err
	}
	idemKey := fmt.Sprintf("PO-RECEIPT:%s:%s", probe.Number, side)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "purchasing.receipt"); err != nil {
			return err
		}
		inserted = true
	}
	var completed bool
	var po PurchaseOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPOForUpdate(ctx, poID)
		if err != nil {
			return err
		}
		if current.Status != POStatusApproved && current.Status != POStatusPartiallyReceived {
			return fmt.Errorf("%w: purchase order is %s", shared.ErrInvalidState, current.Status)
		}
		switch side {
		case ReceiptSideAccountant:
			current.AccountantConfirmed = true
		case ReceiptSideUnit:
			current.UnitConfirmed = true
		}
		if current.AccountantConfirmed && current.UnitConfirmed {
			current.Status = POStatusCompleted
			completed = true
		} else {
			current.Status = POStatusPartiallyReceived
		}
		if err := tx.SetReceiptState(ctx, poID, current.AccountantConfirmed, current.UnitConfirmed, current.Status); err != nil {
			return err
		}
		po = current
		if completed && s.posting != nil {
			_, err := s.posting.PostSourceEvent(ctx, journals.SourceEventInput{
				TenantID:    po.TenantID,
				BranchID:    po.BranchID,
				SourceType:  journals.SourcePOReceipt,
				SourceID:    poRefID(poID),
				Date:        s.now(),
				Description: fmt.Sprintf("Goods receipt for %s", po.Number),
				Amount:      po.Total,
				ActorID:     confirmerID,
			})
			if err != nil && !errors.Is(err, shared.ErrSourceAlreadyLinked) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return err
	}
	s.recordAudit(ctx, confirmerID, "po.confirm_received", poID, map[string]any{"side": string(side), "completed": completed})
	return nil
}

// Get loads a PO with its items.
func (s *Service) Get(ctx context.Context, poID int64) (PurchaseOrder, []POItem, error) {
	return s.repo.GetPO(ctx, poID)
}

// Approvals returns the append-only approval trail for a PO.
func (s *Service) Approvals(ctx context.Context, poID int64) ([]ApprovalRecord, error) {
	return s.repo.ListApprovals(ctx, poID)
}

// assignFrom walks the stage sequence from the given stage, assigning the
// first stage whose role has an occupant. Absent occupants are skipped with
// a SKIP record; exhausting the sequence auto-approves the PO.
func (s *Service) assignFrom(ctx context.Context, tx TxRepository, po *PurchaseOrder, from POStage) (bool, error) {
	stage := from
	for stage != StageDeliveryPending {
		occupant, err := s.occupantFor(ctx, *po, stage)
		if err == nil {
			level := levelOf(stage)
			po.Stage = stage
			po.CurrentApproverID = &occupant.ID
			po.ApprovalLevel = level
			if err := tx.InsertApproval(ctx, ApprovalRecord{
				POID:       po.ID,
				ApproverID: occupant.ID,
				Level:      level,
				Stage:      stage,
				Status:     ApprovalStatusPending,
			}); err != nil {
				return false, err
			}
			return true, nil
		}
		if !errors.Is(err, shared.ErrNoApprover) {
			return false, err
		}
		if err := tx.InsertApproval(ctx, ApprovalRecord{
			POID:   po.ID,
			Level:  levelOf(stage),
			Stage:  stage,
			Status: ApprovalStatusSkipped,
		}); err != nil {
			return false, err
		}
		s.recordEvent(ctx, po.ID, levelOf(stage), 0, approval.ActionSkip,
			fmt.Sprintf("no approver configured for stage %s", stage))
		stage = following(stage)
	}
	// Every remaining stage lacked an approver; the chain concludes.
	po.Stage = StageDeliveryPending
	po.Status = POStatusApproved
	po.CurrentApproverID = nil
	return false, nil
}

func (s *Service) occupantFor(ctx context.Context, po PurchaseOrder, stage POStage) (directory.User, error) {
	switch stage {
	case StageUnitManagerReview, StageManagerExecution:
		return s.resolver.ManagerOf(ctx, po.RequesterID)
	case StageAccountantReview:
		return s.resolver.AccountantFor(ctx, po.TenantID, po.BranchID)
	case StageAuthorityReview:
		return s.resolver.AuthorityFor(ctx, po.TenantID, po.BranchID, po.Total)
	}
	return directory.User{}, fmt.Errorf("%w: unrecognized stage %q", shared.ErrInvalidState, stage)
}

func following(stage POStage) POStage {
	switch stage {
	case StageUnitManagerReview:
		return StageAccountantReview
	case StageAccountantReview:
		return StageAuthorityReview
	case StageAuthorityReview:
		return StageManagerExecution
	default:
		return StageDeliveryPending
	}
}

func (s *Service) recordEvent(ctx context.Context, poID int64, level int, actorID int64, action approval.Action, note string) {
	if s.events == nil {
		return
	}
	_ = s.events.Record(ctx, approval.Event{
		Module:  "PO",
		RefID:   poRefID(poID),
		Level:   level,
		ActorID: actorID,
		Action:  action,
		Note:    note,
		At:      s.now(),
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, poID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: fmt.Sprintf("%d", poID),
		Meta:     meta,
		At:       s.now(),
	})
}

func poRefID(poID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("PO:%d", poID)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
