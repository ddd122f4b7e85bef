package purchasing

import "time"

// POStage enumerates the fixed approval/execution sequence. The order is
// total and stages cannot be skipped except past an unconfigured approver.
type POStage string

const (
	StageUnitManagerReview POStage = "UNIT_MANAGER_REVIEW"
	StageAccountantReview  POStage = "ACCOUNTANT_REVIEW"
	StageAuthorityReview   POStage = "APPROVING_AUTHORITY_REVIEW"
	StageManagerExecution  POStage = "MANAGER_EXECUTION"
	StageDeliveryPending   POStage = "DELIVERY_PENDING"
)

// approvalStages is the review sequence in order; StageDeliveryPending is
// the post-approval terminal stage and takes no approver.
var approvalStages = []POStage{
	StageUnitManagerReview,
	StageAccountantReview,
	StageAuthorityReview,
	StageManagerExecution,
}

// levelOf maps a review stage to its approval level.
func levelOf(stage POStage) int {
	for idx, s := range approvalStages {
		if s == stage {
			return idx + 1
		}
	}
	return 0
}

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusPending           POStatus = "PENDING"
	POStatusApproved          POStatus = "APPROVED"
	POStatusPartiallyReceived POStatus = "PARTIALLY_RECEIVED"
	POStatusCompleted         POStatus = "COMPLETED"
	POStatusRejected          POStatus = "REJECTED"
)

// ApprovalStatus enumerates per-step approval record states.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
	ApprovalStatusSkipped  ApprovalStatus = "SKIPPED"
)

// ReceiptSide identifies which party confirms physical receipt.
type ReceiptSide string

const (
	ReceiptSideAccountant ReceiptSide = "ACCOUNTANT"
	ReceiptSideUnit       ReceiptSide = "UNIT"
)

// PurchaseOrder domain model. The current-action owner is whoever holds
// CurrentApproverID; it passes along the stage sequence.
type PurchaseOrder struct {
	ID                  int64
	TenantID            int64
	BranchID            int64
	Number              string
	RequesterID         int64
	Vendor              string
	Total               float64
	Stage               POStage
	CurrentApproverID   *int64
	ApprovalLevel       int
	Status              POStatus
	AccountantConfirmed bool
	UnitConfirmed       bool
	ExecutedBy          *int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// POItem represents an ordered line.
type POItem struct {
	ID          int64
	POID        int64
	Description string
	Qty         float64
	UnitPrice   float64
}

// ApprovalRecord is one append-only row in the PO approval audit trail.
type ApprovalRecord struct {
	ID         int64
	POID       int64
	ApproverID int64
	Level      int
	Stage      POStage
	Status     ApprovalStatus
	Comments   string
	ActedAt    *time.Time
	CreatedAt  time.Time
}
