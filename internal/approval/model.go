// Package approval resolves approver chains and records approval history.
package approval

// Amount thresholds for the petty cash approval bands. Each band is
// evaluated independently; a large amount can require approvers from
// more than one band.
const (
	ThresholdBranchManager = 1000.0
	ThresholdFinance       = 5000.0
	ThresholdDirector      = 10000.0
)

// Chain levels produced by the bands.
const (
	LevelStaff     = 1
	LevelExecutive = 2
)

// ChainStep is one required approval in an ordered chain.
type ChainStep struct {
	Level       int
	ApproverID  int64
	AmountLimit float64
}
