package shared

import "errors"

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState occurs when an action violates the status workflow.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("invalid input")
	// ErrNotAssigned occurs when the actor is not the currently assigned approver.
	ErrNotAssigned = errors.New("actor is not the assigned approver")
	// ErrUnbalanced indicates debit != credit beyond tolerance.
	ErrUnbalanced = errors.New("journal lines must balance")
	// ErrInsufficientFunds indicates a disbursement would drive a fund negative.
	ErrInsufficientFunds = errors.New("fund balance insufficient")
	// ErrSourceAlreadyLinked indicates a derived posting replay.
	ErrSourceAlreadyLinked = errors.New("source already linked to a journal entry")
	// ErrNoApprover indicates no qualifying approver is configured for a step.
	ErrNoApprover = errors.New("no qualifying approver configured")
)
