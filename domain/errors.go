package domain

import "fmt"

// Domain error kinds. Each is a distinct type so callers can recover it
// with errors.As without losing the type across service boundaries.

// NotFoundError means the requested row does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// InvalidTransitionError means the state machine rejected FROM→TO.
type InvalidTransitionError struct {
	From, To     Status
	LegalTargets []Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s (legal targets: %v)", e.From, e.To, e.LegalTargets)
}

// UnauthorizedError means the caller's role may not perform this transition.
type UnauthorizedError struct {
	Role         Role
	AllowedRoles []Role
	From, To     Status
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("role %s not authorized for %s -> %s (allowed: %v)", e.Role, e.From, e.To, e.AllowedRoles)
}

// OwnershipViolationError means the citizen is not the complaint's owner.
type OwnershipViolationError struct {
	ComplaintID int64
	CallerID    int64
}

func (e *OwnershipViolationError) Error() string {
	return fmt.Sprintf("caller %d does not own complaint %d", e.CallerID, e.ComplaintID)
}

// DepartmentMismatchError means the caller's department differs from the complaint's.
type DepartmentMismatchError struct {
	ComplaintID     int64
	CallerDeptID    int64
	ComplaintDeptID int64
}

func (e *DepartmentMismatchError) Error() string {
	return fmt.Sprintf("caller department %d does not match complaint %d department %d",
		e.CallerDeptID, e.ComplaintID, e.ComplaintDeptID)
}

// ResolutionProofRequiredError means IN_PROGRESS→RESOLVED was attempted without proof.
type ResolutionProofRequiredError struct {
	ComplaintID int64
}

func (e *ResolutionProofRequiredError) Error() string {
	return fmt.Sprintf("complaint %d has no resolution proof on file", e.ComplaintID)
}

// SignoffRequiredError means RESOLVED→CLOSED was attempted by a human without an accepted signoff.
type SignoffRequiredError struct {
	ComplaintID int64
}

func (e *SignoffRequiredError) Error() string {
	return fmt.Sprintf("complaint %d has no accepted citizen signoff", e.ComplaintID)
}

// InvalidDisputeStateError means a dispute operation was attempted on a
// complaint/signoff not eligible for it.
type InvalidDisputeStateError struct {
	ComplaintID int64
	Reason      string
}

func (e *InvalidDisputeStateError) Error() string {
	return fmt.Sprintf("complaint %d not eligible for dispute operation: %s", e.ComplaintID, e.Reason)
}

// DuplicateDisputeError means a pending dispute already exists for this complaint.
type DuplicateDisputeError struct {
	ComplaintID int64
}

func (e *DuplicateDisputeError) Error() string {
	return fmt.Sprintf("complaint %d already has a pending dispute", e.ComplaintID)
}

// ConflictingUpdateError means a unique-constraint/optimistic-lock race was lost
// to a concurrent writer that got there first; the caller may treat this as success
// in idempotent flows.
type ConflictingUpdateError struct {
	Detail string
}

func (e *ConflictingUpdateError) Error() string {
	return fmt.Sprintf("conflicting update: %s", e.Detail)
}

// TransientIOError wraps a repository or notification I/O failure that may
// succeed on retry.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("transient I/O failure during %s: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error {
	return e.Err
}
