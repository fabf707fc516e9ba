package domain

import "time"

// EscalationEvent is the immutable record of one escalation. Rows are
// never updated after insert, and at most one exists per
// (complaint, level) pair.
type EscalationEvent struct {
	ID                  int64
	ComplaintID         int64
	PreviousLevel       EscalationLevel
	Level               EscalationLevel
	EscalatedAt         time.Time
	EscalatedToRole     Role
	Reason              string
	DaysOverdue         int
	SLADeadlineSnapshot time.Time
	IsAutomated         bool
}

// EscalationOutcome is the result of evaluating a single complaint against
// the SLA clock; Required distinguishes an escalating verdict from a no-op.
type EscalationOutcome struct {
	Required      bool
	CurrentLevel  EscalationLevel
	RequiredLevel EscalationLevel
	DaysOverdue   int
	SLADeadline   time.Time
	Reason        string
}

// NoEscalation builds a non-escalating outcome.
func NoEscalation(current EscalationLevel, reason string) EscalationOutcome {
	return EscalationOutcome{Required: false, CurrentLevel: current, RequiredLevel: current, Reason: reason}
}

// RoleForLevel denormalises an escalation level into the role that owns
// it: staff at L0, the department head at L1, the commissioner at L2.
func RoleForLevel(level EscalationLevel) Role {
	switch level {
	case EscalationL1:
		return RoleDeptHead
	case EscalationL2:
		return RoleCommissioner
	default:
		return RoleStaff
	}
}
