// Package escalation watches SLA deadlines and raises accountability for
// overdue complaints: a pure evaluator that decides the required level, a
// service that records the escalation atomically, and a scheduler that
// sweeps the active set on a cadence.
package escalation

import (
	"fmt"
	"time"

	"github.com/civictech/grievance-core/domain"
)

// Thresholds configures the day counts at which a complaint escalates.
// They apply globally, not per department or category.
type Thresholds struct {
	L1Days int
	L2Days int
}

// DefaultThresholds: more than 1 day overdue -> L1, more than 3 days -> L2.
var DefaultThresholds = Thresholds{L1Days: 1, L2Days: 3}

// Evaluator is pure: it has no I/O dependency.
type Evaluator struct {
	thresholds Thresholds
}

func NewEvaluator(thresholds Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// daysBetween computes whole calendar days from deadline to today (may be negative).
func daysBetween(deadline, today time.Time) int {
	d := today.Truncate(24 * time.Hour).Sub(deadline.Truncate(24 * time.Hour))
	return int(d.Hours() / 24)
}

// Evaluate computes the escalation level a complaint requires as of today.
// A complaint already at or above its required level never escalates, so
// the level only ever moves up.
func (e *Evaluator) Evaluate(complaint *domain.Complaint, today time.Time) domain.EscalationOutcome {
	if !complaint.SLADeadline.Valid {
		return domain.NoEscalation(complaint.EscalationLevel, "no SLA set")
	}

	deadline := complaint.SLADeadline.Time
	daysOverdue := daysBetween(deadline, today)
	if daysOverdue <= 0 {
		return domain.NoEscalation(complaint.EscalationLevel, "within SLA")
	}

	required := domain.EscalationL0
	switch {
	case daysOverdue > e.thresholds.L2Days:
		required = domain.EscalationL2
	case daysOverdue > e.thresholds.L1Days:
		required = domain.EscalationL1
	}

	if required > complaint.EscalationLevel {
		return domain.EscalationOutcome{
			Required:      true,
			CurrentLevel:  complaint.EscalationLevel,
			RequiredLevel: required,
			DaysOverdue:   daysOverdue,
			SLADeadline:   deadline,
			Reason: fmt.Sprintf("complaint %d days overdue (deadline %s), escalating %s -> %s",
				daysOverdue, deadline.Format("2006-01-02"), complaint.EscalationLevel, required),
		}
	}
	out := domain.NoEscalation(complaint.EscalationLevel, "already at or above required level")
	out.RequiredLevel = required
	out.DaysOverdue = daysOverdue
	out.SLADeadline = deadline
	return out
}
