// Package statemachine is the pure, stateless complaint lifecycle: which
// transitions are legal, and which roles may perform each. It has no I/O
// and no dependency on any other component.
package statemachine

import "github.com/civictech/grievance-core/domain"

// transitions is FROM -> set of legal TO statuses.
var transitions = map[domain.Status][]domain.Status{
	domain.StatusFiled:      {domain.StatusInProgress, domain.StatusCancelled},
	domain.StatusInProgress: {domain.StatusResolved, domain.StatusCancelled},
	domain.StatusResolved:   {domain.StatusClosed, domain.StatusCancelled, domain.StatusInProgress},
	domain.StatusClosed:     {},
	domain.StatusCancelled:  {},
}

// roleAllow maps a (from, to) pair to the roles permitted to perform it.
// RESOLVED -> IN_PROGRESS is SYSTEM-only and gated further by the dispute
// workflow; it is never directly role-authorized for a human.
var roleAllow = map[[2]domain.Status][]domain.Role{
	{domain.StatusFiled, domain.StatusInProgress}:     {domain.RoleSystem},
	{domain.StatusInProgress, domain.StatusResolved}:  {domain.RoleStaff, domain.RoleDeptHead},
	{domain.StatusResolved, domain.StatusClosed}:      {domain.RoleCitizen, domain.RoleSystem},
	{domain.StatusResolved, domain.StatusInProgress}:  {domain.RoleSystem},
	{domain.StatusFiled, domain.StatusCancelled}:      {domain.RoleCitizen, domain.RoleAdmin},
	{domain.StatusInProgress, domain.StatusCancelled}: {domain.RoleCitizen, domain.RoleAdmin},
	{domain.StatusResolved, domain.StatusCancelled}:   {domain.RoleCitizen, domain.RoleAdmin},
}

// terminal is the set of states with no legal successors.
var terminal = map[domain.Status]bool{
	domain.StatusClosed:    true,
	domain.StatusCancelled: true,
}

// IsTerminal reports whether status has no legal successors.
func IsTerminal(status domain.Status) bool {
	return terminal[status]
}

// IsLegal reports whether from -> to is a legal transition in the FSM.
func IsLegal(from, to domain.Status) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns the set of statuses reachable from from in one step.
func AllowedTargets(from domain.Status) []domain.Status {
	out := make([]domain.Status, len(transitions[from]))
	copy(out, transitions[from])
	return out
}

// RoleAllowed reports whether role may perform from -> to.
func RoleAllowed(from, to domain.Status, role domain.Role) bool {
	for _, allowed := range roleAllow[[2]domain.Status{from, to}] {
		if allowed == role {
			return true
		}
	}
	return false
}

// AllowedRoles returns the roles permitted to perform from -> to, for
// diagnostics in UnauthorizedError.
func AllowedRoles(from, to domain.Status) []domain.Role {
	src := roleAllow[[2]domain.Status{from, to}]
	out := make([]domain.Role, len(src))
	copy(out, src)
	return out
}

// AllowedTransitionsForRole intersects AllowedTargets(from) with the RBAC
// policy for role.
func AllowedTransitionsForRole(from domain.Status, role domain.Role) []domain.Status {
	var out []domain.Status
	for _, to := range AllowedTargets(from) {
		if RoleAllowed(from, to, role) {
			out = append(out, to)
		}
	}
	return out
}
