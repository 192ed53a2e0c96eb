// Package ledger keeps the append-only status history and the per-role
// assignment history of a felling licence application.
package ledger

import (
	"errors"
	"time"
)

// Role is a function a user performs on an application.
type Role string

const (
	RoleAuthor          Role = "Author"
	RoleApplicant       Role = "Applicant"
	RoleAdminOfficer    Role = "AdminOfficer"
	RoleWoodlandOfficer Role = "WoodlandOfficer"
	RoleFieldManager    Role = "FieldManager"
	RoleApprover        Role = "Approver"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAuthor, RoleApplicant, RoleAdminOfficer, RoleWoodlandOfficer, RoleFieldManager, RoleApprover:
		return true
	}
	return false
}

// Status is a lifecycle state of an application.
type Status string

const (
	StatusDraft                 Status = "Draft"
	StatusSubmitted             Status = "Submitted"
	StatusReceived              Status = "Received"
	StatusAdminOfficerReview    Status = "AdminOfficerReview"
	StatusWoodlandOfficerReview Status = "WoodlandOfficerReview"
	StatusWithApplicant         Status = "WithApplicant"
	StatusSentForApproval       Status = "SentForApproval"
	StatusApproved              Status = "Approved"
	StatusRefused               Status = "Refused"
	StatusWithdrawn             Status = "Withdrawn"
)

var ErrOutOfOrder = errors.New("status entry predates the current status")

// StatusEntry records one transition.
type StatusEntry struct {
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedByID string    `json:"createdById,omitempty"`
}

// StatusHistory is ordered oldest first. Entries are never removed.
type StatusHistory []StatusEntry

// Current returns the most recent status.
func (h StatusHistory) Current() (Status, bool) {
	if len(h) == 0 {
		return "", false
	}
	return h[len(h)-1].Status, true
}

// Append adds a transition. Entries must not go back in time.
func (h *StatusHistory) Append(status Status, at time.Time, actorID string) (StatusEntry, error) {
	if n := len(*h); n > 0 && at.Before((*h)[n-1].CreatedAt) {
		return StatusEntry{}, ErrOutOfOrder
	}
	entry := StatusEntry{Status: status, CreatedAt: at, CreatedByID: actorID}
	*h = append(*h, entry)
	return entry, nil
}

// Assignment is one (role, holder, start, end-or-open) tuple.
type Assignment struct {
	ID           string     `json:"id"`
	Role         Role       `json:"role"`
	UserID       string     `json:"userId"`
	AssignedAt   time.Time  `json:"assignedAt"`
	UnassignedAt *time.Time `json:"unassignedAt,omitempty"`
}

// Open reports whether the assignment has not been closed.
func (a Assignment) Open() bool {
	return a.UnassignedAt == nil
}

// Assignments is the assignment history of one application, oldest first.
// For each role at most one entry is open.
type Assignments []Assignment

// Current returns the open assignment for role.
func (as Assignments) Current(role Role) (Assignment, bool) {
	for i := len(as) - 1; i >= 0; i-- {
		if as[i].Role == role && as[i].Open() {
			return as[i], true
		}
	}
	return Assignment{}, false
}

// CurrentAssignee returns the holder of the open assignment for role.
func (as Assignments) CurrentAssignee(role Role) (string, bool) {
	a, ok := as.Current(role)
	return a.UserID, ok
}

// IsCurrentAssignee reports whether userID holds role right now.
func (as Assignments) IsCurrentAssignee(role Role, userID string) bool {
	holder, ok := as.CurrentAssignee(role)
	return ok && userID != "" && holder == userID
}

// Assign closes any open entry for role and opens a new one for userID.
// The closed entry, if there was one, is returned alongside the opened entry
// so callers can persist both.
func (as *Assignments) Assign(id string, role Role, userID string, at time.Time) (closed *Assignment, opened Assignment) {
	closed = as.Unassign(role, at)
	opened = Assignment{ID: id, Role: role, UserID: userID, AssignedAt: at}
	*as = append(*as, opened)
	return closed, opened
}

// Unassign closes the open entry for role. It is a no-op returning nil when
// nobody holds the role.
func (as *Assignments) Unassign(role Role, at time.Time) *Assignment {
	for i := len(*as) - 1; i >= 0; i-- {
		a := &(*as)[i]
		if a.Role == role && a.Open() {
			end := at
			a.UnassignedAt = &end
			closed := *a
			return &closed
		}
	}
	return nil
}

// Validate checks the at-most-one-open-entry-per-role rule.
func (as Assignments) Validate() error {
	open := make(map[Role]bool)
	for _, a := range as {
		if !a.Open() {
			continue
		}
		if open[a.Role] {
			return errors.New("more than one open assignment for role " + string(a.Role))
		}
		open[a.Role] = true
	}
	return nil
}
