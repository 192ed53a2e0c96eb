// internal/models/application.go
package models

import (
	"time"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
)

// Category carries the application facts that decide which review checks apply.
type Category struct {
	CricketBatWillow bool `json:"cricketBatWillow"`
	HasLarch         bool `json:"hasLarch"`
	LarchMoratorium  bool `json:"larchMoratorium"`
	RequiresEia      bool `json:"requiresEia"`
	SubmittedByAgent bool `json:"submittedByAgent"`
	TreeHealthIssues bool `json:"treeHealthIssues"`
}

// Application is a felling licence application under review.
type Application struct {
	ID              string               `json:"id"`
	Reference       string               `json:"reference"`
	CreatedAt       time.Time            `json:"createdAt"`
	CreatedByID     string               `json:"createdById"`
	WoodlandOwnerID string               `json:"woodlandOwnerId,omitempty"`
	PropertyName    string               `json:"propertyName,omitempty"`
	Category        Category             `json:"category"`
	StatusHistory   ledger.StatusHistory `json:"statusHistory"`
	Assignees       ledger.Assignments   `json:"assignees"`
}

// CurrentStatus returns the latest status, or Draft for an application with no history.
func (a *Application) CurrentStatus() ledger.Status {
	if s, ok := a.StatusHistory.Current(); ok {
		return s
	}
	return ledger.StatusDraft
}

// ApplicantID is the current Applicant assignee, falling back to the author.
func (a *Application) ApplicantID() string {
	if id, ok := a.Assignees.CurrentAssignee(ledger.RoleApplicant); ok {
		return id
	}
	return a.CreatedByID
}

// Clone returns a copy that shares no slices with a.
func (a *Application) Clone() *Application {
	c := *a
	c.StatusHistory = append(ledger.StatusHistory(nil), a.StatusHistory...)
	c.Assignees = append(ledger.Assignments(nil), a.Assignees...)
	return &c
}
