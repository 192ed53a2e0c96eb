package checklist

import (
	"fmt"
	"time"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

// CheckKind names one sub-check of the admin officer review.
type CheckKind string

const (
	CheckMapping        CheckKind = "Mapping"
	CheckConstraints    CheckKind = "Constraints"
	CheckAgentAuthority CheckKind = "AgentAuthority"
	CheckLarch          CheckKind = "Larch"
	CheckTreeHealth     CheckKind = "TreeHealth"
	CheckEia            CheckKind = "Eia"
)

// OutcomeCheck is a sub-check answered with a single pass/fail decision.
type OutcomeCheck struct {
	Outcome  Decision `json:"outcome"`
	Complete bool     `json:"complete"`
}

// LarchCheck adds the inspection log and moratorium confirmations.
type LarchCheck struct {
	Outcome                Decision `json:"outcome"`
	InspectionLogConfirmed *bool    `json:"inspectionLogConfirmed,omitempty"`
	MoratoriumConfirmed    *bool    `json:"moratoriumConfirmed,omitempty"`
	Complete               bool     `json:"complete"`
}

func (c LarchCheck) resolved(cat models.Category) bool {
	if !c.Outcome.Resolved() || !isTrue(c.InspectionLogConfirmed) {
		return false
	}
	return !cat.LarchMoratorium || isTrue(c.MoratoriumConfirmed)
}

// EiaCheck is complete once the attached forms are confirmed correct or the
// missing forms are confirmed received.
type EiaCheck struct {
	AttachedFormsCorrect *bool `json:"attachedFormsCorrect,omitempty"`
	FormsReceived        *bool `json:"formsReceived,omitempty"`
	Complete             bool  `json:"complete"`
}

func (c EiaCheck) resolved() bool {
	return isTrue(c.AttachedFormsCorrect) || isTrue(c.FormsReceived)
}

// CheckInput is the decision payload for a sub-check. The confirmations are
// only read by the larch check.
type CheckInput struct {
	Outcome                Decision
	InspectionLogConfirmed *bool
	MoratoriumConfirmed    *bool
}

// AdminOfficerReview is the first internal review stage.
type AdminOfficerReview struct {
	ApplicationID   string       `json:"applicationId"`
	Mapping         OutcomeCheck `json:"mapping"`
	Constraints     OutcomeCheck `json:"constraints"`
	AgentAuthority  OutcomeCheck `json:"agentAuthority"`
	TreeHealth      OutcomeCheck `json:"treeHealth"`
	Larch           LarchCheck   `json:"larch"`
	Eia             EiaCheck     `json:"eia"`
	Complete        bool         `json:"complete"`
	CompletedAt     *time.Time   `json:"completedAt,omitempty"`
	CompletedByID   string       `json:"completedById,omitempty"`
	LastUpdatedAt   time.Time    `json:"lastUpdatedAt"`
	LastUpdatedByID string       `json:"lastUpdatedById,omitempty"`
}

func NewAdminOfficerReview(applicationID string) *AdminOfficerReview {
	return &AdminOfficerReview{ApplicationID: applicationID}
}

// Clone returns an independent copy.
func (r *AdminOfficerReview) Clone() *AdminOfficerReview {
	c := *r
	return &c
}

// RequiredChecks lists the sub-checks that gate stage completion for cat.
func RequiredChecks(cat models.Category) []CheckKind {
	kinds := []CheckKind{CheckMapping, CheckConstraints}
	if cat.SubmittedByAgent {
		kinds = append(kinds, CheckAgentAuthority)
	}
	if cat.HasLarch && !cat.CricketBatWillow {
		kinds = append(kinds, CheckLarch)
	}
	if cat.RequiresEia && !cat.CricketBatWillow {
		kinds = append(kinds, CheckEia)
	}
	if cat.TreeHealthIssues {
		kinds = append(kinds, CheckTreeHealth)
	}
	return kinds
}

func (r *AdminOfficerReview) outcomeCheck(kind CheckKind) (*OutcomeCheck, bool) {
	switch kind {
	case CheckMapping:
		return &r.Mapping, true
	case CheckConstraints:
		return &r.Constraints, true
	case CheckAgentAuthority:
		return &r.AgentAuthority, true
	case CheckTreeHealth:
		return &r.TreeHealth, true
	}
	return nil, false
}

// Record writes a sub-check decision and returns the sub-check's recomputed
// completion flag. The EIA check is recorded through SetEiaForms*.
func (r *AdminOfficerReview) Record(kind CheckKind, in CheckInput, cat models.Category) (bool, error) {
	if r.Complete {
		return false, ErrAlreadyComplete
	}
	if kind == CheckEia {
		return false, fmt.Errorf("%w: %s is not recorded with a decision", ErrUnknownCheck, kind)
	}
	if err := in.Outcome.Validate(); err != nil {
		return false, err
	}

	if kind == CheckLarch {
		r.Larch.Outcome = in.Outcome
		r.Larch.InspectionLogConfirmed = in.InspectionLogConfirmed
		r.Larch.MoratoriumConfirmed = in.MoratoriumConfirmed
		r.Larch.Complete = r.Larch.resolved(cat)
		return r.Larch.Complete, nil
	}

	check, ok := r.outcomeCheck(kind)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownCheck, kind)
	}
	check.Outcome = in.Outcome
	check.Complete = check.Outcome.Resolved()
	return check.Complete, nil
}

// SetEiaFormsCorrect records whether the attached EIA forms are correct.
func (r *AdminOfficerReview) SetEiaFormsCorrect(correct bool) bool {
	r.Eia.AttachedFormsCorrect = BoolPtr(correct)
	r.Eia.Complete = r.Eia.resolved()
	return r.Eia.Complete
}

// SetEiaFormsReceived records whether the missing EIA forms have arrived.
func (r *AdminOfficerReview) SetEiaFormsReceived(received bool) bool {
	r.Eia.FormsReceived = BoolPtr(received)
	r.Eia.Complete = r.Eia.resolved()
	return r.Eia.Complete
}

// CheckComplete returns the stored completion flag of one sub-check.
func (r *AdminOfficerReview) CheckComplete(kind CheckKind) bool {
	switch kind {
	case CheckLarch:
		return r.Larch.Complete
	case CheckEia:
		return r.Eia.Complete
	}
	if check, ok := r.outcomeCheck(kind); ok {
		return check.Complete
	}
	return false
}

// IncompleteChecks lists required sub-checks that are not complete.
func (r *AdminOfficerReview) IncompleteChecks(cat models.Category) []CheckKind {
	var missing []CheckKind
	for _, kind := range RequiredChecks(cat) {
		if !r.CheckComplete(kind) {
			missing = append(missing, kind)
		}
	}
	return missing
}

// MarkComplete closes the stage. It refuses while any required sub-check is open.
func (r *AdminOfficerReview) MarkComplete(cat models.Category, at time.Time, userID string) error {
	if r.Complete {
		return ErrAlreadyComplete
	}
	if missing := r.IncompleteChecks(cat); len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrIncomplete, missing)
	}
	completedAt := at
	r.Complete = true
	r.CompletedAt = &completedAt
	r.CompletedByID = userID
	r.Touch(at, userID)
	return nil
}

// Touch stamps the last update.
func (r *AdminOfficerReview) Touch(at time.Time, userID string) {
	r.LastUpdatedAt = at
	r.LastUpdatedByID = userID
}
