package checklist

import (
	"time"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

// WoodlandOfficerReview is the second internal review stage.
type WoodlandOfficerReview struct {
	ApplicationID                      string     `json:"applicationId"`
	FellingAndRestockingChangesPending bool       `json:"fellingAndRestockingChangesPending"`
	ConditionsGeneratedAt              *time.Time `json:"conditionsGeneratedAt,omitempty"`
	ConditionsConfirmed                *bool      `json:"conditionsConfirmed,omitempty"`
	SiteVisit                          Decision   `json:"siteVisit"`
	Complete                           bool       `json:"complete"`
	CompletedAt                        *time.Time `json:"completedAt,omitempty"`
	CompletedByID                      string     `json:"completedById,omitempty"`
	LastUpdatedAt                      time.Time  `json:"lastUpdatedAt"`
	LastUpdatedByID                    string     `json:"lastUpdatedById,omitempty"`
}

func NewWoodlandOfficerReview(applicationID string) *WoodlandOfficerReview {
	return &WoodlandOfficerReview{ApplicationID: applicationID}
}

func (r *WoodlandOfficerReview) Clone() *WoodlandOfficerReview {
	c := *r
	return &c
}

// ReconcileFellingAndRestocking carries the confirmed details' amendment flag
// into the review.
func (r *WoodlandOfficerReview) ReconcileFellingAndRestocking(confirmed *models.ConfirmedFellingAndRestocking, at time.Time, userID string) {
	r.FellingAndRestockingChangesPending = confirmed != nil && confirmed.AmendedSinceSubmission
	r.Touch(at, userID)
}

// ConditionsGenerated records a fresh conditions calculation, which must be
// confirmed again.
func (r *WoodlandOfficerReview) ConditionsGenerated(at time.Time, userID string) {
	generated := at
	r.ConditionsGeneratedAt = &generated
	r.ConditionsConfirmed = nil
	r.Touch(at, userID)
}

func (r *WoodlandOfficerReview) Touch(at time.Time, userID string) {
	r.LastUpdatedAt = at
	r.LastUpdatedByID = userID
}
