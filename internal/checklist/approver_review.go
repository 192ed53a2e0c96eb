package checklist

import "time"

// ApproverReview is the record of the final decision stage.
type ApproverReview struct {
	ApplicationID      string     `json:"applicationId"`
	Decision           Decision   `json:"decision"` // yes approves, no refuses with a reason
	ConditionsReviewed *bool      `json:"conditionsReviewed,omitempty"`
	Complete           bool       `json:"complete"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CompletedByID      string     `json:"completedById,omitempty"`
}
