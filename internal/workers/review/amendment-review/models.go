package amendmentreview

import "time"

// Input covers all three amendment task types; each reads only its own fields.
type Input struct {
	ApplicationID      string     `json:"applicationId"`
	AmendmentID        string     `json:"amendmentId"`
	PerformingUserID   string     `json:"performingUserId"`
	Reason             string     `json:"reason"`
	ResponseDeadline   *time.Time `json:"responseDeadline"`
	Agreed             *bool      `json:"agreed"`
	DisagreementReason string     `json:"disagreementReason"`
	ReminderAt         *time.Time `json:"reminderAt"`
}

type Output struct {
	AmendmentID      string    `json:"amendmentId"`
	ApplicationID    string    `json:"applicationId"`
	ResponseDeadline time.Time `json:"responseDeadline"`
	ResponseReceived bool      `json:"responseReceived"`
	ApplicantAgreed  *bool     `json:"applicantAgreed,omitempty"`
}
