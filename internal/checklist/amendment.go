package checklist

import (
	"strings"
	"time"
)

// AmendmentReview tracks one round of amendments sent to the applicant.
// An application has at most one pending (unanswered) round.
type AmendmentReview struct {
	ID                          string     `json:"id"`
	ApplicationID               string     `json:"applicationId"`
	AmendingUserID              string     `json:"amendingUserId"`
	AmendmentsSentAt            time.Time  `json:"amendmentsSentAt"`
	ResponseDeadline            time.Time  `json:"responseDeadline"`
	AmendmentsReason            string     `json:"amendmentsReason,omitempty"`
	ResponseReceivedAt          *time.Time `json:"responseReceivedAt,omitempty"`
	ApplicantAgreed             *bool      `json:"applicantAgreed,omitempty"`
	ApplicantDisagreementReason string     `json:"applicantDisagreementReason,omitempty"`
	RespondingUserID            string     `json:"respondingUserId,omitempty"`
	ReminderNotificationSentAt  *time.Time `json:"reminderNotificationSentAt,omitempty"`
}

// Pending reports whether the applicant has not yet responded.
func (a *AmendmentReview) Pending() bool {
	return a.ResponseReceivedAt == nil
}

// RecordResponse stores the applicant's answer.
func (a *AmendmentReview) RecordResponse(agreed *bool, reason, userID string, at time.Time) error {
	if agreed == nil {
		return ErrAgreementUnspecified
	}
	if !*agreed && strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	if !a.Pending() {
		return ErrAlreadyResponded
	}
	received := at
	a.ResponseReceivedAt = &received
	a.ApplicantAgreed = BoolPtr(*agreed)
	a.ApplicantDisagreementReason = ""
	if !*agreed {
		a.ApplicantDisagreementReason = reason
	}
	a.RespondingUserID = userID
	return nil
}

// SetReminder sets, or with nil clears, the reminder timestamp.
func (a *AmendmentReview) SetReminder(at *time.Time) {
	if at == nil {
		a.ReminderNotificationSentAt = nil
		return
	}
	sent := *at
	a.ReminderNotificationSentAt = &sent
}

func (a *AmendmentReview) Clone() *AmendmentReview {
	c := *a
	return &c
}
