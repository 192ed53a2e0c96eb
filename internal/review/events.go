package review

// Audit event names. A failed operation is recorded under its name plus
// the "Failure" suffix.
const (
	EventMappingCheck        = "UpdateMappingCheck"
	EventConstraintsCheck    = "UpdateConstraintsCheck"
	EventAgentAuthorityCheck = "UpdateAgentAuthorityFormCheck"
	EventLarchCheck          = "UpdateLarchCheck"
	EventTreeHealthCheck     = "UpdateTreeHealthCheck"

	EventConfirmAdminOfficerReview = "ConfirmAdminOfficerReview"
	EventNotificationSent          = "ConfirmAdminOfficerReviewNotificationSent"
	EventNotificationFailure       = "ConfirmAdminOfficerReviewNotificationFailure"

	EventEiaFormsCorrect  = "ConfirmAttachedEiaFormsAreCorrect"
	EventEiaFormsReceived = "ConfirmEiaFormsHaveBeenReceived"

	EventAmendmentsSent           = "AmendmentsSentToApplicant"
	EventApplicantAmendmentResult = "ApplicantAmendmentResponse"
	EventAmendmentReminderRearmed = "AmendmentReminderRearmed"

	EventAssignUser   = "AssignUserToApplication"
	EventUnassignUser = "UnassignUserFromApplication"
)

// Failure returns the failure event name for an operation event.
func Failure(event string) string {
	return event + "Failure"
}
