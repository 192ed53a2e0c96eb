// internal/models/notification.go
package models

// NotificationType selects the template a notification is rendered with.
type NotificationType string

const (
	NotificationUserAssignedForReview     NotificationType = "UserAssignedForReview"
	NotificationApplicationProgressed     NotificationType = "ApplicationProgressed"
	NotificationEiaFormsIncorrectReminder NotificationType = "EiaFormsIncorrectReminder"
	NotificationEiaFormsMissingReminder   NotificationType = "EiaFormsMissingReminder"
	NotificationAmendmentsSent            NotificationType = "AmendmentsSentToApplicant"
)
