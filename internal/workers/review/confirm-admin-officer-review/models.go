package confirmadminofficerreview

import "time"

type Input struct {
	ApplicationID    string `json:"applicationId"`
	PerformingUserID string `json:"performingUserId"`
}

type Output struct {
	ApplicationID       string    `json:"applicationId"`
	CompletedAt         time.Time `json:"completedAt"`
	WoodlandOfficerID   string    `json:"woodlandOfficerId"`
	ConditionsGenerated int       `json:"conditionsGenerated"`
	NotificationsSent   int       `json:"notificationsSent"`
}
