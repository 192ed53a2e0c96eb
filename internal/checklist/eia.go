package checklist

import "time"

// EiaRequestType distinguishes the two EIA reminder paths.
type EiaRequestType string

const (
	EiaRequestAttachedFormsIncorrect EiaRequestType = "AttachedFormsIncorrect"
	EiaRequestFormsNotReceived       EiaRequestType = "FormsNotReceived"
)

// EiaRequest is an append-only record of a reminder sent to the applicant.
type EiaRequest struct {
	ID               string         `json:"id"`
	ApplicationID    string         `json:"applicationId"`
	RequestingUserID string         `json:"requestingUserId"`
	NotificationTime time.Time      `json:"notificationTime"`
	RequestType      EiaRequestType `json:"requestType"`
}
