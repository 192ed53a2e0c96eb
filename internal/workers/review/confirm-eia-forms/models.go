package confirmeiaforms

// Input carries the admin officer's yes/no answer for one EIA path.
type Input struct {
	ApplicationID    string `json:"applicationId"`
	PerformingUserID string `json:"performingUserId"`
	Value            *bool  `json:"value"`
}

type Output struct {
	ApplicationID string `json:"applicationId"`
	EiaComplete   bool   `json:"eiaComplete"`
	ReminderSent  bool   `json:"reminderSent"`
}
