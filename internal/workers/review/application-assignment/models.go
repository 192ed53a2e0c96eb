package applicationassignment

type Input struct {
	ApplicationID    string `json:"applicationId"`
	PerformingUserID string `json:"performingUserId"`
	Role             string `json:"role"`
	AssignedUserID   string `json:"assignedUserId"`
}

type Output struct {
	ApplicationID   string `json:"applicationId"`
	Role            string `json:"role"`
	CurrentAssignee string `json:"currentAssignee,omitempty"`
	Changed         bool   `json:"changed"`
	Status          string `json:"status"`
}
