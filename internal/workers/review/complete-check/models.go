package completecheck

// Input is the job payload of every admin officer check task.
// InspectionLogConfirmed and MoratoriumConfirmed only apply to the larch check.
type Input struct {
	ApplicationID          string `json:"applicationId"`
	PerformingUserID       string `json:"performingUserId"`
	Passed                 *bool  `json:"passed"`
	Reason                 string `json:"reason"`
	InspectionLogConfirmed *bool  `json:"inspectionLogConfirmed"`
	MoratoriumConfirmed    *bool  `json:"moratoriumConfirmed"`
}

type Output struct {
	ApplicationID   string `json:"applicationId"`
	Check           string `json:"check"`
	ReviewCompleted bool   `json:"reviewCompleted"`
}
