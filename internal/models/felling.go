package models

// ConfirmedFellingAndRestocking is the woodland officer's confirmed view of
// what will be felled and restocked, per compartment.
type ConfirmedFellingAndRestocking struct {
	ApplicationID          string               `json:"applicationId"`
	Compartments           []CompartmentFelling `json:"compartments"`
	AmendedSinceSubmission bool                 `json:"amendedSinceSubmission"`
}

type CompartmentFelling struct {
	CompartmentID    string       `json:"compartmentId"`
	CompartmentName  string       `json:"compartmentName"`
	FellingOperation string       `json:"fellingOperation"`
	Species          []string     `json:"species"`
	AreaHectares     float64      `json:"areaHectares"`
	NumberOfTrees    *int         `json:"numberOfTrees,omitempty"`
	Restocking       []Restocking `json:"restocking,omitempty"`
}

type Restocking struct {
	Operation    string   `json:"operation"`
	Species      []string `json:"species"`
	AreaHectares float64  `json:"areaHectares"`
	Density      *float64 `json:"density,omitempty"`
}

// LicenceCondition is one generated condition attached to the licence.
type LicenceCondition struct {
	Number                int      `json:"number"`
	Lines                 []string `json:"lines"`
	AppliesToCompartments []string `json:"appliesToCompartments"`
}
