package model

// Hit is one ranked result of a similar-ticket search.
type Hit struct {
	Score           float64  `json:"score"`
	TicketID        string   `json:"ticketId"`
	DisplayID       string   `json:"displayId"`
	Subject         string   `json:"subject"`
	Requester       string   `json:"requester"`
	Technician      string   `json:"technician"`
	Status          string   `json:"status"`
	Priority        string   `json:"priority"`
	ResolutionSteps []string `json:"resolutionSteps"`
	MatchedFields   []string `json:"matched_fields"`
}

// RecommendedStep is one synthesized resolution step.
type RecommendedStep struct {
	Step                 string   `json:"step"`
	SupportingDisplayIDs []string `json:"supportingDisplayIds"`
	Notes                string   `json:"notes"`
}

// Suggestion is the resolution proposal for a new ticket.
type Suggestion struct {
	RecommendedSteps []RecommendedStep `json:"recommendedSteps"`
	Sources          []Hit             `json:"sources"`
	Synthesized      bool              `json:"synthesized,omitempty"`
}
