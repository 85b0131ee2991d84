package api

// SpotSolution is the document the solver returns for one decision point.
// Only the fields the crawler reads are modeled; the full upstream payload
// is cached verbatim.
type SpotSolution struct {
	// ActionSolutions lists every action available at the spot.
	ActionSolutions []ActionSolution `json:"action_solutions"`
}

// ActionSolution is one action and the share of the spot's mass it takes.
type ActionSolution struct {
	Action Action `json:"action"`
	// TotalFrequency is the probability of taking Action at this spot.
	TotalFrequency float64 `json:"total_frequency"`
}

// Action describes an edge out of a spot.
type Action struct {
	// Code identifies the action within its spot (e.g. "R2.5", "F", "C").
	Code string `json:"code"`
	// Position is the seat acting at the spot.
	Position string `json:"position,omitempty"`
	// NextStreet marks an action that closes the current betting round.
	NextStreet bool `json:"next_street,omitempty"`
	// IsHandEnd marks an action that ends the hand.
	IsHandEnd bool `json:"is_hand_end,omitempty"`
}

// RefreshRequest is posted to the token endpoint.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse carries the short-lived bearer token.
type RefreshResponse struct {
	Access string `json:"access"`
}
