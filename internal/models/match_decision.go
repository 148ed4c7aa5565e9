package models

// MatchDecision is an operator's verdict on one pending match.
type MatchDecision struct {
	MatchID uint
	Approve bool
}
