package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AnswerValue is the tagged variant for a submitted answer: a single
// token for multiple-choice questions, an ordered token list for
// multi-blank questions. Exactly one of the two forms is set.
type AnswerValue struct {
	Single  string
	Ordered []string
	IsList  bool
}

func SingleAnswer(token string) AnswerValue {
	return AnswerValue{Single: token}
}

func OrderedAnswer(tokens []string) AnswerValue {
	return AnswerValue{Ordered: tokens, IsList: true}
}

// Equals compares against canonical tokens. Ordered answers require
// exact sequence equality, no partial credit.
func (v AnswerValue) Equals(canonical AnswerValue) bool {
	if v.IsList != canonical.IsList {
		return false
	}
	if !v.IsList {
		return v.Single == canonical.Single
	}
	if len(v.Ordered) != len(canonical.Ordered) {
		return false
	}
	for i := range v.Ordered {
		if v.Ordered[i] != canonical.Ordered[i] {
			return false
		}
	}
	return true
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		return json.Marshal(v.Ordered)
	}
	return json.Marshal(v.Single)
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*v = SingleAnswer(single)
		return nil
	}
	var ordered []string
	if err := json.Unmarshal(data, &ordered); err == nil {
		*v = OrderedAnswer(ordered)
		return nil
	}
	return fmt.Errorf("answer value must be a string or a list of strings")
}

// Answer is one player's response to one round assignment. At most one
// exists per (session, round assignment); the store enforces this with
// a unique constraint.
type Answer struct {
	ID                string      `json:"id"`         // Primary key (uuid)
	SessionID         string      `json:"session_id"` // FK to game_sessions(id)
	RoundAssignmentID string      `json:"round_assignment_id"`
	Value             AnswerValue `json:"answer"`
	IsCorrect         bool        `json:"is_correct"`
	TimeTaken         float64     `json:"time_taken"` // Seconds, >= 0
	AnsweredAt        time.Time   `json:"answered_at"`
	Forfeited         bool        `json:"forfeited"` // Synthesized at deadline expiry
}
