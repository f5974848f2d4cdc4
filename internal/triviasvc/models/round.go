package models

import (
	"database/sql"
	"time"
)

// RoundAssignment binds a room round to one question. The full ordered
// set for a room is created atomically at game start and is immutable
// afterward; it is the authoritative round sequence.
type RoundAssignment struct {
	ID          string       `json:"id"`           // Primary key (uuid)
	RoomID      string       `json:"room_id"`      // FK to rooms(id)
	QuestionID  string       `json:"question_id"`  // Catalog question id
	RoundNumber int          `json:"round_number"` // 1-indexed, <= room.TotalRounds
	TimeLimit   int          `json:"time_limit"`   // Seconds
	StartedAt   sql.NullTime `json:"started_at"`   // Set when the round becomes current
	ClosedAt    sql.NullTime `json:"closed_at"`    // Set by the deadline timer
	CreatedAt   time.Time    `json:"created_at"`
}

// Deadline returns the instant after which submissions are rejected.
// Zero time when the round has not opened yet.
func (ra *RoundAssignment) Deadline() time.Time {
	if !ra.StartedAt.Valid {
		return time.Time{}
	}
	return ra.StartedAt.Time.Add(time.Duration(ra.TimeLimit) * time.Second)
}
