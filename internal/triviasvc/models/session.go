package models

import (
	"database/sql"
	"time"
)

// Session is one player's participation record within a room.
// At most one active (LeftAt null) session exists per (user, room).
type Session struct {
	ID             string       `json:"id"`      // Primary key (uuid)
	UserID         string       `json:"user_id"` // FK to users (external identity)
	RoomID         string       `json:"room_id"` // FK to rooms(id)
	Score          int          `json:"score"`
	CorrectAnswers int          `json:"correct_answers"`
	TotalAnswers   int          `json:"total_answers"`
	JoinedAt       time.Time    `json:"joined_at"`
	LeftAt         sql.NullTime `json:"left_at"`
}

// Active reports whether the session still counts toward
// round-completion accounting.
func (s *Session) Active() bool {
	return !s.LeftAt.Valid
}

// Accuracy is the percentage of correct answers, rounded to two decimals.
func (s *Session) Accuracy() float64 {
	if s.TotalAnswers == 0 {
		return 0
	}
	pct := float64(s.CorrectAnswers) / float64(s.TotalAnswers) * 100
	return float64(int(pct*100+0.5)) / 100
}
