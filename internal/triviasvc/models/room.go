package models

import (
	"database/sql"
	"time"
)

// Room status values. Transitions are one-way:
// waiting -> in_progress -> finished.
const (
	RoomWaiting    = "waiting"
	RoomInProgress = "in_progress"
	RoomFinished   = "finished"
)

type Room struct {
	ID           string       `json:"id"`            // Primary key (uuid)
	Name         string       `json:"name"`          // Display name
	Status       string       `json:"status"`        // 'waiting', 'in_progress', 'finished'
	MaxPlayers   int          `json:"max_players"`   // Player cap
	CurrentRound int          `json:"current_round"` // 0 while waiting, 1..TotalRounds once started
	TotalRounds  int          `json:"total_rounds"`
	Categories   []string     `json:"categories"` // Category filter for question selection
	OwnerID      string       `json:"owner_id"`   // FK to users (external identity)
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    sql.NullTime `json:"started_at"`
	EndedAt      sql.NullTime `json:"ended_at"`
	PlayerCount  int          `json:"player_count"` // Active sessions, filled on read
}
