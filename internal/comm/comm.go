package comm

import (
	"encoding/json"

	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

// WSMessage is the frame exchanged between web clients and the socket
// service.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "subscribe", "unsubscribe"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
}

// Room event types published on the room.<id> NATS subject, in commit
// order of the underlying state change.
const (
	EventPlayerJoined    = "player_joined"
	EventPlayerLeft      = "player_left"
	EventGameStarted     = "game_started"
	EventAnswerSubmitted = "answer_submitted"
	EventNextRound       = "next_round"
	EventRoundClosed     = "round_closed"
	EventGameFinished    = "game_finished"
)

// RoomEvent is the wire shape for one room notification.
type RoomEvent struct {
	Type   string          `json:"type"`
	RoomID string          `json:"room_id"`
	Data   json.RawMessage `json:"data"`
}

type PlayerEvent struct {
	UserID string `json:"user_id"`
}

type GameStartedEvent struct {
	TotalRounds int `json:"total_rounds"`
}

// AnswerSubmittedEvent never carries the canonical answer; that is
// revealed only in the direct response to the submitting player.
type AnswerSubmittedEvent struct {
	UserID    string  `json:"user_id"`
	IsCorrect bool    `json:"is_correct"`
	TimeTaken float64 `json:"time_taken"`
}

type NextRoundEvent struct {
	CurrentRound int `json:"current_round"`
	TotalRounds  int `json:"total_rounds"`
}

type RoundClosedEvent struct {
	RoundNumber int `json:"round_number"`
	Forfeited   int `json:"forfeited"`
}

type GameFinishedEvent struct {
	Rankings []models.RankingEntry `json:"rankings"`
}
