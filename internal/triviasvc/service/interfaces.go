package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

// Store contracts consumed by the services. The pgx stores in
// internal/triviasvc/store satisfy them; tests substitute in-memory
// fakes.

type RoomStore interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoomByID(ctx context.Context, roomID string) (*models.Room, error)
	ListRooms(ctx context.Context, status string, limit int) ([]*models.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
	StartGame(ctx context.Context, roomID string, assignments []*models.RoundAssignment, now time.Time) error
	AdvanceRound(ctx context.Context, roomID string, fromRound int, now time.Time) error
	FinishGame(ctx context.Context, roomID string, fromRound int, now time.Time) error
}

type SessionStore interface {
	CreateSessionIfJoinable(ctx context.Context, sessionID, roomID, userID string) (*models.Session, error)
	GetActiveSession(ctx context.Context, roomID, userID string) (*models.Session, error)
	GetSessionsByRoom(ctx context.Context, roomID string) ([]*models.Session, error)
	GetActiveSessionsByRoom(ctx context.Context, roomID string) ([]*models.Session, error)
	CloseSession(ctx context.Context, roomID, userID string, now time.Time) error
}

type RoundStore interface {
	GetAssignment(ctx context.Context, roomID string, roundNumber int) (*models.RoundAssignment, error)
	GetAssignmentsByRoom(ctx context.Context, roomID string) ([]*models.RoundAssignment, error)
	CloseRound(ctx context.Context, assignmentID string, now time.Time) (bool, error)
}

type AnswerStore interface {
	CreateAnswer(ctx context.Context, ans *models.Answer, scoreDelta int) error
	HasAnswer(ctx context.Context, sessionID, assignmentID string) (bool, error)
	AnsweredSessionIDs(ctx context.Context, assignmentID string) (map[string]bool, error)
	ForfeitUnanswered(ctx context.Context, roomID, assignmentID string, timeTaken float64, now time.Time) (int, error)
	TotalTimesBySession(ctx context.Context, roomID string) (map[string]decimal.Decimal, error)
}

// Catalog is the external question bank.
type Catalog interface {
	PickQuestions(ctx context.Context, categories []string, n int) ([]*models.Question, error)
	GetQuestion(ctx context.Context, questionID string) (*models.Question, error)
}

// Publisher fans a room event out to subscribers. Called only after the
// corresponding state change is durable.
type Publisher interface {
	PublishRoomEvent(roomID, eventType string, payload interface{})
}
