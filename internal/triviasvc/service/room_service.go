package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/renfu-her/trivia-services/internal/comm"
	"github.com/renfu-her/trivia-services/internal/triviasvc/errs"
	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

// Room creation limits, matching the public API contract.
const (
	MinRoomNameLen = 3
	MinPlayers     = 2
	MaxPlayers     = 20
	MinRounds      = 1
	MaxRounds      = 50
)

// RoomService is the room state machine: it owns the legality of
// join/leave/start/advance and the waiting -> in_progress -> finished
// lifecycle. Mutating operations on one room are serialized through the
// scheduler's per-room lock, which the deadline expiry path shares; the
// store-level CAS guards remain the last line against racing processes.
type RoomService struct {
	rooms     RoomStore
	sessions  SessionStore
	rounds    RoundStore
	answers   AnswerStore
	scheduler *RoundScheduler
	pub       Publisher
}

func NewRoomService(rooms RoomStore, sessions SessionStore, rounds RoundStore,
	answers AnswerStore, scheduler *RoundScheduler, pub Publisher) *RoomService {
	return &RoomService{
		rooms:     rooms,
		sessions:  sessions,
		rounds:    rounds,
		answers:   answers,
		scheduler: scheduler,
		pub:       pub,
	}
}

func (s *RoomService) lockRoom(roomID string) func() {
	return s.scheduler.lockRoom(roomID)
}

// CreateRoom validates the request, persists the room in waiting state
// and auto-joins the owner.
func (s *RoomService) CreateRoom(ctx context.Context, ownerID, name string, maxPlayers, totalRounds int, categories []string) (*models.Room, error) {
	if len(strings.TrimSpace(name)) < MinRoomNameLen {
		return nil, errs.ValidationFailed("room name must be at least %d characters", MinRoomNameLen)
	}
	if maxPlayers < MinPlayers || maxPlayers > MaxPlayers {
		return nil, errs.ValidationFailed("max_players must be between %d and %d", MinPlayers, MaxPlayers)
	}
	if totalRounds < MinRounds || totalRounds > MaxRounds {
		return nil, errs.ValidationFailed("total_rounds must be between %d and %d", MinRounds, MaxRounds)
	}
	if len(categories) == 0 {
		return nil, errs.ValidationFailed("at least one category is required")
	}

	room := &models.Room{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(name),
		Status:      models.RoomWaiting,
		MaxPlayers:  maxPlayers,
		TotalRounds: totalRounds,
		Categories:  categories,
		OwnerID:     ownerID,
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return nil, err
	}

	// A room without its owner must not survive; undo the insert so a
	// failed auto-join never leaves an ownerless waiting room in listings.
	if _, err := s.sessions.CreateSessionIfJoinable(ctx, uuid.New().String(), room.ID, ownerID); err != nil {
		log.Errorf("owner auto-join failed for room %s: %v", room.ID, err)
		if delErr := s.rooms.DeleteRoom(ctx, room.ID); delErr != nil {
			log.Errorf("failed to remove room %s after join failure: %v", room.ID, delErr)
		}
		return nil, err
	}
	room.PlayerCount = 1
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*models.Room, []*models.Session, error) {
	room, err := s.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if room == nil {
		return nil, nil, errs.NotFound("room %s not found", roomID)
	}
	sessions, err := s.sessions.GetSessionsByRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	return room, sessions, nil
}

func (s *RoomService) ListRooms(ctx context.Context, status string, limit int) ([]*models.Room, error) {
	if status == "" {
		status = models.RoomWaiting
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.rooms.ListRooms(ctx, status, limit)
}

// Join admits the user into a waiting room. The store insert is the
// atomic gate for the cap and the one-active-session-per-user rule.
func (s *RoomService) Join(ctx context.Context, roomID, userID string) (*models.Session, error) {
	unlock := s.lockRoom(roomID)
	defer unlock()

	sess, err := s.sessions.CreateSessionIfJoinable(ctx, uuid.New().String(), roomID, userID)
	if err != nil {
		return nil, err
	}

	s.pub.PublishRoomEvent(roomID, comm.EventPlayerJoined, comm.PlayerEvent{UserID: userID})
	return sess, nil
}

// Leave soft-closes the caller's session. Legal in any non-terminal
// state; a departed player is excluded from round-completion accounting
// from the next check onward.
func (s *RoomService) Leave(ctx context.Context, roomID, userID string) error {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room == nil {
		return errs.NotFound("room %s not found", roomID)
	}
	if room.Status == models.RoomFinished {
		return errs.InvalidState("room %s already finished", roomID)
	}

	if err := s.sessions.CloseSession(ctx, roomID, userID, time.Now().UTC()); err != nil {
		return err
	}

	s.pub.PublishRoomEvent(roomID, comm.EventPlayerLeft, comm.PlayerEvent{UserID: userID})
	return nil
}

// Start moves the room to in_progress. Question selection happens
// before any mutation; the store commits the transition and the full
// round sequence in one transaction, so a failed start changes nothing.
func (s *RoomService) Start(ctx context.Context, roomID, userID string) (*models.Room, error) {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errs.NotFound("room %s not found", roomID)
	}
	if room.OwnerID != userID {
		return nil, errs.Unauthorized("only the room owner can start the game")
	}
	if room.Status != models.RoomWaiting {
		return nil, errs.InvalidState("room %s already started", roomID)
	}
	if room.PlayerCount < MinPlayers {
		return nil, errs.ResourceExhausted("at least %d players are required, room has %d", MinPlayers, room.PlayerCount)
	}

	assignments, err := s.scheduler.SelectAssignments(ctx, room)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.rooms.StartGame(ctx, roomID, assignments, now); err != nil {
		return nil, err
	}

	room.Status = models.RoomInProgress
	room.CurrentRound = 1
	room.StartedAt.Valid = true
	room.StartedAt.Time = now

	first := assignments[0]
	first.StartedAt.Valid = true
	first.StartedAt.Time = now
	s.scheduler.ArmDeadline(roomID, first)

	log.Infof("room %s started with %d rounds", roomID, room.TotalRounds)
	s.pub.PublishRoomEvent(roomID, comm.EventGameStarted, comm.GameStartedEvent{TotalRounds: room.TotalRounds})
	return room, nil
}

// AdvanceResult is what the owner gets back from a successful advance.
type AdvanceResult struct {
	Finished     bool                  `json:"finished"`
	CurrentRound int                   `json:"current_round,omitempty"`
	TotalRounds  int                   `json:"total_rounds"`
	Rankings     []models.RankingEntry `json:"rankings,omitempty"`
}

// Advance moves the room to the next round, or finishes the game after
// the last one. It requires the current round to be complete for every
// active session. The CAS on current_round rejects concurrent callers:
// all but one lose with Conflict instead of double-advancing.
func (s *RoomService) Advance(ctx context.Context, roomID, userID string) (*AdvanceResult, error) {
	unlock := s.lockRoom(roomID)
	defer unlock()

	room, err := s.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errs.NotFound("room %s not found", roomID)
	}
	if room.OwnerID != userID {
		return nil, errs.Unauthorized("only the room owner can advance the round")
	}
	if room.Status != models.RoomInProgress {
		return nil, errs.InvalidState("room %s is not in progress", roomID)
	}

	assignment, err := s.rounds.GetAssignment(ctx, roomID, room.CurrentRound)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, errs.NotFound("round %d of room %s not found", room.CurrentRound, roomID)
	}

	active, err := s.sessions.GetActiveSessionsByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	complete, err := s.scheduler.RoundComplete(ctx, assignment, active)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, errs.InvalidState("round %d of room %s is not complete yet", room.CurrentRound, roomID)
	}

	now := time.Now().UTC()

	if room.CurrentRound >= room.TotalRounds {
		if err := s.rooms.FinishGame(ctx, roomID, room.CurrentRound, now); err != nil {
			return nil, err
		}
		s.scheduler.Teardown(roomID)

		rankings, err := s.Rankings(ctx, roomID)
		if err != nil {
			return nil, err
		}

		log.Infof("room %s finished after %d rounds", roomID, room.TotalRounds)
		s.pub.PublishRoomEvent(roomID, comm.EventGameFinished, comm.GameFinishedEvent{Rankings: rankings})
		return &AdvanceResult{Finished: true, TotalRounds: room.TotalRounds, Rankings: rankings}, nil
	}

	if err := s.rooms.AdvanceRound(ctx, roomID, room.CurrentRound, now); err != nil {
		return nil, err
	}

	next, err := s.rounds.GetAssignment(ctx, roomID, room.CurrentRound+1)
	if err != nil {
		return nil, err
	}
	if next != nil {
		s.scheduler.ArmDeadline(roomID, next)
	}

	s.pub.PublishRoomEvent(roomID, comm.EventNextRound, comm.NextRoundEvent{
		CurrentRound: room.CurrentRound + 1,
		TotalRounds:  room.TotalRounds,
	})
	return &AdvanceResult{CurrentRound: room.CurrentRound + 1, TotalRounds: room.TotalRounds}, nil
}

// Rankings is a read-only projection over committed session state.
func (s *RoomService) Rankings(ctx context.Context, roomID string) ([]models.RankingEntry, error) {
	room, err := s.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errs.NotFound("room %s not found", roomID)
	}

	sessions, err := s.sessions.GetSessionsByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	totals, err := s.answers.TotalTimesBySession(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return BuildRankings(sessions, totals), nil
}

// CurrentQuestion returns the playing user's view of the open round:
// question text and options with the canonical answer withheld, plus
// whether the user already answered.
type CurrentQuestion struct {
	Question     models.Question `json:"question"`
	RoundNumber  int             `json:"round_number"`
	TotalRounds  int             `json:"total_rounds"`
	TimeLimit    int             `json:"time_limit"`
	Answered     bool            `json:"answered"`
	RoundClosed  bool            `json:"round_closed"`
	AssignmentID string          `json:"round_assignment_id"`
}

func (s *RoomService) GetCurrentQuestion(ctx context.Context, roomID, userID string) (*CurrentQuestion, error) {
	room, err := s.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errs.NotFound("room %s not found", roomID)
	}
	if room.Status != models.RoomInProgress {
		return nil, errs.InvalidState("room %s is not in progress", roomID)
	}

	sess, err := s.sessions.GetActiveSession(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errs.InvalidState("user %s is not playing in room %s", userID, roomID)
	}

	assignment, err := s.rounds.GetAssignment(ctx, roomID, room.CurrentRound)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, errs.NotFound("round %d of room %s not found", room.CurrentRound, roomID)
	}

	question, err := s.scheduler.catalog.GetQuestion(ctx, assignment.QuestionID)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, err, "question catalog")
	}
	if question == nil {
		return nil, errs.NotFound("question %s not found", assignment.QuestionID)
	}

	answered, err := s.answers.HasAnswer(ctx, sess.ID, assignment.ID)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, err, "answer lookup")
	}

	return &CurrentQuestion{
		Question:     question.Public(),
		RoundNumber:  room.CurrentRound,
		TotalRounds:  room.TotalRounds,
		TimeLimit:    assignment.TimeLimit,
		Answered:     answered,
		RoundClosed:  assignment.ClosedAt.Valid,
		AssignmentID: assignment.ID,
	}, nil
}
