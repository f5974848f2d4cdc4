package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/renfu-her/trivia-services/internal/comm"
	"github.com/renfu-her/trivia-services/internal/triviasvc/errs"
	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

// AnswerService is the admission gate: exactly one answer per
// (session, round) pair, correctness and score computed at submission
// time and never revised.
type AnswerService struct {
	rooms     RoomStore
	sessions  SessionStore
	rounds    RoundStore
	answers   AnswerStore
	catalog   Catalog
	scheduler *RoundScheduler
	pub       Publisher
}

func NewAnswerService(rooms RoomStore, sessions SessionStore, rounds RoundStore,
	answers AnswerStore, catalog Catalog, scheduler *RoundScheduler, pub Publisher) *AnswerService {
	return &AnswerService{
		rooms:     rooms,
		sessions:  sessions,
		rounds:    rounds,
		answers:   answers,
		catalog:   catalog,
		scheduler: scheduler,
		pub:       pub,
	}
}

// SubmitResult is returned to the submitting player only; it is the one
// place the canonical answer is revealed.
type SubmitResult struct {
	IsCorrect     bool               `json:"is_correct"`
	ScoreDelta    int                `json:"score_delta"`
	CorrectAnswer models.AnswerValue `json:"correct_answer"`
	Explanation   string             `json:"explanation,omitempty"`
}

// Submit validates the round position, checks the deadline, computes
// correctness against the canonical answer and records the answer plus
// the session counter increments atomically. Submissions race freely
// across sessions; only the (session, round) pair is serialized, by the
// store's uniqueness gate.
func (s *AnswerService) Submit(ctx context.Context, roomID, userID string, value models.AnswerValue, timeTaken float64) (*SubmitResult, error) {
	if timeTaken < 0 {
		return nil, errs.ValidationFailed("time_taken must not be negative")
	}

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

	now := time.Now().UTC()
	if assignment.ClosedAt.Valid || (assignment.StartedAt.Valid && now.After(assignment.Deadline())) {
		return nil, errs.InvalidState("round %d of room %s is closed", room.CurrentRound, roomID)
	}

	question, err := s.catalog.GetQuestion(ctx, assignment.QuestionID)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, err, "question catalog")
	}
	if question == nil {
		return nil, errs.NotFound("question %s not found", assignment.QuestionID)
	}

	wantList := question.Type == models.QuestionMultiBlank
	if value.IsList != wantList {
		return nil, errs.ValidationFailed("answer form does not match question type %s", question.Type)
	}

	canonical := question.CanonicalValue()
	isCorrect := value.Equals(canonical)
	delta := ScoreDelta(isCorrect, timeTaken)

	answer := &models.Answer{
		ID:                uuid.New().String(),
		SessionID:         sess.ID,
		RoundAssignmentID: assignment.ID,
		Value:             value,
		IsCorrect:         isCorrect,
		TimeTaken:         timeTaken,
		AnsweredAt:        now,
	}
	if err := s.answers.CreateAnswer(ctx, answer, delta); err != nil {
		// A duplicate against a synthesized forfeit row means the
		// deadline won the race; the player hit a closed round, not a
		// double submission.
		if errs.IsKind(err, errs.KindConflict) {
			ra, raErr := s.rounds.GetAssignment(ctx, roomID, room.CurrentRound)
			if raErr == nil && ra != nil && ra.ClosedAt.Valid {
				return nil, errs.InvalidState("round %d of room %s is closed", room.CurrentRound, roomID)
			}
		}
		return nil, err
	}

	// Disarm this round's deadline once the last active player has
	// answered. The round number keeps a late check from touching a
	// timer armed for a subsequent round.
	active, err := s.sessions.GetActiveSessionsByRoom(ctx, roomID)
	if err == nil {
		if complete, cErr := s.scheduler.RoundComplete(ctx, assignment, active); cErr == nil && complete {
			s.scheduler.Disarm(roomID, assignment.RoundNumber)
		}
	} else {
		log.Errorf("completion check after submit failed for room %s: %v", roomID, err)
	}

	s.pub.PublishRoomEvent(roomID, comm.EventAnswerSubmitted, comm.AnswerSubmittedEvent{
		UserID:    userID,
		IsCorrect: isCorrect,
		TimeTaken: timeTaken,
	})

	return &SubmitResult{
		IsCorrect:     isCorrect,
		ScoreDelta:    delta,
		CorrectAnswer: canonical,
		Explanation:   question.Explanation,
	}, nil
}
