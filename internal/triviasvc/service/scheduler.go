package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/renfu-her/trivia-services/internal/comm"
	"github.com/renfu-her/trivia-services/internal/triviasvc/errs"
	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

// DefaultTimeLimit is the per-round answering window in seconds.
const DefaultTimeLimit = 30

// storeTimeout bounds every entity-store call made off a request
// goroutine.
const storeTimeout = 10 * time.Second

// roomTimer is the armed deadline of a room's open round. The round
// number makes late disarms and late expiries detectable.
type roomTimer struct {
	round int
	timer *time.Timer
}

// RoundScheduler owns the round sequence of a room: it materializes the
// question selection at start, decides round completion, and runs the
// per-round deadline timer that force-completes a round when the time
// limit expires before every active player answered.
type RoundScheduler struct {
	catalog Catalog
	rounds  RoundStore
	answers AnswerStore
	pub     Publisher

	locks sync.Map // room id -> *sync.Mutex, shared with the room state machine

	mu     sync.Mutex
	timers map[string]*roomTimer // room id -> deadline timer of its open round
}

func NewRoundScheduler(catalog Catalog, rounds RoundStore, answers AnswerStore, pub Publisher) *RoundScheduler {
	return &RoundScheduler{
		catalog: catalog,
		rounds:  rounds,
		answers: answers,
		pub:     pub,
		timers:  make(map[string]*roomTimer),
	}
}

// lockRoom serializes state transitions for one room. The room service
// and the deadline expiry path share this lock, so an expiry never
// interleaves with a start, advance or finish in this process.
func (rs *RoundScheduler) lockRoom(roomID string) func() {
	mu, _ := rs.locks.LoadOrStore(roomID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// SelectAssignments draws total_rounds distinct questions for the
// room's categories and binds them to round numbers. No state is
// mutated here; the caller commits the assignments atomically with the
// start transition.
func (rs *RoundScheduler) SelectAssignments(ctx context.Context, room *models.Room) ([]*models.RoundAssignment, error) {
	questions, err := rs.catalog.PickQuestions(ctx, room.Categories, room.TotalRounds)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, err, "question catalog")
	}
	if len(questions) < room.TotalRounds {
		return nil, errs.ResourceExhausted(
			"insufficient questions: need %d, catalog has %d for categories %v",
			room.TotalRounds, len(questions), room.Categories)
	}

	assignments := make([]*models.RoundAssignment, 0, room.TotalRounds)
	for i, q := range questions {
		assignments = append(assignments, &models.RoundAssignment{
			ID:          uuid.New().String(),
			RoomID:      room.ID,
			QuestionID:  q.ID,
			RoundNumber: i + 1,
			TimeLimit:   DefaultTimeLimit,
		})
	}
	return assignments, nil
}

// RoundComplete reports whether every session active at the time of the
// check holds exactly one answer for the assignment. Sessions that left
// are excluded (forfeiture policy), so a departed player never blocks
// advancement.
func (rs *RoundScheduler) RoundComplete(ctx context.Context, assignment *models.RoundAssignment, active []*models.Session) (bool, error) {
	answered, err := rs.answers.AnsweredSessionIDs(ctx, assignment.ID)
	if err != nil {
		return false, errs.Wrap(errs.KindUnavailable, err, "answer lookup")
	}
	for _, sess := range active {
		if !answered[sess.ID] {
			return false, nil
		}
	}
	return true, nil
}

// ArmDeadline starts the force-completion timer for a freshly opened
// round, replacing any timer left over from the previous round.
func (rs *RoundScheduler) ArmDeadline(roomID string, assignment *models.RoundAssignment) {
	deadline := time.Duration(assignment.TimeLimit) * time.Second
	if assignment.StartedAt.Valid {
		if remaining := time.Until(assignment.Deadline()); remaining < deadline {
			deadline = remaining
		}
	}
	if deadline < 0 {
		deadline = 0
	}

	rs.mu.Lock()
	if prev, ok := rs.timers[roomID]; ok {
		prev.timer.Stop()
	}
	assignmentID := assignment.ID
	roundNumber := assignment.RoundNumber
	timeLimit := assignment.TimeLimit
	rs.timers[roomID] = &roomTimer{
		round: roundNumber,
		timer: time.AfterFunc(deadline, func() {
			rs.expireRound(roomID, assignmentID, roundNumber, timeLimit)
		}),
	}
	rs.mu.Unlock()
}

// Disarm cancels the pending deadline for the given round, on natural
// round completion. A call for an already-superseded round is a no-op,
// so a submit tail racing an advance never cancels the next round's
// timer.
func (rs *RoundScheduler) Disarm(roomID string, roundNumber int) {
	rs.mu.Lock()
	if t, ok := rs.timers[roomID]; ok && t.round == roundNumber {
		t.timer.Stop()
		delete(rs.timers, roomID)
	}
	rs.mu.Unlock()
}

// Teardown releases all timer state for a room (finish or abandonment).
func (rs *RoundScheduler) Teardown(roomID string) {
	rs.mu.Lock()
	if t, ok := rs.timers[roomID]; ok {
		t.timer.Stop()
		delete(rs.timers, roomID)
	}
	rs.mu.Unlock()
}

// expireRound runs on the timer goroutine when a deadline elapses. It
// takes the room lock so the close and its event land in order with the
// state machine's own transitions. The CAS on closed_at makes exactly
// one expiry effective; that winner synthesizes incorrect zero-score
// answers for every active session still missing one, which makes the
// round eligible for advance.
func (rs *RoundScheduler) expireRound(roomID, assignmentID string, roundNumber, timeLimit int) {
	unlock := rs.lockRoom(roomID)
	defer unlock()

	rs.mu.Lock()
	armed, ok := rs.timers[roomID]
	rs.mu.Unlock()
	if !ok || armed.round != roundNumber {
		// Disarmed or superseded while waiting for the room lock.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	won, err := rs.rounds.CloseRound(ctx, assignmentID, time.Now().UTC())
	if err != nil {
		log.Errorf("round %d of room %s: deadline close failed: %v", roundNumber, roomID, err)
		return
	}
	if !won {
		return
	}

	forfeited, err := rs.answers.ForfeitUnanswered(ctx, roomID, assignmentID, float64(timeLimit), time.Now().UTC())
	if err != nil {
		log.Errorf("round %d of room %s: forfeit failed: %v", roundNumber, roomID, err)
		return
	}

	log.Infof("round %d of room %s closed at deadline, %d players forfeited", roundNumber, roomID, forfeited)
	rs.pub.PublishRoomEvent(roomID, comm.EventRoundClosed, comm.RoundClosedEvent{
		RoundNumber: roundNumber,
		Forfeited:   forfeited,
	})
}
