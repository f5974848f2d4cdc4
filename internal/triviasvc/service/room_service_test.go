package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renfu-her/trivia-services/internal/comm"
	"github.com/renfu-her/trivia-services/internal/triviasvc/errs"
	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

func mcq(id, category, answer string) *models.Question {
	return &models.Question{
		ID:         id,
		CategoryID: category,
		Type:       models.QuestionMultipleChoice,
		Text:       "question " + id,
		Options:    []string{"a", "b", "c", "d"},
		Answer:     []string{answer},
	}
}

type testRig struct {
	rooms     *RoomService
	answers   *AnswerService
	store     *memStore
	cat       *fakeCatalog
	pub       *fakePublisher
	scheduler *RoundScheduler
}

func newTestRig(questions ...*models.Question) *testRig {
	if len(questions) == 0 {
		questions = []*models.Question{
			mcq("q1", "C1", "a"), mcq("q2", "C1", "b"), mcq("q3", "C1", "c"),
			mcq("q4", "C1", "d"), mcq("q5", "C1", "a"),
		}
	}
	mem := newMemStore()
	pub := &fakePublisher{}
	cat := &fakeCatalog{questions: questions}
	scheduler := NewRoundScheduler(cat, mem, mem, pub)
	return &testRig{
		rooms:     NewRoomService(mem, mem, mem, mem, scheduler, pub),
		answers:   NewAnswerService(mem, mem, mem, mem, cat, scheduler, pub),
		store:     mem,
		cat:       cat,
		pub:       pub,
		scheduler: scheduler,
	}
}

func (r *testRig) mustCreateRoom(t *testing.T, owner string, totalRounds int) *models.Room {
	t.Helper()
	room, err := r.rooms.CreateRoom(context.Background(), owner, "friday night", 4, totalRounds, []string{"C1"})
	require.NoError(t, err)
	t.Cleanup(func() { r.scheduler.Teardown(room.ID) })
	return room
}

func TestCreateRoomValidation(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	tests := []struct {
		name        string
		roomName    string
		maxPlayers  int
		totalRounds int
		categories  []string
	}{
		{"short name", "ab", 4, 2, []string{"C1"}},
		{"too few players", "quiz night", 1, 2, []string{"C1"}},
		{"too many players", "quiz night", 21, 2, []string{"C1"}},
		{"zero rounds", "quiz night", 4, 0, []string{"C1"}},
		{"too many rounds", "quiz night", 4, 51, []string{"C1"}},
		{"no categories", "quiz night", 4, 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rig.rooms.CreateRoom(ctx, "owner", tt.roomName, tt.maxPlayers, tt.totalRounds, tt.categories)
			assert.True(t, errs.IsKind(err, errs.KindValidationFailed), "got %v", err)
		})
	}
}

// joinFailingStore rejects every session insert, modeling a database
// failure between the room insert and the owner auto-join.
type joinFailingStore struct {
	*memStore
}

func (s *joinFailingStore) CreateSessionIfJoinable(context.Context, string, string, string) (*models.Session, error) {
	return nil, errs.Unavailable("session insert failed")
}

func TestCreateRoomRollsBackWhenOwnerJoinFails(t *testing.T) {
	mem := newMemStore()
	pub := &fakePublisher{}
	cat := &fakeCatalog{questions: []*models.Question{mcq("q1", "C1", "a")}}
	scheduler := NewRoundScheduler(cat, mem, mem, pub)
	rooms := NewRoomService(mem, &joinFailingStore{memStore: mem}, mem, mem, scheduler, pub)

	_, err := rooms.CreateRoom(context.Background(), "alice", "friday night", 4, 1, []string{"C1"})
	require.True(t, errs.IsKind(err, errs.KindUnavailable), "got %v", err)

	// No ownerless waiting room survives the failed auto-join.
	listed, err := mem.ListRooms(context.Background(), models.RoomWaiting, 20)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCreateRoomAutoJoinsOwner(t *testing.T) {
	rig := newTestRig()
	room := rig.mustCreateRoom(t, "alice", 2)

	sess, err := rig.store.GetActiveSession(context.Background(), room.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, 1, room.PlayerCount)
}

func TestJoinRules(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	room := rig.mustCreateRoom(t, "alice", 2)

	_, err := rig.rooms.Join(ctx, room.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, rig.pub.count(comm.EventPlayerJoined))

	// Second active session for the same user is rejected.
	_, err = rig.rooms.Join(ctx, room.ID, "bob")
	assert.True(t, errs.IsKind(err, errs.KindConflict), "got %v", err)

	// Cap is max_players=4, alice+bob joined.
	_, err = rig.rooms.Join(ctx, room.ID, "carol")
	require.NoError(t, err)
	_, err = rig.rooms.Join(ctx, room.ID, "dave")
	require.NoError(t, err)
	_, err = rig.rooms.Join(ctx, room.ID, "eve")
	assert.True(t, errs.IsKind(err, errs.KindResourceExhausted), "got %v", err)

	_, err = rig.rooms.Join(ctx, "no-such-room", "bob")
	assert.True(t, errs.IsKind(err, errs.KindNotFound), "got %v", err)
}

func TestStartByNonOwnerLeavesRoomWaiting(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	room := rig.mustCreateRoom(t, "alice", 2)
	_, err := rig.rooms.Join(ctx, room.ID, "bob")
	require.NoError(t, err)

	_, err = rig.rooms.Start(ctx, room.ID, "bob")
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized), "got %v", err)

	got, _ := rig.store.GetRoomByID(ctx, room.ID)
	assert.Equal(t, models.RoomWaiting, got.Status)
	assert.Equal(t, 0, got.CurrentRound)
}

func TestStartNeedsTwoPlayers(t *testing.T) {
	rig := newTestRig()
	room := rig.mustCreateRoom(t, "alice", 2)

	_, err := rig.rooms.Start(context.Background(), room.ID, "alice")
	assert.True(t, errs.IsKind(err, errs.KindResourceExhausted), "got %v", err)
}

func TestStartInsufficientQuestionsIsAtomic(t *testing.T) {
	// Catalog has 3 matching questions, room wants 5 rounds.
	rig := newTestRig(mcq("q1", "C1", "a"), mcq("q2", "C1", "b"), mcq("q3", "C1", "c"))
	ctx := context.Background()
	room := rig.mustCreateRoom(t, "alice", 5)
	_, err := rig.rooms.Join(ctx, room.ID, "bob")
	require.NoError(t, err)

	_, err = rig.rooms.Start(ctx, room.ID, "alice")
	assert.True(t, errs.IsKind(err, errs.KindResourceExhausted), "got %v", err)

	// No partial state: room untouched, no assignments materialized.
	got, _ := rig.store.GetRoomByID(ctx, room.ID)
	assert.Equal(t, models.RoomWaiting, got.Status)
	assignments, _ := rig.store.GetAssignmentsByRoom(ctx, room.ID)
	assert.Empty(t, assignments)
}

func TestFullGameFlow(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	room := rig.mustCreateRoom(t, "alice", 2)
	_, err := rig.rooms.Join(ctx, room.ID, "bob")
	require.NoError(t, err)

	started, err := rig.rooms.Start(ctx, room.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.RoomInProgress, started.Status)
	assert.Equal(t, 1, started.CurrentRound)
	assert.Equal(t, 1, rig.pub.count(comm.EventGameStarted))

	assignments, _ := rig.store.GetAssignmentsByRoom(ctx, room.ID)
	require.Len(t, assignments, 2)

	// Joining a running game is illegal.
	_, err = rig.rooms.Join(ctx, room.ID, "carol")
	assert.True(t, errs.IsKind(err, errs.KindInvalidState), "got %v", err)

	// Advance blocked until everyone answered.
	_, err = rig.rooms.Advance(ctx, room.ID, "alice")
	assert.True(t, errs.IsKind(err, errs.KindInvalidState), "got %v", err)

	q1, err := rig.rooms.GetCurrentQuestion(ctx, room.ID, "alice")
	require.NoError(t, err)
	assert.Empty(t, q1.Question.Answer, "canonical answer must be withheld mid-round")
	assert.False(t, q1.Answered)

	answer := func(user, token string, taken float64) *SubmitResult {
		res, err := rig.answers.Submit(ctx, room.ID, user, models.SingleAnswer(token), taken)
		require.NoError(t, err)
		return res
	}
	answer("alice", "a", 10)
	answer("bob", "b", 5)

	result, err := rig.rooms.Advance(ctx, room.ID, "alice")
	require.NoError(t, err)
	assert.False(t, result.Finished)
	assert.Equal(t, 2, result.CurrentRound)
	assert.Equal(t, 1, rig.pub.count(comm.EventNextRound))

	answer("alice", "a", 3)
	answer("bob", "a", 4)

	final, err := rig.rooms.Advance(ctx, room.ID, "alice")
	require.NoError(t, err)
	assert.True(t, final.Finished)
	require.NotEmpty(t, final.Rankings)
	assert.Equal(t, 1, rig.pub.count(comm.EventGameFinished))

	got, _ := rig.store.GetRoomByID(ctx, room.ID)
	assert.Equal(t, models.RoomFinished, got.Status)
	assert.Equal(t, 2, got.CurrentRound, "current_round never exceeds total_rounds")

	// Counters stayed consistent for every session.
	sessions, _ := rig.store.GetSessionsByRoom(ctx, room.ID)
	for _, sess := range sessions {
		assert.LessOrEqual(t, sess.CorrectAnswers, sess.TotalAnswers)
		assert.GreaterOrEqual(t, sess.Score, 0)
	}
}

func TestAdvanceRaceOnlyOneWins(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	room := rig.mustCreateRoom(t, "alice", 2)
	_, err := rig.rooms.Join(ctx, room.ID, "bob")
	require.NoError(t, err)
	_, err = rig.rooms.Start(ctx, room.ID, "alice")
	require.NoError(t, err)

	_, err = rig.answers.Submit(ctx, room.ID, "alice", models.SingleAnswer("a"), 1)
	require.NoError(t, err)
	_, err = rig.answers.Submit(ctx, room.ID, "bob", models.SingleAnswer("a"), 2)
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rig.rooms.Advance(ctx, room.ID, "alice")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one advance call may win")

	got, _ := rig.store.GetRoomByID(ctx, room.ID)
	assert.Equal(t, 2, got.CurrentRound, "no double-advance")
}

func TestAdvanceStaleRoundCAS(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	room := rig.mustCreateRoom(t, "alice", 2)
	_, err := rig.rooms.Join(ctx, room.ID, "bob")
	require.NoError(t, err)
	_, err = rig.rooms.Start(ctx, room.ID, "alice")
	require.NoError(t, err)

	require.NoError(t, rig.store.AdvanceRound(ctx, room.ID, 1, time.Now()))
	err = rig.store.AdvanceRound(ctx, room.ID, 1, time.Now())
	assert.True(t, errs.IsKind(err, errs.KindConflict), "stale advance must conflict, got %v", err)
}

func TestLeaveForfeitsRoundAccounting(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	room := rig.mustCreateRoom(t, "alice", 2)
	_, err := rig.rooms.Join(ctx, room.ID, "bob")
	require.NoError(t, err)
	_, err = rig.rooms.Join(ctx, room.ID, "carol")
	require.NoError(t, err)
	_, err = rig.rooms.Start(ctx, room.ID, "alice")
	require.NoError(t, err)

	_, err = rig.answers.Submit(ctx, room.ID, "alice", models.SingleAnswer("a"), 1)
	require.NoError(t, err)
	_, err = rig.answers.Submit(ctx, room.ID, "bob", models.SingleAnswer("a"), 2)
	require.NoError(t, err)

	// Carol never answers but leaves; she no longer blocks the round.
	_, err = rig.rooms.Advance(ctx, room.ID, "alice")
	require.True(t, errs.IsKind(err, errs.KindInvalidState))

	require.NoError(t, rig.rooms.Leave(ctx, room.ID, "carol"))
	result, err := rig.rooms.Advance(ctx, room.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, result.CurrentRound)
}

func TestLeaveErrors(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	room := rig.mustCreateRoom(t, "alice", 2)

	err := rig.rooms.Leave(ctx, room.ID, "nobody")
	assert.True(t, errs.IsKind(err, errs.KindNotFound), "got %v", err)

	err = rig.rooms.Leave(ctx, "no-such-room", "alice")
	assert.True(t, errs.IsKind(err, errs.KindNotFound), "got %v", err)
}

func TestRankingsProjection(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	room := rig.mustCreateRoom(t, "alice", 1)
	_, err := rig.rooms.Join(ctx, room.ID, "bob")
	require.NoError(t, err)
	_, err = rig.rooms.Start(ctx, room.ID, "alice")
	require.NoError(t, err)

	_, err = rig.answers.Submit(ctx, room.ID, "alice", models.SingleAnswer("a"), 10)
	require.NoError(t, err)
	_, err = rig.answers.Submit(ctx, room.ID, "bob", models.SingleAnswer("b"), 5)
	require.NoError(t, err)

	rankings, err := rig.rooms.Rankings(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, rankings, 2)
	assert.Equal(t, "alice", rankings[0].UserID)
	assert.Equal(t, 20, rankings[0].Score)
	assert.Equal(t, 1, rankings[0].Rank)
	assert.Equal(t, 0, rankings[1].Score)
	assert.Equal(t, 2, rankings[1].Rank)
}
