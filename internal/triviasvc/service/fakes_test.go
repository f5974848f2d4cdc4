package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/renfu-her/trivia-services/internal/triviasvc/errs"
	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

// memStore implements every store contract in memory with the same
// atomicity semantics as the pgx stores: CAS transitions, the
// one-active-session rule and the unique answer constraint all hold
// under the store mutex.
type memStore struct {
	mu          sync.Mutex
	rooms       map[string]*models.Room
	sessions    map[string]*models.Session
	assignments map[string]*models.RoundAssignment
	answers     map[string]*models.Answer // session id + "|" + assignment id
}

func newMemStore() *memStore {
	return &memStore{
		rooms:       make(map[string]*models.Room),
		sessions:    make(map[string]*models.Session),
		assignments: make(map[string]*models.RoundAssignment),
		answers:     make(map[string]*models.Answer),
	}
}

func (m *memStore) activePlayerCount(roomID string) int {
	count := 0
	for _, sess := range m.sessions {
		if sess.RoomID == roomID && sess.Active() {
			count++
		}
	}
	return count
}

func (m *memStore) CreateRoom(_ context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *room
	cp.CreatedAt = time.Now().UTC()
	m.rooms[room.ID] = &cp
	return nil
}

func (m *memStore) DeleteRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	return nil
}

func (m *memStore) GetRoomByID(_ context.Context, roomID string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, nil
	}
	cp := *room
	cp.PlayerCount = m.activePlayerCount(roomID)
	return &cp, nil
}

func (m *memStore) ListRooms(_ context.Context, status string, limit int) ([]*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rooms []*models.Room
	for _, room := range m.rooms {
		if room.Status == status && len(rooms) < limit {
			cp := *room
			cp.PlayerCount = m.activePlayerCount(room.ID)
			rooms = append(rooms, &cp)
		}
	}
	return rooms, nil
}

func (m *memStore) StartGame(_ context.Context, roomID string, assignments []*models.RoundAssignment, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok || room.Status != models.RoomWaiting {
		return errs.Conflict("room %s is no longer waiting", roomID)
	}
	room.Status = models.RoomInProgress
	room.CurrentRound = 1
	room.StartedAt.Valid = true
	room.StartedAt.Time = now
	for _, ra := range assignments {
		cp := *ra
		cp.CreatedAt = now
		if cp.RoundNumber == 1 {
			cp.StartedAt.Valid = true
			cp.StartedAt.Time = now
		}
		m.assignments[cp.ID] = &cp
	}
	return nil
}

func (m *memStore) AdvanceRound(_ context.Context, roomID string, fromRound int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok || room.Status != models.RoomInProgress || room.CurrentRound != fromRound {
		return errs.Conflict("room %s already advanced past round %d", roomID, fromRound)
	}
	room.CurrentRound++
	for _, ra := range m.assignments {
		if ra.RoomID == roomID && ra.RoundNumber == fromRound+1 && !ra.StartedAt.Valid {
			ra.StartedAt.Valid = true
			ra.StartedAt.Time = now
		}
	}
	return nil
}

func (m *memStore) FinishGame(_ context.Context, roomID string, fromRound int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok || room.Status != models.RoomInProgress || room.CurrentRound != fromRound {
		return errs.Conflict("room %s already advanced past round %d", roomID, fromRound)
	}
	room.Status = models.RoomFinished
	room.EndedAt.Valid = true
	room.EndedAt.Time = now
	return nil
}

func (m *memStore) CreateSessionIfJoinable(_ context.Context, sessionID, roomID, userID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, errs.NotFound("room %s not found", roomID)
	}
	for _, sess := range m.sessions {
		if sess.RoomID == roomID && sess.UserID == userID && sess.Active() {
			return nil, errs.Conflict("user %s already joined room %s", userID, roomID)
		}
	}
	if room.Status != models.RoomWaiting {
		return nil, errs.InvalidState("room %s already started", roomID)
	}
	if m.activePlayerCount(roomID) >= room.MaxPlayers {
		return nil, errs.ResourceExhausted("room %s is full", roomID)
	}
	sess := &models.Session{
		ID:       sessionID,
		UserID:   userID,
		RoomID:   roomID,
		JoinedAt: time.Now().UTC(),
	}
	m.sessions[sessionID] = sess
	cp := *sess
	return &cp, nil
}

func (m *memStore) GetActiveSession(_ context.Context, roomID, userID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		if sess.RoomID == roomID && sess.UserID == userID && sess.Active() {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetSessionsByRoom(_ context.Context, roomID string) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sessions []*models.Session
	for _, sess := range m.sessions {
		if sess.RoomID == roomID {
			cp := *sess
			sessions = append(sessions, &cp)
		}
	}
	return sessions, nil
}

func (m *memStore) GetActiveSessionsByRoom(_ context.Context, roomID string) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sessions []*models.Session
	for _, sess := range m.sessions {
		if sess.RoomID == roomID && sess.Active() {
			cp := *sess
			sessions = append(sessions, &cp)
		}
	}
	return sessions, nil
}

func (m *memStore) CloseSession(_ context.Context, roomID, userID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		if sess.RoomID == roomID && sess.UserID == userID && sess.Active() {
			sess.LeftAt.Valid = true
			sess.LeftAt.Time = now
			return nil
		}
	}
	return errs.NotFound("user %s is not in room %s", userID, roomID)
}

func (m *memStore) GetAssignment(_ context.Context, roomID string, roundNumber int) (*models.RoundAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ra := range m.assignments {
		if ra.RoomID == roomID && ra.RoundNumber == roundNumber {
			cp := *ra
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetAssignmentsByRoom(_ context.Context, roomID string) ([]*models.RoundAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.RoundAssignment
	for _, ra := range m.assignments {
		if ra.RoomID == roomID {
			cp := *ra
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) CloseRound(_ context.Context, assignmentID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ra, ok := m.assignments[assignmentID]
	if !ok || ra.ClosedAt.Valid {
		return false, nil
	}
	ra.ClosedAt.Valid = true
	ra.ClosedAt.Time = now
	return true, nil
}

func (m *memStore) CreateAnswer(_ context.Context, ans *models.Answer, scoreDelta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ans.SessionID + "|" + ans.RoundAssignmentID
	if _, exists := m.answers[key]; exists {
		return errs.Conflict("answer already recorded for session %s", ans.SessionID)
	}
	cp := *ans
	m.answers[key] = &cp
	sess := m.sessions[ans.SessionID]
	sess.Score += scoreDelta
	sess.TotalAnswers++
	if ans.IsCorrect {
		sess.CorrectAnswers++
	}
	return nil
}

func (m *memStore) HasAnswer(_ context.Context, sessionID, assignmentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.answers[sessionID+"|"+assignmentID]
	return ok, nil
}

func (m *memStore) AnsweredSessionIDs(_ context.Context, assignmentID string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	answered := make(map[string]bool)
	for _, ans := range m.answers {
		if ans.RoundAssignmentID == assignmentID {
			answered[ans.SessionID] = true
		}
	}
	return answered, nil
}

func (m *memStore) ForfeitUnanswered(_ context.Context, roomID, assignmentID string, timeTaken float64, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, sess := range m.sessions {
		if sess.RoomID != roomID || !sess.Active() {
			continue
		}
		key := sess.ID + "|" + assignmentID
		if _, exists := m.answers[key]; exists {
			continue
		}
		m.answers[key] = &models.Answer{
			ID:                key,
			SessionID:         sess.ID,
			RoundAssignmentID: assignmentID,
			IsCorrect:         false,
			TimeTaken:         timeTaken,
			AnsweredAt:        now,
			Forfeited:         true,
		}
		sess.TotalAnswers++
		count++
	}
	return count, nil
}

func (m *memStore) TotalTimesBySession(_ context.Context, roomID string) (map[string]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := make(map[string]decimal.Decimal)
	for _, ans := range m.answers {
		sess, ok := m.sessions[ans.SessionID]
		if !ok || sess.RoomID != roomID {
			continue
		}
		totals[ans.SessionID] = totals[ans.SessionID].Add(decimal.NewFromFloat(ans.TimeTaken))
	}
	return totals, nil
}

// fakeCatalog serves a fixed question set.
type fakeCatalog struct {
	questions []*models.Question
}

func (c *fakeCatalog) PickQuestions(_ context.Context, categories []string, n int) ([]*models.Question, error) {
	wanted := make(map[string]bool, len(categories))
	for _, cat := range categories {
		wanted[cat] = true
	}
	var out []*models.Question
	for _, q := range c.questions {
		if wanted[q.CategoryID] && len(out) < n {
			out = append(out, q)
		}
	}
	return out, nil
}

func (c *fakeCatalog) GetQuestion(_ context.Context, questionID string) (*models.Question, error) {
	for _, q := range c.questions {
		if q.ID == questionID {
			return q, nil
		}
	}
	return nil, nil
}

// fakePublisher records events in publish order.
type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) PublishRoomEvent(roomID, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *fakePublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == eventType {
			n++
		}
	}
	return n
}
