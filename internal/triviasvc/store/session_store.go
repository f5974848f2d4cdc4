package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renfu-her/trivia-services/internal/triviasvc/errs"
	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

type SessionStore struct {
	db *pgxpool.Pool
}

func NewSessionStore(db *pgxpool.Pool) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `id, user_id, room_id, score, correct_answers, total_answers, joined_at, left_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	sess := &models.Session{}
	err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.RoomID,
		&sess.Score,
		&sess.CorrectAnswers,
		&sess.TotalAnswers,
		&sess.JoinedAt,
		&sess.LeftAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return sess, nil
}

// CreateSessionIfJoinable inserts the session only while the room row,
// locked for the duration, is still waiting and below its player cap.
// It fails with:
// - Conflict if the user already has an active session in the room
//   (unique_active_user_room partial index).
// - ResourceExhausted if the room is full.
// - InvalidState if the room has started or finished.
// - NotFound if the room does not exist.
func (s *SessionStore) CreateSessionIfJoinable(ctx context.Context, sessionID, roomID, userID string) (*models.Session, error) {
	const query = `
WITH locked_room AS (
  SELECT id, max_players
  FROM game_rooms
  WHERE id = $2
    AND status = 'waiting'
  FOR UPDATE
)
INSERT INTO game_sessions (id, user_id, room_id)
SELECT $1, $3, lr.id
FROM locked_room lr
WHERE (SELECT COUNT(*) FROM game_sessions gs WHERE gs.room_id = lr.id AND gs.left_at IS NULL) < lr.max_players
RETURNING ` + sessionColumns + `;
`
	sess := &models.Session{}
	err := s.db.QueryRow(ctx, query, sessionID, roomID, userID).Scan(
		&sess.ID, &sess.UserID, &sess.RoomID, &sess.Score,
		&sess.CorrectAnswers, &sess.TotalAnswers, &sess.JoinedAt, &sess.LeftAt,
	)
	if err == nil {
		return sess, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil, errs.Conflict("user %s already joined room %s", userID, roomID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Zero rows: classify why the guarded insert did not fire.
	room, roomErr := scanRoom(s.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM game_rooms r WHERE r.id = $1`, roomID))
	if roomErr != nil {
		return nil, roomErr
	}
	switch {
	case room == nil:
		return nil, errs.NotFound("room %s not found", roomID)
	case room.Status != models.RoomWaiting:
		return nil, errs.InvalidState("room %s already started", roomID)
	default:
		return nil, errs.ResourceExhausted("room %s is full", roomID)
	}
}

func (s *SessionStore) GetActiveSession(ctx context.Context, roomID, userID string) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM game_sessions
		WHERE room_id = $1 AND user_id = $2 AND left_at IS NULL
	`
	return scanSession(s.db.QueryRow(ctx, query, roomID, userID))
}

func (s *SessionStore) GetSessionsByRoom(ctx context.Context, roomID string) ([]*models.Session, error) {
	return s.querySessions(ctx, `
		SELECT `+sessionColumns+`
		FROM game_sessions
		WHERE room_id = $1
		ORDER BY joined_at ASC
	`, roomID)
}

func (s *SessionStore) GetActiveSessionsByRoom(ctx context.Context, roomID string) ([]*models.Session, error) {
	return s.querySessions(ctx, `
		SELECT `+sessionColumns+`
		FROM game_sessions
		WHERE room_id = $1 AND left_at IS NULL
		ORDER BY joined_at ASC
	`, roomID)
}

func (s *SessionStore) querySessions(ctx context.Context, query string, args ...any) ([]*models.Session, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		sess := &models.Session{}
		err := rows.Scan(
			&sess.ID, &sess.UserID, &sess.RoomID, &sess.Score,
			&sess.CorrectAnswers, &sess.TotalAnswers, &sess.JoinedAt, &sess.LeftAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// CloseSession soft-closes the caller's active session. The row is
// retained for ranking history.
func (s *SessionStore) CloseSession(ctx context.Context, roomID, userID string, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE game_sessions
		SET left_at = $3
		WHERE room_id = $1 AND user_id = $2 AND left_at IS NULL
	`, roomID, userID, now)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("user %s is not in room %s", userID, roomID)
	}
	return nil
}
