package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/renfu-her/trivia-services/internal/triviasvc/errs"
	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

type AnswerStore struct {
	db *pgxpool.Pool
}

func NewAnswerStore(db *pgxpool.Pool) *AnswerStore {
	return &AnswerStore{db: db}
}

// CreateAnswer records the answer and folds the score delta into the
// session counters in one transaction. The unique_session_round
// constraint makes the check-and-insert atomic: the second of two
// racing submissions for the same (session, round) pair gets Conflict
// and leaves the counters untouched.
func (s *AnswerStore) CreateAnswer(ctx context.Context, ans *models.Answer, scoreDelta int) error {
	value, err := json.Marshal(ans.Value)
	if err != nil {
		return fmt.Errorf("failed to encode answer value: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, err, "begin answer transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO player_answers (id, session_id, round_assignment_id, answer, is_correct, time_taken, answered_at, forfeited)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ans.ID, ans.SessionID, ans.RoundAssignmentID, value, ans.IsCorrect, ans.TimeTaken, ans.AnsweredAt, ans.Forfeited)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errs.Conflict("answer already recorded for session %s", ans.SessionID)
		}
		return fmt.Errorf("failed to insert answer: %w", err)
	}

	correct := 0
	if ans.IsCorrect {
		correct = 1
	}
	_, err = tx.Exec(ctx, `
		UPDATE game_sessions
		SET score = score + $2,
		    total_answers = total_answers + 1,
		    correct_answers = correct_answers + $3
		WHERE id = $1
	`, ans.SessionID, scoreDelta, correct)
	if err != nil {
		return fmt.Errorf("failed to update session counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(errs.KindUnavailable, err, "commit answer transaction")
	}
	return nil
}

// HasAnswer reports whether the pair already has an answer. Advisory
// only; CreateAnswer remains the authoritative gate.
func (s *AnswerStore) HasAnswer(ctx context.Context, sessionID, assignmentID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM player_answers
			WHERE session_id = $1 AND round_assignment_id = $2
		)
	`, sessionID, assignmentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check answer existence: %w", err)
	}
	return exists, nil
}

// AnsweredSessionIDs returns the set of sessions holding an answer for
// the assignment, for round-completion accounting.
func (s *AnswerStore) AnsweredSessionIDs(ctx context.Context, assignmentID string) (map[string]bool, error) {
	rows, err := s.db.Query(ctx, `
		SELECT session_id FROM player_answers WHERE round_assignment_id = $1
	`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answered sessions: %w", err)
	}
	defer rows.Close()

	answered := make(map[string]bool)
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		answered[sessionID] = true
	}
	return answered, rows.Err()
}

// ForfeitUnanswered synthesizes an incorrect zero-score answer for every
// active session still missing one for the assignment. ON CONFLICT
// keeps it idempotent against submissions racing the deadline.
func (s *AnswerStore) ForfeitUnanswered(ctx context.Context, roomID, assignmentID string, timeTaken float64, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		WITH forfeits AS (
			INSERT INTO player_answers (id, session_id, round_assignment_id, answer, is_correct, time_taken, answered_at, forfeited)
			SELECT gen_random_uuid(), gs.id, $2, '""'::jsonb, FALSE, $3, $4, TRUE
			FROM game_sessions gs
			WHERE gs.room_id = $1
			  AND gs.left_at IS NULL
			  AND NOT EXISTS (
				SELECT 1 FROM player_answers pa
				WHERE pa.session_id = gs.id AND pa.round_assignment_id = $2
			  )
			ON CONFLICT (session_id, round_assignment_id) DO NOTHING
			RETURNING session_id
		)
		UPDATE game_sessions
		SET total_answers = total_answers + 1
		WHERE id IN (SELECT session_id FROM forfeits)
	`, roomID, assignmentID, timeTaken, now)
	if err != nil {
		return 0, fmt.Errorf("failed to forfeit round %s: %w", assignmentID, err)
	}
	return int(tag.RowsAffected()), nil
}

// TotalTimesBySession sums answer times per session for the room, the
// ranking tie-break. Scanned as numeric so the comparator is exact.
func (s *AnswerStore) TotalTimesBySession(ctx context.Context, roomID string) (map[string]decimal.Decimal, error) {
	rows, err := s.db.Query(ctx, `
		SELECT pa.session_id, COALESCE(SUM(pa.time_taken::numeric), 0)
		FROM player_answers pa
		JOIN game_sessions gs ON gs.id = pa.session_id
		WHERE gs.room_id = $1
		GROUP BY pa.session_id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum answer times: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var sessionID string
		var total decimal.Decimal
		if err := rows.Scan(&sessionID, &total); err != nil {
			return nil, fmt.Errorf("failed to scan time total: %w", err)
		}
		totals[sessionID] = total
	}
	return totals, rows.Err()
}
