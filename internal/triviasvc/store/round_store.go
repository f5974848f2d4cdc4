package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

type RoundStore struct {
	db *pgxpool.Pool
}

func NewRoundStore(db *pgxpool.Pool) *RoundStore {
	return &RoundStore{db: db}
}

const roundColumns = `id, room_id, question_id, round_number, time_limit, started_at, closed_at, created_at`

func (s *RoundStore) GetAssignment(ctx context.Context, roomID string, roundNumber int) (*models.RoundAssignment, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM round_assignments
		WHERE room_id = $1 AND round_number = $2
	`
	ra := &models.RoundAssignment{}
	err := s.db.QueryRow(ctx, query, roomID, roundNumber).Scan(
		&ra.ID, &ra.RoomID, &ra.QuestionID, &ra.RoundNumber,
		&ra.TimeLimit, &ra.StartedAt, &ra.ClosedAt, &ra.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get round %d for room %s: %w", roundNumber, roomID, err)
	}
	return ra, nil
}

func (s *RoundStore) GetAssignmentsByRoom(ctx context.Context, roomID string) ([]*models.RoundAssignment, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM round_assignments
		WHERE room_id = $1
		ORDER BY round_number ASC
	`
	rows, err := s.db.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds for room %s: %w", roomID, err)
	}
	defer rows.Close()

	var assignments []*models.RoundAssignment
	for rows.Next() {
		ra := &models.RoundAssignment{}
		err := rows.Scan(
			&ra.ID, &ra.RoomID, &ra.QuestionID, &ra.RoundNumber,
			&ra.TimeLimit, &ra.StartedAt, &ra.ClosedAt, &ra.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", err)
		}
		assignments = append(assignments, ra)
	}
	return assignments, rows.Err()
}

// CloseRound stamps the deadline expiry on an assignment. Reports
// whether this call won the close (false when already closed, so only
// one timer run synthesizes forfeit answers).
func (s *RoundStore) CloseRound(ctx context.Context, assignmentID string, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE round_assignments
		SET closed_at = $2
		WHERE id = $1 AND closed_at IS NULL
	`, assignmentID, now)
	if err != nil {
		return false, fmt.Errorf("failed to close round %s: %w", assignmentID, err)
	}
	return tag.RowsAffected() > 0, nil
}
