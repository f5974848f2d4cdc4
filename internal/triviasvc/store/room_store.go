package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renfu-her/trivia-services/internal/triviasvc/errs"
	"github.com/renfu-her/trivia-services/internal/triviasvc/models"
)

type RoomStore struct {
	db *pgxpool.Pool
}

func NewRoomStore(db *pgxpool.Pool) *RoomStore {
	return &RoomStore{db: db}
}

const roomColumns = `
	r.id, r.name, r.status, r.max_players, r.current_round, r.total_rounds,
	r.categories, r.owner_id, r.created_at, r.started_at, r.ended_at,
	(SELECT COUNT(*) FROM game_sessions s WHERE s.room_id = r.id AND s.left_at IS NULL)
`

func scanRoom(row pgx.Row) (*models.Room, error) {
	room := &models.Room{}
	err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Status,
		&room.MaxPlayers,
		&room.CurrentRound,
		&room.TotalRounds,
		&room.Categories,
		&room.OwnerID,
		&room.CreatedAt,
		&room.StartedAt,
		&room.EndedAt,
		&room.PlayerCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}
	return room, nil
}

func (s *RoomStore) CreateRoom(ctx context.Context, room *models.Room) error {
	query := `
		INSERT INTO game_rooms (id, name, status, max_players, current_round, total_rounds, categories, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.Exec(ctx, query,
		room.ID, room.Name, room.Status, room.MaxPlayers,
		room.CurrentRound, room.TotalRounds, room.Categories, room.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// DeleteRoom removes a room that never got players, the compensation
// for a failed owner auto-join. Guarded to waiting rooms so it can
// never erase a started game.
func (s *RoomStore) DeleteRoom(ctx context.Context, roomID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM game_rooms WHERE id = $1 AND status = $2`, roomID, models.RoomWaiting)
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", roomID, err)
	}
	return nil
}

func (s *RoomStore) GetRoomByID(ctx context.Context, roomID string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM game_rooms r WHERE r.id = $1`
	return scanRoom(s.db.QueryRow(ctx, query, roomID))
}

func (s *RoomStore) ListRooms(ctx context.Context, status string, limit int) ([]*models.Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM game_rooms r
		WHERE r.status = $1
		ORDER BY r.created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room := &models.Room{}
		err := rows.Scan(
			&room.ID, &room.Name, &room.Status, &room.MaxPlayers,
			&room.CurrentRound, &room.TotalRounds, &room.Categories,
			&room.OwnerID, &room.CreatedAt, &room.StartedAt, &room.EndedAt,
			&room.PlayerCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room row: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// StartGame flips the room to in_progress and materializes the full
// round sequence in one transaction. The CAS on status makes concurrent
// starts lose cleanly; any assignment insert failure rolls everything
// back so a failed start leaves no partial state.
func (s *RoomStore) StartGame(ctx context.Context, roomID string, assignments []*models.RoundAssignment, now time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, err, "begin start transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE game_rooms
		SET status = $2, current_round = 1, started_at = $3
		WHERE id = $1 AND status = $4
	`, roomID, models.RoomInProgress, now, models.RoomWaiting)
	if err != nil {
		return fmt.Errorf("failed to start room %s: %w", roomID, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.Conflict("room %s is no longer waiting", roomID)
	}

	for _, ra := range assignments {
		started := any(nil)
		if ra.RoundNumber == 1 {
			started = now
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO round_assignments (id, room_id, question_id, round_number, time_limit, started_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ra.ID, ra.RoomID, ra.QuestionID, ra.RoundNumber, ra.TimeLimit, started)
		if err != nil {
			return fmt.Errorf("failed to insert round %d for room %s: %w", ra.RoundNumber, roomID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(errs.KindUnavailable, err, "commit start transaction")
	}
	return nil
}

// AdvanceRound bumps current_round from the expected value and opens
// the next assignment. Zero rows means another caller advanced first.
func (s *RoomStore) AdvanceRound(ctx context.Context, roomID string, fromRound int, now time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.KindUnavailable, err, "begin advance transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE game_rooms
		SET current_round = current_round + 1
		WHERE id = $1 AND status = $2 AND current_round = $3
	`, roomID, models.RoomInProgress, fromRound)
	if err != nil {
		return fmt.Errorf("failed to advance room %s: %w", roomID, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.Conflict("room %s already advanced past round %d", roomID, fromRound)
	}

	_, err = tx.Exec(ctx, `
		UPDATE round_assignments
		SET started_at = $3
		WHERE room_id = $1 AND round_number = $2 AND started_at IS NULL
	`, roomID, fromRound+1, now)
	if err != nil {
		return fmt.Errorf("failed to open round %d for room %s: %w", fromRound+1, roomID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(errs.KindUnavailable, err, "commit advance transaction")
	}
	return nil
}

// FinishGame terminates the room from the expected final round.
func (s *RoomStore) FinishGame(ctx context.Context, roomID string, fromRound int, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE game_rooms
		SET status = $2, ended_at = $3
		WHERE id = $1 AND status = $4 AND current_round = $5
	`, roomID, models.RoomFinished, now, models.RoomInProgress, fromRound)
	if err != nil {
		return fmt.Errorf("failed to finish room %s: %w", roomID, err)
	}
	if tag.RowsAffected() == 0 {
		return errs.Conflict("room %s already advanced past round %d", roomID, fromRound)
	}
	return nil
}
