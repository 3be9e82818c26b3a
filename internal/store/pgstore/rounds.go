package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/kiliankoe/partyquorum/internal/store"
)

func scanRound(row pgx.Row) (*store.Round, error) {
	var r store.Round
	if err := row.Scan(&r.ID, &r.GameID, &r.RoundNumber); err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

// CreateRound is idempotent on (gameID, roundNumber): a concurrent sweeper
// and an AI-triggered advance can both try to start round N, and only one
// should win. The unique constraint on rounds(game_id, round_number) plus
// ON CONFLICT DO NOTHING makes the loser's INSERT return no row, at which
// point it just fetches and returns the winner's row with created=false.
func (s *Store) CreateRound(ctx context.Context, gameID string, roundNumber int) (*store.Round, bool, error) {
	row := s.Pool.QueryRow(ctx, `INSERT INTO rounds (game_id, round_number) VALUES ($1, $2)
		ON CONFLICT (game_id, round_number) DO NOTHING
		RETURNING id, game_id, round_number`, gameID, roundNumber)
	r, err := scanRound(row)
	if err == nil {
		return r, true, nil
	}
	if err != store.ErrNotFound {
		return nil, false, err
	}
	row = s.Pool.QueryRow(ctx, `SELECT id, game_id, round_number FROM rounds WHERE game_id = $1 AND round_number = $2`, gameID, roundNumber)
	r, err = scanRound(row)
	if err != nil {
		return nil, false, err
	}
	return r, false, nil
}

func (s *Store) GetLatestRound(ctx context.Context, gameID string) (*store.Round, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, game_id, round_number FROM rounds
		WHERE game_id = $1 ORDER BY round_number DESC LIMIT 1`, gameID)
	return scanRound(row)
}

func (s *Store) ListRounds(ctx context.Context, gameID string) ([]*store.Round, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, game_id, round_number FROM rounds WHERE game_id = $1 ORDER BY round_number ASC`, gameID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []*store.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, mapErr(rows.Err())
}
