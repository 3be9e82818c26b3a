package pgstore

import (
	"context"

	"github.com/kiliankoe/partyquorum/internal/store"
)

func (s *Store) AddModelUsage(ctx context.Context, gameID, modelID string, usage store.Usage, costMicros int64) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO game_model_usage (game_id, model_id, input_tokens, output_tokens, cost_micros)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (game_id, model_id) DO UPDATE SET
			input_tokens = game_model_usage.input_tokens + excluded.input_tokens,
			output_tokens = game_model_usage.output_tokens + excluded.output_tokens,
			cost_micros = game_model_usage.cost_micros + excluded.cost_micros`,
		gameID, modelID, usage.InputTokens, usage.OutputTokens, costMicros); err != nil {
		return mapErr(err)
	}

	if _, err := tx.Exec(ctx, `UPDATE games SET
		input_tokens = input_tokens + $1, output_tokens = output_tokens + $2, cost_micros = cost_micros + $3,
		version = version + 1
		WHERE id = $4`, usage.InputTokens, usage.OutputTokens, costMicros, gameID); err != nil {
		return mapErr(err)
	}

	return mapErr(tx.Commit(ctx))
}

func (s *Store) AggregateLeaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error) {
	rows, err := s.Pool.Query(ctx, `SELECT p.name, SUM(p.score), COUNT(*)
		FROM players p JOIN games g ON g.id = p.game_id
		WHERE g.status = $1 AND p.type = $2
		GROUP BY p.name
		ORDER BY SUM(p.score) DESC
		LIMIT $3`, store.StatusFinalResults, store.PlayerHuman, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []store.LeaderboardEntry
	for rows.Next() {
		var e store.LeaderboardEntry
		if err := rows.Scan(&e.PlayerName, &e.TotalScore, &e.GamesPlayed); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, e)
	}
	return out, mapErr(rows.Err())
}
