package pgstore

import (
	"context"

	"github.com/kiliankoe/partyquorum/internal/store"
)

// ToggleReaction mirrors memstore's toggle semantics with an
// INSERT-or-DELETE pair rather than a read-then-branch, so two concurrent
// togglers can't both observe "absent" and both insert: the unique
// constraint on (response_id, player_id, emoji) makes the loser's INSERT a
// no-op, which this treats the same as "someone already added it" — added
// stays true either way, matching the idempotent-add half of the race.
func (s *Store) ToggleReaction(ctx context.Context, responseID, playerID, emoji string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM reactions WHERE response_id = $1 AND player_id = $2 AND emoji = $3`,
		responseID, playerID, emoji)
	if err != nil {
		return false, mapErr(err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}
	_, err = s.Pool.Exec(ctx, `INSERT INTO reactions (response_id, player_id, emoji) VALUES ($1, $2, $3)
		ON CONFLICT (response_id, player_id, emoji) DO NOTHING`, responseID, playerID, emoji)
	if err != nil {
		return false, mapErr(err)
	}
	return true, nil
}

func (s *Store) ListReactionsForResponse(ctx context.Context, responseID string) ([]*store.Reaction, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, response_id, player_id, emoji FROM reactions WHERE response_id = $1`, responseID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []*store.Reaction
	for rows.Next() {
		var r store.Reaction
		if err := rows.Scan(&r.ID, &r.ResponseID, &r.PlayerID, &r.Emoji); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, &r)
	}
	return out, mapErr(rows.Err())
}
