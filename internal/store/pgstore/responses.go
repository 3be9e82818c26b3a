package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/kiliankoe/partyquorum/internal/store"
)

func scanResponse(row pgx.Row) (*store.Response, error) {
	var r store.Response
	if err := row.Scan(&r.ID, &r.PromptID, &r.PlayerID, &r.Text, &r.PointsEarned, &r.FailReason, &r.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

const responseColumns = `id, prompt_id, player_id, text, points_earned, fail_reason, created_at`

// CreateResponse is idempotent on (prompt_id, player_id): the unique
// constraint means a racing duplicate submit (e.g. a double-tap from a
// flaky client) loses the INSERT and this falls back to returning the
// row that actually won, with created=false.
func (s *Store) CreateResponse(ctx context.Context, promptID, playerID, text string, failReason store.FailReason) (*store.Response, bool, error) {
	row := s.Pool.QueryRow(ctx, `INSERT INTO responses (prompt_id, player_id, text, fail_reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (prompt_id, player_id) DO NOTHING
		RETURNING `+responseColumns, promptID, playerID, text, failReason)
	r, err := scanResponse(row)
	if err == nil {
		return r, true, nil
	}
	if err != store.ErrNotFound {
		return nil, false, err
	}
	row = s.Pool.QueryRow(ctx, `SELECT `+responseColumns+` FROM responses WHERE prompt_id = $1 AND player_id = $2`, promptID, playerID)
	r, err = scanResponse(row)
	if err != nil {
		return nil, false, err
	}
	return r, false, nil
}

func (s *Store) ListResponsesForPrompt(ctx context.Context, promptID string) ([]*store.Response, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+responseColumns+` FROM responses WHERE prompt_id = $1 ORDER BY created_at ASC`, promptID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []*store.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) ListResponsesForRound(ctx context.Context, roundID string) ([]*store.Response, error) {
	rows, err := s.Pool.Query(ctx, `SELECT r.id, r.prompt_id, r.player_id, r.text, r.points_earned, r.fail_reason, r.created_at
		FROM responses r JOIN prompts p ON p.id = r.prompt_id
		WHERE p.round_id = $1 ORDER BY p.ord ASC, r.created_at ASC`, roundID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []*store.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) GetResponseByID(ctx context.Context, id string) (*store.Response, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = $1`, id)
	return scanResponse(row)
}

func (s *Store) SetResponsePoints(ctx context.Context, responseID string, points int) error {
	_, err := s.Pool.Exec(ctx, `UPDATE responses SET points_earned = $1 WHERE id = $2`, points, responseID)
	return mapErr(err)
}
