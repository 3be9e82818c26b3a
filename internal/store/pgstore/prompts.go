package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/kiliankoe/partyquorum/internal/store"
)

func scanPrompt(row pgx.Row) (*store.Prompt, error) {
	var p store.Prompt
	if err := row.Scan(&p.ID, &p.RoundID, &p.GameID, &p.Text, &p.Order); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *Store) CreatePromptsWithAssignments(ctx context.Context, roundID string, drafts []store.PromptDraft) ([]*store.Prompt, error) {
	var round store.Round
	if err := s.Pool.QueryRow(ctx, `SELECT id, game_id, round_number FROM rounds WHERE id = $1`, roundID).
		Scan(&round.ID, &round.GameID, &round.RoundNumber); err != nil {
		return nil, mapErr(err)
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	defer tx.Rollback(ctx)

	out := make([]*store.Prompt, 0, len(drafts))
	for i, d := range drafts {
		row := tx.QueryRow(ctx, `INSERT INTO prompts (round_id, game_id, text, ord) VALUES ($1, $2, $3, $4)
			RETURNING id, round_id, game_id, text, ord`, roundID, round.GameID, d.Text, i)
		p, err := scanPrompt(row)
		if err != nil {
			return nil, err
		}
		for _, playerID := range d.Assignees {
			if _, err := tx.Exec(ctx, `INSERT INTO assignments (prompt_id, player_id) VALUES ($1, $2)`, p.ID, playerID); err != nil {
				return nil, mapErr(err)
			}
		}
		out = append(out, p)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (s *Store) ListPromptsForRound(ctx context.Context, roundID string) ([]*store.Prompt, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, round_id, game_id, text, ord FROM prompts WHERE round_id = $1 ORDER BY ord ASC`, roundID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []*store.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) GetPromptByID(ctx context.Context, id string) (*store.Prompt, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, round_id, game_id, text, ord FROM prompts WHERE id = $1`, id)
	return scanPrompt(row)
}

func (s *Store) ListPromptTextsForGame(ctx context.Context, gameID string) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT text FROM prompts WHERE game_id = $1`, gameID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, text)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) ListAssignmentsForPrompt(ctx context.Context, promptID string) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT player_id FROM assignments WHERE prompt_id = $1`, promptID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var playerID string
		if err := rows.Scan(&playerID); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, playerID)
	}
	return out, mapErr(rows.Err())
}
