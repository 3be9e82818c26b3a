package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kiliankoe/partyquorum/internal/store"
)

const voteColumns = `id, prompt_id, voter_id, response_id, fail_reason, created_at`

func scanVote(row pgx.Row) (*store.Vote, error) {
	var v store.Vote
	var responseID pgtype.Text
	if err := row.Scan(&v.ID, &v.PromptID, &v.VoterID, &responseID, &v.FailReason, &v.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	v.ResponseID = responseID.String
	return &v, nil
}

// CreateVote is idempotent on (prompt_id, voter_id), the same race this
// package's CreateResponse guards against.
func (s *Store) CreateVote(ctx context.Context, promptID, voterID, responseID string, failReason store.FailReason) (*store.Vote, bool, error) {
	var respID pgtype.Text
	if responseID != "" {
		respID = pgtype.Text{String: responseID, Valid: true}
	}
	row := s.Pool.QueryRow(ctx, `INSERT INTO votes (prompt_id, voter_id, response_id, fail_reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (prompt_id, voter_id) DO NOTHING
		RETURNING `+voteColumns, promptID, voterID, respID, failReason)
	v, err := scanVote(row)
	if err == nil {
		return v, true, nil
	}
	if err != store.ErrNotFound {
		return nil, false, err
	}
	row = s.Pool.QueryRow(ctx, `SELECT `+voteColumns+` FROM votes WHERE prompt_id = $1 AND voter_id = $2`, promptID, voterID)
	v, err = scanVote(row)
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

func (s *Store) ListVotesForPrompt(ctx context.Context, promptID string) ([]*store.Vote, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+voteColumns+` FROM votes WHERE prompt_id = $1 ORDER BY created_at ASC`, promptID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []*store.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, mapErr(rows.Err())
}
