package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kiliankoe/partyquorum/internal/store"
)

const playerColumns = `id, game_id, name, type, model_id, score, humor_rating, win_streak,
	idle_rounds, participation_status, last_seen, rejoin_token`

func scanPlayer(row pgx.Row) (*store.Player, error) {
	var p store.Player
	err := row.Scan(&p.ID, &p.GameID, &p.Name, &p.Type, &p.ModelID, &p.Score, &p.HumorRating,
		&p.WinStreak, &p.IdleRounds, &p.ParticipationStatus, &p.LastSeen, &p.RejoinToken)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// queryRower is satisfied by both *pgxpool.Pool and pgx.Tx, letting
// createPlayerTx run either standalone or as part of CreateGame's
// transaction.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func createPlayerTx(ctx context.Context, q queryRower, gameID, name string, typ store.PlayerType, modelID string) (*store.Player, error) {
	row := q.QueryRow(ctx, `INSERT INTO players (game_id, name, type, model_id, humor_rating, participation_status, last_seen)
		VALUES ($1, $2, $3, $4, 1.0, 'ACTIVE', now())
		RETURNING `+playerColumns, gameID, name, typ, modelID)
	return scanPlayer(row)
}

func (s *Store) CreatePlayer(ctx context.Context, gameID, name string, typ store.PlayerType, modelID string) (*store.Player, error) {
	return createPlayerTx(ctx, s.Pool, gameID, name, typ, modelID)
}

func (s *Store) GetPlayerByID(ctx context.Context, id string) (*store.Player, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
	return scanPlayer(row)
}

func (s *Store) GetPlayerByRejoinToken(ctx context.Context, token string) (*store.Player, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE rejoin_token = $1`, token)
	return scanPlayer(row)
}

func (s *Store) RotateRejoinToken(ctx context.Context, oldToken string) (*store.Player, string, error) {
	row := s.Pool.QueryRow(ctx, `UPDATE players SET rejoin_token = gen_random_uuid()::text
		WHERE rejoin_token = $1 RETURNING `+playerColumns, oldToken)
	p, err := scanPlayer(row)
	if err != nil {
		return nil, "", err
	}
	return p, p.RejoinToken, nil
}

func (s *Store) ListPlayers(ctx context.Context, gameID string) ([]*store.Player, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+playerColumns+` FROM players WHERE game_id = $1 ORDER BY last_seen ASC, id ASC`, gameID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []*store.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) TouchPlayerLastSeen(ctx context.Context, playerID string, at time.Time) error {
	_, err := s.Pool.Exec(ctx, `UPDATE players SET last_seen = $1 WHERE id = $2`, at, playerID)
	return mapErr(err)
}

func (s *Store) SetPlayerParticipation(ctx context.Context, playerID string, status store.ParticipationStatus) error {
	_, err := s.Pool.Exec(ctx, `UPDATE players SET participation_status = $1 WHERE id = $2`, status, playerID)
	return mapErr(err)
}

func (s *Store) PromoteHost(ctx context.Context, gameID, newHostPlayerID string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE games SET host_player_id = $1 WHERE id = $2`, newHostPlayerID, gameID)
	return mapErr(err)
}

// ApplyRoundScoreDeltas applies every delta within one transaction: an
// incrementing score update (concurrent-safe, the way spec.md §4.5.2
// requires) plus an overwrite of humorRating/winStreak.
func (s *Store) ApplyRoundScoreDeltas(ctx context.Context, gameID string, deltas []store.PlayerScoreDelta) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback(ctx)

	for _, d := range deltas {
		if _, err := tx.Exec(ctx, `UPDATE players SET score = score + $1, humor_rating = $2, win_streak = $3 WHERE id = $4`,
			d.ScoreDelta, d.NewHumorRating, d.NewWinStreak, d.PlayerID); err != nil {
			return mapErr(err)
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE games SET version = version + 1 WHERE id = $1`, gameID); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit(ctx))
}
