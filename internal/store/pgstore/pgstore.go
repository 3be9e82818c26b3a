// Package pgstore is the multi-process store.Store implementation: a thin
// SQL layer over jackc/pgx/v5's pgxpool, grounded on the jokefactory
// manifest's pgx/v5 dependency and the ports/repository split visible in
// other_examples' database package. Atomic transitions are a
// SELECT ... FOR UPDATE followed by an UPDATE ... WHERE status = $expected
// inside one transaction — the row lock serializes concurrent claimants on
// the same game, and the WHERE clause is the same defense-in-depth CAS
// check memstore does with a plain mutex.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kiliankoe/partyquorum/internal/store"
)

type Store struct {
	Pool *pgxpool.Pool
}

// New opens a pool against dsn. Callers should run Migrate(dsn) once at
// process start before using the returned Store.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

// mapErr classifies a pgx error for the api layer's status mapping. A
// *pgconn.PgError means the database ran the query and rejected it (a
// constraint violation, bad syntax) — a real internal error. Anything else
// reaching this boundary — connection refused, pool exhaustion, a context
// deadline — means the database was never reachably queried at all, which
// is store.ErrUnavailable's case, not an internal error.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("pgstore: %w", err)
	}
	return fmt.Errorf("pgstore: %w: %w", store.ErrUnavailable, err)
}

// scanGame reads host_player_id and next_game_code through pgtype.Text:
// both columns are nullable (a just-created game has no host row yet mid
// transaction; next_game_code is only set once FINAL_RESULTS offers a
// rematch), but store.Game models them as plain strings, so a NULL is
// mapped to "" rather than left to fail a direct *string Scan.
func scanGame(row pgx.Row) (*store.Game, error) {
	var g store.Game
	var hostPlayerID, nextGameCode pgtype.Text
	err := row.Scan(
		&g.ID, &g.RoomCode, &g.Status, &g.CurrentRound, &g.TotalRounds, &hostPlayerID,
		&g.PhaseDeadline, &g.TimersDisabled, &g.VotingPromptIndex, &g.VotingRevealing,
		&g.Version, &g.InputTokens, &g.OutputTokens, &g.CostMicros, &nextGameCode, &g.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	g.HostPlayerID = hostPlayerID.String
	g.NextGameCode = nextGameCode.String
	return &g, nil
}

const gameColumns = `id, room_code, status, current_round, total_rounds, host_player_id,
	phase_deadline, timers_disabled, voting_prompt_index, voting_revealing,
	version, input_tokens, output_tokens, cost_micros, next_game_code, created_at`

func (s *Store) CreateGame(ctx context.Context, params store.GameCreateParams) (*store.Game, *store.Player, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, mapErr(err)
	}
	defer tx.Rollback(ctx)

	var code string
	for {
		code = randomRoomCode()
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE room_code = $1)`, code).Scan(&exists); err != nil {
			return nil, nil, mapErr(err)
		}
		if !exists {
			break
		}
	}

	var gameID string
	err = tx.QueryRow(ctx, `INSERT INTO games (room_code, status, total_rounds, timers_disabled)
		VALUES ($1, 'LOBBY', $2, $3) RETURNING id`, code, params.TotalRounds, params.TimersDisabled).Scan(&gameID)
	if err != nil {
		return nil, nil, mapErr(err)
	}

	host, err := createPlayerTx(ctx, tx, gameID, params.HostName, store.PlayerHuman, "")
	if err != nil {
		return nil, nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE games SET host_player_id = $1 WHERE id = $2`, host.ID, gameID); err != nil {
		return nil, nil, mapErr(err)
	}

	row := tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, gameID)
	game, err := scanGame(row)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, mapErr(err)
	}
	return game, host, nil
}

func (s *Store) GetGameByCode(ctx context.Context, code string) (*store.Game, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE room_code = $1`, code)
	return scanGame(row)
}

func (s *Store) GetGameByID(ctx context.Context, id string) (*store.Game, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
	return scanGame(row)
}

func (s *Store) TryTransition(ctx context.Context, gameID string, check store.CASCheck, apply func(g *store.Game) error) (bool, *store.Game, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, nil, mapErr(err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1 FOR UPDATE`, gameID)
	game, err := scanGame(row)
	if err != nil {
		return false, nil, err
	}
	if game.Status != check.Status {
		return false, game, nil
	}
	if check.VotingRevealing != nil && game.VotingRevealing != *check.VotingRevealing {
		return false, game, nil
	}

	if err := apply(game); err != nil {
		return false, nil, err
	}

	tag, err := tx.Exec(ctx, `UPDATE games SET
		status = $1, current_round = $2, host_player_id = $3, phase_deadline = $4,
		voting_prompt_index = $5, voting_revealing = $6, next_game_code = $7,
		version = version + 1
		WHERE id = $8 AND status = $9`,
		game.Status, game.CurrentRound, game.HostPlayerID, game.PhaseDeadline,
		game.VotingPromptIndex, game.VotingRevealing, game.NextGameCode,
		gameID, check.Status)
	if err != nil {
		return false, nil, mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return false, game, nil
	}

	row = tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, gameID)
	updated, err := scanGame(row)
	if err != nil {
		return false, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, nil, mapErr(err)
	}
	return true, updated, nil
}

func (s *Store) TouchVersion(ctx context.Context, gameID string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE games SET version = version + 1 WHERE id = $1`, gameID)
	return mapErr(err)
}

func (s *Store) DeleteStaleGames(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM games WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}
