// Package leaderboard maintains the cross-game aggregate spec.md's
// SUPPLEMENT calls for: total score per player name, incremented once a
// game reaches FINAL_RESULTS. It has no teacher precedent — the teacher's
// export.go writes one finished game to a flat text file and never
// aggregates across games — so this is grounded on the
// mehmetimga-leaderboard-redis manifest's redis/go-redis/v9 dependency,
// using a sorted set the way that library's README-level idiom intends:
// ZINCRBY to accumulate, ZREVRANGE (WithScores) to read the top N back out.
//
// When REDIS_URL is unset, Top falls back to
// internal/store.Store.AggregateLeaderboard, a SQL aggregate query, and
// Record does nothing — the store already has every game's final player
// scores, so Redis is a cache in front of that, not the source of truth.
package leaderboard

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kiliankoe/partyquorum/internal/store"
)

const sortedSetKey = "partyquorum:leaderboard"

// Board answers leaderboard queries, preferring Redis when configured.
type Board struct {
	Redis *redis.Client // nil falls back to Store
	Store store.Store
}

func New(redisClient *redis.Client, s store.Store) *Board {
	return &Board{Redis: redisClient, Store: s}
}

// Record adds a finished game's player scores to the leaderboard. Called
// once per game, from whichever phase-machine transition lands the game in
// FINAL_RESULTS.
func (b *Board) Record(ctx context.Context, players []*store.Player) error {
	if b.Redis == nil {
		return nil // store.AggregateLeaderboard reads scores directly; nothing to precompute
	}
	pipe := b.Redis.Pipeline()
	for _, p := range players {
		if p.Type != store.PlayerHuman {
			continue
		}
		pipe.ZIncrBy(ctx, sortedSetKey, float64(p.Score), p.Name)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("leaderboard: record: %w", err)
	}
	return nil
}

// Top returns the n highest-scoring player names and their aggregate score.
func (b *Board) Top(ctx context.Context, n int) ([]store.LeaderboardEntry, error) {
	if b.Redis == nil {
		return b.Store.AggregateLeaderboard(ctx, n)
	}
	results, err := b.Redis.ZRevRangeWithScores(ctx, sortedSetKey, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard: top: %w", err)
	}
	out := make([]store.LeaderboardEntry, 0, len(results))
	for _, z := range results {
		name, _ := z.Member.(string)
		out = append(out, store.LeaderboardEntry{PlayerName: name, TotalScore: int(z.Score)})
	}
	return out, nil
}
