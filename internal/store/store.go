package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("store: not found")
	ErrUnavailable    = errors.New("store: unavailable")
	ErrInvalidCode    = errors.New("store: invalid room code")
)

// GameCreateParams seeds a new Game plus its host Player.
type GameCreateParams struct {
	TotalRounds    int
	TimersDisabled bool
	HostName       string
}

// CASCheck is the precondition an atomic transition is gated on. A zero
// VotingRevealing pointer means "don't check that field".
type CASCheck struct {
	Status          Status
	VotingRevealing *bool
}

// PromptDraft is one prompt-with-assignees to create as part of a round.
type PromptDraft struct {
	Text      string
	Assignees []string // player IDs who must answer this prompt
}

// PlayerScoreDelta is applied atomically: Score is added to the player's
// running total (not overwritten); HumorRating/WinStreak are overwritten
// with the scoring kernel's freshly computed values.
type PlayerScoreDelta struct {
	PlayerID       string
	ScoreDelta     int
	NewHumorRating float64
	NewWinStreak   int
}

type LeaderboardEntry struct {
	PlayerName string
	TotalScore int
	GamesPlayed int
}

// Store is the persistence contract spec.md §1 treats as an external
// collaborator "specified only by contract": row-level atomic updates,
// unique constraints, and increment-style column updates. Every phase
// transition goes through TryTransition so that concurrent callers race
// safely regardless of which Store implementation backs the process.
type Store interface {
	// Games
	CreateGame(ctx context.Context, params GameCreateParams) (*Game, *Player, error)
	GetGameByCode(ctx context.Context, code string) (*Game, error)
	GetGameByID(ctx context.Context, id string) (*Game, error)

	// TryTransition atomically checks check against the game's current
	// status (and VotingRevealing, if check.VotingRevealing != nil); on a
	// match it invokes apply with the loaded game for in-place mutation,
	// persists the mutation plus a version bump, and returns claimed=true.
	// On a mismatch it returns claimed=false, apply is never called, and
	// the stored row is untouched. Exactly one concurrent caller observes
	// claimed=true for any given (gameID, check) race.
	TryTransition(ctx context.Context, gameID string, check CASCheck, apply func(g *Game) error) (claimed bool, game *Game, err error)

	// TouchVersion bumps Game.Version without a status change, used after
	// writes clients must see that are not transitions themselves: joins,
	// responses, votes, reactions, and AI votes on the currently-visible
	// prompt.
	TouchVersion(ctx context.Context, gameID string) error

	DeleteStaleGames(ctx context.Context, olderThan time.Time) (int, error)

	// Players
	CreatePlayer(ctx context.Context, gameID, name string, typ PlayerType, modelID string) (*Player, error)
	GetPlayerByID(ctx context.Context, id string) (*Player, error)
	GetPlayerByRejoinToken(ctx context.Context, token string) (*Player, error)
	// RotateRejoinToken issues a fresh rejoin token for the player bound to
	// oldToken and returns the (unchanged-id) player plus the new token.
	RotateRejoinToken(ctx context.Context, oldToken string) (*Player, string, error)
	ListPlayers(ctx context.Context, gameID string) ([]*Player, error)
	TouchPlayerLastSeen(ctx context.Context, playerID string, at time.Time) error
	SetPlayerParticipation(ctx context.Context, playerID string, status ParticipationStatus) error
	PromoteHost(ctx context.Context, gameID, newHostPlayerID string) error
	ApplyRoundScoreDeltas(ctx context.Context, gameID string, deltas []PlayerScoreDelta) error

	// Rounds / Prompts / Assignments
	CreateRound(ctx context.Context, gameID string, roundNumber int) (round *Round, created bool, err error)
	GetLatestRound(ctx context.Context, gameID string) (*Round, error)
	ListRounds(ctx context.Context, gameID string) ([]*Round, error)
	CreatePromptsWithAssignments(ctx context.Context, roundID string, drafts []PromptDraft) ([]*Prompt, error)
	ListPromptsForRound(ctx context.Context, roundID string) ([]*Prompt, error)
	GetPromptByID(ctx context.Context, id string) (*Prompt, error)
	// ListPromptTextsForGame returns every prompt text ever used across all
	// of a game's rounds, for drawing new prompts that exclude repeats.
	ListPromptTextsForGame(ctx context.Context, gameID string) ([]string, error)
	ListAssignmentsForPrompt(ctx context.Context, promptID string) ([]string, error)

	// Responses
	CreateResponse(ctx context.Context, promptID, playerID, text string, failReason FailReason) (resp *Response, created bool, err error)
	ListResponsesForPrompt(ctx context.Context, promptID string) ([]*Response, error)
	ListResponsesForRound(ctx context.Context, roundID string) ([]*Response, error)
	GetResponseByID(ctx context.Context, id string) (*Response, error)
	SetResponsePoints(ctx context.Context, responseID string, points int) error

	// Votes
	CreateVote(ctx context.Context, promptID, voterID, responseID string, failReason FailReason) (vote *Vote, created bool, err error)
	ListVotesForPrompt(ctx context.Context, promptID string) ([]*Vote, error)

	// Reactions
	ToggleReaction(ctx context.Context, responseID, playerID, emoji string) (added bool, err error)
	ListReactionsForResponse(ctx context.Context, responseID string) ([]*Reaction, error)

	// Model usage
	AddModelUsage(ctx context.Context, gameID, modelID string, usage Usage, costMicros int64) error

	// Leaderboard
	AggregateLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}
