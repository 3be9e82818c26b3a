// Package store defines the persistence contract the phase machine, quorum
// oracle, and AI orchestrator run against. spec.md treats the persistence
// layer as an external collaborator specified only by contract: row-level
// atomic updates, unique constraints, and increment-style column updates.
// This package is that contract plus the entity shapes it operates on.
package store

import "time"

// FORFEIT_MARKER records a failure to submit a Response. It is the unique
// discriminator for "no real answer" and is excluded when computing votable
// prompts.
const ForfeitMarker = "\x00FORFEIT\x00"

type Status string

const (
	StatusLobby        Status = "LOBBY"
	StatusWriting      Status = "WRITING"
	StatusVoting       Status = "VOTING"
	StatusRoundResults Status = "ROUND_RESULTS"
	StatusFinalResults Status = "FINAL_RESULTS"
)

type PlayerType string

const (
	PlayerHuman      PlayerType = "HUMAN"
	PlayerAI         PlayerType = "AI"
	PlayerSpectator  PlayerType = "SPECTATOR"
)

type ParticipationStatus string

const (
	ParticipationActive       ParticipationStatus = "ACTIVE"
	ParticipationDisconnected ParticipationStatus = "DISCONNECTED"
)

// Game is the top-level entity. Status only ever advances LOBBY -> WRITING
// -> VOTING -> ROUND_RESULTS -> {WRITING | FINAL_RESULTS}; Version strictly
// increases on every write a client must observe.
type Game struct {
	ID                string
	RoomCode          string
	Status            Status
	CurrentRound      int
	TotalRounds       int
	HostPlayerID      string
	PhaseDeadline     *time.Time
	TimersDisabled    bool
	VotingPromptIndex int
	VotingRevealing   bool
	Version           int64
	InputTokens       int64
	OutputTokens      int64
	CostMicros        int64 // total cost in millionths of a currency unit
	NextGameCode      string
	CreatedAt         time.Time
}

type Player struct {
	ID                  string
	GameID              string
	Name                string
	Type                PlayerType
	ModelID             string
	Score               int
	HumorRating         float64
	WinStreak           int
	IdleRounds          int
	ParticipationStatus ParticipationStatus
	LastSeen            time.Time
	RejoinToken         string
}

type Round struct {
	ID          string
	GameID      string
	RoundNumber int
}

type Prompt struct {
	ID      string
	RoundID string
	GameID  string
	Text    string
	// Order is the prompt's stable position within its round, used to order
	// VotingPromptIndex.
	Order int
}

type Assignment struct {
	PromptID string
	PlayerID string
}

// FailReason is a short machine-readable discriminator, never surfaced to
// the client as free text. Empty string means "no failure".
type FailReason string

const (
	FailNone       FailReason = ""
	FailEmpty      FailReason = "empty"
	FailError      FailReason = "error"
	FailInvalidVote FailReason = "invalid_vote"
)

type Response struct {
	ID           string
	PromptID     string
	PlayerID     string
	Text         string
	PointsEarned int
	FailReason   FailReason
	CreatedAt    time.Time
}

// Vote is a (Prompt, Voter) pair. ResponseID == "" and FailReason == ""
// is an abstention; ResponseID == "" and FailReason != "" is an error vote;
// otherwise it's a cast vote.
type Vote struct {
	ID         string
	PromptID   string
	VoterID    string
	ResponseID string
	FailReason FailReason
	CreatedAt  time.Time
}

type Reaction struct {
	ID         string
	ResponseID string
	PlayerID   string
	Emoji      string
}

type GameModelUsage struct {
	GameID      string
	ModelID     string
	InputTokens int64
	OutputTokens int64
	CostMicros  int64
}

// Usage is what a model call contract reports back per spec.md §4.2.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}
