package api

import "github.com/kiliankoe/partyquorum/internal/store"

// GameSnapshot is the JSON shape GET /games/{code} returns. It mirrors
// store.Game plus its owned subtree, with one deviation from a straight
// marshal: PromptView hides Responses/Votes for prompts the caller isn't
// allowed to see yet (spec.md §4.8).
type GameSnapshot struct {
	ID                string       `json:"id"`
	RoomCode          string       `json:"roomCode"`
	Status            store.Status `json:"status"`
	CurrentRound      int          `json:"currentRound"`
	TotalRounds       int          `json:"totalRounds"`
	HostPlayerID      string       `json:"hostPlayerId"`
	PhaseDeadline     *int64       `json:"phaseDeadline"` // unix millis, null if timers disabled
	TimersDisabled    bool         `json:"timersDisabled"`
	VotingPromptIndex int          `json:"votingPromptIndex"`
	VotingRevealing   bool         `json:"votingRevealing"`
	Version           int64        `json:"version"`
	InputTokens       int64        `json:"inputTokens"`
	OutputTokens      int64        `json:"outputTokens"`
	CostMicros        int64        `json:"costMicros"`
	NextGameCode      string       `json:"nextGameCode,omitempty"`
	Players           []PlayerView `json:"players"`
	Rounds            []RoundView  `json:"rounds"`
}

type PlayerView struct {
	ID                  string                    `json:"id"`
	Name                string                    `json:"name"`
	Type                store.PlayerType          `json:"type"`
	ModelID             string                    `json:"modelId,omitempty"`
	Score               int                       `json:"score"`
	HumorRating         float64                   `json:"humorRating"`
	WinStreak           int                       `json:"winStreak"`
	IdleRounds          int                       `json:"idleRounds"`
	ParticipationStatus store.ParticipationStatus `json:"participationStatus"`
}

type RoundView struct {
	ID          string       `json:"id"`
	RoundNumber int          `json:"roundNumber"`
	Prompts     []PromptView `json:"prompts"`
}

// PromptView hides Responses/Votes (sets them nil, Hidden true) for a
// votable prompt past the current one in an in-progress Voting round.
type PromptView struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Order     int            `json:"order"`
	Assignees []string       `json:"assignees"`
	Hidden    bool           `json:"hidden"`
	Responses []ResponseView `json:"responses,omitempty"`
	Votes     []VoteView     `json:"votes,omitempty"`
}

type ResponseView struct {
	ID           string               `json:"id"`
	PlayerID     string               `json:"playerId"`
	Text         string               `json:"text"`
	PointsEarned int                  `json:"pointsEarned"`
	FailReason   store.FailReason     `json:"failReason,omitempty"`
	Reactions    []ReactionView       `json:"reactions,omitempty"`
}

type ReactionView struct {
	PlayerID string `json:"playerId"`
	Emoji    string `json:"emoji"`
}

type VoteView struct {
	VoterID    string           `json:"voterId"`
	ResponseID string           `json:"responseId,omitempty"`
	FailReason store.FailReason `json:"failReason,omitempty"`
}

type createGameRequest struct {
	TotalRounds    int    `json:"totalRounds"`
	TimersDisabled bool   `json:"timersDisabled"`
	HostName       string `json:"hostName"`
}

type createGameResponse struct {
	RoomCode     string `json:"roomCode"`
	HostPlayerID string `json:"hostPlayerId"`
	RejoinToken  string `json:"rejoinToken"`
}

type joinGameRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // "HUMAN" (default), "AI", "SPECTATOR"
	ModelID string `json:"modelId"`
}

type joinGameResponse struct {
	PlayerID    string `json:"playerId"`
	RejoinToken string `json:"rejoinToken"`
}

type rejoinGameRequest struct {
	RejoinToken string `json:"rejoinToken"`
}

type rejoinGameResponse struct {
	PlayerID    string `json:"playerId"`
	RejoinToken string `json:"rejoinToken"`
}

type hostActionRequest struct {
	HostPlayerID string `json:"hostPlayerId"`
}

type claimedResponse struct {
	Claimed bool `json:"claimed"`
}

type respondRequest struct {
	PlayerID string `json:"playerId"`
	PromptID string `json:"promptId"`
	Text     string `json:"text"`
}

type voteRequest struct {
	PlayerID   string `json:"playerId"`
	PromptID   string `json:"promptId"`
	ResponseID string `json:"responseId"` // "" = abstain
}

type reactRequest struct {
	PlayerID   string `json:"playerId"`
	ResponseID string `json:"responseId"`
	Emoji      string `json:"emoji"`
}

type createdResponse struct {
	Created bool `json:"created"`
}

type leaderboardResponse struct {
	Entries []store.LeaderboardEntry `json:"entries"`
}

type cleanupResponse struct {
	Deleted int `json:"deleted"`
}
