package phase

import "time"

// Config pins the timing and population parameters spec.md §4.5/§4.7 leave
// as named constants (MIN_PLAYERS, the inactivity/host-stale thresholds,
// phase durations) without specified values — design parameters, not a
// contract, the same standing spec.md §9 gives the vote-weighting formula.
type Config struct {
	MinPlayers int

	WritingDuration time.Duration
	VotingDuration  time.Duration

	InactivityThreshold time.Duration
	HostStaleThreshold  time.Duration
	HeartbeatWindow     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinPlayers:          2,
		WritingDuration:     90 * time.Second,
		VotingDuration:      20 * time.Second,
		InactivityThreshold: 45 * time.Second,
		HostStaleThreshold:  30 * time.Second,
		HeartbeatWindow:     5 * time.Second,
	}
}
