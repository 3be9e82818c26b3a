// Package model is the generateJoke/aiVote contract spec.md §4.2 describes,
// built on top of a provider-agnostic chat interface. The interface itself
// is the teacher's internal/ai.Provider, unchanged in shape; Client wraps it
// with the trimming, sentinel, and deterministic-fallback-vote behavior
// spec.md requires, none of which the teacher's provider had to do (its
// client applied no FORFEIT_MARKER semantics and didn't report usage).
package model

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kiliankoe/partyquorum/internal/store"
)

// Usage mirrors store.Usage; kept distinct so this package doesn't force
// every caller to import store just to report token counts.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Provider is a single chat-style model backend. CompleteWithSystem returns
// the raw text together with the call's token counts (providers that can't
// report usage return a zero Usage, not an error).
type Provider interface {
	CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (text string, usage Usage, err error)
}

const systemPrompt = "You are a sharp, funny contestant in a party game. Write a single short, punchy joke or one-liner answering the prompt. Reply with only the joke, no preamble, no quotation marks."

// HistoryEntry is one past round's outcome for a given AI contestant,
// injected as prior context so later rounds can learn.
type HistoryEntry struct {
	Round           int
	PromptText      string
	OwnText         string
	Won             bool
	WinningTextIfLost string
}

// Client is the generateJoke/aiVote entry point the orchestrator calls. It
// holds no per-game state; everything it needs is passed in.
type Client struct {
	providers map[string]Provider // provider name -> Provider
}

func NewClient(providers map[string]Provider) *Client {
	return &Client{providers: providers}
}

// GenerateJokeResult is generateJoke's full output.
type GenerateJokeResult struct {
	Text       string
	Usage      Usage
	FailReason store.FailReason
}

// GenerateJoke calls the named provider/model with a fixed comedy-contestant
// system prompt plus promptText under a tagged wrapper, and history as prior
// context. Model-call failures are absorbed: they never return an error,
// they return a FORFEIT_MARKER result with a failReason instead.
func (c *Client) GenerateJoke(ctx context.Context, providerName, modelID, promptText string, history []HistoryEntry) GenerateJokeResult {
	p, ok := c.providers[providerName]
	if !ok {
		return GenerateJokeResult{Text: store.ForfeitMarker, FailReason: store.FailError}
	}

	wrapped := wrapPromptWithHistory(promptText, history)
	text, usage, err := p.CompleteWithSystem(ctx, modelID, systemPrompt, wrapped)
	if err != nil {
		return GenerateJokeResult{Text: store.ForfeitMarker, FailReason: store.FailError}
	}

	cleaned := trimQuotesAndSpace(text)
	if cleaned == "" {
		return GenerateJokeResult{Text: store.ForfeitMarker, Usage: usage, FailReason: store.FailEmpty}
	}
	return GenerateJokeResult{Text: cleaned, Usage: usage}
}

func wrapPromptWithHistory(promptText string, history []HistoryEntry) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Here is how your previous rounds went:\n")
		for _, h := range history {
			outcome := "you lost"
			if h.Won {
				outcome = "you won"
			}
			fmt.Fprintf(&b, "Round %d, prompt %q: you wrote %q (%s)", h.Round, h.PromptText, h.OwnText, outcome)
			if !h.Won && h.WinningTextIfLost != "" {
				fmt.Fprintf(&b, "; the winning response was %q", h.WinningTextIfLost)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Prompt: %s", promptText)
	return b.String()
}

func trimQuotesAndSpace(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
			s = strings.TrimSpace(s)
			continue
		}
		break
	}
	return s
}

// AIVoteResult is aiVote's full output.
type AIVoteResult struct {
	ChosenResponseID string
	Usage            Usage
	FailReason       store.FailReason
}

// Candidate is one votable response, already excluding the voter's own.
type Candidate struct {
	ResponseID string
	Text       string
}

var errNoLabel = errors.New("model: no label returned")

// AIVote asks the model to pick the funniest labelled candidate (A, B, …,
// in the order given). gameID/roundNumber/voterID seed the deterministic
// fallback used whenever the model call fails or returns an unparseable
// label, so repeated runs against the same inputs pick the same response.
func (c *Client) AIVote(ctx context.Context, providerName, modelID, gameID string, roundNumber int, voterID, promptText string, candidates []Candidate) AIVoteResult {
	if len(candidates) == 0 {
		return AIVoteResult{}
	}
	if len(candidates) == 1 {
		return AIVoteResult{ChosenResponseID: candidates[0].ResponseID}
	}

	p, ok := c.providers[providerName]
	if !ok {
		return c.fallbackVote(gameID, roundNumber, voterID, candidates, store.FailError)
	}

	prompt := buildVotePrompt(promptText, candidates)
	text, usage, err := p.CompleteWithSystem(ctx, modelID, votingSystemPrompt, prompt)
	if err != nil {
		return c.fallbackVote(gameID, roundNumber, voterID, candidates, store.FailError)
	}

	chosen, err := parseLabel(text, candidates)
	if err != nil {
		res := c.fallbackVote(gameID, roundNumber, voterID, candidates, store.FailInvalidVote)
		res.Usage = usage
		return res
	}
	return AIVoteResult{ChosenResponseID: chosen, Usage: usage}
}

const votingSystemPrompt = "You are judging a party game. Reply with only the single letter label of the funniest response, nothing else."

func buildVotePrompt(promptText string, candidates []Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prompt: %s\n\nCandidates:\n", promptText)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%s) %s\n", labelFor(i), c.Text)
	}
	b.WriteString("\nWhich label is the funniest?")
	return b.String()
}

func labelFor(i int) string {
	return string(rune('A' + i))
}

func parseLabel(text string, candidates []Candidate) (string, error) {
	t := strings.TrimSpace(text)
	t = strings.Trim(t, "\"'.()[] ")
	if t == "" {
		return "", errNoLabel
	}
	letter := strings.ToUpper(t)[0]
	idx := int(letter - 'A')
	if idx < 0 || idx >= len(candidates) {
		return "", errNoLabel
	}
	return candidates[idx].ResponseID, nil
}

// fallbackVote implements spec.md §4.2's deterministic fallback: the chosen
// index is hash(gameId, roundNumber, voterId) mod N, stable across reruns
// with the same inputs because it never depends on wall-clock time or
// process randomness.
func (c *Client) fallbackVote(gameID string, roundNumber int, voterID string, candidates []Candidate, reason store.FailReason) AIVoteResult {
	idx := fallbackIndex(gameID, roundNumber, voterID, len(candidates))
	return AIVoteResult{ChosenResponseID: candidates[idx].ResponseID, FailReason: reason}
}

func fallbackIndex(gameID string, roundNumber int, voterID string, n int) int {
	key := gameID + "|" + strconv.Itoa(roundNumber) + "|" + voterID
	sum := sha256.Sum256([]byte(key))
	h := binary.BigEndian.Uint64(sum[:8])
	return int(h % uint64(n))
}
