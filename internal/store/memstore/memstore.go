// Package memstore is the default, in-process Store implementation. It
// generalizes the teacher's SessionCtx/RoomManager design
// (kiliankoe-gptdash/backend/internal/game/manager.go): one mutex-guarded
// struct per game holds that game's entire subtree, and store-level
// uniqueness is enforced with plain Go maps keyed on the constrained tuple.
// It is sufficient to satisfy every correctness property in spec.md §8
// within a single process; cross-process correctness is what
// internal/store/pgstore is for.
package memstore

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiliankoe/partyquorum/internal/store"
)

const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O/1/I

type gameState struct {
	mu sync.Mutex

	game store.Game

	players    map[string]*store.Player // playerID -> player
	tokenIndex map[string]string        // rejoinToken -> playerID

	rounds        []*store.Round
	roundByNumber map[int]*store.Round

	prompts        map[string]*store.Prompt   // promptID -> prompt
	promptsByRound map[string][]*store.Prompt // roundID -> ordered prompts
	assignments    map[string][]string        // promptID -> playerIDs

	responses     map[string]*store.Response            // responseID -> response
	responseIndex map[string]map[string]*store.Response // promptID -> playerID -> response

	votes     map[string]*store.Vote
	voteIndex map[string]map[string]*store.Vote // promptID -> voterID -> vote

	reactions map[string]*store.Reaction // "responseID|playerID|emoji" -> reaction

	modelUsage map[string]*store.GameModelUsage // modelID -> usage
}

// Store is the in-process reference Store. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	byID       map[string]*gameState
	byCode     map[string]*gameState
	playerIdx  map[string]*gameState // playerID -> gameState
	tokenIdx   map[string]*gameState // rejoinToken -> gameState
}

func New() *Store {
	return &Store{
		byID:      make(map[string]*gameState),
		byCode:    make(map[string]*gameState),
		playerIdx: make(map[string]*gameState),
		tokenIdx:  make(map[string]*gameState),
	}
}

func randomRoomCode() string {
	b := make([]byte, 4)
	for i := range b {
		b[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(b)
}

func (s *Store) CreateGame(ctx context.Context, params store.GameCreateParams) (*store.Game, *store.Player, error) {
	s.mu.Lock()
	code := randomRoomCode()
	for s.byCode[code] != nil {
		code = randomRoomCode()
	}
	now := time.Now().UTC()
	host := &store.Player{
		ID:                  uuid.NewString(),
		Name:                params.HostName,
		Type:                store.PlayerHuman,
		HumorRating:         1.0,
		ParticipationStatus: store.ParticipationActive,
		LastSeen:            now,
		RejoinToken:         uuid.NewString(),
	}
	gs := &gameState{
		game: store.Game{
			ID:             uuid.NewString(),
			RoomCode:       code,
			Status:         store.StatusLobby,
			TotalRounds:    params.TotalRounds,
			HostPlayerID:   host.ID,
			TimersDisabled: params.TimersDisabled,
			Version:        1,
			CreatedAt:      now,
		},
		players:       map[string]*store.Player{host.ID: host},
		tokenIndex:    map[string]string{host.RejoinToken: host.ID},
		roundByNumber: map[int]*store.Round{},
		prompts:       map[string]*store.Prompt{},
		promptsByRound: map[string][]*store.Prompt{},
		assignments:   map[string][]string{},
		responses:     map[string]*store.Response{},
		responseIndex: map[string]map[string]*store.Response{},
		votes:         map[string]*store.Vote{},
		voteIndex:     map[string]map[string]*store.Vote{},
		reactions:     map[string]*store.Reaction{},
		modelUsage:    map[string]*store.GameModelUsage{},
	}
	host.GameID = gs.game.ID
	s.byID[gs.game.ID] = gs
	s.byCode[code] = gs
	s.playerIdx[host.ID] = gs
	s.tokenIdx[host.RejoinToken] = gs
	s.mu.Unlock()

	g := gs.game
	p := *host
	return &g, &p, nil
}

func (s *Store) lookupByID(id string) (*gameState, error) {
	s.mu.RLock()
	gs := s.byID[id]
	s.mu.RUnlock()
	if gs == nil {
		return nil, store.ErrNotFound
	}
	return gs, nil
}

func (s *Store) GetGameByCode(ctx context.Context, code string) (*store.Game, error) {
	s.mu.RLock()
	gs := s.byCode[code]
	s.mu.RUnlock()
	if gs == nil {
		return nil, store.ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	g := gs.game
	return &g, nil
}

func (s *Store) GetGameByID(ctx context.Context, id string) (*store.Game, error) {
	gs, err := s.lookupByID(id)
	if err != nil {
		return nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	g := gs.game
	return &g, nil
}

func (s *Store) TryTransition(ctx context.Context, gameID string, check store.CASCheck, apply func(g *store.Game) error) (bool, *store.Game, error) {
	gs, err := s.lookupByID(gameID)
	if err != nil {
		return false, nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.game.Status != check.Status {
		g := gs.game
		return false, &g, nil
	}
	if check.VotingRevealing != nil && gs.game.VotingRevealing != *check.VotingRevealing {
		g := gs.game
		return false, &g, nil
	}
	if err := apply(&gs.game); err != nil {
		return false, nil, err
	}
	gs.game.Version++
	g := gs.game
	return true, &g, nil
}

func (s *Store) TouchVersion(ctx context.Context, gameID string) error {
	gs, err := s.lookupByID(gameID)
	if err != nil {
		return err
	}
	gs.mu.Lock()
	gs.game.Version++
	gs.mu.Unlock()
	return nil
}

func (s *Store) DeleteStaleGames(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, gs := range s.byID {
		gs.mu.Lock()
		stale := gs.game.CreatedAt.Before(olderThan)
		code := gs.game.RoomCode
		playerIDs := make([]string, 0, len(gs.players))
		tokens := make([]string, 0, len(gs.tokenIndex))
		for pid := range gs.players {
			playerIDs = append(playerIDs, pid)
		}
		for tok := range gs.tokenIndex {
			tokens = append(tokens, tok)
		}
		gs.mu.Unlock()
		if !stale {
			continue
		}
		delete(s.byID, id)
		delete(s.byCode, code)
		for _, pid := range playerIDs {
			delete(s.playerIdx, pid)
		}
		for _, tok := range tokens {
			delete(s.tokenIdx, tok)
		}
		n++
	}
	return n, nil
}

func (s *Store) CreatePlayer(ctx context.Context, gameID, name string, typ store.PlayerType, modelID string) (*store.Player, error) {
	gs, err := s.lookupByID(gameID)
	if err != nil {
		return nil, err
	}
	p := &store.Player{
		ID:                  uuid.NewString(),
		GameID:              gameID,
		Name:                name,
		Type:                typ,
		ModelID:             modelID,
		HumorRating:         1.0,
		ParticipationStatus: store.ParticipationActive,
		LastSeen:            time.Now().UTC(),
		RejoinToken:         uuid.NewString(),
	}
	gs.mu.Lock()
	gs.players[p.ID] = p
	gs.tokenIndex[p.RejoinToken] = p.ID
	gs.mu.Unlock()

	s.mu.Lock()
	s.playerIdx[p.ID] = gs
	s.tokenIdx[p.RejoinToken] = gs
	s.mu.Unlock()

	out := *p
	return &out, nil
}

func (s *Store) GetPlayerByID(ctx context.Context, id string) (*store.Player, error) {
	s.mu.RLock()
	gs := s.playerIdx[id]
	s.mu.RUnlock()
	if gs == nil {
		return nil, store.ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	p := gs.players[id]
	if p == nil {
		return nil, store.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *Store) GetPlayerByRejoinToken(ctx context.Context, token string) (*store.Player, error) {
	s.mu.RLock()
	gs := s.tokenIdx[token]
	s.mu.RUnlock()
	if gs == nil {
		return nil, store.ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	pid, ok := gs.tokenIndex[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	p := gs.players[pid]
	if p == nil {
		return nil, store.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *Store) RotateRejoinToken(ctx context.Context, oldToken string) (*store.Player, string, error) {
	s.mu.RLock()
	gs := s.tokenIdx[oldToken]
	s.mu.RUnlock()
	if gs == nil {
		return nil, "", store.ErrNotFound
	}
	gs.mu.Lock()
	pid, ok := gs.tokenIndex[oldToken]
	if !ok {
		gs.mu.Unlock()
		return nil, "", store.ErrNotFound
	}
	p := gs.players[pid]
	newToken := uuid.NewString()
	delete(gs.tokenIndex, oldToken)
	gs.tokenIndex[newToken] = pid
	p.RejoinToken = newToken
	out := *p
	gs.mu.Unlock()

	s.mu.Lock()
	delete(s.tokenIdx, oldToken)
	s.tokenIdx[newToken] = gs
	s.mu.Unlock()

	return &out, newToken, nil
}

func (s *Store) ListPlayers(ctx context.Context, gameID string) ([]*store.Player, error) {
	gs, err := s.lookupByID(gameID)
	if err != nil {
		return nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	out := make([]*store.Player, 0, len(gs.players))
	for _, p := range gs.players {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) TouchPlayerLastSeen(ctx context.Context, playerID string, at time.Time) error {
	s.mu.RLock()
	gs := s.playerIdx[playerID]
	s.mu.RUnlock()
	if gs == nil {
		return store.ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	p := gs.players[playerID]
	if p == nil {
		return store.ErrNotFound
	}
	p.LastSeen = at
	return nil
}

func (s *Store) SetPlayerParticipation(ctx context.Context, playerID string, status store.ParticipationStatus) error {
	s.mu.RLock()
	gs := s.playerIdx[playerID]
	s.mu.RUnlock()
	if gs == nil {
		return store.ErrNotFound
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	p := gs.players[playerID]
	if p == nil {
		return store.ErrNotFound
	}
	p.ParticipationStatus = status
	return nil
}

func (s *Store) PromoteHost(ctx context.Context, gameID, newHostPlayerID string) error {
	gs, err := s.lookupByID(gameID)
	if err != nil {
		return err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.game.HostPlayerID = newHostPlayerID
	gs.game.Version++
	return nil
}

func (s *Store) ApplyRoundScoreDeltas(ctx context.Context, gameID string, deltas []store.PlayerScoreDelta) error {
	gs, err := s.lookupByID(gameID)
	if err != nil {
		return err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	for _, d := range deltas {
		p := gs.players[d.PlayerID]
		if p == nil {
			continue
		}
		p.Score += d.ScoreDelta
		p.HumorRating = d.NewHumorRating
		p.WinStreak = d.NewWinStreak
	}
	gs.game.Version++
	return nil
}

func (s *Store) CreateRound(ctx context.Context, gameID string, roundNumber int) (*store.Round, bool, error) {
	gs, err := s.lookupByID(gameID)
	if err != nil {
		return nil, false, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if existing, ok := gs.roundByNumber[roundNumber]; ok {
		r := *existing
		return &r, false, nil
	}
	r := &store.Round{ID: uuid.NewString(), GameID: gameID, RoundNumber: roundNumber}
	gs.rounds = append(gs.rounds, r)
	gs.roundByNumber[roundNumber] = r
	out := *r
	return &out, true, nil
}

func (s *Store) GetLatestRound(ctx context.Context, gameID string) (*store.Round, error) {
	gs, err := s.lookupByID(gameID)
	if err != nil {
		return nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if len(gs.rounds) == 0 {
		return nil, store.ErrNotFound
	}
	r := *gs.rounds[len(gs.rounds)-1]
	return &r, nil
}

func (s *Store) ListRounds(ctx context.Context, gameID string) ([]*store.Round, error) {
	gs, err := s.lookupByID(gameID)
	if err != nil {
		return nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	out := make([]*store.Round, 0, len(gs.rounds))
	for _, r := range gs.rounds {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) gameStateForRound(roundID string) (*gameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, gs := range s.byID {
		gs.mu.Lock()
		_, ok := gs.promptsByRound[roundID]
		isRound := ok
		if !ok {
			for _, r := range gs.rounds {
				if r.ID == roundID {
					isRound = true
					break
				}
			}
		}
		gs.mu.Unlock()
		if isRound {
			return gs, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreatePromptsWithAssignments(ctx context.Context, roundID string, drafts []store.PromptDraft) ([]*store.Prompt, error) {
	gs, err := s.gameStateForRound(roundID)
	if err != nil {
		return nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	out := make([]*store.Prompt, 0, len(drafts))
	for i, d := range drafts {
		p := &store.Prompt{ID: uuid.NewString(), RoundID: roundID, GameID: gs.game.ID, Text: d.Text, Order: i}
		gs.prompts[p.ID] = p
		gs.promptsByRound[roundID] = append(gs.promptsByRound[roundID], p)
		gs.assignments[p.ID] = append([]string{}, d.Assignees...)
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ListPromptsForRound(ctx context.Context, roundID string) ([]*store.Prompt, error) {
	gs, err := s.gameStateForRound(roundID)
	if err != nil {
		return nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	ps := gs.promptsByRound[roundID]
	out := make([]*store.Prompt, 0, len(ps))
	for _, p := range ps {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) GetPromptByID(ctx context.Context, id string) (*store.Prompt, error) {
	gs, err := s.gameStateForPrompt(id)
	if err != nil {
		return nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	p, ok := gs.prompts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *Store) ListPromptTextsForGame(ctx context.Context, gameID string) ([]string, error) {
	gs, err := s.lookupByID(gameID)
	if err != nil {
		return nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	out := make([]string, 0, len(gs.prompts))
	for _, p := range gs.prompts {
		out = append(out, p.Text)
	}
	return out, nil
}

func (s *Store) gameStateForPrompt(promptID string) (*gameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, gs := range s.byID {
		gs.mu.Lock()
		_, ok := gs.prompts[promptID]
		gs.mu.Unlock()
		if ok {
			return gs, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListAssignmentsForPrompt(ctx context.Context, promptID string) ([]string, error) {
	gs, err := s.gameStateForPrompt(promptID)
	if err != nil {
		return nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	out := append([]string{}, gs.assignments[promptID]...)
	return out, nil
}

func (s *Store) CreateResponse(ctx context.Context, promptID, playerID, text string, failReason store.FailReason) (*store.Response, bool, error) {
	gs, err := s.gameStateForPrompt(promptID)
	if err != nil {
		return nil, false, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if byPlayer, ok := gs.responseIndex[promptID]; ok {
		if existing, ok := byPlayer[playerID]; ok {
			r := *existing
			return &r, false, nil
		}
	}
	r := &store.Response{ID: uuid.NewString(), PromptID: promptID, PlayerID: playerID, Text: text, FailReason: failReason, CreatedAt: time.Now().UTC()}
	gs.responses[r.ID] = r
	if gs.responseIndex[promptID] == nil {
		gs.responseIndex[promptID] = map[string]*store.Response{}
	}
	gs.responseIndex[promptID][playerID] = r
	out := *r
	return &out, true, nil
}

func (s *Store) ListResponsesForPrompt(ctx context.Context, promptID string) ([]*store.Response, error) {
	gs, err := s.gameStateForPrompt(promptID)
	if err != nil {
		return nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	byPlayer := gs.responseIndex[promptID]
	out := make([]*store.Response, 0, len(byPlayer))
	for _, r := range byPlayer {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListResponsesForRound(ctx context.Context, roundID string) ([]*store.Response, error) {
	gs, err := s.gameStateForRound(roundID)
	if err != nil {
		return nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	var out []*store.Response
	for _, p := range gs.promptsByRound[roundID] {
		for _, r := range gs.responseIndex[p.ID] {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) GetResponseByID(ctx context.Context, id string) (*store.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, gs := range s.byID {
		gs.mu.Lock()
		r, ok := gs.responses[id]
		if ok {
			out := *r
			gs.mu.Unlock()
			return &out, nil
		}
		gs.mu.Unlock()
	}
	return nil, store.ErrNotFound
}

func (s *Store) SetResponsePoints(ctx context.Context, responseID string, points int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, gs := range s.byID {
		gs.mu.Lock()
		if r, ok := gs.responses[responseID]; ok {
			r.PointsEarned = points
			gs.mu.Unlock()
			return nil
		}
		gs.mu.Unlock()
	}
	return store.ErrNotFound
}

func (s *Store) CreateVote(ctx context.Context, promptID, voterID, responseID string, failReason store.FailReason) (*store.Vote, bool, error) {
	gs, err := s.gameStateForPrompt(promptID)
	if err != nil {
		return nil, false, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if byVoter, ok := gs.voteIndex[promptID]; ok {
		if existing, ok := byVoter[voterID]; ok {
			v := *existing
			return &v, false, nil
		}
	}
	v := &store.Vote{ID: uuid.NewString(), PromptID: promptID, VoterID: voterID, ResponseID: responseID, FailReason: failReason, CreatedAt: time.Now().UTC()}
	gs.votes[v.ID] = v
	if gs.voteIndex[promptID] == nil {
		gs.voteIndex[promptID] = map[string]*store.Vote{}
	}
	gs.voteIndex[promptID][voterID] = v
	out := *v
	return &out, true, nil
}

func (s *Store) ListVotesForPrompt(ctx context.Context, promptID string) ([]*store.Vote, error) {
	gs, err := s.gameStateForPrompt(promptID)
	if err != nil {
		return nil, err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	byVoter := gs.voteIndex[promptID]
	out := make([]*store.Vote, 0, len(byVoter))
	for _, v := range byVoter {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ToggleReaction(ctx context.Context, responseID, playerID, emoji string) (bool, error) {
	s.mu.RLock()
	var gs *gameState
	for _, g := range s.byID {
		g.mu.Lock()
		if _, ok := g.responses[responseID]; ok {
			gs = g
		}
		g.mu.Unlock()
		if gs != nil {
			break
		}
	}
	s.mu.RUnlock()
	if gs == nil {
		return false, store.ErrNotFound
	}
	key := responseID + "|" + playerID + "|" + emoji
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if _, ok := gs.reactions[key]; ok {
		delete(gs.reactions, key)
		return false, nil
	}
	gs.reactions[key] = &store.Reaction{ID: uuid.NewString(), ResponseID: responseID, PlayerID: playerID, Emoji: emoji}
	return true, nil
}

func (s *Store) ListReactionsForResponse(ctx context.Context, responseID string) ([]*store.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.Reaction
	for _, gs := range s.byID {
		gs.mu.Lock()
		for _, r := range gs.reactions {
			if r.ResponseID == responseID {
				cp := *r
				out = append(out, &cp)
			}
		}
		gs.mu.Unlock()
	}
	return out, nil
}

func (s *Store) AddModelUsage(ctx context.Context, gameID, modelID string, usage store.Usage, costMicros int64) error {
	gs, err := s.lookupByID(gameID)
	if err != nil {
		return err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	u, ok := gs.modelUsage[modelID]
	if !ok {
		u = &store.GameModelUsage{GameID: gameID, ModelID: modelID}
		gs.modelUsage[modelID] = u
	}
	u.InputTokens += usage.InputTokens
	u.OutputTokens += usage.OutputTokens
	u.CostMicros += costMicros
	gs.game.InputTokens += usage.InputTokens
	gs.game.OutputTokens += usage.OutputTokens
	gs.game.CostMicros += costMicros
	gs.game.Version++
	return nil
}

func (s *Store) AggregateLeaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := map[string]*store.LeaderboardEntry{}
	for _, gs := range s.byID {
		gs.mu.Lock()
		if gs.game.Status != store.StatusFinalResults {
			gs.mu.Unlock()
			continue
		}
		for _, p := range gs.players {
			if p.Type != store.PlayerHuman {
				continue
			}
			e, ok := totals[p.Name]
			if !ok {
				e = &store.LeaderboardEntry{PlayerName: p.Name}
				totals[p.Name] = e
			}
			e.TotalScore += p.Score
			e.GamesPlayed++
		}
		gs.mu.Unlock()
	}
	out := make([]store.LeaderboardEntry, 0, len(totals))
	for _, e := range totals {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalScore > out[j].TotalScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
