package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/partyquorum/internal/phase"
	"github.com/kiliankoe/partyquorum/internal/quorum"
	"github.com/kiliankoe/partyquorum/internal/store"
	"github.com/kiliankoe/partyquorum/internal/store/memstore"
	"github.com/kiliankoe/partyquorum/internal/sweeper"
)

const testHostSecret = "shh"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	st := memstore.New()
	q := quorum.New(st)
	cfg := phase.DefaultConfig()
	m := phase.New(st, q, cfg, nil)
	sw := sweeper.New(st, q, m, cfg)

	srv := &Server{Store: st, Quorum: q, Machine: m, Sweeper: sw, HostSecret: testHostSecret, CronSecret: "cron"}
	ts := httptest.NewServer(NewRouter(srv))
	t.Cleanup(ts.Close)
	return srv, ts
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestCreateJoinStartRespondFlowReachesVoting(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/games/create", createGameRequest{TotalRounds: 1, HostName: "Host"},
		map[string]string{"X-Host-Secret": testHostSecret})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created createGameResponse
	decode(t, resp, &created)
	require.Len(t, created.RoomCode, 4)

	resp = doJSON(t, http.MethodPost, ts.URL+"/games/"+created.RoomCode+"/join", joinGameRequest{Name: "P2"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var joined joinGameResponse
	decode(t, resp, &joined)

	resp = doJSON(t, http.MethodPost, ts.URL+"/games/"+created.RoomCode+"/start", hostActionRequest{HostPlayerID: created.HostPlayerID}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var claimed claimedResponse
	decode(t, resp, &claimed)
	require.True(t, claimed.Claimed)

	resp = doJSON(t, http.MethodGet, ts.URL+"/games/"+created.RoomCode, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap GameSnapshot
	decode(t, resp, &snap)
	require.Equal(t, store.StatusWriting, snap.Status)
	require.Len(t, snap.Rounds, 1)
	require.Len(t, snap.Rounds[0].Prompts, 2)

	for _, p := range snap.Rounds[0].Prompts {
		for _, author := range p.Assignees {
			resp = doJSON(t, http.MethodPost, ts.URL+"/games/"+created.RoomCode+"/respond",
				respondRequest{PlayerID: author, PromptID: p.ID, Text: "a joke by " + author}, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/games/"+created.RoomCode, nil, nil)
	decode(t, resp, &snap)
	require.Equal(t, store.StatusVoting, snap.Status)
}

func TestCreateGameRejectsBadSecret(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doJSON(t, http.MethodPost, ts.URL+"/games/create", createGameRequest{TotalRounds: 1, HostName: "Host"},
		map[string]string{"X-Host-Secret": "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPollingReturns304WhenVersionUnchanged(t *testing.T) {
	_, ts := newTestServer(t)
	resp := doJSON(t, http.MethodPost, ts.URL+"/games/create", createGameRequest{TotalRounds: 1, HostName: "Host"},
		map[string]string{"X-Host-Secret": testHostSecret})
	var created createGameResponse
	decode(t, resp, &created)

	// A freshly created game is at version 1, and a poll of a quiet lobby
	// does not bump it.
	resp = doJSON(t, http.MethodGet, ts.URL+"/games/"+created.RoomCode+"?v=1", nil, nil)
	require.Equal(t, http.StatusNotModified, resp.StatusCode)
}
