package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/partyquorum/internal/store"
)

func TestRandomRoomCodeShapeAndAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := randomRoomCode()
		require.Len(t, code, 4)
		for _, r := range code {
			require.Contains(t, roomCodeAlphabet, string(r))
		}
	}
}

// TestStoreAgainstLiveDatabase exercises the full Store contract against a
// real Postgres instance. It's skipped unless PGSTORE_TEST_DATABASE_URL is
// set, since no corpus example wires a test database into CI; a developer
// running these locally points it at a disposable database.
func TestStoreAgainstLiveDatabase(t *testing.T) {
	dsn := os.Getenv("PGSTORE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PGSTORE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, Migrate(dsn))
	st, err := New(ctx, dsn)
	require.NoError(t, err)
	defer st.Close()

	game, host, err := st.CreateGame(ctx, store.GameCreateParams{TotalRounds: 2, HostName: "Host"})
	require.NoError(t, err)
	require.Len(t, game.RoomCode, 4)
	require.Equal(t, host.ID, game.HostPlayerID)

	fetched, err := st.GetGameByCode(ctx, game.RoomCode)
	require.NoError(t, err)
	require.Equal(t, game.ID, fetched.ID)

	claimed, updated, err := st.TryTransition(ctx, game.ID, store.CASCheck{Status: store.StatusLobby}, func(g *store.Game) error {
		g.Status = store.StatusWriting
		return nil
	})
	require.NoError(t, err)
	require.True(t, claimed)
	require.Equal(t, store.StatusWriting, updated.Status)

	claimed, _, err = st.TryTransition(ctx, game.ID, store.CASCheck{Status: store.StatusLobby}, func(g *store.Game) error {
		g.Status = store.StatusVoting
		return nil
	})
	require.NoError(t, err)
	require.False(t, claimed, "stale CAS check must not claim")
}
