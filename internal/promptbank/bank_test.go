package promptbank

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDrawReturnsDistinctTextsExcludingGiven(t *testing.T) {
	used := prompts[:5]
	drawn := Draw(5, used)
	require.Len(t, drawn, 5)

	seen := map[string]bool{}
	for _, p := range drawn {
		require.False(t, seen[p], "duplicate prompt drawn: %s", p)
		seen[p] = true
		for _, u := range used {
			require.NotEqual(t, u, p)
		}
	}
}

func TestDrawFillsWithFallbackWhenBankExhausted(t *testing.T) {
	drawn := Draw(len(prompts)+3, nil)
	require.Len(t, drawn, len(prompts)+3)
}

func TestDrawZeroCount(t *testing.T) {
	require.Nil(t, Draw(0, nil))
}
