package cost

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/partyquorum/internal/model"
)

func TestMicrosComputesCostFromRates(t *testing.T) {
	catalog := Catalog{
		"gpt-x": {ID: "gpt-x", Provider: "openai", InputCostPerMillion: 2.0, OutputCostPerMillion: 8.0},
	}
	micros := catalog.Micros("gpt-x", model.Usage{InputTokens: 500_000, OutputTokens: 250_000})
	require.EqualValues(t, 3_000_000, micros) // 0.5*2 + 0.25*8 = 3.0 currency units
}

func TestMicrosUnknownModelReturnsZero(t *testing.T) {
	catalog := Catalog{}
	require.EqualValues(t, 0, catalog.Micros("missing", model.Usage{InputTokens: 100}))
}
