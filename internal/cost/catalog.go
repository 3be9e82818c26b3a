// Package cost converts model token usage into monetary cost via the
// per-model rate table spec.md §6 calls out ("a model catalog: id,
// displayName, provider, per-million input/output cost"). It has no
// teacher precedent — the teacher hardcodes two providers with no pricing
// at all — so this is grounded directly on spec.md's catalog shape.
package cost

import "github.com/kiliankoe/partyquorum/internal/model"

// ModelInfo is one MODEL_CATALOG entry.
type ModelInfo struct {
	ID                   string
	DisplayName          string
	Provider             string
	InputCostPerMillion  float64 // currency units per 1,000,000 input tokens
	OutputCostPerMillion float64
}

// Catalog maps model id -> ModelInfo.
type Catalog map[string]ModelInfo

func (c Catalog) Lookup(modelID string) (ModelInfo, bool) {
	info, ok := c[modelID]
	return info, ok
}

// Micros converts usage into cost expressed in millionths of a currency
// unit (matching store.Game.CostMicros), so callers never deal in
// floating-point money.
func (c Catalog) Micros(modelID string, usage model.Usage) int64 {
	info, ok := c[modelID]
	if !ok {
		return 0
	}
	inputCost := float64(usage.InputTokens) / 1_000_000 * info.InputCostPerMillion
	outputCost := float64(usage.OutputTokens) / 1_000_000 * info.OutputCostPerMillion
	return int64((inputCost + outputCost) * 1_000_000)
}
