// Package promptbank is the static collection of comedy prompts contestants
// write jokes against (spec.md §4.1). Draw is the only operation: it hands
// out count distinct, not-yet-used prompts, uniformly at random, falling
// back to generated filler text once the bank is exhausted so a caller never
// gets fewer than it asked for.
//
// Grounded on the teacher's math/rand usage in randomCode()
// (kiliankoe-gptdash/backend/internal/game/manager.go) — the only
// randomness idiom the pack shows — generalized from picking letters to
// picking prompts.
package promptbank

import (
	"fmt"
	"math/rand"
)

var prompts = []string{
	"The worst possible thing to say during a job interview",
	"A new Olympic event nobody asked for",
	"What your pet is actually thinking right now",
	"The real reason dinosaurs went extinct",
	"A terrible name for a law firm",
	"The least convincing excuse for being late",
	"What aliens would find most confusing about humans",
	"A product that definitely shouldn't exist",
	"The worst superpower to have",
	"An unhelpful fortune cookie message",
	"The secret ingredient in grandma's cooking",
	"A bad slogan for a hospital",
	"What your houseplants gossip about",
	"The most awkward thing to say at a funeral",
	"A terrible theme for a wedding",
	"The worst advice a fortune teller ever gave",
	"What robots will complain about once they unionize",
	"A red flag on a first date",
	"The actual plot of a nonsense dream",
	"What your phone's autocorrect is plotting",
	"A bad tagline for a airline",
	"The worst thing to find in your sandwich",
	"What cats think of their owners",
	"A ridiculous Olympic sport for couch potatoes",
	"The least reassuring thing a pilot could announce",
	"A terrible name for a perfume",
	"What ghosts actually complain about",
	"The worst thing to hear from your dentist",
	"A bad excuse for missing a deadline",
	"What your car's check-engine light really means",
}

// Draw returns count distinct prompt texts, none equal to any string in
// exclude, chosen uniformly at random. If the bank runs short after
// exclusion, the remainder is filled with numbered generic filler prompts so
// the caller always receives exactly count items.
func Draw(count int, exclude []string) []string {
	if count <= 0 {
		return nil
	}
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[e] = true
	}

	var pool []string
	for _, p := range prompts {
		if !excluded[p] {
			pool = append(pool, p)
		}
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	out := make([]string, 0, count)
	if count <= len(pool) {
		return append(out, pool[:count]...)
	}
	out = append(out, pool...)
	for i := len(out); i < count; i++ {
		out = append(out, fmt.Sprintf("Write the funniest thing you can about topic #%d", i+1))
	}
	return out
}
