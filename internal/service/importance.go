package service

import (
	"math"
	"time"

	"github.com/convomesh/memoryd/internal/store"
)

// importanceHalfLifeSeconds mirrors rank.decayHalfLifeSeconds's one-week
// e-fold, so a message's base importance decays on the same clock its
// retrieval-time recency score does.
const importanceHalfLifeSeconds = 7 * 24 * 3600

// roleWeight ranks a message's intrinsic salience by who wrote it: a system
// message (instructions, summaries) outlasts ephemeral chatter more often
// than a user turn, which in turn tends to matter more than routine
// assistant acknowledgements.
func roleWeight(role store.Role) float64 {
	switch role {
	case store.RoleSystem:
		return 1.0
	case store.RoleUser:
		return 0.7
	case store.RoleAssistant:
		return 0.5
	default:
		return 0.5
	}
}

// scoreImportance computes a base importance in [0,1] from a message's age
// and role when the caller supplied no override, per spec.md §4.5 step 1.
// Weights are normalised to sum to 1.
func scoreImportance(createdAt, now time.Time, role store.Role) float64 {
	const wRecency, wRole = 0.5, 0.5

	age := now.Sub(createdAt).Seconds()
	if age < 0 {
		age = 0
	}
	recency := math.Exp(-age / importanceHalfLifeSeconds)

	score := wRecency*recency + wRole*roleWeight(role)
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
