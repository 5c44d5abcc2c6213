package rummy

import (
	"slices"
	"strings"
)

// MeldKind distinguishes sets from runs.
type MeldKind int

const (
	Set MeldKind = iota + 1
	Run
)

// String returns the protocol name of a MeldKind ("set" or "run").
func (k MeldKind) String() string {
	switch k {
	case Set:
		return "set"
	case Run:
		return "run"
	default:
		return "unknown"
	}
}

// ParseMeldKind resolves "set" or "run", case-insensitively.
func ParseMeldKind(name string) (MeldKind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "set":
		return Set, true
	case "run":
		return Run, true
	}
	return 0, false
}

// Meld is a group of cards that was valid when it was laid down.
type Meld struct {
	Kind  MeldKind
	Cards []Card
}

// Points is the sum of the card values in the meld.
func (m Meld) Points() int {
	return sumPoints(m.Cards)
}

// ValidMeld reports whether cards form a legal meld of the given kind.
//
// A set is three or more cards of one rank. A run is three or more cards of one
// suit whose ranks, once sorted, step by exactly one. Aces only sit below Two.
func ValidMeld(cards []Card, kind MeldKind) bool {
	if len(cards) < 3 {
		return false
	}
	switch kind {
	case Set:
		for _, c := range cards[1:] {
			if c.Rank != cards[0].Rank {
				return false
			}
		}
		return true
	case Run:
		ranks := make([]int, len(cards))
		for i, c := range cards {
			if c.Suit != cards[0].Suit {
				return false
			}
			ranks[i] = int(c.Rank)
		}
		slices.Sort(ranks)
		for i := 1; i < len(ranks); i++ {
			if ranks[i] != ranks[i-1]+1 {
				return false
			}
		}
		return true
	default:
		return false
	}
}
