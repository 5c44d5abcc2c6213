package ai

import (
	"slices"

	"github.com/RMRattray/national-recording-rummy/rummy"
)

// FindMelds picks disjoint melds out of hand. It tries sets before runs and
// runs before sets, and keeps whichever lays down more points.
func FindMelds(hand []rummy.Card) []rummy.Meld {
	setsFirst := collect(hand, findSets, findRuns)
	runsFirst := collect(hand, findRuns, findSets)
	if meldPoints(runsFirst) > meldPoints(setsFirst) {
		return runsFirst
	}
	return setsFirst
}

type finder func(cards []rummy.Card) []rummy.Meld

func collect(hand []rummy.Card, first, second finder) []rummy.Meld {
	melds := first(hand)
	rest := without(hand, melds)
	return append(melds, second(rest)...)
}

// findSets groups three or four cards of one rank.
func findSets(cards []rummy.Card) []rummy.Meld {
	byRank := make(map[rummy.Rank][]rummy.Card)
	for _, c := range cards {
		byRank[c.Rank] = append(byRank[c.Rank], c)
	}
	var melds []rummy.Meld
	for r := rummy.Ace; r <= rummy.King; r++ {
		group := byRank[r]
		if len(group) >= 3 && rummy.ValidMeld(group, rummy.Set) {
			melds = append(melds, rummy.Meld{Kind: rummy.Set, Cards: group})
		}
	}
	return melds
}

// findRuns takes every maximal same-suit sequence of three or more.
func findRuns(cards []rummy.Card) []rummy.Meld {
	var melds []rummy.Meld
	for _, s := range rummy.Suits {
		var suited []rummy.Card
		for _, c := range cards {
			if c.Suit == s {
				suited = append(suited, c)
			}
		}
		slices.SortFunc(suited, func(a, b rummy.Card) int { return int(a.Rank) - int(b.Rank) })

		start := 0
		for i := 1; i <= len(suited); i++ {
			if i < len(suited) && suited[i].Rank == suited[i-1].Rank+1 {
				continue
			}
			if run := suited[start:i]; len(run) >= 3 && rummy.ValidMeld(run, rummy.Run) {
				melds = append(melds, rummy.Meld{Kind: rummy.Run, Cards: slices.Clone(run)})
			}
			start = i
		}
	}
	return melds
}

func without(hand []rummy.Card, melds []rummy.Meld) []rummy.Card {
	used := make(map[rummy.Card]bool)
	for _, m := range melds {
		for _, c := range m.Cards {
			used[c] = true
		}
	}
	var rest []rummy.Card
	for _, c := range hand {
		if !used[c] {
			rest = append(rest, c)
		}
	}
	return rest
}

func meldPoints(melds []rummy.Meld) int {
	total := 0
	for _, m := range melds {
		total += m.Points()
	}
	return total
}

// Completes reports whether adding c to hand lets more points be melded.
func Completes(hand []rummy.Card, c rummy.Card) bool {
	with := append(slices.Clone(hand), c)
	return meldPoints(FindMelds(with)) > meldPoints(FindMelds(hand))
}

// ChooseDiscard picks the card least likely to join a future meld: the one
// with the fewest neighbours (same rank, or same suit within two ranks). Ties
// shed the most points first. Cards in keep are not considered unless nothing
// else is left.
func ChooseDiscard(hand []rummy.Card, keep ...rummy.Card) (rummy.Card, bool) {
	candidates := make([]rummy.Card, 0, len(hand))
	for _, c := range hand {
		if !slices.Contains(keep, c) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		candidates = hand
	}
	if len(candidates) == 0 {
		return rummy.Card{}, false
	}
	best := candidates[0]
	bestLinks := links(hand, best)
	for _, c := range candidates[1:] {
		n := links(hand, c)
		if n < bestLinks || (n == bestLinks && heavier(c, best)) {
			best, bestLinks = c, n
		}
	}
	return best, true
}

func links(hand []rummy.Card, c rummy.Card) int {
	n := 0
	for _, o := range hand {
		if o == c {
			continue
		}
		d := int(o.Rank) - int(c.Rank)
		if o.Rank == c.Rank || (o.Suit == c.Suit && d >= -2 && d <= 2) {
			n++
		}
	}
	return n
}

func heavier(a, b rummy.Card) bool {
	if a.Points() != b.Points() {
		return a.Points() > b.Points()
	}
	if a.Rank != b.Rank {
		return a.Rank > b.Rank
	}
	return a.Suit > b.Suit
}
