package rummy

import (
	"math/rand/v2"
	"strings"
)

// Suit is one of the four French suits.
type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

// Suits lists the suits in deck-building order.
var Suits = [4]Suit{Hearts, Diamonds, Clubs, Spades}

// String returns the display name of a Suit ("Hearts", "Diamonds", ...).
func (s Suit) String() string {
	switch s {
	case Hearts:
		return "Hearts"
	case Diamonds:
		return "Diamonds"
	case Clubs:
		return "Clubs"
	case Spades:
		return "Spades"
	default:
		return "Unknown"
	}
}

// ParseSuit resolves a suit name, case-insensitively.
func ParseSuit(name string) (Suit, bool) {
	for _, s := range Suits {
		if strings.EqualFold(s.String(), strings.TrimSpace(name)) {
			return s, true
		}
	}
	return 0, false
}

// Rank is the face value of a card. Ace is always low.
type Rank int

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

var rankNames = [...]string{"", "ACE", "TWO", "THREE", "FOUR", "FIVE", "SIX", "SEVEN", "EIGHT", "NINE", "TEN", "JACK", "QUEEN", "KING"}

// Valid reports whether r is between Ace and King.
func (r Rank) Valid() bool {
	return r >= Ace && r <= King
}

// String returns the upper-case rank name used on the wire ("ACE" .. "KING").
func (r Rank) String() string {
	if !r.Valid() {
		return "UNKNOWN"
	}
	return rankNames[r]
}

// ParseRank resolves a rank name ("ACE", "king", ...).
func ParseRank(name string) (Rank, bool) {
	name = strings.TrimSpace(name)
	for r := Ace; r <= King; r++ {
		if strings.EqualFold(rankNames[r], name) {
			return r, true
		}
	}
	return 0, false
}

// Card is an immutable (suit, rank) pair. Cards compare with ==.
type Card struct {
	Suit Suit
	Rank Rank
}

// String returns e.g. "QUEEN of Spades".
func (c Card) String() string {
	return c.Rank.String() + " of " + c.Suit.String()
}

// Points is the end-of-game value of a card: 15 for an Ace, 10 for a face card, 5 otherwise.
func (c Card) Points() int {
	switch {
	case c.Rank == Ace:
		return 15
	case c.Rank >= Jack:
		return 10
	default:
		return 5
	}
}

// NewDeck returns the 52-card deck in suit-major order.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, s := range Suits {
		for r := Ace; r <= King; r++ {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// ShuffleDeck returns a uniformly shuffled copy of deck.
func ShuffleDeck(deck []Card) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// IsStandardDeck reports whether deck is a permutation of the 52-card deck.
func IsStandardDeck(deck []Card) bool {
	if len(deck) != 52 {
		return false
	}
	seen := make(map[Card]struct{}, 52)
	for _, c := range deck {
		if !c.Rank.Valid() || c.Suit < Hearts || c.Suit > Spades {
			return false
		}
		if _, dup := seen[c]; dup {
			return false
		}
		seen[c] = struct{}{}
	}
	return true
}

// indexOf returns the position of the first card equal to c, or -1.
func indexOf(cards []Card, c Card) int {
	for i, x := range cards {
		if x == c {
			return i
		}
	}
	return -1
}

// containsAll reports whether cards holds every entry of want, counting repeats.
func containsAll(cards, want []Card) bool {
	need := make(map[Card]int, len(want))
	for _, c := range want {
		need[c]++
	}
	for _, c := range cards {
		if need[c] > 0 {
			need[c]--
		}
	}
	for _, n := range need {
		if n > 0 {
			return false
		}
	}
	return true
}

// removeCards drops one occurrence of each card in toRemove, keeping the order of the rest.
func removeCards(hand, toRemove []Card) []Card {
	removeCounts := make(map[Card]int, len(toRemove))
	for _, c := range toRemove {
		removeCounts[c]++
	}
	updated := make([]Card, 0, len(hand))
	for _, c := range hand {
		if removeCounts[c] > 0 {
			removeCounts[c]--
			continue
		}
		updated = append(updated, c)
	}
	return updated
}

func sumPoints(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += c.Points()
	}
	return total
}
