package rummy

import "sort"

// Result is one line of the final standings.
type Result struct {
	Player   string
	Seat     int
	Score    int
	IsWinner bool
}

// Players returns the seat order.
func (m *Match) Players() []string {
	out := make([]string, len(m.players))
	copy(out, m.players)
	return out
}

// Seat returns the seat index of player.
func (m *Match) Seat(player string) (int, error) {
	seat, ok := m.seats[player]
	if !ok {
		return 0, ErrInvalidPlayer
	}
	return seat, nil
}

// Hand returns a copy of player's hand in the order the cards were acquired.
func (m *Match) Hand(player string) ([]Card, error) {
	if _, ok := m.seats[player]; !ok {
		return nil, ErrInvalidPlayer
	}
	return cloneCards(m.hands[player]), nil
}

// HandSize returns how many cards player holds.
func (m *Match) HandSize(player string) (int, error) {
	if _, ok := m.seats[player]; !ok {
		return 0, ErrInvalidPlayer
	}
	return len(m.hands[player]), nil
}

// StackSize returns the number of face-down cards left.
func (m *Match) StackSize() int {
	return len(m.stack)
}

// DiscardPile returns the discard pile, bottom first.
func (m *Match) DiscardPile() []Card {
	return cloneCards(m.discard)
}

// TopDiscard returns the most recently discarded card.
func (m *Match) TopDiscard() (Card, bool) {
	if len(m.discard) == 0 {
		return Card{}, false
	}
	return m.discard[len(m.discard)-1], true
}

// CurrentPlayer returns the player whose turn it is.
func (m *Match) CurrentPlayer() string {
	return m.players[m.current]
}

// CurrentPlayerIndex returns the seat index of the current player.
func (m *Match) CurrentPlayerIndex() int {
	return m.current
}

// IsOver reports whether some player has emptied their hand.
func (m *Match) IsOver() bool {
	return m.over
}

// Winner returns the winning player once the game is over.
func (m *Match) Winner() (string, bool) {
	return m.winner, m.over
}

// Melds returns the melds player has laid down, oldest first.
func (m *Match) Melds(player string) ([]Meld, error) {
	if _, ok := m.seats[player]; !ok {
		return nil, ErrInvalidPlayer
	}
	src := m.melds[player]
	out := make([]Meld, len(src))
	for i, meld := range src {
		out[i] = Meld{Kind: meld.Kind, Cards: cloneCards(meld.Cards)}
	}
	return out, nil
}

// Score returns player's final score. It is zero until the game is over.
func (m *Match) Score(player string) (int, error) {
	if _, ok := m.seats[player]; !ok {
		return 0, ErrInvalidPlayer
	}
	return m.scores[player], nil
}

// Scores returns every player's score. It is empty until the game is over.
func (m *Match) Scores() map[string]int {
	out := make(map[string]int, len(m.scores))
	for p, s := range m.scores {
		out[p] = s
	}
	return out
}

// FinalResults ranks the players by score, highest first; equal scores keep seat
// order. ok is false while the game is still running.
func (m *Match) FinalResults() (results []Result, ok bool) {
	if !m.over {
		return nil, false
	}
	results = make([]Result, len(m.players))
	for i, p := range m.players {
		results[i] = Result{Player: p, Seat: i, Score: m.scores[p], IsWinner: p == m.winner}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, true
}

func cloneCards(cards []Card) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}
