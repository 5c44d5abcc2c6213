package rummy

// HandSize is the number of cards dealt to each player.
const HandSize = 10

// Match is the full state of one Rummy game. It is not safe for concurrent use;
// callers serialize access (see game.Game).
type Match struct {
	players []string
	seats   map[string]int

	hands   map[string][]Card
	melds   map[string][]Meld
	stack   []Card
	discard []Card

	current int
	scores  map[string]int
	over    bool
	winner  string
}

// NewMatch shuffles a fresh deck and deals a match for the given players, in seat order.
func NewMatch(players []string) (*Match, error) {
	return NewMatchWithDeck(players, ShuffleDeck(NewDeck()))
}

// NewMatchWithDeck deals a match from deck without shuffling it. The end of the
// slice is the top of the stack, so the last card is dealt first.
func NewMatchWithDeck(players []string, deck []Card) (*Match, error) {
	if len(players) < 2 || len(players) > 4 {
		return nil, ErrInvalidPlayerCount
	}
	if !IsStandardDeck(deck) {
		return nil, ErrInvalidDeck
	}
	m := &Match{
		players: make([]string, len(players)),
		seats:   make(map[string]int, len(players)),
		hands:   make(map[string][]Card, len(players)),
		melds:   make(map[string][]Meld, len(players)),
		stack:   make([]Card, len(deck)),
		scores:  make(map[string]int, len(players)),
	}
	copy(m.players, players)
	copy(m.stack, deck)
	for i, p := range players {
		if _, dup := m.seats[p]; dup {
			return nil, ErrDuplicatePlayer
		}
		m.seats[p] = i
		m.hands[p] = make([]Card, 0, HandSize+1)
		m.melds[p] = nil
	}

	// One card at a time around the table.
	for range HandSize {
		for _, p := range m.players {
			m.hands[p] = append(m.hands[p], m.pop())
		}
	}
	m.discard = append(m.discard, m.pop())
	return m, nil
}

func (m *Match) pop() Card {
	c := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return c
}

// checkMove validates that player may act now.
func (m *Match) checkMove(player string) error {
	seat, ok := m.seats[player]
	if !ok {
		return ErrInvalidPlayer
	}
	if m.over {
		return ErrGameOver
	}
	if seat != m.current {
		return ErrNotYourTurn
	}
	return nil
}

// DrawFromStack moves the top stack card into player's hand and returns it.
// ok is false when the stack is empty. Drawing never ends the turn.
func (m *Match) DrawFromStack(player string) (card Card, ok bool, err error) {
	if err := m.checkMove(player); err != nil {
		return Card{}, false, err
	}
	if len(m.stack) == 0 {
		return Card{}, false, nil
	}
	card = m.pop()
	m.hands[player] = append(m.hands[player], card)
	return card, true, nil
}

// DrawFromDiscard takes card out of the discard pile, wherever it sits, and adds
// it to player's hand. It returns false if the card is not in the pile.
func (m *Match) DrawFromDiscard(player string, card Card) (bool, error) {
	if err := m.checkMove(player); err != nil {
		return false, err
	}
	i := indexOf(m.discard, card)
	if i < 0 {
		return false, nil
	}
	m.discard = append(m.discard[:i:i], m.discard[i+1:]...)
	m.hands[player] = append(m.hands[player], card)
	return true, nil
}

// PlayMeld lays down cards from player's hand as a meld of the given kind. It
// returns false, changing nothing, if a card is not held or the meld is invalid.
// Emptying the hand ends the game.
func (m *Match) PlayMeld(player string, cards []Card, kind MeldKind) (bool, error) {
	if err := m.checkMove(player); err != nil {
		return false, err
	}
	if kind != Set && kind != Run {
		return false, ErrInvalidMeldType
	}
	hand := m.hands[player]
	if !containsAll(hand, cards) || !ValidMeld(cards, kind) {
		return false, nil
	}
	placed := make([]Card, len(cards))
	copy(placed, cards)
	m.hands[player] = removeCards(hand, cards)
	m.melds[player] = append(m.melds[player], Meld{Kind: kind, Cards: placed})
	if len(m.hands[player]) == 0 {
		m.finish()
	}
	return true, nil
}

// Discard moves card from player's hand to the top of the discard pile. It ends
// the game if the hand is now empty; otherwise the turn passes to the next seat.
func (m *Match) Discard(player string, card Card) (bool, error) {
	if err := m.checkMove(player); err != nil {
		return false, err
	}
	hand := m.hands[player]
	i := indexOf(hand, card)
	if i < 0 {
		return false, nil
	}
	m.hands[player] = append(hand[:i:i], hand[i+1:]...)
	m.discard = append(m.discard, card)
	if len(m.hands[player]) == 0 {
		m.finish()
	} else {
		m.current = (m.current + 1) % len(m.players)
	}
	return true, nil
}

// finish scores every player and picks the winner: the first seat holding the top score.
func (m *Match) finish() {
	m.over = true
	best := 0
	for i, p := range m.players {
		s := m.score(p)
		m.scores[p] = s
		if i == 0 || s > best {
			best = s
			m.winner = p
		}
	}
}

// score is meld points minus the points still in hand.
func (m *Match) score(player string) int {
	total := 0
	for _, meld := range m.melds[player] {
		total += meld.Points()
	}
	return total - sumPoints(m.hands[player])
}
