package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/RMRattray/national-recording-rummy/matcherrors"
	"github.com/RMRattray/national-recording-rummy/rummy"
)

// CardView is the client-facing representation of a card: {"suit":"Hearts","value":"ACE"}.
type CardView struct {
	Suit  string `json:"suit"`
	Value string `json:"value"`
}

// NewCardView converts an engine card.
func NewCardView(c rummy.Card) CardView {
	return CardView{Suit: c.Suit.String(), Value: c.Rank.String()}
}

// UnmarshalJSON accepts the rank under "value" or "rank", either as a name
// ("ACE", "queen") or as a number 1-13, and suit names in any case.
func (v *CardView) UnmarshalJSON(data []byte) error {
	var wire struct {
		Suit  string          `json:"suit"`
		Value json.RawMessage `json:"value"`
		Rank  json.RawMessage `json:"rank"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %v", matcherrors.ErrInvalidCard, err)
	}
	suit, ok := rummy.ParseSuit(wire.Suit)
	if !ok {
		return fmt.Errorf("%w: unknown suit %q", matcherrors.ErrInvalidCard, wire.Suit)
	}
	raw := wire.Value
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = wire.Rank
	}
	rank, err := parseRankJSON(raw)
	if err != nil {
		return err
	}
	v.Suit = suit.String()
	v.Value = rank.String()
	return nil
}

func parseRankJSON(raw json.RawMessage) (rummy.Rank, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: missing value", matcherrors.ErrInvalidCard)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	if r, ok := rummy.ParseRank(s); ok {
		return r, nil
	}
	if n, err := strconv.Atoi(s); err == nil && rummy.Rank(n).Valid() {
		return rummy.Rank(n), nil
	}
	return 0, fmt.Errorf("%w: unknown value %s", matcherrors.ErrInvalidCard, raw)
}

// Card converts the view back to an engine card.
func (v CardView) Card() (rummy.Card, error) {
	suit, ok := rummy.ParseSuit(v.Suit)
	if !ok {
		return rummy.Card{}, fmt.Errorf("%w: unknown suit %q", matcherrors.ErrInvalidCard, v.Suit)
	}
	rank, err := parseRankJSON(json.RawMessage(strconv.Quote(v.Value)))
	if err != nil {
		return rummy.Card{}, err
	}
	return rummy.Card{Suit: suit, Rank: rank}, nil
}

// MeldView is one meld on the table.
type MeldView struct {
	Type  string     `json:"type"`
	Cards []CardView `json:"cards"`
}

// ResultView is one line of the final standings.
type ResultView struct {
	Name     string `json:"name"`
	Seat     int    `json:"seat"`
	Score    int    `json:"score"`
	IsWinner bool   `json:"isWinner"`
}

// StateMsg is the game state as seen by one player. Opponents' hands are
// only given as counts.
type StateMsg struct {
	Type             string       `json:"type"`
	GameID           string       `json:"gameId"`
	PlayerNames      []string     `json:"playerNames"`
	Seat             int          `json:"seat"`
	Hand             []CardView   `json:"hand"`
	HandCounts       []int        `json:"handCts"`
	Melds            [][]MeldView `json:"melds"`
	Discards         []CardView   `json:"discards"`
	Stack            int          `json:"stack"`
	ActivePlayerName string       `json:"activePlayerName"`
	YourTurn         bool         `json:"yourTurn"`
	PlayerCount      int          `json:"playerCount"`
	GameOver         bool         `json:"gameOver"`
	WinnerName       string       `json:"winnerName,omitempty"`
	Results          []ResultView `json:"results,omitempty"`
	EventLog         []string     `json:"eventLog"`

	// Drawn is the card a stack draw gave the mover; set only on that move's reply.
	Drawn *CardView `json:"drawn,omitempty"`
}

// GameOverMsg is pushed to every player once when the match ends.
type GameOverMsg struct {
	Type       string       `json:"type"`
	GameID     string       `json:"gameId"`
	WinnerName string       `json:"winnerName"`
	Results    []ResultView `json:"results"`
}

// BuildCardViews converts a slice of engine cards.
func BuildCardViews(cards []rummy.Card) []CardView {
	views := make([]CardView, len(cards))
	for i, c := range cards {
		views[i] = NewCardView(c)
	}
	return views
}

// BuildStateForPlayer returns the game state view for the given player.
func (g *Game) BuildStateForPlayer(playerID string) (StateMsg, error) {
	seat, err := g.Match.Seat(playerID)
	if err != nil {
		return StateMsg{}, err
	}
	hand, _ := g.Match.Hand(playerID)

	n := len(g.Players)
	state := StateMsg{
		Type:             "game_state",
		GameID:           g.ID,
		PlayerNames:      make([]string, n),
		Seat:             seat,
		Hand:             BuildCardViews(hand),
		HandCounts:       make([]int, n),
		Melds:            make([][]MeldView, n),
		Discards:         BuildCardViews(g.Match.DiscardPile()),
		Stack:            g.Match.StackSize(),
		ActivePlayerName: g.Players[g.Match.CurrentPlayerIndex()].Name,
		YourTurn:         !g.Match.IsOver() && seat == g.Match.CurrentPlayerIndex(),
		PlayerCount:      n,
		GameOver:         g.Match.IsOver(),
		EventLog:         append([]string{}, g.eventLog...),
	}
	for i, p := range g.Players {
		state.PlayerNames[i] = p.Name
		state.HandCounts[i], _ = g.Match.HandSize(p.ID)
		melds, _ := g.Match.Melds(p.ID)
		views := make([]MeldView, len(melds))
		for j, m := range melds {
			views[j] = MeldView{Type: m.Kind.String(), Cards: BuildCardViews(m.Cards)}
		}
		state.Melds[i] = views
	}
	if state.GameOver {
		state.WinnerName = g.winnerName()
		state.Results = g.resultViews()
	}
	return state, nil
}

func (g *Game) winnerName() string {
	winner, ok := g.Match.Winner()
	if !ok {
		return ""
	}
	seat, _ := g.Match.Seat(winner)
	return g.Players[seat].Name
}

func (g *Game) resultViews() []ResultView {
	results, ok := g.Match.FinalResults()
	if !ok {
		return nil
	}
	views := make([]ResultView, len(results))
	for i, r := range results {
		views[i] = ResultView{Name: g.Players[r.Seat].Name, Seat: r.Seat, Score: r.Score, IsWinner: r.IsWinner}
	}
	return views
}
