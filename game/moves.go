package game

import (
	"fmt"
	"strings"

	"github.com/RMRattray/national-recording-rummy/matcherrors"
	"github.com/RMRattray/national-recording-rummy/rummy"
)

// Move tags accepted on the wire.
const (
	MoveDrawStack   = "draw-stack"
	MoveDrawDiscard = "draw-discard"
	MovePlayMeld    = "play-meld"
	MoveDiscard     = "discard"
)

// Move is one of DrawStack, DrawDiscard, PlayMeld or Discard.
type Move interface {
	Tag() string
}

// DrawStack takes the top card of the face-down stack.
type DrawStack struct{}

// DrawDiscard takes a named card out of the discard pile.
type DrawDiscard struct {
	Card rummy.Card
}

// PlayMeld lays down a set or run from the hand.
type PlayMeld struct {
	Cards []rummy.Card
	Kind  rummy.MeldKind
}

// Discard puts a card from the hand on the discard pile and ends the turn.
type Discard struct {
	Card rummy.Card
}

func (DrawStack) Tag() string   { return MoveDrawStack }
func (DrawDiscard) Tag() string { return MoveDrawDiscard }
func (PlayMeld) Tag() string    { return MovePlayMeld }
func (Discard) Tag() string     { return MoveDiscard }

// MovePayload is the wire form of a move. Only the fields the move kind needs are read.
type MovePayload struct {
	Move     string     `json:"move"`
	Card     *CardView  `json:"card,omitempty"`
	Cards    []CardView `json:"cards,omitempty"`
	MeldType string     `json:"meld_type,omitempty"`
}

// Decode validates the payload and turns it into a Move.
func (p MovePayload) Decode() (Move, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(p.Move)), "_", "-") {
	case MoveDrawStack:
		return DrawStack{}, nil
	case MoveDrawDiscard:
		card, err := p.single()
		if err != nil {
			return nil, err
		}
		return DrawDiscard{Card: card}, nil
	case MoveDiscard:
		card, err := p.single()
		if err != nil {
			return nil, err
		}
		return Discard{Card: card}, nil
	case MovePlayMeld:
		kind, ok := rummy.ParseMeldKind(p.MeldType)
		if !ok {
			return nil, matcherrors.ErrInvalidMeldType
		}
		if len(p.Cards) == 0 {
			return nil, fmt.Errorf("%w: cards are required", matcherrors.ErrInvalidCard)
		}
		cards := make([]rummy.Card, len(p.Cards))
		for i, v := range p.Cards {
			card, err := v.Card()
			if err != nil {
				return nil, err
			}
			cards[i] = card
		}
		return PlayMeld{Cards: cards, Kind: kind}, nil
	default:
		return nil, fmt.Errorf("%w: %q", matcherrors.ErrUnknownMove, p.Move)
	}
}

func (p MovePayload) single() (rummy.Card, error) {
	if p.Card == nil {
		return rummy.Card{}, fmt.Errorf("%w: card is required", matcherrors.ErrInvalidCard)
	}
	return p.Card.Card()
}
