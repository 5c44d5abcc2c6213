package game

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/RMRattray/national-recording-rummy/matcherrors"
	"github.com/RMRattray/national-recording-rummy/rummy"
)

func TestCardViewUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want CardView
	}{
		{`{"suit":"Hearts","value":"ACE"}`, CardView{Suit: "Hearts", Value: "ACE"}},
		{`{"suit":"spades","value":"queen"}`, CardView{Suit: "Spades", Value: "QUEEN"}},
		{`{"suit":"CLUBS","rank":"ten"}`, CardView{Suit: "Clubs", Value: "TEN"}},
		{`{"suit":"Diamonds","value":7}`, CardView{Suit: "Diamonds", Value: "SEVEN"}},
		{`{"suit":"Diamonds","value":null,"rank":13}`, CardView{Suit: "Diamonds", Value: "KING"}},
		{`{"suit":"Hearts","value":"1"}`, CardView{Suit: "Hearts", Value: "ACE"}},
	}
	for _, tt := range tests {
		var got CardView
		if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
			t.Errorf("%s: unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %+v, got %+v", tt.in, tt.want, got)
		}
	}
}

func TestCardViewUnmarshalRejects(t *testing.T) {
	for _, in := range []string{
		`{"suit":"Stars","value":"ACE"}`,
		`{"suit":"Hearts","value":"JOKER"}`,
		`{"suit":"Hearts","value":14}`,
		`{"suit":"Hearts"}`,
		`[1,2]`,
	} {
		var v CardView
		if err := json.Unmarshal([]byte(in), &v); !errors.Is(err, matcherrors.ErrInvalidCard) {
			t.Errorf("%s: expected ErrInvalidCard, got %v", in, err)
		}
	}
}

func TestCardViewRoundTrip(t *testing.T) {
	c := rummy.Card{Suit: rummy.Clubs, Rank: rummy.Jack}
	back, err := NewCardView(c).Card()
	if err != nil {
		t.Fatalf("Card: %v", err)
	}
	if back != c {
		t.Errorf("expected %v, got %v", c, back)
	}
}

func TestMovePayloadDecode(t *testing.T) {
	decode := func(s string) (Move, error) {
		var p MovePayload
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, err
		}
		return p.Decode()
	}

	m, err := decode(`{"move":"draw-stack"}`)
	if err != nil || m != (DrawStack{}) {
		t.Errorf("draw-stack: got %v, %v", m, err)
	}

	m, err = decode(`{"move":"DRAW_DISCARD","card":{"suit":"clubs","value":"king"}}`)
	if err != nil {
		t.Fatalf("draw_discard: %v", err)
	}
	if dd, ok := m.(DrawDiscard); !ok || dd.Card != (rummy.Card{Suit: rummy.Clubs, Rank: rummy.King}) {
		t.Errorf("unexpected move %#v", m)
	}

	m, err = decode(`{"move":"play-meld","meld_type":"SET","cards":[{"suit":"Hearts","value":"FIVE"},{"suit":"Spades","value":5},{"suit":"Clubs","rank":"five"}]}`)
	if err != nil {
		t.Fatalf("play-meld: %v", err)
	}
	pm, ok := m.(PlayMeld)
	if !ok || pm.Kind != rummy.Set || len(pm.Cards) != 3 || pm.Cards[1] != (rummy.Card{Suit: rummy.Spades, Rank: rummy.Five}) {
		t.Errorf("unexpected move %#v", m)
	}

	m, err = decode(`{"move":"discard","card":{"suit":"Diamonds","value":"TWO"}}`)
	if d, ok := m.(Discard); err != nil || !ok || d.Card.Rank != rummy.Two {
		t.Errorf("discard: got %#v, %v", m, err)
	}
}

func TestMovePayloadDecodeErrors(t *testing.T) {
	tests := []struct {
		payload MovePayload
		want    error
	}{
		{MovePayload{Move: "fold"}, matcherrors.ErrUnknownMove},
		{MovePayload{Move: ""}, matcherrors.ErrUnknownMove},
		{MovePayload{Move: "discard"}, matcherrors.ErrInvalidCard},
		{MovePayload{Move: "draw-discard"}, matcherrors.ErrInvalidCard},
		{MovePayload{Move: "play-meld", MeldType: "straight", Cards: []CardView{{Suit: "Hearts", Value: "ACE"}}}, matcherrors.ErrInvalidMeldType},
		{MovePayload{Move: "play-meld", MeldType: "run"}, matcherrors.ErrInvalidCard},
		{MovePayload{Move: "play-meld", MeldType: "run", Cards: []CardView{{Suit: "Moons", Value: "ACE"}}}, matcherrors.ErrInvalidCard},
	}
	for _, tt := range tests {
		if _, err := tt.payload.Decode(); !errors.Is(err, tt.want) {
			t.Errorf("%+v: expected %v, got %v", tt.payload, tt.want, err)
		}
	}
}

func TestBuildStateForPlayer(t *testing.T) {
	deck := dealDeck(t, [][]rummy.Card{
		suitRun(rummy.Hearts, rummy.Ace, rummy.Ten),
		suitRun(rummy.Spades, rummy.Ace, rummy.Ten),
	}, card(rummy.King, rummy.Clubs))
	match, err := rummy.NewMatchWithDeck([]string{alice.ID, bob.ID}, deck)
	if err != nil {
		t.Fatal(err)
	}
	g := NewGameWithMatch("g-1", testConfig(), []Player{alice, bob}, match, nil)

	if ok, err := match.PlayMeld(alice.ID, suitRun(rummy.Hearts, rummy.Ace, rummy.Three), rummy.Run); !ok || err != nil {
		t.Fatalf("PlayMeld: %v %v", ok, err)
	}

	state, err := g.BuildStateForPlayer(bob.ID)
	if err != nil {
		t.Fatalf("BuildStateForPlayer: %v", err)
	}
	if state.Seat != 1 || state.GameID != "g-1" || state.PlayerCount != 2 {
		t.Errorf("unexpected header %+v", state)
	}
	if len(state.Hand) != 10 || state.Hand[0] != (CardView{Suit: "Spades", Value: "ACE"}) {
		t.Errorf("expected Bob's own hand, got %v", state.Hand)
	}
	if state.HandCounts[0] != 7 || state.HandCounts[1] != 10 {
		t.Errorf("unexpected hand counts %v", state.HandCounts)
	}
	if len(state.Melds[0]) != 1 || state.Melds[0][0].Type != "run" || len(state.Melds[0][0].Cards) != 3 {
		t.Errorf("unexpected melds %+v", state.Melds)
	}
	if len(state.Melds[1]) != 0 {
		t.Errorf("Bob has no melds, got %+v", state.Melds[1])
	}
	if state.Discards[0] != (CardView{Suit: "Clubs", Value: "KING"}) || state.Stack != 31 {
		t.Errorf("unexpected piles: discards=%v stack=%d", state.Discards, state.Stack)
	}
	if state.GameOver || state.Results != nil || state.WinnerName != "" {
		t.Error("results must stay hidden while the game runs")
	}

	data, err := json.Marshal(state)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["results"]; ok {
		t.Error("results should be omitted before the end")
	}

	if _, err := g.BuildStateForPlayer("nobody"); !errors.Is(err, rummy.ErrInvalidPlayer) {
		t.Errorf("expected ErrInvalidPlayer, got %v", err)
	}
}
