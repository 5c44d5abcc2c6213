package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RMRattray/national-recording-rummy/config"
	"github.com/RMRattray/national-recording-rummy/game"
	"github.com/RMRattray/national-recording-rummy/matcherrors"
	"github.com/RMRattray/national-recording-rummy/rummy"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.GameRetentionSec = 60
	cfg.IdleEvictSec = 120
	cfg.EvictIntervalSec = 1
	return cfg
}

// quickDeck deals the first seat Ace-Ten of Hearts and the second Ace-Ten of Spades.
func quickDeck() []rummy.Card {
	var dealt []rummy.Card
	for r := rummy.Ace; r <= rummy.Ten; r++ {
		dealt = append(dealt, rummy.Card{Suit: rummy.Hearts, Rank: r}, rummy.Card{Suit: rummy.Spades, Rank: r})
	}
	dealt = append(dealt, rummy.Card{Suit: rummy.Clubs, Rank: rummy.King})
	used := make(map[rummy.Card]bool)
	for _, c := range dealt {
		used[c] = true
	}
	var deck []rummy.Card
	for _, c := range rummy.NewDeck() {
		if !used[c] {
			deck = append(deck, c)
		}
	}
	for i := len(dealt) - 1; i >= 0; i-- {
		deck = append(deck, dealt[i])
	}
	return deck
}

func startGame(t *testing.T, id string, players ...game.Player) *game.Game {
	t.Helper()
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	match, err := rummy.NewMatchWithDeck(ids, quickDeck())
	if err != nil {
		t.Fatal(err)
	}
	g := game.NewGameWithMatch(id, testConfig(), players, match, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go g.Run(ctx)
	return g
}

// finish plays the first seat out: three runs and a discard.
func finish(t *testing.T, g *game.Game) {
	t.Helper()
	first := g.Players[0].ID
	hearts := func(from rummy.Rank) []rummy.Card {
		return []rummy.Card{
			{Suit: rummy.Hearts, Rank: from},
			{Suit: rummy.Hearts, Rank: from + 1},
			{Suit: rummy.Hearts, Rank: from + 2},
		}
	}
	moves := []game.Move{
		game.PlayMeld{Cards: hearts(rummy.Ace), Kind: rummy.Run},
		game.PlayMeld{Cards: hearts(rummy.Four), Kind: rummy.Run},
		game.PlayMeld{Cards: hearts(rummy.Seven), Kind: rummy.Run},
		game.Discard{Card: rummy.Card{Suit: rummy.Hearts, Rank: rummy.Ten}},
	}
	for _, m := range moves {
		if _, err := g.Submit(context.Background(), first, m); err != nil {
			t.Fatalf("Submit %s: %v", m.Tag(), err)
		}
	}
	if !g.IsFinished() {
		t.Fatal("expected game to be finished")
	}
}

func TestAddAndLookup(t *testing.T) {
	d := New(testConfig())
	alice := game.NewPlayer("a", "Alice")
	bob := game.NewPlayer("b", "Bob")
	g := startGame(t, "g1", alice, bob)

	if err := d.Add(g); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := d.Add(g); !errors.Is(err, ErrGameExists) {
		t.Errorf("expected ErrGameExists, got %v", err)
	}
	if d.Count() != 1 {
		t.Errorf("expected 1 game, got %d", d.Count())
	}

	got, err := d.Get("g1")
	if err != nil || got != g {
		t.Errorf("Get: %v", err)
	}
	got, err = d.GameForPlayer("b")
	if err != nil || got != g {
		t.Errorf("GameForPlayer: %v", err)
	}
	if _, err := d.Get("missing"); !errors.Is(err, matcherrors.ErrGameNotFound) {
		t.Errorf("expected ErrGameNotFound, got %v", err)
	}
	if _, err := d.GameForPlayer("stranger"); !errors.Is(err, matcherrors.ErrPlayerNotFound) {
		t.Errorf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestEvictStopsLoop(t *testing.T) {
	d := New(testConfig())
	g := startGame(t, "g1", game.NewPlayer("a", "Alice"), game.NewPlayer("b", "Bob"))
	if err := d.Add(g); err != nil {
		t.Fatal(err)
	}

	d.Evict("g1")
	d.Evict("g1")

	select {
	case <-g.Done:
	case <-time.After(time.Second):
		t.Fatal("game loop still running after eviction")
	}
	if d.Count() != 0 {
		t.Errorf("expected empty directory, got %d", d.Count())
	}
	if _, err := d.GameForPlayer("a"); !errors.Is(err, matcherrors.ErrPlayerNotFound) {
		t.Errorf("expected player mapping to be gone, got %v", err)
	}
}

func TestEvictKeepsNewerSeat(t *testing.T) {
	d := New(testConfig())
	alice := game.NewPlayer("a", "Alice")
	old := startGame(t, "old", alice, game.NewPlayer("b", "Bob"))
	newer := startGame(t, "new", alice, game.NewPlayer("c", "Cara"))
	_ = d.Add(old)
	_ = d.Add(newer)

	d.Evict("old")

	got, err := d.GameForPlayer("a")
	if err != nil || got != newer {
		t.Errorf("expected Alice to stay seated in the newer game, got %v", err)
	}
	if _, err := d.GameForPlayer("b"); err == nil {
		t.Error("expected Bob's seat to be gone")
	}
}

func TestEvictFinished(t *testing.T) {
	d := New(testConfig())
	running := startGame(t, "running", game.NewPlayer("a", "Alice"), game.NewPlayer("b", "Bob"))
	done := startGame(t, "done", game.NewPlayer("c", "Cara"), game.NewPlayer("d", "Dan"))
	_ = d.Add(running)
	_ = d.Add(done)
	finish(t, done)

	if n := d.EvictFinished(time.Now()); n != 0 {
		t.Errorf("finished game evicted before retention ran out (%d)", n)
	}
	if n := d.EvictFinished(time.Now().Add(61 * time.Second)); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if _, err := d.Get("done"); !errors.Is(err, matcherrors.ErrGameNotFound) {
		t.Errorf("expected finished game to be gone, got %v", err)
	}
	if _, err := d.Get("running"); err != nil {
		t.Errorf("running game must stay: %v", err)
	}
}

func TestEvictIdle(t *testing.T) {
	d := New(testConfig())
	stuck := startGame(t, "stuck", game.NewPlayer("a", "Alice"), game.NewPlayer("b", "Bob"))
	done := startGame(t, "done", game.NewPlayer("c", "Cara"), game.NewPlayer("d", "Dan"))
	_ = d.Add(stuck)
	_ = d.Add(done)
	finish(t, done)

	if n := d.EvictIdle(stuck.LastMoveAt().Add(119 * time.Second)); n != 0 {
		t.Errorf("game evicted before the idle period ran out (%d)", n)
	}
	if n := d.EvictIdle(time.Now().Add(121 * time.Second)); n != 1 {
		t.Errorf("expected only the stuck game evicted, got %d", n)
	}
	select {
	case <-stuck.Done:
	case <-time.After(time.Second):
		t.Fatal("idle game loop still running after eviction")
	}
	if _, err := d.GameForPlayer("a"); !errors.Is(err, matcherrors.ErrPlayerNotFound) {
		t.Errorf("expected the idle game's seats to be gone, got %v", err)
	}
	if _, err := d.Get("done"); err != nil {
		t.Errorf("finished games follow retention, not the idle rule: %v", err)
	}
}

func TestEvictIdleDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.IdleEvictSec = 0
	d := New(cfg)
	_ = d.Add(startGame(t, "g1", game.NewPlayer("a", "Alice"), game.NewPlayer("b", "Bob")))

	if n := d.EvictIdle(time.Now().Add(24 * time.Hour)); n != 0 {
		t.Errorf("idle eviction is off, got %d evictions", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	d := New(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
