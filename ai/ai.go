// Package ai plays computer-controlled seats. A bot sees only what a human
// client sees: the game_state pushes for its seat and the replies to its moves.
package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/RMRattray/national-recording-rummy/config"
	"github.com/RMRattray/national-recording-rummy/game"
	"github.com/RMRattray/national-recording-rummy/rummy"
)

// Run reacts to the state pushes on updates and plays a whole turn whenever the
// bot's seat is to move. It returns when the game ends, updates is closed, or
// ctx is cancelled.
func Run(ctx context.Context, updates <-chan []byte, g *game.Game, playerID string, params config.BotParams) {
	b := &bot{game: g, id: playerID, params: params}
	acted := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.Done:
			return
		case data, ok := <-updates:
			if !ok {
				return
			}
			var msg struct {
				Type     string `json:"type"`
				YourTurn bool   `json:"yourTurn"`
				GameOver bool   `json:"gameOver"`
			}
			if err := json.Unmarshal(data, &msg); err != nil {
				slog.Warn("bot: bad push", "tag", "ai", "err", err)
				continue
			}
			if msg.Type == "game_over" || msg.GameOver {
				slog.Debug("bot: game over", "tag", "ai", "bot", params.Name)
				return
			}
			// Pushes from the bot's own moves still say yourTurn; only a new turn counts.
			if !msg.YourTurn {
				acted = false
				continue
			}
			if acted {
				continue
			}
			acted = true
			b.playTurn(ctx)
		}
	}
}

type bot struct {
	game   *game.Game
	id     string
	params config.BotParams
	state  game.StateMsg
}

func (b *bot) playTurn(ctx context.Context) {
	state, err := b.game.Snapshot(ctx, b.id)
	if err != nil {
		slog.Warn("bot: snapshot", "tag", "ai", "bot", b.params.Name, "err", err)
		return
	}
	b.state = state
	if !state.YourTurn || state.GameOver {
		return
	}

	taken, took := b.draw(ctx)

	for _, m := range FindMelds(b.hand()) {
		if b.state.GameOver || !b.pause(ctx) {
			return
		}
		b.submit(ctx, game.PlayMeld{Cards: m.Cards, Kind: m.Kind})
	}
	if b.state.GameOver || !b.pause(ctx) {
		return
	}

	hand := b.hand()
	var keep []rummy.Card
	if took {
		keep = append(keep, taken)
	}
	c, ok := ChooseDiscard(hand, keep...)
	if !ok {
		return
	}
	if b.submit(ctx, game.Discard{Card: c}) {
		return
	}
	for _, o := range hand {
		if o != c && !slices.Contains(keep, o) {
			b.submit(ctx, game.Discard{Card: o})
			return
		}
	}
}

// draw takes the top discard when it completes a meld, otherwise the stack. It
// returns the card taken from the discard pile, if any. Once the stack is empty
// only a completing discard is taken, so every turn shrinks the hand.
func (b *bot) draw(ctx context.Context) (rummy.Card, bool) {
	if !b.pause(ctx) {
		return rummy.Card{}, false
	}
	top, hasTop := b.topDiscard()
	useful := hasTop && Completes(b.hand(), top)
	if useful && rand.IntN(100) < b.params.TakeDiscardChance {
		if b.submit(ctx, game.DrawDiscard{Card: top}) {
			return top, true
		}
	}
	if b.state.Stack > 0 && b.submit(ctx, game.DrawStack{}) {
		return rummy.Card{}, false
	}
	if useful && b.submit(ctx, game.DrawDiscard{Card: top}) {
		return top, true
	}
	return rummy.Card{}, false
}

// submit plays move and keeps the reply as the bot's view. It reports success.
func (b *bot) submit(ctx context.Context, move game.Move) bool {
	state, err := b.game.Submit(ctx, b.id, move)
	if err != nil {
		slog.Debug("bot: move rejected", "tag", "ai", "bot", b.params.Name, "move", move.Tag(), "err", err)
		return false
	}
	b.state = state
	return true
}

func (b *bot) hand() []rummy.Card {
	out := make([]rummy.Card, 0, len(b.state.Hand))
	for _, v := range b.state.Hand {
		if c, err := v.Card(); err == nil {
			out = append(out, c)
		}
	}
	return out
}

func (b *bot) topDiscard() (rummy.Card, bool) {
	if len(b.state.Discards) == 0 {
		return rummy.Card{}, false
	}
	c, err := b.state.Discards[len(b.state.Discards)-1].Card()
	return c, err == nil
}

// pause waits a random think time from the profile. It returns false if ctx ends first.
func (b *bot) pause(ctx context.Context) bool {
	d := b.params.DelayMinMS
	if spread := b.params.DelayMaxMS - b.params.DelayMinMS; spread > 0 {
		d += rand.IntN(spread + 1)
	}
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(time.Duration(d) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
