package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RMRattray/national-recording-rummy/config"
	"github.com/RMRattray/national-recording-rummy/matcherrors"
	"github.com/RMRattray/national-recording-rummy/rummy"
)

// ActionType enumerates the kinds of actions a game can process.
type ActionType int

const (
	ActionMove ActionType = iota
	ActionSnapshot
)

// Action is a request sent into the game's action channel. The loop answers on Reply.
type Action struct {
	Type     ActionType
	PlayerID string
	Move     Move // for ActionMove
	Reply    chan Reply
}

// Reply carries the caller's view after an action, or the reason it failed.
type Reply struct {
	State StateMsg
	Err   error
}

// Game manages a single match. The Match is owned by the Run goroutine;
// everything else reaches it through Actions.
type Game struct {
	ID      string
	Players []Player
	Match   *rummy.Match
	Config  *config.Config

	Actions chan Action
	Done    chan struct{}

	// OnGameEnd is called once from the loop when the match ends, with the final standings.
	OnGameEnd func(gameID string, results []ResultView)

	pusher   Pusher
	eventLog []string

	// finishedAt is the unix-nano time the match ended; 0 while in progress.
	finishedAt atomic.Int64
	// lastMoveAt is the unix-nano time of the last applied move, or of creation.
	lastMoveAt atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewGame deals a fresh shuffled match for the given players, in seat order.
func NewGame(id string, cfg *config.Config, players []Player, pusher Pusher) (*Game, error) {
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	match, err := rummy.NewMatch(ids)
	if err != nil {
		return nil, err
	}
	return newGame(id, cfg, players, match, pusher), nil
}

// NewGameWithMatch wraps an already dealt match. Players must be in the match's seat order.
func NewGameWithMatch(id string, cfg *config.Config, players []Player, match *rummy.Match, pusher Pusher) *Game {
	return newGame(id, cfg, players, match, pusher)
}

func newGame(id string, cfg *config.Config, players []Player, match *rummy.Match, pusher Pusher) *Game {
	queue := cfg.ActionQueueSize
	if queue <= 0 {
		queue = 16
	}
	g := &Game{
		ID:      id,
		Players: append([]Player(nil), players...),
		Match:   match,
		Config:  cfg,
		Actions: make(chan Action, queue),
		Done:    make(chan struct{}),
		pusher:  pusher,
		stop:    make(chan struct{}),
	}
	g.lastMoveAt.Store(time.Now().UnixNano())
	g.appendLog(fmt.Sprintf("Game started: %s", strings.Join(g.names(), ", ")))
	first := g.Players[match.CurrentPlayerIndex()].Name
	g.appendLog(fmt.Sprintf("%s goes first", first))
	return g
}

// Run is the main game loop. It processes actions sequentially until ctx is
// cancelled or Stop is called. A finished game keeps answering snapshots.
// It should be run as a goroutine.
func (g *Game) Run(ctx context.Context) {
	defer close(g.Done)

	g.broadcastState("game_started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		case action := <-g.Actions:
			var reply Reply
			switch action.Type {
			case ActionMove:
				reply.State, reply.Err = g.handleMove(action.PlayerID, action.Move)
			case ActionSnapshot:
				reply.State, reply.Err = g.BuildStateForPlayer(action.PlayerID)
			default:
				reply.Err = matcherrors.ErrUnknownMove
			}
			if action.Reply != nil {
				action.Reply <- reply
			}
		}
	}
}

// Stop ends the loop. Safe to call more than once.
func (g *Game) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// Submit sends a move through the loop and waits for the mover's new view.
func (g *Game) Submit(ctx context.Context, playerID string, move Move) (StateMsg, error) {
	if move == nil {
		return StateMsg{}, matcherrors.ErrUnknownMove
	}
	return g.request(ctx, Action{Type: ActionMove, PlayerID: playerID, Move: move})
}

// Snapshot returns the player's current view, read through the loop.
func (g *Game) Snapshot(ctx context.Context, playerID string) (StateMsg, error) {
	return g.request(ctx, Action{Type: ActionSnapshot, PlayerID: playerID})
}

func (g *Game) request(ctx context.Context, action Action) (StateMsg, error) {
	if g.Config.MoveTimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(g.Config.MoveTimeoutMS)*time.Millisecond)
		defer cancel()
	}
	action.Reply = make(chan Reply, 1)

	select {
	case g.Actions <- action:
	case <-g.Done:
		return StateMsg{}, matcherrors.ErrGameNotFound
	case <-ctx.Done():
		return StateMsg{}, ctx.Err()
	}

	select {
	case r := <-action.Reply:
		return r.State, r.Err
	case <-g.Done:
		select {
		case r := <-action.Reply:
			return r.State, r.Err
		default:
			return StateMsg{}, matcherrors.ErrGameNotFound
		}
	case <-ctx.Done():
		return StateMsg{}, ctx.Err()
	}
}

// IsFinished reports whether the match has ended. Safe from any goroutine.
func (g *Game) IsFinished() bool {
	return g.finishedAt.Load() != 0
}

// FinishedAt returns when the match ended, or the zero time if it is still in progress.
func (g *Game) FinishedAt() time.Time {
	n := g.finishedAt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// LastMoveAt returns when a move was last applied, or when the game was created.
func (g *Game) LastMoveAt() time.Time {
	return time.Unix(0, g.lastMoveAt.Load())
}

// HasPlayer reports whether the handle is seated in this game.
func (g *Game) HasPlayer(playerID string) bool {
	for _, p := range g.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

func (g *Game) handleMove(playerID string, move Move) (StateMsg, error) {
	name := g.nameOf(playerID)

	var line string
	var drawn *CardView
	switch m := move.(type) {
	case DrawStack:
		c, ok, err := g.Match.DrawFromStack(playerID)
		if err != nil {
			return StateMsg{}, fmt.Errorf("draw from stack: %w", err)
		}
		if !ok {
			return StateMsg{}, matcherrors.ErrStackEmpty
		}
		cv := NewCardView(c)
		drawn = &cv
		line = fmt.Sprintf("%s drew from the stack", name)
	case DrawDiscard:
		ok, err := g.Match.DrawFromDiscard(playerID, m.Card)
		if err != nil {
			return StateMsg{}, fmt.Errorf("draw from discard: %w", err)
		}
		if !ok {
			return StateMsg{}, matcherrors.ErrCardNotInDiscard
		}
		line = fmt.Sprintf("%s took %s from the discard pile", name, m.Card)
	case PlayMeld:
		ok, err := g.Match.PlayMeld(playerID, m.Cards, m.Kind)
		if err != nil {
			return StateMsg{}, fmt.Errorf("play meld: %w", err)
		}
		if !ok {
			return StateMsg{}, matcherrors.ErrInvalidMeld
		}
		line = fmt.Sprintf("%s played a %s: %s", name, m.Kind, joinCards(m.Cards))
	case Discard:
		ok, err := g.Match.Discard(playerID, m.Card)
		if err != nil {
			return StateMsg{}, fmt.Errorf("discard: %w", err)
		}
		if !ok {
			return StateMsg{}, matcherrors.ErrCardNotInHand
		}
		line = fmt.Sprintf("%s discarded %s", name, m.Card)
	default:
		return StateMsg{}, fmt.Errorf("%w: %T", matcherrors.ErrUnknownMove, move)
	}

	g.lastMoveAt.Store(time.Now().UnixNano())
	g.appendLog(line)
	slog.Debug("move applied", "tag", "game", "game", g.ID, "player", name, "move", move.Tag())

	if g.Match.IsOver() {
		g.finish()
	} else {
		g.broadcastState("game_state")
	}
	state, err := g.BuildStateForPlayer(playerID)
	if err != nil {
		return StateMsg{}, err
	}
	state.Drawn = drawn
	return state, nil
}

// finish runs once, from the move that emptied a hand.
func (g *Game) finish() {
	g.finishedAt.Store(time.Now().UnixNano())
	results := g.resultViews()
	if winner := g.winnerName(); winner != "" {
		for _, r := range results {
			if r.IsWinner {
				g.appendLog(fmt.Sprintf("%s won with %d points", winner, r.Score))
			}
		}
	}
	slog.Info("game over", "tag", "game", "game", g.ID, "winner", g.winnerName())

	g.broadcastState("game_state")
	g.broadcastGameOver(results)
	if g.OnGameEnd != nil {
		g.OnGameEnd(g.ID, results)
	}
}

func (g *Game) broadcastState(msgType string) {
	if g.pusher == nil {
		return
	}
	for _, p := range g.Players {
		state, err := g.BuildStateForPlayer(p.ID)
		if err != nil {
			slog.Error("building game state", "tag", "game", "game", g.ID, "err", err)
			continue
		}
		state.Type = msgType
		data, err := json.Marshal(state)
		if err != nil {
			slog.Error("marshaling game state", "tag", "game", "err", err)
			continue
		}
		g.pusher.Push(p.ID, data)
	}
}

func (g *Game) broadcastGameOver(results []ResultView) {
	if g.pusher == nil {
		return
	}
	data, err := json.Marshal(GameOverMsg{
		Type:       "game_over",
		GameID:     g.ID,
		WinnerName: g.winnerName(),
		Results:    results,
	})
	if err != nil {
		slog.Error("marshaling game over", "tag", "game", "err", err)
		return
	}
	for _, p := range g.Players {
		g.pusher.Push(p.ID, data)
	}
}

// appendLog keeps at most Config.EventLogSize lines, dropping the oldest.
func (g *Game) appendLog(line string) {
	g.eventLog = append(g.eventLog, line)
	if limit := g.Config.EventLogSize; limit > 0 && len(g.eventLog) > limit {
		g.eventLog = append([]string(nil), g.eventLog[len(g.eventLog)-limit:]...)
	}
}

func (g *Game) nameOf(playerID string) string {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p.Name
		}
	}
	return playerID
}

func (g *Game) names() []string {
	names := make([]string, len(g.Players))
	for i, p := range g.Players {
		names[i] = p.Name
	}
	return names
}

func joinCards(cards []rummy.Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}
