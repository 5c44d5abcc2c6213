// Package directory tracks the running matches and which match each player is seated in.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/RMRattray/national-recording-rummy/config"
	"github.com/RMRattray/national-recording-rummy/game"
	"github.com/RMRattray/national-recording-rummy/matcherrors"
)

// ErrGameExists is returned by Add when the id is already registered.
var ErrGameExists = errors.New("game id already registered")

// Directory maps game ids to games and player handles to the game they play in.
// Per-match ordering is the game loop's job; the directory only guards its maps.
type Directory struct {
	mu      sync.RWMutex
	games   map[string]*game.Game
	players map[string]string // player id -> game id

	retention time.Duration
	idle      time.Duration
	interval  time.Duration
}

// New creates an empty Directory using the retention settings in cfg.
func New(cfg *config.Config) *Directory {
	return &Directory{
		games:     make(map[string]*game.Game),
		players:   make(map[string]string),
		retention: time.Duration(cfg.GameRetentionSec) * time.Second,
		idle:      time.Duration(cfg.IdleEvictSec) * time.Second,
		interval:  time.Duration(cfg.EvictIntervalSec) * time.Second,
	}
}

// Add registers g and seats its players. A player already seated elsewhere is moved to g.
func (d *Directory) Add(g *game.Game) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.games[g.ID]; ok {
		return ErrGameExists
	}
	d.games[g.ID] = g
	for _, p := range g.Players {
		d.players[p.ID] = g.ID
	}
	return nil
}

// Get returns the game with the given id.
func (d *Directory) Get(gameID string) (*game.Game, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.games[gameID]
	if !ok {
		return nil, matcherrors.ErrGameNotFound
	}
	return g, nil
}

// GameForPlayer returns the game the player is seated in.
func (d *Directory) GameForPlayer(playerID string) (*game.Game, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.players[playerID]
	if !ok {
		return nil, matcherrors.ErrPlayerNotFound
	}
	g, ok := d.games[id]
	if !ok {
		return nil, matcherrors.ErrGameNotFound
	}
	return g, nil
}

// Evict stops the game's loop and forgets it. Unknown ids are ignored.
func (d *Directory) Evict(gameID string) {
	d.mu.Lock()
	g, ok := d.games[gameID]
	if ok {
		delete(d.games, gameID)
		for _, p := range g.Players {
			if d.players[p.ID] == gameID {
				delete(d.players, p.ID)
			}
		}
	}
	d.mu.Unlock()

	if ok {
		g.Stop()
		slog.Info("evicted game", "tag", "directory", "game", gameID)
	}
}

// Count returns the number of registered games.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.games)
}

// EvictFinished removes every game that finished more than the retention period before now.
// It returns how many were removed.
func (d *Directory) EvictFinished(now time.Time) int {
	var stale []string
	d.mu.RLock()
	for id, g := range d.games {
		if at := g.FinishedAt(); !at.IsZero() && now.Sub(at) >= d.retention {
			stale = append(stale, id)
		}
	}
	d.mu.RUnlock()

	for _, id := range stale {
		d.Evict(id)
	}
	return len(stale)
}

// EvictIdle removes every game still in progress whose last applied move is
// more than the idle period before now. It returns how many were removed.
func (d *Directory) EvictIdle(now time.Time) int {
	if d.idle <= 0 {
		return 0
	}
	var stale []string
	d.mu.RLock()
	for id, g := range d.games {
		if !g.IsFinished() && now.Sub(g.LastMoveAt()) >= d.idle {
			stale = append(stale, id)
		}
	}
	d.mu.RUnlock()

	for _, id := range stale {
		slog.Warn("evicting idle game", "tag", "directory", "game", id)
		d.Evict(id)
	}
	return len(stale)
}

// Run evicts finished and idle games on every tick until ctx is cancelled.
// It should be run as a goroutine.
func (d *Directory) Run(ctx context.Context) {
	if d.interval <= 0 {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("evict loop stopped", "tag", "directory")
			return
		case now := <-ticker.C:
			if n := d.EvictFinished(now); n > 0 {
				slog.Info("evicted finished games", "tag", "directory", "count", n, "remaining", d.Count())
			}
			if n := d.EvictIdle(now); n > 0 {
				slog.Info("evicted idle games", "tag", "directory", "count", n, "remaining", d.Count())
			}
		}
	}
}
