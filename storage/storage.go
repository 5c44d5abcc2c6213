package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	EloK       = 32
	InitialElo = 1000
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS game_history (
	id           UUID PRIMARY KEY,
	game_id      TEXT NOT NULL,
	played_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	player_count SMALLINT NOT NULL,
	winner_name  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_game_history_played_at ON game_history(played_at DESC);
CREATE TABLE IF NOT EXISTS game_history_player (
	history_id   UUID NOT NULL REFERENCES game_history(id) ON DELETE CASCADE,
	seat         SMALLINT NOT NULL,
	player_key   TEXT NOT NULL,
	display_name TEXT NOT NULL,
	score        INT NOT NULL,
	is_winner    BOOLEAN NOT NULL,
	elo_before   INT,
	elo_after    INT,
	PRIMARY KEY (history_id, seat)
);
CREATE INDEX IF NOT EXISTS idx_game_history_player_key ON game_history_player(player_key);
CREATE TABLE IF NOT EXISTS player_ratings (
	player_key   TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	elo          INT  NOT NULL DEFAULT 1000,
	wins         INT  NOT NULL DEFAULT 0,
	losses       INT  NOT NULL DEFAULT 0,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_player_ratings_elo ON player_ratings(elo DESC);
`

// PlayerKey is the rating identity for a display name: trimmed and lower-cased.
// Lobby handles are per join, so names are what carries a player across matches.
func PlayerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PlayerResult is one seat's outcome, as handed over when a match ends.
type PlayerResult struct {
	Name     string
	Seat     int
	Score    int
	IsWinner bool
}

// Store persists finished matches and player ratings.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the tables exist.
// If databaseURL is empty, NewStore returns (nil, nil) and no persistence occurs.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool}, nil
}

// Ping checks the connection. A nil Store is always healthy.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// outcome is how player i fared against player j: 1 for a higher score, 0.5 for
// an equal one, 0 for lower. The winner beats anyone it tied with.
func outcome(results []PlayerResult, i, j int) float64 {
	a, b := results[i], results[j]
	switch {
	case a.Score > b.Score:
		return 1
	case a.Score < b.Score:
		return 0
	case a.IsWinner:
		return 1
	case b.IsWinner:
		return 0
	default:
		return 0.5
	}
}

// computeEloUpdates returns the new ratings for a multiplayer match, treating it as a
// round of pairwise games. The K factor is split across the n-1 opponents.
func computeEloUpdates(ratings []int, results []PlayerResult) []int {
	n := len(ratings)
	out := make([]int, n)
	copy(out, ratings)
	if n < 2 || len(results) != n {
		return out
	}
	k := float64(EloK) / float64(n-1)
	for i := range n {
		var delta float64
		for j := range n {
			if i == j {
				continue
			}
			expected := 1 / (1 + math.Pow(10, float64(ratings[j]-ratings[i])/400))
			delta += k * (outcome(results, i, j) - expected)
		}
		out[i] = ratings[i] + int(math.Round(delta))
		if out[i] < 0 {
			out[i] = 0
		}
	}
	return out
}

// RecordGame stores a finished match and updates every player's rating in one transaction.
// gameID is the in-memory game id; the history row gets its own UUID.
func (s *Store) RecordGame(ctx context.Context, gameID string, results []PlayerResult) error {
	if s == nil || s.pool == nil {
		return nil
	}
	if len(results) == 0 {
		return errors.New("no results to record")
	}
	results = append([]PlayerResult(nil), results...)
	sort.Slice(results, func(i, j int) bool { return results[i].Seat < results[j].Seat })

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ratings := make([]int, len(results))
	wins := make([]int, len(results))
	losses := make([]int, len(results))
	// Rows are locked in key order so matches sharing players cannot deadlock.
	for _, i := range lockOrder(results) {
		r := results[i]
		key := PlayerKey(r.Name)
		if _, err := tx.Exec(ctx, `INSERT INTO player_ratings (player_key, display_name, elo) VALUES ($1, $2, $3) ON CONFLICT (player_key) DO NOTHING`, key, r.Name, InitialElo); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `SELECT elo, wins, losses FROM player_ratings WHERE player_key = $1 FOR UPDATE`, key).Scan(&ratings[i], &wins[i], &losses[i]); err != nil {
			return err
		}
	}
	after := computeEloUpdates(ratings, results)

	winner := ""
	for _, r := range results {
		if r.IsWinner {
			winner = r.Name
		}
	}
	historyID := uuid.NewString()
	if _, err := tx.Exec(ctx, `INSERT INTO game_history (id, game_id, player_count, winner_name) VALUES ($1, $2, $3, $4)`,
		historyID, gameID, len(results), winner); err != nil {
		return err
	}

	for i, r := range results {
		if r.IsWinner {
			wins[i]++
		} else {
			losses[i]++
		}
		if _, err := tx.Exec(ctx, `UPDATE player_ratings SET display_name = $1, elo = $2, wins = $3, losses = $4, updated_at = now() WHERE player_key = $5`,
			r.Name, after[i], wins[i], losses[i], PlayerKey(r.Name)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO game_history_player (history_id, seat, player_key, display_name, score, is_winner, elo_before, elo_after)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			historyID, r.Seat, PlayerKey(r.Name), r.Name, r.Score, r.IsWinner, ratings[i], after[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// lockOrder returns the indexes of results sorted by player key.
func lockOrder(results []PlayerResult) []int {
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return PlayerKey(results[order[a]].Name) < PlayerKey(results[order[b]].Name)
	})
	return order
}

// PlayerRecord is one seat of a GameRecord.
type PlayerRecord struct {
	Seat      int    `json:"seat"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	IsWinner  bool   `json:"is_winner"`
	EloBefore *int   `json:"elo_before,omitempty"`
	EloAfter  *int   `json:"elo_after,omitempty"`
}

// GameRecord is a single finished match returned by the history API.
type GameRecord struct {
	ID         string         `json:"id"`
	GameID     string         `json:"game_id"`
	PlayedAt   string         `json:"played_at"` // ISO8601
	WinnerName string         `json:"winner_name"`
	Players    []PlayerRecord `json:"players"`
	YourSeat   *int           `json:"your_seat"` // seat of the requested name; set by ListByName
}

// ListByName returns every match the named player took part in, newest first.
func (s *Store) ListByName(ctx context.Context, name string) ([]GameRecord, error) {
	if s == nil || s.pool == nil {
		return []GameRecord{}, nil
	}
	key := PlayerKey(name)
	rows, err := s.pool.Query(ctx, `
		SELECT h.id, h.game_id, h.played_at, h.winner_name,
			p.seat, p.player_key, p.display_name, p.score, p.is_winner, p.elo_before, p.elo_after
		FROM game_history h
		JOIN game_history_player p ON p.history_id = h.id
		WHERE h.id IN (SELECT history_id FROM game_history_player WHERE player_key = $1)
		ORDER BY h.played_at DESC, h.id, p.seat`,
		key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []GameRecord{}
	for rows.Next() {
		var (
			id, gameID, winner, playerKey string
			playedAt                      time.Time
			p                             PlayerRecord
		)
		if err := rows.Scan(&id, &gameID, &playedAt, &winner, &p.Seat, &playerKey, &p.Name, &p.Score, &p.IsWinner, &p.EloBefore, &p.EloAfter); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, GameRecord{
				ID:         id,
				GameID:     gameID,
				PlayedAt:   playedAt.UTC().Format(time.RFC3339),
				WinnerName: winner,
			})
		}
		rec := &out[len(out)-1]
		rec.Players = append(rec.Players, p)
		if playerKey == key {
			seat := p.Seat
			rec.YourSeat = &seat
		}
	}
	return out, rows.Err()
}

// LeaderboardEntry is a single row for the leaderboard API.
type LeaderboardEntry struct {
	PlayerKey     string `json:"player_key"`
	DisplayName   string `json:"display_name"`
	Elo           int    `json:"elo"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	IsCurrentUser bool   `json:"is_current_user,omitempty"`
}

// clampPage applies the leaderboard paging defaults.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListLeaderboard returns entries ordered by elo DESC, with optional limit and offset.
func (s *Store) ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	if s == nil || s.pool == nil {
		return []LeaderboardEntry{}, nil
	}
	limit, offset = clampPage(limit, offset)
	rows, err := s.pool.Query(ctx, `
		SELECT player_key, display_name, elo, wins, losses
		FROM player_ratings
		ORDER BY elo DESC, player_key
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerKey, &e.DisplayName, &e.Elo, &e.Wins, &e.Losses); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetLeaderboardEntry returns one player's entry by name, or (nil, nil) if they have no rating yet.
func (s *Store) GetLeaderboardEntry(ctx context.Context, name string) (*LeaderboardEntry, error) {
	key := PlayerKey(name)
	if s == nil || s.pool == nil || key == "" {
		return nil, nil
	}
	var e LeaderboardEntry
	err := s.pool.QueryRow(ctx, `
		SELECT player_key, display_name, elo, wins, losses
		FROM player_ratings
		WHERE player_key = $1`,
		key).Scan(&e.PlayerKey, &e.DisplayName, &e.Elo, &e.Wins, &e.Losses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}
