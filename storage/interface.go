package storage

import "context"

// HistoryStore abstracts persistence for match history and ratings.
// Implementations can be swapped for testing (mocks) or different backends.
type HistoryStore interface {
	// Read
	ListByName(ctx context.Context, name string) ([]GameRecord, error)
	ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error)
	GetLeaderboardEntry(ctx context.Context, name string) (*LeaderboardEntry, error)

	// Write
	RecordGame(ctx context.Context, gameID string, results []PlayerResult) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close()
}

// Ensure *Store implements HistoryStore at compile time.
var _ HistoryStore = (*Store)(nil)
