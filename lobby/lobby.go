// Package lobby keeps the waiting room and seats matches from it.
package lobby

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/RMRattray/national-recording-rummy/ai"
	"github.com/RMRattray/national-recording-rummy/config"
	"github.com/RMRattray/national-recording-rummy/directory"
	"github.com/RMRattray/national-recording-rummy/events"
	"github.com/RMRattray/national-recording-rummy/game"
	"github.com/RMRattray/national-recording-rummy/matcherrors"
	"github.com/RMRattray/national-recording-rummy/storage"
)

// recordTimeout bounds the post-game storage write and event publish.
const recordTimeout = 5 * time.Second

// Lobby manages the players waiting for a match.
type Lobby struct {
	mu      sync.Mutex
	waiting []game.Player // join order
	bots    map[string]config.BotParams

	ctx       context.Context // parent of every game loop
	config    *config.Config
	directory *directory.Directory
	router    *ai.Router
	store     storage.HistoryStore
	events    events.Publisher

	// recorded, if set, is called once a finished game has been stored and announced.
	recorded func(gameID string)
}

// Option configures optional collaborators.
type Option func(*Lobby)

// WithPusher sets where game loops push messages for human seats.
func WithPusher(p game.Pusher) Option { return func(l *Lobby) { l.router.SetNext(p) } }

// WithStore enables recording of finished matches.
func WithStore(s storage.HistoryStore) Option { return func(l *Lobby) { l.store = s } }

// WithEvents sets the lifecycle event publisher.
func WithEvents(p events.Publisher) Option { return func(l *Lobby) { l.events = p } }

// New creates a Lobby. Game loops it starts run until ctx is cancelled or the
// directory evicts them.
func New(ctx context.Context, cfg *config.Config, dir *directory.Directory, opts ...Option) *Lobby {
	l := &Lobby{
		ctx:       ctx,
		config:    cfg,
		directory: dir,
		bots:      make(map[string]config.BotParams),
		router:    ai.NewRouter(nil),
		events:    events.Noop{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetPusher replaces the pusher human seats are reached through.
func (l *Lobby) SetPusher(p game.Pusher) {
	l.router.SetNext(p)
}

// Join adds a player to the waiting room and returns them with a fresh handle,
// along with everyone now waiting.
func (l *Lobby) Join(name string) (game.Player, []game.Player, error) {
	return l.join(name, nil)
}

// AddBot puts the named computer profile in the waiting room. An empty name
// picks the first configured profile.
func (l *Lobby) AddBot(profile string) (game.Player, []game.Player, error) {
	params, ok := l.config.Bot(profile)
	if !ok {
		return game.Player{}, nil, fmt.Errorf("%w: %s", matcherrors.ErrUnknownBot, profile)
	}
	return l.join(params.Name, &params)
}

func (l *Lobby) join(name string, bot *config.BotParams) (game.Player, []game.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return game.Player{}, nil, matcherrors.ErrNameRequired
	}
	if l.config.MaxNameLength > 0 && utf8.RuneCountInString(name) > l.config.MaxNameLength {
		return game.Player{}, nil, fmt.Errorf("%w (max %d characters)", matcherrors.ErrNameTooLong, l.config.MaxNameLength)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexOfName(name) >= 0 {
		return game.Player{}, nil, matcherrors.ErrNameTaken
	}
	p := game.NewPlayer(uuid.NewString(), name)
	l.waiting = append(l.waiting, p)
	if bot != nil {
		l.bots[p.ID] = *bot
	}
	slog.Info("player joined", "tag", "lobby", "name", name, "bot", bot != nil, "waiting", len(l.waiting))
	return p, l.snapshot(), nil
}

// Waiting returns the waiting players in join order.
func (l *Lobby) Waiting() []game.Player {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Leave removes a player from the waiting room. It reports whether they were waiting.
func (l *Lobby) Leave(playerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, p := range l.waiting {
		if p.ID == playerID {
			l.waiting = append(l.waiting[:i:i], l.waiting[i+1:]...)
			delete(l.bots, playerID)
			slog.Info("player left", "tag", "lobby", "name", p.Name)
			return true
		}
	}
	return false
}

// Start seats the named waiting players, in the order given, in a new match and starts its loop.
func (l *Lobby) Start(ctx context.Context, names []string) (*game.Game, error) {
	if len(names) < 2 || len(names) > 4 {
		return nil, matcherrors.ErrInvalidPlayerCount
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if seen[key] {
			return nil, fmt.Errorf("%w: %s", matcherrors.ErrDuplicateNames, n)
		}
		seen[key] = true
	}

	l.mu.Lock()
	players := make([]game.Player, 0, len(names))
	var missing []string
	for _, n := range names {
		i := l.indexOfName(strings.TrimSpace(n))
		if i < 0 {
			missing = append(missing, n)
			continue
		}
		players = append(players, l.waiting[i])
	}
	if len(missing) > 0 {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", matcherrors.ErrPlayersNotWaiting, strings.Join(missing, ", "))
	}

	g, err := game.NewGame(uuid.NewString(), l.config, players, l.router)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	g.OnGameEnd = l.onGameEnd
	if err := l.directory.Add(g); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	kept := l.waiting[:0:0]
	for _, p := range l.waiting {
		if !g.HasPlayer(p.ID) {
			kept = append(kept, p)
		}
	}
	l.waiting = kept
	seatedBots := make(map[string]config.BotParams)
	for _, p := range players {
		if params, ok := l.bots[p.ID]; ok {
			seatedBots[p.ID] = params
			delete(l.bots, p.ID)
		}
	}
	l.mu.Unlock()

	// Bots must be listening before the loop pushes game_started.
	for id, params := range seatedBots {
		updates := l.router.Attach(id)
		go func() {
			ai.Run(l.ctx, updates, g, id, params)
			l.router.Detach(id)
		}()
	}
	go g.Run(l.ctx)

	playerNames := make([]string, len(players))
	for i, p := range players {
		playerNames[i] = p.Name
	}
	slog.Info("match created", "tag", "lobby", "game", g.ID, "players", strings.Join(playerNames, ", "))

	ev := events.MatchStarted{GameID: g.ID, Players: playerNames, StartedAt: time.Now().UTC()}
	if err := l.events.Publish(ctx, events.SubjectMatchStarted, ev); err != nil {
		slog.Warn("publishing match started", "tag", "lobby", "game", g.ID, "err", err)
	}
	return g, nil
}

// onGameEnd runs on the game loop; the slow work is handed off.
func (l *Lobby) onGameEnd(gameID string, results []game.ResultView) {
	go l.record(gameID, results)
}

func (l *Lobby) record(gameID string, results []game.ResultView) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	winner := ""
	standings := make([]events.Standing, len(results))
	rows := make([]storage.PlayerResult, len(results))
	for i, r := range results {
		if r.IsWinner {
			winner = r.Name
		}
		standings[i] = events.Standing{Name: r.Name, Seat: r.Seat, Score: r.Score, IsWinner: r.IsWinner}
		rows[i] = storage.PlayerResult{Name: r.Name, Seat: r.Seat, Score: r.Score, IsWinner: r.IsWinner}
	}

	if l.store != nil {
		if err := l.store.RecordGame(ctx, gameID, rows); err != nil {
			slog.Error("recording game result", "tag", "lobby", "game", gameID, "err", err)
		}
	}
	ev := events.MatchFinished{GameID: gameID, WinnerName: winner, Results: standings, EndedAt: time.Now().UTC()}
	if err := l.events.Publish(ctx, events.SubjectMatchFinished, ev); err != nil {
		slog.Warn("publishing match finished", "tag", "lobby", "game", gameID, "err", err)
	}
	if l.recorded != nil {
		l.recorded(gameID)
	}
}

// indexOfName finds a waiting player by name, ignoring case. Caller holds mu.
func (l *Lobby) indexOfName(name string) int {
	for i, p := range l.waiting {
		if strings.EqualFold(p.Name, name) {
			return i
		}
	}
	return -1
}

func (l *Lobby) snapshot() []game.Player {
	return append([]game.Player{}, l.waiting...)
}
