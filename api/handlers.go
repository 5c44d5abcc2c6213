package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/RMRattray/national-recording-rummy/config"
	"github.com/RMRattray/national-recording-rummy/directory"
	"github.com/RMRattray/national-recording-rummy/events"
	"github.com/RMRattray/national-recording-rummy/game"
	"github.com/RMRattray/national-recording-rummy/lobby"
	"github.com/RMRattray/national-recording-rummy/matcherrors"
	"github.com/RMRattray/national-recording-rummy/rummy"
	"github.com/RMRattray/national-recording-rummy/storage"
)

// maxBodyBytes caps request bodies; the largest is a play-meld with a handful of cards.
const maxBodyBytes = 64 << 10

// Handler holds dependencies for API handlers.
type Handler struct {
	Config       *config.Config
	Lobby        *lobby.Lobby
	Directory    *directory.Directory
	HistoryStore storage.HistoryStore // nil when persistence is disabled
	Events       events.Publisher     // nil when NATS is not configured
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(cfg *config.Config, l *lobby.Lobby, dir *directory.Directory, historyStore storage.HistoryStore, pub events.Publisher) *Handler {
	return &Handler{
		Config:       cfg,
		Lobby:        l,
		Directory:    dir,
		HistoryStore: historyStore,
		Events:       pub,
	}
}

// Register mounts every endpoint on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/join", h.Join)
	mux.HandleFunc("/add-bot", h.AddBot)
	mux.HandleFunc("/waiting-players", h.WaitingPlayers)
	mux.HandleFunc("/start-game", h.StartGame)
	mux.HandleFunc("/game/{id}/state", h.GameState)
	mux.HandleFunc("/game/{id}/{action}", h.Move)
	mux.HandleFunc("/player/{id}/game", h.PlayerGame)
	mux.HandleFunc("/api/history", h.History)
	mux.HandleFunc("/api/leaderboard", h.Leaderboard)
	mux.HandleFunc("/health", h.Health)
}

// CORS sets CORS headers on the response. Call before writing body.
// It returns true when the request was a preflight and has been answered.
func (h *Handler) CORS(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin != "" && h.Config.OriginAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// PlayerView is a lobby entry.
type PlayerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func playerViews(players []game.Player) []PlayerView {
	out := make([]PlayerView, len(players))
	for i, p := range players {
		out[i] = PlayerView{ID: p.ID, Name: p.Name}
	}
	return out
}

// Response is the envelope shared by the lobby and game endpoints.
type Response struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message,omitempty"`
	PlayerID       string         `json:"player_id,omitempty"`
	GameID         string         `json:"game_id,omitempty"`
	WaitingPlayers []PlayerView   `json:"waiting_players,omitempty"`
	Players        []PlayerView   `json:"players,omitempty"`
	GameState      *game.StateMsg `json:"game_state,omitempty"`
	DrawnCard      *game.CardView `json:"drawn_card,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response", "tag", "api", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), Response{Success: false, Message: err.Error()})
}

// statusFor maps lobby, directory and engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, matcherrors.ErrGameNotFound),
		errors.Is(err, matcherrors.ErrPlayerNotFound),
		errors.Is(err, rummy.ErrInvalidPlayer):
		return http.StatusNotFound
	case errors.Is(err, rummy.ErrNotYourTurn),
		errors.Is(err, rummy.ErrGameOver):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Message: "method not allowed"})
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, matcherrors.ErrInvalidCard) {
			return err
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// JoinRequest is the body of POST /join.
type JoinRequest struct {
	Name string `json:"name"`
}

// Join adds a player to the waiting room.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	if h.CORS(w, r) || !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req JoinRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, waiting, err := h.Lobby.Join(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success:        true,
		PlayerID:       p.ID,
		WaitingPlayers: playerViews(waiting),
		Message:        "Successfully joined as " + p.Name,
	})
}

// AddBot puts a computer player in the waiting room. The body is optional;
// {"name": "..."} picks a profile.
func (h *Handler) AddBot(w http.ResponseWriter, r *http.Request) {
	if h.CORS(w, r) || !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req JoinRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	p, waiting, err := h.Lobby.AddBot(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success:        true,
		PlayerID:       p.ID,
		WaitingPlayers: playerViews(waiting),
		Message:        "Added " + p.Name,
	})
}

// WaitingPlayers lists the waiting room.
func (h *Handler) WaitingPlayers(w http.ResponseWriter, r *http.Request) {
	if h.CORS(w, r) || !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"waiting_players": playerViews(h.Lobby.Waiting()),
	})
}

// StartRequest is the body of POST /start-game.
type StartRequest struct {
	PlayerNames []string `json:"player_names"`
}

// StartGame seats 2-4 waiting players in a new match.
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	if h.CORS(w, r) || !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req StartRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	g, err := h.Lobby.Start(r.Context(), req.PlayerNames)
	if err != nil {
		writeError(w, err)
		return
	}
	names := make([]string, len(g.Players))
	for i, p := range g.Players {
		names[i] = p.Name
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		GameID:  g.ID,
		Players: playerViews(g.Players),
		Message: "Game started with players: " + strings.Join(names, ", "),
	})
}

// GameState returns one player's view of a game.
func (h *Handler) GameState(w http.ResponseWriter, r *http.Request) {
	if h.CORS(w, r) || !allowMethod(w, r, http.MethodGet) {
		return
	}
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "player_id is required"})
		return
	}
	g, err := h.Directory.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := g.Snapshot(r.Context(), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, GameID: g.ID, GameState: &state})
}

// PlayerGame returns the game a player is seated in, with their view of it.
func (h *Handler) PlayerGame(w http.ResponseWriter, r *http.Request) {
	if h.CORS(w, r) || !allowMethod(w, r, http.MethodGet) {
		return
	}
	playerID := r.PathValue("id")
	g, err := h.Directory.GameForPlayer(playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := g.Snapshot(r.Context(), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, GameID: g.ID, GameState: &state})
}

// MoveRequest is the body of POST /game/{id}/move. The per-move paths
// (/game/{id}/draw-stack and friends) take the same body without "move".
type MoveRequest struct {
	PlayerID string `json:"player_id"`
	game.MovePayload
}

// Move applies a move for the given player.
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	if h.CORS(w, r) {
		return
	}
	action := r.PathValue("action")
	switch action {
	case "move", game.MoveDrawStack, game.MoveDrawDiscard, game.MovePlayMeld, game.MoveDiscard:
	default:
		http.NotFound(w, r)
		return
	}
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	g, err := h.Directory.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req MoveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PlayerID == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "player_id is required"})
		return
	}
	if action != "move" {
		req.Move = action
	}
	move, err := req.Decode()
	if err != nil {
		writeError(w, err)
		return
	}

	state, err := g.Submit(r.Context(), req.PlayerID, move)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := Response{Success: true, GameID: g.ID, GameState: &state, DrawnCard: state.Drawn}
	writeJSON(w, http.StatusOK, resp)
}

// History returns the finished matches of the named player.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.CORS(w, r) || !allowMethod(w, r, http.MethodGet) {
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "name is required"})
		return
	}

	list := []storage.GameRecord{}
	if h.HistoryStore != nil {
		var err error
		list, err = h.HistoryStore.ListByName(r.Context(), name)
		if err != nil {
			slog.Error("ListByName", "tag", "api", "err", err)
			writeJSON(w, http.StatusInternalServerError, Response{Message: "failed to load history"})
			return
		}
	}
	writeJSON(w, http.StatusOK, list)
}

// LeaderboardResponse is the JSON structure for /api/leaderboard.
type LeaderboardResponse struct {
	Entries          []storage.LeaderboardEntry `json:"entries"`
	CurrentUserEntry *storage.LeaderboardEntry  `json:"current_user_entry"`
}

// Leaderboard returns the rating table. With ?name= the named player is flagged,
// or returned separately when they are outside the requested page.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if h.CORS(w, r) || !allowMethod(w, r, http.MethodGet) {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	entries := []storage.LeaderboardEntry{}
	if h.HistoryStore != nil {
		var err error
		entries, err = h.HistoryStore.ListLeaderboard(r.Context(), limit, offset)
		if err != nil {
			slog.Error("ListLeaderboard", "tag", "api", "err", err)
			writeJSON(w, http.StatusInternalServerError, Response{Message: "failed to load leaderboard"})
			return
		}
	}

	var currentUserEntry *storage.LeaderboardEntry
	name := r.URL.Query().Get("name")
	if name != "" && h.HistoryStore != nil {
		key := storage.PlayerKey(name)
		inPage := false
		for i := range entries {
			if entries[i].PlayerKey == key {
				entries[i].IsCurrentUser = true
				inPage = true
				break
			}
		}
		if !inPage {
			cur, err := h.HistoryStore.GetLeaderboardEntry(r.Context(), name)
			if err != nil {
				slog.Warn("GetLeaderboardEntry", "tag", "api", "err", err)
			} else if cur != nil {
				cur.IsCurrentUser = true
				currentUserEntry = cur
			}
		}
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{Entries: entries, CurrentUserEntry: currentUserEntry})
}

// HealthResponse is the JSON structure for /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Games    int    `json:"games"`
	Waiting  int    `json:"waiting"`
	Database string `json:"database"`
	NATS     string `json:"nats"`
}

// Health reports liveness plus the state of the optional backends.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.CORS(w, r) || !allowMethod(w, r, http.MethodGet) {
		return
	}
	resp := HealthResponse{
		Status:   "ok",
		Games:    h.Directory.Count(),
		Waiting:  len(h.Lobby.Waiting()),
		Database: "disabled",
		NATS:     "disabled",
	}
	if h.HistoryStore != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.HistoryStore.Ping(ctx); err != nil {
			resp.Database = "disconnected"
			resp.Status = "degraded"
		} else {
			resp.Database = "connected"
		}
	}
	if h.Events != nil {
		if h.Events.Connected() {
			resp.NATS = "connected"
		} else {
			resp.NATS = "disconnected"
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
