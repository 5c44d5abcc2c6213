package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RMRattray/national-recording-rummy/config"
	"github.com/RMRattray/national-recording-rummy/directory"
	"github.com/RMRattray/national-recording-rummy/game"
	"github.com/RMRattray/national-recording-rummy/lobby"
	"github.com/RMRattray/national-recording-rummy/matcherrors"
	"github.com/RMRattray/national-recording-rummy/rummy"
	"github.com/RMRattray/national-recording-rummy/storage"
)

func setupTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	if cfg == nil {
		cfg = config.Defaults()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	dir := directory.New(cfg)
	l := lobby.New(ctx, cfg, dir)
	h := NewHandler(cfg, l, dir, nil, nil)

	mux := http.NewServeMux()
	h.Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func do(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func join(t *testing.T, server *httptest.Server, name string) string {
	t.Helper()
	resp, body := do(t, http.MethodPost, server.URL+"/join", map[string]string{"name": name})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join %s: status %d %v", name, resp.StatusCode, body)
	}
	id, _ := body["player_id"].(string)
	if id == "" {
		t.Fatalf("join %s: no player_id in %v", name, body)
	}
	return id
}

// startTwoPlayer seats Alice and Bob and returns the game id with the ids of
// the player to move and the one waiting.
func startTwoPlayer(t *testing.T, server *httptest.Server) (gameID, active, idle string) {
	t.Helper()
	aliceID := join(t, server, "Alice")
	bobID := join(t, server, "Bob")

	resp, body := do(t, http.MethodPost, server.URL+"/start-game", map[string]any{"player_names": []string{"Alice", "Bob"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start-game: status %d %v", resp.StatusCode, body)
	}
	gameID, _ = body["game_id"].(string)

	_, body = do(t, http.MethodGet, fmt.Sprintf("%s/game/%s/state?player_id=%s", server.URL, gameID, aliceID), nil)
	state := body["game_state"].(map[string]any)
	if state["yourTurn"] == true {
		return gameID, aliceID, bobID
	}
	return gameID, bobID, aliceID
}

func TestJoinAndWaitingPlayers(t *testing.T) {
	server := setupTestServer(t, nil)

	join(t, server, "Alice")
	join(t, server, "Bob")

	resp, body := do(t, http.MethodPost, server.URL+"/join", map[string]string{"name": "alice"})
	if resp.StatusCode != http.StatusBadRequest || body["success"] != false {
		t.Errorf("duplicate name: expected 400, got %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, server.URL+"/waiting-players", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("waiting-players: status %d", resp.StatusCode)
	}
	waiting := body["waiting_players"].([]any)
	if len(waiting) != 2 || waiting[0].(map[string]any)["name"] != "Alice" {
		t.Errorf("unexpected waiting list %v", waiting)
	}

	resp, _ = do(t, http.MethodGet, server.URL+"/join", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /join: expected 405, got %d", resp.StatusCode)
	}
}

func TestAddBot(t *testing.T) {
	server := setupTestServer(t, nil)

	resp, body := do(t, http.MethodPost, server.URL+"/add-bot", nil)
	if resp.StatusCode != http.StatusOK || body["player_id"] == nil {
		t.Fatalf("add-bot: %d %v", resp.StatusCode, body)
	}
	resp, body = do(t, http.MethodPost, server.URL+"/add-bot", map[string]string{"name": "Quick Bot"})
	if resp.StatusCode != http.StatusOK || len(body["waiting_players"].([]any)) != 2 {
		t.Errorf("add-bot by name: %d %v", resp.StatusCode, body)
	}
	resp, _ = do(t, http.MethodPost, server.URL+"/add-bot", map[string]string{"name": "HAL"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown bot: expected 400, got %d", resp.StatusCode)
	}
}

func TestStartGameErrors(t *testing.T) {
	server := setupTestServer(t, nil)
	join(t, server, "Alice")

	resp, body := do(t, http.MethodPost, server.URL+"/start-game", map[string]any{"player_names": []string{"Alice"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("one player: expected 400, got %d %v", resp.StatusCode, body)
	}
	resp, body = do(t, http.MethodPost, server.URL+"/start-game", map[string]any{"player_names": []string{"Alice", "Zed"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing player: expected 400, got %d %v", resp.StatusCode, body)
	}
}

func TestGameFlow(t *testing.T) {
	server := setupTestServer(t, nil)
	gameID, active, idle := startTwoPlayer(t, server)

	resp, body := do(t, http.MethodGet, fmt.Sprintf("%s/player/%s/game", server.URL, idle), nil)
	if resp.StatusCode != http.StatusOK || body["game_id"] != gameID {
		t.Fatalf("player game: %d %v", resp.StatusCode, body)
	}
	state := body["game_state"].(map[string]any)
	if len(state["hand"].([]any)) != rummy.HandSize || state["stack"].(float64) != 31 {
		t.Errorf("unexpected deal %v", state)
	}

	moveURL := fmt.Sprintf("%s/game/%s/move", server.URL, gameID)

	resp, body = do(t, http.MethodPost, moveURL, map[string]any{"player_id": idle, "move": "draw-stack"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("out of turn: expected 409, got %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPost, moveURL, map[string]any{
		"player_id": active, "move": "discard", "card": map[string]string{"suit": "Stars", "value": "ACE"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad card: expected 400, got %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPost, moveURL, map[string]any{"player_id": active, "move": "shuffle"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown move: expected 400, got %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPost, fmt.Sprintf("%s/game/%s/draw-stack", server.URL, gameID), map[string]any{"player_id": active})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("draw-stack: status %d %v", resp.StatusCode, body)
	}
	if body["drawn_card"] == nil {
		t.Error("expected drawn_card on a stack draw")
	}
	state = body["game_state"].(map[string]any)
	if len(state["hand"].([]any)) != rummy.HandSize+1 || state["stack"].(float64) != 30 {
		t.Errorf("unexpected state after draw %v", state)
	}

	// Discard the drawn card to pass the turn.
	resp, body = do(t, http.MethodPost, moveURL, map[string]any{"player_id": active, "move": "discard", "card": body["drawn_card"]})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("discard: status %d %v", resp.StatusCode, body)
	}
	if body["game_state"].(map[string]any)["yourTurn"] != false {
		t.Error("turn should pass after a discard")
	}
}

func TestGameLookupErrors(t *testing.T) {
	server := setupTestServer(t, nil)

	resp, _ := do(t, http.MethodGet, server.URL+"/game/nope/state?player_id=x", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown game: expected 404, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, server.URL+"/player/nobody/game", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown player: expected 404, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, server.URL+"/game/nope/fold", map[string]string{"player_id": "x"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown action: expected 404, got %d", resp.StatusCode)
	}

	gameID, _, _ := startTwoPlayer(t, server)
	resp, _ = do(t, http.MethodGet, fmt.Sprintf("%s/game/%s/state", server.URL, gameID), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing player_id: expected 400, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, fmt.Sprintf("%s/game/%s/state?player_id=stranger", server.URL, gameID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("stranger: expected 404, got %d", resp.StatusCode)
	}
}

func TestCORS(t *testing.T) {
	cfg := config.Defaults()
	cfg.AllowedOrigins = []string{"https://rummy.example"}
	server := setupTestServer(t, cfg)

	req, _ := http.NewRequest(http.MethodOptions, server.URL+"/join", nil)
	req.Header.Set("Origin", "https://rummy.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://rummy.example" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, server.URL+"/waiting-players", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin should not be echoed, got %q", got)
	}
}

func TestHistoryAndLeaderboardWithoutStore(t *testing.T) {
	server := setupTestServer(t, nil)

	resp, _ := do(t, http.MethodGet, server.URL+"/api/history", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("history without name: expected 400, got %d", resp.StatusCode)
	}

	resp, err := http.Get(server.URL + "/api/history?name=Alice")
	if err != nil {
		t.Fatal(err)
	}
	var list []storage.GameRecord
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || list == nil || len(list) != 0 {
		t.Errorf("expected empty history, got %d %v", resp.StatusCode, list)
	}

	resp, body := do(t, http.MethodGet, server.URL+"/api/leaderboard?name=Alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard: status %d", resp.StatusCode)
	}
	if entries := body["entries"].([]any); len(entries) != 0 || body["current_user_entry"] != nil {
		t.Errorf("expected an empty leaderboard, got %v", body)
	}
}

func TestHealth(t *testing.T) {
	server := setupTestServer(t, nil)
	join(t, server, "Alice")

	resp, body := do(t, http.MethodGet, server.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: status %d", resp.StatusCode)
	}
	if body["status"] != "ok" || body["waiting"].(float64) != 1 || body["database"] != "disabled" || body["nats"] != "disabled" {
		t.Errorf("unexpected health %v", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{matcherrors.ErrGameNotFound, http.StatusNotFound},
		{fmt.Errorf("draw from stack: %w", rummy.ErrInvalidPlayer), http.StatusNotFound},
		{fmt.Errorf("discard: %w", rummy.ErrNotYourTurn), http.StatusConflict},
		{rummy.ErrGameOver, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{matcherrors.ErrInvalidMeld, http.StatusBadRequest},
		{matcherrors.ErrStackEmpty, http.StatusBadRequest},
		{errors.New("anything else"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPlayerViews(t *testing.T) {
	views := playerViews([]game.Player{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}})
	if len(views) != 2 || views[1] != (PlayerView{ID: "2", Name: "B"}) {
		t.Errorf("unexpected views %v", views)
	}
}
