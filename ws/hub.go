package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/RMRattray/national-recording-rummy/config"
	"github.com/RMRattray/national-recording-rummy/game"
	"github.com/RMRattray/national-recording-rummy/wsutil"
)

// LobbyInterface is what the Hub needs from the waiting room.
type LobbyInterface interface {
	Leave(playerID string) bool
}

// GameLookup finds the game a player is seated in.
type GameLookup interface {
	GameForPlayer(playerID string) (*game.Game, error)
}

// Hub maintains the set of active clients and routes pushes to them by player handle.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Lobby      LobbyInterface
	Games      GameLookup
	Config     *config.Config

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	players map[string]*Client // player handle -> connection
}

// NewHub creates a new Hub.
func NewHub(cfg *config.Config, lobby LobbyInterface, games GameLookup) *Hub {
	h := &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Lobby:      lobby,
		Games:      games,
		Config:     cfg,
		players:    make(map[string]*Client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.OriginAllowed(r.Header.Get("Origin"))
		},
	}
	return h
}

// Run starts the hub's main loop. Should be run as a goroutine.
// When ctx is cancelled (e.g. on server shutdown), Run returns and no longer accepts new registrations.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received, stopping", "tag", "hub")
			return
		case client := <-h.Register:
			h.Clients[client] = true
			slog.Debug("client connected", "tag", "hub", "total", len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				playerID := h.unbind(client)
				close(client.Send)
				slog.Debug("client disconnected", "tag", "hub", "total", len(h.Clients))

				if playerID != "" && h.Lobby != nil && h.Lobby.Leave(playerID) {
					slog.Info("removed disconnected player from waiting room", "tag", "hub", "player", playerID)
				}
			}
		}
	}
}

// Push sends data to the connection bound to playerID, if any. It implements game.Pusher.
func (h *Hub) Push(playerID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.players[playerID]; ok {
		wsutil.SafeSend(c.Send, data)
	}
}

// bind attaches playerID to c. A newer connection for the same handle replaces the older one.
func (h *Hub) bind(playerID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.playerID != "" && h.players[c.playerID] == c {
		delete(h.players, c.playerID)
	}
	c.playerID = playerID
	h.players[playerID] = c
}

// unbind forgets c and returns the handle it was bound to. Holding the write lock
// here means no Push is using c.Send when the caller closes it.
func (h *Hub) unbind(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := c.playerID
	if id != "" && h.players[id] == c {
		delete(h.players, id)
	}
	return id
}

// Connected reports whether a connection is bound to playerID.
func (h *Hub) Connected(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.players[playerID]
	return ok
}

// ServeWS handles WebSocket upgrade requests and creates a new Client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade error", "tag", "hub", "err", err)
		return
	}

	client := &Client{
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	h.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
