package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RMRattray/national-recording-rummy/game"
	"github.com/RMRattray/national-recording-rummy/matcherrors"
	"github.com/RMRattray/national-recording-rummy/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. A full meld of cards fits well within this.
	maxMessageSize = 8192
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	// playerID is the lobby handle bound by register_player; written under Hub.mu.
	playerID string
}

// ReadPump pumps messages from the websocket connection to the hub.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "tag", "ws", "err", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("Invalid message format.")
		return
	}

	switch envelope.Type {
	case "register_player":
		c.handleRegister(envelope.Raw)
	case "move":
		c.handleMove(envelope.Raw)
	case "state":
		c.handleState()
	default:
		c.sendError("Unknown message type: " + envelope.Type)
	}
}

func (c *Client) handleRegister(raw json.RawMessage) {
	var msg RegisterPlayerMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid register_player message.")
		return
	}
	if msg.PlayerID == "" {
		c.sendError("player_id is required")
		return
	}

	c.Hub.bind(msg.PlayerID, c)
	slog.Info("registered player", "tag", "ws", "player", msg.PlayerID)
	c.send(RegisteredMsg{Type: "registered", Success: true, PlayerID: msg.PlayerID})

	// A player who reconnects mid-match gets the current table straight away.
	if g, err := c.currentGame(); err == nil {
		c.sendState(g)
	}
}

func (c *Client) handleMove(raw json.RawMessage) {
	g, err := c.currentGame()
	if err != nil {
		c.sendError(err.Error())
		return
	}
	var msg MoveMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		if errors.Is(err, matcherrors.ErrInvalidCard) {
			c.sendError(err.Error())
			return
		}
		c.sendError("Invalid move message.")
		return
	}
	move, err := msg.Decode()
	if err != nil {
		c.sendError(err.Error())
		return
	}
	// On success the game pushes the new state to every seat, this one included.
	if _, err := g.Submit(context.Background(), c.playerID, move); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleState() {
	g, err := c.currentGame()
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.sendState(g)
}

func (c *Client) currentGame() (*game.Game, error) {
	if c.playerID == "" {
		return nil, errNotRegistered
	}
	return c.Hub.Games.GameForPlayer(c.playerID)
}

func (c *Client) sendState(g *game.Game) {
	state, err := g.Snapshot(context.Background(), c.playerID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.send(state)
}

var errNotRegistered = errors.New("register_player first")

func (c *Client) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling outbound message", "tag", "ws", "err", err)
		return
	}
	wsutil.SafeSend(c.Send, data)
}

func (c *Client) sendError(message string) {
	c.send(ErrorMsg{Type: "error", Message: message})
}
