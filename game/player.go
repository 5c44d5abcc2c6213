package game

// Player is a seated participant: an opaque handle plus the name shown to others.
type Player struct {
	ID   string
	Name string
}

// NewPlayer creates a Player with the given handle and display name.
func NewPlayer(id, name string) Player {
	return Player{ID: id, Name: name}
}

// Pusher delivers server-initiated messages to a connected player. Implemented
// by the WebSocket hub; a player with no open connection is skipped.
type Pusher interface {
	Push(playerID string, data []byte)
}
