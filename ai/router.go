package ai

import (
	"sync"

	"github.com/RMRattray/national-recording-rummy/game"
	"github.com/RMRattray/national-recording-rummy/wsutil"
)

// Router is a game.Pusher that hands messages for bot seats to their bot
// goroutines and forwards everything else to the next pusher (the WebSocket hub).
type Router struct {
	mu   sync.RWMutex
	next game.Pusher
	bots map[string]chan []byte
}

// NewRouter returns a Router forwarding human traffic to next, which may be nil.
func NewRouter(next game.Pusher) *Router {
	return &Router{next: next, bots: make(map[string]chan []byte)}
}

// SetNext replaces the pusher human seats are forwarded to.
func (r *Router) SetNext(next game.Pusher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = next
}

// Attach diverts pushes for playerID to the returned channel until Detach.
func (r *Router) Attach(playerID string) <-chan []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.bots[playerID]; ok {
		return ch
	}
	ch := make(chan []byte, 64)
	r.bots[playerID] = ch
	return ch
}

// Detach closes the bot's channel. Safe to call for unknown ids.
func (r *Router) Detach(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.bots[playerID]; ok {
		delete(r.bots, playerID)
		close(ch)
	}
}

func (r *Router) Push(playerID string, data []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ch, ok := r.bots[playerID]; ok {
		wsutil.SafeSend(ch, data)
		return
	}
	if r.next != nil {
		r.next.Push(playerID, data)
	}
}
