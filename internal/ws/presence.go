package ws

import (
	"github.com/zvonchat/zvon/internal/storage"
)

// Presence maps each user to their single live session and keeps the set of
// all connected sessions for global broadcasts. A user reconnecting silently
// replaces the previous binding; the superseded session stays connected but
// no longer receives targeted deliveries.
//
// Mutated only from the hub loop; no lock needed.
type Presence struct {
	sessions map[string]*Client
	clients  map[*Client]struct{}
	tracker  *storage.OnlineTracker
}

func NewPresence(tracker *storage.OnlineTracker) *Presence {
	return &Presence{
		sessions: make(map[string]*Client),
		clients:  make(map[*Client]struct{}),
		tracker:  tracker,
	}
}

// Attach registers a session and binds it as the user's live session,
// replacing any prior binding. Returns true if the user was previously
// offline (i.e. a presence change worth broadcasting).
func (p *Presence) Attach(c *Client) bool {
	p.clients[c] = struct{}{}
	_, wasOnline := p.sessions[c.userID]
	p.sessions[c.userID] = c

	go p.tracker.SetOnline(c.userID)
	return !wasOnline
}

// Detach removes a session. The user's binding is cleared only if it still
// points at the detaching session; a session superseded by a reconnect must
// not clear the newer mapping. Returns true if the user went offline.
func (p *Presence) Detach(c *Client) bool {
	delete(p.clients, c)
	if p.sessions[c.userID] != c {
		return false
	}
	delete(p.sessions, c.userID)

	go p.tracker.SetOffline(c.userID)
	return true
}

// Resolve returns the user's live session, if any.
func (p *Presence) Resolve(userID string) (*Client, bool) {
	c, ok := p.sessions[userID]
	return c, ok
}

// Refresh extends the mirrored online TTL. Called on websocket pongs.
func (p *Presence) Refresh(userID string) {
	go p.tracker.Refresh(userID)
}

// Broadcast pushes an event to every connected session.
func (p *Presence) Broadcast(ev *Outbound) {
	for c := range p.clients {
		c.trySend(ev)
	}
}
