// Package presence tracks which solving clients polled recently
package presence

import (
	"sort"
	"sync"
	"time"
)

// DefaultWindow is how long a poll keeps a client counted as connected
const DefaultWindow = 30 * time.Second

// Client is one client last-seen record
type Client struct {
	ID       string    `json:"id"`
	LastSeen time.Time `json:"last_seen"`
}

// Tracker implements captcha.Presence from client polls
type Tracker struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]time.Time
}

// New returns a Tracker, window <= 0 uses DefaultWindow
func New(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{window: window, now: time.Now, clients: map[string]time.Time{}}
}

// WithClock swaps the time source
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Touch marks client as seen now, an empty id counts as "anonymous"
func (t *Tracker) Touch(client string) {
	if client == "" {
		client = "anonymous"
	}
	t.mu.Lock()
	t.clients[client] = t.now()
	t.mu.Unlock()
}

// ClientConnected reports whether any client polled within the window
func (t *Tracker) ClientConnected() bool {
	return len(t.Connected()) > 0
}

// Connected lists live clients ordered by id and forgets expired ones
func (t *Tracker) Connected() []Client {
	cutoff := t.now().Add(-t.window)
	t.mu.Lock()
	out := make([]Client, 0, len(t.clients))
	for id, seen := range t.clients {
		if seen.Before(cutoff) {
			delete(t.clients, id)
			continue
		}
		out = append(out, Client{ID: id, LastSeen: seen})
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
