package signaling

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/yok-tottii/EzCall/internal/logger"
)

const (
	// DefaultRoom is used when the client does not name one
	DefaultRoom  = "default"
	writeTimeout = 5 * time.Second
)

type peer struct {
	conn *websocket.Conn
	id   string
}

// Relay is an http.Handler that forwards every message from one peer to all
// other peers in the same room. When a peer disconnects, the rest of the room
// receives a bye on its behalf.
type Relay struct {
	log *logger.Logger
	// OnForward is called for every forwarded message, if set
	OnForward func(room string, msg Message)

	mu    sync.RWMutex
	rooms map[string]map[*peer]struct{}
}

// NewRelay creates an empty relay
func NewRelay(log *logger.Logger) *Relay {
	return &Relay{
		log:   log.Component("relay"),
		rooms: make(map[string]map[*peer]struct{}),
	}
}

// ServeHTTP upgrades the request and relays messages until the peer leaves
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	room := req.URL.Query().Get("room")
	if room == "" {
		room = DefaultRoom
	}

	conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		r.log.Warn("accept: %v", err)
		return
	}
	conn.SetReadLimit(readLimit)

	p := &peer{conn: conn}
	r.join(room, p)
	defer r.leave(room, p)

	ctx := req.Context()
	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				r.log.Debug("peer read in %s: %v", room, err)
			}
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		if err := msg.Validate(); err != nil {
			r.log.Warn("dropping message in %s: %v", room, err)
			continue
		}
		if p.id == "" && msg.From != "" {
			r.mu.Lock()
			p.id = msg.From
			r.mu.Unlock()
		}
		r.broadcast(ctx, room, p, msg)
	}
}

func (r *Relay) join(room string, p *peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	peers, ok := r.rooms[room]
	if !ok {
		peers = make(map[*peer]struct{})
		r.rooms[room] = peers
	}
	peers[p] = struct{}{}
	r.log.Info("peer joined %s (%d peers)", room, len(peers))
}

func (r *Relay) leave(room string, p *peer) {
	r.mu.Lock()
	peers := r.rooms[room]
	delete(peers, p)
	remaining := len(peers)
	if remaining == 0 {
		delete(r.rooms, room)
	}
	id := p.id
	r.mu.Unlock()

	r.log.Info("peer left %s (%d peers)", room, remaining)
	if id != "" && remaining > 0 {
		r.broadcast(context.Background(), room, p, Message{Type: TypeBye, From: id})
	}
}

// broadcast writes msg to every peer in room except from
func (r *Relay) broadcast(ctx context.Context, room string, from *peer, msg Message) {
	r.mu.RLock()
	targets := make([]*peer, 0, len(r.rooms[room]))
	for p := range r.rooms[room] {
		if p != from {
			targets = append(targets, p)
		}
	}
	r.mu.RUnlock()

	for _, p := range targets {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		if err := wsjson.Write(wctx, p.conn, msg); err != nil {
			r.log.Warn("forward %s in %s: %v", msg.Type, room, err)
		}
		cancel()
	}
	if r.OnForward != nil {
		r.OnForward(room, msg)
	}
}

// Peers returns the number of peers connected to room
func (r *Relay) Peers(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Rooms returns the number of non-empty rooms
func (r *Relay) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
