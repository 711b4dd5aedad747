package signaling

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/yok-tottii/EzCall/internal/logger"
)

// ErrNotConnected is returned by Send before Connect or after Close
var ErrNotConnected = errors.New("signaling not connected")

// readLimit bounds a single message; descriptions with many candidates
// exceed the websocket default.
const readLimit = 1 << 20

// Listener receives signaling events on the client's read goroutine.
type Listener interface {
	OnConnectionEstablished()
	OnOfferReceived(from string, desc webrtc.SessionDescription)
	OnAnswerReceived(from string, desc webrtc.SessionDescription)
	OnICECandidateReceived(from string, candidate webrtc.ICECandidateInit)
	OnPeerLeft(peer string)
}

// Client is one peer's connection to a relay room
type Client struct {
	url      string
	room     string
	id       string
	listener Listener
	log      *logger.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a client for the relay at rawURL. Each client gets a
// fresh random peer id.
func NewClient(rawURL, room string, listener Listener, log *logger.Logger) *Client {
	return &Client{
		url:      rawURL,
		room:     room,
		id:       uuid.NewString(),
		listener: listener,
		log:      log.Component("signaling"),
	}
}

// ID returns the peer id used as Message.From
func (c *Client) ID() string { return c.id }

// Room returns the relay room
func (c *Client) Room() string { return c.room }

// URL returns the relay address including the room query
func (c *Client) URL() (string, error) {
	return RoomURL(c.url, c.room)
}

// RoomURL adds the room query parameter to a relay address
func RoomURL(rawURL, room string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid signaling url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported signaling scheme: %q", u.Scheme)
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the relay, starts reading and reports OnConnectionEstablished.
func (c *Client) Connect(ctx context.Context) error {
	target, err := c.URL()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial signaling %s: %w", target, err)
	}
	conn.SetReadLimit(readLimit)

	readCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.log.Info("connected to %s as %s", target, c.id)
	if c.listener != nil {
		c.listener.OnConnectionEstablished()
	}

	go c.readLoop(readCtx, conn, done)
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				c.log.Warn("signaling read: %v", err)
			}
			return
		}
		c.handle(msg)
	}
}

// handle dispatches one received message to the listener
func (c *Client) handle(msg Message) {
	if msg.From == c.id {
		return
	}
	if err := msg.Validate(); err != nil {
		c.log.Warn("dropping message from %s: %v", msg.From, err)
		return
	}
	c.log.Debug("received %s from %s", msg.Type, msg.From)
	if c.listener == nil {
		return
	}

	switch msg.Type {
	case TypeOffer:
		desc, _ := msg.Session()
		c.listener.OnOfferReceived(msg.From, desc)
	case TypeAnswer:
		desc, _ := msg.Session()
		c.listener.OnAnswerReceived(msg.From, desc)
	case TypeCandidate:
		c.listener.OnICECandidateReceived(msg.From, *msg.Candidate)
	case TypeBye:
		c.listener.OnPeerLeft(msg.From)
	}
}

// Send stamps msg with this peer's id and writes it
func (c *Client) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	msg.From = c.id
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

// SendSession sends an offer or answer
func (c *Client) SendSession(ctx context.Context, desc webrtc.SessionDescription) error {
	msg, err := SessionMessage(desc)
	if err != nil {
		return err
	}
	return c.Send(ctx, msg)
}

// SendCandidate sends an ICE candidate
func (c *Client) SendCandidate(ctx context.Context, candidate webrtc.ICECandidateInit) error {
	return c.Send(ctx, CandidateMessage(candidate))
}

// SendBye tells the room this peer is hanging up
func (c *Client) SendBye(ctx context.Context) error {
	return c.Send(ctx, Message{Type: TypeBye})
}

// Connected reports whether the client holds an open connection
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close closes the connection and waits for the read loop to exit
func (c *Client) Close() error {
	c.mu.Lock()
	conn, cancel, done := c.conn, c.cancel, c.done
	c.conn, c.cancel, c.done = nil, nil, nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close(websocket.StatusNormalClosure, "bye")
	cancel()
	<-done
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close signaling: %w", err)
	}
	return nil
}
