package signaling

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type events struct {
	mu          sync.Mutex
	established int
	offers      []string
	answers     []string
	candidates  []string
	senders     []string
	left        []string
}

func (e *events) OnConnectionEstablished() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.established++
}

func (e *events) OnOfferReceived(_ string, d webrtc.SessionDescription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.offers = append(e.offers, d.SDP)
}

func (e *events) OnAnswerReceived(_ string, d webrtc.SessionDescription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.answers = append(e.answers, d.SDP)
}

func (e *events) OnICECandidateReceived(from string, c webrtc.ICECandidateInit) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candidates = append(e.candidates, c.Candidate)
	e.senders = append(e.senders, from)
}

func (e *events) OnPeerLeft(peer string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.left = append(e.left, peer)
}

func (e *events) count(f func(*events) int) func() bool {
	return func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return f(e) > 0
	}
}

func startRelay(t *testing.T) (*Relay, string) {
	t.Helper()
	relay := NewRelay(nil)
	srv := httptest.NewServer(relay)
	t.Cleanup(srv.Close)
	return relay, srv.URL
}

func connect(t *testing.T, url, room string) (*Client, *events) {
	t.Helper()
	ev := &events{}
	c := NewClient(url, room, ev, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { _ = c.Close() })
	return c, ev
}

func TestRelayForwardsWithinRoom(t *testing.T) {
	relay, url := startRelay(t)
	alice, aliceEv := connect(t, url, "r1")
	_, bobEv := connect(t, url, "r1")
	_, carolEv := connect(t, url, "r2")
	require.Eventually(t, func() bool { return relay.Peers("r1") == 2 && relay.Peers("r2") == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, relay.Rooms())
	assert.Equal(t, 1, aliceEv.established)

	ctx := context.Background()
	require.NoError(t, alice.SendSession(ctx, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}))
	require.NoError(t, alice.SendCandidate(ctx, webrtc.ICECandidateInit{Candidate: "candidate:1"}))

	require.Eventually(t, bobEv.count(func(e *events) int { return len(e.candidates) }), 5*time.Second, 10*time.Millisecond)
	bobEv.mu.Lock()
	assert.Equal(t, []string{"v=0 offer"}, bobEv.offers)
	assert.Equal(t, []string{"candidate:1"}, bobEv.candidates)
	assert.Equal(t, []string{alice.ID()}, bobEv.senders)
	bobEv.mu.Unlock()

	// Nothing leaks to another room or back to the sender.
	time.Sleep(50 * time.Millisecond)
	carolEv.mu.Lock()
	assert.Empty(t, carolEv.offers)
	carolEv.mu.Unlock()
	aliceEv.mu.Lock()
	assert.Empty(t, aliceEv.offers)
	aliceEv.mu.Unlock()
}

func TestAnswerAndBye(t *testing.T) {
	_, url := startRelay(t)
	alice, aliceEv := connect(t, url, "call")
	bob, _ := connect(t, url, "call")

	ctx := context.Background()
	require.NoError(t, bob.SendSession(ctx, webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}))
	require.Eventually(t, aliceEv.count(func(e *events) int { return len(e.answers) }), 5*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.SendBye(ctx))
	require.Eventually(t, aliceEv.count(func(e *events) int { return len(e.left) }), 5*time.Second, 10*time.Millisecond)
	aliceEv.mu.Lock()
	assert.Equal(t, bob.ID(), aliceEv.left[0])
	aliceEv.mu.Unlock()
	assert.NotEqual(t, alice.ID(), bob.ID())
}

func TestRelaySendsByeOnDisconnect(t *testing.T) {
	relay, url := startRelay(t)
	_, aliceEv := connect(t, url, "call")
	bob, _ := connect(t, url, "call")
	require.Eventually(t, func() bool { return relay.Peers("call") == 2 }, 5*time.Second, 10*time.Millisecond)

	// The relay learns bob's id from his first message.
	require.NoError(t, bob.SendCandidate(context.Background(), webrtc.ICECandidateInit{Candidate: "candidate:2"}))
	require.Eventually(t, aliceEv.count(func(e *events) int { return len(e.candidates) }), 5*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.Close())
	require.Eventually(t, aliceEv.count(func(e *events) int { return len(e.left) }), 5*time.Second, 10*time.Millisecond)
	aliceEv.mu.Lock()
	assert.Equal(t, []string{bob.ID()}, aliceEv.left)
	aliceEv.mu.Unlock()
	require.Eventually(t, func() bool { return relay.Peers("call") == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestClientIgnoresOwnAndInvalidMessages(t *testing.T) {
	ev := &events{}
	c := NewClient("ws://localhost/ws", "r", ev, nil)

	c.handle(Message{Type: TypeOffer, From: c.ID(), SDP: "mine"})
	c.handle(Message{Type: TypeOffer, From: "other"})
	c.handle(Message{Type: "hello", From: "other"})
	c.handle(Message{Type: TypeCandidate, From: "other"})
	assert.Empty(t, ev.offers)
	assert.Empty(t, ev.candidates)

	c.handle(Message{Type: TypeOffer, From: "other", SDP: "theirs"})
	assert.Equal(t, []string{"theirs"}, ev.offers)
}

func TestSendBeforeConnect(t *testing.T) {
	c := NewClient("ws://localhost/ws", "r", nil, nil)
	assert.ErrorIs(t, c.SendBye(context.Background()), ErrNotConnected)
	assert.False(t, c.Connected())
	assert.NoError(t, c.Close())
}

func TestRoomURL(t *testing.T) {
	got, err := RoomURL("http://127.0.0.1:8787/ws", "demo room")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8787/ws?room=demo+room", got)

	got, err = RoomURL("wss://relay.example.com/ws?x=1", "r")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "wss://relay.example.com/ws?"))
	assert.Contains(t, got, "room=r")

	_, err = RoomURL("ftp://example.com", "r")
	assert.Error(t, err)
}

func TestMessageWireFormat(t *testing.T) {
	mid := "0"
	msg := CandidateMessage(webrtc.ICECandidateInit{Candidate: "candidate:1", SDPMid: &mid})
	msg.From = "peer"
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"candidate","from":"peer","candidate":{"candidate":"candidate:1","sdpMid":"0","sdpMLineIndex":null,"usernameFragment":null}}`, string(b))

	_, err = SessionMessage(webrtc.SessionDescription{Type: webrtc.SDPTypePranswer})
	assert.Error(t, err)

	m, err := SessionMessage(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "x"})
	require.NoError(t, err)
	desc, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, webrtc.SDPTypeAnswer, desc.Type)

	_, ok = Message{Type: TypeBye}.Session()
	assert.False(t, ok)
}
