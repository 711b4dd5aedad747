// Package signaling exchanges session descriptions and ICE candidates between
// peers through a websocket relay.
package signaling

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// MessageType is the kind of a relayed message
type MessageType string

const (
	TypeOffer     MessageType = "offer"
	TypeAnswer    MessageType = "answer"
	TypeCandidate MessageType = "candidate"
	TypeBye       MessageType = "bye"
)

// Message is the JSON wire format
type Message struct {
	Type      MessageType              `json:"type"`
	From      string                   `json:"from"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// SessionMessage wraps a session description
func SessionMessage(desc webrtc.SessionDescription) (Message, error) {
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		return Message{Type: TypeOffer, SDP: desc.SDP}, nil
	case webrtc.SDPTypeAnswer:
		return Message{Type: TypeAnswer, SDP: desc.SDP}, nil
	}
	return Message{}, fmt.Errorf("unsupported session description type: %s", desc.Type)
}

// CandidateMessage wraps an ICE candidate
func CandidateMessage(c webrtc.ICECandidateInit) Message {
	return Message{Type: TypeCandidate, Candidate: &c}
}

// Session returns the carried description for offer and answer messages
func (m Message) Session() (webrtc.SessionDescription, bool) {
	switch m.Type {
	case TypeOffer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: m.SDP}, true
	case TypeAnswer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: m.SDP}, true
	}
	return webrtc.SessionDescription{}, false
}

// Validate checks that the fields required by the type are set
func (m Message) Validate() error {
	switch m.Type {
	case TypeOffer, TypeAnswer:
		if m.SDP == "" {
			return fmt.Errorf("%s without sdp", m.Type)
		}
	case TypeCandidate:
		if m.Candidate == nil {
			return fmt.Errorf("candidate message without candidate")
		}
	case TypeBye:
	default:
		return fmt.Errorf("unknown message type: %q", m.Type)
	}
	return nil
}
