package rtc

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
)

// MediaSummary describes one m= section
type MediaSummary struct {
	Kind      string   `json:"kind"`
	Direction string   `json:"direction"`
	Formats   []string `json:"formats"`
}

// Summary is a log-friendly digest of a session description
type Summary struct {
	Media      []MediaSummary `json:"media"`
	Candidates int            `json:"candidates"`
}

var directions = []string{"sendrecv", "sendonly", "recvonly", "inactive"}

// Summarize parses raw SDP and lists its media sections
func Summarize(raw string) (*Summary, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return nil, fmt.Errorf("parse sdp: %w", err)
	}

	s := &Summary{}
	for _, md := range desc.MediaDescriptions {
		m := MediaSummary{
			Kind:      md.MediaName.Media,
			Direction: "sendrecv",
			Formats:   md.MediaName.Formats,
		}
		for _, dir := range directions {
			if _, ok := md.Attribute(dir); ok {
				m.Direction = dir
				break
			}
		}
		for _, a := range md.Attributes {
			if a.Key == "candidate" {
				s.Candidates++
			}
		}
		s.Media = append(s.Media, m)
	}
	return s, nil
}

// HasKind reports whether a media section of the given kind is present
func (s *Summary) HasKind(kind string) bool {
	for _, m := range s.Media {
		if m.Kind == kind {
			return true
		}
	}
	return false
}

func (s *Summary) String() string {
	parts := make([]string, 0, len(s.Media))
	for _, m := range s.Media {
		parts = append(parts, fmt.Sprintf("%s(%s)", m.Kind, m.Direction))
	}
	return fmt.Sprintf("[%s] candidates=%d", strings.Join(parts, " "), s.Candidates)
}
