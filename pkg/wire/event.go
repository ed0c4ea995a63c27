package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyTopic is returned when a frame is encoded without a topic.
	ErrEmptyTopic = errors.New("topic cannot be empty")
	// ErrBadFrame is returned when a published frame cannot be split into
	// topic and payload.
	ErrBadFrame = errors.New("malformed event frame")
)

// Event is the unit delivered over the fan-out bus. Channel publications set
// User (the publisher); direct messages set From (the sender). LamportClock is
// the coordinator's logical clock at the moment of emission.
type Event struct {
	User         string `json:"user,omitempty"`
	From         string `json:"from,omitempty"`
	Message      string `json:"message"`
	Timestamp    string `json:"timestamp"`
	LamportClock int64  `json:"lamport_clock"`
}

// EncodeFrame renders an event as the single-line wire frame
// "<topic> <json-object>" used by the publish/subscribe proxy. Subscribers
// filter on the topic prefix, so the topic must not contain spaces.
func EncodeFrame(topic string, ev Event) (string, error) {
	if topic == "" {
		return "", ErrEmptyTopic
	}
	if strings.ContainsRune(topic, ' ') {
		return "", fmt.Errorf("%w: topic %q contains a space", ErrBadFrame, topic)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}
	return topic + " " + string(payload), nil
}

// DecodeFrame splits a wire frame back into its topic and event.
func DecodeFrame(frame string) (string, Event, error) {
	topic, payload, found := strings.Cut(frame, " ")
	if !found || topic == "" {
		return "", Event{}, ErrBadFrame
	}
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return "", Event{}, fmt.Errorf("failed to decode event payload: %w", err)
	}
	return topic, ev, nil
}
