// Package wire defines the request, reply and event shapes exchanged through
// the relay substrate.
package wire

import (
	"encoding/json"
	"fmt"
)

// Reply status values. Clients match on these strings.
const (
	StatusOK    = "OK"
	StatusError = "ERRO"
)

// Request is the envelope every client sends through the request broker.
// Data carries the service-specific payload and is decoded by the coordinator.
type Request struct {
	Service string          `json:"service"`
	Data    json.RawMessage `json:"data"`
}

// NewRequest builds a request envelope, marshalling data as the payload.
func NewRequest(service string, data any) (*Request, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request data: %w", err)
	}
	return &Request{Service: service, Data: raw}, nil
}

// Reply is the common reply shape for state-changing services.
type Reply struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	LamportClock int64  `json:"lamport_clock"`
}

// LoginReply is the reply for a successful login; on failure the common
// Reply shape is used instead.
type LoginReply struct {
	Status       string `json:"status"`
	Token        string `json:"token"`
	User         string `json:"user"`
	LamportClock int64  `json:"lamport_clock"`
}

// TimeReply is the getTime reply: wall-clock time plus the logical clock.
type TimeReply struct {
	ServerTimeUTC string `json:"server_time_utc"`
	LamportClock  int64  `json:"lamport_clock"`
}
