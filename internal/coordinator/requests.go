package coordinator

import "encoding/json"

// Service names form a closed set; dispatch is exhaustive over these
// constants and anything else is rejected as an unknown service.
const (
	ServiceAddUser      = "addUser"
	ServiceLogin        = "login"
	ServiceAddChannel   = "addChannel"
	ServiceSubscribe    = "subscribe"
	ServicePublish      = "publish"
	ServiceMessage      = "message"
	ServiceListUsers    = "listUsers"
	ServiceListChannels = "listChannels"
	ServiceGetTime      = "getTime"
)

// requestMeta is the part of every data payload the dispatcher itself needs:
// the caller's credential (token, or declared user for the bot bypass) and
// the client's Lamport counter.
type requestMeta struct {
	Token        string `json:"token"`
	User         string `json:"user"`
	LamportClock int64  `json:"lamport_clock"`
}

// credentials is the payload of addUser and login.
type credentials struct {
	User  string `json:"user"`
	Senha string `json:"senha"`
}

// addChannelData is the payload of addChannel.
type addChannelData struct {
	Titulo string `json:"titulo"`
	Desc   string `json:"desc"`
}

// subscribeData is the payload of subscribe.
type subscribeData struct {
	Channel string `json:"channel"`
}

// publishData is the payload of publish.
type publishData struct {
	Channel   string `json:"channel"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// messageData is the payload of message (direct message to one user).
type messageData struct {
	Dst       string `json:"dst"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func decodeData(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return validationf("Dados invalidos.")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return validationf("Dados invalidos.")
	}
	return nil
}
