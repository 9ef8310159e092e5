package rtm

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ========================= outbound frames =========================

// SendOverWebsocket writes payload as one JSON text frame. It returns
// ErrNotConnected when no websocket is open. Safe for concurrent use.
func (s *Session) SendOverWebsocket(payload Payload) error {
	c := s.current()
	if c == nil || s.isStopped() {
		return ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "rtm: encode frame")
	}
	return c.send(data)
}

// nextID hands out the current counter value and advances it by one.
func (s *Session) nextID() int64 {
	return s.msgID.Add(1) - 1
}

// send stamps id and type onto payload. They always win over payload keys.
func (s *Session) send(typ string, payload Payload) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	frame := make(Payload, len(payload)+2)
	for k, v := range payload {
		frame[k] = v
	}
	frame["id"] = s.nextID()
	frame["type"] = typ
	return s.SendOverWebsocket(frame)
}

// Ping sends an application-level {"id": N, "type": "ping"} frame. Extra
// keys in payload are echoed back by the server in the pong.
func (s *Session) Ping(payload Payload) error {
	return s.send("ping", payload)
}

// Typing tells the channel the bot is typing.
func (s *Session) Typing(channel string) error {
	return s.send("typing", Payload{"channel": channel})
}

// SendMessage posts a plain-text message over RTM. Rich messages go through
// Event.Web instead.
func (s *Session) SendMessage(channel, text string) error {
	return s.send(EventMessage, Payload{"channel": channel, "text": text})
}
