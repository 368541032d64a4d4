package websocket

import (
	"chat-room/domain"
	"chat-room/domain/event"
	"chat-room/errors"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	frameJoin  = "join"
	frameMsg   = "msg"
	frameLeave = "leave"
)

// Frame is the JSON envelope of every websocket text frame, in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WireMessage is a chat message as it travels on the wire.
type WireMessage struct {
	Timestamp int64  `json:"timestamp"`
	User      string `json:"user"`
	Message   string `json:"message"`
}

type joinedPayload struct {
	RoomName string `json:"roomName"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func ToWireMessage(m domain.Message) WireMessage {
	return WireMessage{Timestamp: m.Millis(), User: m.Sender, Message: m.Body}
}

// ToMessage stamps messages sent without a timestamp with the receive time.
func (w WireMessage) ToMessage(receivedAt time.Time) domain.Message {
	if w.Timestamp <= 0 {
		return domain.NewMessage(receivedAt, w.User, w.Message)
	}
	return domain.MessageFromMillis(w.Timestamp, w.User, w.Message)
}

// EncodeEvent renders an outbound event as a text frame.
func EncodeEvent(e event.Event) ([]byte, error) {
	var payload any
	switch ev := e.(type) {
	case event.Connected:
	case event.Joined:
		payload = joinedPayload{RoomName: string(ev.RoomName)}
	case event.MessagePosted:
		payload = ToWireMessage(ev.Message)
	case event.Failure:
		payload = errorPayload{Message: ev.Reason}
	default:
		return nil, fmt.Errorf("unsupported event %T", e)
	}
	frame := Frame{Type: string(e.Kind())}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		frame.Payload = raw
	}
	return json.Marshal(frame)
}

// Inbound is a decoded client frame.
type Inbound struct {
	Type    string
	Name    string
	Message WireMessage
}

// DecodeFrame parses a client frame. Anything that is not a well formed
// join, msg or leave frame yields ErrInvalidFrame.
func DecodeFrame(data []byte) (Inbound, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
	}
	in := Inbound{Type: frame.Type}
	switch frame.Type {
	case frameJoin:
		if err := json.Unmarshal(frame.Payload, &in.Name); err != nil {
			return Inbound{}, fmt.Errorf("%w: join payload: %v", errors.ErrInvalidFrame, err)
		}
	case frameMsg:
		if err := json.Unmarshal(frame.Payload, &in.Message); err != nil {
			return Inbound{}, fmt.Errorf("%w: msg payload: %v", errors.ErrInvalidFrame, err)
		}
	case frameLeave:
	default:
		return Inbound{}, fmt.Errorf("%w: unknown type %q", errors.ErrInvalidFrame, strings.TrimSpace(frame.Type))
	}
	return in, nil
}
