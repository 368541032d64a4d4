package event

import (
	"chat-room/domain"
)

type Kind string

const (
	CONNECTED Kind = "connected"
	JOINED    Kind = "joined"
	MSG       Kind = "msg"
	ERROR     Kind = "error"
)

// Event is anything the room sends to a single connection.
type Event interface {
	Kind() Kind
}

// Connected greets a freshly opened connection before it joins.
type Connected struct{}

func (Connected) Kind() Kind { return CONNECTED }

// Joined acknowledges a successful join.
type Joined struct {
	RoomName domain.RoomName
}

func (Joined) Kind() Kind { return JOINED }

// MessagePosted carries one chat message, either replayed history or live traffic.
type MessagePosted struct {
	Message domain.Message
}

func (MessagePosted) Kind() Kind { return MSG }

// Failure reports a rejected request to the requesting connection only.
type Failure struct {
	Reason string
}

func (Failure) Kind() Kind { return ERROR }
