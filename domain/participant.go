// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "fmt"

type SessionState int

const (
	CONNECTED SessionState = iota
	IN_ROOM
	GONE
)

func (s SessionState) String() string {
	switch s {
	case CONNECTED:
		return "Connected"
	case IN_ROOM:
		return "InRoom"
	case GONE:
		return "Gone"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Participant is a read-only view of a joined connection.
type Participant struct {
	ConnectionID string
	DisplayName  string
}
