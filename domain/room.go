package domain

const DefaultRoomName = "Chatroom"

// DefaultMaxNameLength bounds display names when no limit is configured.
const DefaultMaxNameLength = 32

type RoomName string
