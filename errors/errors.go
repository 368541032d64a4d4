package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrNameTaken         = fmt.Errorf("name already taken")
	ErrInvalidName       = fmt.Errorf("invalid name")
	ErrInvalidFrame      = fmt.Errorf("invalid frame")
	ErrUnknownBackend    = fmt.Errorf("unknown store backend")
	ErrReadOnlyStore     = fmt.Errorf("store opened read-only")
	ErrNotConnected      = fmt.Errorf("client not connected")
	ErrConnectionUnknown = fmt.Errorf("unknown connection")
)
