//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-room/domain"
	"chat-room/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// MessageStore is the durable log of every message ever posted in the room.
// ListAll returns messages in the store's natural retrieval order.
type MessageStore interface {
	ListAll(ctx context.Context) ([]domain.Message, error)
	Append(ctx context.Context, message domain.Message) error
}

// Sender delivers one event to one connection. It is implemented by the transport.
type Sender interface {
	SendTo(ctx context.Context, connectionID string, e event.Event) error
}

// IRoom is the closed set of inbound operations a transport may invoke.
type IRoom interface {
	OnConnect(ctx context.Context, connectionID string)
	OnJoin(ctx context.Context, connectionID, name string)
	OnMessage(ctx context.Context, connectionID string, message domain.Message)
	OnLeave(ctx context.Context, connectionID string)
}
