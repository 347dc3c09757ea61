//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"ttv-chat/domain"
)

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging during worker lifecycle events, avoiding the
// need for manual naming in the Worker interface.
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

// Transport is one live socket carrying whole protocol frames.
// ReadMessage blocks until the next frame or a terminal error.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteText(line string) error
	Close() error
}

// Dialer opens a Transport. Injected so sessions can be tested
// without a network.
type Dialer func(ctx context.Context, endpoint string) (Transport, error)

// MessageSink consumes messages on their way to the durable channel
// (history, metrics). A failing sink must not stop the flow.
type MessageSink interface {
	Consume(msg domain.Message) error
}
