//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"io"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
	Wait()
}

type WorkerName string

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

// IMessageRepository is the durable side of the message log.
type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	// GetMessages returns at most limit messages with after < id <= upTo, ascending.
	GetMessages(after, upTo domain.MessageID, limit int) ([]domain.Message, error)
	LastMessageID() (domain.MessageID, error)
}

// IBlobRepository stores attachment content keyed by name.
type IBlobRepository interface {
	StoreBlob(attachment domain.Attachment) error
	GetBlob(name string) (domain.Attachment, error)
}

// IPublisher receives every message right after it has been persisted,
// in id order. Publish must not block.
type IPublisher interface {
	Publish(message domain.Message)
}

// IAttachmentResolver turns photo content into a durable reference and back.
type IAttachmentResolver interface {
	Store(ctx context.Context, content io.Reader, name string) (string, error)
	Resolve(ctx context.Context, reference string) (domain.Attachment, error)
}
